/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
/*
	cinder - JIT control plane for an embedded dynamic-language runtime

	boots the demo interpreter with the JIT attached and drops into an
	introspection shell (try cinderjit.help)
*/
package main

import "os"
import "fmt"
import "flag"
import "syscall"
import "os/signal"
import "crypto/rand"
import "github.com/google/uuid"
import "github.com/dc0d/onexit"
import "github.com/alexdoesh/cinder/interp"
import "github.com/alexdoesh/cinder/jit"
import "github.com/alexdoesh/cinder/codegen"

// workaround for flags package to allow multiple values
type arrayFlags []string

func (i *arrayFlags) String() string {
	return "dummy"
}

func (i *arrayFlags) Set(value string) error {
	*i = append(*i, value)
	return nil
}

func main() {
	fmt.Print(`cinder Copyright (C) 2026
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;

`)

	// init random generator for UUIDs
	uuid.SetRand(rand.Reader)

	// parse command line options
	var xopts arrayFlags
	flag.Var(&xopts, "X", "Set a runtime option, e.g. -X jit or -X jit-list-file=PATH")
	flag.Parse()

	// the main thread owns the GIL for the whole session
	interp.GIL.Acquire()
	defer interp.GIL.Release()

	for _, x := range xopts {
		jit.SetXOption(x)
	}
	if err := jit.Initialize(codegen.New()); err != nil {
		fmt.Println("JIT initialization failed:", err)
		os.Exit(1)
	}
	onexit.Register(func() { jit.Finalize() })

	demo := buildDemoFunctions()
	for _, fn := range demo {
		jit.RegisterFunction(fn)
	}
	registerDemoModule(demo)

	// install exit handler
	cancelChan := make(chan os.Signal, 1)
	signal.Notify(cancelChan, syscall.SIGTERM, syscall.SIGINT)
	go (func() {
		<-cancelChan
		jit.Finalize()
		os.Exit(1)
	})()

	fmt.Print(`
    Type cinderjit.help to list introspection commands,
    demo.help for the demo functions (fib, poly, echo2)

`)
	interp.Repl(func(name string) (interp.Value, bool) {
		fn, ok := demo[name]
		if !ok {
			return nil, false
		}
		return fn, true
	})

	// normal shutdown
	jit.Finalize()
}
