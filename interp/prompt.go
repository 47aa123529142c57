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
package interp

import (
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
)

const newprompt = "\033[32m>\033[0m "
const resultprompt = "\033[31m=\033[0m "

var ReplInstance *readline.Instance

// Resolver maps a bare name typed at the prompt to a runtime value
// (typically a *FuncObject from a demo module).
type Resolver func(name string) (Value, bool)

// Repl is a small introspection shell: "module.function arg arg ...".
// Arguments are integers, quoted strings, true/false, or names resolved
// through resolve.
func Repl(resolve Resolver) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".cinder-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()
	ReplInstance = l

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		// anti-panic func
		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Println("panic:", r, string(debug.Stack()))
				}
			}()
			result := evalCommand(line, resolve)
			fmt.Print(resultprompt)
			fmt.Println(formatValue(result))
		}()
	}
}

func evalCommand(line string, resolve Resolver) Value {
	fields := strings.Fields(line)
	mod, fn, ok := strings.Cut(fields[0], ".")
	if !ok {
		panic("commands have the form module.function, e.g. cinderjit.get_compiled_functions")
	}
	m := GetModule(mod)
	if m == nil {
		panic("unknown module " + mod)
	}
	if fn == "help" {
		topic := ""
		if len(fields) > 1 {
			topic = fields[1]
		}
		m.Help(topic)
		return None
	}
	args := make([]Value, 0, len(fields)-1)
	for _, f := range fields[1:] {
		args = append(args, parseArg(f, resolve))
	}
	return m.Call(fn, args...)
}

func parseArg(tok string, resolve Resolver) Value {
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return n
	}
	if tok == "true" {
		return true
	}
	if tok == "false" {
		return false
	}
	if strings.HasPrefix(tok, "\"") && strings.HasSuffix(tok, "\"") && len(tok) >= 2 {
		return tok[1 : len(tok)-1]
	}
	if resolve != nil {
		if v, ok := resolve(tok); ok {
			return v
		}
	}
	return tok
}

func formatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case *FuncObject:
		return "<function " + x.Fullname() + ">"
	case *Generator:
		return "<generator " + x.Fn.Fullname() + ">"
	case []Value:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}
