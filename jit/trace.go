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
package jit

import "io"
import "os"
import "fmt"
import "sync"
import "time"
import "encoding/json"

/* chrome://tracing file of compile events (jit-compile-trace option) */

type Tracefile struct {
	isFirst bool
	file    io.WriteCloser
	m       sync.Mutex
}

var compileTrace *Tracefile
var traceStart time.Time = time.Now()

func openCompileTrace(name string) {
	f, err := os.Create(name)
	if err != nil {
		Log("Couldn't open compile trace %s (%s)", name, err)
		return
	}
	compileTrace = NewTrace(f)
}

func closeCompileTrace() {
	if compileTrace != nil {
		compileTrace.Close()
		compileTrace = nil
	}
}

func NewTrace(file io.WriteCloser) *Tracefile {
	file.Write([]byte("["))
	result := new(Tracefile)
	result.file = file
	result.isFirst = true
	return result
}

func (t *Tracefile) Close() {
	t.file.Write([]byte("]"))
	t.file.Close()
}

// CompileEvent writes one complete ("X") event covering a compilation.
func (t *Tracefile) CompileEvent(name string, start time.Time, dur time.Duration) {
	ts := start.Sub(traceStart).Microseconds()
	t.m.Lock()
	if t.isFirst {
		t.isFirst = false
	} else {
		t.file.Write([]byte(",\n"))
	}
	t.file.Write([]byte("{\"name\": "))
	b, _ := json.Marshal(name)
	t.file.Write(b)
	t.file.Write([]byte(", \"cat\": \"compile\", \"ph\": \"X\", \"ts\": "))
	fmt.Fprint(t.file, ts)
	t.file.Write([]byte(", \"dur\": "))
	fmt.Fprint(t.file, dur.Microseconds())
	t.file.Write([]byte(", \"pid\": "))
	fmt.Fprint(t.file, os.Getpid())
	t.file.Write([]byte(", \"tid\": 0}"))
	t.m.Unlock()
}

func traceCompile(name string, start time.Time, dur time.Duration) {
	if compileTrace != nil {
		compileTrace.CompileEvent(name, start, dur)
	}
}
