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

import "unsafe"

// Hooks installed by the JIT once it is initialized. A generator whose
// JitData is non-nil is driven entirely through these; the interpreter
// never touches its frame.
var (
	JITGenSend    func(g *Generator, arg Value, exc bool, f *FrameObject, ts *ThreadState, finishYieldFrom bool) (Value, bool)
	JITGenDealloc func(g *Generator)
)

// Generator is a suspended function instance. Either fr (interpreted) or
// JitData (compiled; owned by the JIT's generator bridge) is in use,
// never both.
type Generator struct {
	Object
	Fn      *FuncObject
	fr      *frame
	done    bool
	JitData unsafe.Pointer
}

func newInterpGenerator(fn *FuncObject, args []Value) *Generator {
	return &Generator{Object: newObject(), Fn: fn, fr: newFrame(fn, args)}
}

// NewJITGenerator creates a generator shell whose execution state lives
// in the continuation block the back-end hangs off JitData.
func NewJITGenerator(fn *FuncObject, data unsafe.Pointer) *Generator {
	return &Generator{Object: newObject(), Fn: fn, JitData: data}
}

// Send resumes the generator with v. The bool result is false once the
// generator is exhausted; the return value is then in ts.GenReturn.
func (g *Generator) Send(ts *ThreadState, v Value) (Value, bool) {
	if g.JitData != nil {
		return JITGenSend(g, v, false, nil, ts, false)
	}
	if g.done {
		panic("send on exhausted generator")
	}
	out, yielded := execFrame(g.fr, ts, v)
	if !yielded {
		g.done = true
		ts.GenReturn = out
		return nil, false
	}
	return out, true
}

// Dealloc drops the generator's execution state. For compiled generators
// this releases the continuation block through the JIT bridge.
func (g *Generator) Dealloc() {
	if g.JitData != nil {
		JITGenDealloc(g)
		return
	}
	g.fr = nil
	g.done = true
}
