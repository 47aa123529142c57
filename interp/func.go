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

import "sync/atomic"

// EntryFunc is the calling convention of a native entry point installed
// by the JIT. A nil entry means the function is interpreted.
type EntryFunc func(fn *FuncObject, args []Value, ts *ThreadState) Value

// FuncObject is a function of the embedded language. Identity is pointer
// identity; Module/Qualname only name it for lookups and logging.
type FuncObject struct {
	Object
	Code   *CodeObject
	Module string
	entry  atomic.Pointer[EntryFunc]
}

func NewFunc(module string, code *CodeObject) *FuncObject {
	return &FuncObject{Object: newObject(), Code: code, Module: module}
}

func (f *FuncObject) Qualname() string {
	return f.Code.Qualname
}

// Fullname is the module-qualified name used in logs and the jit-list.
func (f *FuncObject) Fullname() string {
	return f.Module + ":" + f.Code.Qualname
}

// Entry returns the installed native entry, or nil.
func (f *FuncObject) Entry() EntryFunc {
	p := f.entry.Load()
	if p == nil {
		return nil
	}
	return *p
}

// SetEntry atomically installs (or with nil, removes) the native entry.
func (f *FuncObject) SetEntry(e EntryFunc) {
	if e == nil {
		f.entry.Store(nil)
		return
	}
	f.entry.Store(&e)
}

// Call invokes the function, dispatching to the native entry when one is
// installed. Calling a generator function returns a *Generator.
func (f *FuncObject) Call(ts *ThreadState, args ...Value) Value {
	if len(args) != f.Code.NumArgs {
		panic("wrong number of arguments for " + f.Fullname())
	}
	if e := f.Entry(); e != nil {
		return e(f, args, ts)
	}
	if f.Code.IsGenerator() {
		return newInterpGenerator(f, args)
	}
	fr := newFrame(f, args)
	v, yielded := execFrame(fr, ts, nil)
	if yielded {
		panic("non-generator code yielded")
	}
	return v
}
