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

// Value is any value the embedded language can hold. Small immutables
// (int64, float64, bool, string) travel as themselves; runtime objects
// (*FuncObject, *Generator, *FrameObject) carry a refcount header.
type Value interface{}

type noneType struct{}

func (noneType) String() string { return "None" }

// None is the unit value of the embedded language.
var None Value = noneType{}

func IsNone(v Value) bool {
	_, ok := v.(noneType)
	return ok
}

// Object is the refcount header embedded in all runtime objects.
// Refcounts are not atomic: mutation is only legal while the mutating
// thread may write interpreter state, i.e. under the GIL, or under the
// JIT's own write serialization while the GIL single-owner check is
// suspended during batch compilation.
type Object struct {
	refcnt int64
}

func (o *Object) Incref() {
	GIL.AssertHeld()
	o.refcnt++
}

func (o *Object) Decref() {
	GIL.AssertHeld()
	o.refcnt--
	if o.refcnt < 0 {
		panic("refcount went negative")
	}
}

func (o *Object) Refcount() int64 {
	return o.refcnt
}

type Refcounted interface {
	Incref()
	Decref()
	Refcount() int64
}

func newObject() Object {
	return Object{refcnt: 1}
}

// XIncref increfs v if it is a refcounted object, otherwise does nothing.
func XIncref(v Value) {
	if o, ok := v.(Refcounted); ok {
		o.Incref()
	}
}

// XDecref decrefs v if it is a refcounted object, otherwise does nothing.
func XDecref(v Value) {
	if o, ok := v.(Refcounted); ok {
		o.Decref()
	}
}
