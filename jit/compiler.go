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

import "github.com/alexdoesh/cinder/interp"

// TypeSlots receives the specialized dispatch entries the back-end
// installs on a type.
type TypeSlots struct {
	Entries map[string]interp.EntryFunc
}

// Compiler is the narrow interface to the compiler back-end (HIR
// builder, lowering, register allocation, emission live behind it).
// Compile installs the native dispatch entry on success; the queries
// are only valid for functions Compile returned Ok for.
type Compiler interface {
	Compile(fn *interp.FuncObject) Result
	CodeStart(fn *interp.FuncObject) uintptr
	CodeSize(fn *interp.FuncObject) int
	StackSize(fn *interp.FuncObject) int
	SpillStackSize(fn *interp.FuncObject) int
	PrintHir(fn *interp.FuncObject) (string, bool)
	Disassemble(fn *interp.FuncObject) (string, bool)
	SupportedOpcodes() []interp.Opcode
	SpecializeType(t *interp.TypeObject, slots *TypeSlots) Result
	// Release frees all emitted code and uninstalls entries.
	Release()
}
