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

import (
	"sort"
	"unsafe"

	"github.com/launix-de/NonLockingReadMap"

	"github.com/alexdoesh/cinder/interp"
)

func funcKey(fn *interp.FuncObject) uintptr {
	return uintptr(unsafe.Pointer(fn))
}

// CompileRecord is the per-function outcome of a successful compile.
type CompileRecord struct {
	key            uintptr
	Fn             *interp.FuncObject
	CodeStart      uintptr
	CodeSize       int
	StackSize      int
	SpillStackSize int
	Hir            string
	Disas          string
}

func (r CompileRecord) GetKey() uintptr {
	return r.key
}

func (r CompileRecord) ComputeSize() uint {
	return uint(unsafe.Sizeof(r)) + uint(len(r.Hir)) + uint(len(r.Disas))
}

// CompileContext owns the back-end compiler and the record map. Records
// are written only by the successful-completion handler of a compile,
// under ThreadedCompileSerialize; reads are lock-free.
type CompileContext struct {
	compiler Compiler
	compiled NonLockingReadMap.NonLockingReadMap[CompileRecord, uintptr]
}

func NewCompileContext(c Compiler) *CompileContext {
	return &CompileContext{
		compiler: c,
		compiled: NonLockingReadMap.New[CompileRecord, uintptr](),
	}
}

// CompileFunc runs the back-end on fn. On success the native dispatch is
// installed (by the back-end) and the metadata is recorded here.
func (ctx *CompileContext) CompileFunc(fn *interp.FuncObject) Result {
	res := ctx.compiler.Compile(fn)
	if res != Ok {
		return res
	}
	rec := CompileRecord{
		key:            funcKey(fn),
		Fn:             fn,
		CodeStart:      ctx.compiler.CodeStart(fn),
		CodeSize:       ctx.compiler.CodeSize(fn),
		StackSize:      ctx.compiler.StackSize(fn),
		SpillStackSize: ctx.compiler.SpillStackSize(fn),
	}
	if hir, ok := ctx.compiler.PrintHir(fn); ok {
		rec.Hir = hir
	}
	if disas, ok := ctx.compiler.Disassemble(fn); ok {
		rec.Disas = disas
	}
	ThreadedCompileSerialize(func() {
		ctx.compiled.Set(&rec)
		perfMapEntry(rec.CodeStart, rec.CodeSize, fn.Fullname())
	})
	if Config.DisasFuncs {
		Log("Disassembly of %s:\n%s", fn.Fullname(), rec.Disas)
	}
	return Ok
}

// DidCompile reports whether fn was compiled by this context.
func (ctx *CompileContext) DidCompile(fn *interp.FuncObject) bool {
	return ctx.compiled.Get(funcKey(fn)) != nil
}

// PrintHir returns the HIR artifact; false if fn is not compiled.
func (ctx *CompileContext) PrintHir(fn *interp.FuncObject) (string, bool) {
	rec := ctx.compiled.Get(funcKey(fn))
	if rec == nil {
		return "", false
	}
	return rec.Hir, true
}

// Disassemble returns the disassembly artifact; false if not compiled.
func (ctx *CompileContext) Disassemble(fn *interp.FuncObject) (string, bool) {
	rec := ctx.compiled.Get(funcKey(fn))
	if rec == nil {
		return "", false
	}
	return rec.Disas, true
}

func (ctx *CompileContext) GetCodeSize(fn *interp.FuncObject) int {
	rec := ctx.compiled.Get(funcKey(fn))
	if rec == nil {
		return 0
	}
	return rec.CodeSize
}

func (ctx *CompileContext) GetStackSize(fn *interp.FuncObject) int {
	rec := ctx.compiled.Get(funcKey(fn))
	if rec == nil {
		return 0
	}
	return rec.StackSize
}

func (ctx *CompileContext) GetSpillStackSize(fn *interp.FuncObject) int {
	rec := ctx.compiled.Get(funcKey(fn))
	if rec == nil {
		return 0
	}
	return rec.SpillStackSize
}

// GetCompiledFunctions returns all compiled functions, sorted by name.
func (ctx *CompileContext) GetCompiledFunctions() []*interp.FuncObject {
	recs := ctx.compiled.GetAll()
	out := make([]*interp.FuncObject, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Fn)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Fullname() < out[j].Fullname()
	})
	return out
}

// SpecializeType delegates type specialization to the back-end.
func (ctx *CompileContext) SpecializeType(t *interp.TypeObject, slots *TypeSlots) Result {
	return ctx.compiler.SpecializeType(t, slots)
}

// Release drops all records and frees the back-end's emitted code.
func (ctx *CompileContext) Release() {
	for _, rec := range ctx.compiled.GetAll() {
		rec.Fn.SetEntry(nil)
		ctx.compiled.Remove(rec.GetKey())
	}
	ctx.compiler.Release()
}
