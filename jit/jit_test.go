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
	"sync"
	"testing"

	"github.com/alexdoesh/cinder/interp"
)

// fakeCompiler is a controllable back-end for controller tests.
type fakeCompiler struct {
	mu       sync.Mutex
	compiled map[*interp.FuncObject]int // compile count
	retries  map[*interp.FuncObject]int // pending Retry results
	// onCompile, when set, runs before a compile and may override the
	// result (used for re-entrancy tests).
	onCompile func(fn *interp.FuncObject) (Result, bool)
	released  bool
}

func newFakeCompiler() *fakeCompiler {
	return &fakeCompiler{
		compiled: make(map[*interp.FuncObject]int),
		retries:  make(map[*interp.FuncObject]int),
	}
}

func (c *fakeCompiler) Compile(fn *interp.FuncObject) Result {
	if c.onCompile != nil {
		if res, handled := c.onCompile(fn); handled {
			return res
		}
	}
	c.mu.Lock()
	if n := c.retries[fn]; n > 0 {
		c.retries[fn] = n - 1
		c.mu.Unlock()
		return Retry
	}
	c.compiled[fn]++
	c.mu.Unlock()
	fn.SetEntry(func(f *interp.FuncObject, args []interp.Value, ts *interp.ThreadState) interp.Value {
		return interp.None
	})
	return Ok
}

func (c *fakeCompiler) compileCount(fn *interp.FuncObject) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compiled[fn]
}

func (c *fakeCompiler) CodeStart(fn *interp.FuncObject) uintptr { return 0x1000 }
func (c *fakeCompiler) CodeSize(fn *interp.FuncObject) int      { return 128 }
func (c *fakeCompiler) StackSize(fn *interp.FuncObject) int     { return 64 }
func (c *fakeCompiler) SpillStackSize(fn *interp.FuncObject) int {
	return 16
}

func (c *fakeCompiler) PrintHir(fn *interp.FuncObject) (string, bool) {
	return "fun " + fn.Fullname() + " {}", true
}

func (c *fakeCompiler) Disassemble(fn *interp.FuncObject) (string, bool) {
	return fn.Fullname() + ": ret", true
}

func (c *fakeCompiler) SupportedOpcodes() []interp.Opcode {
	ops := make([]interp.Opcode, interp.NumOpcodes)
	for i := range ops {
		ops[i] = interp.Opcode(i)
	}
	return ops
}

func (c *fakeCompiler) SpecializeType(t *interp.TypeObject, slots *TypeSlots) Result {
	return CannotSpecialize
}

func (c *fakeCompiler) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for fn := range c.compiled {
		fn.SetEntry(nil)
	}
	c.released = true
}

// resetJit tears the singleton controller down between tests.
func resetJit(t *testing.T) {
	t.Helper()
	if Config.InitState == JitInitialized {
		Finalize()
	}
	Config = ConfigT{}
	ClearXOptions()
	regFuncs = make(map[*interp.FuncObject]struct{})
	testMultithreadedFuncs = nil
	activeCompiles = nil
	CompileWorkersAttempted.Store(0)
	CompileWorkersRetries = 0
	resetTiming()
	logFile = nil
	debugLogging = false
	rebuildLogger()
	t.Cleanup(func() {
		if Config.InitState == JitInitialized {
			Finalize()
		}
		Config = ConfigT{}
		ClearXOptions()
	})
}

// withGIL holds the GIL for the duration of the test, as the host
// runtime would while running user code.
func withGIL(t *testing.T) {
	t.Helper()
	interp.GIL.Acquire()
	t.Cleanup(interp.GIL.Release)
}

// initJit initializes the controller with a fake back-end and the given
// X options.
func initJit(t *testing.T, opts ...string) *fakeCompiler {
	t.Helper()
	resetJit(t)
	withGIL(t)
	for _, o := range opts {
		SetXOption(o)
	}
	c := newFakeCompiler()
	if err := Initialize(c); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return c
}

func makeFunc(module string, qualname string) *interp.FuncObject {
	code := &interp.CodeObject{
		Qualname: qualname,
		NumArgs:  1,
		Instrs: []interp.Instr{
			{Op: interp.OpLoadArg, Arg: 0},
			{Op: interp.OpReturn},
		},
	}
	return interp.NewFunc(module, code)
}

func makeStaticFunc(module string, qualname string) *interp.FuncObject {
	fn := makeFunc(module, qualname)
	fn.Code.Flags |= interp.CodeFlagStaticallyCompiled
	return fn
}

func assertPanics(t *testing.T, msg string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", msg)
		}
	}()
	f()
}

func pendingCount() int {
	n := 0
	ThreadedCompileSerialize(func() { n = len(regFuncs) })
	return n
}

func isPending(fn *interp.FuncObject) bool {
	ok := false
	ThreadedCompileSerialize(func() { _, ok = regFuncs[fn] })
	return ok
}
