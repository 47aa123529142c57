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
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexdoesh/cinder/interp"
)

// The controller is a process singleton: it mediates one embedding
// runtime. All state lives in package globals behind the lifecycle in
// Config.InitState.
var (
	jitCtx                 *CompileContext
	jitList                *JitList
	regFuncs               = make(map[*interp.FuncObject]struct{})
	testMultithreadedFuncs []*interp.FuncObject
	activeCompiles         []*interp.CodeObject
)

const maxCompileDepth = 10

// CompileWorkersAttempted counts compile attempts by batch workers.
var CompileWorkersAttempted atomic.Int64

// CompileWorkersRetries counts worker compiles that ended in Retry.
// Guarded by ThreadedCompileSerialize.
var CompileWorkersRetries int64

// Initialize resolves all options and brings the JIT up. A disabled
// configuration is not an error: the host continues uninitialized and
// uncompiled. A jit-list parse failure disables the JIT for this
// process, also without error.
func Initialize(compiler Compiler) error {
	if Config.InitState == JitInitialized {
		return nil
	}
	Config = ConfigT{}

	useJit := isFlagSet("jit")

	if name := flagString("jit-log-file"); name != "" {
		redirectLogFile(name)
	}
	if isFlagSet("jit-debug") {
		setDebugLogging(true)
		DLog("Enabling JIT debug and extra logging.")
	}
	if isFlagSet("jit-debug-refcount") {
		DLog("Enabling JIT refcount insertion debug mode.")
		Config.DebugRefcount = true
	}
	if isFlagSet("jit-dump-hir") {
		DLog("Enabling JIT dump-hir mode.")
		Config.DumpHir = true
	}
	if isFlagSet("jit-dump-hir-passes") {
		DLog("Enabling JIT dump-hir-passes mode.")
		Config.DumpHirPasses = true
	}
	if isFlagSet("jit-dump-final-hir") {
		DLog("Enabling JIT dump-final-hir mode.")
		Config.DumpFinalHir = true
	}
	if isFlagSet("jit-dump-lir") {
		DLog("Enable JIT dump-lir mode with origin data.")
		Config.DumpLir = true
	}
	if isFlagSet("jit-dump-lir-no-origin") {
		DLog("Enable JIT dump-lir mode without origin data.")
		Config.DumpLir = true
		Config.DumpLirNoOrigin = true
	}
	if isFlagSet("jit-disas-funcs") {
		DLog("Enabling JIT disas-funcs mode.")
		Config.DisasFuncs = true
	}
	if isFlagSet("jit-gdb-support") {
		DLog("Enable GDB support and JIT debug mode.")
		setDebugLogging(true)
		Config.GdbSupport = true
	}
	if isFlagSet("jit-gdb-stubs-support") {
		DLog("Enable GDB support for stubs.")
		Config.GdbStubsSupport = true
	}
	if isFlagSet("jit-gdb-write-elf") {
		DLog("Enable GDB support with ELF output, and JIT debug.")
		setDebugLogging(true)
		Config.GdbSupport = true
		Config.GdbWriteElf = true
	}
	if isFlagSet("jit-perfmap") {
		Config.PerfMap = true
	}

	if isFlagSet("jit-enable-jit-list-wildcards") {
		Log("Enabling wildcards in JIT list")
		Config.AllowJitListWildcards = true
	}
	if isFlagSet("jit-all-static-functions") {
		DLog("JIT-compiling all static functions")
		Config.CompileAllStaticFunctions = true
	}

	var list *JitList
	if fn := flagString("jit-list-file"); fn != "" {
		useJit = true
		Config.JitListFile = fn
		list = NewJitList(Config.AllowJitListWildcards)
		if !list.ParseFile(fn) {
			Log("Could not parse jit-list, disabling JIT.")
			return nil
		}
	}

	if !useJit {
		return nil
	}
	DLog("Enabling JIT.")

	Config.CodeCacheSize = flagBytes("jit-code-cache-size", DefaultCodeCacheSize)
	jitCtx = NewCompileContext(compiler)
	registerIntrospection()

	Config.InitState = JitInitialized
	Config.IsEnabled = true
	jitList = list
	if isFlagSet("jit-tiny-frame") {
		Config.FrameMode = FrameModeTiny
	}
	if isFlagSet("jit-no-frame") {
		if Config.FrameMode != FrameModeNormal {
			panic("-X jit-tiny-frame and -X jit-no-frame are mutually exclusive.")
		}
		Config.FrameMode = FrameModeNone
	}
	Config.AreTypeSlotsEnabled = !IsXOptionSet("jit-no-type-slots")
	Config.BatchCompileWorkers = int(flagLong("jit-batch-compile-workers", 0))
	if isFlagSet("jit-test-multithreaded-compile") {
		Config.TestMultithreadedCompile = true
	}
	if isFlagSet("jit-list-watch") && jitList != nil {
		Config.JitListWatch = true
		if err := jitList.Watch(); err != nil {
			Log("Unable to watch jit-list: %s", err)
		}
	}
	if name := flagString("jit-compile-trace"); name != "" {
		Config.CompileTraceFile = name
		openCompileTrace(name)
	}

	resetTiming()
	perfInit()
	return nil
}

// IsEnabled reports whether new compilations are accepted.
func IsEnabled() bool {
	return Config.InitState == JitInitialized && Config.IsEnabled
}

func Enable() {
	if Config.InitState != JitInitialized {
		return
	}
	Config.IsEnabled = true
}

// Disable stops new compilations. With drain, all pending functions are
// compiled first (in batch when workers are configured).
func Disable(drain bool) {
	if drain && Config.InitState == JitInitialized {
		if Config.BatchCompileWorkers > 0 {
			multithreadCompileAll()
		} else {
			compileAllPending()
		}
	}
	Config.IsEnabled = false
	Config.AreTypeSlotsEnabled = false
}

func AreTypeSlotsEnabled() bool {
	return Config.InitState == JitInitialized && Config.AreTypeSlotsEnabled
}

func EnableTypeSlots() bool {
	if !IsEnabled() {
		return false
	}
	Config.AreTypeSlotsEnabled = true
	return true
}

func TinyFrame() bool {
	return Config.FrameMode == FrameModeTiny
}

func NoFrame() bool {
	return Config.FrameMode == FrameModeNone
}

// Finalize releases the back-end, the jit-list and all records.
// Subsequent operations are no-ops or report NotInitialized.
func Finalize() error {
	if Config.InitState != JitInitialized {
		return nil
	}

	if jitList != nil {
		jitList.Close()
		jitList = nil
	}

	Config.InitState = JitFinalized

	if jitCtx == nil {
		panic("jit_ctx not initialized")
	}
	jitCtx.Release()
	jitCtx = nil

	ThreadedCompileSerialize(func() {
		regFuncs = make(map[*interp.FuncObject]struct{})
		testMultithreadedFuncs = nil
	})
	perfFinalize()
	closeCompileTrace()
	return nil
}

// OnJitList decides eligibility: no list means everything is eligible,
// and statically compiled functions may bypass the list.
func OnJitList(fn *interp.FuncObject) bool {
	isStatic := fn.Code.Flags&interp.CodeFlagStaticallyCompiled != 0
	if jitList == nil || (isStatic && Config.CompileAllStaticFunctions) {
		return true
	}
	return jitList.Lookup(fn)
}

// IsCompiled reports whether v is a function compiled by this controller.
func IsCompiled(v interp.Value) bool {
	if jitCtx == nil {
		return false
	}
	fn, ok := v.(*interp.FuncObject)
	if !ok {
		return false
	}
	return jitCtx.DidCompile(fn)
}

// RegisterFunction queues fn for compilation if the JIT is enabled and
// fn is eligible. Returns whether it was registered.
func RegisterFunction(fn *interp.FuncObject) bool {
	if IsEnabled() && OnJitList(fn) {
		ThreadedCompileSerialize(func() {
			if Config.TestMultithreadedCompile {
				fn.Incref()
				testMultithreadedFuncs = append(testMultithreadedFuncs, fn)
			}
			regFuncs[fn] = struct{}{}
		})
		return true
	}
	return false
}

// UnregisterFunction removes fn from the pending set (called when the
// host destroys a function). The timing map is purged as well so stale
// pointer keys don't accumulate.
func UnregisterFunction(fn *interp.FuncObject) {
	if IsEnabled() {
		ThreadedCompileSerialize(func() {
			delete(regFuncs, fn)
			purgeTiming(fn)
		})
	}
}

// CompileFunction compiles one function. Safe to call re-entrantly; the
// serialization scope also guards against concurrent batch workers.
func CompileFunction(fn *interp.FuncObject) Result {
	res := UnknownError
	// Serialize here as we might have been called re-entrantly.
	ThreadedCompileSerialize(func() {
		res = compileFunction(fn)
	})
	return res
}

func compileFunction(fn *interp.FuncObject) Result {
	if jitCtx == nil {
		return NotInitialized
	}

	// The list of conditions here should be matched in compileWorker()
	if IsCompiled(fn) {
		return Ok
	}
	if !OnJitList(fn) {
		return CannotSpecialize
	}

	timer := StartCompilationTimer(fn)
	defer timer.Stop()

	// Don't attempt the compilation if there are already too many active
	// compilations or this function's code is one of them.
	if len(activeCompiles) == maxCompileDepth {
		return UnknownError
	}
	for _, code := range activeCompiles {
		if code == fn.Code {
			return UnknownError
		}
	}

	delete(regFuncs, fn)
	activeCompiles = append(activeCompiles, fn.Code)
	res := jitCtx.CompileFunc(fn)
	activeCompiles = activeCompiles[:len(activeCompiles)-1]
	return res
}

// ForceCompile compiles fn now if it is pending. Returns whether it was
// pending.
func ForceCompile(fn *interp.FuncObject) bool {
	pending := false
	ThreadedCompileSerialize(func() {
		_, pending = regFuncs[fn]
	})
	if pending {
		CompileFunction(fn)
		return true
	}
	return false
}

// compileAllPending compiles a snapshot of the pending set, serially.
func compileAllPending() {
	var snapshot []*interp.FuncObject
	ThreadedCompileSerialize(func() {
		for fn := range regFuncs {
			snapshot = append(snapshot, fn)
		}
	})
	for _, fn := range snapshot {
		CompileFunction(fn)
	}
}

func compileWorker() {
	DLog("Started compile worker")
	for fn := threadedCtx.NextFunction(); fn != nil; fn = threadedCtx.NextFunction() {
		timer := StartCompilationTimer(fn)
		// The list of conditions here should be matched in compileFunction()
		skip := false
		ThreadedCompileSerialize(func() {
			if (!Config.TestMultithreadedCompile && IsCompiled(fn)) || !OnJitList(fn) {
				skip = true
			}
		})
		if skip {
			timer.Stop()
			continue
		}
		CompileWorkersAttempted.Add(1)
		if jitCtx.CompileFunc(fn) == Retry {
			ThreadedCompileSerialize(func() {
				CompileWorkersRetries++
				threadedCtx.RetryFunction(fn)
				Log("Retrying compile of function: %s", fn.Fullname())
			})
		}
		timer.Stop()
	}
	DLog("Finished compile worker")
}

// multithreadCompileAll drains the pending set with a cohort of worker
// goroutines. The GIL's single-owner check is suspended for the
// duration: conceptually the cohort holds the GIL collectively, taking
// over responsibility for write serialization among its own members
// (ThreadedCompileSerialize). The GIL itself is not released, which
// keeps partially constructed objects invisible to unrelated threads.
func multithreadCompileAll() {
	if jitCtx == nil {
		panic("JIT not initialized")
	}
	if Config.BatchCompileWorkers == 0 {
		panic("Zero workers for compile")
	}

	oldCheck := interp.GIL.SetCheckEnabled(false)
	defer interp.GIL.SetCheckEnabled(oldCheck)

	var snapshot []*interp.FuncObject
	for fn := range regFuncs {
		snapshot = append(snapshot, fn)
	}
	threadedCtx.StartCompile(snapshot)
	regFuncs = make(map[*interp.FuncObject]struct{})

	var workers sync.WaitGroup
	// Hold the serialization scope while spawning: thread creation can
	// re-enter host code in some embeddings.
	ThreadedCompileSerialize(func() {
		for i := 0; i < Config.BatchCompileWorkers; i++ {
			name := fmt.Sprintf("compile-worker-%d", i)
			workers.Add(1)
			go func() {
				defer workers.Done()
				interp.RunThread(name, compileWorker)
			}()
		}
	})
	workers.Wait()

	// Retries are rare and often need single-threaded context; drain
	// them serially on the calling thread.
	for _, fn := range threadedCtx.EndCompile() {
		CompileFunction(fn)
	}
}

// TestMultithreadedCompile force-recompiles the functions captured in
// test mode, through the full batch machinery.
func TestMultithreadedCompile() {
	if !Config.TestMultithreadedCompile {
		panic("test_multithreaded_compile not enabled")
	}
	saved := make(map[*interp.FuncObject]struct{}, len(regFuncs))
	for fn := range regFuncs {
		saved[fn] = struct{}{}
	}
	regFuncs = make(map[*interp.FuncObject]struct{})
	for _, fn := range testMultithreadedFuncs {
		regFuncs[fn] = struct{}{}
	}
	CompileWorkersAttempted.Store(0)
	CompileWorkersRetries = 0
	Log("(Re)compiling %d functions", len(regFuncs))
	start := time.Now()
	multithreadCompileAll()
	Log("Took %d ms, compiles attempted: %d, compiles retried: %d",
		time.Since(start).Milliseconds(), CompileWorkersAttempted.Load(), CompileWorkersRetries)
	regFuncs = saved
	for _, fn := range testMultithreadedFuncs {
		fn.Decref()
	}
	testMultithreadedFuncs = nil
}

// SpecializeType asks the back-end to install optimized dispatch slots.
func SpecializeType(t *interp.TypeObject, slots *TypeSlots) Result {
	if jitCtx == nil {
		return NotInitialized
	}
	if !AreTypeSlotsEnabled() {
		return CannotSpecialize
	}
	return jitCtx.SpecializeType(t, slots)
}
