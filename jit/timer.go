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
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/launix-de/NonLockingReadMap"

	"github.com/alexdoesh/cinder/interp"
)

// totalCompileTime accumulates wall-clock compilation time (ns).
var totalCompileTime atomic.Int64

type funcTiming struct {
	key      uintptr
	duration time.Duration
}

func (t funcTiming) GetKey() uintptr {
	return t.key
}

func (t funcTiming) ComputeSize() uint {
	return uint(unsafe.Sizeof(t))
}

var timeFunctions = NonLockingReadMap.New[funcTiming, uintptr]()

// CompilationTimer measures one compilation. Stop (usually deferred) is
// guaranteed to run on every exit path and records the elapsed time both
// into the process total and against the function. The first recorded
// time for a function wins; re-compiles don't overwrite it.
type CompilationTimer struct {
	start time.Time
	fn    *interp.FuncObject
}

func StartCompilationTimer(fn *interp.FuncObject) *CompilationTimer {
	return &CompilationTimer{start: time.Now(), fn: fn}
}

func (t *CompilationTimer) Stop() {
	elapsed := time.Since(t.start)
	totalCompileTime.Add(int64(elapsed))
	traceCompile(t.fn.Fullname(), t.start, elapsed)
	ThreadedCompileSerialize(func() {
		key := funcKey(t.fn)
		if timeFunctions.Get(key) == nil {
			rec := funcTiming{key: key, duration: elapsed}
			timeFunctions.Set(&rec)
		}
	})
}

// TotalCompilationTime returns the accumulated wall-clock compile time.
func TotalCompilationTime() time.Duration {
	return time.Duration(totalCompileTime.Load())
}

// FunctionCompilationTime returns the recorded compile time for fn, or
// false if it was never timed.
func FunctionCompilationTime(fn *interp.FuncObject) (time.Duration, bool) {
	rec := timeFunctions.Get(funcKey(fn))
	if rec == nil {
		return 0, false
	}
	return rec.duration, true
}

func purgeTiming(fn *interp.FuncObject) {
	timeFunctions.Remove(funcKey(fn))
}

func resetTiming() {
	totalCompileTime.Store(0)
	for _, rec := range timeFunctions.GetAll() {
		timeFunctions.Remove((*rec).GetKey())
	}
}
