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
	"sync/atomic"

	"github.com/jtolds/gls"

	"github.com/alexdoesh/cinder/interp"
)

// ThreadedCompileContext is the work queue shared by the batch compile
// workers, plus the retry list consumed after they join.
type ThreadedCompileContext struct {
	mu     sync.Mutex
	queue  []*interp.FuncObject
	retry  []*interp.FuncObject
	active atomic.Bool
}

var threadedCtx ThreadedCompileContext

// StartCompile seeds the queue and enters batch mode.
func (t *ThreadedCompileContext) StartCompile(work []*interp.FuncObject) {
	t.mu.Lock()
	t.queue = append(t.queue[:0], work...)
	t.retry = nil
	t.mu.Unlock()
	t.active.Store(true)
}

// NextFunction pops the next function, or nil when the queue is drained.
func (t *ThreadedCompileContext) NextFunction() *interp.FuncObject {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return nil
	}
	fn := t.queue[len(t.queue)-1]
	t.queue = t.queue[:len(t.queue)-1]
	return fn
}

// RetryFunction records a function for a serial re-attempt after the
// workers have joined. Callers hold ThreadedCompileSerialize.
func (t *ThreadedCompileContext) RetryFunction(fn *interp.FuncObject) {
	t.retry = append(t.retry, fn)
}

// EndCompile leaves batch mode and hands out the retry list.
func (t *ThreadedCompileContext) EndCompile() []*interp.FuncObject {
	t.active.Store(false)
	t.mu.Lock()
	retry := t.retry
	t.retry = nil
	t.mu.Unlock()
	return retry
}

// InCompile reports whether batch mode is active.
func (t *ThreadedCompileContext) InCompile() bool {
	return t.active.Load()
}

// Write serialization among the batch compile worker cohort. While batch
// mode is active the workers hold the GIL collectively and never release
// it, so any mutation of refcounted interpreter state must go through
// this scope instead. Outside batch mode the GIL already serializes
// everything and the scope degrades to a plain call.
var serializeMu sync.Mutex
var serializeMgr = gls.NewContextManager()

const serializeKey = "jit.serialize"

// ThreadedCompileSerialize runs fn under the cohort write lock. Nested
// acquisition on the same goroutine is a no-wait identity, so compile
// paths may be entered re-entrantly.
func ThreadedCompileSerialize(fn func()) {
	if !threadedCtx.InCompile() {
		fn()
		return
	}
	if _, held := serializeMgr.GetValue(serializeKey); held {
		fn()
		return
	}
	serializeMu.Lock()
	defer serializeMu.Unlock()
	serializeMgr.SetValues(gls.Values{serializeKey: true}, fn)
}
