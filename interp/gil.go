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

import (
	"sync"
	"sync/atomic"

	"github.com/jtolds/gls"
)

// The interpreter serializes all object mutation through one coarse lock.
// Ownership is tracked per goroutine via goroutine local storage so that
// debug checks can verify the single-owner invariant. The JIT deliberately
// suspends that check during batch compilation (see jit package), where a
// cohort of worker goroutines shares the lock collectively.

type threadToken struct {
	name string
}

var threadMgr = gls.NewContextManager()

const threadKey = "interp.thread"

// RunThread runs fn with its own thread identity. Code that acquires the
// GIL outside of RunThread is still legal; it just cannot be attributed
// to a thread by the ownership check.
func RunThread(name string, fn func()) {
	tok := &threadToken{name: name}
	threadMgr.SetValues(gls.Values{threadKey: tok}, fn)
}

func currentThread() *threadToken {
	v, ok := threadMgr.GetValue(threadKey)
	if !ok {
		return nil
	}
	return v.(*threadToken)
}

type GlobalLock struct {
	mu           sync.Mutex
	owner        atomic.Pointer[threadToken]
	held         atomic.Bool
	checkEnabled atomic.Bool
}

// GIL is the global interpreter lock of the embedding runtime.
var GIL GlobalLock

func init() {
	GIL.checkEnabled.Store(true)
}

func (l *GlobalLock) Acquire() {
	l.mu.Lock()
	l.held.Store(true)
	l.owner.Store(currentThread())
}

func (l *GlobalLock) Release() {
	l.owner.Store(nil)
	l.held.Store(false)
	l.mu.Unlock()
}

// SetCheckEnabled toggles the single-owner debug check and returns the
// previous setting, so callers can restore it scoped.
func (l *GlobalLock) SetCheckEnabled(on bool) bool {
	return l.checkEnabled.Swap(on)
}

func (l *GlobalLock) CheckEnabled() bool {
	return l.checkEnabled.Load()
}

// AssertHeld panics if the check is enabled and the lock is not held by
// the calling thread. A caller without a thread identity only gets the
// weaker "held by somebody" check.
func (l *GlobalLock) AssertHeld() {
	if !l.checkEnabled.Load() {
		return
	}
	if !l.held.Load() {
		panic("GIL is not held")
	}
	own := l.owner.Load()
	cur := currentThread()
	if own != nil && cur != nil && own != cur {
		panic("GIL is held by thread " + own.name + ", not by " + cur.name)
	}
}
