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

// FrameObject is the per-call bookkeeping object visible to debuggers
// and tracebacks. The JIT may elide it depending on frame mode.
type FrameObject struct {
	Object
	Fn        *FuncObject
	Executing bool
	// LastInstr is the index of the last executed instruction. Probes
	// use LastInstr < 0 as "not yet started".
	LastInstr int
}

func NewFrame(fn *FuncObject) *FrameObject {
	return &FrameObject{Object: newObject(), Fn: fn, LastInstr: -1}
}

// ThreadState is the per-thread interpreter state.
type ThreadState struct {
	Frame *FrameObject
	// PendingExc is the exception to be raised at the next opportunity,
	// or nil.
	PendingExc Value
	// GenReturn receives the final return value of a generator when it
	// completes.
	GenReturn Value
}

func NewThreadState() *ThreadState {
	return &ThreadState{}
}

// SetPendingException stores exc for delivery into resumed code.
func (ts *ThreadState) SetPendingException(exc Value) {
	ts.PendingExc = exc
}

// TakePendingException clears and returns the pending exception.
func (ts *ThreadState) TakePendingException() Value {
	exc := ts.PendingExc
	ts.PendingExc = nil
	return exc
}
