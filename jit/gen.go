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
	"math"
	"unsafe"

	"github.com/alexdoesh/cinder/interp"
)

// Bridge between the host's generator machinery and the resume
// trampolines of compiled code. The continuation block hangs off the
// generator object's JitData and is shared memory between this
// controller and the back-end; its layout is part of the back-end
// contract and versioned with it.

type GenState int

const (
	GenStateJustStarted GenState = iota
	GenStateRunning
	GenStateCompleted
)

// GenYieldPoint describes the suspension site a generator currently
// rests at: GC traversal, reference release and yield-from accessors.
type GenYieldPoint struct {
	VisitRefs   func(g *interp.Generator, visit func(interp.Value))
	ReleaseRefs func(g *interp.Generator)
	YieldFrom   func(block *GenDataBlock) interp.Value
}

// GenDataBlock is the continuation block of one suspended function
// instance. Lifetime matches the host generator object.
type GenDataBlock struct {
	State       GenState
	YieldPoint  *GenYieldPoint
	ResumeEntry func(g *interp.Generator, arg interp.Value, ts *interp.ThreadState, finishYieldFrom bool) interp.Value
	// SpillFrame is the back-end-owned register spill area.
	SpillFrame []interp.Value
}

// GenBlock returns the continuation block of a compiled generator.
func GenBlock(g *interp.Generator) *GenDataBlock {
	block := (*GenDataBlock)(g.JitData)
	if block == nil {
		panic("Generator missing JIT data")
	}
	return block
}

func init() {
	interp.JITGenSend = GenSend
	interp.JITGenDealloc = GenDealloc
}

// GenSend resumes a compiled generator with arg. The bool result is
// false once the generator completed. With exc set, arg must be None
// and a pending exception must be set on the thread state; the resume
// entry then receives nil to signal exception delivery.
func GenSend(g *interp.Generator, arg interp.Value, exc bool, f *interp.FrameObject, ts *interp.ThreadState, finishYieldFrom bool) (interp.Value, bool) {
	block := GenBlock(g)

	// state should be valid and the generator should not be completed
	if block.State != GenStateJustStarted && block.State != GenStateRunning {
		panic("Invalid JIT generator state")
	}
	block.State = GenStateRunning

	// compiled generators use a nil arg to indicate an exception
	if exc {
		if !interp.IsNone(arg) {
			panic("Arg should be None when injecting an exception")
		}
		if ts.PendingExc == nil {
			panic("No pending exception set on thread state")
		}
		arg = nil
	} else if arg == nil {
		arg = interp.None
	}

	if f != nil {
		// Set up the thread state as the prologue of a compiled
		// function would.
		ts.Frame = f
		f.Executing = true
		// This compensates for the decref which occurs when the frame
		// is unlinked.
		f.Incref()
		// This satisfies code which uses LastInstr < 0 to check if a
		// generator is not yet started, but still provides a garbage
		// value in case anything tries to actually use LastInstr.
		f.LastInstr = math.MaxInt
	}

	if block.YieldPoint == nil {
		panic("Attempting to resume a generator with no yield point")
	}
	result := block.ResumeEntry(g, arg, ts, finishYieldFrom)

	if result == nil {
		block.State = GenStateCompleted
		return nil, false
	}
	return result, true
}

// GenVisitRefs traverses the references pinned by the current yield
// point, for the host's garbage collector.
func GenVisitRefs(g *interp.Generator, visit func(interp.Value)) {
	block := GenBlock(g)
	if block.State != GenStateCompleted && block.YieldPoint != nil {
		block.YieldPoint.VisitRefs(g, visit)
	}
}

// GenDealloc releases the references pinned by the yield point and
// frees the continuation block.
func GenDealloc(g *interp.Generator) {
	block := GenBlock(g)
	if block.State != GenStateCompleted && block.YieldPoint != nil {
		block.YieldPoint.ReleaseRefs(g)
	}
	block.YieldPoint = nil
	block.SpillFrame = nil
	g.JitData = unsafe.Pointer(nil)
}

// GenYieldFromValue returns the object a suspended generator is
// currently delegating to via yield from, increfed for the caller, or
// nil.
func GenYieldFromValue(g *interp.Generator) interp.Value {
	block := GenBlock(g)
	var yf interp.Value
	if block.State != GenStateCompleted && block.YieldPoint != nil {
		yf = block.YieldPoint.YieldFrom(block)
		if yf != nil {
			interp.XIncref(yf)
		}
	}
	return yf
}
