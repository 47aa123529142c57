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
	"sync"

	"github.com/google/uuid"
)

// perf integration: symbol map in the format perf(1) picks up from
// /tmp/perf-<pid>.map, plus a per-process session id for correlating
// dumps. Everything here is per-process and must be rebuilt in a forked
// child.
var perfMu sync.Mutex
var perfPid int
var perfSessionID string
var perfMapFile *os.File

func perfInit() {
	perfMu.Lock()
	defer perfMu.Unlock()
	perfPid = os.Getpid()
	perfSessionID = uuid.New().String()
	if perfMapFile != nil {
		perfMapFile.Close()
		perfMapFile = nil
	}
	if Config.PerfMap {
		name := fmt.Sprintf("/tmp/perf-%d.map", perfPid)
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			Log("Couldn't open perf map file %s (%s)", name, err)
			return
		}
		perfMapFile = f
		DLog("perf map %s, compile session %s", name, perfSessionID)
	}
}

// perfMapEntry publishes one compiled symbol. Lines are small enough to
// be written atomically by the OS.
func perfMapEntry(start uintptr, size int, name string) {
	perfMu.Lock()
	defer perfMu.Unlock()
	if perfMapFile == nil {
		return
	}
	fmt.Fprintf(perfMapFile, "%x %x %s\n", start, size, name)
}

func perfFinalize() {
	perfMu.Lock()
	defer perfMu.Unlock()
	if perfMapFile != nil {
		perfMapFile.Close()
		perfMapFile = nil
	}
}

// AfterForkChild re-initializes per-process sampling state after fork.
func AfterForkChild() {
	perfInit()
}

// CompileSessionID returns the per-process compile session id.
func CompileSessionID() string {
	perfMu.Lock()
	defer perfMu.Unlock()
	return perfSessionID
}
