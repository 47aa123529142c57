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
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
)

type InitState int

const (
	JitNotInitialized InitState = iota
	JitInitialized
	JitFinalized
)

type FrameMode int

const (
	FrameModeNormal FrameMode = iota
	FrameModeTiny
	FrameModeNone
)

// DefaultCodeCacheSize is the executable memory reserved at init.
const DefaultCodeCacheSize = 2 * 1024 * 1024

// ConfigT holds all flags of the JIT. Everything is resolved exactly
// once during Initialize and only InitState/IsEnabled/type slots change
// afterwards (Enable/Disable/Finalize).
type ConfigT struct {
	InitState InitState
	IsEnabled bool

	FrameMode                 FrameMode
	AreTypeSlotsEnabled       bool
	AllowJitListWildcards     bool
	CompileAllStaticFunctions bool
	BatchCompileWorkers       int
	TestMultithreadedCompile  bool
	CodeCacheSize             int64

	JitListFile  string
	JitListWatch bool

	DebugRefcount    bool
	DumpHir          bool
	DumpHirPasses    bool
	DumpFinalHir     bool
	DumpLir          bool
	DumpLirNoOrigin  bool
	DisasFuncs       bool
	GdbSupport       bool
	GdbStubsSupport  bool
	GdbWriteElf      bool
	PerfMap          bool
	CompileTraceFile string
}

var Config ConfigT

// X options as passed on the command line (-X jit, -X jit-list-file=x).
// Presence counts as "set" even without a value.
var xoptions = make(map[string]string)

func SetXOption(opt string) {
	name, value, _ := strings.Cut(opt, "=")
	xoptions[name] = value
}

func ClearXOptions() {
	xoptions = make(map[string]string)
}

func IsXOptionSet(name string) bool {
	_, ok := xoptions[name]
	return ok
}

// envNameForOption maps jit-foo-bar to PYTHONJITFOOBAR.
func envNameForOption(opt string) string {
	return "PYTHON" + strings.ToUpper(strings.ReplaceAll(opt, "-", ""))
}

// isEnvTruthy: set to a non-empty value that does not start with "0"?
func isEnvTruthy(name string) bool {
	val := os.Getenv(name)
	return val != "" && !strings.HasPrefix(val, "0")
}

// isFlagSet: X option present, or env var truthy.
func isFlagSet(opt string) bool {
	return IsXOptionSet(opt) || isEnvTruthy(envNameForOption(opt))
}

// flagString returns the X option value if set and non-empty, else a
// non-empty env value, else "".
func flagString(opt string) string {
	if v, ok := xoptions[opt]; ok && v != "" {
		return v
	}
	return os.Getenv(envNameForOption(opt))
}

// flagLong parses an integer flag; invalid values log and fall back.
func flagLong(opt string, def int64) int64 {
	if v, ok := xoptions[opt]; ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		Log("Invalid value for %s: %s", opt, v)
	}
	env := envNameForOption(opt)
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		Log("Invalid value for %s: %s", env, v)
	}
	return def
}

// flagBytes parses a human readable size ("2MiB", "512k"); invalid
// values log and fall back.
func flagBytes(opt string, def int64) int64 {
	v := flagString(opt)
	if v == "" {
		return def
	}
	n, err := units.RAMInBytes(v)
	if err != nil {
		Log("Invalid value for %s: %s", opt, v)
		return def
	}
	return n
}
