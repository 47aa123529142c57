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

	"github.com/alexdoesh/cinder/interp"
)

// ModuleName is the builtin module the introspection surface lives in.
const ModuleName = "cinderjit"

func funcArg(a interp.Value) *interp.FuncObject {
	fn, ok := a.(*interp.FuncObject)
	if !ok {
		panic("arg 1 must be a function")
	}
	return fn
}

// registerIntrospection publishes the cinderjit builtin module.
func registerIntrospection() {
	m := interp.NewModule(ModuleName)
	m.DeclareTitle("JIT")
	m.Declare(&interp.Declaration{
		"disable", "Disable the jit.",
		0, 1,
		[]interp.DeclarationParameter{
			{"drain", "bool", "compile pending functions before disabling (default true)"},
		}, "nil",
		func(a ...interp.Value) interp.Value {
			drain := true
			if len(a) == 1 {
				b, ok := a[0].(bool)
				if !ok {
					panic("disable expects bool indicating to compile pending functions")
				}
				drain = b
			}
			Disable(drain)
			return interp.None
		},
	})
	m.Declare(&interp.Declaration{
		"is_jit_compiled", "Check if a function is jit compiled.",
		1, 1,
		[]interp.DeclarationParameter{
			{"func", "func", "function to check"},
		}, "bool",
		func(a ...interp.Value) interp.Value {
			return IsCompiled(a[0])
		},
	})
	m.Declare(&interp.Declaration{
		"force_compile", "Force a function to be JIT compiled if it hasn't yet",
		1, 1,
		[]interp.DeclarationParameter{
			{"func", "func", "function to compile"},
		}, "bool",
		func(a ...interp.Value) interp.Value {
			return ForceCompile(funcArg(a[0]))
		},
	})
	m.Declare(&interp.Declaration{
		"disassemble", "Disassemble JIT compiled functions",
		1, 1,
		[]interp.DeclarationParameter{
			{"func", "func", "compiled function"},
		}, "nil",
		func(a ...interp.Value) interp.Value {
			fn := funcArg(a[0])
			if jitCtx == nil || !jitCtx.DidCompile(fn) {
				panic("function is not jit compiled")
			}
			disas, _ := jitCtx.Disassemble(fn)
			fmt.Println(disas)
			return interp.None
		},
	})
	m.Declare(&interp.Declaration{
		"print_hir", "Print the HIR for a jitted function to stdout.",
		1, 1,
		[]interp.DeclarationParameter{
			{"func", "func", "compiled function"},
		}, "nil",
		func(a ...interp.Value) interp.Value {
			fn := funcArg(a[0])
			if jitCtx == nil || !jitCtx.DidCompile(fn) {
				panic("function is not jit compiled")
			}
			hir, _ := jitCtx.PrintHir(fn)
			fmt.Println(hir)
			return interp.None
		},
	})
	m.Declare(&interp.Declaration{
		"jit_frame_mode", "Get JIT frame mode (0 = normal frames, 1 = tiny frames, 2 = no frames)",
		0, 0,
		nil, "int",
		func(a ...interp.Value) interp.Value {
			return int64(Config.FrameMode)
		},
	})
	m.Declare(&interp.Declaration{
		"get_jit_list", "Get the JIT-list",
		0, 0,
		nil, "list",
		func(a ...interp.Value) interp.Value {
			if jitList == nil {
				return interp.None
			}
			return jitList.List()
		},
	})
	m.Declare(&interp.Declaration{
		"get_supported_opcodes", "Return a set of all supported opcodes, as ints.",
		0, 0,
		nil, "set",
		func(a ...interp.Value) interp.Value {
			set := make(map[int64]bool)
			if jitCtx != nil {
				for _, op := range jitCtx.compiler.SupportedOpcodes() {
					set[int64(op)] = true
				}
			}
			return set
		},
	})
	m.Declare(&interp.Declaration{
		"get_compiled_functions", "Return a list of functions that are currently JIT-compiled.",
		0, 0,
		nil, "list",
		func(a ...interp.Value) interp.Value {
			if jitCtx == nil {
				return []interp.Value{}
			}
			fns := jitCtx.GetCompiledFunctions()
			out := make([]interp.Value, len(fns))
			for i, fn := range fns {
				out[i] = fn
			}
			return out
		},
	})
	m.Declare(&interp.Declaration{
		"get_compilation_time", "Return the total time used for JIT compiling functions in milliseconds.",
		0, 0,
		nil, "int",
		func(a ...interp.Value) interp.Value {
			return TotalCompilationTime().Milliseconds()
		},
	})
	m.Declare(&interp.Declaration{
		"get_function_compilation_time", "Return the time used for JIT compiling a given function in milliseconds.",
		1, 1,
		[]interp.DeclarationParameter{
			{"func", "func", "compiled function"},
		}, "int",
		func(a ...interp.Value) interp.Value {
			fn, ok := a[0].(*interp.FuncObject)
			if !ok {
				return interp.None
			}
			d, ok := FunctionCompilationTime(fn)
			if !ok {
				return interp.None
			}
			return d.Milliseconds()
		},
	})
	m.Declare(&interp.Declaration{
		"get_compiled_size", "Return code size in bytes for a JIT-compiled function.",
		1, 1,
		[]interp.DeclarationParameter{
			{"func", "func", "compiled function"},
		}, "int",
		func(a ...interp.Value) interp.Value {
			if jitCtx == nil {
				return int64(0)
			}
			return int64(jitCtx.GetCodeSize(funcArg(a[0])))
		},
	})
	m.Declare(&interp.Declaration{
		"get_compiled_stack_size", "Return stack size in bytes for a JIT-compiled function.",
		1, 1,
		[]interp.DeclarationParameter{
			{"func", "func", "compiled function"},
		}, "int",
		func(a ...interp.Value) interp.Value {
			if jitCtx == nil {
				return int64(0)
			}
			return int64(jitCtx.GetStackSize(funcArg(a[0])))
		},
	})
	m.Declare(&interp.Declaration{
		"get_compiled_spill_stack_size", "Return stack size in bytes used for register spills for a JIT-compiled function.",
		1, 1,
		[]interp.DeclarationParameter{
			{"func", "func", "compiled function"},
		}, "int",
		func(a ...interp.Value) interp.Value {
			if jitCtx == nil {
				return int64(0)
			}
			return int64(jitCtx.GetSpillStackSize(funcArg(a[0])))
		},
	})
	m.Declare(&interp.Declaration{
		"jit_force_normal_frame", "Decorator forcing a function to always use normal frame mode when JIT.",
		1, 1,
		[]interp.DeclarationParameter{
			{"func", "func", "function to mark"},
		}, "func",
		func(a ...interp.Value) interp.Value {
			fn := funcArg(a[0])
			fn.Code.Flags |= interp.CodeFlagNormalFrame
			fn.Incref()
			return fn
		},
	})
	m.Declare(&interp.Declaration{
		"test_multithreaded_compile", "Force multi-threaded recompile of still existing JIT functions for test",
		0, 0,
		nil, "nil",
		func(a ...interp.Value) interp.Value {
			TestMultithreadedCompile()
			return interp.None
		},
	})
	m.Declare(&interp.Declaration{
		"is_test_multithreaded_compile_enabled", "Return True if test_multithreaded_compile mode is enabled",
		0, 0,
		nil, "bool",
		func(a ...interp.Value) interp.Value {
			return Config.TestMultithreadedCompile
		},
	})
	m.Declare(&interp.Declaration{
		"get_compile_session_id", "Return the per-process compile session id (regenerated after fork).",
		0, 0,
		nil, "string",
		func(a ...interp.Value) interp.Value {
			return CompileSessionID()
		},
	})
}
