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
package main

import (
	"github.com/alexdoesh/cinder/interp"
)

// buildDemoFunctions assembles a few bytecode functions so the shell has
// something to register, compile and call.
func buildDemoFunctions() map[string]*interp.FuncObject {
	fns := make(map[string]*interp.FuncObject)

	// fib(n): n if n < 2 else fib(n-1) + fib(n-2)
	fibCode := &interp.CodeObject{
		Qualname: "fib",
		NumArgs:  1,
		Consts:   []interp.Value{int64(2), int64(1), nil /* self */},
		Instrs: []interp.Instr{
			{Op: interp.OpLoadArg, Arg: 0},
			{Op: interp.OpLoadConst, Arg: 0},
			{Op: interp.OpLess},
			{Op: interp.OpJumpIfFalse, Arg: 6},
			{Op: interp.OpLoadArg, Arg: 0},
			{Op: interp.OpReturn},
			{Op: interp.OpLoadConst, Arg: 2},
			{Op: interp.OpLoadArg, Arg: 0},
			{Op: interp.OpLoadConst, Arg: 1},
			{Op: interp.OpSub},
			{Op: interp.OpCallFunc, Arg: 1},
			{Op: interp.OpLoadConst, Arg: 2},
			{Op: interp.OpLoadArg, Arg: 0},
			{Op: interp.OpLoadConst, Arg: 0},
			{Op: interp.OpSub},
			{Op: interp.OpCallFunc, Arg: 1},
			{Op: interp.OpAdd},
			{Op: interp.OpReturn},
		},
	}
	fib := interp.NewFunc("demo", fibCode)
	fibCode.Consts[2] = fib
	fns["fib"] = fib

	// poly(a, b, c): a*b + c
	polyCode := &interp.CodeObject{
		Qualname: "poly",
		NumArgs:  3,
		Instrs: []interp.Instr{
			{Op: interp.OpLoadArg, Arg: 0},
			{Op: interp.OpLoadArg, Arg: 1},
			{Op: interp.OpMul},
			{Op: interp.OpLoadArg, Arg: 2},
			{Op: interp.OpAdd},
			{Op: interp.OpReturn},
		},
	}
	fns["poly"] = interp.NewFunc("demo", polyCode)

	// echo2(a): yield a; yield a+1; the final send value becomes the
	// generator's return value
	echoCode := &interp.CodeObject{
		Qualname: "echo2",
		NumArgs:  1,
		Consts:   []interp.Value{int64(1)},
		Instrs: []interp.Instr{
			{Op: interp.OpLoadArg, Arg: 0},
			{Op: interp.OpYield},
			{Op: interp.OpPop},
			{Op: interp.OpLoadArg, Arg: 0},
			{Op: interp.OpLoadConst, Arg: 0},
			{Op: interp.OpAdd},
			{Op: interp.OpYield},
			{Op: interp.OpReturn},
		},
	}
	fns["echo2"] = interp.NewFunc("demo", echoCode)

	return fns
}

// registerDemoModule exposes the demo functions as a builtin module so
// they can be called and drained from the shell.
func registerDemoModule(fns map[string]*interp.FuncObject) {
	m := interp.NewModule("demo")
	m.DeclareTitle("Demo")
	m.Declare(&interp.Declaration{
		"call", "Calls a demo function with integer arguments",
		1, 1000,
		[]interp.DeclarationParameter{
			{"func", "func", "demo function (fib, poly, echo2)"},
			{"args...", "int", "arguments"},
		}, "any",
		func(a ...interp.Value) interp.Value {
			fn, ok := a[0].(*interp.FuncObject)
			if !ok {
				panic("arg 1 must be a function")
			}
			ts := interp.NewThreadState()
			result := fn.Call(ts, a[1:]...)
			if g, ok := result.(*interp.Generator); ok {
				// drain the generator so the shell shows something useful
				var yielded []interp.Value
				for v, more := g.Send(ts, nil); more; v, more = g.Send(ts, nil) {
					yielded = append(yielded, v)
				}
				return yielded
			}
			return result
		},
	})
	m.Declare(&interp.Declaration{
		"list", "Lists the demo functions",
		0, 0,
		nil, "list",
		func(a ...interp.Value) interp.Value {
			var out []interp.Value
			for _, fn := range fns {
				out = append(out, fn)
			}
			return out
		},
	})
}
