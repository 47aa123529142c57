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

/*
cinder back-end
---------------
 - lowers the interpreter's bytecode into subroutine-threaded code: a
   flat word stream of (opcode, argument) pairs living in the code cache
 - the installed entry point walks that stream with a tight dispatch
   loop; constants stay in the code object's pool
 - suspendable functions get a continuation block so yields can park the
   word-stream position and the operand stack as a spill frame

there are two obvious next steps for this back-end:
 - fuse constant chains at lowering time so LOAD_CONST/BINARY_* pairs
   collapse before emission
 - emit real machine code per architecture behind the same entry ABI
*/
package codegen

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/alexdoesh/cinder/interp"
	"github.com/alexdoesh/cinder/jit"
)

// compiledFunc is everything the back-end keeps per function.
type compiledFunc struct {
	code  []byte // threaded code, lives in the cache
	stack int    // operand stack bytes
	spill int    // spill area bytes for suspension
	hir   string
	disas string
}

// Compiler implements the back-end surface the JIT controller drives.
type Compiler struct {
	mu        sync.Mutex
	cache     *CodeCache
	funcs     map[*interp.FuncObject]*compiledFunc
	retryOnce map[*interp.FuncObject]int
}

func New() *Compiler {
	return &Compiler{
		funcs:     make(map[*interp.FuncObject]*compiledFunc),
		retryOnce: make(map[*interp.FuncObject]int),
	}
}

// InjectRetry makes the next n Compile calls for fn report Retry, for
// exercising the controller's retry path.
func (c *Compiler) InjectRetry(fn *interp.FuncObject, n int) {
	c.mu.Lock()
	c.retryOnce[fn] = n
	c.mu.Unlock()
}

// SupportedOpcodes lists the opcodes this back-end can lower.
func (c *Compiler) SupportedOpcodes() []interp.Opcode {
	ops := make([]interp.Opcode, 0, interp.NumOpcodes)
	for op := 0; op < interp.NumOpcodes; op++ {
		ops = append(ops, interp.Opcode(op))
	}
	return ops
}

func (c *Compiler) supported(op interp.Opcode) bool {
	return int(op) < interp.NumOpcodes
}

// Compile lowers fn and installs its native entry. Idempotent.
func (c *Compiler) Compile(fn *interp.FuncObject) jit.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.funcs[fn]; ok {
		return jit.Ok
	}
	if n := c.retryOnce[fn]; n > 0 {
		c.retryOnce[fn] = n - 1
		return jit.Retry
	}
	code := fn.Code
	for _, in := range code.Instrs {
		if !c.supported(in.Op) {
			return jit.CannotSpecialize
		}
	}

	if c.cache == nil {
		size := int(jit.Config.CodeCacheSize)
		if size == 0 {
			size = jit.DefaultCodeCacheSize
		}
		cache, err := newCodeCache(size)
		if err != nil {
			jit.Log("Unable to map code cache: %s", err)
			return jit.UnknownError
		}
		c.cache = cache
	}

	need := 8 * len(code.Instrs)
	words := c.cache.Alloc(need)
	if words == nil {
		jit.Log("Code cache exhausted while compiling %s", fn.Fullname())
		return jit.UnknownError
	}
	words = words[:need]
	for i, in := range code.Instrs {
		binary.LittleEndian.PutUint32(words[8*i:], uint32(in.Op))
		binary.LittleEndian.PutUint32(words[8*i+4:], uint32(in.Arg))
	}

	cf := &compiledFunc{
		code:  words,
		stack: 8 * (code.MaxStack() + code.NumArgs),
		spill: 8 * code.MaxStack(),
		hir:   renderHir(fn),
		disas: renderDisas(fn, words),
	}
	c.funcs[fn] = cf

	if code.IsGenerator() {
		fn.SetEntry(c.makeGenEntry(cf))
	} else {
		fn.SetEntry(c.makeEntry(cf))
	}
	return jit.Ok
}

// execState walks the emitted word stream. run returns the yielded or
// returned value; the bool is true when the function finished.
type execState struct {
	code  []byte
	fn    *interp.FuncObject
	args  []interp.Value
	stack []interp.Value
	pc    int
}

func (st *execState) push(v interp.Value) {
	st.stack = append(st.stack, v)
}

func (st *execState) pop() interp.Value {
	v := st.stack[len(st.stack)-1]
	st.stack = st.stack[:len(st.stack)-1]
	return v
}

func asInt(v interp.Value) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	panic(fmt.Sprintf("expected integer, got %T", v))
}

func (st *execState) run(ts *interp.ThreadState) (interp.Value, bool) {
	consts := st.fn.Code.Consts
	n := len(st.code) / 8
	for st.pc < n {
		op := interp.Opcode(binary.LittleEndian.Uint32(st.code[8*st.pc:]))
		arg := int(int32(binary.LittleEndian.Uint32(st.code[8*st.pc+4:])))
		st.pc++
		switch op {
		case interp.OpLoadConst:
			st.push(consts[arg])
		case interp.OpLoadArg:
			st.push(st.args[arg])
		case interp.OpAdd:
			b, a := asInt(st.pop()), asInt(st.pop())
			st.push(a + b)
		case interp.OpSub:
			b, a := asInt(st.pop()), asInt(st.pop())
			st.push(a - b)
		case interp.OpMul:
			b, a := asInt(st.pop()), asInt(st.pop())
			st.push(a * b)
		case interp.OpLess:
			b, a := asInt(st.pop()), asInt(st.pop())
			st.push(a < b)
		case interp.OpJump:
			st.pc = arg
		case interp.OpJumpIfFalse:
			if cond, ok := st.pop().(bool); !ok || !cond {
				st.pc = arg
			}
		case interp.OpCallFunc:
			args := make([]interp.Value, arg)
			for i := arg - 1; i >= 0; i-- {
				args[i] = st.pop()
			}
			callee, ok := st.pop().(*interp.FuncObject)
			if !ok {
				panic("callee is not a function")
			}
			st.push(callee.Call(ts, args...))
		case interp.OpPop:
			st.pop()
		case interp.OpYield:
			return st.pop(), false
		case interp.OpReturn:
			return st.pop(), true
		default:
			panic(fmt.Sprintf("bad opcode %d in emitted code for %s", op, st.fn.Fullname()))
		}
	}
	return interp.None, true
}

func (c *Compiler) makeEntry(cf *compiledFunc) interp.EntryFunc {
	return func(fn *interp.FuncObject, args []interp.Value, ts *interp.ThreadState) interp.Value {
		st := &execState{code: cf.code, fn: fn, args: args,
			stack: make([]interp.Value, 0, cf.stack/8)}
		v, done := st.run(ts)
		if !done {
			panic("non-generator code yielded")
		}
		return v
	}
}

// makeGenEntry builds the entry of a suspendable function: calling it
// allocates the continuation block and returns the generator without
// running any body code.
func (c *Compiler) makeGenEntry(cf *compiledFunc) interp.EntryFunc {
	return func(fn *interp.FuncObject, args []interp.Value, ts *interp.ThreadState) interp.Value {
		st := &execState{code: cf.code, fn: fn, args: args,
			stack: make([]interp.Value, 0, cf.spill/8)}
		block := &jit.GenDataBlock{State: jit.GenStateJustStarted}
		block.YieldPoint = &jit.GenYieldPoint{
			VisitRefs: func(g *interp.Generator, visit func(interp.Value)) {
				for _, v := range block.SpillFrame {
					visit(v)
				}
				for _, v := range st.args {
					visit(v)
				}
			},
			ReleaseRefs: func(g *interp.Generator) {
				block.SpillFrame = nil
				st.stack = nil
				st.args = nil
			},
			YieldFrom: func(b *jit.GenDataBlock) interp.Value {
				// this back-end never emits a delegating yield
				return nil
			},
		}
		block.ResumeEntry = func(g *interp.Generator, arg interp.Value, ts *interp.ThreadState, finishYieldFrom bool) interp.Value {
			if st.pc > 0 {
				// resuming after a yield: deliver the sent value, or raise
				if arg == nil {
					panic(ts.TakePendingException())
				}
				st.push(arg)
			}
			v, done := st.run(ts)
			if done {
				ts.GenReturn = v
				block.SpillFrame = nil
				return nil
			}
			block.SpillFrame = st.stack
			return v
		}
		return interp.NewJITGenerator(fn, unsafe.Pointer(block))
	}
}

func (c *Compiler) get(fn *interp.FuncObject) *compiledFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.funcs[fn]
}

func (c *Compiler) CodeStart(fn *interp.FuncObject) uintptr {
	cf := c.get(fn)
	if cf == nil || len(cf.code) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&cf.code[0]))
}

func (c *Compiler) CodeSize(fn *interp.FuncObject) int {
	cf := c.get(fn)
	if cf == nil {
		return 0
	}
	return len(cf.code)
}

func (c *Compiler) StackSize(fn *interp.FuncObject) int {
	cf := c.get(fn)
	if cf == nil {
		return 0
	}
	return cf.stack
}

func (c *Compiler) SpillStackSize(fn *interp.FuncObject) int {
	cf := c.get(fn)
	if cf == nil {
		return 0
	}
	return cf.spill
}

func (c *Compiler) PrintHir(fn *interp.FuncObject) (string, bool) {
	cf := c.get(fn)
	if cf == nil {
		return "", false
	}
	return cf.hir, true
}

func (c *Compiler) Disassemble(fn *interp.FuncObject) (string, bool) {
	cf := c.get(fn)
	if cf == nil {
		return "", false
	}
	return cf.disas, true
}

// SpecializeType compiles the statically compiled methods of t and
// installs their entries as dispatch slots.
func (c *Compiler) SpecializeType(t *interp.TypeObject, slots *jit.TypeSlots) jit.Result {
	if slots.Entries == nil {
		slots.Entries = make(map[string]interp.EntryFunc)
	}
	installed := 0
	for name, method := range t.Methods {
		if method.Code.Flags&interp.CodeFlagStaticallyCompiled == 0 {
			continue
		}
		if res := c.Compile(method); res != jit.Ok {
			return res
		}
		slots.Entries[name] = method.Entry()
		installed++
	}
	if installed == 0 {
		return jit.CannotSpecialize
	}
	return jit.Ok
}

// Release frees all emitted code and uninstalls the entries.
func (c *Compiler) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for fn, cf := range c.funcs {
		fn.SetEntry(nil)
		if c.cache != nil {
			c.cache.Free(cf.code)
		}
	}
	c.funcs = make(map[*interp.FuncObject]*compiledFunc)
	if c.cache != nil {
		c.cache.Release()
		c.cache = nil
	}
}

// renderHir produces the high-level IR dump for print_hir.
func renderHir(fn *interp.FuncObject) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fun %s {\n", fn.Fullname())
	fmt.Fprintf(&b, "  bb 0 {\n")
	val := 0
	for _, in := range fn.Code.Instrs {
		switch in.Op {
		case interp.OpJump, interp.OpJumpIfFalse:
			fmt.Fprintf(&b, "    %s bb%d\n", in.Op, in.Arg)
		case interp.OpReturn, interp.OpYield, interp.OpPop:
			fmt.Fprintf(&b, "    %s\n", in.Op)
		default:
			fmt.Fprintf(&b, "    v%d = %s<%d>\n", val, in.Op, in.Arg)
			val++
		}
	}
	fmt.Fprintf(&b, "  }\n}\n")
	return b.String()
}

// renderDisas lists the emitted word stream.
func renderDisas(fn *interp.FuncObject, words []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d bytes):\n", fn.Fullname(), len(words))
	for i := 0; i+8 <= len(words); i += 8 {
		op := interp.Opcode(binary.LittleEndian.Uint32(words[i:]))
		arg := int(int32(binary.LittleEndian.Uint32(words[i+4:])))
		fmt.Fprintf(&b, "%06x: %-14s %d\n", i, op.String(), arg)
	}
	return b.String()
}
