package interp

import (
	"encoding/binary"
	"fmt"
	"math"
)

const pageSize = 64 * 1024

// trap aborts execution; it is raised with panic and recovered by Invoke.
type trap struct{ msg string }

func trapf(format string, args ...any) { panic(trap{msg: fmt.Sprintf(format, args...)}) }

// Control transfer out of nested blocks.
type branchSignal struct{ depth int }

func (b branchSignal) Error() string { return fmt.Sprintf("br %d", b.depth) }

type returnSignal struct{}

func (returnSignal) Error() string { return "return" }

var binaryOps = map[string]func(a, b int32) int32{
	"i32.add": func(a, b int32) int32 { return a + b },
	"i32.sub": func(a, b int32) int32 { return a - b },
	"i32.mul": func(a, b int32) int32 { return a * b },
	"i32.div_s": func(a, b int32) int32 {
		if b == 0 {
			trapf("integer divide by zero")
		}
		if a == math.MinInt32 && b == -1 {
			trapf("integer overflow")
		}
		return a / b
	},
	"i32.rem_s": func(a, b int32) int32 {
		if b == 0 {
			trapf("integer divide by zero")
		}
		if b == -1 {
			return 0
		}
		return a % b
	},
	"i32.and":  func(a, b int32) int32 { return a & b },
	"i32.or":   func(a, b int32) int32 { return a | b },
	"i32.xor":  func(a, b int32) int32 { return a ^ b },
	"i32.eq":   func(a, b int32) int32 { return b2i(a == b) },
	"i32.ne":   func(a, b int32) int32 { return b2i(a != b) },
	"i32.lt_s": func(a, b int32) int32 { return b2i(a < b) },
	"i32.gt_s": func(a, b int32) int32 { return b2i(a > b) },
	"i32.le_s": func(a, b int32) int32 { return b2i(a <= b) },
	"i32.ge_s": func(a, b int32) int32 { return b2i(a >= b) },
}

func isNullary(op string) bool {
	switch op {
	case "i32.eqz", "drop", "nop", "unreachable", "return", "i32.load", "i32.store":
		return true
	}
	return false
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

type machine struct {
	mod     *Module
	stack   []int32
	globals []int32
	mem     []byte
	host    map[string]HostFunc
	depth   int
	steps   int64
	opts    Options
}

type frame struct {
	locals []int32
}

func (m *machine) push(v int32) { m.stack = append(m.stack, v) }

func (m *machine) pop() int32 {
	if len(m.stack) == 0 {
		trapf("operand stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

// unwind restores the stack to height h, keeping the top arity values.
func (m *machine) unwind(h, arity int) {
	if len(m.stack) < h+arity {
		trapf("operand stack underflow")
	}
	copy(m.stack[h:], m.stack[len(m.stack)-arity:])
	m.stack = m.stack[:h+arity]
}

func (m *machine) addr(base int32, offset int32) int {
	a := int64(uint32(base)) + int64(uint32(offset))
	if a+4 > int64(len(m.mem)) {
		trapf("out of bounds memory access at %d", a)
	}
	return int(a)
}

func (m *machine) call(fn *Func, args []int32) int32 {
	if fn.Import != "" {
		h, ok := m.host[fn.Import]
		if !ok {
			trapf("unresolved import %s", fn.Import)
		}
		v, err := h(args)
		if err != nil {
			trapf("%v", err)
		}
		return v
	}
	m.depth++
	defer func() { m.depth-- }()
	if m.opts.MaxCallDepth > 0 && m.depth > m.opts.MaxCallDepth {
		trapf("call stack exhausted")
	}
	fr := &frame{locals: make([]int32, fn.nlocals)}
	copy(fr.locals, args)
	base := len(m.stack)
	err := m.exec(fn.code, fr)
	switch err.(type) {
	case nil, returnSignal, branchSignal:
	default:
		panic(err)
	}
	var result int32
	if fn.Results > 0 {
		if len(m.stack) <= base {
			trapf("func %s returned no value", fn.Name)
		}
		result = m.stack[len(m.stack)-1]
	}
	m.stack = m.stack[:base]
	return result
}

func (m *machine) exec(code []instr, fr *frame) error {
	for i := range code {
		if err := m.step(&code[i], fr); err != nil {
			return err
		}
	}
	return nil
}

// block runs body as a branch target. A branch to depth 0 ends the block
// (or restarts it for loops); deeper branches propagate outward.
func (m *machine) block(body []instr, fr *frame, arity int, loop bool) error {
	h := len(m.stack)
	for {
		err := m.exec(body, fr)
		br, ok := err.(branchSignal)
		if !ok {
			return err
		}
		if br.depth > 0 {
			return branchSignal{depth: br.depth - 1}
		}
		if loop {
			m.unwind(h, 0)
			continue
		}
		m.unwind(h, arity)
		return nil
	}
}

func (m *machine) step(in *instr, fr *frame) error {
	for j := range in.children {
		if err := m.step(&in.children[j], fr); err != nil {
			return err
		}
	}
	m.steps++
	if m.opts.MaxSteps > 0 && m.steps > m.opts.MaxSteps {
		trapf("step limit of %d exceeded", m.opts.MaxSteps)
	}
	if f, ok := binaryOps[in.op]; ok {
		b := m.pop()
		a := m.pop()
		m.push(f(a, b))
		return nil
	}
	switch in.op {
	case "i32.const":
		m.push(in.val)
	case "local.get":
		m.push(fr.locals[in.val])
	case "local.set":
		fr.locals[in.val] = m.pop()
	case "local.tee":
		v := m.pop()
		fr.locals[in.val] = v
		m.push(v)
	case "global.get":
		m.push(m.globals[in.val])
	case "global.set":
		m.globals[in.val] = m.pop()
	case "i32.eqz":
		m.push(b2i(m.pop() == 0))
	case "i32.load":
		a := m.addr(m.pop(), in.val)
		m.push(int32(binary.LittleEndian.Uint32(m.mem[a:])))
	case "i32.store":
		v := m.pop()
		a := m.addr(m.pop(), in.val)
		binary.LittleEndian.PutUint32(m.mem[a:], uint32(v))
	case "drop":
		m.pop()
	case "nop":
	case "unreachable":
		trapf("unreachable executed")
	case "call":
		args := make([]int32, in.fn.Params)
		for k := len(args) - 1; k >= 0; k-- {
			args[k] = m.pop()
		}
		v := m.call(in.fn, args)
		if in.fn.Results > 0 {
			m.push(v)
		}
	case "return":
		return returnSignal{}
	case "br":
		return branchSignal{depth: int(in.val)}
	case "br_if":
		if m.pop() != 0 {
			return branchSignal{depth: int(in.val)}
		}
	case "block":
		return m.block(in.body, fr, in.arity, false)
	case "loop":
		return m.block(in.body, fr, in.arity, true)
	case "if":
		body := in.els
		if m.pop() != 0 {
			body = in.body
		}
		return m.block(body, fr, in.arity, false)
	default:
		trapf("unsupported instruction %s", in.op)
	}
	return nil
}
