// Package wat models the i32 stack-machine instructions produced by the
// code generator and renders them in WebAssembly text format.
package wat

import (
	"fmt"
	"strconv"
	"strings"
)

type Op string

const (
	OpConst     Op = "i32.const"
	OpLocalGet  Op = "local.get"
	OpLocalSet  Op = "local.set"
	OpGlobalGet Op = "global.get"
	OpGlobalSet Op = "global.set"

	OpAdd  Op = "i32.add"
	OpSub  Op = "i32.sub"
	OpMul  Op = "i32.mul"
	OpDivS Op = "i32.div_s"
	OpRemS Op = "i32.rem_s"
	OpEq   Op = "i32.eq"
	OpNe   Op = "i32.ne"
	OpLtS  Op = "i32.lt_s"
	OpGtS  Op = "i32.gt_s"
	OpLeS  Op = "i32.le_s"
	OpGeS  Op = "i32.ge_s"
	OpEqz  Op = "i32.eqz"

	OpLoad  Op = "i32.load"
	OpStore Op = "i32.store"

	OpCall   Op = "call"
	OpReturn Op = "return"
	OpBrIf   Op = "br_if"
	OpDrop   Op = "drop"

	// Structured control. Each opener is closed by exactly one OpEnd.
	OpIf   Op = "if"
	OpThen Op = "then"
	OpElse Op = "else"
	OpLoop Op = "loop"
	OpEnd  Op = "end"
)

// ScratchLocal holds the value of the last expression statement. It renders
// as $$last and cannot clash with a source identifier.
const ScratchLocal = "$last"

type Instr struct {
	Op  Op
	Arg string // identifier without '$', or an immediate
}

func Const(v int32) Instr         { return Instr{Op: OpConst, Arg: strconv.FormatInt(int64(v), 10)} }
func LocalGet(name string) Instr  { return Instr{Op: OpLocalGet, Arg: name} }
func LocalSet(name string) Instr  { return Instr{Op: OpLocalSet, Arg: name} }
func GlobalGet(name string) Instr { return Instr{Op: OpGlobalGet, Arg: name} }
func GlobalSet(name string) Instr { return Instr{Op: OpGlobalSet, Arg: name} }
func Call(name string) Instr      { return Instr{Op: OpCall, Arg: name} }
func BrIf(depth int) Instr        { return Instr{Op: OpBrIf, Arg: strconv.Itoa(depth)} }
func Simple(op Op) Instr          { return Instr{Op: op} }

func (i Instr) IsOpener() bool {
	switch i.Op {
	case OpIf, OpThen, OpElse, OpLoop:
		return true
	}
	return false
}

func (i Instr) named() bool {
	switch i.Op {
	case OpLocalGet, OpLocalSet, OpGlobalGet, OpGlobalSet, OpCall:
		return true
	}
	return false
}

func (i Instr) String() string {
	switch {
	case i.Op == OpEnd:
		return ")"
	case i.IsOpener():
		return "(" + string(i.Op)
	case i.named():
		return fmt.Sprintf("(%s $%s)", i.Op, i.Arg)
	case i.Arg != "":
		return fmt.Sprintf("(%s %s)", i.Op, i.Arg)
	default:
		return "(" + string(i.Op) + ")"
	}
}

// Balanced checks that every structured opener is closed and that then/else
// only appear directly inside an if.
func Balanced(code []Instr) error {
	var stack []Op
	for n, ins := range code {
		switch {
		case ins.Op == OpThen || ins.Op == OpElse:
			if len(stack) == 0 || stack[len(stack)-1] != OpIf {
				return fmt.Errorf("instr %d: %s outside if", n, ins.Op)
			}
			stack = append(stack, ins.Op)
		case ins.IsOpener():
			stack = append(stack, ins.Op)
		case ins.Op == OpEnd:
			if len(stack) == 0 {
				return fmt.Errorf("instr %d: unmatched end", n)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return fmt.Errorf("%d unclosed block(s)", len(stack))
	}
	return nil
}

type Global struct {
	Name string
	Init int32
}

func (g Global) String() string {
	return fmt.Sprintf("(global $%s (mut i32) (i32.const %d))", g.Name, g.Init)
}

// Func is one callable unit. All params, locals and the result are i32.
type Func struct {
	Name   string
	Params []string
	Locals []string
	Body   []Instr
}

func (f *Func) Format() string {
	var sb strings.Builder
	sb.WriteString("(func $")
	sb.WriteString(f.Name)
	for _, p := range f.Params {
		fmt.Fprintf(&sb, " (param $%s i32)", p)
	}
	sb.WriteString(" (result i32)\n")
	for _, l := range f.Locals {
		fmt.Fprintf(&sb, "  (local $%s i32)\n", l)
	}
	writeInstrs(&sb, f.Body, 1)
	sb.WriteString(")")
	return sb.String()
}

// Output holds the three independent blocks produced for one program.
type Output struct {
	Globals  []Global
	Funcs    []*Func
	TopLevel []Instr
	// HasResult is set when the last top-level statement is an expression
	// statement, whose value then sits in ScratchLocal.
	HasResult bool
	// ConstructionSites counts the object allocations emitted.
	ConstructionSites int
}

func (o *Output) GlobalsText() string {
	lines := make([]string, 0, len(o.Globals))
	for _, g := range o.Globals {
		lines = append(lines, g.String())
	}
	return strings.Join(lines, "\n")
}

func (o *Output) FuncsText() string {
	parts := make([]string, 0, len(o.Funcs))
	for _, f := range o.Funcs {
		parts = append(parts, f.Format())
	}
	return strings.Join(parts, "\n\n")
}

func (o *Output) TopLevelText() string {
	var sb strings.Builder
	writeInstrs(&sb, o.TopLevel, 0)
	return strings.TrimSuffix(sb.String(), "\n")
}

// Format renders all three blocks with section comments.
func (o *Output) Format() string {
	var sb strings.Builder
	sb.WriteString(";; globals\n")
	if s := o.GlobalsText(); s != "" {
		sb.WriteString(s)
		sb.WriteByte('\n')
	}
	sb.WriteString(";; functions\n")
	if s := o.FuncsText(); s != "" {
		sb.WriteString(s)
		sb.WriteByte('\n')
	}
	sb.WriteString(";; top level\n")
	if s := o.TopLevelText(); s != "" {
		sb.WriteString(s)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// WriteIndented renders code one instruction per line, indenting nested
// blocks, starting at the given depth.
func WriteIndented(sb *strings.Builder, code []Instr, depth int) {
	writeInstrs(sb, code, depth)
}

func writeInstrs(sb *strings.Builder, code []Instr, depth int) {
	for _, ins := range code {
		if ins.Op == OpEnd && depth > 0 {
			depth--
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(ins.String())
		sb.WriteByte('\n')
		if ins.IsOpener() {
			depth++
		}
	}
}
