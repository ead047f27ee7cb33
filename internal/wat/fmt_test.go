package wat

import (
	"strings"
	"testing"
)

func TestInstrString(t *testing.T) {
	cases := []struct {
		in   Instr
		want string
	}{
		{Const(-7), "(i32.const -7)"},
		{LocalGet("x"), "(local.get $x)"},
		{LocalSet(ScratchLocal), "(local.set $$last)"},
		{GlobalGet("heap"), "(global.get $heap)"},
		{Call("Point$norm"), "(call $Point$norm)"},
		{BrIf(0), "(br_if 0)"},
		{Simple(OpAdd), "(i32.add)"},
		{Simple(OpIf), "(if"},
		{Simple(OpEnd), ")"},
	}
	for _, c := range cases {
		if got := c.in.String(); got != c.want {
			t.Errorf("%+v => %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFuncFormat(t *testing.T) {
	f := &Func{
		Name:   "f",
		Params: []string{"a"},
		Locals: []string{"y", ScratchLocal},
		Body: []Instr{
			LocalGet("a"),
			Simple(OpIf), Simple(OpThen), Const(1), Simple(OpReturn), Simple(OpEnd),
			Simple(OpElse), Simple(OpEnd), Simple(OpEnd),
			Const(0),
		},
	}
	want := `(func $f (param $a i32) (result i32)
  (local $y i32)
  (local $$last i32)
  (local.get $a)
  (if
    (then
      (i32.const 1)
      (return)
    )
    (else
    )
  )
  (i32.const 0)
)`
	if got := f.Format(); got != want {
		t.Fatalf("format mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestBalanced(t *testing.T) {
	ok := []Instr{Simple(OpIf), Simple(OpThen), Simple(OpLoop), Simple(OpEnd), Simple(OpEnd), Simple(OpElse), Simple(OpEnd), Simple(OpEnd)}
	if err := Balanced(ok); err != nil {
		t.Fatalf("balanced: %v", err)
	}
	if err := Balanced([]Instr{Simple(OpEnd)}); err == nil {
		t.Fatalf("expected unmatched end")
	}
	if err := Balanced([]Instr{Simple(OpLoop)}); err == nil {
		t.Fatalf("expected unclosed block")
	}
	if err := Balanced([]Instr{Simple(OpThen), Simple(OpEnd)}); err == nil {
		t.Fatalf("expected then outside if")
	}
}

func TestOutputBlocks(t *testing.T) {
	o := &Output{
		Globals:  []Global{{Name: "x", Init: 2}, {Name: "b", Init: 1}},
		Funcs:    []*Func{{Name: "g", Body: []Instr{Const(0)}}},
		TopLevel: []Instr{GlobalGet("x"), LocalSet(ScratchLocal)},
	}
	if got := o.GlobalsText(); got != "(global $x (mut i32) (i32.const 2))\n(global $b (mut i32) (i32.const 1))" {
		t.Fatalf("globals: %q", got)
	}
	if got := o.TopLevelText(); got != "(global.get $x)\n(local.set $$last)" {
		t.Fatalf("top level: %q", got)
	}
	all := o.Format()
	for _, sub := range []string{";; globals", ";; functions", "(func $g (result i32)", ";; top level"} {
		if !strings.Contains(all, sub) {
			t.Fatalf("missing %q in:\n%s", sub, all)
		}
	}
}
