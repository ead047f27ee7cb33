package codegen

import (
	"strings"
	"testing"

	"chocowat/internal/ast"
	"chocowat/internal/diag"
	"chocowat/internal/env"
	"chocowat/internal/heap"
	"chocowat/internal/parser"
	"chocowat/internal/source"
	"chocowat/internal/typecheck"
	"chocowat/internal/types"
	"chocowat/internal/wat"
)

func generate(t *testing.T, src string, opts Options) *wat.Output {
	t.Helper()
	prog, diags := parser.Parse(source.NewFile("test.py", src))
	if !diags.Empty() {
		t.Fatalf("parse: %+v", diags.Items)
	}
	typed, e, err := typecheck.Check(prog, typecheck.Options{})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	out, err := Generate(typed, e.Classes, opts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return out
}

func findFunc(t *testing.T, out *wat.Output, name string) *wat.Func {
	t.Helper()
	for _, f := range out.Funcs {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("function %s not generated", name)
	return nil
}

// contains reports whether want occurs as a contiguous run in code.
func contains(code []wat.Instr, want ...wat.Instr) bool {
	for i := 0; i+len(want) <= len(code); i++ {
		match := true
		for j, w := range want {
			if code[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func equalCode(t *testing.T, got []wat.Instr, want ...wat.Instr) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("instr %d: got %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestGlobalsAndLiterals(t *testing.T) {
	out := generate(t, "a: int = -3\nb: bool = True\nc: bool = False\n5\nTrue\nNone\n", Options{})
	if got := out.GlobalsText(); got != "(global $a (mut i32) (i32.const -3))\n(global $b (mut i32) (i32.const 1))\n(global $c (mut i32) (i32.const 0))" {
		t.Fatalf("globals: %q", got)
	}
	last := wat.LocalSet(wat.ScratchLocal)
	equalCode(t, out.TopLevel,
		wat.Const(5), last,
		wat.Const(1), last,
		wat.Const(0), last)
	if !out.HasResult {
		t.Fatalf("expected a result")
	}
}

func TestTopLevelAssignUsesGlobals(t *testing.T) {
	out := generate(t, "x: int = 1\nx = x + 1\n", Options{})
	equalCode(t, out.TopLevel,
		wat.GlobalGet("x"), wat.Const(1), wat.Simple(wat.OpAdd), wat.GlobalSet("x"))
	if out.HasResult {
		t.Fatalf("assignment must not produce a result")
	}
}

func TestStorageClassInsideFunctions(t *testing.T) {
	out := generate(t, `g: int = 10
def f(p: int) -> int:
    l: int = 7
    l = p + g
    g = l
    return g
`, Options{})
	f := findFunc(t, out, "f")
	if strings.Join(f.Params, ",") != "p" || strings.Join(f.Locals, ",") != "l,"+wat.ScratchLocal {
		t.Fatalf("params %v locals %v", f.Params, f.Locals)
	}
	equalCode(t, f.Body,
		wat.Const(7), wat.LocalSet("l"),
		wat.LocalGet("p"), wat.GlobalGet("g"), wat.Simple(wat.OpAdd), wat.LocalSet("l"),
		wat.LocalGet("l"), wat.GlobalSet("g"),
		wat.GlobalGet("g"), wat.Simple(wat.OpReturn))
}

func TestShadowedParamResolvesToGlobal(t *testing.T) {
	out := generate(t, "x: int = 1\ndef f(x: int) -> int:\n    return x\n", Options{})
	f := findFunc(t, out, "f")
	if !contains(f.Body, wat.GlobalGet("x"), wat.Simple(wat.OpReturn)) {
		t.Fatalf("expected the global to win: %v", f.Body)
	}
}

func TestDefaultReturnValue(t *testing.T) {
	out := generate(t, `def a() -> int:
    return 1
def b():
    pass
def c(n: int) -> int:
    if n > 0:
        return 1
    else:
        return 2
`, Options{})
	if body := findFunc(t, out, "a").Body; body[len(body)-1].Op != wat.OpReturn {
		t.Fatalf("a: unexpected terminal default: %v", body)
	}
	equalCode(t, findFunc(t, out, "b").Body, wat.Const(0))
	if body := findFunc(t, out, "c").Body; body[len(body)-1] != wat.Const(0) {
		t.Fatalf("c: expected a terminal default after the if: %v", body)
	}
}

func TestIfAndWhileShapes(t *testing.T) {
	out := generate(t, "i: int = 0\nwhile i < 3:\n    i = i + 1\nif True:\n    pass\n", Options{})
	cond := []wat.Instr{wat.GlobalGet("i"), wat.Const(3), wat.Simple(wat.OpLtS)}
	var want []wat.Instr
	want = append(want, cond...)
	want = append(want, wat.Simple(wat.OpIf), wat.Simple(wat.OpThen), wat.Simple(wat.OpLoop),
		wat.GlobalGet("i"), wat.Const(1), wat.Simple(wat.OpAdd), wat.GlobalSet("i"))
	want = append(want, cond...)
	want = append(want, wat.BrIf(0), wat.Simple(wat.OpEnd), wat.Simple(wat.OpEnd),
		wat.Simple(wat.OpElse), wat.Simple(wat.OpEnd), wat.Simple(wat.OpEnd),
		wat.Const(1), wat.Simple(wat.OpIf), wat.Simple(wat.OpThen), wat.Simple(wat.OpEnd),
		wat.Simple(wat.OpElse), wat.Simple(wat.OpEnd), wat.Simple(wat.OpEnd))
	equalCode(t, out.TopLevel, want...)
	if err := wat.Balanced(out.TopLevel); err != nil {
		t.Fatal(err)
	}
}

func TestOperators(t *testing.T) {
	out := generate(t, "x: int = 1\nnot x == 1\n-x\nx // 2 % 3\n", Options{})
	for _, want := range [][]wat.Instr{
		{wat.Simple(wat.OpEq), wat.Simple(wat.OpEqz)},
		{wat.Const(0), wat.GlobalGet("x"), wat.Simple(wat.OpSub)},
		{wat.Simple(wat.OpDivS), wat.Const(3), wat.Simple(wat.OpRemS)},
	} {
		if !contains(out.TopLevel, want...) {
			t.Fatalf("missing %v in %v", want, out.TopLevel)
		}
	}
}

func TestIntrinsicCalls(t *testing.T) {
	out := generate(t, "print(abs(-2))\nprint(max(1, 2) > 0)\nprint(None)\n", Options{})
	for _, name := range []string{"abs", typecheck.PrintNum, "max", typecheck.PrintBool, typecheck.PrintNone} {
		if !contains(out.TopLevel, wat.Call(name)) {
			t.Fatalf("missing call %s", name)
		}
	}
}

const pointSrc = `class Point(object):
    x: int = 3
    ok: bool = True
    next: Point = None
    def getx(self: Point) -> int:
        return self.x
p: Point = None
q: Point = None
p = Point()
p.next = p
p.next.getx()
`

func TestObjectsAndMethods(t *testing.T) {
	out := generate(t, pointSrc, Options{})
	m := findFunc(t, out, "Point$getx")
	equalCode(t, m.Body,
		wat.LocalGet("self"), wat.Const(0), wat.Simple(wat.OpAdd), wat.Simple(wat.OpLoad), wat.Simple(wat.OpReturn))

	alloc := heap.NewAllocator().Alloc([]int32{3, 1, 0})
	if !contains(out.TopLevel, append(alloc, wat.GlobalSet("p"))...) {
		t.Fatalf("constructor does not allocate with field defaults: %v", out.TopLevel)
	}
	if !contains(out.TopLevel,
		wat.GlobalGet("p"), wat.Const(8), wat.Simple(wat.OpAdd), wat.GlobalGet("p"), wat.Simple(wat.OpStore)) {
		t.Fatalf("field store at offset 8 not found: %v", out.TopLevel)
	}
	if !contains(out.TopLevel,
		wat.GlobalGet("p"), wat.Const(8), wat.Simple(wat.OpAdd), wat.Simple(wat.OpLoad), wat.Call("Point$getx")) {
		t.Fatalf("method call on loaded field not found: %v", out.TopLevel)
	}
}

func TestNullChecks(t *testing.T) {
	out := generate(t, pointSrc, Options{NullChecks: true})
	if !contains(out.TopLevel, wat.GlobalGet("p"), wat.Call(AssertNotNone), wat.Const(8)) {
		t.Fatalf("expected a checked base: %v", out.TopLevel)
	}
	plain := generate(t, pointSrc, Options{})
	if contains(plain.TopLevel, wat.Call(AssertNotNone)) {
		t.Fatalf("null checks emitted while disabled")
	}
}

func TestIsIsStatic(t *testing.T) {
	out := generate(t, `class A(object):
    pass
class B(object):
    pass
a: A = None
b: B = None
None is None
a is b
a is a
a is None
`, Options{})
	last := wat.LocalSet(wat.ScratchLocal)
	equalCode(t, out.TopLevel,
		wat.Const(1), last,
		wat.Const(0), last,
		wat.GlobalGet("a"), wat.GlobalGet("a"), wat.Simple(wat.OpEq), last,
		wat.Const(0), last)
}

func TestGenerateRejectsInconsistentTree(t *testing.T) {
	bad := &ast.Program{Stmts: []ast.Stmt{&ast.ExprStmt{Expr: &ast.FieldExpr{
		Obj:   &ast.LiteralExpr{Lit: &ast.NoneLit{}, Ty: types.TNone},
		Field: "x",
		Ty:    types.TInt,
	}}}}
	_, err := Generate(bad, env.NewClassTable(), Options{})
	if !diag.Is(err, diag.InternalError) {
		t.Fatalf("expected an internal error, got %v", err)
	}
}
