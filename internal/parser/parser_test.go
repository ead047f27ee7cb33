package parser

import (
	"strings"
	"testing"

	"chocowat/internal/ast"
	"chocowat/internal/source"
	"chocowat/internal/types"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, diags := Parse(source.NewFile("test.py", src))
	if !diags.Empty() {
		t.Fatalf("unexpected diags: %+v", diags.Items)
	}
	return prog
}

func parseErr(t *testing.T, src string) string {
	t.Helper()
	_, diags := Parse(source.NewFile("test.py", src))
	if diags.Empty() {
		t.Fatalf("expected a parse error for %q", src)
	}
	return diags.Items[0].Msg
}

func TestParseDeclarations(t *testing.T) {
	prog := mustParse(t, `x: int = -5
ok: bool = True
p: Point = None

def add(a: int, b: int) -> int:
    t: int = 0
    t = a + b
    return t

class Point(object):
    x: int = 1
    y: int = 2
    def sum(self: Point) -> int:
        return self.x + self.y

add(1, 2)
`)
	if len(prog.Vars) != 3 || len(prog.Funcs) != 1 || len(prog.Classes) != 1 || len(prog.Stmts) != 1 {
		t.Fatalf("unexpected shape: %d vars, %d funcs, %d classes, %d stmts",
			len(prog.Vars), len(prog.Funcs), len(prog.Classes), len(prog.Stmts))
	}
	if lit, ok := prog.Vars[0].Init.(*ast.NumLit); !ok || lit.Value != -5 {
		t.Fatalf("expected -5 literal, got %#v", prog.Vars[0].Init)
	}
	if prog.Vars[2].Var.Type != types.ObjectOf("Point") {
		t.Fatalf("expected Point annotation, got %s", prog.Vars[2].Var.Type)
	}
	fn := prog.Funcs[0]
	if fn.Name != "add" || len(fn.Params) != 2 || fn.Ret != types.TInt || len(fn.Vars) != 1 || len(fn.Body) != 2 {
		t.Fatalf("unexpected func: %+v", fn)
	}
	cd := prog.Classes[0]
	if cd.Name != "Point" || len(cd.Fields) != 2 || len(cd.Methods) != 1 {
		t.Fatalf("unexpected class: %+v", cd)
	}
	if cd.Methods[0].Params[0].Type != types.ObjectOf("Point") {
		t.Fatalf("expected self: Point")
	}
}

func TestParseDefaultReturnTypeIsNone(t *testing.T) {
	prog := mustParse(t, "def f():\n    pass\n")
	if prog.Funcs[0].Ret != types.TNone {
		t.Fatalf("expected None return type, got %s", prog.Funcs[0].Ret)
	}
}

func TestParsePrecedence(t *testing.T) {
	prog := mustParse(t, "not 1 + 2 * 3 == -x\n")
	st := prog.Stmts[0].(*ast.ExprStmt)
	not, ok := st.Expr.(*ast.UnaryExpr)
	if !ok || not.Op != ast.Not {
		t.Fatalf("expected not at the root, got %T", st.Expr)
	}
	eq, ok := not.Arg.(*ast.BinaryExpr)
	if !ok || eq.Op != ast.Eq {
		t.Fatalf("expected == under not, got %T", not.Arg)
	}
	add, ok := eq.Left.(*ast.BinaryExpr)
	if !ok || add.Op != ast.Plus {
		t.Fatalf("expected + on the left of ==")
	}
	if mul, ok := add.Right.(*ast.BinaryExpr); !ok || mul.Op != ast.Mul {
		t.Fatalf("expected * to bind tighter than +")
	}
	if neg, ok := eq.Right.(*ast.UnaryExpr); !ok || neg.Op != ast.Negate {
		t.Fatalf("expected unary minus on the right of ==")
	}
}

func TestParseLeftAssociative(t *testing.T) {
	prog := mustParse(t, "10 - 3 - 2\n")
	sub := prog.Stmts[0].(*ast.ExprStmt).Expr.(*ast.BinaryExpr)
	if inner, ok := sub.Left.(*ast.BinaryExpr); !ok || inner.Op != ast.Minus {
		t.Fatalf("expected (10 - 3) - 2")
	}
}

func TestParseIntMin(t *testing.T) {
	prog := mustParse(t, "-2147483648\n")
	lit := prog.Stmts[0].(*ast.ExprStmt).Expr.(*ast.LiteralExpr)
	if lit.Lit.(*ast.NumLit).Value != -2147483648 {
		t.Fatalf("unexpected value %#v", lit.Lit)
	}
	if msg := parseErr(t, "2147483648\n"); !strings.Contains(msg, "out of range") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestParseIntrinsics(t *testing.T) {
	prog := mustParse(t, "print(abs(-3))\nmax(1, min(2, pow(2, 3)))\nf(1, 2, 3)\n")
	b, ok := prog.Stmts[0].(*ast.ExprStmt).Expr.(*ast.BuiltinExpr)
	if !ok || b.Name != "print" {
		t.Fatalf("expected print builtin")
	}
	if inner, ok := b.Arg.(*ast.BuiltinExpr); !ok || inner.Name != "abs" {
		t.Fatalf("expected abs builtin")
	}
	b2, ok := prog.Stmts[1].(*ast.ExprStmt).Expr.(*ast.Builtin2Expr)
	if !ok || b2.Name != "max" {
		t.Fatalf("expected max builtin2")
	}
	call, ok := prog.Stmts[2].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	if !ok || call.Name != "f" || len(call.Args) != 3 || call.Constructor {
		t.Fatalf("expected plain call to f")
	}
	if msg := parseErr(t, "print(1, 2)\n"); !strings.Contains(msg, "exactly 1 argument") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestParseFieldsAndMethods(t *testing.T) {
	prog := mustParse(t, "a.b.c = a.m(1).d\n")
	fa, ok := prog.Stmts[0].(*ast.FieldAssignStmt)
	if !ok || fa.Target.Field != "c" {
		t.Fatalf("expected field assign to c, got %T", prog.Stmts[0])
	}
	if inner, ok := fa.Target.Obj.(*ast.FieldExpr); !ok || inner.Field != "b" {
		t.Fatalf("expected a.b as target object")
	}
	fe := fa.Value.(*ast.FieldExpr)
	if mc, ok := fe.Obj.(*ast.MethodCallExpr); !ok || mc.Method != "m" || len(mc.Args) != 1 {
		t.Fatalf("expected method call a.m(1)")
	}
}

func TestParseIfElifElse(t *testing.T) {
	prog := mustParse(t, `if x:
    1
elif y:
    2
else:
    3
if z: pass
`)
	st := prog.Stmts[0].(*ast.IfStmt)
	if len(st.Then) != 1 || len(st.Else) != 1 {
		t.Fatalf("unexpected if shape")
	}
	nested, ok := st.Else[0].(*ast.IfStmt)
	if !ok || len(nested.Else) != 1 {
		t.Fatalf("expected elif as nested if with else")
	}
	short := prog.Stmts[1].(*ast.IfStmt)
	if _, ok := short.Then[0].(*ast.PassStmt); !ok || short.Else == nil || len(short.Else) != 0 {
		t.Fatalf("expected one-line if with empty else")
	}
}

func TestParseReturnWithoutValue(t *testing.T) {
	prog := mustParse(t, "def f():\n    return\n")
	ret := prog.Funcs[0].Body[0].(*ast.ReturnStmt)
	lit, ok := ret.Value.(*ast.LiteralExpr)
	if !ok {
		t.Fatalf("expected literal return value")
	}
	if _, ok := lit.Lit.(*ast.NoneLit); !ok {
		t.Fatalf("expected None literal, got %T", lit.Lit)
	}
}

func TestParseWhile(t *testing.T) {
	prog := mustParse(t, "i: int = 0\nwhile i < 10:\n    i = i + 1\n")
	w, ok := prog.Stmts[0].(*ast.WhileStmt)
	if !ok || len(w.Body) != 1 {
		t.Fatalf("expected while with one statement")
	}
	if as, ok := w.Body[0].(*ast.AssignStmt); !ok || as.Name != "i" {
		t.Fatalf("expected assignment to i")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"decl after stmt", "print(1)\nx: int = 1\n", "must precede"},
		{"def after stmt", "print(1)\ndef f():\n    pass\n", "must precede"},
		{"bad base", "class A(B):\n    pass\n", "derive from object"},
		{"missing init", "x: int\n", "expected '='"},
		{"non literal init", "x: int = y\n", "expected literal"},
		{"assign to call", "f() = 1\n", "cannot assign"},
		{"chained compare", "1 < 2 < 3\n", "cannot be chained"},
		{"true division", "1 / 2\n", "use '//'"},
		{"local after stmt", "def f():\n    pass\n    x: int = 1\n", "must precede"},
		{"missing block", "while True:\npass\n", "indented block"},
		{"call result", "f()(1)\n", "only named"},
		{"None annotation", "x: None = None\n", "not a valid type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := parseErr(t, tt.src); !strings.Contains(msg, tt.want) {
				t.Fatalf("got %q, want substring %q", msg, tt.want)
			}
		})
	}
}

func TestParseRecoversAfterError(t *testing.T) {
	_, diags := Parse(source.NewFile("test.py", "1 +\n2 +\n3\n"))
	if len(diags.Items) != 2 {
		t.Fatalf("expected 2 diags, got %+v", diags.Items)
	}
	if diags.Items[1].Line != 2 {
		t.Fatalf("expected second error on line 2, got %+v", diags.Items[1])
	}
}
