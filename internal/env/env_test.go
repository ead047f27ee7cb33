package env

import (
	"testing"

	"chocowat/internal/ast"
	"chocowat/internal/types"
)

func TestExtendIsASnapshot(t *testing.T) {
	g := NewScope()
	g.DefineVar("x", types.TInt)
	g.DefineFunc("f", FuncSig{Ret: types.TBool})
	if _, ok := g.Ret(); ok {
		t.Fatalf("global scope must not have a return type")
	}

	local := g.Extend(types.TInt)
	local.DefineVar("y", types.TBool)
	local.DefineVar("x", types.TBool)
	g.DefineVar("z", types.TNone)

	if _, ok := g.Var("y"); ok {
		t.Fatalf("local binding leaked into global scope")
	}
	if ty, _ := g.Var("x"); ty != types.TInt {
		t.Fatalf("global x changed to %s", ty)
	}
	if _, ok := local.Var("z"); ok {
		t.Fatalf("global added after Extend must not be visible")
	}
	if _, ok := local.Func("f"); !ok {
		t.Fatalf("function signatures must be inherited")
	}
	if ret, ok := local.Ret(); !ok || ret != types.TInt {
		t.Fatalf("Ret = %s, %v", ret, ok)
	}
	if got := local.VarNames(); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("VarNames = %v", got)
	}
}

func TestClassLayoutAndMethods(t *testing.T) {
	ct := NewClassTable()
	c, ok := ct.Declare("Point")
	if !ok {
		t.Fatalf("declare failed")
	}
	if _, ok := ct.Declare("Point"); ok {
		t.Fatalf("duplicate class accepted")
	}
	c.AddField("x", types.TInt, &ast.NumLit{Value: 3})
	c.AddField("ok", types.TBool, &ast.BoolLit{Value: true})
	c.AddField("next", types.ObjectOf("Point"), &ast.NoneLit{})
	if _, ok := c.AddField("x", types.TInt, nil); ok {
		t.Fatalf("duplicate field accepted")
	}
	f, ok := c.Field("next")
	if !ok || f.Index != 2 || f.Offset() != 8 {
		t.Fatalf("field next: %+v", f)
	}
	if d := c.Defaults(); len(d) != 3 || d[0] != 3 || d[1] != 1 || d[2] != 0 {
		t.Fatalf("defaults: %v", d)
	}
	if c.Size() != 12 {
		t.Fatalf("size: %d", c.Size())
	}

	q, _ := ct.Declare("Q")
	_ = q
	m1, ok := ct.DeclareMethod("Point", "norm", FuncSig{Params: []types.Type{types.ObjectOf("Point")}, Ret: types.TInt})
	if !ok {
		t.Fatalf("declare method failed")
	}
	m2, _ := ct.DeclareMethod("Q", "norm", FuncSig{Params: []types.Type{types.ObjectOf("Q")}, Ret: types.TInt})
	if _, ok := ct.DeclareMethod("Point", "norm", FuncSig{}); ok {
		t.Fatalf("duplicate method accepted")
	}
	if _, ok := ct.DeclareMethod("Nope", "norm", FuncSig{}); ok {
		t.Fatalf("method on unknown class accepted")
	}
	if m1.Symbol.Name() != "Point$norm" || m2.Symbol.Name() != "Q$norm" {
		t.Fatalf("names: %s %s", m1.Symbol.Name(), m2.Symbol.Name())
	}
	if m1.Symbol.Index == m2.Symbol.Index {
		t.Fatalf("symbols must be distinct")
	}
	got, ok := ct.Method("Q", "norm")
	if !ok || got != m2 {
		t.Fatalf("lookup Q.norm failed")
	}
	if ms := ct.Methods("Point"); len(ms) != 1 || ms[0] != m1 {
		t.Fatalf("Methods(Point) = %v", ms)
	}
	if names := ct.Names(); len(names) != 2 || names[0] != "Point" || names[1] != "Q" {
		t.Fatalf("Names = %v", names)
	}
}
