package codegen

import (
	"chocowat/internal/ast"
	"chocowat/internal/types"
	"chocowat/internal/wat"
)

var binOps = map[ast.BinOpKind]wat.Op{
	ast.Plus:  wat.OpAdd,
	ast.Minus: wat.OpSub,
	ast.Mul:   wat.OpMul,
	ast.Div:   wat.OpDivS,
	ast.Mod:   wat.OpRemS,
	ast.Eq:    wat.OpEq,
	ast.NE:    wat.OpNe,
	ast.LT:    wat.OpLtS,
	ast.GT:    wat.OpGtS,
	ast.LTE:   wat.OpLeS,
	ast.GTE:   wat.OpGeS,
}

func (g *gen) genExpr(e ast.Expr) error {
	switch x := e.(type) {
	case *ast.LiteralExpr:
		g.emit(wat.Const(ast.LiteralValue(x.Lit)))
	case *ast.IdentExpr:
		g.emit(g.load(x.Name))
	case *ast.BuiltinExpr:
		if err := g.genExpr(x.Arg); err != nil {
			return err
		}
		g.emit(wat.Call(x.Name))
	case *ast.Builtin2Expr:
		if err := g.genExpr(x.Left); err != nil {
			return err
		}
		if err := g.genExpr(x.Right); err != nil {
			return err
		}
		g.emit(wat.Call(x.Name))
	case *ast.BinaryExpr:
		if x.Op == ast.Is {
			return g.genIs(x)
		}
		op, ok := binOps[x.Op]
		if !ok {
			return internalf("unsupported operator %s", x.Op)
		}
		if err := g.genExpr(x.Left); err != nil {
			return err
		}
		if err := g.genExpr(x.Right); err != nil {
			return err
		}
		g.emit(wat.Simple(op))
	case *ast.UnaryExpr:
		if x.Op == ast.Negate {
			g.emit(wat.Const(0))
		}
		if err := g.genExpr(x.Arg); err != nil {
			return err
		}
		if x.Op == ast.Negate {
			g.emit(wat.Simple(wat.OpSub))
		} else {
			g.emit(wat.Simple(wat.OpEqz))
		}
	case *ast.CallExpr:
		if x.Constructor {
			cls, ok := g.classes.Lookup(x.Name)
			if !ok {
				return internalf("constructor for unknown class %s", x.Name)
			}
			g.emit(g.alloc.Alloc(cls.Defaults())...)
			return nil
		}
		for _, a := range x.Args {
			if err := g.genExpr(a); err != nil {
				return err
			}
		}
		g.emit(wat.Call(x.Name))
	case *ast.FieldExpr:
		idx, err := g.fieldIndex(x)
		if err != nil {
			return err
		}
		if err := g.genObject(x.Obj); err != nil {
			return err
		}
		g.emit(g.alloc.FieldAddr(idx)...)
		g.emit(wat.Simple(wat.OpLoad))
	case *ast.MethodCallExpr:
		cls := x.Obj.Type().Class
		m, ok := g.classes.Method(cls, x.Method)
		if !ok {
			return internalf("unknown method %s.%s", cls, x.Method)
		}
		if err := g.genObject(x.Obj); err != nil {
			return err
		}
		for _, a := range x.Args {
			if err := g.genExpr(a); err != nil {
				return err
			}
		}
		g.emit(wat.Call(m.Symbol.Name()))
	default:
		return internalf("unsupported expression %T", e)
	}
	return nil
}

// genIs resolves identity from the static operand types alone: None is
// None, same-typed operands compare by value, anything else is false.
func (g *gen) genIs(x *ast.BinaryExpr) error {
	lt, rt := x.Left.Type(), x.Right.Type()
	switch {
	case lt.K == types.None && rt.K == types.None:
		g.emit(wat.Const(1))
	case types.Equal(lt, rt):
		if err := g.genExpr(x.Left); err != nil {
			return err
		}
		if err := g.genExpr(x.Right); err != nil {
			return err
		}
		g.emit(wat.Simple(wat.OpEq))
	default:
		g.emit(wat.Const(0))
	}
	return nil
}

// genObject emits an object base, checked against None when enabled.
func (g *gen) genObject(obj ast.Expr) error {
	if err := g.genExpr(obj); err != nil {
		return err
	}
	if g.opts.NullChecks {
		g.emit(wat.Call(AssertNotNone))
	}
	return nil
}

func (g *gen) fieldIndex(x *ast.FieldExpr) (int, error) {
	t := x.Obj.Type()
	if !t.IsObject() {
		return 0, internalf("attribute %s on non-object type %s", x.Field, t)
	}
	cls, ok := g.classes.Lookup(t.Class)
	if !ok {
		return 0, internalf("unknown class %s", t.Class)
	}
	f, ok := cls.Field(x.Field)
	if !ok {
		return 0, internalf("class %s has no attribute %s", t.Class, x.Field)
	}
	return f.Index, nil
}
