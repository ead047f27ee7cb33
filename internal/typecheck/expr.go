package typecheck

import (
	"chocowat/internal/ast"
	"chocowat/internal/env"
	"chocowat/internal/types"
)

const (
	PrintNum  = "print_num"
	PrintBool = "print_bool"
	PrintNone = "print_none"
)

func isIntrinsic(name string) bool {
	switch name {
	case "print", "abs", "min", "max", "pow", PrintNum, PrintBool, PrintNone, "assert_not_none":
		return true
	}
	return false
}

// PrintIntrinsic selects the print variant for a value of type t.
func PrintIntrinsic(t types.Type) string {
	switch t.K {
	case types.Int:
		return PrintNum
	case types.Bool:
		return PrintBool
	default:
		return PrintNone
	}
}

func (c *checker) checkExpr(scope *env.Scope, e ast.Expr) (ast.Expr, error) {
	switch x := e.(type) {
	case *ast.LiteralExpr:
		lit := cloneLit(x.Lit)
		return &ast.LiteralExpr{Lit: lit, Ty: ast.LiteralType(lit), S: x.S}, nil

	case *ast.IdentExpr:
		t, ok := scope.Var(x.Name)
		if !ok {
			return nil, refErr(x.S, "name %s is not defined", x.Name)
		}
		return &ast.IdentExpr{Name: x.Name, Ty: t, S: x.S}, nil

	case *ast.BuiltinExpr:
		arg, err := c.checkExpr(scope, x.Arg)
		if err != nil {
			return nil, err
		}
		switch x.Name {
		case "print", PrintNum, PrintBool, PrintNone:
			return &ast.BuiltinExpr{Name: PrintIntrinsic(arg.Type()), Arg: arg, Ty: types.TNone, S: x.S}, nil
		case "abs":
			return &ast.BuiltinExpr{Name: x.Name, Arg: arg, Ty: types.TInt, S: x.S}, nil
		}
		return nil, refErr(x.S, "unknown built-in %s", x.Name)

	case *ast.Builtin2Expr:
		switch x.Name {
		case "min", "max", "pow":
		default:
			return nil, refErr(x.S, "unknown built-in %s", x.Name)
		}
		left, err := c.checkExpr(scope, x.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.checkExpr(scope, x.Right)
		if err != nil {
			return nil, err
		}
		if !types.Equal(left.Type(), types.TInt) || !types.Equal(right.Type(), types.TInt) {
			return nil, typeErr(x.S, "%s() expects two int arguments, got %s and %s", x.Name, left.Type(), right.Type())
		}
		return &ast.Builtin2Expr{Name: x.Name, Left: left, Right: right, Ty: types.TInt, S: x.S}, nil

	case *ast.BinaryExpr:
		return c.checkBinary(scope, x)

	case *ast.UnaryExpr:
		arg, err := c.checkExpr(scope, x.Arg)
		if err != nil {
			return nil, err
		}
		want := types.TInt
		if x.Op == ast.Not {
			want = types.TBool
		}
		if !types.Equal(arg.Type(), want) {
			return nil, typeErr(x.S, "operand of %s must be %s, got %s", x.Op, want, arg.Type())
		}
		return &ast.UnaryExpr{Op: x.Op, Arg: arg, Ty: want, S: x.S}, nil

	case *ast.CallExpr:
		return c.checkCall(scope, x)

	case *ast.FieldExpr:
		return c.checkField(scope, x)

	case *ast.MethodCallExpr:
		return c.checkMethodCall(scope, x)
	}
	return nil, typeErr(e.Span(), "unsupported expression %T", e)
}

func (c *checker) checkBinary(scope *env.Scope, x *ast.BinaryExpr) (ast.Expr, error) {
	left, err := c.checkExpr(scope, x.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.checkExpr(scope, x.Right)
	if err != nil {
		return nil, err
	}
	lt, rt := left.Type(), right.Type()
	var ty types.Type
	switch x.Op {
	case ast.Plus, ast.Minus, ast.Mul, ast.Div, ast.Mod:
		if !types.Equal(lt, types.TInt) || !types.Equal(rt, types.TInt) {
			return nil, typeErr(x.S, "operands of %s must be int, got %s and %s", x.Op, lt, rt)
		}
		ty = types.TInt
	case ast.LT, ast.GT, ast.LTE, ast.GTE:
		if !types.Equal(lt, types.TInt) || !types.Equal(rt, types.TInt) {
			return nil, typeErr(x.S, "operands of %s must be int, got %s and %s", x.Op, lt, rt)
		}
		ty = types.TBool
	case ast.Eq, ast.NE:
		if !types.Equal(lt, rt) {
			return nil, typeErr(x.S, "cannot compare %s with %s using %s", lt, rt, x.Op)
		}
		ty = types.TBool
	case ast.Is:
		// Identity is decided statically by the code generator.
		ty = types.TBool
	default:
		return nil, typeErr(x.S, "unsupported operator %s", x.Op)
	}
	return &ast.BinaryExpr{Op: x.Op, Left: left, Right: right, Ty: ty, S: x.S}, nil
}

// checkCall resolves a call to a function first, then to a constructor.
func (c *checker) checkCall(scope *env.Scope, x *ast.CallExpr) (ast.Expr, error) {
	sig, isFunc := scope.Func(x.Name)
	_, isClass := c.env.Classes.Lookup(x.Name)
	if !isFunc && !isClass {
		return nil, refErr(x.S, "function or class %s is not defined", x.Name)
	}
	args, err := c.checkArgs(scope, x.Args)
	if err != nil {
		return nil, err
	}
	if isFunc {
		if err := matchArgs(x, x.Name, sig.Params, args); err != nil {
			return nil, err
		}
		return &ast.CallExpr{Name: x.Name, Args: args, Ty: sig.Ret, S: x.S}, nil
	}
	if len(args) != 0 {
		return nil, typeErr(x.S, "constructor %s() takes no arguments, got %d", x.Name, len(args))
	}
	return &ast.CallExpr{Name: x.Name, Args: args, Constructor: true, Ty: types.ObjectOf(x.Name), S: x.S}, nil
}

func (c *checker) checkArgs(scope *env.Scope, in []ast.Expr) ([]ast.Expr, error) {
	out := make([]ast.Expr, 0, len(in))
	for _, a := range in {
		na, err := c.checkExpr(scope, a)
		if err != nil {
			return nil, err
		}
		out = append(out, na)
	}
	return out, nil
}

// matchArgs requires the exact arity and exact argument types.
func matchArgs(at ast.Expr, name string, params []types.Type, args []ast.Expr) error {
	if len(args) != len(params) {
		return typeErr(at.Span(), "%s expects %d arguments, got %d", name, len(params), len(args))
	}
	for i, a := range args {
		if !types.Equal(params[i], a.Type()) {
			return typeErr(a.Span(), "argument %d of %s must be %s, got %s", i+1, name, params[i], a.Type())
		}
	}
	return nil
}

func (c *checker) checkObject(scope *env.Scope, obj ast.Expr, what string) (ast.Expr, *env.Class, error) {
	nobj, err := c.checkExpr(scope, obj)
	if err != nil {
		return nil, nil, err
	}
	t := nobj.Type()
	if !t.IsObject() {
		return nil, nil, typeErr(obj.Span(), "cannot access %s on a value of type %s", what, t)
	}
	cls, ok := c.env.Classes.Lookup(t.Class)
	if !ok {
		return nil, nil, refErr(obj.Span(), "unknown class %s", t.Class)
	}
	return nobj, cls, nil
}

func (c *checker) checkField(scope *env.Scope, x *ast.FieldExpr) (*ast.FieldExpr, error) {
	obj, cls, err := c.checkObject(scope, x.Obj, "attribute "+x.Field)
	if err != nil {
		return nil, err
	}
	f, ok := cls.Field(x.Field)
	if !ok {
		return nil, refErr(x.S, "class %s has no attribute %s", cls.Name, x.Field)
	}
	return &ast.FieldExpr{Obj: obj, Field: x.Field, Ty: f.Type, S: x.S}, nil
}

func (c *checker) checkMethodCall(scope *env.Scope, x *ast.MethodCallExpr) (ast.Expr, error) {
	obj, cls, err := c.checkObject(scope, x.Obj, "method "+x.Method)
	if err != nil {
		return nil, err
	}
	m, ok := c.env.Classes.Method(cls.Name, x.Method)
	if !ok {
		return nil, refErr(x.S, "class %s has no method %s", cls.Name, x.Method)
	}
	args, err := c.checkArgs(scope, x.Args)
	if err != nil {
		return nil, err
	}
	if c.opts.CheckMethodArgs {
		if err := matchArgs(x, cls.Name+"."+x.Method, m.Sig.Params[1:], args); err != nil {
			return nil, err
		}
	}
	return &ast.MethodCallExpr{Obj: obj, Method: x.Method, Args: args, Ty: m.Sig.Ret, S: x.S}, nil
}
