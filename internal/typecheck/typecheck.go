// Package typecheck resolves names and types of a parsed program and
// produces an independent, fully annotated copy of it.
//
// Checking stops at the first violated rule. The error is a *diag.Error of
// kind ReferenceError (an unknown name) or TypeError (everything else).
package typecheck

import (
	"fmt"

	"github.com/hashicorp/go-set/v2"

	"chocowat/internal/ast"
	"chocowat/internal/diag"
	"chocowat/internal/env"
	"chocowat/internal/source"
	"chocowat/internal/types"
)

type Options struct {
	// CheckMethodArgs validates method call arity and argument types
	// against the parameters after the receiver.
	CheckMethodArgs bool
	// RejectShadowing reports a parameter or local that reuses the name of
	// a global variable.
	RejectShadowing bool
}

// Check type-checks prog in a fresh environment.
func Check(prog *ast.Program, opts Options) (*ast.Program, *env.Env, error) {
	e := env.New()
	out, err := CheckIn(prog, e, opts)
	if err != nil {
		return nil, nil, err
	}
	return out, e, nil
}

// CheckIn type-checks prog, registering its declarations into e.
func CheckIn(prog *ast.Program, e *env.Env, opts Options) (*ast.Program, error) {
	c := &checker{env: e, opts: opts, funcNames: set.New[string](len(prog.Funcs) + len(prog.Classes))}
	return c.checkProgram(prog)
}

type checker struct {
	env  *env.Env
	opts Options
	// funcNames holds functions and classes, which share the call namespace.
	funcNames *set.Set[string]
}

func refErr(s source.Span, format string, args ...any) error {
	return diag.Errorf(diag.ReferenceError, diag.At(s), format, args...)
}

func typeErr(s source.Span, format string, args ...any) error {
	return diag.Errorf(diag.TypeError, diag.At(s), format, args...)
}

// checkProgram collects every declaration before checking any body, so
// bodies may refer to functions and classes declared after them.
func (c *checker) checkProgram(prog *ast.Program) (*ast.Program, error) {
	out := &ast.Program{}

	for _, cd := range prog.Classes {
		if err := c.declareName(cd.Name, cd.S, "class"); err != nil {
			return nil, err
		}
		if _, ok := c.env.Classes.Declare(cd.Name); !ok {
			return nil, typeErr(cd.S, "duplicate class %s", cd.Name)
		}
	}

	for _, vd := range prog.Vars {
		if _, dup := c.env.Globals.Var(vd.Var.Name); dup {
			return nil, typeErr(vd.S, "duplicate global variable %s", vd.Var.Name)
		}
		nvd, err := c.checkVarDef(vd)
		if err != nil {
			return nil, err
		}
		c.env.Globals.DefineVar(vd.Var.Name, vd.Var.Type)
		out.Vars = append(out.Vars, nvd)
	}

	sigs := make([]env.FuncSig, len(prog.Funcs))
	for i, fn := range prog.Funcs {
		if err := c.declareName(fn.Name, fn.S, "function"); err != nil {
			return nil, err
		}
		sig, err := c.signature(fn)
		if err != nil {
			return nil, err
		}
		c.env.Globals.DefineFunc(fn.Name, sig)
		sigs[i] = sig
	}

	fields := make([][]*ast.VarDef, len(prog.Classes))
	for i, cd := range prog.Classes {
		nf, err := c.declareMembers(cd)
		if err != nil {
			return nil, err
		}
		fields[i] = nf
	}

	for i, fn := range prog.Funcs {
		nfn, err := c.checkFunc(fn, sigs[i])
		if err != nil {
			return nil, err
		}
		out.Funcs = append(out.Funcs, nfn)
	}

	for i, cd := range prog.Classes {
		ncd := &ast.ClassDef{Name: cd.Name, Fields: fields[i], S: cd.S}
		for _, m := range cd.Methods {
			meth, _ := c.env.Classes.Method(cd.Name, m.Name)
			nm, err := c.checkFunc(m, meth.Sig)
			if err != nil {
				return nil, err
			}
			ncd.Methods = append(ncd.Methods, nm)
		}
		out.Classes = append(out.Classes, ncd)
	}

	stmts, err := c.checkStmts(c.env.Globals, prog.Stmts)
	if err != nil {
		return nil, err
	}
	out.Stmts = stmts
	return out, nil
}

func (c *checker) declareName(name string, s source.Span, what string) error {
	if isIntrinsic(name) {
		return typeErr(s, "cannot define %s %s: the name is reserved for a built-in", what, name)
	}
	if c.funcNames.Contains(name) {
		return typeErr(s, "duplicate declaration of %s", name)
	}
	c.funcNames.Insert(name)
	return nil
}

// resolveType fails for class types that were never declared.
func (c *checker) resolveType(t types.Type, s source.Span) error {
	if !t.Known() {
		return typeErr(s, "missing type annotation")
	}
	if t.IsObject() {
		if _, ok := c.env.Classes.Lookup(t.Class); !ok {
			return refErr(s, "unknown class %s", t.Class)
		}
	}
	return nil
}

func (c *checker) checkVarDef(vd *ast.VarDef) (*ast.VarDef, error) {
	if err := c.resolveType(vd.Var.Type, vd.Var.S); err != nil {
		return nil, err
	}
	lt := ast.LiteralType(vd.Init)
	if !types.Assignable(vd.Var.Type, lt) {
		return nil, typeErr(vd.S, "cannot initialize %s: %s with a value of type %s", vd.Var.Name, vd.Var.Type, lt)
	}
	return &ast.VarDef{Var: vd.Var, Init: cloneLit(vd.Init), S: vd.S}, nil
}

func (c *checker) signature(fn *ast.FuncDef) (env.FuncSig, error) {
	sig := env.FuncSig{Params: make([]types.Type, len(fn.Params)), Ret: fn.Ret}
	for i, p := range fn.Params {
		if err := c.resolveType(p.Type, p.S); err != nil {
			return env.FuncSig{}, err
		}
		sig.Params[i] = p.Type
	}
	if err := c.resolveType(fn.Ret, fn.S); err != nil {
		return env.FuncSig{}, err
	}
	return sig, nil
}

// declareMembers registers the fields and method signatures of an already
// declared class and returns its checked field definitions.
func (c *checker) declareMembers(cd *ast.ClassDef) ([]*ast.VarDef, error) {
	cls, _ := c.env.Classes.Lookup(cd.Name)
	var out []*ast.VarDef
	for _, fd := range cd.Fields {
		nfd, err := c.checkVarDef(fd)
		if err != nil {
			return nil, err
		}
		if _, ok := cls.AddField(fd.Var.Name, fd.Var.Type, nfd.Init); !ok {
			return nil, typeErr(fd.S, "duplicate attribute %s in class %s", fd.Var.Name, cd.Name)
		}
		out = append(out, nfd)
	}
	self := types.ObjectOf(cd.Name)
	for _, m := range cd.Methods {
		sig, err := c.signature(m)
		if err != nil {
			return nil, err
		}
		if len(sig.Params) == 0 || !types.Equal(sig.Params[0], self) {
			return nil, typeErr(m.S, "first parameter of method %s.%s must be of type %s", cd.Name, m.Name, cd.Name)
		}
		if _, clash := cls.Field(m.Name); clash {
			return nil, typeErr(m.S, "method %s.%s has the same name as an attribute", cd.Name, m.Name)
		}
		if _, ok := c.env.Classes.DeclareMethod(cd.Name, m.Name, sig); !ok {
			return nil, typeErr(m.S, "duplicate method %s in class %s", m.Name, cd.Name)
		}
	}
	return out, nil
}

// checkFunc checks a function or method body in a snapshot of the global
// scope extended with parameters and locals.
func (c *checker) checkFunc(fn *ast.FuncDef, sig env.FuncSig) (*ast.FuncDef, error) {
	scope := c.env.Globals.Extend(sig.Ret)
	seen := set.New[string](len(fn.Params) + len(fn.Vars))
	out := &ast.FuncDef{
		Name:   fn.Name,
		Params: append([]ast.TypedVar(nil), fn.Params...),
		Ret:    fn.Ret,
		S:      fn.S,
	}
	for _, p := range fn.Params {
		if err := c.bindLocal(scope, seen, fn.Name, p.Name, p.Type, p.S); err != nil {
			return nil, err
		}
	}
	for _, vd := range fn.Vars {
		nvd, err := c.checkVarDef(vd)
		if err != nil {
			return nil, err
		}
		if err := c.bindLocal(scope, seen, fn.Name, vd.Var.Name, vd.Var.Type, vd.S); err != nil {
			return nil, err
		}
		out.Vars = append(out.Vars, nvd)
	}
	body, err := c.checkStmts(scope, fn.Body)
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

func (c *checker) bindLocal(scope *env.Scope, seen *set.Set[string], fn, name string, t types.Type, s source.Span) error {
	if seen.Contains(name) {
		return typeErr(s, "duplicate parameter or local %s in %s", name, fn)
	}
	seen.Insert(name)
	if c.opts.RejectShadowing {
		if _, global := c.env.Globals.Var(name); global {
			return refErr(s, "%s in %s shadows a global variable", name, fn)
		}
	}
	scope.DefineVar(name, t)
	return nil
}

func cloneLit(l ast.Literal) ast.Literal {
	switch l := l.(type) {
	case *ast.NumLit:
		cp := *l
		return &cp
	case *ast.BoolLit:
		cp := *l
		return &cp
	case *ast.NoneLit:
		cp := *l
		return &cp
	default:
		panic(fmt.Sprintf("typecheck: unexpected literal %T", l))
	}
}
