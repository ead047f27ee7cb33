// Package codegen lowers a checked program to i32 stack-machine code.
//
// Variables are resolved by storage class only: inside a function a name
// that is also a global variable is accessed as the global, everything else
// is a local. Objects are word arrays in linear memory handed out by the
// bump allocator in package heap.
package codegen

import (
	"github.com/hashicorp/go-set/v2"
	"github.com/pkg/errors"

	"chocowat/internal/ast"
	"chocowat/internal/diag"
	"chocowat/internal/env"
	"chocowat/internal/heap"
	"chocowat/internal/wat"
)

// AssertNotNone is the host intrinsic called on object bases when null
// checks are enabled. It returns its argument and traps on 0.
const AssertNotNone = "assert_not_none"

type Options struct {
	NullChecks bool
}

// Generate produces the globals, the function bodies and the top-level
// code for a checked program. Errors are internal faults: a checked program
// always lowers.
func Generate(p *ast.Program, classes *env.ClassTable, opts Options) (*wat.Output, error) {
	g := &gen{
		classes: classes,
		opts:    opts,
		alloc:   heap.NewAllocator(),
		globals: set.New[string](len(p.Vars)),
		out:     &wat.Output{},
	}
	for _, vd := range p.Vars {
		g.globals.Insert(vd.Var.Name)
		g.out.Globals = append(g.out.Globals, wat.Global{Name: vd.Var.Name, Init: ast.LiteralValue(vd.Init)})
	}
	for _, fn := range p.Funcs {
		f, err := g.genFunc(fn.Name, fn)
		if err != nil {
			return nil, err
		}
		g.out.Funcs = append(g.out.Funcs, f)
	}
	for _, cd := range p.Classes {
		for _, m := range cd.Methods {
			meth, ok := classes.Method(cd.Name, m.Name)
			if !ok {
				return nil, internalf("method %s.%s missing from class table", cd.Name, m.Name)
			}
			f, err := g.genFunc(meth.Symbol.Name(), m)
			if err != nil {
				return nil, err
			}
			g.out.Funcs = append(g.out.Funcs, f)
		}
	}

	g.inFunc = false
	g.code = nil
	if err := g.genStmts(p.Stmts); err != nil {
		return nil, err
	}
	if err := wat.Balanced(g.code); err != nil {
		return nil, internalf("top level: %v", err)
	}
	g.out.TopLevel = g.code
	g.out.ConstructionSites, _ = g.alloc.Sites()
	if n := len(p.Stmts); n > 0 {
		_, g.out.HasResult = p.Stmts[n-1].(*ast.ExprStmt)
	}
	return g.out, nil
}

type gen struct {
	classes *env.ClassTable
	opts    Options
	alloc   *heap.Allocator
	globals *set.Set[string]
	out     *wat.Output

	inFunc bool
	code   []wat.Instr
}

func internalf(format string, args ...any) error {
	return errors.Wrap(diag.Errorf(diag.InternalError, diag.Loc{}, format, args...), "codegen")
}

func (g *gen) emit(ins ...wat.Instr) { g.code = append(g.code, ins...) }

func (g *gen) isGlobal(name string) bool {
	return !g.inFunc || g.globals.Contains(name)
}

func (g *gen) load(name string) wat.Instr {
	if g.isGlobal(name) {
		return wat.GlobalGet(name)
	}
	return wat.LocalGet(name)
}

func (g *gen) store(name string) wat.Instr {
	if g.isGlobal(name) {
		return wat.GlobalSet(name)
	}
	return wat.LocalSet(name)
}

func (g *gen) genFunc(name string, fn *ast.FuncDef) (*wat.Func, error) {
	g.inFunc = true
	g.code = nil
	f := &wat.Func{Name: name}
	for _, p := range fn.Params {
		f.Params = append(f.Params, p.Name)
	}
	for _, vd := range fn.Vars {
		f.Locals = append(f.Locals, vd.Var.Name)
	}
	f.Locals = append(f.Locals, wat.ScratchLocal)

	// Local initializers always target the declared local slot.
	for _, vd := range fn.Vars {
		g.emit(wat.Const(ast.LiteralValue(vd.Init)), wat.LocalSet(vd.Var.Name))
	}
	if err := g.genStmts(fn.Body); err != nil {
		return nil, err
	}
	if n := len(g.code); n == 0 || g.code[n-1].Op != wat.OpReturn {
		g.emit(wat.Const(0))
	}
	if err := wat.Balanced(g.code); err != nil {
		return nil, internalf("function %s: %v", name, err)
	}
	f.Body = g.code
	g.code = nil
	return f, nil
}

func (g *gen) genStmts(stmts []ast.Stmt) error {
	for _, st := range stmts {
		if err := g.genStmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (g *gen) genStmt(st ast.Stmt) error {
	switch s := st.(type) {
	case *ast.AssignStmt:
		if err := g.genExpr(s.Value); err != nil {
			return err
		}
		g.emit(g.store(s.Name))
	case *ast.FieldAssignStmt:
		idx, err := g.fieldIndex(s.Target)
		if err != nil {
			return err
		}
		if err := g.genObject(s.Target.Obj); err != nil {
			return err
		}
		g.emit(g.alloc.FieldAddr(idx)...)
		if err := g.genExpr(s.Value); err != nil {
			return err
		}
		g.emit(wat.Simple(wat.OpStore))
	case *ast.ExprStmt:
		if err := g.genExpr(s.Expr); err != nil {
			return err
		}
		g.emit(wat.LocalSet(wat.ScratchLocal))
	case *ast.PassStmt:
	case *ast.ReturnStmt:
		if err := g.genExpr(s.Value); err != nil {
			return err
		}
		g.emit(wat.Simple(wat.OpReturn))
	case *ast.IfStmt:
		if err := g.genExpr(s.Cond); err != nil {
			return err
		}
		g.emit(wat.Simple(wat.OpIf), wat.Simple(wat.OpThen))
		if err := g.genStmts(s.Then); err != nil {
			return err
		}
		g.emit(wat.Simple(wat.OpEnd), wat.Simple(wat.OpElse))
		if err := g.genStmts(s.Else); err != nil {
			return err
		}
		g.emit(wat.Simple(wat.OpEnd), wat.Simple(wat.OpEnd))
	case *ast.WhileStmt:
		// cond (if (then (loop body cond (br_if 0))) (else))
		if err := g.genExpr(s.Cond); err != nil {
			return err
		}
		g.emit(wat.Simple(wat.OpIf), wat.Simple(wat.OpThen), wat.Simple(wat.OpLoop))
		if err := g.genStmts(s.Body); err != nil {
			return err
		}
		if err := g.genExpr(s.Cond); err != nil {
			return err
		}
		g.emit(wat.BrIf(0), wat.Simple(wat.OpEnd), wat.Simple(wat.OpEnd),
			wat.Simple(wat.OpElse), wat.Simple(wat.OpEnd), wat.Simple(wat.OpEnd))
	default:
		return internalf("unsupported statement %T", st)
	}
	return nil
}
