package typecheck

import (
	"chocowat/internal/ast"
	"chocowat/internal/env"
	"chocowat/internal/types"
)

// checkStmts never returns a nil slice on success; an empty else branch
// stays present in the annotated tree.
func (c *checker) checkStmts(scope *env.Scope, stmts []ast.Stmt) ([]ast.Stmt, error) {
	out := make([]ast.Stmt, 0, len(stmts))
	for _, st := range stmts {
		nst, err := c.checkStmt(scope, st)
		if err != nil {
			return nil, err
		}
		out = append(out, nst)
	}
	return out, nil
}

func (c *checker) checkStmt(scope *env.Scope, st ast.Stmt) (ast.Stmt, error) {
	switch s := st.(type) {
	case *ast.AssignStmt:
		want, ok := scope.Var(s.Name)
		if !ok {
			return nil, refErr(s.S, "assignment to undeclared variable %s", s.Name)
		}
		val, err := c.checkExpr(scope, s.Value)
		if err != nil {
			return nil, err
		}
		if !types.Assignable(want, val.Type()) {
			return nil, typeErr(s.S, "cannot assign a value of type %s to %s: %s", val.Type(), s.Name, want)
		}
		return &ast.AssignStmt{Name: s.Name, Value: val, S: s.S}, nil

	case *ast.FieldAssignStmt:
		target, err := c.checkField(scope, s.Target)
		if err != nil {
			return nil, err
		}
		val, err := c.checkExpr(scope, s.Value)
		if err != nil {
			return nil, err
		}
		if !types.Assignable(target.Ty, val.Type()) {
			return nil, typeErr(s.S, "cannot assign a value of type %s to attribute %s: %s", val.Type(), target.Field, target.Ty)
		}
		return &ast.FieldAssignStmt{Target: target, Value: val, S: s.S}, nil

	case *ast.ExprStmt:
		ex, err := c.checkExpr(scope, s.Expr)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Expr: ex, Ty: ex.Type(), S: s.S}, nil

	case *ast.PassStmt:
		return &ast.PassStmt{S: s.S}, nil

	case *ast.ReturnStmt:
		want, ok := scope.Ret()
		if !ok {
			return nil, typeErr(s.S, "return outside of a function")
		}
		val, err := c.checkExpr(scope, s.Value)
		if err != nil {
			return nil, err
		}
		if !types.Assignable(want, val.Type()) {
			return nil, typeErr(s.S, "cannot return a value of type %s, expected %s", val.Type(), want)
		}
		return &ast.ReturnStmt{Value: val, S: s.S}, nil

	case *ast.IfStmt:
		cond, err := c.checkCond(scope, s.Cond, "if")
		if err != nil {
			return nil, err
		}
		then, err := c.checkStmts(scope, s.Then)
		if err != nil {
			return nil, err
		}
		els, err := c.checkStmts(scope, s.Else)
		if err != nil {
			return nil, err
		}
		return &ast.IfStmt{Cond: cond, Then: then, Else: els, S: s.S}, nil

	case *ast.WhileStmt:
		cond, err := c.checkCond(scope, s.Cond, "while")
		if err != nil {
			return nil, err
		}
		body, err := c.checkStmts(scope, s.Body)
		if err != nil {
			return nil, err
		}
		return &ast.WhileStmt{Cond: cond, Body: body, S: s.S}, nil
	}
	return nil, typeErr(st.Span(), "unsupported statement %T", st)
}

func (c *checker) checkCond(scope *env.Scope, e ast.Expr, what string) (ast.Expr, error) {
	cond, err := c.checkExpr(scope, e)
	if err != nil {
		return nil, err
	}
	if !types.Equal(cond.Type(), types.TBool) {
		return nil, typeErr(e.Span(), "%s condition must be bool, got %s", what, cond.Type())
	}
	return cond, nil
}
