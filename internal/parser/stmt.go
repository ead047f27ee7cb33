package parser

import (
	"chocowat/internal/ast"
	"chocowat/internal/lexer"
	"chocowat/internal/source"
)

func (p *Parser) parseStmt() ast.Stmt {
	switch p.peek().Kind {
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	default:
		return p.parseSimpleStmt()
	}
}

// parseSimpleStmt parses a one-line statement including its NEWLINE.
func (p *Parser) parseSimpleStmt() ast.Stmt {
	tok := p.peek()
	switch tok.Kind {
	case lexer.TokenPass:
		p.advance()
		p.expectNewline()
		return &ast.PassStmt{S: tok.Span}
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenDef, lexer.TokenClass:
		p.errorHere("nested definitions are not supported")
		return nil
	}
	if p.atVarDef() {
		p.errorHere("variable declarations are only allowed before statements")
		return nil
	}
	lhs := p.parseExpr()
	if lhs == nil {
		return nil
	}
	if !p.match(lexer.TokenAssign) {
		p.expectNewline()
		return &ast.ExprStmt{Expr: lhs, S: lhs.Span()}
	}
	rhs := p.parseExpr()
	if rhs == nil {
		return nil
	}
	if p.at(lexer.TokenAssign) {
		p.errorHere("chained assignment is not supported")
		return nil
	}
	p.expectNewline()
	sp := source.Join(lhs.Span(), rhs.Span())
	switch target := lhs.(type) {
	case *ast.IdentExpr:
		return &ast.AssignStmt{Name: target.Name, Value: rhs, S: sp}
	case *ast.FieldExpr:
		return &ast.FieldAssignStmt{Target: target, Value: rhs, S: sp}
	default:
		p.errorAt(lhs.Span(), "cannot assign to expression")
		return nil
	}
}

func (p *Parser) parseReturn() ast.Stmt {
	retTok := p.advance()
	if p.at(lexer.TokenNewline) || p.at(lexer.TokenEOF) || p.at(lexer.TokenDedent) {
		p.expectNewline()
		none := &ast.LiteralExpr{Lit: &ast.NoneLit{S: retTok.Span}, S: retTok.Span}
		return &ast.ReturnStmt{Value: none, S: retTok.Span}
	}
	val := p.parseExpr()
	if val == nil {
		return nil
	}
	p.expectNewline()
	return &ast.ReturnStmt{Value: val, S: source.Join(retTok.Span, val.Span())}
}

// if := 'if' expr ':' block { 'elif' expr ':' block } [ 'else' ':' block ]
// An elif chain becomes nested ifs in the else branch.
func (p *Parser) parseIf() ast.Stmt {
	ifTok := p.advance()
	cond := p.parseExpr()
	if cond == nil {
		return nil
	}
	then, thenSpan, ok := p.parseBlock()
	if !ok {
		return nil
	}
	st := &ast.IfStmt{Cond: cond, Then: then, Else: []ast.Stmt{}, S: source.Join(ifTok.Span, thenSpan)}
	switch {
	case p.at(lexer.TokenElif):
		nested := p.parseIf()
		if nested == nil {
			return nil
		}
		st.Else = []ast.Stmt{nested}
		st.S = source.Join(st.S, nested.Span())
	case p.match(lexer.TokenElse):
		els, elsSpan, ok := p.parseBlock()
		if !ok {
			return nil
		}
		st.Else = els
		st.S = source.Join(st.S, elsSpan)
	}
	return st
}

func (p *Parser) parseWhile() ast.Stmt {
	whileTok := p.advance()
	cond := p.parseExpr()
	if cond == nil {
		return nil
	}
	body, bodySpan, ok := p.parseBlock()
	if !ok {
		return nil
	}
	return &ast.WhileStmt{Cond: cond, Body: body, S: source.Join(whileTok.Span, bodySpan)}
}

// block := ':' ( simple_stmt | NEWLINE INDENT stmt { stmt } DEDENT )
func (p *Parser) parseBlock() ([]ast.Stmt, source.Span, bool) {
	colon := p.expect(lexer.TokenColon, "expected ':'")
	if colon.Kind != lexer.TokenColon {
		return nil, colon.Span, false
	}
	if !p.at(lexer.TokenNewline) {
		st := p.parseSimpleStmt()
		if st == nil {
			return nil, colon.Span, false
		}
		return []ast.Stmt{st}, st.Span(), true
	}
	if !p.expectBlockStart() {
		return nil, colon.Span, false
	}
	var out []ast.Stmt
	span := colon.Span
	for !p.at(lexer.TokenDedent) && !p.at(lexer.TokenEOF) {
		before := p.pos
		nerr := len(p.diags.Items)
		if st := p.parseStmt(); st != nil {
			out = append(out, st)
			span = source.Join(span, st.Span())
		}
		p.recover(before, nerr)
	}
	p.expect(lexer.TokenDedent, "expected end of block")
	if len(out) == 0 {
		p.errorAt(colon.Span, "expected at least one statement in block")
		return nil, span, false
	}
	return out, span, true
}
