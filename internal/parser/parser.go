package parser

import (
	"math"
	"strconv"

	"chocowat/internal/ast"
	"chocowat/internal/diag"
	"chocowat/internal/lexer"
	"chocowat/internal/source"
	"chocowat/internal/types"
)

type Parser struct {
	file  *source.File
	toks  []lexer.Token
	pos   int
	diags *diag.Bag
}

// Parse builds the program tree for file. The returned bag holds every
// syntax error found; the program is only meaningful when it is empty.
func Parse(file *source.File) (*ast.Program, *diag.Bag) {
	toks := lexer.Lex(file)
	p := &Parser{file: file, toks: toks, diags: &diag.Bag{}}
	return p.parseProgram(), p.diags
}

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	inStmts := false
	for !p.at(lexer.TokenEOF) {
		before := p.pos
		nerr := len(p.diags.Items)
		switch {
		case p.match(lexer.TokenNewline):
			continue
		case p.at(lexer.TokenDef):
			if inStmts {
				p.errorHere("function definitions must precede top-level statements")
			}
			if fn := p.parseFuncDef(); fn != nil {
				prog.Funcs = append(prog.Funcs, fn)
			}
		case p.at(lexer.TokenClass):
			if inStmts {
				p.errorHere("class definitions must precede top-level statements")
			}
			if cd := p.parseClassDef(); cd != nil {
				prog.Classes = append(prog.Classes, cd)
			}
		case p.atVarDef():
			if inStmts {
				p.errorHere("variable declarations must precede top-level statements")
			}
			if vd := p.parseVarDef(); vd != nil {
				prog.Vars = append(prog.Vars, vd)
			}
		default:
			inStmts = true
			if st := p.parseStmt(); st != nil {
				prog.Stmts = append(prog.Stmts, st)
			}
		}
		p.recover(before, nerr)
	}
	return prog
}

// recover skips the rest of the current line after a fresh error, and
// guarantees progress.
func (p *Parser) recover(before, nerr int) {
	if len(p.diags.Items) > nerr && !p.atLineStart() {
		for !p.at(lexer.TokenEOF) && !p.at(lexer.TokenNewline) {
			p.advance()
		}
		p.match(lexer.TokenNewline)
	}
	if p.pos == before {
		p.advance()
	}
}

func (p *Parser) atLineStart() bool {
	if p.pos == 0 {
		return true
	}
	k := p.toks[p.pos-1].Kind
	return k == lexer.TokenNewline || k == lexer.TokenDedent
}

func (p *Parser) atVarDef() bool {
	return p.at(lexer.TokenIdent) && p.peekN(1).Kind == lexer.TokenColon
}

// vardef := IDENT ':' type '=' literal NEWLINE
func (p *Parser) parseVarDef() *ast.VarDef {
	tv, ok := p.parseTypedVar()
	if !ok {
		return nil
	}
	p.expect(lexer.TokenAssign, "expected '=' and an initial value in variable declaration")
	lit := p.parseLiteral()
	if lit == nil {
		return nil
	}
	p.expectNewline()
	return &ast.VarDef{Var: tv, Init: lit, S: source.Join(tv.S, lit.Span())}
}

func (p *Parser) parseTypedVar() (ast.TypedVar, bool) {
	name := p.expect(lexer.TokenIdent, "expected name")
	if name.Kind != lexer.TokenIdent {
		return ast.TypedVar{}, false
	}
	p.expect(lexer.TokenColon, "expected ':' and a type annotation")
	ty, tspan, ok := p.parseType()
	if !ok {
		return ast.TypedVar{}, false
	}
	return ast.TypedVar{Name: name.Lexeme, Type: ty, S: source.Join(name.Span, tspan)}, true
}

// type := 'int' | 'bool' | IDENT
func (p *Parser) parseType() (types.Type, source.Span, bool) {
	tok := p.peek()
	switch tok.Kind {
	case lexer.TokenIdent:
		p.advance()
		switch tok.Lexeme {
		case "int":
			return types.TInt, tok.Span, true
		case "bool":
			return types.TBool, tok.Span, true
		default:
			return types.ObjectOf(tok.Lexeme), tok.Span, true
		}
	case lexer.TokenNone:
		p.errorHere("None is not a valid type annotation")
	default:
		p.errorHere("expected type")
	}
	return types.Type{}, tok.Span, false
}

// literal := ['-'] INT | 'True' | 'False' | 'None'
func (p *Parser) parseLiteral() ast.Literal {
	tok := p.peek()
	switch tok.Kind {
	case lexer.TokenMinus:
		p.advance()
		num := p.peek()
		if num.Kind != lexer.TokenInt {
			p.errorHere("expected integer after '-'")
			return nil
		}
		p.advance()
		v, ok := p.intValue(num, true)
		if !ok {
			return nil
		}
		return &ast.NumLit{Value: v, S: source.Join(tok.Span, num.Span)}
	case lexer.TokenInt:
		p.advance()
		v, ok := p.intValue(tok, false)
		if !ok {
			return nil
		}
		return &ast.NumLit{Value: v, S: tok.Span}
	case lexer.TokenTrue:
		p.advance()
		return &ast.BoolLit{Value: true, S: tok.Span}
	case lexer.TokenFalse:
		p.advance()
		return &ast.BoolLit{Value: false, S: tok.Span}
	case lexer.TokenNone:
		p.advance()
		return &ast.NoneLit{S: tok.Span}
	default:
		p.errorHere("expected literal")
		return nil
	}
}

func (p *Parser) intValue(tok lexer.Token, negate bool) (int32, bool) {
	n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
	if negate {
		n = -n
	}
	if err != nil || n < math.MinInt32 || n > math.MaxInt32 {
		p.errorAt(tok.Span, "integer literal out of range: "+tok.Lexeme)
		return 0, false
	}
	return int32(n), true
}

// funcdef := 'def' IDENT '(' [param {',' param}] ')' ['->' type] ':' body
func (p *Parser) parseFuncDef() *ast.FuncDef {
	defTok := p.advance()
	name := p.expect(lexer.TokenIdent, "expected function name")
	if name.Kind != lexer.TokenIdent {
		return nil
	}
	p.expect(lexer.TokenLParen, "expected '(' after function name")
	fn := &ast.FuncDef{Name: name.Lexeme, Ret: types.TNone}
	if !p.at(lexer.TokenRParen) {
		for {
			tv, ok := p.parseTypedVar()
			if !ok {
				return nil
			}
			fn.Params = append(fn.Params, tv)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.expect(lexer.TokenRParen, "expected ')' after parameters")
	if p.match(lexer.TokenArrow) {
		ret, _, ok := p.parseType()
		if !ok {
			return nil
		}
		fn.Ret = ret
	}
	p.expect(lexer.TokenColon, "expected ':' after function signature")
	if !p.expectBlockStart() {
		return nil
	}
	for !p.at(lexer.TokenDedent) && !p.at(lexer.TokenEOF) {
		before := p.pos
		nerr := len(p.diags.Items)
		if p.atVarDef() {
			if len(fn.Body) > 0 {
				p.errorHere("variable declarations must precede statements in a function body")
			}
			if vd := p.parseVarDef(); vd != nil {
				fn.Vars = append(fn.Vars, vd)
			}
		} else if st := p.parseStmt(); st != nil {
			fn.Body = append(fn.Body, st)
		}
		p.recover(before, nerr)
	}
	end := p.expect(lexer.TokenDedent, "expected end of function body")
	fn.S = source.Join(defTok.Span, end.Span)
	return fn
}

// classdef := 'class' IDENT '(' 'object' ')' ':' NEWLINE INDENT members DEDENT
func (p *Parser) parseClassDef() *ast.ClassDef {
	classTok := p.advance()
	name := p.expect(lexer.TokenIdent, "expected class name")
	if name.Kind != lexer.TokenIdent {
		return nil
	}
	p.expect(lexer.TokenLParen, "expected '(' and a base class")
	base := p.expect(lexer.TokenIdent, "expected base class")
	if base.Kind == lexer.TokenIdent && base.Lexeme != "object" {
		p.errorAt(base.Span, "class "+name.Lexeme+" must derive from object, not "+base.Lexeme)
	}
	p.expect(lexer.TokenRParen, "expected ')' after base class")
	p.expect(lexer.TokenColon, "expected ':' after class header")
	if !p.expectBlockStart() {
		return nil
	}
	cd := &ast.ClassDef{Name: name.Lexeme}
	for !p.at(lexer.TokenDedent) && !p.at(lexer.TokenEOF) {
		before := p.pos
		nerr := len(p.diags.Items)
		switch {
		case p.match(lexer.TokenPass):
			p.expectNewline()
		case p.at(lexer.TokenDef):
			if m := p.parseFuncDef(); m != nil {
				cd.Methods = append(cd.Methods, m)
			}
		case p.atVarDef():
			if vd := p.parseVarDef(); vd != nil {
				cd.Fields = append(cd.Fields, vd)
			}
		default:
			p.errorHere("expected attribute, method or pass in class body")
		}
		p.recover(before, nerr)
	}
	end := p.expect(lexer.TokenDedent, "expected end of class body")
	cd.S = source.Join(classTok.Span, end.Span)
	return cd
}

// expectBlockStart consumes NEWLINE INDENT after a ':'.
func (p *Parser) expectBlockStart() bool {
	if !p.at(lexer.TokenNewline) {
		p.errorHere("expected newline after ':'")
		return false
	}
	p.advance()
	if !p.at(lexer.TokenIndent) {
		p.errorHere("expected an indented block")
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expectNewline() {
	if p.at(lexer.TokenNewline) {
		p.advance()
		return
	}
	if p.at(lexer.TokenEOF) || p.at(lexer.TokenDedent) {
		return
	}
	p.errorHere("expected end of line")
}

// helpers
func (p *Parser) peek() lexer.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos]
}

func (p *Parser) peekN(n int) lexer.Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *Parser) at(k lexer.Kind) bool { return p.peek().Kind == k }

func (p *Parser) match(k lexer.Kind) bool {
	if p.at(k) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) advance() lexer.Token {
	t := p.peek()
	if t.Kind != lexer.TokenEOF {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k lexer.Kind, msg string) lexer.Token {
	if p.at(k) {
		return p.advance()
	}
	p.errorHere(msg)
	return p.peek()
}

// errorHere reports msg at the current token. A lexer error token reports
// its own message instead.
func (p *Parser) errorHere(msg string) {
	tok := p.peek()
	if tok.Kind == lexer.TokenBad {
		msg = tok.Lexeme
	}
	p.errorAt(tok.Span, msg)
}

func (p *Parser) errorAt(s source.Span, msg string) {
	fn, line, col := s.LocStart()
	p.diags.Add(fn, line, col, msg)
}
