package parser

import (
	"strconv"

	"chocowat/internal/ast"
	"chocowat/internal/lexer"
	"chocowat/internal/source"
)

const (
	precCompare = 1
	precAdd     = 2
	precMul     = 3
)

// intrinsic arity; any other callee is a user function or constructor.
var intrinsics = map[string]int{
	"print": 1,
	"abs":   1,
	"min":   2,
	"max":   2,
	"pow":   2,
}

// expr := 'not' expr | binary
func (p *Parser) parseExpr() ast.Expr {
	if p.at(lexer.TokenNot) {
		notTok := p.advance()
		arg := p.parseExpr()
		if arg == nil {
			return nil
		}
		return &ast.UnaryExpr{Op: ast.Not, Arg: arg, S: source.Join(notTok.Span, arg.Span())}
	}
	return p.parseBinary(precCompare)
}

func (p *Parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	compared := false
	for {
		op, prec := p.peekInfix()
		if prec < minPrec {
			break
		}
		if prec == precCompare && compared {
			p.errorHere("comparison operators cannot be chained")
			return nil
		}
		p.advance()
		right := p.parseBinary(prec + 1)
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, S: source.Join(left.Span(), right.Span())}
		compared = compared || prec == precCompare
	}
	return left
}

func (p *Parser) peekInfix() (ast.BinOpKind, int) {
	switch p.peek().Kind {
	case lexer.TokenStar:
		return ast.Mul, precMul
	case lexer.TokenSlashSlash:
		return ast.Div, precMul
	case lexer.TokenPercent:
		return ast.Mod, precMul
	case lexer.TokenPlus:
		return ast.Plus, precAdd
	case lexer.TokenMinus:
		return ast.Minus, precAdd
	case lexer.TokenEqEq:
		return ast.Eq, precCompare
	case lexer.TokenBangEq:
		return ast.NE, precCompare
	case lexer.TokenLt:
		return ast.LT, precCompare
	case lexer.TokenGt:
		return ast.GT, precCompare
	case lexer.TokenLtEq:
		return ast.LTE, precCompare
	case lexer.TokenGtEq:
		return ast.GTE, precCompare
	case lexer.TokenIs:
		return ast.Is, precCompare
	default:
		return 0, -1
	}
}

// unary := '-' unary | postfix. A minus directly before an integer literal
// folds into a negative literal, which is how INT_MIN is written.
func (p *Parser) parseUnary() ast.Expr {
	if !p.at(lexer.TokenMinus) {
		return p.parsePostfix()
	}
	minus := p.advance()
	if p.at(lexer.TokenInt) {
		num := p.advance()
		v, ok := p.intValue(num, true)
		if !ok {
			return nil
		}
		sp := source.Join(minus.Span, num.Span)
		return &ast.LiteralExpr{Lit: &ast.NumLit{Value: v, S: sp}, S: sp}
	}
	arg := p.parseUnary()
	if arg == nil {
		return nil
	}
	return &ast.UnaryExpr{Op: ast.Negate, Arg: arg, S: source.Join(minus.Span, arg.Span())}
}

func (p *Parser) parsePostfix() ast.Expr {
	ex := p.parsePrimary()
	if ex == nil {
		return nil
	}
	for {
		switch {
		case p.at(lexer.TokenDot):
			p.advance()
			name := p.expect(lexer.TokenIdent, "expected attribute name after '.'")
			if name.Kind != lexer.TokenIdent {
				return nil
			}
			if p.at(lexer.TokenLParen) {
				args, end, ok := p.parseArgs()
				if !ok {
					return nil
				}
				ex = &ast.MethodCallExpr{Obj: ex, Method: name.Lexeme, Args: args, S: source.Join(ex.Span(), end)}
				continue
			}
			ex = &ast.FieldExpr{Obj: ex, Field: name.Lexeme, S: source.Join(ex.Span(), name.Span)}
		case p.at(lexer.TokenLParen):
			p.errorHere("only named functions and methods can be called")
			return nil
		default:
			return ex
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.peek()
	switch tok.Kind {
	case lexer.TokenInt, lexer.TokenTrue, lexer.TokenFalse, lexer.TokenNone:
		lit := p.parseLiteral()
		if lit == nil {
			return nil
		}
		return &ast.LiteralExpr{Lit: lit, S: lit.Span()}
	case lexer.TokenIdent:
		p.advance()
		if !p.at(lexer.TokenLParen) {
			return &ast.IdentExpr{Name: tok.Lexeme, S: tok.Span}
		}
		return p.parseCall(tok)
	case lexer.TokenLParen:
		p.advance()
		inner := p.parseExpr()
		if inner == nil {
			return nil
		}
		p.expect(lexer.TokenRParen, "expected ')'")
		return inner
	default:
		p.errorHere("expected expression")
		return nil
	}
}

func (p *Parser) parseCall(name lexer.Token) ast.Expr {
	args, end, ok := p.parseArgs()
	if !ok {
		return nil
	}
	sp := source.Join(name.Span, end)
	arity, intrinsic := intrinsics[name.Lexeme]
	if !intrinsic {
		return &ast.CallExpr{Name: name.Lexeme, Args: args, S: sp}
	}
	if len(args) != arity {
		p.errorAt(sp, name.Lexeme+"() takes exactly "+plural(arity, "argument"))
		return nil
	}
	if arity == 1 {
		return &ast.BuiltinExpr{Name: name.Lexeme, Arg: args[0], S: sp}
	}
	return &ast.Builtin2Expr{Name: name.Lexeme, Left: args[0], Right: args[1], S: sp}
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}

// args := '(' [expr {',' expr}] ')'
func (p *Parser) parseArgs() ([]ast.Expr, source.Span, bool) {
	p.expect(lexer.TokenLParen, "expected '('")
	var args []ast.Expr
	if !p.at(lexer.TokenRParen) {
		for {
			a := p.parseExpr()
			if a == nil {
				return nil, source.Span{}, false
			}
			args = append(args, a)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	end := p.expect(lexer.TokenRParen, "expected ')' after arguments")
	if end.Kind != lexer.TokenRParen {
		return nil, source.Span{}, false
	}
	return args, end.Span, true
}
