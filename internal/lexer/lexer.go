package lexer

import (
	"chocowat/internal/source"
)

const tabStop = 8

// Lex tokenizes file. Indentation changes at the start of logical lines
// become TokenIndent / TokenDedent; line breaks inside parentheses are
// ignored. Malformed input produces TokenBad tokens with a message in
// Lexeme; the stream always ends with TokenEOF.
func Lex(file *source.File) []Token {
	lx := &lexer{file: file, input: file.Input, indents: []int{0}, lineStart: true}
	for {
		if lx.lineStart && lx.depth == 0 {
			if !lx.lexIndent() {
				continue
			}
		}
		lx.skipSpaceAndComments()
		start := lx.pos
		if lx.pos >= len(lx.input) {
			lx.finish(start)
			break
		}
		ch := lx.peek()
		switch {
		case ch == '\n' || ch == '\r':
			lx.lexNewline()
		case isIdentStart(ch):
			lx.lexIdentOrKeyword()
		case isDigit(ch):
			lx.lexInt()
		default:
			lx.lexPunct()
		}
	}
	return lx.tokens
}

type lexer struct {
	file      *source.File
	input     string
	pos       int
	tokens    []Token
	indents   []int
	depth     int // open parentheses
	lineStart bool
}

func (lx *lexer) peek() byte { return lx.input[lx.pos] }

func (lx *lexer) next() byte {
	ch := lx.input[lx.pos]
	lx.pos++
	return ch
}

func (lx *lexer) emit(k Kind, lex string, start, end int) {
	lx.tokens = append(lx.tokens, Token{
		Kind:   k,
		Lexeme: lex,
		Span:   source.Span{File: lx.file, Start: start, End: end},
	})
}

func (lx *lexer) last() Kind {
	if len(lx.tokens) == 0 {
		return TokenNewline
	}
	return lx.tokens[len(lx.tokens)-1].Kind
}

// lexIndent measures the indentation of the line at lx.pos. Blank and
// comment-only lines are consumed whole and report false.
func (lx *lexer) lexIndent() bool {
	col := 0
	for lx.pos < len(lx.input) {
		switch lx.input[lx.pos] {
		case ' ':
			col++
		case '\t':
			col = (col/tabStop + 1) * tabStop
		case '\f':
			col = 0
		default:
			goto measured
		}
		lx.pos++
	}
measured:
	if lx.pos >= len(lx.input) {
		lx.lineStart = false
		return true
	}
	switch lx.input[lx.pos] {
	case '#', '\n', '\r':
		for lx.pos < len(lx.input) && lx.input[lx.pos] != '\n' {
			lx.pos++
		}
		if lx.pos < len(lx.input) {
			lx.pos++
		}
		return false
	}
	lx.lineStart = false

	top := lx.indents[len(lx.indents)-1]
	switch {
	case col > top:
		lx.indents = append(lx.indents, col)
		lx.emit(TokenIndent, "", lx.pos, lx.pos)
	case col < top:
		for len(lx.indents) > 1 && col < lx.indents[len(lx.indents)-1] {
			lx.indents = lx.indents[:len(lx.indents)-1]
			lx.emit(TokenDedent, "", lx.pos, lx.pos)
		}
		if col != lx.indents[len(lx.indents)-1] {
			lx.emit(TokenBad, "unindent does not match any outer indentation level", lx.pos, lx.pos)
		}
	}
	return true
}

func (lx *lexer) skipSpaceAndComments() {
	for lx.pos < len(lx.input) {
		ch := lx.input[lx.pos]
		if ch == ' ' || ch == '\t' || ch == '\f' {
			lx.pos++
			continue
		}
		if lx.depth > 0 && (ch == '\n' || ch == '\r') {
			lx.pos++
			continue
		}
		// line comment
		if ch == '#' {
			for lx.pos < len(lx.input) && lx.input[lx.pos] != '\n' && lx.input[lx.pos] != '\r' {
				lx.pos++
			}
			continue
		}
		return
	}
}

func (lx *lexer) lexNewline() {
	start := lx.pos
	if lx.next() == '\r' && lx.pos < len(lx.input) && lx.input[lx.pos] == '\n' {
		lx.pos++
	}
	if lx.last() != TokenNewline {
		lx.emit(TokenNewline, "", start, lx.pos)
	}
	lx.lineStart = true
}

func (lx *lexer) finish(at int) {
	if k := lx.last(); k != TokenNewline && k != TokenDedent {
		lx.emit(TokenNewline, "", at, at)
	}
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.emit(TokenDedent, "", at, at)
	}
	lx.emit(TokenEOF, "", at, at)
}

func (lx *lexer) lexIdentOrKeyword() {
	start := lx.pos
	lx.pos++
	for lx.pos < len(lx.input) && isIdentContinue(lx.input[lx.pos]) {
		lx.pos++
	}
	lex := lx.input[start:lx.pos]
	if k, ok := keywords[lex]; ok {
		lx.emit(k, lex, start, lx.pos)
		return
	}
	lx.emit(TokenIdent, lex, start, lx.pos)
}

func (lx *lexer) lexInt() {
	start := lx.pos
	for lx.pos < len(lx.input) && isDigit(lx.input[lx.pos]) {
		lx.pos++
	}
	if lx.pos < len(lx.input) && isIdentStart(lx.input[lx.pos]) {
		for lx.pos < len(lx.input) && isIdentContinue(lx.input[lx.pos]) {
			lx.pos++
		}
		lx.emit(TokenBad, "invalid decimal literal", start, lx.pos)
		return
	}
	lx.emit(TokenInt, lx.input[start:lx.pos], start, lx.pos)
}

func (lx *lexer) lexPunct() {
	start := lx.pos
	ch := lx.next()
	two := func(second byte, k2 Kind, lex2 string, k1 Kind, lex1 string) {
		if lx.pos < len(lx.input) && lx.input[lx.pos] == second {
			lx.pos++
			lx.emit(k2, lex2, start, lx.pos)
			return
		}
		lx.emit(k1, lex1, start, lx.pos)
	}
	switch ch {
	case '(':
		lx.depth++
		lx.emit(TokenLParen, "(", start, lx.pos)
	case ')':
		if lx.depth > 0 {
			lx.depth--
		}
		lx.emit(TokenRParen, ")", start, lx.pos)
	case ',':
		lx.emit(TokenComma, ",", start, lx.pos)
	case ':':
		lx.emit(TokenColon, ":", start, lx.pos)
	case '.':
		lx.emit(TokenDot, ".", start, lx.pos)
	case '+':
		lx.emit(TokenPlus, "+", start, lx.pos)
	case '*':
		lx.emit(TokenStar, "*", start, lx.pos)
	case '%':
		lx.emit(TokenPercent, "%", start, lx.pos)
	case '-':
		two('>', TokenArrow, "->", TokenMinus, "-")
	case '=':
		two('=', TokenEqEq, "==", TokenAssign, "=")
	case '<':
		two('=', TokenLtEq, "<=", TokenLt, "<")
	case '>':
		two('=', TokenGtEq, ">=", TokenGt, ">")
	case '!':
		two('=', TokenBangEq, "!=", TokenBad, "unexpected character '!'")
	case '/':
		two('/', TokenSlashSlash, "//", TokenBad, "true division '/' is not supported, use '//'")
	default:
		lx.emit(TokenBad, "unexpected character "+quoteByte(ch), start, lx.pos)
	}
}

func quoteByte(ch byte) string {
	if ch < 0x20 || ch >= 0x7f {
		return "0x" + string("0123456789abcdef"[ch>>4]) + string("0123456789abcdef"[ch&0xf])
	}
	return "'" + string(ch) + "'"
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentContinue(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
