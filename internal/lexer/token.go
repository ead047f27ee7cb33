package lexer

import "chocowat/internal/source"

type Kind int

const (
	TokenEOF Kind = iota
	TokenBad

	// Layout
	TokenNewline
	TokenIndent
	TokenDedent

	// Literals / identifiers
	TokenIdent
	TokenInt

	// Keywords
	TokenDef
	TokenClass
	TokenIf
	TokenElif
	TokenElse
	TokenWhile
	TokenReturn
	TokenPass
	TokenNot
	TokenIs
	TokenTrue
	TokenFalse
	TokenNone

	// Punct
	TokenLParen
	TokenRParen
	TokenComma
	TokenColon
	TokenDot
	TokenArrow
	TokenAssign

	// Operators
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlashSlash
	TokenPercent
	TokenEqEq
	TokenBangEq
	TokenLt
	TokenLtEq
	TokenGt
	TokenGtEq
)

var kindNames = [...]string{
	TokenEOF:        "end of file",
	TokenBad:        "invalid token",
	TokenNewline:    "newline",
	TokenIndent:     "indent",
	TokenDedent:     "dedent",
	TokenIdent:      "identifier",
	TokenInt:        "integer",
	TokenDef:        "'def'",
	TokenClass:      "'class'",
	TokenIf:         "'if'",
	TokenElif:       "'elif'",
	TokenElse:       "'else'",
	TokenWhile:      "'while'",
	TokenReturn:     "'return'",
	TokenPass:       "'pass'",
	TokenNot:        "'not'",
	TokenIs:         "'is'",
	TokenTrue:       "'True'",
	TokenFalse:      "'False'",
	TokenNone:       "'None'",
	TokenLParen:     "'('",
	TokenRParen:     "')'",
	TokenComma:      "','",
	TokenColon:      "':'",
	TokenDot:        "'.'",
	TokenArrow:      "'->'",
	TokenAssign:     "'='",
	TokenPlus:       "'+'",
	TokenMinus:      "'-'",
	TokenStar:       "'*'",
	TokenSlashSlash: "'//'",
	TokenPercent:    "'%'",
	TokenEqEq:       "'=='",
	TokenBangEq:     "'!='",
	TokenLt:         "'<'",
	TokenLtEq:       "'<='",
	TokenGt:         "'>'",
	TokenGtEq:       "'>='",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "token"
}

var keywords = map[string]Kind{
	"def":    TokenDef,
	"class":  TokenClass,
	"if":     TokenIf,
	"elif":   TokenElif,
	"else":   TokenElse,
	"while":  TokenWhile,
	"return": TokenReturn,
	"pass":   TokenPass,
	"not":    TokenNot,
	"is":     TokenIs,
	"True":   TokenTrue,
	"False":  TokenFalse,
	"None":   TokenNone,
}

type Token struct {
	Kind   Kind
	Lexeme string
	Span   source.Span
}

func (t Token) Is(k Kind) bool { return t.Kind == k }
