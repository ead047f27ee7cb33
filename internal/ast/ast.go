package ast

import (
	"chocowat/internal/source"
	"chocowat/internal/types"
)

// Program is a whole compilation unit. Declarations always precede the
// top-level statements.
type Program struct {
	Vars    []*VarDef
	Funcs   []*FuncDef
	Classes []*ClassDef
	Stmts   []Stmt
}

type TypedVar struct {
	Name string
	Type types.Type
	S    source.Span
}

// VarDef declares a variable with a mandatory literal initializer.
type VarDef struct {
	Var  TypedVar
	Init Literal
	S    source.Span
}

type FuncDef struct {
	Name   string
	Params []TypedVar
	Ret    types.Type
	Vars   []*VarDef
	Body   []Stmt
	S      source.Span
}

// ClassDef fields are in declaration order, which is also the heap layout
// order.
type ClassDef struct {
	Name    string
	Fields  []*VarDef
	Methods []*FuncDef
	S       source.Span
}

// Literal
type Literal interface {
	litNode()
	Span() source.Span
}

type NumLit struct {
	Value int32
	S     source.Span
}

func (*NumLit) litNode()            {}
func (l *NumLit) Span() source.Span { return l.S }

type BoolLit struct {
	Value bool
	S     source.Span
}

func (*BoolLit) litNode()            {}
func (l *BoolLit) Span() source.Span { return l.S }

type NoneLit struct {
	S source.Span
}

func (*NoneLit) litNode()            {}
func (l *NoneLit) Span() source.Span { return l.S }

// LiteralType is the fixed type of a literal.
func LiteralType(l Literal) types.Type {
	switch l.(type) {
	case *NumLit:
		return types.TInt
	case *BoolLit:
		return types.TBool
	case *NoneLit:
		return types.TNone
	default:
		return types.Type{}
	}
}

// LiteralValue is the i32 encoding of a literal: bools as 0/1, None as 0.
func LiteralValue(l Literal) int32 {
	switch l := l.(type) {
	case *NumLit:
		return l.Value
	case *BoolLit:
		if l.Value {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Stmt
type Stmt interface {
	stmtNode()
	Span() source.Span
}

type AssignStmt struct {
	Name  string
	Value Expr
	S     source.Span
}

func (*AssignStmt) stmtNode()           {}
func (s *AssignStmt) Span() source.Span { return s.S }

type FieldAssignStmt struct {
	Target *FieldExpr
	Value  Expr
	S      source.Span
}

func (*FieldAssignStmt) stmtNode()           {}
func (s *FieldAssignStmt) Span() source.Span { return s.S }

// ExprStmt evaluates Expr for its value; Ty mirrors the expression type
// once checked.
type ExprStmt struct {
	Expr Expr
	Ty   types.Type
	S    source.Span
}

func (*ExprStmt) stmtNode()           {}
func (s *ExprStmt) Span() source.Span { return s.S }

type PassStmt struct {
	S source.Span
}

func (*PassStmt) stmtNode()           {}
func (s *PassStmt) Span() source.Span { return s.S }

type ReturnStmt struct {
	Value Expr
	S     source.Span
}

func (*ReturnStmt) stmtNode()           {}
func (s *ReturnStmt) Span() source.Span { return s.S }

// IfStmt always has an Else slice; it is empty when the source had none.
type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
	S    source.Span
}

func (*IfStmt) stmtNode()           {}
func (s *IfStmt) Span() source.Span { return s.S }

type WhileStmt struct {
	Cond Expr
	Body []Stmt
	S    source.Span
}

func (*WhileStmt) stmtNode()           {}
func (s *WhileStmt) Span() source.Span { return s.S }

// Expr nodes carry their resolved type in Ty. It is types.Unknown until the
// checker produces an annotated copy.
type Expr interface {
	exprNode()
	Span() source.Span
	Type() types.Type
}

type LiteralExpr struct {
	Lit Literal
	Ty  types.Type
	S   source.Span
}

func (*LiteralExpr) exprNode()           {}
func (e *LiteralExpr) Span() source.Span { return e.S }
func (e *LiteralExpr) Type() types.Type  { return e.Ty }

type IdentExpr struct {
	Name string
	Ty   types.Type
	S    source.Span
}

func (*IdentExpr) exprNode()           {}
func (e *IdentExpr) Span() source.Span { return e.S }
func (e *IdentExpr) Type() types.Type  { return e.Ty }

// BuiltinExpr is a one-argument intrinsic. The checker rewrites "print" to
// the concrete print_num / print_bool / print_none intrinsic.
type BuiltinExpr struct {
	Name string
	Arg  Expr
	Ty   types.Type
	S    source.Span
}

func (*BuiltinExpr) exprNode()           {}
func (e *BuiltinExpr) Span() source.Span { return e.S }
func (e *BuiltinExpr) Type() types.Type  { return e.Ty }

// Builtin2Expr is a two-argument intrinsic (min, max, pow).
type Builtin2Expr struct {
	Name  string
	Left  Expr
	Right Expr
	Ty    types.Type
	S     source.Span
}

func (*Builtin2Expr) exprNode()           {}
func (e *Builtin2Expr) Span() source.Span { return e.S }
func (e *Builtin2Expr) Type() types.Type  { return e.Ty }

type BinOpKind int

const (
	Plus BinOpKind = iota
	Minus
	Mul
	Div
	Mod
	Eq
	NE
	LT
	GT
	LTE
	GTE
	Is
)

func (op BinOpKind) String() string {
	switch op {
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "//"
	case Mod:
		return "%"
	case Eq:
		return "=="
	case NE:
		return "!="
	case LT:
		return "<"
	case GT:
		return ">"
	case LTE:
		return "<="
	case GTE:
		return ">="
	case Is:
		return "is"
	default:
		return "?"
	}
}

type BinaryExpr struct {
	Op    BinOpKind
	Left  Expr
	Right Expr
	Ty    types.Type
	S     source.Span
}

func (*BinaryExpr) exprNode()           {}
func (e *BinaryExpr) Span() source.Span { return e.S }
func (e *BinaryExpr) Type() types.Type  { return e.Ty }

type UnaryOpKind int

const (
	Not UnaryOpKind = iota
	Negate
)

func (op UnaryOpKind) String() string {
	if op == Not {
		return "not"
	}
	return "-"
}

type UnaryExpr struct {
	Op  UnaryOpKind
	Arg Expr
	Ty  types.Type
	S   source.Span
}

func (*UnaryExpr) exprNode()           {}
func (e *UnaryExpr) Span() source.Span { return e.S }
func (e *UnaryExpr) Type() types.Type  { return e.Ty }

// CallExpr is either a function call or, when Constructor is set by the
// checker, an object construction of class Name.
type CallExpr struct {
	Name        string
	Args        []Expr
	Constructor bool
	Ty          types.Type
	S           source.Span
}

func (*CallExpr) exprNode()           {}
func (e *CallExpr) Span() source.Span { return e.S }
func (e *CallExpr) Type() types.Type  { return e.Ty }

type FieldExpr struct {
	Obj   Expr
	Field string
	Ty    types.Type
	S     source.Span
}

func (*FieldExpr) exprNode()           {}
func (e *FieldExpr) Span() source.Span { return e.S }
func (e *FieldExpr) Type() types.Type  { return e.Ty }

type MethodCallExpr struct {
	Obj    Expr
	Method string
	Args   []Expr
	Ty     types.Type
	S      source.Span
}

func (*MethodCallExpr) exprNode()           {}
func (e *MethodCallExpr) Span() source.Span { return e.S }
func (e *MethodCallExpr) Type() types.Type  { return e.Ty }
