// Package env holds the scope tables threaded through type checking:
// variables, function signatures and the class table.
package env

import (
	"sort"

	"chocowat/internal/ast"
	"chocowat/internal/heap"
	"chocowat/internal/names"
	"chocowat/internal/types"
)

type FuncSig struct {
	Params []types.Type
	Ret    types.Type
}

// Env is the state of one compilation. Nothing in it is shared between
// compilations.
type Env struct {
	Globals *Scope
	Classes *ClassTable
}

func New() *Env {
	return &Env{Globals: NewScope(), Classes: NewClassTable()}
}

// Scope maps names to types. A function scope is an independent snapshot of
// its parent taken by Extend; later changes to either side are not visible
// to the other.
type Scope struct {
	vars   map[string]types.Type
	funcs  map[string]FuncSig
	ret    types.Type
	inFunc bool
}

func NewScope() *Scope {
	return &Scope{vars: map[string]types.Type{}, funcs: map[string]FuncSig{}}
}

// Extend returns a function-local copy of s expecting return type ret.
func (s *Scope) Extend(ret types.Type) *Scope {
	out := &Scope{
		vars:   make(map[string]types.Type, len(s.vars)),
		funcs:  make(map[string]FuncSig, len(s.funcs)),
		ret:    ret,
		inFunc: true,
	}
	for k, v := range s.vars {
		out.vars[k] = v
	}
	for k, v := range s.funcs {
		out.funcs[k] = v
	}
	return out
}

func (s *Scope) Var(name string) (types.Type, bool) {
	t, ok := s.vars[name]
	return t, ok
}

func (s *Scope) DefineVar(name string, t types.Type) { s.vars[name] = t }

func (s *Scope) Func(name string) (FuncSig, bool) {
	sig, ok := s.funcs[name]
	return sig, ok
}

func (s *Scope) DefineFunc(name string, sig FuncSig) { s.funcs[name] = sig }

// Ret reports the declared return type of the enclosing function; ok is
// false at the top level.
func (s *Scope) Ret() (t types.Type, ok bool) { return s.ret, s.inFunc }

func (s *Scope) VarNames() []string {
	out := make([]string, 0, len(s.vars))
	for k := range s.vars {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type Field struct {
	Name    string
	Type    types.Type
	Default ast.Literal
	Index   int
}

// Offset is the byte offset of the field from the object base.
func (f Field) Offset() int32 { return heap.FieldOffset(f.Index) }

// MethodKey identifies a method independently of how it is rendered.
type MethodKey struct {
	Class  string
	Method string
}

// Symbol is the stable function identity of a method. Index is assigned in
// declaration order across all classes.
type Symbol struct {
	Index  int
	Class  string
	Method string
}

// Name is the identifier of the method in the flat function namespace.
func (s Symbol) Name() string { return names.QualifyMethod(s.Class, s.Method) }

type Method struct {
	Symbol Symbol
	// Sig.Params includes the receiver as its first element.
	Sig FuncSig
}

type Class struct {
	Name     string
	Fields   []Field
	fieldIdx map[string]int
	methods  map[string]*Method
}

func (c *Class) Field(name string) (Field, bool) {
	i, ok := c.fieldIdx[name]
	if !ok {
		return Field{}, false
	}
	return c.Fields[i], true
}

// AddField appends a field at the next layout slot. It reports false if the
// name is taken.
func (c *Class) AddField(name string, t types.Type, def ast.Literal) (Field, bool) {
	if _, dup := c.fieldIdx[name]; dup {
		return Field{}, false
	}
	f := Field{Name: name, Type: t, Default: def, Index: len(c.Fields)}
	c.fieldIdx[name] = f.Index
	c.Fields = append(c.Fields, f)
	return f, true
}

// Defaults returns the encoded default value of every field in layout order.
func (c *Class) Defaults() []int32 {
	out := make([]int32, len(c.Fields))
	for i, f := range c.Fields {
		if f.Default != nil {
			out[i] = ast.LiteralValue(f.Default)
		}
	}
	return out
}

func (c *Class) Size() int32 { return heap.Size(len(c.Fields)) }

type ClassTable struct {
	classes map[string]*Class
	order   []string
	symbols map[MethodKey]*Method
	nextSym int
}

func NewClassTable() *ClassTable {
	return &ClassTable{classes: map[string]*Class{}, symbols: map[MethodKey]*Method{}}
}

// Declare registers an empty class. It reports false if the name is taken.
func (t *ClassTable) Declare(name string) (*Class, bool) {
	if _, dup := t.classes[name]; dup {
		return nil, false
	}
	c := &Class{Name: name, fieldIdx: map[string]int{}, methods: map[string]*Method{}}
	t.classes[name] = c
	t.order = append(t.order, name)
	return c, true
}

func (t *ClassTable) Lookup(name string) (*Class, bool) {
	c, ok := t.classes[name]
	return c, ok
}

// Names returns class names in declaration order.
func (t *ClassTable) Names() []string {
	return append([]string(nil), t.order...)
}

// DeclareMethod assigns the next symbol to class.method. It reports false if
// the class is unknown or the method already exists.
func (t *ClassTable) DeclareMethod(class, method string, sig FuncSig) (*Method, bool) {
	c, ok := t.classes[class]
	if !ok {
		return nil, false
	}
	key := MethodKey{Class: class, Method: method}
	if _, dup := t.symbols[key]; dup {
		return nil, false
	}
	m := &Method{Symbol: Symbol{Index: t.nextSym, Class: class, Method: method}, Sig: sig}
	t.nextSym++
	t.symbols[key] = m
	c.methods[method] = m
	return m, true
}

func (t *ClassTable) Method(class, method string) (*Method, bool) {
	m, ok := t.symbols[MethodKey{Class: class, Method: method}]
	return m, ok
}

// Methods returns the methods of class ordered by symbol index.
func (t *ClassTable) Methods(class string) []*Method {
	c, ok := t.classes[class]
	if !ok {
		return nil
	}
	out := make([]*Method, 0, len(c.methods))
	for _, m := range c.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol.Index < out[j].Symbol.Index })
	return out
}
