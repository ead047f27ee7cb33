// Package types defines the closed set of static types: int, bool, None and
// nominal class types. There is no subtyping between classes.
package types

type Kind int

const (
	// Unknown is the zero value and marks an unannotated node.
	Unknown Kind = iota
	Int
	Bool
	None
	Object
)

type Type struct {
	K     Kind
	Class string // set only for Object
}

var (
	TInt  = Type{K: Int}
	TBool = Type{K: Bool}
	TNone = Type{K: None}
)

func ObjectOf(class string) Type { return Type{K: Object, Class: class} }

func (t Type) String() string {
	switch t.K {
	case Int:
		return "int"
	case Bool:
		return "bool"
	case None:
		return "None"
	case Object:
		return t.Class
	default:
		return "<unknown>"
	}
}

func (t Type) Known() bool    { return t.K != Unknown }
func (t Type) IsObject() bool { return t.K == Object }

// Equal reports exact type identity. Unknown is never equal to anything.
func Equal(a, b Type) bool {
	if a.K == Unknown || b.K == Unknown {
		return false
	}
	return a.K == b.K && a.Class == b.Class
}

// Assignable reports whether a value of type src may be stored where dst is
// declared: identical types, or None into any class type.
func Assignable(dst, src Type) bool {
	if Equal(dst, src) {
		return true
	}
	return dst.K == Object && src.K == None
}
