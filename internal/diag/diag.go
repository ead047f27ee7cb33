package diag

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"chocowat/internal/source"
)

// Kind classifies a compilation or execution failure.
type Kind int

const (
	KindNone Kind = iota
	ParseError
	ReferenceError
	TypeError
	InternalError
	RuntimeError
)

func (k Kind) String() string {
	switch k {
	case ParseError:
		return "PARSE ERROR"
	case ReferenceError:
		return "REFERENCE ERROR"
	case TypeError:
		return "TYPE ERROR"
	case InternalError:
		return "INTERNAL ERROR"
	case RuntimeError:
		return "RUNTIME ERROR"
	default:
		return "ERROR"
	}
}

type Loc struct {
	Filename string
	Line     int
	Col      int
}

func (l Loc) String() string {
	if l.Filename == "" && l.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line, l.Col)
}

// Error is a classified, fatal error. Values are always returned wrapped
// with a stack trace; use KindOf or errors.As to inspect them.
type Error struct {
	Kind Kind
	Msg  string
	Loc  Loc
}

func (e *Error) Error() string {
	if loc := e.Loc.String(); loc != "" {
		return fmt.Sprintf("%s: %s: %s", loc, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// At converts the start of a span to a Loc.
func At(s source.Span) Loc {
	fn, line, col := s.LocStart()
	return Loc{Filename: fn, Line: line, Col: col}
}

func New(kind Kind, loc Loc, msg string) error {
	return errors.WithStack(&Error{Kind: kind, Msg: msg, Loc: loc})
}

func Errorf(kind Kind, loc Loc, format string, args ...any) error {
	return New(kind, loc, fmt.Sprintf(format, args...))
}

// KindOf reports the classification of err, or KindNone when err carries
// no *Error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindNone
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

type Item struct {
	Filename string
	Line     int
	Col      int
	Msg      string
}

// Bag collects non-fatal diagnostics, e.g. from the parser, which keeps
// going after an error to report as much as it can.
type Bag struct {
	Items []Item
}

func (b *Bag) Add(filename string, line int, col int, msg string) {
	b.Items = append(b.Items, Item{Filename: filename, Line: line, Col: col, Msg: msg})
}

func (b *Bag) AddAt(loc Loc, msg string) {
	b.Add(loc.Filename, loc.Line, loc.Col, msg)
}

func (b *Bag) Empty() bool { return b == nil || len(b.Items) == 0 }

// Err folds the bag into one error of the given kind, anchored at the
// first item. It returns nil for an empty bag.
func (b *Bag) Err(kind Kind) error {
	if b.Empty() {
		return nil
	}
	items := b.sorted()
	msgs := make([]string, 0, len(items))
	for _, it := range items {
		msgs = append(msgs, it.Msg)
	}
	first := items[0]
	return New(kind, Loc{Filename: first.Filename, Line: first.Line, Col: first.Col}, strings.Join(msgs, "; "))
}

func (b *Bag) sorted() []Item {
	items := make([]Item, 0, len(b.Items))
	items = append(items, b.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Filename != items[j].Filename {
			return items[i].Filename < items[j].Filename
		}
		if items[i].Line != items[j].Line {
			return items[i].Line < items[j].Line
		}
		return items[i].Col < items[j].Col
	})
	return items
}

func Print(w io.Writer, b *Bag) {
	if b.Empty() {
		return
	}
	for _, it := range b.sorted() {
		fmt.Fprintf(w, "%s:%d:%d: error: %s\n", it.Filename, it.Line, it.Col, it.Msg)
	}
}

// PrintErr writes a single fatal error in the same layout as Print.
func PrintErr(w io.Writer, err error) {
	if err == nil {
		return
	}
	var de *Error
	if !errors.As(err, &de) {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	if loc := de.Loc.String(); loc != "" {
		fmt.Fprintf(w, "%s: error: %s: %s\n", loc, de.Kind, de.Msg)
		return
	}
	fmt.Fprintf(w, "error: %s: %s\n", de.Kind, de.Msg)
}
