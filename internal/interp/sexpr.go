package interp

import (
	"strings"

	"github.com/pkg/errors"
)

// node is an s-expression: an atom, a string literal, or a list.
type node struct {
	atom   string
	str    bool
	list   []*node
	isList bool
	line   int
}

func (n *node) head() string {
	if !n.isList || len(n.list) == 0 || n.list[0].isList {
		return ""
	}
	return n.list[0].atom
}

func (n *node) String() string {
	if !n.isList {
		if n.str {
			return `"` + n.atom + `"`
		}
		return n.atom
	}
	parts := make([]string, len(n.list))
	for i, c := range n.list {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

type reader struct {
	src  string
	pos  int
	line int
}

// parseSExpr reads exactly one top-level s-expression from src.
func parseSExpr(src string) (*node, error) {
	r := &reader{src: src, line: 1}
	if err := r.skip(); err != nil {
		return nil, err
	}
	n, err := r.read()
	if err != nil {
		return nil, err
	}
	if err := r.skip(); err != nil {
		return nil, err
	}
	if r.pos < len(r.src) {
		return nil, errors.Errorf("line %d: unexpected text after module", r.line)
	}
	return n, nil
}

// skip consumes whitespace, ";;" line comments and nested "(; ;)" block
// comments.
func (r *reader) skip() error {
	for r.pos < len(r.src) {
		ch := r.src[r.pos]
		switch {
		case ch == '\n':
			r.line++
			r.pos++
		case ch == ' ' || ch == '\t' || ch == '\r':
			r.pos++
		case strings.HasPrefix(r.src[r.pos:], ";;"):
			for r.pos < len(r.src) && r.src[r.pos] != '\n' {
				r.pos++
			}
		case strings.HasPrefix(r.src[r.pos:], "(;"):
			start := r.line
			depth := 0
			for {
				if r.pos >= len(r.src) {
					return errors.Errorf("line %d: unterminated block comment", start)
				}
				switch {
				case strings.HasPrefix(r.src[r.pos:], "(;"):
					depth++
					r.pos += 2
				case strings.HasPrefix(r.src[r.pos:], ";)"):
					depth--
					r.pos += 2
				default:
					if r.src[r.pos] == '\n' {
						r.line++
					}
					r.pos++
				}
				if depth == 0 {
					break
				}
			}
		default:
			return nil
		}
	}
	return nil
}

func (r *reader) read() (*node, error) {
	if r.pos >= len(r.src) {
		return nil, errors.Errorf("line %d: unexpected end of input", r.line)
	}
	line := r.line
	switch ch := r.src[r.pos]; ch {
	case '(':
		r.pos++
		n := &node{isList: true, line: line}
		for {
			if err := r.skip(); err != nil {
				return nil, err
			}
			if r.pos >= len(r.src) {
				return nil, errors.Errorf("line %d: unclosed '('", line)
			}
			if r.src[r.pos] == ')' {
				r.pos++
				return n, nil
			}
			child, err := r.read()
			if err != nil {
				return nil, err
			}
			n.list = append(n.list, child)
		}
	case ')':
		return nil, errors.Errorf("line %d: unexpected ')'", line)
	case '"':
		r.pos++
		var sb strings.Builder
		for {
			if r.pos >= len(r.src) || r.src[r.pos] == '\n' {
				return nil, errors.Errorf("line %d: unterminated string", line)
			}
			c := r.src[r.pos]
			r.pos++
			if c == '"' {
				return &node{atom: sb.String(), str: true, line: line}, nil
			}
			if c == '\\' && r.pos < len(r.src) {
				c = r.src[r.pos]
				r.pos++
			}
			sb.WriteByte(c)
		}
	default:
		start := r.pos
		for r.pos < len(r.src) {
			c := r.src[r.pos]
			if c == '(' || c == ')' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '"' || c == ';' {
				break
			}
			r.pos++
		}
		return &node{atom: r.src[start:r.pos], line: line}, nil
	}
}
