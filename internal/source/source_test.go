package source

import "testing"

func TestLineColUnicodeColumns(t *testing.T) {
	f := NewFile("x.py", "a中b\nxy\n")

	type tc struct {
		off      int
		wantLine int
		wantCol  int
	}
	// byte offsets: a(0), 中(1..3), b(4), \n(5)
	cases := []tc{
		{off: 0, wantLine: 1, wantCol: 1},
		{off: 1, wantLine: 1, wantCol: 2},
		{off: 2, wantLine: 1, wantCol: 2},
		{off: 4, wantLine: 1, wantCol: 3},
		{off: 5, wantLine: 1, wantCol: 4},
		{off: 6, wantLine: 2, wantCol: 1},
		{off: 7, wantLine: 2, wantCol: 2},
		{off: 99, wantLine: 3, wantCol: 1},
	}
	for _, c := range cases {
		line, col := f.LineCol(c.off)
		if line != c.wantLine || col != c.wantCol {
			t.Fatalf("off=%d => (%d,%d), want (%d,%d)", c.off, line, col, c.wantLine, c.wantCol)
		}
	}
}

func TestLineText(t *testing.T) {
	f := NewFile("x.py", "x: int = 1\r\nx\n")
	if got := f.Line(1); got != "x: int = 1" {
		t.Fatalf("line 1: %q", got)
	}
	if got := f.Line(2); got != "x" {
		t.Fatalf("line 2: %q", got)
	}
	if got := f.Line(9); got != "" {
		t.Fatalf("line 9: %q", got)
	}
}

func TestJoinAndString(t *testing.T) {
	f := NewFile("m.py", "abc\ndef\n")
	a := Span{File: f, Start: 4, End: 5}
	b := Span{File: f, Start: 6, End: 7}
	j := Join(b, a)
	if j.Start != 4 || j.End != 7 || j.Text() != "def" {
		t.Fatalf("join: %+v %q", j, j.Text())
	}
	if got := j.String(); got != "m.py:2:1" {
		t.Fatalf("string: %q", got)
	}
	if got := Join(Span{}, a); got != a {
		t.Fatalf("join with empty: %+v", got)
	}
	if got := (Span{}).String(); got != "<unknown>" {
		t.Fatalf("empty span string: %q", got)
	}
}
