package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestKindOfSurvivesWrapping(t *testing.T) {
	err := New(ReferenceError, Loc{Filename: "a.py", Line: 3, Col: 1}, "unknown identifier: y")
	wrapped := errors.Wrap(err, "compile a.py")
	if got := KindOf(wrapped); got != ReferenceError {
		t.Fatalf("KindOf = %v", got)
	}
	if !Is(wrapped, ReferenceError) || Is(wrapped, TypeError) {
		t.Fatalf("Is mismatch")
	}
	if KindOf(errors.New("plain")) != KindNone {
		t.Fatalf("plain error must be unclassified")
	}
	if !strings.Contains(wrapped.Error(), "a.py:3:1: REFERENCE ERROR: unknown identifier: y") {
		t.Fatalf("message: %s", wrapped.Error())
	}
}

func TestErrorWithoutLocation(t *testing.T) {
	err := Errorf(TypeError, Loc{}, "expected %s, got %s", "int", "bool")
	if err.Error() != "TYPE ERROR: expected int, got bool" {
		t.Fatalf("message: %s", err.Error())
	}
}

func TestBagErrAndPrintAreSorted(t *testing.T) {
	var b Bag
	if b.Err(ParseError) != nil {
		t.Fatalf("empty bag must not produce an error")
	}
	b.Add("m.py", 4, 2, "second")
	b.Add("m.py", 1, 7, "first")
	err := b.Err(ParseError)
	if KindOf(err) != ParseError {
		t.Fatalf("kind: %v", KindOf(err))
	}
	if !strings.HasPrefix(err.Error(), "m.py:1:7: PARSE ERROR: first; second") {
		t.Fatalf("message: %s", err.Error())
	}
	var out bytes.Buffer
	Print(&out, &b)
	want := "m.py:1:7: error: first\nm.py:4:2: error: second\n"
	if out.String() != want {
		t.Fatalf("print:\n%s", out.String())
	}
}

func TestPrintErr(t *testing.T) {
	var out bytes.Buffer
	PrintErr(&out, New(TypeError, Loc{Filename: "m.py", Line: 2, Col: 5}, "condition must be bool"))
	PrintErr(&out, errors.New("disk full"))
	want := "m.py:2:5: error: TYPE ERROR: condition must be bool\nerror: disk full\n"
	if out.String() != want {
		t.Fatalf("print:\n%s", out.String())
	}
}
