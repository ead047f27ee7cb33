package source

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// File holds one program text and the byte offsets of its line starts.
type File struct {
	Name        string
	Input       string
	lineOffsets []int
}

func NewFile(name string, input string) *File {
	f := &File{Name: name, Input: input, lineOffsets: []int{0}}
	for i := 0; i < len(input); i++ {
		if input[i] == '\n' {
			f.lineOffsets = append(f.lineOffsets, i+1)
		}
	}
	return f
}

// LineCol returns the 1-based line and rune column of a byte offset.
func (f *File) LineCol(off int) (int, int) {
	off = max(0, min(off, len(f.Input)))
	i := sort.Search(len(f.lineOffsets), func(i int) bool { return f.lineOffsets[i] > off }) - 1
	if i < 0 {
		i = 0
	}
	col := 1
	for pos := f.lineOffsets[i]; pos < off; {
		_, sz := utf8.DecodeRuneInString(f.Input[pos:])
		if sz <= 0 {
			sz = 1
		}
		if pos+sz > off {
			break
		}
		col++
		pos += sz
	}
	return i + 1, col
}

// Line returns the text of a 1-based line without its newline.
func (f *File) Line(n int) string {
	if n < 1 || n > len(f.lineOffsets) {
		return ""
	}
	start := f.lineOffsets[n-1]
	end := len(f.Input)
	if n < len(f.lineOffsets) {
		end = f.lineOffsets[n] - 1
	}
	if end > start && f.Input[end-1] == '\r' {
		end--
	}
	return f.Input[start:end]
}

// Span is a half-open byte range [Start, End) within File.
type Span struct {
	File       *File
	Start, End int
}

func (s Span) LocStart() (filename string, line int, col int) {
	if s.File == nil {
		return "", 0, 0
	}
	line, col = s.File.LineCol(s.Start)
	return s.File.Name, line, col
}

func (s Span) Text() string {
	if s.File == nil || s.Start < 0 || s.End > len(s.File.Input) || s.Start > s.End {
		return ""
	}
	return s.File.Input[s.Start:s.End]
}

func (s Span) String() string {
	fn, line, col := s.LocStart()
	if fn == "" && line == 0 {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", fn, line, col)
}

// Join returns the smallest span covering a and b. A span without a file
// yields the other one.
func Join(a, b Span) Span {
	if a.File == nil {
		return b
	}
	if b.File == nil {
		return a
	}
	return Span{File: a.File, Start: min(a.Start, b.Start), End: max(a.End, b.End)}
}
