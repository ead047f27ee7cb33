package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"

	"chocowat/internal/diag"
	"chocowat/internal/driver"
	"chocowat/internal/host"
	"chocowat/internal/lexer"
	"chocowat/internal/source"
	"chocowat/internal/types"
)

const (
	historyFile = ".chocowat_history"
	promptMain  = ">>> "
	promptCont  = "... "
)

const replHelp = `:help   show this message
:quit   leave the session
:reset  forget all definitions and statements
:wat    print the module compiled for the last accepted input
Blocks ending in ':' continue until an empty line.`

// session replays the accepted program on every input. Declarations and
// statements are kept apart so declarations can still precede statements.
type session struct {
	opts  driver.Options
	decls []string
	stmts []string
	// shown is how much of the replayed print output was already shown.
	shown int
	last  *driver.Result
}

func newSession(opts driver.Options) *session {
	return &session{opts: opts}
}

func (s *session) reset() {
	s.decls, s.stmts, s.shown, s.last = nil, nil, 0, nil
}

func (s *session) program(decls, stmts []string) string {
	var sb strings.Builder
	for _, part := range decls {
		sb.WriteString(part)
		sb.WriteByte('\n')
	}
	for _, part := range stmts {
		sb.WriteString(part)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// isDeclaration reports whether input starts with a def, a class or a
// typed variable definition.
func isDeclaration(input string) bool {
	toks := lexer.Lex(source.NewFile("<repl>", input))
	if len(toks) == 0 {
		return false
	}
	switch toks[0].Kind {
	case lexer.TokenDef, lexer.TokenClass:
		return true
	case lexer.TokenIdent:
		return len(toks) > 1 && toks[1].Kind == lexer.TokenColon
	}
	return false
}

// eval compiles the session plus input and runs it. New print output is
// written to out; the rendered value of an expression input is returned.
// Rejected input leaves the session unchanged.
func (s *session) eval(input string, out io.Writer) (string, error) {
	input = strings.TrimRight(input, "\n")
	decls, stmts := s.decls, s.stmts
	decl := isDeclaration(input)
	if decl {
		decls = append(decls[:len(decls):len(decls)], input)
	} else {
		stmts = append(stmts[:len(stmts):len(stmts)], input)
	}
	res, err := driver.Compile(source.NewFile("<repl>", s.program(decls, stmts)), s.opts)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	v, runErr := res.Exec(&buf)
	if printed := buf.String(); len(printed) > s.shown {
		io.WriteString(out, printed[s.shown:])
	}
	if runErr != nil {
		return "", runErr
	}
	s.decls, s.stmts, s.last = decls, stmts, res
	s.shown = buf.Len()
	// None results are not echoed, like print(...) at a Python prompt.
	if decl || !v.HasValue || res.LastType.K == types.None {
		return "", nil
	}
	return driver.FormatValue(v.Value, res.LastType), nil
}

// command handles a ':' line. It reports whether the session should end.
func (s *session) command(line string, out io.Writer) (exit bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h":
		fmt.Fprintln(out, replHelp)
		imports := host.IntrinsicNames(s.opts.Host).Slice()
		sort.Strings(imports)
		fmt.Fprintf(out, "host imports: %s\n", strings.Join(imports, " "))
	case ":reset":
		s.reset()
		fmt.Fprintln(out, "session cleared")
	case ":wat":
		if s.last == nil {
			fmt.Fprintln(out, "nothing compiled yet")
			return false
		}
		fmt.Fprint(out, s.last.Module)
	default:
		fmt.Fprintln(out, "unknown command. Type :help for help.")
	}
	return false
}

// readInput reads one entry; a line ending in ':' opens a block that runs
// until an empty line.
func readInput(ln *liner.State) (string, error) {
	line, err := ln.Prompt(promptMain)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(strings.TrimSpace(line), ":") {
		return line, nil
	}
	var b strings.Builder
	b.WriteString(line)
	for {
		more, err := ln.Prompt(promptCont)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(more) == "" {
			return b.String(), nil
		}
		b.WriteByte('\n')
		b.WriteString(more)
	}
}

func repl(opts driver.Options, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "chocowat repl. Type :help for help.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	s := newSession(opts)
	for {
		input, err := readInput(ln)
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			// EOF
			fmt.Fprintln(stdout)
			return 0
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))
		if strings.HasPrefix(strings.TrimSpace(input), ":") {
			if s.command(input, stdout) {
				return 0
			}
			continue
		}
		v, err := s.eval(input, stdout)
		if err != nil {
			diag.PrintErr(stderr, err)
			continue
		}
		if v != "" {
			fmt.Fprintln(stdout, v)
		}
	}
}
