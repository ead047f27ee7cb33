// Package driver runs the whole pipeline: parse, check, generate, assemble
// and, on request, execute the assembled module.
package driver

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"chocowat/internal/ast"
	"chocowat/internal/codegen"
	"chocowat/internal/diag"
	"chocowat/internal/env"
	"chocowat/internal/host"
	"chocowat/internal/interp"
	"chocowat/internal/names"
	"chocowat/internal/parser"
	"chocowat/internal/source"
	"chocowat/internal/typecheck"
	"chocowat/internal/types"
	"chocowat/internal/wat"
)

type Options struct {
	Check typecheck.Options
	Host  host.Config
	// MaxSteps bounds execution in Run; 0 means unlimited.
	MaxSteps int64
}

func DefaultOptions() Options {
	return Options{Host: host.DefaultConfig()}
}

type Result struct {
	Program *ast.Program
	Env     *env.Env
	Output  *wat.Output
	// Module is the complete module text.
	Module string
	// LastType is the static type of the trailing expression statement,
	// Unknown when the program does not end in one.
	LastType types.Type

	opts Options
}

// Compile turns a source file into module text. Parse errors are reported
// together as one diag.ParseError.
func Compile(file *source.File, opts Options) (*Result, error) {
	prog, bag := parser.Parse(file)
	if err := bag.Err(diag.ParseError); err != nil {
		return nil, err
	}
	typed, e, err := typecheck.Check(prog, opts.Check)
	if err != nil {
		return nil, err
	}
	out, err := codegen.Generate(typed, e.Classes, codegen.Options{NullChecks: opts.Host.NullChecks})
	if err != nil {
		return nil, err
	}
	res := &Result{
		Program: typed,
		Env:     e,
		Output:  out,
		Module:  host.Assemble(out, opts.Host),
		opts:    opts,
	}
	if n := len(typed.Stmts); n > 0 {
		if es, ok := typed.Stmts[n-1].(*ast.ExprStmt); ok {
			res.LastType = es.Ty
		}
	}
	return res, nil
}

// Exec runs the compiled module once. Print output goes to stdout.
func (r *Result) Exec(stdout io.Writer) (interp.Result, error) {
	return interp.Run(r.Module, host.EntryExport, interp.Options{
		Stdout:      stdout,
		MemoryPages: r.opts.Host.MemoryPages,
		MaxSteps:    r.opts.MaxSteps,
	})
}

// Run compiles and executes file. It returns the rendered value of the
// trailing expression statement, or "" when there is none.
func Run(file *source.File, opts Options, stdout io.Writer) (string, error) {
	res, err := Compile(file, opts)
	if err != nil {
		return "", err
	}
	v, err := res.Exec(stdout)
	if err != nil {
		return "", errors.Wrap(err, file.Name)
	}
	if !v.HasValue {
		return "", nil
	}
	return FormatValue(v.Value, res.LastType), nil
}

// Stats summarizes a compilation.
type Stats struct {
	Globals           int
	Classes           int
	Functions         int
	Methods           int
	TopLevel          int
	ConstructionSites int
	ModuleBytes       int
}

func (r *Result) Stats() Stats {
	st := Stats{
		Globals:           len(r.Env.Globals.VarNames()),
		Classes:           len(r.Env.Classes.Names()),
		TopLevel:          len(r.Output.TopLevel),
		ConstructionSites: r.Output.ConstructionSites,
		ModuleBytes:       len(r.Module),
	}
	for _, c := range r.Env.Classes.Names() {
		st.Methods += len(r.Env.Classes.Methods(c))
	}
	for _, f := range r.Output.Funcs {
		if _, _, isMethod := names.SplitMethod(f.Name); !isMethod {
			st.Functions++
		}
	}
	return st
}

// FormatValue renders a raw i32 according to its static type.
func FormatValue(v int32, t types.Type) string {
	switch t.K {
	case types.Bool:
		if v != 0 {
			return "True"
		}
		return "False"
	case types.None:
		return "None"
	case types.Object:
		if v == 0 {
			return "None"
		}
		return fmt.Sprintf("<%s object>", t.Class)
	default:
		return fmt.Sprint(v)
	}
}
