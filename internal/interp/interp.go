// Package interp executes assembled modules on an i32 stack machine with
// little-endian linear memory, so compiled programs run without an
// external engine.
package interp

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"chocowat/internal/diag"
)

// HostFunc implements an imported function.
type HostFunc func(args []int32) (int32, error)

type Options struct {
	// Stdout receives the output of the print intrinsics.
	Stdout io.Writer
	// MemoryPages overrides the module's minimum memory size when larger.
	MemoryPages int
	// MaxCallDepth bounds recursion; 0 means DefaultMaxCallDepth.
	MaxCallDepth int
	// MaxSteps bounds executed instructions; 0 means unlimited.
	MaxSteps int64
	// Host adds or replaces imports, keyed "module.name".
	Host map[string]HostFunc
}

const DefaultMaxCallDepth = 10000

type Result struct {
	Value    int32
	HasValue bool
}

// Run loads text and invokes its exported entry function.
func Run(text, entry string, opts Options) (Result, error) {
	m, err := Load(text)
	if err != nil {
		return Result{}, err
	}
	return m.Invoke(entry, opts)
}

// Invoke calls the exported function name with fresh globals and memory.
// Traps are returned as diag.RuntimeError.
func (m *Module) Invoke(name string, opts Options, args ...int32) (res Result, err error) {
	fn, ok := m.Export(name)
	if !ok {
		return Result{}, errors.Wrap(diag.Errorf(diag.InternalError, diag.Loc{}, "no export named %q", name), "interp")
	}
	if len(args) != fn.Params {
		return Result{}, errors.Wrap(diag.Errorf(diag.InternalError, diag.Loc{}, "%s expects %d arguments, got %d", name, fn.Params, len(args)), "interp")
	}
	if opts.MaxCallDepth == 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	pages := max(m.MemoryPages, opts.MemoryPages)
	mc := &machine{
		mod:     m,
		globals: make([]int32, len(m.Globals)),
		mem:     make([]byte, pages*pageSize),
		host:    Intrinsics(opts.Stdout),
		opts:    opts,
	}
	for k, h := range opts.Host {
		mc.host[k] = h
	}
	for i, g := range m.Globals {
		mc.globals[i] = g.Init
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		t, ok := r.(trap)
		if !ok {
			panic(r)
		}
		res = Result{}
		err = diag.New(diag.RuntimeError, diag.Loc{}, t.msg)
	}()
	v := mc.call(fn, args)
	return Result{Value: v, HasValue: fn.Results > 0}, nil
}

// Intrinsics returns the standard host imports writing to w.
func Intrinsics(w io.Writer) map[string]HostFunc {
	if w == nil {
		w = io.Discard
	}
	emit := func(s string) (int32, error) {
		_, err := fmt.Fprintln(w, s)
		return 0, errors.Wrap(err, "print")
	}
	return map[string]HostFunc{
		"imports.print_num": func(a []int32) (int32, error) {
			return emit(fmt.Sprint(a[0]))
		},
		"imports.print_bool": func(a []int32) (int32, error) {
			if a[0] != 0 {
				return emit("True")
			}
			return emit("False")
		},
		"imports.print_none": func(a []int32) (int32, error) {
			return emit("None")
		},
		"imports.abs": func(a []int32) (int32, error) {
			if a[0] < 0 {
				return -a[0], nil
			}
			return a[0], nil
		},
		"imports.max": func(a []int32) (int32, error) { return max(a[0], a[1]), nil },
		"imports.min": func(a []int32) (int32, error) { return min(a[0], a[1]), nil },
		"imports.pow": func(a []int32) (int32, error) { return ipow(a[0], a[1]), nil },
		"imports.assert_not_none": func(a []int32) (int32, error) {
			if a[0] == 0 {
				return 0, errors.New("operation on None")
			}
			return a[0], nil
		},
	}
}

// ipow is integer exponentiation with i32 wraparound. Negative exponents
// truncate toward zero.
func ipow(base, exp int32) int32 {
	if exp < 0 {
		switch base {
		case 1:
			return 1
		case -1:
			if exp%2 == 0 {
				return 1
			}
			return -1
		}
		return 0
	}
	result := int32(1)
	b := base
	for e := uint32(exp); e > 0; e >>= 1 {
		if e&1 == 1 {
			result *= b
		}
		b *= b
	}
	return result
}
