package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"chocowat/internal/diag"
	"chocowat/internal/driver"
	"chocowat/internal/loader"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "chocowat - typed Python subset to WebAssembly text")
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  chocowat init [dir]")
	fmt.Fprintln(w, "  chocowat check [flags] file.py")
	fmt.Fprintln(w, "  chocowat wat [flags] [--blocks] file.py")
	fmt.Fprintln(w, "  chocowat run [flags] file.py")
	fmt.Fprintln(w, "  chocowat repl [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "flags (override chocowat.toml):")
	fmt.Fprintln(w, "  --check-method-args  check method call arguments against the signature")
	fmt.Fprintln(w, "  --reject-shadowing   reject locals that shadow a global variable")
	fmt.Fprintln(w, "  --null-checks        trap on attribute access through None")
	fmt.Fprintln(w, "  --heap-base=N        first heap address (default 4)")
	fmt.Fprintln(w, "  --memory-pages=N     linear memory size in 64KiB pages (default 1)")
	fmt.Fprintln(w, "  --max-steps=N        abort execution after N instructions")
	fmt.Fprintln(w, "  --verbose            print pipeline statistics to stderr")
	fmt.Fprintln(w, "wat flags:")
	fmt.Fprintln(w, "  --blocks             print the globals, functions and top-level blocks only")
}

type cliOptions struct {
	path            string
	checkMethodArgs bool
	rejectShadowing bool
	nullChecks      bool
	heapBase        int32
	memoryPages     int
	maxSteps        int64
	verbose         bool
	blocks          bool
}

func parseArgs(args []string, wantPath bool) (opts cliOptions, err error) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		name, val, hasVal := strings.Cut(a, "=")
		switch name {
		case "--check-method-args":
			opts.checkMethodArgs = true
			continue
		case "--reject-shadowing":
			opts.rejectShadowing = true
			continue
		case "--null-checks":
			opts.nullChecks = true
			continue
		case "--verbose", "-v":
			opts.verbose = true
			continue
		case "--blocks":
			opts.blocks = true
			continue
		case "--heap-base", "--memory-pages", "--max-steps":
			if !hasVal {
				if i+1 >= len(args) {
					return cliOptions{}, errors.Errorf("missing value for %s", name)
				}
				i++
				val = args[i]
			}
			n, perr := strconv.ParseInt(val, 0, 64)
			if perr != nil || n <= 0 {
				return cliOptions{}, errors.Errorf("%s: expected a positive integer, got %q", name, val)
			}
			switch name {
			case "--heap-base":
				if n > 1<<31-1 {
					return cliOptions{}, errors.Errorf("%s: %d is out of range", name, n)
				}
				opts.heapBase = int32(n)
			case "--memory-pages":
				if n > 65536 {
					return cliOptions{}, errors.Errorf("%s: %d is out of range", name, n)
				}
				opts.memoryPages = int(n)
			default:
				opts.maxSteps = n
			}
			continue
		}
		if strings.HasPrefix(a, "-") {
			return cliOptions{}, errors.Errorf("unknown flag: %s", a)
		}
		if !wantPath || opts.path != "" {
			return cliOptions{}, errors.Errorf("unexpected extra arg: %s", a)
		}
		opts.path = a
	}
	if wantPath && opts.path == "" {
		return cliOptions{}, errors.New("missing source file")
	}
	return opts, nil
}

// override applies the flags that were given on top of o.
func (c cliOptions) override(o *driver.Options) {
	if c.checkMethodArgs {
		o.Check.CheckMethodArgs = true
	}
	if c.rejectShadowing {
		o.Check.RejectShadowing = true
	}
	if c.nullChecks {
		o.Host.NullChecks = true
	}
	if c.heapBase > 0 {
		o.Host.HeapBase = c.heapBase
	}
	if c.memoryPages > 0 {
		o.Host.MemoryPages = c.memoryPages
	}
	if c.maxSteps > 0 {
		o.MaxSteps = c.maxSteps
	}
}

func stats(w io.Writer, res *driver.Result) {
	st := res.Stats()
	fmt.Fprintf(w, "globals: %d, classes: %d, functions: %d, methods: %d\n", st.Globals, st.Classes, st.Functions, st.Methods)
	fmt.Fprintf(w, "top-level instructions: %d, construction sites: %d, module: %d bytes\n",
		st.TopLevel, st.ConstructionSites, st.ModuleBytes)
}

func realMain(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	case "init":
		dir := "."
		if len(rest) >= 1 {
			dir = rest[0]
		}
		if err := loader.Init(dir); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		return 0
	case "repl":
		opts, err := parseArgs(rest, false)
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 2
		}
		dopts, _, err := loader.ResolveOptions("main.py", opts.override)
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		return repl(dopts, stdout, stderr)
	case "check", "wat", "run":
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", cmd)
		usage(stderr)
		return 2
	}

	opts, err := parseArgs(rest, true)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}
	if cmd == "run" {
		res, v, err := loader.RunFile(opts.path, opts.override, stdout)
		if opts.verbose && res != nil && res.Compiled != nil {
			stats(stderr, res.Compiled)
		}
		if err != nil {
			diag.PrintErr(stderr, err)
			return 1
		}
		if v != "" {
			fmt.Fprintln(stdout, v)
		}
		return 0
	}

	res, err := loader.BuildFile(opts.path, opts.override)
	if err != nil {
		diag.PrintErr(stderr, err)
		return 1
	}
	if opts.verbose {
		stats(stderr, res.Compiled)
	}
	switch {
	case cmd == "check":
		fmt.Fprintf(stdout, "%s: ok\n", opts.path)
	case opts.blocks:
		fmt.Fprint(stdout, res.Compiled.Output.Format())
	default:
		fmt.Fprint(stdout, res.Compiled.Module)
	}
	return 0
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}
