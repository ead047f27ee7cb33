// Package host wraps generated code into a complete module: imported
// memory and intrinsics, the heap pointer, and the exported entry point.
package host

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-set/v2"

	"chocowat/internal/codegen"
	"chocowat/internal/heap"
	"chocowat/internal/typecheck"
	"chocowat/internal/wat"
)

const (
	// EntryExport is the export name of the top-level entry function.
	EntryExport = "exported_func"
	// ImportModule is the import namespace of the intrinsics.
	ImportModule = "imports"
	MemoryModule = "js"
	MemoryName   = "mem"
)

type Config struct {
	// HeapBase is the first object address. It must be positive since 0
	// encodes None.
	HeapBase    int32
	MemoryPages int
	NullChecks  bool
}

func DefaultConfig() Config {
	return Config{HeapBase: heap.DefaultBase, MemoryPages: 1}
}

// Intrinsic is a host-provided function taking Params i32 arguments and
// returning one i32.
type Intrinsic struct {
	Name   string
	Params int
}

var baseIntrinsics = []Intrinsic{
	{Name: typecheck.PrintNum, Params: 1},
	{Name: typecheck.PrintBool, Params: 1},
	{Name: typecheck.PrintNone, Params: 1},
	{Name: "abs", Params: 1},
	{Name: "max", Params: 2},
	{Name: "min", Params: 2},
	{Name: "pow", Params: 2},
}

// Intrinsics lists the imports a module assembled with cfg declares.
func Intrinsics(cfg Config) []Intrinsic {
	out := append([]Intrinsic(nil), baseIntrinsics...)
	if cfg.NullChecks {
		out = append(out, Intrinsic{Name: codegen.AssertNotNone, Params: 1})
	}
	return out
}

// IntrinsicNames is the set of import names for cfg.
func IntrinsicNames(cfg Config) *set.Set[string] {
	s := set.New[string](len(baseIntrinsics) + 1)
	for _, in := range Intrinsics(cfg) {
		s.Insert(in.Name)
	}
	return s
}

func (in Intrinsic) String() string {
	params := strings.TrimSpace(strings.Repeat(" i32", in.Params))
	return fmt.Sprintf("(func $%s (import %q %q) (param %s) (result i32))", in.Name, ImportModule, in.Name, params)
}

// Assemble renders the module text for out.
func Assemble(out *wat.Output, cfg Config) string {
	if cfg.HeapBase <= 0 {
		cfg.HeapBase = heap.DefaultBase
	}
	if cfg.MemoryPages <= 0 {
		cfg.MemoryPages = 1
	}
	var sb strings.Builder
	sb.WriteString("(module\n")
	fmt.Fprintf(&sb, "  (memory (import %q %q) %d)\n", MemoryModule, MemoryName, cfg.MemoryPages)
	for _, in := range Intrinsics(cfg) {
		sb.WriteString("  ")
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	sb.WriteString("  ")
	sb.WriteString(wat.Global{Name: heap.PointerGlobal, Init: cfg.HeapBase}.String())
	sb.WriteByte('\n')
	for _, g := range out.Globals {
		sb.WriteString("  ")
		sb.WriteString(g.String())
		sb.WriteByte('\n')
	}
	for _, f := range out.Funcs {
		sb.WriteByte('\n')
		writeIndentedBlock(&sb, f.Format(), "  ")
	}
	sb.WriteByte('\n')

	sb.WriteString("  (func (export ")
	fmt.Fprintf(&sb, "%q)", EntryExport)
	if out.HasResult {
		sb.WriteString(" (result i32)")
	}
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "    (local $%s i32)\n", wat.ScratchLocal)
	wat.WriteIndented(&sb, out.TopLevel, 2)
	if out.HasResult {
		fmt.Fprintf(&sb, "    %s\n", wat.LocalGet(wat.ScratchLocal))
	}
	sb.WriteString("  )\n")
	sb.WriteString(")\n")
	return sb.String()
}

func writeIndentedBlock(sb *strings.Builder, text, indent string) {
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString(indent)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}
