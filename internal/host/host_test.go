package host

import (
	"strings"
	"testing"

	"chocowat/internal/codegen"
	"chocowat/internal/wat"
)

func TestAssembleWithResult(t *testing.T) {
	out := &wat.Output{
		Globals: []wat.Global{{Name: "x", Init: 10}},
		Funcs: []*wat.Func{{
			Name:   "f",
			Locals: []string{wat.ScratchLocal},
			Body:   []wat.Instr{wat.GlobalGet("x"), wat.Const(1), wat.Simple(wat.OpAdd)},
		}},
		TopLevel:  []wat.Instr{wat.Call("f"), wat.LocalSet(wat.ScratchLocal)},
		HasResult: true,
	}
	mod := Assemble(out, DefaultConfig())
	for _, want := range []string{
		"(module\n",
		`(memory (import "js" "mem") 1)`,
		`(func $print_num (import "imports" "print_num") (param i32) (result i32))`,
		`(func $pow (import "imports" "pow") (param i32 i32) (result i32))`,
		"(global $$heap (mut i32) (i32.const 4))",
		"(global $x (mut i32) (i32.const 10))",
		"  (func $f (result i32)\n    (local $$last i32)\n",
		`(func (export "exported_func") (result i32)`,
		"    (call $f)\n    (local.set $$last)\n    (local.get $$last)\n  )\n)\n",
	} {
		if !strings.Contains(mod, want) {
			t.Fatalf("module lacks %q:\n%s", want, mod)
		}
	}
	if strings.Contains(mod, codegen.AssertNotNone) {
		t.Fatalf("null-check import present without null checks")
	}
}

func TestAssembleWithoutResult(t *testing.T) {
	mod := Assemble(&wat.Output{}, Config{HeapBase: 64, MemoryPages: 2, NullChecks: true})
	if strings.Contains(mod, "(result i32)\n    (local $$last") {
		t.Fatalf("entry must not declare a result:\n%s", mod)
	}
	for _, want := range []string{
		`(memory (import "js" "mem") 2)`,
		"(global $$heap (mut i32) (i32.const 64))",
		`(import "imports" "assert_not_none")`,
		"(func (export \"exported_func\")\n",
	} {
		if !strings.Contains(mod, want) {
			t.Fatalf("module lacks %q:\n%s", want, mod)
		}
	}
}

func TestHeapBaseIsNeverZero(t *testing.T) {
	mod := Assemble(&wat.Output{}, Config{})
	if !strings.Contains(mod, "(global $$heap (mut i32) (i32.const 4))") {
		t.Fatalf("zero heap base not replaced:\n%s", mod)
	}
}

func TestIntrinsicNames(t *testing.T) {
	plain := IntrinsicNames(DefaultConfig())
	if plain.Size() != 7 || !plain.Contains("print_bool") || plain.Contains(codegen.AssertNotNone) {
		t.Fatalf("unexpected intrinsics: %v", plain.Slice())
	}
	checked := IntrinsicNames(Config{NullChecks: true})
	if !checked.Contains(codegen.AssertNotNone) {
		t.Fatalf("assert_not_none missing with null checks")
	}
}
