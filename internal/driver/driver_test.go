package driver

import (
	"bytes"
	"strings"
	"testing"

	"chocowat/internal/diag"
	"chocowat/internal/host"
	"chocowat/internal/interp"
	"chocowat/internal/source"
	"chocowat/internal/types"
)

func runSource(t *testing.T, src string, opts Options) (string, string) {
	t.Helper()
	var out bytes.Buffer
	v, err := Run(source.NewFile("test.py", src), opts, &out)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, src)
	}
	return v, out.String()
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"arithmetic", "x: int = 2\nx = x + 3 * 4\nx\n", "14"},
		{"while", "n: int = 5\nwhile n > 0:\n    n = n - 1\nn\n", "0"},
		{"class round trip", "class C(object):\n    v: int = 0\nc: C = None\nc = C()\nc.v = 7\nc.v\n", "7"},
		{"int literal", "5\n", "5"},
		{"true literal", "True\n", "True"},
		{"false literal", "False\n", "False"},
		{"none literal", "None\n", "None"},
		{"negative", "-(3 - 10)\n", "7"},
		{"floor division and modulo", "17 // 5 * 10 + 17 % 5\n", "32"},
		{"comparison", "3 < 4\n", "True"},
		{"not", "not 3 == 3\n", "False"},
		{"intrinsics", "pow(2, 10) + max(1, 5) - min(3, -4) + abs(-6)\n", "1039"},
		{"none is none", "None is None\n", "True"},
		{"object result", "class A(object):\n    pass\nA()\n", "<A object>"},
		{"field defaults", "class P(object):\n    x: int = 3\n    y: bool = True\np: P = None\np = P()\np.y\n", "True"},
		{"recursion", `def fact(n: int) -> int:
    if n <= 1:
        return 1
    return n * fact(n - 1)
fact(10)
`, "3628800"},
		{"elif", `x: int = 7
r: int = 0
if x < 5:
    r = 1
elif x < 10:
    r = 2
else:
    r = 3
r
`, "2"},
		{"methods", `class Counter(object):
    n: int = 0
    def inc(self: Counter, by: int) -> int:
        self.n = self.n + by
        return self.n
c: Counter = None
c = Counter()
c.inc(2)
c.inc(3)
`, "5"},
		{"locals", `def sum_to(n: int) -> int:
    i: int = 0
    acc: int = 0
    while i < n:
        i = i + 1
        acc = acc + i
    return acc
sum_to(100)
`, "5050"},
		{"objects are distinct", "class A(object):\n    pass\na: A = None\nb: A = None\na = A()\nb = A()\na is b\n", "False"},
		{"same object", "class A(object):\n    pass\na: A = None\nb: A = None\na = A()\nb = a\na is b\n", "True"},
		{"no trailing expression", "x: int = 1\nx = 2\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := runSource(t, tt.src, DefaultOptions())
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintOutput(t *testing.T) {
	v, out := runSource(t, "x: int = 3\nprint(x * 2)\nprint(x > 2)\nprint(None)\n", DefaultOptions())
	if out != "6\nTrue\nNone\n" {
		t.Fatalf("stdout %q", out)
	}
	if v != "None" {
		t.Fatalf("value %q", v)
	}
}

func TestBoolResultsAreZeroOrOne(t *testing.T) {
	for _, src := range []string{"5 == 5\n", "not False\n", "True == True\n", "None is None\n"} {
		res, err := Compile(source.NewFile("t.py", src), DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if !types.Equal(res.LastType, types.TBool) {
			t.Fatalf("%q: type %v", src, res.LastType)
		}
		v, err := res.Exec(nil)
		if err != nil {
			t.Fatal(err)
		}
		if v.Value != 1 {
			t.Fatalf("%q: got %d", src, v.Value)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind diag.Kind
	}{
		{"undeclared identifier", "y\n", diag.ReferenceError},
		{"bool into object field", "class D(object):\n    pass\nclass C(object):\n    d: D = None\nc: C = None\nc = C()\nc.d = True\n", diag.TypeError},
		{"syntax", "x: int = \n", diag.ParseError},
		{"int plus bool", "1 + True\n", diag.TypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compile(source.NewFile("t.py", tt.src), DefaultOptions())
			if res != nil {
				t.Fatalf("expected no output, got module:\n%s", res.Module)
			}
			if !diag.Is(err, tt.kind) {
				t.Fatalf("got %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestRuntimeErrors(t *testing.T) {
	_, err := Run(source.NewFile("t.py", "1 // 0\n"), DefaultOptions(), nil)
	if !diag.Is(err, diag.RuntimeError) {
		t.Fatalf("got %v", err)
	}

	opts := DefaultOptions()
	opts.Host.NullChecks = true
	src := "class A(object):\n    x: int = 1\na: A = None\na.x\n"
	_, err = Run(source.NewFile("t.py", src), opts, nil)
	if !diag.Is(err, diag.RuntimeError) || !strings.Contains(err.Error(), "None") {
		t.Fatalf("got %v", err)
	}

	opts = DefaultOptions()
	opts.MaxSteps = 10000
	_, err = Run(source.NewFile("t.py", "while True:\n    pass\n"), opts, nil)
	if !diag.Is(err, diag.RuntimeError) {
		t.Fatalf("got %v", err)
	}
}

func TestModuleShape(t *testing.T) {
	res, err := Compile(source.NewFile("t.py", "a: int = 1\na\n"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`(memory (import "js" "mem") 1)`,
		`(global $$heap (mut i32) (i32.const 4))`,
		`(global $a (mut i32) (i32.const 1))`,
		`(func (export "exported_func") (result i32)`,
		`(local.get $$last)`,
	} {
		if !strings.Contains(res.Module, want) {
			t.Fatalf("module lacks %q:\n%s", want, res.Module)
		}
	}
}

func TestHostImportsAreImplemented(t *testing.T) {
	cfg := host.DefaultConfig()
	cfg.NullChecks = true
	impl := interp.Intrinsics(nil)
	for _, in := range host.Intrinsics(cfg) {
		if _, ok := impl[host.ImportModule+"."+in.Name]; !ok {
			t.Fatalf("intrinsic %s has no host implementation", in.Name)
		}
	}
}

func TestStats(t *testing.T) {
	src := `class P(object):
    x: int = 0
    def get(self: P) -> int:
        return self.x
    def set(self: P, v: int) -> int:
        self.x = v
        return v
def make() -> P:
    return P()
p: P = None
n: int = 0
p = make()
p = P()
p.set(3)
`
	res, err := Compile(source.NewFile("t.py", src), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	st := res.Stats()
	if st.Globals != 2 || st.Classes != 1 || st.Functions != 1 || st.Methods != 2 || st.ConstructionSites != 2 {
		t.Fatalf("stats: %+v", st)
	}
	if st.ModuleBytes != len(res.Module) || st.TopLevel != len(res.Output.TopLevel) {
		t.Fatalf("stats: %+v", st)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    int32
		t    types.Type
		want string
	}{
		{-4, types.TInt, "-4"},
		{1, types.TBool, "True"},
		{0, types.TBool, "False"},
		{0, types.TNone, "None"},
		{0, types.ObjectOf("A"), "None"},
		{4, types.ObjectOf("A"), "<A object>"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.v, tt.t); got != tt.want {
			t.Fatalf("FormatValue(%d, %v) = %q, want %q", tt.v, tt.t, got, tt.want)
		}
	}
}
