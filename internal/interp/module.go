package interp

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"chocowat/internal/diag"
)

// Module is a loaded, validated module ready to be invoked any number of
// times. Each invocation gets fresh globals and memory.
type Module struct {
	Funcs   []*Func
	Globals []Global
	// MemoryPages is the declared minimum memory size in 64KiB pages.
	MemoryPages int
	exports     map[string]*Func
	funcByName  map[string]*Func
	globalIdx   map[string]int
}

type Func struct {
	Name    string
	Import  string // "module.name" for host functions
	Params  int
	Results int
	nlocals int // params + declared locals
	localIx map[string]int
	decl    *node
	code    []instr
}

type Global struct {
	Name    string
	Mutable bool
	Init    int32
}

type instr struct {
	op       string
	val      int32 // immediate: constant, index, branch depth or memory offset
	fn       *Func
	children []instr // folded operands, evaluated before op
	body     []instr
	els      []instr
	arity    int
}

func loadErr(format string, args ...any) error {
	return errors.Wrap(diag.Errorf(diag.InternalError, diag.Loc{}, "invalid module: "+format, args...), "interp")
}

// Load parses module text.
func Load(text string) (*Module, error) {
	root, err := parseSExpr(text)
	if err != nil {
		return nil, loadErr("%v", err)
	}
	if root.head() != "module" {
		return nil, loadErr("expected (module ...)")
	}
	m := &Module{
		exports:    map[string]*Func{},
		funcByName: map[string]*Func{},
		globalIdx:  map[string]int{},
	}
	var exports []*node
	for _, field := range root.list[1:] {
		switch field.head() {
		case "memory":
			if err := m.declareMemory(field.list[1:]); err != nil {
				return nil, err
			}
		case "func":
			if err := m.declareFunc(field, "", ""); err != nil {
				return nil, err
			}
		case "global":
			if err := m.declareGlobal(field); err != nil {
				return nil, err
			}
		case "import":
			if err := m.declareImport(field); err != nil {
				return nil, err
			}
		case "export":
			exports = append(exports, field)
		case "type":
		default:
			return nil, loadErr("line %d: unsupported module field %s", field.line, field.String())
		}
	}
	for _, ex := range exports {
		if len(ex.list) != 3 || !ex.list[1].str || ex.list[2].head() != "func" || len(ex.list[2].list) != 2 {
			return nil, loadErr("line %d: malformed export", ex.line)
		}
		fn, err := m.funcRef(ex.list[2].list[1].atom)
		if err != nil {
			return nil, err
		}
		m.exports[ex.list[1].atom] = fn
	}
	for _, fn := range m.Funcs {
		if fn.Import != "" {
			continue
		}
		c := &compiler{mod: m, fn: fn}
		code, err := c.seq(fn.decl.list[c.bodyStart(fn.decl):])
		if err != nil {
			return nil, loadErr("func %s: %v", fn.Name, err)
		}
		fn.code = code
	}
	return m, nil
}

// Export returns the function exported under name.
func (m *Module) Export(name string) (*Func, bool) {
	fn, ok := m.exports[name]
	return fn, ok
}

func (m *Module) declareMemory(items []*node) error {
	for _, it := range items {
		switch {
		case it.isList && it.head() == "import":
		case !it.isList && strings.HasPrefix(it.atom, "$"):
		case !it.isList:
			n, err := strconv.Atoi(it.atom)
			if err != nil {
				return loadErr("line %d: bad memory size %q", it.line, it.atom)
			}
			if m.MemoryPages == 0 {
				m.MemoryPages = n
			}
		}
	}
	if m.MemoryPages == 0 {
		m.MemoryPages = 1
	}
	return nil
}

func (m *Module) declareImport(field *node) error {
	if len(field.list) != 4 || !field.list[1].str || !field.list[2].str {
		return loadErr("line %d: malformed import", field.line)
	}
	desc := field.list[3]
	switch desc.head() {
	case "func":
		return m.declareFunc(desc, field.list[1].atom, field.list[2].atom)
	case "memory":
		return m.declareMemory(desc.list[1:])
	default:
		return loadErr("line %d: unsupported import %s", field.line, desc.String())
	}
}

func (m *Module) declareFunc(field *node, impMod, impName string) error {
	fn := &Func{localIx: map[string]int{}, decl: field}
	if impMod != "" {
		fn.Import = impMod + "." + impName
	}
	for _, it := range field.list[1:] {
		if !it.isList {
			if strings.HasPrefix(it.atom, "$") && fn.Name == "" && fn.nlocals == 0 {
				fn.Name = it.atom[1:]
				continue
			}
			break
		}
		switch it.head() {
		case "export":
			if len(it.list) != 2 || !it.list[1].str {
				return loadErr("line %d: malformed inline export", it.line)
			}
			m.exports[it.list[1].atom] = fn
		case "import":
			if len(it.list) != 3 {
				return loadErr("line %d: malformed inline import", it.line)
			}
			fn.Import = it.list[1].atom + "." + it.list[2].atom
		case "param":
			if err := fn.addLocals(it); err != nil {
				return err
			}
			fn.Params = fn.nlocals
		case "result":
			fn.Results += len(it.list) - 1
		case "local":
			if err := fn.addLocals(it); err != nil {
				return err
			}
		}
	}
	if fn.Results > 1 {
		return loadErr("line %d: multiple results are not supported", field.line)
	}
	if fn.Name != "" {
		if _, dup := m.funcByName[fn.Name]; dup {
			return loadErr("line %d: duplicate func $%s", field.line, fn.Name)
		}
		m.funcByName[fn.Name] = fn
	}
	m.Funcs = append(m.Funcs, fn)
	return nil
}

// addLocals handles both (param $x i32) and (param i32 i32).
func (fn *Func) addLocals(it *node) error {
	items := it.list[1:]
	if len(items) == 2 && strings.HasPrefix(items[0].atom, "$") {
		if items[1].atom != "i32" {
			return loadErr("line %d: only i32 is supported", it.line)
		}
		fn.localIx[items[0].atom[1:]] = fn.nlocals
		fn.nlocals++
		return nil
	}
	for _, t := range items {
		if t.atom != "i32" {
			return loadErr("line %d: only i32 is supported", it.line)
		}
		fn.nlocals++
	}
	return nil
}

func (m *Module) declareGlobal(field *node) error {
	g := Global{}
	items := field.list[1:]
	if len(items) > 0 && !items[0].isList && strings.HasPrefix(items[0].atom, "$") {
		g.Name = items[0].atom[1:]
		items = items[1:]
	}
	if len(items) != 2 {
		return loadErr("line %d: malformed global", field.line)
	}
	switch {
	case items[0].head() == "mut" && len(items[0].list) == 2 && items[0].list[1].atom == "i32":
		g.Mutable = true
	case items[0].atom == "i32":
	default:
		return loadErr("line %d: only i32 globals are supported", field.line)
	}
	init := items[1]
	if init.head() != "i32.const" || len(init.list) != 2 {
		return loadErr("line %d: global initializer must be i32.const", field.line)
	}
	v, err := parseI32(init.list[1].atom)
	if err != nil {
		return loadErr("line %d: %v", field.line, err)
	}
	g.Init = v
	if g.Name != "" {
		if _, dup := m.globalIdx[g.Name]; dup {
			return loadErr("line %d: duplicate global $%s", field.line, g.Name)
		}
		m.globalIdx[g.Name] = len(m.Globals)
	}
	m.Globals = append(m.Globals, g)
	return nil
}

func (m *Module) funcRef(ref string) (*Func, error) {
	if strings.HasPrefix(ref, "$") {
		fn, ok := m.funcByName[ref[1:]]
		if !ok {
			return nil, loadErr("unknown func %s", ref)
		}
		return fn, nil
	}
	i, err := strconv.Atoi(ref)
	if err != nil || i < 0 || i >= len(m.Funcs) {
		return nil, loadErr("bad func index %q", ref)
	}
	return m.Funcs[i], nil
}

// parseI32 accepts signed decimal, hex and the unsigned range, wrapping
// like the text format does.
func parseI32(s string) (int32, error) {
	s = strings.ReplaceAll(s, "_", "")
	neg := false
	body := s
	if strings.HasPrefix(body, "-") || strings.HasPrefix(body, "+") {
		neg = body[0] == '-'
		body = body[1:]
	}
	base := 10
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		base = 16
		body = body[2:]
	}
	u, err := strconv.ParseUint(body, base, 64)
	if err != nil || u > 1<<32-1 || (neg && u > 1<<31) {
		return 0, errors.Errorf("bad i32 constant %q", s)
	}
	if neg {
		return int32(-int64(u)), nil
	}
	return int32(uint32(u)), nil
}

type compiler struct {
	mod    *Module
	fn     *Func
	labels []string
}

// bodyStart skips the name and the export/import/param/result/local
// declarations of a func field.
func (c *compiler) bodyStart(decl *node) int {
	i := 1
	for i < len(decl.list) {
		it := decl.list[i]
		if !it.isList {
			if i == 1 && strings.HasPrefix(it.atom, "$") {
				i++
				continue
			}
			return i
		}
		switch it.head() {
		case "export", "import", "param", "result", "local", "type":
			i++
		default:
			return i
		}
	}
	return i
}

func (c *compiler) seq(nodes []*node) ([]instr, error) {
	var out []instr
	for i := 0; i < len(nodes); {
		n := nodes[i]
		if n.isList {
			ins, err := c.folded(n)
			if err != nil {
				return nil, err
			}
			out = append(out, ins)
			i++
			continue
		}
		op := n.atom
		i++
		switch op {
		case "block", "loop", "if":
			end, elseAt, err := matchEnd(nodes, i)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", n.line)
			}
			label, arity, start := blockHeader(nodes[i:end])
			ins := instr{op: op, arity: arity}
			bodyEnd := end
			if elseAt >= 0 {
				bodyEnd = elseAt
			}
			c.push(label)
			ins.body, err = c.seq(nodes[i+start : bodyEnd])
			if err == nil && elseAt >= 0 {
				ins.els, err = c.seq(nodes[elseAt+1 : end])
			}
			c.pop()
			if err != nil {
				return nil, err
			}
			out = append(out, ins)
			i = end + 1
		case "else", "end":
			return nil, errors.Errorf("line %d: unexpected %s", n.line, op)
		default:
			ins, next, err := c.plain(op, nodes, i, n.line)
			if err != nil {
				return nil, err
			}
			out = append(out, ins)
			i = next
		}
	}
	return out, nil
}

// matchEnd finds the end (and top-level else) of a flat block whose body
// starts at nodes[from].
func matchEnd(nodes []*node, from int) (end, elseAt int, err error) {
	depth := 0
	elseAt = -1
	for i := from; i < len(nodes); i++ {
		n := nodes[i]
		if n.isList {
			continue
		}
		switch n.atom {
		case "block", "loop", "if":
			depth++
		case "else":
			if depth == 0 {
				elseAt = i
			}
		case "end":
			if depth == 0 {
				return i, elseAt, nil
			}
			depth--
		}
	}
	return 0, 0, errors.New("missing end")
}

// blockHeader reads an optional label and result type.
func blockHeader(items []*node) (label string, arity, start int) {
	if start < len(items) && !items[start].isList && strings.HasPrefix(items[start].atom, "$") {
		label = items[start].atom
		start++
	}
	for start < len(items) && items[start].head() == "result" {
		arity += len(items[start].list) - 1
		start++
	}
	return label, arity, start
}

func (c *compiler) push(label string) { c.labels = append(c.labels, label) }
func (c *compiler) pop()              { c.labels = c.labels[:len(c.labels)-1] }

func (c *compiler) folded(n *node) (instr, error) {
	op := n.head()
	if op == "" {
		return instr{}, errors.Errorf("line %d: expected instruction, found %s", n.line, n.String())
	}
	items := n.list[1:]
	switch op {
	case "block", "loop":
		label, arity, start := blockHeader(items)
		c.push(label)
		body, err := c.seq(items[start:])
		c.pop()
		return instr{op: op, arity: arity, body: body}, err
	case "if":
		label, arity, start := blockHeader(items)
		ins := instr{op: op, arity: arity}
		var thenN, elseN *node
		for _, it := range items[start:] {
			switch it.head() {
			case "then":
				thenN = it
			case "else":
				elseN = it
			default:
				if thenN != nil {
					return instr{}, errors.Errorf("line %d: condition after then", it.line)
				}
				cond, err := c.folded(it)
				if err != nil {
					return instr{}, err
				}
				ins.children = append(ins.children, cond)
			}
		}
		if thenN == nil {
			return instr{}, errors.Errorf("line %d: if without then", n.line)
		}
		c.push(label)
		defer c.pop()
		var err error
		if ins.body, err = c.seq(thenN.list[1:]); err != nil {
			return instr{}, err
		}
		if elseN != nil {
			if ins.els, err = c.seq(elseN.list[1:]); err != nil {
				return instr{}, err
			}
		}
		return ins, nil
	}
	ins, next, err := c.plain(op, items, 0, n.line)
	if err != nil {
		return instr{}, err
	}
	for _, it := range items[next:] {
		if !it.isList {
			return instr{}, errors.Errorf("line %d: unexpected %q in folded %s", it.line, it.atom, op)
		}
		child, err := c.folded(it)
		if err != nil {
			return instr{}, err
		}
		ins.children = append(ins.children, child)
	}
	return ins, nil
}

// plain decodes a non-block instruction whose immediates start at
// items[i]. It returns the index after the immediates.
func (c *compiler) plain(op string, items []*node, i, line int) (instr, int, error) {
	ins := instr{op: op}
	imm := func() (string, error) {
		if i >= len(items) || items[i].isList {
			return "", errors.Errorf("line %d: %s needs an immediate", line, op)
		}
		s := items[i].atom
		i++
		return s, nil
	}
	switch op {
	case "i32.const":
		s, err := imm()
		if err != nil {
			return ins, i, err
		}
		if ins.val, err = parseI32(s); err != nil {
			return ins, i, errors.Wrapf(err, "line %d", line)
		}
	case "local.get", "local.set", "local.tee":
		s, err := imm()
		if err != nil {
			return ins, i, err
		}
		idx, ok := c.fn.localIx[strings.TrimPrefix(s, "$")]
		if !strings.HasPrefix(s, "$") {
			n, err := strconv.Atoi(s)
			idx, ok = n, err == nil
		}
		if !ok || idx < 0 || idx >= c.fn.nlocals {
			return ins, i, errors.Errorf("line %d: unknown local %s", line, s)
		}
		ins.val = int32(idx)
	case "global.get", "global.set":
		s, err := imm()
		if err != nil {
			return ins, i, err
		}
		idx, ok := c.mod.globalIdx[strings.TrimPrefix(s, "$")]
		if !strings.HasPrefix(s, "$") {
			n, err := strconv.Atoi(s)
			idx, ok = n, err == nil
		}
		if !ok || idx < 0 || idx >= len(c.mod.Globals) {
			return ins, i, errors.Errorf("line %d: unknown global %s", line, s)
		}
		if op == "global.set" && !c.mod.Globals[idx].Mutable {
			return ins, i, errors.Errorf("line %d: global %s is immutable", line, s)
		}
		ins.val = int32(idx)
	case "call":
		s, err := imm()
		if err != nil {
			return ins, i, err
		}
		if ins.fn, err = c.mod.funcRef(s); err != nil {
			return ins, i, err
		}
	case "br", "br_if":
		s, err := imm()
		if err != nil {
			return ins, i, err
		}
		depth, err := c.depth(s)
		if err != nil {
			return ins, i, errors.Wrapf(err, "line %d", line)
		}
		ins.val = int32(depth)
	case "i32.load", "i32.store":
		for i < len(items) && !items[i].isList && strings.Contains(items[i].atom, "=") {
			k, v, _ := strings.Cut(items[i].atom, "=")
			if k == "offset" {
				off, err := strconv.ParseUint(v, 0, 32)
				if err != nil {
					return ins, i, errors.Errorf("line %d: bad offset %q", line, v)
				}
				ins.val = int32(off)
			}
			i++
		}
	default:
		if _, ok := binaryOps[op]; !ok && !isNullary(op) {
			return ins, i, errors.Errorf("line %d: unsupported instruction %s", line, op)
		}
	}
	return ins, i, nil
}

// depth resolves a branch target to a relative depth. Depth len(labels)
// targets the function body.
func (c *compiler) depth(s string) (int, error) {
	if strings.HasPrefix(s, "$") {
		for d := 0; d < len(c.labels); d++ {
			if c.labels[len(c.labels)-1-d] == s {
				return d, nil
			}
		}
		return 0, errors.Errorf("unknown label %s", s)
	}
	d, err := strconv.Atoi(s)
	if err != nil || d < 0 || d > len(c.labels) {
		return 0, errors.Errorf("bad branch depth %q", s)
	}
	return d, nil
}
