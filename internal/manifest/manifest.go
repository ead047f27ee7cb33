// Package manifest reads chocowat.toml, a small TOML subset holding the
// project name and the compiler and host settings.
package manifest

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-set/v2"
	"github.com/pkg/errors"
)

const FileName = "chocowat.toml"

type Manifest struct {
	Path    string
	Package Package
	Compile Compile
	Host    Host

	keys *set.Set[string]
}

type Package struct {
	Name    string
	Version string
}

type Compile struct {
	CheckMethodArgs bool
	RejectShadowing bool
	NullChecks      bool
}

type Host struct {
	HeapBase    int32
	MemoryPages int
	MaxSteps    int64
}

func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "manifest")
	}
	return Parse(path, string(b))
}

// Parse reads manifest text; path is used for messages and the default
// package name.
func Parse(path, text string) (*Manifest, error) {
	m := &Manifest{Path: path, keys: set.New[string](8)}
	var section string
	sc := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		key, val, ok := cutKV(line)
		if !ok {
			return nil, errors.Errorf("%s:%d: invalid line: %q", path, lineNo, line)
		}
		if err := m.set(section, key, val); err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, lineNo)
		}
		m.keys.Insert(section + "." + key)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	if m.Package.Name == "" {
		m.Package.Name = filepath.Base(filepath.Dir(path))
	}
	return m, nil
}

// Has reports whether "section.key" was given explicitly.
func (m *Manifest) Has(key string) bool {
	return m.keys != nil && m.keys.Contains(key)
}

func (m *Manifest) set(section, key, val string) error {
	var err error
	switch section + "." + key {
	case "package.name":
		m.Package.Name = unquote(val)
	case "package.version":
		m.Package.Version = unquote(val)
	case "compile.check_method_args":
		m.Compile.CheckMethodArgs, err = parseBool(val)
	case "compile.reject_shadowing":
		m.Compile.RejectShadowing, err = parseBool(val)
	case "compile.null_checks":
		m.Compile.NullChecks, err = parseBool(val)
	case "host.heap_base":
		var n int64
		n, err = strconv.ParseInt(val, 0, 32)
		if err == nil && n <= 0 {
			err = errors.New("must be positive")
		}
		m.Host.HeapBase = int32(n)
	case "host.memory_pages":
		var n int64
		n, err = strconv.ParseInt(val, 0, 32)
		if err == nil && (n < 1 || n > 65536) {
			err = errors.New("must be between 1 and 65536")
		}
		m.Host.MemoryPages = int(n)
	case "host.max_steps":
		m.Host.MaxSteps, err = strconv.ParseInt(val, 0, 64)
	default:
		return errors.Errorf("unknown key %s in [%s]", key, section)
	}
	return errors.Wrapf(err, "%s.%s", section, key)
}

func parseBool(val string) (bool, error) {
	switch val {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, errors.Errorf("expected true or false, got %s", val)
}

func cutKV(line string) (key, val string, ok bool) {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:i])
	val = strings.TrimSpace(line[i+1:])
	if key == "" || val == "" {
		return "", "", false
	}
	return key, val, true
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
