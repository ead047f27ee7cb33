// Package loader reads a source file together with the chocowat.toml found
// next to it (or in a parent directory) and hands both to the driver.
package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"chocowat/internal/driver"
	"chocowat/internal/manifest"
	"chocowat/internal/source"
)

type BuildResult struct {
	// Manifest is nil when no chocowat.toml was found.
	Manifest *manifest.Manifest
	Options  driver.Options
	Compiled *driver.Result
}

// Init creates a manifest and a starter program in dir, leaving existing
// files alone.
func Init(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return errors.WithStack(err)
	}
	name := filepath.Base(abs)

	manifestPath := filepath.Join(abs, manifest.FileName)
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		content := fmt.Sprintf(`[package]
name = %q
version = "0.1.0"

[compile]
check_method_args = false
reject_shadowing = false
null_checks = false

[host]
heap_base = 4
memory_pages = 1
`, name)
		if err := os.WriteFile(manifestPath, []byte(content), 0o644); err != nil {
			return errors.WithStack(err)
		}
	}

	mainPath := filepath.Join(abs, "main.py")
	if _, err := os.Stat(mainPath); os.IsNotExist(err) {
		content := `def square(n: int) -> int:
    return n * n

print(square(7))
`
		if err := os.WriteFile(mainPath, []byte(content), 0o644); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// FindManifest walks up from dir and returns the first chocowat.toml, or
// "" when there is none.
func FindManifest(dir string) (string, error) {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.WithStack(err)
	}
	for {
		mp := filepath.Join(cur, manifest.FileName)
		if _, err := os.Stat(mp); err == nil {
			return mp, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", nil
		}
		cur = parent
	}
}

// ResolveOptions starts from the driver defaults, applies the manifest for
// srcPath, then override (typically command-line flags).
func ResolveOptions(srcPath string, override func(*driver.Options)) (driver.Options, *manifest.Manifest, error) {
	opts := driver.DefaultOptions()
	mp, err := FindManifest(filepath.Dir(srcPath))
	if err != nil {
		return opts, nil, err
	}
	var mani *manifest.Manifest
	if mp != "" {
		if mani, err = manifest.Load(mp); err != nil {
			return opts, nil, err
		}
		Apply(&opts, mani)
	}
	if override != nil {
		override(&opts)
	}
	return opts, mani, nil
}

// Apply copies the settings given explicitly in m onto opts.
func Apply(opts *driver.Options, m *manifest.Manifest) {
	if m.Has("compile.check_method_args") {
		opts.Check.CheckMethodArgs = m.Compile.CheckMethodArgs
	}
	if m.Has("compile.reject_shadowing") {
		opts.Check.RejectShadowing = m.Compile.RejectShadowing
	}
	if m.Has("compile.null_checks") {
		opts.Host.NullChecks = m.Compile.NullChecks
	}
	if m.Has("host.heap_base") {
		opts.Host.HeapBase = m.Host.HeapBase
	}
	if m.Has("host.memory_pages") {
		opts.Host.MemoryPages = m.Host.MemoryPages
	}
	if m.Has("host.max_steps") {
		opts.MaxSteps = m.Host.MaxSteps
	}
}

func BuildFile(path string, override func(*driver.Options)) (*BuildResult, error) {
	opts, mani, err := ResolveOptions(path, override)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	res := &BuildResult{Manifest: mani, Options: opts}
	compiled, err := driver.Compile(source.NewFile(path, string(b)), opts)
	if err != nil {
		return res, err
	}
	res.Compiled = compiled
	return res, nil
}

// RunFile builds and executes path, returning the rendered value of the
// trailing expression statement ("" when there is none).
func RunFile(path string, override func(*driver.Options), stdout io.Writer) (*BuildResult, string, error) {
	res, err := BuildFile(path, override)
	if err != nil {
		return res, "", err
	}
	v, err := res.Compiled.Exec(stdout)
	if err != nil {
		return res, "", errors.Wrap(err, path)
	}
	if !v.HasValue {
		return res, "", nil
	}
	return res, driver.FormatValue(v.Value, res.Compiled.LastType), nil
}
