// Package config loads irkit.toml, the project file describing which sample
// modules to build and for which targets.
//
//	[module]
//	name = "sum.c"
//	output = "sum.bc"
//
//	[[target]]
//	name = "macos"
//	triple = "x86_64-apple-macosx10.14.0"
//	datalayout = "e-m:o-i64:64-f80:128-n8:16:32:64-S128"
//
//	[[function]]
//	name = "sum"
//	op = "add"
//	width = 32
//	linkage = "external"
//	cc = "c"
//	args = ["a", "b"]
//
//	[build]
//	jobs = 4
//	cache_dir = ".irkit/cache"
//	emit_llvm = false
//
// Every section is optional; omitted values fall back to the built-in sum
// module for the default target.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"

	"irkit/internal/ir"
	"irkit/internal/layout"
	"irkit/internal/sample"
)

// FileName is the project file looked up by Find.
const FileName = "irkit.toml"

// Default module settings.
const (
	DefaultModuleName = "sum.c"
	DefaultOutput     = "sum.bc"
	DefaultTargetName = "default"
)

// Config is a decoded and validated project file.
type Config struct {
	// Path is the file the config was loaded from; empty for defaults.
	Path string `toml:"-"`
	// Root is the directory relative paths are resolved against.
	Root string `toml:"-"`

	Module    ModuleConfig     `toml:"module"`
	Targets   []TargetConfig   `toml:"target"`
	Functions []FunctionConfig `toml:"function"`
	Build     BuildConfig      `toml:"build"`
}

type ModuleConfig struct {
	Name   string `toml:"name"`
	Output string `toml:"output"`
}

type TargetConfig struct {
	Name       string `toml:"name"`
	Triple     string `toml:"triple"`
	DataLayout string `toml:"datalayout"`
	Output     string `toml:"output"`
}

type FunctionConfig struct {
	Name     string   `toml:"name"`
	Op       string   `toml:"op"`
	Width    uint32   `toml:"width"`
	Linkage  string   `toml:"linkage"`
	CallConv string   `toml:"cc"`
	Args     []string `toml:"args"`
}

type BuildConfig struct {
	Jobs     int    `toml:"jobs"`
	CacheDir string `toml:"cache_dir"`
	EmitLLVM bool   `toml:"emit_llvm"`
}

// Default returns the configuration used when no project file exists: the
// sum module for the default target, written to sum.bc in root.
func Default(root string) *Config {
	cfg := &Config{Root: root}
	cfg.applyDefaults()
	return cfg
}

// Find walks up from startDir looking for irkit.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load finds and loads the project file above startDir. Without one it
// returns Default rooted at startDir and found=false.
func Load(startDir string) (cfg *Config, found bool, err error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		root, absErr := filepath.Abs(startDir)
		if absErr != nil {
			return nil, false, fmt.Errorf("failed to resolve start directory: %w", absErr)
		}
		return Default(root), false, nil
	}
	cfg, err = LoadFile(path)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// LoadFile decodes and validates path.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("module", "name") && strings.TrimSpace(cfg.Module.Name) == "" {
		return nil, fmt.Errorf("%s: [module].name must not be empty", path)
	}
	if meta.IsDefined("module", "output") && strings.TrimSpace(cfg.Module.Output) == "" {
		return nil, fmt.Errorf("%s: [module].output must not be empty", path)
	}
	if meta.IsDefined("build", "jobs") && cfg.Build.Jobs < 0 {
		return nil, fmt.Errorf("%s: [build].jobs must not be negative", path)
	}
	cfg.Path = path
	cfg.Root = filepath.Dir(path)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Module.Name == "" {
		c.Module.Name = DefaultModuleName
	}
	if c.Module.Output == "" {
		c.Module.Output = DefaultOutput
	}
	if len(c.Targets) == 0 {
		def := layout.Default()
		c.Targets = []TargetConfig{{Name: DefaultTargetName, Triple: def.Triple, DataLayout: def.DataLayout}}
	}
	for i := range c.Targets {
		t := &c.Targets[i]
		if t.Name == "" {
			t.Name = fmt.Sprintf("target%d", i)
		}
		if t.Output == "" {
			t.Output = c.defaultOutput(t.Name)
		}
	}
	if len(c.Functions) == 0 {
		c.Functions = []FunctionConfig{{Name: "sum", Op: "add", Width: 32}}
	}
}

// defaultOutput is Module.Output for a single target and
// <stem>.<target><ext> otherwise.
func (c *Config) defaultOutput(target string) string {
	if len(c.Targets) <= 1 {
		return c.Module.Output
	}
	ext := filepath.Ext(c.Module.Output)
	stem := strings.TrimSuffix(c.Module.Output, ext)
	return stem + "." + target + ext
}

// Validate checks cross-entry constraints on a config with defaults applied.
func (c *Config) Validate() error {
	var errs []error
	names := make(map[string]bool, len(c.Targets))
	outputs := make(map[string]string, len(c.Targets))
	for i, t := range c.Targets {
		if names[t.Name] {
			errs = append(errs, fmt.Errorf("[[target]] %d: duplicate name %q", i, t.Name))
		}
		names[t.Name] = true
		if prev, dup := outputs[t.Output]; dup {
			errs = append(errs, fmt.Errorf("[[target]] %q: output %q already used by %q", t.Name, t.Output, prev))
		}
		outputs[t.Output] = t.Name
		if strings.TrimSpace(t.Triple) == "" || strings.TrimSpace(t.DataLayout) == "" {
			errs = append(errs, fmt.Errorf("[[target]] %q: triple and datalayout are required", t.Name))
			continue
		}
		if _, err := layout.ParseDataLayout(t.DataLayout); err != nil {
			errs = append(errs, fmt.Errorf("[[target]] %q: %w", t.Name, err))
		}
	}
	for i := range c.Functions {
		if _, err := c.Functions[i].Spec(); err != nil {
			errs = append(errs, fmt.Errorf("[[function]] %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Layout returns the target description of t.
func (t TargetConfig) Layout() layout.Target {
	return layout.Target{Triple: t.Triple, DataLayout: t.DataLayout}
}

// Spec converts a function entry into a sample function description.
// Function and argument names are NFC-normalized so that canonically
// equivalent spellings produce the same symbol and the same bitcode.
func (f FunctionConfig) Spec() (sample.FuncSpec, error) {
	f.Name = norm.NFC.String(f.Name)
	spec := sample.FuncSpec{Name: f.Name, Width: f.Width}
	if strings.TrimSpace(f.Name) == "" {
		return spec, errors.New("name is required")
	}
	op, ok := ir.ParseBinaryOp(f.Op)
	if !ok {
		return spec, fmt.Errorf("@%s: unknown op %q", f.Name, f.Op)
	}
	spec.Op = op
	if f.Linkage != "" {
		l, err := ir.ParseLinkage(f.Linkage)
		if err != nil {
			return spec, fmt.Errorf("@%s: %w", f.Name, err)
		}
		spec.Linkage = l
	}
	if f.CallConv != "" {
		cc, err := ir.ParseCallConv(f.CallConv)
		if err != nil {
			return spec, fmt.Errorf("@%s: %w", f.Name, err)
		}
		spec.CallConv = cc
	}
	switch len(f.Args) {
	case 0:
	case 2:
		a, b := norm.NFC.String(f.Args[0]), norm.NFC.String(f.Args[1])
		if a != "" && a == b {
			return spec, fmt.Errorf("@%s: argument names must differ", f.Name)
		}
		spec.ArgNames = [2]string{a, b}
	default:
		return spec, fmt.Errorf("@%s: args lists %d name(s), want 2", f.Name, len(f.Args))
	}
	return spec, nil
}

// Specs converts every function entry.
func (c *Config) Specs() ([]sample.FuncSpec, error) {
	out := make([]sample.FuncSpec, 0, len(c.Functions))
	for i := range c.Functions {
		spec, err := c.Functions[i].Spec()
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// Resolve makes p absolute against the config root.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// OutputPath is the resolved bitcode path of t.
func (c *Config) OutputPath(t TargetConfig) string {
	return c.Resolve(t.Output)
}

// CacheDir is the resolved cache directory, or "" when caching is off.
func (c *Config) CacheDir() string {
	return c.Resolve(c.Build.CacheDir)
}
