// Package config loads and validates the rst-lint project configuration,
// read from .rst-lint.toml or .rst-lint.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/electwix/rst-lint/internal/cache"
	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/fileset"
)

// FileNames are the configuration files Discover looks for, in order.
var FileNames = []string{".rst-lint.toml", ".rst-lint.yaml", ".rst-lint.yml"}

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Default cache locations, relative to the configuration directory.
const (
	DefaultFileCacheDir  = ".rst-lint-cache"
	DefaultSQLiteCacheDB = ".rst-lint-cache.db"
)

// CacheConfig captures the [cache] table.
type CacheConfig struct {
	Backend string `toml:"backend" yaml:"backend"`
	Path    string `toml:"path" yaml:"path"`
	TTL     string `toml:"ttl" yaml:"ttl"`
	Size    int    `toml:"size" yaml:"size"`
}

// IgnoreConfig captures the [ignore] table.
type IgnoreConfig struct {
	Directives []string `toml:"directives" yaml:"directives"`
	Roles      []string `toml:"roles" yaml:"roles"`
}

// Config mirrors the configuration file schema.
type Config struct {
	Level       string       `toml:"level" yaml:"level"`
	FailLevel   string       `toml:"fail_level" yaml:"fail_level"`
	Format      string       `toml:"format" yaml:"format"`
	Encoding    string       `toml:"encoding" yaml:"encoding"`
	Jobs        int          `toml:"jobs" yaml:"jobs"`
	BaseIgnores *bool        `toml:"base_ignores" yaml:"base_ignores"`
	Files       []string     `toml:"files" yaml:"files"`
	Cache       CacheConfig  `toml:"cache" yaml:"cache"`
	Ignore      IgnoreConfig `toml:"ignore" yaml:"ignore"`
}

var knownKeys = map[string]map[string]struct{}{
	"": {
		"level": {}, "fail_level": {}, "format": {}, "encoding": {}, "jobs": {},
		"base_ignores": {}, "files": {}, "cache": {}, "ignore": {},
	},
	"cache":  {"backend": {}, "path": {}, "ttl": {}, "size": {}},
	"ignore": {"directives": {}, "roles": {}},
}

// Plan is the fully-resolved configuration used by the CLI.
type Plan struct {
	Level     diagnostics.Level
	FailLevel diagnostics.Level
	Format    string
	Encoding  string
	// Jobs is the number of files linted concurrently; zero means one per CPU.
	Jobs        int
	BaseIgnores bool
	// Files are the documents linted when no arguments are given.
	Files            []string
	Cache            cache.Options
	IgnoreDirectives []string
	IgnoreRoles      []string
}

// Default returns the plan used without a configuration file.
func Default() Plan {
	return Plan{
		Level:       diagnostics.LevelWarning,
		FailLevel:   diagnostics.LevelWarning,
		Format:      FormatText,
		BaseIgnores: true,
		Cache:       cache.Options{Backend: cache.BackendNone, TTL: cache.DefaultTTL},
	}
}

// LoadOptions tunes config loading behavior.
type LoadOptions struct {
	Strict   bool
	Resolver *fileset.Resolver
}

// Result wraps a loaded plan alongside any non-fatal warnings.
type Result struct {
	Plan     Plan
	Warnings []string
}

// Discover returns the first configuration file present in dir.
func Discover(dir string) (string, bool) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Load reads, validates, and resolves a configuration file. The format
// follows the extension: .yaml and .yml are YAML, everything else TOML.
func Load(path string, opts LoadOptions) (Result, error) {
	var res Result

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
		if err == nil {
			err = yaml.Unmarshal(data, &raw)
		}
	default:
		err = toml.Unmarshal(data, &cfg)
		if err == nil {
			err = toml.Unmarshal(data, &raw)
		}
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}

	if unknown := collectUnknownKeys(raw); len(unknown) > 0 {
		message := fmt.Sprintf("%s: unknown configuration keys: %s", path, strings.Join(unknown, ", "))
		if opts.Strict {
			return res, errors.New(message)
		}
		res.Warnings = append(res.Warnings, message)
	}

	plan, err := resolve(path, cfg, opts)
	if err != nil {
		return res, err
	}
	res.Plan = plan
	return res, nil
}

func resolve(path string, cfg Config, opts LoadOptions) (Plan, error) {
	plan := Default()
	baseDir := filepath.Dir(path)

	if cfg.Level != "" {
		level, err := diagnostics.ParseLevel(cfg.Level)
		if err != nil {
			return plan, fmt.Errorf("%s: level: %w", path, err)
		}
		plan.Level = level
	}
	plan.FailLevel = plan.Level
	if cfg.FailLevel != "" {
		level, err := diagnostics.ParseLevel(cfg.FailLevel)
		if err != nil {
			return plan, fmt.Errorf("%s: fail_level: %w", path, err)
		}
		plan.FailLevel = level
	}

	if cfg.Format != "" {
		format, err := ParseFormat(cfg.Format)
		if err != nil {
			return plan, fmt.Errorf("%s: %w", path, err)
		}
		plan.Format = format
	}

	if cfg.Jobs < 0 {
		return plan, fmt.Errorf("%s: jobs must not be negative", path)
	}
	plan.Jobs = cfg.Jobs
	plan.Encoding = cfg.Encoding
	if cfg.BaseIgnores != nil {
		plan.BaseIgnores = *cfg.BaseIgnores
	}
	plan.IgnoreDirectives = slices.Clone(cfg.Ignore.Directives)
	plan.IgnoreRoles = slices.Clone(cfg.Ignore.Roles)

	cacheOpts, err := resolveCache(baseDir, cfg.Cache)
	if err != nil {
		return plan, fmt.Errorf("%s: %w", path, err)
	}
	plan.Cache = cacheOpts

	if len(cfg.Files) > 0 {
		var resolver fileset.Resolver
		if opts.Resolver != nil {
			resolver = *opts.Resolver
		} else {
			resolver, err = fileset.NewOSResolver(baseDir)
			if err != nil {
				return plan, fmt.Errorf("%s: %w", path, err)
			}
		}
		files, err := resolvePatterns(resolver, "files", cfg.Files)
		if err != nil {
			return plan, fmt.Errorf("%s: %w", path, err)
		}
		plan.Files = files
	}
	return plan, nil
}

// ParseFormat validates an output format name.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text or json)", s)
	}
}

func resolveCache(baseDir string, cfg CacheConfig) (cache.Options, error) {
	backend, err := cache.ParseBackend(cfg.Backend)
	if err != nil {
		return cache.Options{}, fmt.Errorf("cache: %w", err)
	}
	opts := cache.Options{Backend: backend, Size: cfg.Size, TTL: cache.DefaultTTL}
	if cfg.TTL != "" {
		ttl, err := time.ParseDuration(cfg.TTL)
		if err != nil || ttl <= 0 {
			return opts, fmt.Errorf("cache: invalid ttl %q", cfg.TTL)
		}
		opts.TTL = ttl
	}

	p := cfg.Path
	if p == "" {
		switch backend {
		case cache.BackendFile:
			p = DefaultFileCacheDir
		case cache.BackendSQLite:
			p = DefaultSQLiteCacheDB
		}
	}
	if p != "" && !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	opts.Path = p
	return opts, nil
}

// collectUnknownKeys lists unrecognized keys as dotted paths, sorted.
func collectUnknownKeys(raw map[string]any) []string {
	unknown := make([]string, 0)
	for key, value := range raw {
		if _, ok := knownKeys[""][key]; !ok {
			unknown = append(unknown, key)
			continue
		}
		nested, ok := knownKeys[key]
		if !ok {
			continue
		}
		table, ok := value.(map[string]any)
		if !ok {
			continue
		}
		for sub := range table {
			if _, ok := nested[sub]; !ok {
				unknown = append(unknown, key+"."+sub)
			}
		}
	}
	slices.Sort(unknown)
	return unknown
}

func resolvePatterns(resolver fileset.Resolver, field string, patterns []string) ([]string, error) {
	paths, err := resolver.Resolve(patterns)
	if err != nil {
		var noMatchErr fileset.NoMatchError
		if errors.As(err, &noMatchErr) {
			return nil, fmt.Errorf("%s patterns matched no files: %s", field, strings.Join(noMatchErr.Patterns, ", "))
		}

		var patternErr fileset.PatternError
		if errors.As(err, &patternErr) {
			return nil, fmt.Errorf("%s: invalid glob pattern %q: %w", field, patternErr.Pattern, patternErr.Err)
		}

		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return paths, nil
}
