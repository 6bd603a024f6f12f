// Package cli defines the rst-lint command line and merges its flags over
// the configuration file.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/electwix/rst-lint/internal/cache"
	"github.com/electwix/rst-lint/internal/config"
	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/fileset"
	"github.com/electwix/rst-lint/internal/logging"
)

// ErrNoFiles is returned when neither arguments nor the configuration
// name any file.
var ErrNoFiles = errors.New("no files to lint")

// UsageError marks errors caused by how the command was invoked.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// ColorMode selects when text output is colored.
type ColorMode string

const (
	ColorAuto ColorMode = "auto"
	ColorOn   ColorMode = "on"
	ColorOff  ColorMode = "off"
)

// ParseColor validates a --color value.
func ParseColor(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ColorAuto:
		return ColorAuto, nil
	case ColorOn, "always":
		return ColorOn, nil
	case ColorOff, "never":
		return ColorOff, nil
	default:
		return ColorAuto, fmt.Errorf("unknown color mode %q (want auto, on or off)", s)
	}
}

type Options struct {
	ConfigPath       string
	StrictConfig     bool
	Format           string
	Encoding         string
	Level            string
	FailLevel        string
	IgnoreDirectives []string
	IgnoreRoles      []string
	NoBaseIgnores    bool
	Jobs             int
	Cache            string
	CachePath        string
	Color            string
	Verbose          bool
	LogFormat        string
	Args             []string

	flags *pflag.FlagSet
}

// NewFlagSet binds every rst-lint flag to opts.
func NewFlagSet(opts *Options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("rst-lint", pflag.ContinueOnError)
	fs.SortFlags = false

	levels := strings.Join(diagnostics.LevelNames(), "|")
	fs.StringVar(&opts.Format, "format", config.FormatText, "Output format (text|json)")
	fs.StringVar(&opts.Encoding, "encoding", "", "Encoding of the input files (default utf-8)")
	fs.StringVar(&opts.Level, "level", "warning", "Minimum level to report ("+levels+")")
	fs.StringVar(&opts.FailLevel, "fail-level", "", "Minimum level that fails the run (default --level)")
	fs.StringSliceVar(&opts.IgnoreDirectives, "ignore-directives", nil, "Directives to treat as known no-ops")
	fs.StringSliceVar(&opts.IgnoreRoles, "ignore-roles", nil, "Roles to treat as known no-ops")
	fs.BoolVar(&opts.NoBaseIgnores, "no-base-ignores", false, "Do not ignore the Sphinx directives and roles")
	fs.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: discovered .rst-lint.toml)")
	fs.BoolVar(&opts.StrictConfig, "strict-config", false, "Treat configuration warnings as errors")
	fs.IntVarP(&opts.Jobs, "jobs", "j", 0, "Files linted concurrently (default one per CPU)")
	fs.StringVar(&opts.Cache, "cache", "", "Result cache backend (none|memory|file|sqlite)")
	fs.StringVar(&opts.CachePath, "cache-path", "", "Cache directory or database file")
	fs.StringVar(&opts.Color, "color", string(ColorAuto), "Color text output (auto|on|off)")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose logging")
	fs.StringVar(&opts.LogFormat, "log-format", string(logging.FormatText), "Log output format on stderr (text|json)")

	opts.flags = fs
	return fs
}

// Parse parses args without running anything. Errors carry the usage text.
func Parse(args []string) (Options, error) {
	var opts Options
	fs := NewFlagSet(&opts)
	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		return Options{}, fmt.Errorf("%w\n\n%s", err, Usage(fs))
	}
	opts.Args = fs.Args()
	return opts, nil
}

// Usage renders the flag defaults of fs.
func Usage(fs *pflag.FlagSet) string {
	if fs == nil {
		return ""
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "Usage: %s [flags] FILE|GLOB...\n\nFlags:\n", fs.Name())
	buf.WriteString(fs.FlagUsages())
	return buf.String()
}

// Changed reports whether the named flag was set on the command line.
func (o Options) Changed(name string) bool {
	return o.flags != nil && o.flags.Changed(name)
}

// Apply overrides plan with the flags given on the command line. Flags
// left at their defaults keep the configured values. Ignore lists are
// added to the configured ones.
func (o Options) Apply(plan config.Plan) (config.Plan, error) {
	if o.Changed("level") {
		level, err := diagnostics.ParseLevel(o.Level)
		if err != nil {
			return plan, &UsageError{Err: fmt.Errorf("--level: %w", err)}
		}
		plan.Level = level
		plan.FailLevel = level
	}
	if o.Changed("fail-level") {
		level, err := diagnostics.ParseLevel(o.FailLevel)
		if err != nil {
			return plan, &UsageError{Err: fmt.Errorf("--fail-level: %w", err)}
		}
		plan.FailLevel = level
	}
	if o.Changed("format") {
		format, err := config.ParseFormat(o.Format)
		if err != nil {
			return plan, &UsageError{Err: fmt.Errorf("--format: %w", err)}
		}
		plan.Format = format
	}
	if o.Changed("encoding") {
		plan.Encoding = o.Encoding
	}
	if o.Changed("jobs") {
		if o.Jobs < 0 {
			return plan, &UsageError{Err: errors.New("--jobs must not be negative")}
		}
		plan.Jobs = o.Jobs
	}
	if o.NoBaseIgnores {
		plan.BaseIgnores = false
	}
	plan.IgnoreDirectives = append(plan.IgnoreDirectives, o.IgnoreDirectives...)
	plan.IgnoreRoles = append(plan.IgnoreRoles, o.IgnoreRoles...)

	if o.Changed("cache") {
		backend, err := cache.ParseBackend(o.Cache)
		if err != nil {
			return plan, &UsageError{Err: fmt.Errorf("--cache: %w", err)}
		}
		if backend != plan.Cache.Backend {
			plan.Cache.Path = ""
		}
		plan.Cache.Backend = backend
	}
	if o.Changed("cache-path") {
		plan.Cache.Path = o.CachePath
	}
	if plan.Cache.Path == "" {
		switch plan.Cache.Backend {
		case cache.BackendFile:
			plan.Cache.Path = config.DefaultFileCacheDir
		case cache.BackendSQLite:
			plan.Cache.Path = config.DefaultSQLiteCacheDB
		}
	}
	return plan, nil
}

// ResolveFiles expands the positional arguments, falling back to the
// configured files when there are none.
func ResolveFiles(resolver fileset.Resolver, args, configured []string) ([]string, error) {
	if len(args) == 0 {
		if len(configured) == 0 {
			return nil, &UsageError{Err: ErrNoFiles}
		}
		return configured, nil
	}
	files, err := resolver.Resolve(args)
	if err != nil {
		var noMatch fileset.NoMatchError
		if errors.As(err, &noMatch) {
			return nil, fmt.Errorf("patterns matched no files: %s", strings.Join(noMatch.Patterns, ", "))
		}
		return nil, err
	}
	return files, nil
}

// RunFunc executes a parsed invocation.
type RunFunc func(ctx context.Context, cmd *cobra.Command, opts Options) error

// NewCommand builds the rst-lint root command. run receives the parsed
// options with their positional arguments.
func NewCommand(version string, run RunFunc) *cobra.Command {
	var opts Options
	cmd := &cobra.Command{
		Use:   "rst-lint [flags] FILE|GLOB...",
		Short: "Lint reStructuredText files",
		Long: `Lint reStructuredText files.

Exits with 0 if all files pass linting, 1 for an internal error and 2 if
linting failed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Args = args
			opts.flags = cmd.Flags()
			return run(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().SortFlags = false
	cmd.Flags().AddFlagSet(NewFlagSet(&opts))
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	_ = cmd.RegisterFlagCompletionFunc("format", fixedCompletions(config.FormatText, config.FormatJSON))
	_ = cmd.RegisterFlagCompletionFunc("level", fixedCompletions(diagnostics.LevelNames()...))
	_ = cmd.RegisterFlagCompletionFunc("fail-level", fixedCompletions(diagnostics.LevelNames()...))
	_ = cmd.RegisterFlagCompletionFunc("log-format",
		fixedCompletions(string(logging.FormatText), string(logging.FormatJSON)))
	_ = cmd.RegisterFlagCompletionFunc("color", fixedCompletions(string(ColorAuto), string(ColorOn), string(ColorOff)))
	_ = cmd.RegisterFlagCompletionFunc("cache", fixedCompletions(
		string(cache.BackendNone), string(cache.BackendMemory), string(cache.BackendFile), string(cache.BackendSQLite)))
	return cmd
}

func fixedCompletions(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}
