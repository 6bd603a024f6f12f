// Package main implements the rst-lint CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/electwix/rst-lint/internal/cache"
	"github.com/electwix/rst-lint/internal/cli"
	"github.com/electwix/rst-lint/internal/config"
	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/fileset"
	"github.com/electwix/rst-lint/internal/logging"
	"github.com/electwix/rst-lint/internal/pipeline"
)

const (
	exitClean    = 0
	exitInternal = 1
	exitLint     = 2
)

// version is set at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	code := exitClean
	cmd := cli.NewCommand(version, func(ctx context.Context, _ *cobra.Command, opts cli.Options) error {
		var err error
		code, err = lintFiles(ctx, opts, stdout, stderr)
		return err
	})
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "rst-lint: %v\n", err)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			_, _ = fmt.Fprint(stderr, "\n"+cmd.UsageString())
		}
		return exitInternal
	}
	return code
}

func lintFiles(ctx context.Context, opts cli.Options, stdout, stderr io.Writer) (int, error) {
	logFormat, err := logging.ParseFormat(opts.LogFormat)
	if err != nil {
		return exitInternal, &cli.UsageError{Err: fmt.Errorf("--log-format: %w", err)}
	}
	logger := logging.New(logging.Options{
		Verbose: opts.Verbose,
		Writer:  stderr,
		Format:  logFormat,
		RunID:   uuid.NewString(),
	})

	colorMode, err := cli.ParseColor(opts.Color)
	if err != nil {
		return exitInternal, &cli.UsageError{Err: fmt.Errorf("--color: %w", err)}
	}

	plan, err := loadPlan(opts, logger)
	if err != nil {
		return exitInternal, err
	}
	plan, err = opts.Apply(plan)
	if err != nil {
		return exitInternal, err
	}

	resolver, err := fileset.NewOSResolver(".")
	if err != nil {
		return exitInternal, err
	}
	files, err := cli.ResolveFiles(resolver, opts.Args, plan.Files)
	if err != nil {
		return exitInternal, err
	}

	store, closeCache, err := cache.Open(ctx, plan.Cache)
	if err != nil {
		return exitInternal, err
	}
	defer func() {
		if err := closeCache(); err != nil {
			logger.Warn("close cache", "err", err)
		}
	}()

	pipe := pipeline.Pipeline{Env: pipeline.Environment{
		Logger: logger,
		Reader: pipeline.NewOSReader(),
		Cache:  store,
	}}
	summary, err := pipe.Run(ctx, pipeline.RunOptions{
		Files:            files,
		Encoding:         plan.Encoding,
		Jobs:             plan.Jobs,
		BaseIgnores:      plan.BaseIgnores,
		IgnoreDirectives: plan.IgnoreDirectives,
		IgnoreRoles:      plan.IgnoreRoles,
		CacheTTL:         plan.Cache.TTL,
	})
	if err != nil {
		return exitInternal, err
	}
	maintainCache(ctx, store, logger)
	logger.Debug("lint summary",
		"files", len(summary.Results),
		"cache_hits", summary.CacheHits,
		"diagnostics", diagnostics.Summarize(summary.Records()).String())

	err = pipeline.Report(stdout, summary, pipeline.ReportOptions{
		Format:   plan.Format,
		Level:    plan.Level,
		Colorize: plan.Format == config.FormatText && useColor(colorMode, stdout),
	})
	if err != nil {
		return exitInternal, fmt.Errorf("write report: %w", err)
	}

	if summary.Failed(plan.FailLevel) {
		return exitLint, nil
	}
	return exitClean, nil
}

// loadPlan reads the configuration named by --config, or the one found in
// the working directory, or falls back to the defaults.
func loadPlan(opts cli.Options, logger *slog.Logger) (config.Plan, error) {
	path := opts.ConfigPath
	if path == "" {
		found, ok := config.Discover(".")
		if !ok {
			return config.Default(), nil
		}
		path = found
	}

	result, err := config.Load(path, config.LoadOptions{Strict: opts.StrictConfig})
	if err != nil {
		return config.Plan{}, err
	}
	for _, warning := range result.Warnings {
		logger.Warn(warning)
	}
	logger.Debug("configuration loaded", "path", path)
	return result.Plan, nil
}

// maintainCache drops expired entries from stores that keep them and logs
// what remains.
func maintainCache(ctx context.Context, store cache.Cache, logger *slog.Logger) {
	if p, ok := store.(cache.Pruner); ok {
		if n := p.Prune(ctx); n > 0 {
			logger.Debug("cache pruned", "entries", n)
		}
	}
	if r, ok := store.(cache.StatsReporter); ok {
		st := r.Stats(ctx)
		logger.Debug("cache stats", "entries", st.Entries, "expired", st.Expired, "hits", st.Hits, "misses", st.Misses)
	}
}

func useColor(mode cli.ColorMode, w io.Writer) bool {
	switch mode {
	case cli.ColorOn:
		return true
	case cli.ColorOff:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
