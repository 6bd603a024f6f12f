// Package pipeline lints batches of reStructuredText files concurrently,
// consulting a result cache before running the linter.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/electwix/rst-lint/internal/cache"
	"github.com/electwix/rst-lint/internal/construct"
	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/document"
	"github.com/electwix/rst-lint/internal/lint"
	"github.com/electwix/rst-lint/internal/logging"
	"github.com/electwix/rst-lint/internal/source"
	"github.com/electwix/rst-lint/internal/sphinx"
)

// cacheKeyVersion changes whenever cached records would no longer match
// what the linter produces.
const cacheKeyVersion = "rst-lint/records/v1"

// Reader loads the raw bytes of an input file.
type Reader interface {
	ReadFile(path string) ([]byte, error)
}

type osReader struct{}

func (osReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Clean(path))
}

// NewOSReader returns a Reader over the local filesystem.
func NewOSReader() Reader {
	return osReader{}
}

// Environment captures external dependencies used by the pipeline.
type Environment struct {
	Logger *slog.Logger
	Reader Reader
	// Cache stores records per file content; nil disables caching.
	Cache cache.Cache
	// Namespace is cloned for every file. Nil means construct.Default.
	Namespace *construct.Namespace
	Hooks     Hooks
}

// Pipeline lints files with the configured environment.
type Pipeline struct {
	Env Environment
}

// RunOptions configures a batch run.
type RunOptions struct {
	Files    []string
	Encoding string
	// Jobs bounds concurrent files; zero or less means runtime.NumCPU.
	Jobs             int
	BaseIgnores      bool
	IgnoreDirectives []string
	IgnoreRoles      []string
	// CacheTTL bounds the lifetime of stored results; zero means
	// cache.DefaultTTL.
	CacheTTL time.Duration
}

// FileResult holds every record one file produced, unfiltered.
type FileResult struct {
	Path    string
	Records []diagnostics.Record
	Cached  bool
}

// Summary captures the results of a run in input order.
type Summary struct {
	Results   []FileResult
	CacheHits int
}

// Records returns every record of the run, file by file.
func (s Summary) Records() []diagnostics.Record {
	var out []diagnostics.Record
	for _, r := range s.Results {
		out = append(out, r.Records...)
	}
	return out
}

// Failed reports whether any record reaches threshold.
func (s Summary) Failed(threshold diagnostics.Level) bool {
	for _, r := range s.Results {
		if diagnostics.AnyAtLeast(r.Records, threshold) {
			return true
		}
	}
	return false
}

// ReadError wraps failures encountered while loading an input file.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Run lints opts.Files. Results keep the order of opts.Files whatever
// order the workers finish in. The first read or internal error cancels
// the remaining files and is returned with the results gathered so far.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	var summary Summary
	if err := callHook(ctx, p.Env.Hooks.BeforeLint, opts.Files); err != nil {
		return summary, err
	}

	logger := p.logger()
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	logger.Debug("lint started", "files", len(opts.Files), "jobs", jobs)

	results := make([]FileResult, len(opts.Files))
	done := make([]bool, len(opts.Files))
	var hits atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range opts.Files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.lintOne(gctx, path, opts)
			if err != nil {
				return err
			}
			if res.Cached {
				hits.Add(1)
			}
			if err := callHook(gctx, p.Env.Hooks.AfterFile, res); err != nil {
				return err
			}
			results[i] = res
			done[i] = true
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	for i, ok := range done {
		if ok {
			summary.Results = append(summary.Results, results[i])
		}
	}
	summary.CacheHits = int(hits.Load())
	if err != nil {
		return summary, err
	}

	logger.Debug("lint finished", "files", len(summary.Results), "cache_hits", summary.CacheHits)
	if err := callHook(ctx, p.Env.Hooks.AfterLint, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func (p *Pipeline) lintOne(ctx context.Context, path string, opts RunOptions) (FileResult, error) {
	res := FileResult{Path: path}
	if err := callHook(ctx, p.Env.Hooks.BeforeFile, path); err != nil {
		return res, err
	}

	data, err := p.reader().ReadFile(path)
	if err != nil {
		return res, &ReadError{Path: path, Err: err}
	}

	directives, roles := opts.IgnoreDirectives, opts.IgnoreRoles
	if opts.BaseIgnores {
		directives = sphinx.Merge(sphinx.BaseDirectives(), directives)
		roles = sphinx.Merge(sphinx.BaseRoles(), roles)
	}

	key := cacheKey(path, data, opts.Encoding, directives, roles)
	store := p.cache()
	if records, ok := store.Get(ctx, key); ok {
		p.logger().Debug("cache hit", "path", path)
		res.Records = records
		res.Cached = true
		return res, nil
	}

	content, err := source.Decode(data, opts.Encoding)
	if err != nil {
		return res, &ReadError{Path: path, Err: err}
	}

	linter := &lint.Linter{
		Namespace: p.namespace().Clone(),
		Settings:  document.DefaultSettings(),
		Logger:    logging.NewSlogAdapter(p.logger()),
	}
	result, err := linter.LintResult(content, lint.Options{
		Source:           path,
		IgnoreDirectives: directives,
		IgnoreRoles:      roles,
	})
	if err != nil {
		return res, err
	}
	res.Records = result.Records

	// The key covers only path's own bytes.
	if len(result.Dependencies) > 0 {
		p.logger().Debug("result not cached", "path", path, "dependencies", result.Dependencies)
		return res, nil
	}
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = cache.DefaultTTL
	}
	store.Set(ctx, key, result.Records, ttl)
	return res, nil
}

// cacheKey identifies a lint result by everything that influences it.
func cacheKey(path string, data []byte, encoding string, directives, roles []string) string {
	return cache.ComputeKey(
		[]byte(cacheKeyVersion),
		[]byte(path),
		data,
		[]byte(strings.ToLower(encoding)),
		[]byte(strings.Join(directives, "\x00")),
		[]byte(strings.Join(roles, "\x00")),
	)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Env.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Env.Logger
}

func (p *Pipeline) reader() Reader {
	if p.Env.Reader == nil {
		return osReader{}
	}
	return p.Env.Reader
}

func (p *Pipeline) cache() cache.Cache {
	if p.Env.Cache == nil {
		return cache.NopCache{}
	}
	return p.Env.Cache
}

func (p *Pipeline) namespace() *construct.Namespace {
	if p.Env.Namespace == nil {
		return construct.Default
	}
	return p.Env.Namespace
}
