// Package lint runs the reStructuredText pipeline over one document and
// returns every problem found as diagnostic records.
//
// A lint call opens an ignore scope on the construct namespace, parses the
// text with a collector attached to the document's reporter, applies the
// reader and writer transforms, and closes the scope. The namespace is
// restored even when parsing fails.
package lint

import (
	"errors"
	"fmt"

	"github.com/electwix/rst-lint/internal/construct"
	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/document"
	"github.com/electwix/rst-lint/internal/logging"
	"github.com/electwix/rst-lint/internal/rst"
	"github.com/electwix/rst-lint/internal/source"
	"github.com/electwix/rst-lint/internal/sphinx"
	"github.com/electwix/rst-lint/internal/transform"
)

// Options are the per-call inputs of Lint.
type Options struct {
	// Source labels the document in every record. It may be empty.
	Source string
	// IgnoreDirectives and IgnoreRoles are treated as known no-ops for
	// this call only.
	IgnoreDirectives []string
	IgnoreRoles      []string
}

// Linter holds the configuration shared by lint calls.
type Linter struct {
	// Namespace is the construct table the parser resolves names in.
	// Nil means construct.Default.
	Namespace *construct.Namespace
	// BaseDirectives and BaseRoles are ignored on every call, in
	// addition to the names in Options.
	BaseDirectives []string
	BaseRoles      []string
	// Settings configure the document. The halt level is always
	// overridden so that no problem aborts processing.
	Settings document.Settings
	Logger   logging.Logger
}

// New creates a linter over construct.Default with default settings and
// no base ignores.
func New() *Linter {
	return &Linter{
		Settings: document.DefaultSettings(),
		Logger:   logging.NewNopLogger(),
	}
}

// WithSphinx returns l with the Sphinx base catalog added to its base
// ignores.
func (l *Linter) WithSphinx() *Linter {
	l.BaseDirectives = sphinx.Merge(l.BaseDirectives, sphinx.BaseDirectives())
	l.BaseRoles = sphinx.Merge(l.BaseRoles, sphinx.BaseRoles())
	return l
}

// ParseError reports that the pipeline failed internally. Records
// collected before the failure are returned alongside it.
type ParseError struct {
	Source string
	// Panic holds the recovered value when the failure was a panic.
	Panic any
	Err   error
}

func (e *ParseError) Error() string {
	src := e.Source
	if src == "" {
		src = "<string>"
	}
	if e.Err != nil {
		return fmt.Sprintf("lint %s: %v", src, e.Err)
	}
	return fmt.Sprintf("lint %s: panic: %v", src, e.Panic)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (l *Linter) namespace() *construct.Namespace {
	if l.Namespace == nil {
		return construct.Default
	}
	return l.Namespace
}

func (l *Linter) logger() logging.Logger {
	if l.Logger == nil {
		return logging.NewNopLogger()
	}
	return l.Logger
}

// Result is everything one lint call produced.
type Result struct {
	// Records are unfiltered, in emission order.
	Records []diagnostics.Record
	// Dependencies lists the other files the document read through
	// include, raw or csv-table, whether or not the read succeeded.
	Dependencies []string
}

// Lint lints content and returns the records in emission order. Records
// are returned unfiltered; an empty slice means the document is clean.
func (l *Linter) Lint(content string, opts Options) ([]diagnostics.Record, error) {
	res, err := l.LintResult(content, opts)
	return res.Records, err
}

// LintResult is Lint that also reports the files the document depends on.
func (l *Linter) LintResult(content string, opts Options) (res Result, err error) {
	ns := l.namespace()
	log := l.logger()
	directives := sphinx.Merge(l.BaseDirectives, opts.IgnoreDirectives)
	roles := sphinx.Merge(l.BaseRoles, opts.IgnoreRoles)
	collector := diagnostics.NewCollector()
	var doc *document.Document

	// Runs after the scope's own deferred restore.
	defer func() {
		if r := recover(); r != nil {
			err = &ParseError{Source: opts.Source, Panic: r}
		}
		res.Records = collector.Collected()
		if doc != nil {
			res.Dependencies = doc.Dependencies()
		}
		if err != nil {
			log.Debug("lint failed", "source", opts.Source, "err", err)
		}
	}()

	log.Debug("ignore scope opened", "source", opts.Source, "directives", len(directives), "roles", len(roles))
	err = construct.Scoped(ns, directives, roles, func() error {
		doc = l.newDocument(opts.Source)
		return l.run(content, doc, ns, collector)
	})
	log.Debug("ignore scope closed", "source", opts.Source)
	return res, err
}

func (l *Linter) newDocument(src string) *document.Document {
	settings := l.Settings
	settings.HaltLevel = document.HaltNever
	settings.Stream = nil
	return document.New(src, settings)
}

func (l *Linter) run(content string, doc *document.Document, ns *construct.Namespace, collector *diagnostics.Collector) error {
	src := doc.Source
	collector.Attach(doc.Reporter)
	defer collector.Detach()

	parser := rst.NewParser(ns)
	if err := parser.Parse(content, doc); err != nil {
		return &ParseError{Source: src, Err: err}
	}

	scheduler := transform.NewScheduler(doc)
	scheduler.Logger = l.logger().With("source", src)
	scheduler.PopulateFromComponents(parser, transform.Reader{}, transform.Writer{})
	if err := scheduler.Run(); err != nil {
		var unknown *transform.UnknownKindError
		if errors.As(err, &unknown) {
			return fmt.Errorf("lint %s: %w", src, err)
		}
		return &ParseError{Source: src, Err: err}
	}
	return nil
}

// LintFile reads path in the named encoding and lints it with path as the
// source label. An empty encoding means UTF-8.
func (l *Linter) LintFile(path, encoding string, opts Options) ([]diagnostics.Record, error) {
	content, err := source.ReadFile(path, encoding)
	if err != nil {
		return nil, fmt.Errorf("lint %s: %w", path, err)
	}
	opts.Source = path
	return l.Lint(content, opts)
}

// Lint lints content with a default Linter.
func Lint(content string, opts Options) ([]diagnostics.Record, error) {
	return New().Lint(content, opts)
}

// LintFile lints a file with a default Linter.
func LintFile(path, encoding string, opts Options) ([]diagnostics.Record, error) {
	return New().LintFile(path, encoding, opts)
}
