// Package fileset expands command-line file arguments into the list of
// documents to lint.
package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultExtensions are the file suffixes a directory argument expands to.
var DefaultExtensions = []string{".rst", ".rest"}

// Resolver expands arguments against an fs.FS and rewrites the discovered
// paths using a join function.
//
// Plain paths are kept verbatim so that a missing file is reported by the
// reader, not here. Glob patterns expand to their sorted matches and
// directories to every file below them with one of Extensions. The result
// keeps argument order and drops repeats.
type Resolver struct {
	fsys fs.FS
	join func(name string) string
	// absGlob expands absolute patterns on the OS file system.
	absGlob bool
	// Extensions filters directory walks; nil means DefaultExtensions.
	Extensions []string
}

// ErrNoPatterns indicates that Resolve was invoked without any arguments.
var ErrNoPatterns = errors.New("fileset: no patterns provided")

// PatternError wraps syntax issues reported while evaluating a glob pattern.
type PatternError struct {
	Pattern string
	Err     error
}

// Error implements the error interface.
func (e PatternError) Error() string {
	return fmt.Sprintf("invalid glob pattern %q: %v", e.Pattern, e.Err)
}

// Unwrap returns the underlying error.
func (e PatternError) Unwrap() error { return e.Err }

// NoMatchError describes which patterns failed to yield any results.
type NoMatchError struct {
	Patterns []string
}

// Error implements the error interface.
func (e NoMatchError) Error() string {
	return "patterns matched no files: " + strings.Join(e.Patterns, ", ")
}

// NewResolver constructs a Resolver against the provided filesystem without any
// path rewriting, preserving the original match names. Useful for tests.
func NewResolver(fsys fs.FS) Resolver {
	return Resolver{
		fsys: fsys,
		join: func(name string) string { return name },
	}
}

// NewOSResolver constructs a Resolver rooted at base. Matches are joined to
// base as given, so a relative base yields relative paths.
func NewOSResolver(base string) (Resolver, error) {
	info, err := os.Stat(base)
	if err != nil {
		return Resolver{}, fmt.Errorf("stat base %q: %w", base, err)
	}
	if !info.IsDir() {
		return Resolver{}, fmt.Errorf("base %q is not a directory", base)
	}

	return Resolver{
		fsys:    os.DirFS(base),
		absGlob: true,
		join: func(name string) string {
			if filepath.IsAbs(name) {
				return filepath.Clean(name)
			}
			return filepath.Join(base, filepath.FromSlash(name))
		},
	}, nil
}

// hasMeta reports whether p contains glob metacharacters.
func hasMeta(p string) bool {
	return strings.ContainsAny(p, `*?[`)
}

// Resolve expands every argument and returns the combined list.
func (r Resolver) Resolve(patterns []string) ([]string, error) {
	if r.fsys == nil {
		return nil, errors.New("fileset: resolver has no filesystem")
	}
	if len(patterns) == 0 {
		return nil, ErrNoPatterns
	}

	joinFn := r.join
	if joinFn == nil {
		joinFn = func(name string) string { return name }
	}

	combined := make([]string, 0, len(patterns))
	missing := make([]string, 0)

	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			if dir, ok := r.dirName(pattern); ok {
				files, err := r.walk(dir)
				if err != nil {
					return nil, err
				}
				if len(files) == 0 {
					missing = append(missing, pattern)
				}
				for _, f := range files {
					combined = append(combined, joinFn(f))
				}
				continue
			}
			combined = append(combined, pattern)
			continue
		}

		matches, err := r.glob(pattern)
		if err != nil {
			return nil, PatternError{Pattern: pattern, Err: err}
		}
		if len(matches) == 0 {
			missing = append(missing, pattern)
			continue
		}
		slices.Sort(matches)
		for _, match := range matches {
			if filepath.IsAbs(match) {
				combined = append(combined, match)
			} else {
				combined = append(combined, joinFn(match))
			}
		}
	}

	if len(missing) > 0 {
		return nil, NoMatchError{Patterns: append([]string(nil), missing...)}
	}
	return dedupePreserveOrder(combined), nil
}

func (r Resolver) glob(pattern string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		if !r.absGlob {
			return nil, fmt.Errorf("absolute pattern on a rooted file system")
		}
		return filepath.Glob(pattern)
	}
	return fs.Glob(r.fsys, path.Clean(filepath.ToSlash(pattern)))
}

// dirName returns the fs name of p when it names a directory.
func (r Resolver) dirName(p string) (string, bool) {
	if filepath.IsAbs(p) {
		return "", false
	}
	name := path.Clean(filepath.ToSlash(p))
	info, err := fs.Stat(r.fsys, name)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return name, true
}

func (r Resolver) walk(dir string) ([]string, error) {
	exts := r.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	var files []string
	err := fs.WalkDir(r.fsys, dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name != dir && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if slices.Contains(exts, strings.ToLower(path.Ext(name))) {
			files = append(files, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

func dedupePreserveOrder(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		result = append(result, p)
	}
	return result
}
