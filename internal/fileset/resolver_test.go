package fileset

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

func docsFS() fstest.MapFS {
	return fstest.MapFS{
		"README.rst":            &fstest.MapFile{Mode: fs.ModePerm},
		"CHANGES.rst":           &fstest.MapFile{Mode: fs.ModePerm},
		"docs/index.rst":        &fstest.MapFile{Mode: fs.ModePerm},
		"docs/usage.rest":       &fstest.MapFile{Mode: fs.ModePerm},
		"docs/conf.py":          &fstest.MapFile{Mode: fs.ModePerm},
		"docs/api/lint.rst":     &fstest.MapFile{Mode: fs.ModePerm},
		"docs/.build/index.rst": &fstest.MapFile{Mode: fs.ModePerm},
	}
}

func TestResolverResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "plain paths keep argument order",
			patterns: []string{"README.rst", "CHANGES.rst"},
			want:     []string{"README.rst", "CHANGES.rst"},
		},
		{
			name:     "missing plain path is kept",
			patterns: []string{"missing.rst"},
			want:     []string{"missing.rst"},
		},
		{
			name:     "glob matches are sorted",
			patterns: []string{"*.rst"},
			want:     []string{"CHANGES.rst", "README.rst"},
		},
		{
			name:     "directory expands to documents",
			patterns: []string{"docs"},
			want:     []string{"docs/api/lint.rst", "docs/index.rst", "docs/usage.rest"},
		},
		{
			name:     "repeats are dropped",
			patterns: []string{"README.rst", "*.rst", "docs/index.rst", "docs"},
			want: []string{
				"README.rst", "CHANGES.rst", "docs/index.rst", "docs/api/lint.rst", "docs/usage.rest",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewResolver(docsFS()).Resolve(tt.patterns)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolverResolveNoMatches(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(docsFS()).Resolve([]string{"*.txt", "README.rst", "docs/*.md"})
	var noMatchErr NoMatchError
	if !errors.As(err, &noMatchErr) {
		t.Fatalf("expected NoMatchError, got %T: %v", err, err)
	}
	if diff := cmp.Diff([]string{"*.txt", "docs/*.md"}, noMatchErr.Patterns); diff != "" {
		t.Errorf("missing patterns mismatch (-want +got):\n%s", diff)
	}
}

func TestResolverResolveEmptyDirectory(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"src/main.go": &fstest.MapFile{Mode: fs.ModePerm}}
	_, err := NewResolver(fsys).Resolve([]string{"src"})
	var noMatchErr NoMatchError
	if !errors.As(err, &noMatchErr) {
		t.Fatalf("expected NoMatchError, got %T: %v", err, err)
	}
}

func TestResolverResolveInvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(fstest.MapFS{}).Resolve([]string{"["})
	var patternErr PatternError
	if !errors.As(err, &patternErr) {
		t.Fatalf("expected PatternError, got %T: %v", err, err)
	}
	if patternErr.Pattern != "[" {
		t.Fatalf("unexpected pattern on error: %q", patternErr.Pattern)
	}
}

func TestResolverResolveNoPatterns(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(fstest.MapFS{}).Resolve(nil)
	if !errors.Is(err, ErrNoPatterns) {
		t.Fatalf("expected ErrNoPatterns, got %v", err)
	}
}

func TestOSResolver(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "docs"), 0o750); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.rst", "docs/b.rst"} {
		if err := os.WriteFile(filepath.Join(base, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	r, err := NewOSResolver(base)
	if err != nil {
		t.Fatalf("NewOSResolver: %v", err)
	}
	got, err := r.Resolve([]string{"*.rst", "docs", filepath.Join(base, "docs", "*.rst")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{filepath.Join(base, "a.rst"), filepath.Join(base, "docs", "b.rst")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}

	if _, err := NewOSResolver(filepath.Join(base, "a.rst")); err == nil {
		t.Error("expected error for a file base")
	}
}
