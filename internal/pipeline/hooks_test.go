package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHooks_Chain(t *testing.T) {
	t.Run("chains two hooks", func(t *testing.T) {
		var calls []string

		h1 := Hooks{
			BeforeLint: func(ctx context.Context, paths []string) error {
				calls = append(calls, "h1")
				return nil
			},
		}

		h2 := Hooks{
			BeforeLint: func(ctx context.Context, paths []string) error {
				calls = append(calls, "h2")
				return nil
			},
		}

		chained := h1.Chain(h2)
		if err := chained.BeforeLint(context.Background(), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(calls) != 2 || calls[0] != "h1" || calls[1] != "h2" {
			t.Errorf("calls = %v, want [h1 h2]", calls)
		}
	})

	t.Run("first error stops chain", func(t *testing.T) {
		h1 := Hooks{
			BeforeFile: func(ctx context.Context, path string) error {
				return errors.New("h1 error")
			},
		}

		var h2Called bool
		h2 := Hooks{
			BeforeFile: func(ctx context.Context, path string) error {
				h2Called = true
				return nil
			},
		}

		err := h1.Chain(h2).BeforeFile(context.Background(), "a.rst")
		if err == nil || err.Error() != "h1 error" {
			t.Errorf("error = %v, want 'h1 error'", err)
		}
		if h2Called {
			t.Error("h2 should not have been called")
		}
	})

	t.Run("nil hooks", func(t *testing.T) {
		var called bool
		h := Hooks{
			AfterFile: func(ctx context.Context, result FileResult) error {
				called = true
				return nil
			},
		}

		if err := NoHooks().Chain(h).AfterFile(context.Background(), FileResult{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !called {
			t.Error("hook should have been called")
		}
		if chained := NoHooks().Chain(NoHooks()); chained.AfterLint != nil {
			t.Error("chaining two empty hooks should stay empty")
		}
	})
}

func TestPipeline_Run_WithHooks(t *testing.T) {
	files := &MemoryFiles{}
	_ = files.WriteFile("a.rst", []byte("Title\n=====\n"))
	_ = files.WriteFile("b.rst", []byte("Hello\n===\n"))

	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(call string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, call)
	}

	hooks := Hooks{
		BeforeLint: func(ctx context.Context, paths []string) error {
			record("BeforeLint " + strings.Join(paths, ","))
			return nil
		},
		BeforeFile: func(ctx context.Context, path string) error {
			record("BeforeFile " + path)
			return nil
		},
		AfterFile: func(ctx context.Context, result FileResult) error {
			record("AfterFile " + result.Path)
			return nil
		},
		AfterLint: func(ctx context.Context, summary Summary) error {
			record("AfterLint")
			return nil
		},
	}

	p := &Pipeline{Env: Environment{Reader: files, Hooks: hooks}}
	if _, err := p.Run(context.Background(), RunOptions{Files: []string{"a.rst", "b.rst"}, Jobs: 1}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{
		"BeforeLint a.rst,b.rst",
		"BeforeFile a.rst",
		"AfterFile a.rst",
		"BeforeFile b.rst",
		"AfterFile b.rst",
		"AfterLint",
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("hook calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_Run_HookError(t *testing.T) {
	files := &MemoryFiles{}
	_ = files.WriteFile("a.rst", []byte("Title\n=====\n"))

	var afterLint bool
	hooks := Hooks{
		AfterFile: func(ctx context.Context, result FileResult) error {
			return errors.New("hook error")
		},
		AfterLint: func(ctx context.Context, summary Summary) error {
			afterLint = true
			return nil
		},
	}

	p := &Pipeline{Env: Environment{Reader: files, Hooks: hooks}}
	_, err := p.Run(context.Background(), RunOptions{Files: []string{"a.rst"}})
	if err == nil {
		t.Fatal("expected error from hook")
	}
	if !strings.Contains(err.Error(), "hook error") {
		t.Errorf("error = %v, want to contain 'hook error'", err)
	}
	if afterLint {
		t.Error("AfterLint should not run after an aborted run")
	}
}
