package pipeline

import (
	"context"
)

// Hooks provides extension points in a batch run. BeforeFile and
// AfterFile run on worker goroutines and must be safe for concurrent use.
type Hooks struct {
	// BeforeLint is called once with the files about to be linted.
	// Return an error to abort the run.
	BeforeLint func(ctx context.Context, paths []string) error

	// BeforeFile is called before a file is read.
	// Return an error to abort the run.
	BeforeFile func(ctx context.Context, path string) error

	// AfterFile is called with each file's result, cached or not.
	// Return an error to abort the run.
	AfterFile func(ctx context.Context, result FileResult) error

	// AfterLint is called once every file has been linted. It is not
	// called when the run was aborted.
	AfterLint func(ctx context.Context, summary Summary) error
}

// Chain combines two Hooks, calling h's hooks first, then other's hooks.
// If a hook in h returns an error, other's hook is not called.
func (h Hooks) Chain(other Hooks) Hooks {
	return Hooks{
		BeforeLint: chainHook(h.BeforeLint, other.BeforeLint),
		BeforeFile: chainHook(h.BeforeFile, other.BeforeFile),
		AfterFile:  chainHook(h.AfterFile, other.AfterFile),
		AfterLint:  chainHook(h.AfterLint, other.AfterLint),
	}
}

// chainHook chains two hooks of the same type.
func chainHook[T any](first, second func(context.Context, T) error) func(context.Context, T) error {
	if first == nil {
		return second
	}
	if second == nil {
		return first
	}
	return func(ctx context.Context, arg T) error {
		if err := first(ctx, arg); err != nil {
			return err
		}
		return second(ctx, arg)
	}
}

// callHook runs hook when it is set.
func callHook[T any](ctx context.Context, hook func(context.Context, T) error, arg T) error {
	if hook == nil {
		return nil
	}
	return hook(ctx, arg)
}

// NoHooks returns a Hooks with all nil functions (no-op).
func NoHooks() Hooks {
	return Hooks{}
}
