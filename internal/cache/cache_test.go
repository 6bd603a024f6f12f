package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/electwix/rst-lint/internal/diagnostics"
)

func line(n int) *int { return &n }

func sampleRecords() []diagnostics.Record {
	return []diagnostics.Record{
		{Line: line(2), Source: "a.rst", Level: diagnostics.LevelWarning, Type: "WARNING",
			Message: "Title underline too short.", FullMessage: "Title underline too short.\n\nHello\n==="},
		{Source: "a.rst", Level: diagnostics.LevelError, Type: "ERROR",
			Message: "Anonymous hyperlink mismatch.", FullMessage: "Anonymous hyperlink mismatch."},
	}
}

// backends returns a fresh instance of every persistent backend.
func backends(t *testing.T) map[string]Cache {
	t.Helper()
	fc, err := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	sc, err := OpenSQLiteCache(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteCache: %v", err)
	}
	t.Cleanup(func() { _ = sc.Close() })
	return map[string]Cache{
		"memory": NewMemoryCache(0, 0),
		"file":   fc,
		"sqlite": sc,
	}
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok := c.Get(ctx, "missing"); ok {
				t.Fatal("expected miss for unknown key")
			}

			want := sampleRecords()
			c.Set(ctx, "k1", want, time.Hour)
			got, ok := c.Get(ctx, "k1")
			if !ok {
				t.Fatal("expected hit after Set")
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("records mismatch (-want +got):\n%s", diff)
			}

			c.Delete(ctx, "k1")
			if _, ok := c.Get(ctx, "k1"); ok {
				t.Error("expected miss after Delete")
			}
		})
	}
}

func TestCacheExpiredEntriesMiss(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c.Set(ctx, "old", sampleRecords(), -time.Second)
			if _, ok := c.Get(ctx, "old"); ok {
				t.Error("expected expired entry to miss")
			}
		})
	}
}

func TestCacheClear(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c.Set(ctx, "a", sampleRecords(), time.Hour)
			c.Set(ctx, "b", nil, time.Hour)
			c.Clear(ctx)
			for _, k := range []string{"a", "b"} {
				if _, ok := c.Get(ctx, k); ok {
					t.Errorf("expected miss for %q after Clear", k)
				}
			}
		})
	}
}

func TestCacheCleanDocument(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c.Set(ctx, "clean", []diagnostics.Record{}, time.Hour)
			got, ok := c.Get(ctx, "clean")
			if !ok {
				t.Fatal("expected hit for a clean document")
			}
			if len(got) != 0 {
				t.Errorf("expected no records, got %d", len(got))
			}
		})
	}
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(4, time.Hour)
	records := sampleRecords()
	c.Set(ctx, "k", records, time.Hour)
	*records[0].Line = 99

	got, _ := c.Get(ctx, "k")
	*got[0].Line = 42
	again, _ := c.Get(ctx, "k")
	if again[0].LineOr(0) != 2 {
		t.Errorf("cached line changed to %d", again[0].LineOr(0))
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Hour)
	c.Set(ctx, "a", nil, time.Hour)
	c.Set(ctx, "b", nil, time.Hour)
	c.Get(ctx, "a")
	c.Set(ctx, "c", nil, time.Hour)

	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Error("expected a to survive")
	}
	s := c.Stats(ctx)
	if s.Entries != 2 || s.Hits != 2 || s.Misses != 1 {
		t.Errorf("stats = %+v, want 2 entries, 2 hits, 1 miss", s)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		p, ok := c.(Pruner)
		if !ok {
			continue
		}
		t.Run(name, func(t *testing.T) {
			c.Set(ctx, "live", sampleRecords(), time.Hour)
			c.Set(ctx, "dead", sampleRecords(), -time.Second)

			before := c.(StatsReporter).Stats(ctx)
			if before.Entries != 2 || before.Expired != 1 {
				t.Fatalf("stats before prune = %+v", before)
			}
			if n := p.Prune(ctx); n != 1 {
				t.Errorf("Prune removed %d entries, want 1", n)
			}
			if _, ok := c.Get(ctx, "live"); !ok {
				t.Error("live entry was pruned")
			}
		})
	}
}

func TestFileCacheKeyLayout(t *testing.T) {
	fc := &FileCache{baseDir: "/base"}
	tests := []struct {
		key  string
		want string
	}{
		{"abcdef", filepath.Join("/base", "ab", "cd", "abcdef.msgpack")},
		{"lint:abcd", filepath.Join("/base", "li", "nt", "lint_abcd.msgpack")},
		{"abc", filepath.Join("/base", "abc.msgpack")},
	}
	for _, tt := range tests {
		if got := fc.keyToPath(tt.key); got != tt.want {
			t.Errorf("keyToPath(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestComputeKey(t *testing.T) {
	a := ComputeKey([]byte("ab"), []byte("c"))
	b := ComputeKey([]byte("a"), []byte("bc"))
	if a == b {
		t.Error("length prefix should separate parts")
	}
	if len(a) != 32 {
		t.Errorf("key length = %d, want 32", len(a))
	}
	if a != ComputeKey([]byte("ab"), []byte("c")) {
		t.Error("ComputeKey is not deterministic")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		opts    Options
		want    string
		wantErr bool
	}{
		{opts: Options{}, want: "cache.NopCache"},
		{opts: Options{Backend: BackendMemory}, want: "*cache.MemoryCache"},
		{opts: Options{Backend: BackendFile, Path: t.TempDir()}, want: "*cache.FileCache"},
		{opts: Options{Backend: BackendSQLite, Path: ":memory:"}, want: "*cache.SQLiteCache"},
		{opts: Options{Backend: BackendFile}, wantErr: true},
		{opts: Options{Backend: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.opts.Backend), func(t *testing.T) {
			c, closeFn, err := Open(ctx, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer func() { _ = closeFn() }()
			if got := typeName(c); got != tt.want {
				t.Errorf("Open returned %s, want %s", got, tt.want)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case NopCache:
		return "cache.NopCache"
	case *MemoryCache:
		return "*cache.MemoryCache"
	case *FileCache:
		return "*cache.FileCache"
	case *SQLiteCache:
		return "*cache.SQLiteCache"
	default:
		return "unknown"
	}
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{"": BackendNone, "Memory": BackendMemory, " sqlite ": BackendSQLite} {
		got, err := ParseBackend(in)
		if err != nil || got != want {
			t.Errorf("ParseBackend(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseBackend("redis"); err == nil {
		t.Error("expected error for unknown backend")
	}
}
