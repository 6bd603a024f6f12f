package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/electwix/rst-lint/internal/diagnostics"
)

// Cache stores the records of previously linted documents.
type Cache interface {
	Get(ctx context.Context, key string) ([]diagnostics.Record, bool)
	Set(ctx context.Context, key string, records []diagnostics.Record, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
}

// Stats describes the state of a cache.
type Stats struct {
	Entries int
	Expired int
	Hits    int64
	Misses  int64
}

// StatsReporter is implemented by caches that can describe themselves.
type StatsReporter interface {
	Stats(ctx context.Context) Stats
}

// Pruner is implemented by caches that hold expired entries until asked
// to drop them.
type Pruner interface {
	Prune(ctx context.Context) int
}

// ComputeKey hashes the parts with SHA-256. Each part is length-prefixed
// so that ("ab", "c") and ("a", "bc") differ.
func ComputeKey(parts ...[]byte) string {
	h := sha256.New()
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write(p)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// Entry is one cached lint result.
type Entry struct {
	Records   []diagnostics.Record `msgpack:"records"`
	CreatedAt time.Time            `msgpack:"created_at"`
	ExpiresAt time.Time            `msgpack:"expires_at"`
}

func newEntry(records []diagnostics.Record, ttl time.Duration) Entry {
	now := time.Now()
	return Entry{Records: cloneRecords(records), CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

func cloneRecords(records []diagnostics.Record) []diagnostics.Record {
	out := make([]diagnostics.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// Backend names a cache implementation.
type Backend string

const (
	BackendNone   Backend = "none"
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// ParseBackend parses a backend name. The empty string selects none.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendNone, nil
	case BackendNone, BackendMemory, BackendFile, BackendSQLite:
		return b, nil
	default:
		return BackendNone, fmt.Errorf("unknown cache backend %q (want none, memory, file or sqlite)", s)
	}
}

// Options configure Open.
type Options struct {
	Backend Backend
	// Path is the directory of the file backend or the database file of
	// the sqlite backend.
	Path string
	// Size bounds the memory backend; zero means DefaultSize.
	Size int
	// TTL is the default lifetime of memory entries; zero means DefaultTTL.
	TTL time.Duration
}

const (
	DefaultSize = 1024
	DefaultTTL  = 24 * time.Hour
)

// Open creates the configured cache. The caller must call Close on the
// returned closer when done; it is a no-op for backends without
// resources.
func Open(ctx context.Context, opts Options) (Cache, func() error, error) {
	nop := func() error { return nil }
	switch opts.Backend {
	case BackendNone, "":
		return NopCache{}, nop, nil
	case BackendMemory:
		return NewMemoryCache(opts.Size, opts.TTL), nop, nil
	case BackendFile:
		if opts.Path == "" {
			return nil, nil, fmt.Errorf("cache: file backend needs a path")
		}
		c, err := NewFileCache(opts.Path)
		if err != nil {
			return nil, nil, err
		}
		return c, nop, nil
	case BackendSQLite:
		if opts.Path == "" {
			return nil, nil, fmt.Errorf("cache: sqlite backend needs a path")
		}
		c, err := OpenSQLiteCache(ctx, opts.Path)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("cache: unknown backend %q", opts.Backend)
	}
}

// NopCache never stores anything.
type NopCache struct{}

// Get always misses.
func (NopCache) Get(context.Context, string) ([]diagnostics.Record, bool) { return nil, false }

// Set discards records.
func (NopCache) Set(context.Context, string, []diagnostics.Record, time.Duration) {}

// Delete is a no-op.
func (NopCache) Delete(context.Context, string) {}

// Clear is a no-op.
func (NopCache) Clear(context.Context) {}

var _ Cache = NopCache{}
