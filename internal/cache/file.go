package cache

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/electwix/rst-lint/internal/diagnostics"
)

// File permission constants for cache operations.
const (
	cacheDirPerm  = 0o750
	cacheFilePerm = 0o600
)

// Minimum length for creating subdirectory structure in cache keys.
const minKeyLengthForSubdir = 4

const entryExt = ".msgpack"

// FileCache stores one msgpack-encoded Entry per key below a base
// directory. Writes go through a temporary file and a rename, so readers
// never see a partial entry.
type FileCache struct {
	baseDir string
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewFileCache creates a file cache rooted at baseDir, creating it when
// missing.
func NewFileCache(baseDir string) (*FileCache, error) {
	if err := os.MkdirAll(baseDir, cacheDirPerm); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FileCache{baseDir: baseDir}, nil
}

func readEntry(path string) (Entry, error) {
	var entry Entry
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return entry, err
	}
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return entry, fmt.Errorf("decode cache entry %s: %w", path, err)
	}
	return entry, nil
}

// Get retrieves the records stored under key. Expired and unreadable
// entries are removed and reported as misses.
func (f *FileCache) Get(_ context.Context, key string) ([]diagnostics.Record, bool) {
	path := f.keyToPath(key)
	entry, err := readEntry(path)
	if err != nil || entry.IsExpired() {
		if err == nil || !os.IsNotExist(err) {
			_ = os.Remove(path)
		}
		f.misses.Add(1)
		return nil, false
	}
	f.hits.Add(1)
	return entry.Records, true
}

// Set stores records under key. Failures are silent; a later Get misses.
func (f *FileCache) Set(_ context.Context, key string, records []diagnostics.Record, ttl time.Duration) {
	path := f.keyToPath(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, cacheDirPerm); err != nil {
		return
	}

	tmp, err := os.CreateTemp(dir, ".entry-*")
	if err != nil {
		return
	}
	tmpName := tmp.Name()
	enc := msgpack.NewEncoder(tmp)
	if err := enc.Encode(newEntry(records, ttl)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return
	}
	_ = os.Chmod(tmpName, cacheFilePerm)
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
	}
}

// Delete removes a value from the cache.
func (f *FileCache) Delete(_ context.Context, key string) {
	_ = os.Remove(f.keyToPath(key))
}

// Clear removes all values from the cache.
func (f *FileCache) Clear(_ context.Context) {
	_ = os.RemoveAll(f.baseDir)
	_ = os.MkdirAll(f.baseDir, cacheDirPerm)
}

// keyToPath spreads keys over a two-level directory tree named after the
// first four characters of the key.
func (f *FileCache) keyToPath(key string) string {
	safeKey := sanitizeKey(key)
	if len(safeKey) >= minKeyLengthForSubdir {
		return filepath.Join(f.baseDir, safeKey[:2], safeKey[2:4], safeKey+entryExt)
	}
	return filepath.Join(f.baseDir, safeKey+entryExt)
}

// sanitizeKey makes a key safe for use as a filename.
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(key)
}

// walkEntries calls fn for every entry file below the base directory.
func (f *FileCache) walkEntries(fn func(path string, entry Entry, err error)) {
	_ = filepath.WalkDir(f.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, entryExt) {
			return nil
		}
		entry, rerr := readEntry(path)
		fn(path, entry, rerr)
		return nil
	})
}

// Stats implements StatsReporter.
func (f *FileCache) Stats(_ context.Context) Stats {
	s := Stats{Hits: f.hits.Load(), Misses: f.misses.Load()}
	f.walkEntries(func(_ string, entry Entry, err error) {
		s.Entries++
		if err != nil || entry.IsExpired() {
			s.Expired++
		}
	})
	return s
}

// Prune removes expired and undecodable entries and returns how many it
// removed.
func (f *FileCache) Prune(_ context.Context) int {
	removed := 0
	f.walkEntries(func(path string, entry Entry, err error) {
		if err != nil || entry.IsExpired() {
			if os.Remove(path) == nil {
				removed++
			}
		}
	})
	return removed
}

var (
	_ Cache         = (*FileCache)(nil)
	_ StatsReporter = (*FileCache)(nil)
	_ Pruner        = (*FileCache)(nil)
)
