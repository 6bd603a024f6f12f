// Package cache stores lint results so that documents whose content and
// lint options are unchanged are not linted again.
//
// The memory backend is an expiring LRU, the file backend keeps one
// msgpack file per key and the sqlite backend keeps one row per key.
//
// Usage:
//
//	c, closeCache, err := cache.Open(ctx, cache.Options{Backend: cache.BackendFile, Path: dir})
//	if err != nil {
//	    return err
//	}
//	defer closeCache()
//	key := cache.ComputeKey([]byte(path), content)
//	if records, ok := c.Get(ctx, key); ok {
//	    // reuse records
//	}
package cache
