// Package cache keeps resolved call-graph streams on disk so unchanged
// fragment sets skip combining and resolution.
package cache

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// Cache is a directory of JSON entries, one per key.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
	now     func() time.Time
}

// Entry is one stored value. Digest identifies the inputs the value was
// derived from; a lookup with a different digest misses.
type Entry struct {
	Key     string    `json:"key"`
	Digest  string    `json:"digest"`
	Created time.Time `json:"created"`
	Data    []byte    `json:"data"`
}

// New creates a cache rooted at dir. A disabled cache accepts every call and
// never hits.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false, now: time.Now}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
		now:     time.Now,
	}, nil
}

// Enabled reports whether lookups can hit.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Digest hashes an ordered list of parts. Each part is length-prefixed, so
// ("ab", "c") and ("a", "bc") differ.
func Digest(parts ...[]byte) string {
	h := blake3.New()
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Load returns the data stored under key if its digest matches and it has
// not expired. Expired entries are removed.
func (c *Cache) Load(key, digest string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}

	path := c.path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false
	}
	if e.Key != key || e.Digest != digest {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.Created) > c.ttl {
		os.Remove(path)
		return nil, false
	}
	return e.Data, true
}

// Store writes data under key, replacing any previous entry.
func (c *Cache) Store(key, digest string, data []byte) error {
	if !c.Enabled() {
		return nil
	}

	raw, err := json.Marshal(Entry{
		Key:     key,
		Digest:  digest,
		Created: c.now(),
		Data:    data,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(key), raw, 0600)
}

// Invalidate removes a cache entry. Removing a missing entry is not an error.
func (c *Cache) Invalidate(key string) error {
	if !c.Enabled() {
		return nil
	}
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.Enabled() {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// path maps a key to its entry file. Keys are hashed so any string is safe.
func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, HashBytes([]byte(key))+".json")
}

// Stats summarizes the cache directory.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// Stats returns statistics about the cache.
func (c *Cache) Stats() (*Stats, error) {
	stats := &Stats{}
	if !c.Enabled() {
		return stats, nil
	}

	var oldest, newest time.Time
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stats, nil
		}
		return nil, err
	}
	for _, de := range entries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".json" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, err
		}
		stats.Entries++
		stats.TotalSize += info.Size()

		mod := info.ModTime()
		if oldest.IsZero() || mod.Before(oldest) {
			oldest = mod
		}
		if newest.IsZero() || mod.After(newest) {
			newest = mod
		}
	}

	if !oldest.IsZero() {
		stats.OldestAge = c.now().Sub(oldest)
		stats.NewestAge = c.now().Sub(newest)
	}
	return stats, nil
}
