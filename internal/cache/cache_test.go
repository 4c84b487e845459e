package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	c := newCache(t)
	if !c.Enabled() {
		t.Error("cache should be enabled")
	}

	c, err := New("", 0, false)
	if err != nil {
		t.Fatalf("New() error for disabled cache: %v", err)
	}
	if c.Enabled() {
		t.Error("cache should be disabled")
	}

	var nilCache *Cache
	if nilCache.Enabled() {
		t.Error("nil cache should be disabled")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "nested", "cache", "dir")

	if _, err := New(cacheDir, 24, true); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Error("New() should create cache directory")
	}
}

func TestStoreAndLoad(t *testing.T) {
	c := newCache(t)

	key := "stream:/tmp/fragments"
	digest := Digest([]byte("main_cgraph.dot"), []byte("digraph {}"))
	data := []byte(`{"resolved":"digraph callgraph {}"}`)

	if err := c.Store(key, digest, data); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	got, ok := c.Load(key, digest)
	if !ok {
		t.Fatal("Load() missed an entry with matching digest")
	}
	if string(got) != string(data) {
		t.Errorf("Load() = %q, want %q", got, data)
	}

	if _, ok := c.Load(key, Digest([]byte("changed"))); ok {
		t.Error("Load() should miss when the digest differs")
	}
	if _, ok := c.Load("other", digest); ok {
		t.Error("Load() should miss for an unknown key")
	}
}

func TestStoreReplaces(t *testing.T) {
	c := newCache(t)
	if err := c.Store("k", "d1", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := c.Store("k", "d2", []byte("second")); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Load("k", "d1"); ok {
		t.Error("old digest should no longer hit")
	}
	if got, ok := c.Load("k", "d2"); !ok || string(got) != "second" {
		t.Errorf("Load() = %q, %v", got, ok)
	}
}

func TestInvalidate(t *testing.T) {
	c := newCache(t)
	if err := c.Store("k", "d", []byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate("k"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, ok := c.Load("k", "d"); ok {
		t.Error("entry should be gone after invalidation")
	}
	if err := c.Invalidate("k"); err != nil {
		t.Errorf("Invalidate() of a missing key should not error: %v", err)
	}
}

func TestClear(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")
	c, err := New(cacheDir, 24, true)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := c.Store(string(rune('a'+i)), "d", []byte("data")); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := os.Stat(cacheDir); !os.IsNotExist(err) {
		t.Error("Clear() should remove cache directory")
	}
}

func TestDisabledCache(t *testing.T) {
	c, _ := New("", 0, false)

	if err := c.Store("k", "d", []byte("data")); err != nil {
		t.Errorf("Store() on disabled cache should not error: %v", err)
	}
	if _, ok := c.Load("k", "d"); ok {
		t.Error("Load() on disabled cache should miss")
	}
	if err := c.Invalidate("k"); err != nil {
		t.Errorf("Invalidate() on disabled cache should not error: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Errorf("Clear() on disabled cache should not error: %v", err)
	}
	stats, err := c.Stats()
	if err != nil || stats.Entries != 0 {
		t.Errorf("Stats() = %+v, %v", stats, err)
	}
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("ab"), []byte("c"))
	b := Digest([]byte("a"), []byte("bc"))
	if a == b {
		t.Error("Digest() must frame parts")
	}
	if a != Digest([]byte("ab"), []byte("c")) {
		t.Error("Digest() should be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("Digest() length = %d, want 64 hex chars", len(a))
	}
	if HashBytes([]byte("x")) == HashBytes([]byte("y")) {
		t.Error("HashBytes() collision")
	}
}

func TestTTLExpiration(t *testing.T) {
	c := newCache(t)
	c.ttl = time.Hour
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Store("k", "d", []byte("data")); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Load("k", "d"); !ok {
		t.Error("Load() should hit before the TTL expires")
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Load("k", "d"); ok {
		t.Error("Load() should miss after the TTL expires")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}

func TestStats(t *testing.T) {
	c := newCache(t)

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("empty cache has %d entries", stats.Entries)
	}

	for i := 0; i < 3; i++ {
		if err := c.Store(string(rune('a'+i)), "d", []byte("data")); err != nil {
			t.Fatal(err)
		}
	}
	stats, err = c.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Entries != 3 {
		t.Errorf("Entries = %d, want 3", stats.Entries)
	}
	if stats.TotalSize <= 0 {
		t.Error("TotalSize should be positive")
	}
}

func TestPath(t *testing.T) {
	c := newCache(t)
	p1 := c.path("key/with/../slashes")
	p2 := c.path("key2")
	if p1 == p2 {
		t.Error("different keys should map to different files")
	}
	if filepath.Dir(p1) != c.dir || filepath.Ext(p1) != ".json" {
		t.Errorf("unexpected entry path %s", p1)
	}
}
