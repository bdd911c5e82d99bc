package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	dir := t.TempDir()
	opts = append([]Option{WithDebounce(10 * time.Millisecond)}, opts...)
	c := New(dir, opts...)
	if c.Dir() != dir {
		t.Fatalf("cache dir = %q, want %q", c.Dir(), dir)
	}
	return c
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	n := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			n++
		}
	}
	return n
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)

	c.Set(NamespaceCitations, "12345", json.RawMessage(`{"count":7}`), "", 7)
	res, ok := c.Get(NamespaceCitations, "12345", "", GetOptions{})
	if !ok {
		t.Fatal("expected hit for just-written key")
	}
	if string(res.Data) != `{"count":7}` {
		t.Errorf("Data = %s", res.Data)
	}
	if res.Total != 7 {
		t.Errorf("Total = %d, want 7", res.Total)
	}
}

func TestGetMissOnAbsentKey(t *testing.T) {
	c := newTestCache(t)
	if _, ok := c.Get(NamespaceCitations, "nope", "", GetOptions{}); ok {
		t.Error("expected miss for absent key")
	}
}

func TestDebounceCoalescesWrites(t *testing.T) {
	c := newTestCache(t)

	// 5 rapid writes to the same key must produce exactly one file
	// containing the last value.
	for i := 1; i <= 5; i++ {
		payload, _ := json.Marshal(map[string]int{"v": i})
		c.Set(NamespaceGraph, "seed", payload, "", 0)
	}
	time.Sleep(50 * time.Millisecond)

	if n := countFiles(t, c.Dir()); n != 1 {
		t.Fatalf("got %d files, want 1", n)
	}

	entries, _ := os.ReadDir(c.Dir())
	data, err := os.ReadFile(filepath.Join(c.Dir(), entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if string(entry.Data) != `{"v":5}` {
		t.Errorf("persisted data = %s, want last value", entry.Data)
	}
	if !entry.Complete {
		t.Error("persisted entry should be complete")
	}
	if entry.Version != SchemaVersion {
		t.Errorf("persisted version = %d", entry.Version)
	}
}

func TestFlushForcesPendingWrites(t *testing.T) {
	c := newTestCache(t, WithDebounce(time.Hour))

	c.Set(NamespaceGraph, "a", json.RawMessage(`1`), "", 0)
	c.Set(NamespaceGraph, "b", json.RawMessage(`2`), "", 0)
	if n := countFiles(t, c.Dir()); n != 0 {
		t.Fatalf("writes landed before flush: %d files", n)
	}

	c.Flush()
	if n := countFiles(t, c.Dir()); n != 2 {
		t.Errorf("got %d files after Flush, want 2", n)
	}
}

func TestTTLExpiry(t *testing.T) {
	current := time.Now()
	c := newTestCache(t,
		WithTTL(NamespaceCitations, 1),
		WithClock(func() time.Time { return current }),
	)

	c.Set(NamespaceCitations, "r1", json.RawMessage(`{"n":1}`), "", 0)
	c.Flush()

	// Advance the clock two hours past a one-hour TTL.
	current = current.Add(2 * time.Hour)

	if _, ok := c.Get(NamespaceCitations, "r1", "", GetOptions{}); ok {
		t.Error("expired entry should be a miss")
	}

	res, ok := c.Get(NamespaceCitations, "r1", "", GetOptions{IgnoreTTL: true})
	if !ok {
		t.Fatal("IgnoreTTL should return the stale entry")
	}
	if res.AgeHours < 1.9 || res.AgeHours > 2.1 {
		t.Errorf("AgeHours = %v, want ~2", res.AgeHours)
	}
}

func TestReferencesNamespaceNeverExpires(t *testing.T) {
	current := time.Now()
	c := newTestCache(t, WithClock(func() time.Time { return current }))

	c.Set(NamespaceReferences, "r1", json.RawMessage(`[]`), "", 0)
	c.Flush()

	current = current.Add(24 * 365 * time.Hour)
	if _, ok := c.Get(NamespaceReferences, "r1", "", GetOptions{}); !ok {
		t.Error("references entries must not expire")
	}
}

func TestVersionMismatchIsMissAndDeletes(t *testing.T) {
	c := newTestCache(t)

	entry := Entry{
		Version:   SchemaVersion - 1,
		Type:      NamespaceGraph,
		Key:       "old",
		Timestamp: time.Now(),
		Complete:  true,
		Data:      json.RawMessage(`{}`),
	}
	data, _ := json.Marshal(entry)
	name := fileName(NamespaceGraph, "old", "")
	if err := os.WriteFile(filepath.Join(c.Dir(), name), data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, ok := c.Get(NamespaceGraph, "old", "", GetOptions{}); ok {
		t.Error("version drift should be a miss")
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), name)); !os.IsNotExist(err) {
		t.Error("stale-version entry should be deleted")
	}
}

func TestIncompleteEntryIsMissAndDeletes(t *testing.T) {
	c := newTestCache(t)

	entry := Entry{
		Version:   SchemaVersion,
		Type:      NamespaceGraph,
		Key:       "half",
		Timestamp: time.Now(),
		Complete:  false,
		Data:      json.RawMessage(`{}`),
	}
	data, _ := json.Marshal(entry)
	name := fileName(NamespaceGraph, "half", "")
	os.WriteFile(filepath.Join(c.Dir(), name), data, 0644)

	if _, ok := c.Get(NamespaceGraph, "half", "", GetOptions{}); ok {
		t.Error("incomplete entry should be a miss")
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), name)); !os.IsNotExist(err) {
		t.Error("incomplete entry should be deleted")
	}
}

func TestCorruptFileDeletedOnRead(t *testing.T) {
	c := newTestCache(t)

	name := fileName(NamespaceGraph, "bad", "")
	os.WriteFile(filepath.Join(c.Dir(), name), []byte("{not json"), 0644)

	if _, ok := c.Get(NamespaceGraph, "bad", "", GetOptions{}); ok {
		t.Error("corrupt file should be a miss")
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), name)); !os.IsNotExist(err) {
		t.Error("corrupt file should be deleted")
	}
}

func TestPurgeExpired(t *testing.T) {
	current := time.Now()
	c := newTestCache(t,
		WithTTL(NamespaceCitations, 1),
		WithClock(func() time.Time { return current }),
	)

	c.Set(NamespaceCitations, "stale", json.RawMessage(`1`), "", 0)
	c.Set(NamespaceReferences, "keep", json.RawMessage(`2`), "", 0)
	c.Flush()
	os.WriteFile(filepath.Join(c.Dir(), "garbage.json"), []byte("?"), 0644)

	current = current.Add(3 * time.Hour)

	removed := c.PurgeExpired()
	if removed != 2 {
		t.Errorf("PurgeExpired removed %d, want 2 (stale + garbage)", removed)
	}
	if _, ok := c.Get(NamespaceReferences, "keep", "", GetOptions{}); !ok {
		t.Error("permanent entry should survive purge")
	}
}

func TestClearAll(t *testing.T) {
	c := newTestCache(t)
	c.Set(NamespaceGraph, "a", json.RawMessage(`1`), "", 0)
	c.Set(NamespaceGraph, "b", json.RawMessage(`2`), "v2", 0)
	c.Flush()

	c.ClearAll()
	if n := countFiles(t, c.Dir()); n != 0 {
		t.Errorf("%d files remain after ClearAll", n)
	}
	if _, ok := c.Get(NamespaceGraph, "a", "", GetOptions{}); ok {
		t.Error("LRU should be cleared too")
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t)
	c.Set(NamespaceGraph, "a", json.RawMessage(`1`), "", 0)
	c.Set(NamespaceCitations, "b", json.RawMessage(`2`), "", 0)
	c.Flush()

	s := c.Stats()
	if s.Files != 2 {
		t.Errorf("Files = %d, want 2", s.Files)
	}
	if s.ByNamespace[NamespaceGraph] != 1 || s.ByNamespace[NamespaceCitations] != 1 {
		t.Errorf("ByNamespace = %v", s.ByNamespace)
	}
	if s.TotalBytes == 0 {
		t.Error("TotalBytes should be non-zero")
	}
}

func TestVariantKeysAreDistinct(t *testing.T) {
	c := newTestCache(t)
	c.Set(NamespaceGraph, "seed", json.RawMessage(`"rel"`), "relevance", 0)
	c.Set(NamespaceGraph, "seed", json.RawMessage(`"rec"`), "mostrecent", 0)

	res, ok := c.Get(NamespaceGraph, "seed", "relevance", GetOptions{})
	if !ok || string(res.Data) != `"rel"` {
		t.Errorf("relevance variant = %v %s", ok, res.Data)
	}
	res, ok = c.Get(NamespaceGraph, "seed", "mostrecent", GetOptions{})
	if !ok || string(res.Data) != `"rec"` {
		t.Errorf("mostrecent variant = %v %s", ok, res.Data)
	}
}

func TestFileNameSanitized(t *testing.T) {
	name := fileName("graph", `12345|relevance|norev`, "max:50")
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			t.Fatalf("unsafe rune %q in file name %q", r, name)
		}
	}
}

func TestLRUEviction(t *testing.T) {
	l := newLRU(2)
	l.put("a", &Entry{Key: "a"})
	l.put("b", &Entry{Key: "b"})
	l.get("a") // now b is oldest
	l.put("c", &Entry{Key: "c"})

	if _, ok := l.get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := l.get("a"); !ok {
		t.Error("a should survive (recently used)")
	}
	if _, ok := l.get("c"); !ok {
		t.Error("c should be present")
	}
}
