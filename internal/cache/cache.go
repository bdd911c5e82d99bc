// Package cache provides a namespaced, versioned, TTL-aware JSON blob
// store with debounced disk writes and an in-memory LRU front. The
// cache is a performance and offline optimization only: every I/O
// failure is logged and swallowed, and callers must never depend on a
// write having succeeded.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// SchemaVersion identifies the on-disk entry format. Entries written
// by a different version are treated as misses.
const SchemaVersion = 3

// Well-known namespaces. References are effectively permanent because
// a published paper's bibliography does not change; everything else
// defaults to DefaultTTLHours.
const (
	NamespaceReferences = "references"
	NamespaceCitations  = "citations"
	NamespaceAuthors    = "authors"
	NamespaceGraph      = "graph"
)

const (
	// DefaultTTLHours is the default freshness horizon for namespaces
	// without an explicit TTL.
	DefaultTTLHours = 24

	// DefaultDebounce is how long repeated Set calls for the same key
	// coalesce before a single disk write happens.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultLRUCapacity bounds the in-memory front tier.
	DefaultLRUCapacity = 128
)

// Entry is the persisted cache record. An entry is only trusted when
// Version matches SchemaVersion and Complete is true.
type Entry struct {
	Version   int             `json:"version"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Timestamp time.Time       `json:"timestamp"`
	TTLHours  float64         `json:"ttl_hours"` // 0 means never expires
	Complete  bool            `json:"complete"`
	Data      json.RawMessage `json:"data"`
	Total     int             `json:"total,omitempty"`
}

// Result is what a cache hit returns.
type Result struct {
	Data     json.RawMessage
	AgeHours float64
	Total    int
}

// GetOptions modifies Get behavior.
type GetOptions struct {
	// IgnoreTTL returns stale-but-complete entries instead of
	// reporting them as misses (offline mode).
	IgnoreTTL bool
}

// Stats summarizes the persistent tier.
type Stats struct {
	Files       int            `json:"files"`
	TotalBytes  int64          `json:"total_bytes"`
	ByNamespace map[string]int `json:"by_namespace"`
	LRUEntries  int            `json:"lru_entries"`
}

// Cache is the two-tier store. Safe for concurrent use.
type Cache struct {
	dir      string
	debounce time.Duration

	mu      sync.Mutex
	front   *lru
	pending map[string]*pendingWrite // by file name
	ttl     map[string]float64       // per-namespace TTL hours; 0 = permanent
	now     func() time.Time
}

type pendingWrite struct {
	timer *time.Timer
	entry *Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithDebounce overrides the write-coalescing window (tests).
func WithDebounce(d time.Duration) Option {
	return func(c *Cache) { c.debounce = d }
}

// WithTTL sets the TTL in hours for a namespace. Zero means the
// namespace never expires.
func WithTTL(namespace string, hours float64) Option {
	return func(c *Cache) { c.ttl[namespace] = hours }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New opens a cache rooted at dir. If dir is empty or fails the write
// self-test, the cache falls back to a default location under the
// user cache directory. New never fails: a cache that cannot write
// anywhere still serves as a pure in-memory LRU.
func New(dir string, opts ...Option) *Cache {
	c := &Cache{
		debounce: DefaultDebounce,
		front:    newLRU(DefaultLRUCapacity),
		pending:  make(map[string]*pendingWrite),
		ttl: map[string]float64{
			NamespaceReferences: 0,
			NamespaceCitations:  DefaultTTLHours,
			NamespaceAuthors:    DefaultTTLHours,
			NamespaceGraph:      DefaultTTLHours,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if dir == "" || !writable(dir) {
		if fallback := defaultDir(); fallback != "" && writable(fallback) {
			if dir != "" {
				fmt.Fprintf(os.Stderr, "cache: %s not writable, falling back to %s\n", dir, fallback)
			}
			dir = fallback
		} else {
			dir = ""
		}
	}
	c.dir = dir
	return c
}

// Dir returns the directory backing the persistent tier; empty when
// the cache is memory-only.
func (c *Cache) Dir() string { return c.dir }

// Get looks up (namespace, key, variant). The boolean is false on any
// miss: absent entry, schema version drift, incomplete record, or
// expired TTL (unless opts.IgnoreTTL).
func (c *Cache) Get(namespace, key, variant string, opts GetOptions) (Result, bool) {
	name := fileName(namespace, key, variant)

	c.mu.Lock()
	if pw, ok := c.pending[name]; ok {
		entry := pw.entry
		c.mu.Unlock()
		return c.validate(name, entry, opts)
	}
	if entry, ok := c.front.get(name); ok {
		c.mu.Unlock()
		return c.validate(name, entry, opts)
	}
	c.mu.Unlock()

	entry, err := c.readFile(name)
	if err != nil {
		return Result{}, false
	}

	c.mu.Lock()
	c.front.put(name, entry)
	c.mu.Unlock()

	return c.validate(name, entry, opts)
}

// Set stores data under (namespace, key, variant). The LRU is updated
// immediately; the disk write is debounced so bursts of writes to the
// same key cost one file write.
func (c *Cache) Set(namespace, key string, data json.RawMessage, variant string, total int) {
	name := fileName(namespace, key, variant)
	entry := &Entry{
		Version:   SchemaVersion,
		Type:      namespace,
		Key:       key,
		Timestamp: c.now(),
		TTLHours:  c.ttlFor(namespace),
		Complete:  true,
		Data:      data,
		Total:     total,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.front.put(name, entry)
	if c.dir == "" {
		return
	}

	if pw, ok := c.pending[name]; ok {
		pw.timer.Stop()
		pw.entry = entry
		pw.timer.Reset(c.debounce)
		return
	}

	pw := &pendingWrite{entry: entry}
	pw.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		current, ok := c.pending[name]
		if !ok || current != pw {
			c.mu.Unlock()
			return
		}
		delete(c.pending, name)
		entry := current.entry
		c.mu.Unlock()
		c.writeFile(name, entry)
	})
	c.pending[name] = pw
}

// Delete removes an entry from both tiers, cancelling any pending write.
func (c *Cache) Delete(namespace, key, variant string) {
	name := fileName(namespace, key, variant)

	c.mu.Lock()
	c.front.remove(name)
	if pw, ok := c.pending[name]; ok {
		pw.timer.Stop()
		delete(c.pending, name)
	}
	c.mu.Unlock()

	c.removeFile(name)
}

// Flush forces all pending debounced writes to disk and returns once
// they are on disk.
func (c *Cache) Flush() {
	c.mu.Lock()
	drained := make(map[string]*Entry, len(c.pending))
	for name, pw := range c.pending {
		pw.timer.Stop()
		drained[name] = pw.entry
		delete(c.pending, name)
	}
	c.mu.Unlock()

	for name, entry := range drained {
		c.writeFile(name, entry)
	}
}

// PurgeExpired scans the cache directory and deletes expired or
// corrupted entries. Returns the number of files removed.
func (c *Cache) PurgeExpired() int {
	if c.dir == "" {
		return 0
	}

	names, err := c.listFiles()
	if err != nil {
		return 0
	}

	removed := 0
	for _, name := range names {
		entry, err := c.readFile(name)
		if err != nil {
			// readFile already deleted the corrupt file.
			removed++
			continue
		}
		if c.expired(entry) || entry.Version != SchemaVersion || !entry.Complete {
			c.mu.Lock()
			c.front.remove(name)
			c.mu.Unlock()
			c.removeFile(name)
			removed++
		}
	}
	return removed
}

// ClearAll drops both tiers entirely.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.front.clear()
	for name, pw := range c.pending {
		pw.timer.Stop()
		delete(c.pending, name)
	}
	c.mu.Unlock()

	if c.dir == "" {
		return
	}
	names, err := c.listFiles()
	if err != nil {
		return
	}
	for _, name := range names {
		c.removeFile(name)
	}
}

// Stats reports the state of both tiers.
func (c *Cache) Stats() Stats {
	s := Stats{ByNamespace: make(map[string]int)}

	c.mu.Lock()
	s.LRUEntries = c.front.len()
	c.mu.Unlock()

	if c.dir == "" {
		return s
	}
	names, err := c.listFiles()
	if err != nil {
		return s
	}
	for _, name := range names {
		info, err := os.Stat(filepath.Join(c.dir, name))
		if err != nil {
			continue
		}
		s.Files++
		s.TotalBytes += info.Size()
		if entry, err := c.readFile(name); err == nil {
			s.ByNamespace[entry.Type]++
		}
	}
	return s
}

func (c *Cache) ttlFor(namespace string) float64 {
	if hours, ok := c.ttl[namespace]; ok {
		return hours
	}
	return DefaultTTLHours
}

func (c *Cache) ageHours(entry *Entry) float64 {
	return c.now().Sub(entry.Timestamp).Hours()
}

func (c *Cache) expired(entry *Entry) bool {
	if entry.TTLHours <= 0 {
		return false
	}
	return c.ageHours(entry) > entry.TTLHours
}

// validate applies the trust rules to an entry already in hand.
// Untrusted persisted entries are deleted so the next read is a clean
// miss instead of a repeated failed parse.
func (c *Cache) validate(name string, entry *Entry, opts GetOptions) (Result, bool) {
	if entry.Version != SchemaVersion || !entry.Complete {
		c.mu.Lock()
		c.front.remove(name)
		c.mu.Unlock()
		c.removeFile(name)
		return Result{}, false
	}
	if c.expired(entry) && !opts.IgnoreTTL {
		return Result{}, false
	}
	return Result{
		Data:     entry.Data,
		AgeHours: c.ageHours(entry),
		Total:    entry.Total,
	}, true
}

func (c *Cache) readFile(name string) (*Entry, error) {
	if c.dir == "" {
		return nil, os.ErrNotExist
	}
	path := filepath.Join(c.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt file: delete so we do not reparse it forever.
		os.Remove(path)
		return nil, fmt.Errorf("corrupt cache entry %s: %w", name, err)
	}
	return &entry, nil
}

func (c *Cache) writeFile(name string, entry *Entry) {
	if c.dir == "" {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cache: encoding %s: %v\n", name, err)
		return
	}
	if err := os.WriteFile(filepath.Join(c.dir, name), data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "cache: writing %s: %v\n", name, err)
	}
}

func (c *Cache) removeFile(name string) {
	if c.dir == "" {
		return
	}
	if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "cache: removing %s: %v\n", name, err)
	}
}

func (c *Cache) listFiles() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// fileName derives the deterministic file name for a logical key.
func fileName(namespace, key, variant string) string {
	name := namespace + "-" + key
	if variant != "" {
		name += "-" + variant
	}
	return unsafeChars.ReplaceAllString(name, "_") + ".json"
}

// writable runs the write self-test: the directory must be creatable
// and accept a probe file.
func writable(dir string) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false
	}
	probe := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return false
	}
	os.Remove(probe)
	return true
}

func defaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "citegraph")
}
