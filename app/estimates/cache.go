package estimates

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultCapacity   = 500
	DefaultFlushEvery = 50

	// TimestampLayout is used for Entry.LastChecked. Fixed-width fractions keep
	// the stored strings in chronological order when compared as text.
	TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// Entry is the last market estimate seen for one normalized product name.
type Entry struct {
	Model       string          `json:"model"`
	LastPrice   decimal.Decimal `json:"last_price"`
	LastChecked string          `json:"last_checked"`
	Sellers     []string        `json:"sellers"`
}

// MarshalJSON writes LastPrice as a JSON number, the shape existing cache
// files use. Decoding accepts both numbers and strings.
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	return json.Marshal(struct {
		plain
		LastPrice json.RawMessage `json:"last_price"`
	}{
		plain:     plain(e),
		LastPrice: json.RawMessage(e.LastPrice.String()),
	})
}

// Cache is a size-bounded, file-backed map of market estimates. It is loaded
// lazily on first use and written back only when FlushIfDue decides so.
// All methods are safe for concurrent use.
type Cache struct {
	path       string
	capacity   int
	flushEvery int

	mu      sync.Mutex
	entries map[string]Entry
	loaded  bool
}

func NewCache(path string) *Cache {
	return &Cache{
		path:       path,
		capacity:   DefaultCapacity,
		flushEvery: DefaultFlushEvery,
	}
}

// WithLimits overrides capacity and flush cadence; non-positive values keep the defaults.
func (c *Cache) WithLimits(capacity, flushEvery int) *Cache {
	if capacity > 0 {
		c.capacity = capacity
	}
	if flushEvery > 0 {
		c.flushEvery = flushEvery
	}
	return c
}

func (c *Cache) Path() string {
	return c.path
}

func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	entry, ok := c.entries[key]
	return entry, ok
}

func (c *Cache) Put(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	c.entries[key] = entry
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	return len(c.entries)
}

// FlushIfDue persists the cache when its size is a multiple of the flush
// cadence or when nothing has been persisted yet.
func (c *Cache) FlushIfDue() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	if len(c.entries)%c.flushEvery != 0 && c.fileExists() {
		return nil
	}
	return c.flushLocked()
}

// Flush persists the cache unconditionally.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	return c.flushLocked()
}

func (c *Cache) loadLocked() {
	if c.loaded {
		return
	}
	c.loaded = true
	c.entries = make(map[string]Entry)

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("No estimate cache found, starting empty", "path", c.path)
		} else {
			slog.Warn("Failed to read estimate cache, starting empty", "path", c.path, "error", err)
		}
		return
	}

	var stored map[string]Entry
	if err := json.Unmarshal(data, &stored); err != nil {
		slog.Warn("Estimate cache is corrupt, starting empty", "path", c.path, "error", err)
		return
	}
	if stored != nil {
		c.entries = stored
	}
	slog.Info("Estimate cache loaded", "path", c.path, "entries", len(c.entries))
}

func (c *Cache) flushLocked() error {
	if evicted := c.evictLocked(); evicted > 0 {
		slog.Debug("Estimate cache trimmed", "evicted", evicted, "kept", len(c.entries))
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		slog.Error("Failed to encode estimate cache", "error", err)
		return fmt.Errorf("failed to encode estimate cache: %w", err)
	}

	if err := writeFileAtomic(c.path, data); err != nil {
		slog.Error("Failed to save estimate cache", "path", c.path, "error", err)
		return fmt.Errorf("failed to save estimate cache: %w", err)
	}

	slog.Debug("Estimate cache saved", "path", c.path, "entries", len(c.entries))
	return nil
}

// evictLocked keeps the most recently checked entries up to capacity.
func (c *Cache) evictLocked() int {
	if len(c.entries) <= c.capacity {
		return 0
	}

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	checked := make(map[string]time.Time, len(keys))
	for _, k := range keys {
		checked[k] = parseChecked(c.entries[k].LastChecked)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return checked[keys[i]].After(checked[keys[j]])
	})

	kept := make(map[string]Entry, c.capacity)
	for _, k := range keys[:c.capacity] {
		kept[k] = c.entries[k]
	}
	evicted := len(c.entries) - len(kept)
	c.entries = kept
	return evicted
}

func (c *Cache) fileExists() bool {
	_, err := os.Stat(c.path)
	return err == nil
}

var checkedLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// parseChecked accepts the timestamps written by this package and naive ISO
// timestamps from older cache files. Unparseable values sort as oldest.
func parseChecked(s string) time.Time {
	for _, layout := range checkedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".estimates-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
