package assetcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"reelforge/internal/fileutil"
	"reelforge/internal/logging"
)

const indexFileName = "index.json"

// ErrCapacity reports that a produced entry is larger than the whole cache.
var ErrCapacity = errors.New("assetcache: entry exceeds cache capacity")

// Asset is a cached payload plus the directory holding its files.
type Asset struct {
	Key       string
	Dir       string
	Payload   []byte
	CreatedAt time.Time
}

// Producer fills dir with the entry's files and returns its JSON payload.
// It runs at most once per key across concurrent GetOrCreate callers.
type Producer func(ctx context.Context, dir string) ([]byte, error)

type entry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	SizeBytes  int64           `json:"size_bytes"`
	CreatedAt  time.Time       `json:"created_at"`
	LastUsedAt time.Time       `json:"last_used_at"`
}

// Summary surfaces entry details so the CLI can show what is stored.
type Summary struct {
	Key        string    `json:"key"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Stats describes current cache usage.
type Stats struct {
	Entries    int   `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
	MaxBytes   int64 `json:"max_bytes"`
}

// Cache provides thread-safe access to the on-disk asset store.
type Cache struct {
	root     string
	maxBytes int64
	ttl      time.Duration
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a cache rooted at root. maxBytes <= 0 disables eviction and
// capacity checks; ttl <= 0 disables expiry.
func New(root string, maxBytes int64, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("assetcache: root directory required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Cache{
		root:     root,
		maxBytes: maxBytes,
		ttl:      ttl,
		logger:   logging.NewComponentLogger(logger, "assetcache"),
		now:      time.Now,
		entries:  make(map[string]entry),
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("assetcache: create root: %w", err)
	}
	if err := c.load(); err != nil {
		c.logger.Warn("failed to load asset cache index",
			logging.String(logging.FieldEventType, "assetcache_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "cache will start empty"))
		c.entries = make(map[string]entry)
	}
	return c, nil
}

// GetOrCreate returns the cached asset for key, invoking produce when the
// entry is absent or expired. Concurrent callers for the same key share one
// production and observe the same result or the same error.
func (c *Cache) GetOrCreate(ctx context.Context, key string, produce Producer) (Asset, error) {
	key = strings.TrimSpace(key)
	if err := validateKey(key); err != nil {
		return Asset{}, err
	}
	if produce == nil {
		return Asset{}, errors.New("assetcache: producer required")
	}
	value, err, _ := c.group.Do(key, func() (any, error) {
		if asset, ok := c.lookup(key); ok {
			return asset, nil
		}
		return c.create(ctx, key, produce)
	})
	if err != nil {
		return Asset{}, err
	}
	return value.(Asset), nil
}

// Invalidate drops the entry for key so the next GetOrCreate re-produces it.
// Missing keys are not an error.
func (c *Cache) Invalidate(key string) error {
	key = strings.TrimSpace(key)
	if err := validateKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, known := c.entries[key]
	delete(c.entries, key)
	if err := os.RemoveAll(c.entryDir(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("assetcache: remove entry dir: %w", err)
	}
	if !known {
		return nil
	}
	if err := c.saveLocked(); err != nil {
		return fmt.Errorf("assetcache: persist index: %w", err)
	}
	c.logger.Debug("invalidated cache entry", logging.String("cache_key", key))
	return nil
}

// List returns all entries sorted by LastUsedAt descending (newest first).
func (c *Cache) List() []Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	summaries := make([]Summary, 0, len(c.entries))
	for _, ent := range c.entries {
		summaries = append(summaries, Summary{
			Key:        ent.Key,
			SizeBytes:  ent.SizeBytes,
			CreatedAt:  ent.CreatedAt,
			LastUsedAt: ent.LastUsedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastUsedAt.After(summaries[j].LastUsedAt)
	})
	return summaries
}

// Count returns the number of indexed entries.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns current usage totals.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, ent := range c.entries {
		total += ent.SizeBytes
	}
	return Stats{Entries: len(c.entries), TotalBytes: total, MaxBytes: c.maxBytes}
}

// Clear removes all entries and persists the empty index.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if err := os.RemoveAll(c.entryDir(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("assetcache: remove entry dir: %w", err)
		}
	}
	c.entries = make(map[string]entry)
	if err := c.saveLocked(); err != nil {
		return fmt.Errorf("assetcache: persist index: %w", err)
	}
	c.logger.Debug("cleared asset cache")
	return nil
}

func (c *Cache) lookup(key string) (Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[key]
	if !ok || c.expired(ent) {
		return Asset{}, false
	}
	dir := c.entryDir(key)
	if !existsDir(dir) {
		delete(c.entries, key)
		if err := c.saveLocked(); err != nil {
			c.logger.Warn("failed to persist cache index", logging.Error(err))
		}
		return Asset{}, false
	}
	ent.LastUsedAt = c.now()
	c.entries[key] = ent
	if err := c.saveLocked(); err != nil {
		c.logger.Warn("failed to persist cache index", logging.Error(err))
	}
	return Asset{
		Key:       key,
		Dir:       dir,
		Payload:   append([]byte(nil), ent.Payload...),
		CreatedAt: ent.CreatedAt,
	}, true
}

func (c *Cache) create(ctx context.Context, key string, produce Producer) (Asset, error) {
	buildDir, err := os.MkdirTemp(c.root, ".build-*")
	if err != nil {
		return Asset{}, fmt.Errorf("assetcache: create build dir: %w", err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.RemoveAll(buildDir)
		}
	}()

	// Producer errors pass through unwrapped so callers can classify them.
	payload, err := produce(ctx, buildDir)
	if err != nil {
		return Asset{}, err
	}
	size, err := dirSize(buildDir)
	if err != nil {
		return Asset{}, fmt.Errorf("assetcache: measure entry: %w", err)
	}
	size += int64(len(payload))
	if c.maxBytes > 0 && size > c.maxBytes {
		return Asset{}, fmt.Errorf("%w: key %s needs %d bytes, capacity is %d", ErrCapacity, key, size, c.maxBytes)
	}

	dir := c.entryDir(key)
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Asset{}, fmt.Errorf("assetcache: clear stale entry: %w", err)
	}
	if err := os.Rename(buildDir, dir); err != nil {
		return Asset{}, fmt.Errorf("assetcache: finalize entry: %w", err)
	}
	cleanup = false

	now := c.now()
	ent := entry{
		Key:        key,
		Payload:    append(json.RawMessage(nil), payload...),
		SizeBytes:  size,
		CreatedAt:  now,
		LastUsedAt: now,
	}

	c.mu.Lock()
	c.entries[key] = ent
	c.evictLocked(key)
	saveErr := c.saveLocked()
	c.mu.Unlock()
	if saveErr != nil {
		return Asset{}, fmt.Errorf("assetcache: persist index: %w", saveErr)
	}

	c.logger.Debug("cached asset",
		logging.String("cache_key", key),
		logging.Int64("entry_size_bytes", size))
	return Asset{
		Key:       key,
		Dir:       dir,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: now,
	}, nil
}

// evictLocked drops expired entries, then the least-recently-used entries
// until totals fit capacity. keep is never evicted.
func (c *Cache) evictLocked(keep string) {
	for key, ent := range c.entries {
		if key == keep || !c.expired(ent) {
			continue
		}
		c.removeEntryLocked(key, "expired")
	}
	if c.maxBytes <= 0 {
		return
	}
	for {
		var total int64
		for _, ent := range c.entries {
			total += ent.SizeBytes
		}
		if total <= c.maxBytes {
			return
		}
		victim := ""
		var oldest time.Time
		for key, ent := range c.entries {
			if key == keep {
				continue
			}
			if victim == "" || ent.LastUsedAt.Before(oldest) {
				victim, oldest = key, ent.LastUsedAt
			}
		}
		if victim == "" {
			return
		}
		c.removeEntryLocked(victim, "lru")
	}
}

func (c *Cache) removeEntryLocked(key, reason string) {
	delete(c.entries, key)
	if err := os.RemoveAll(c.entryDir(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("failed to remove cache entry",
			logging.String("cache_key", key),
			logging.Error(err))
		return
	}
	c.logger.Debug("evicted cache entry",
		logging.String("cache_key", key),
		logging.String("reason", reason))
}

func (c *Cache) expired(ent entry) bool {
	return c.ttl > 0 && c.now().Sub(ent.CreatedAt) > c.ttl
}

func (c *Cache) entryDir(key string) string {
	return filepath.Join(c.root, key)
}

func (c *Cache) indexPath() string {
	return filepath.Join(c.root, indexFileName)
}

// load reads the index from disk, dropping records whose directory vanished.
func (c *Cache) load() error {
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read index: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var records []entry
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse index: %w", err)
	}
	c.entries = make(map[string]entry, len(records))
	for _, record := range records {
		key := strings.TrimSpace(record.Key)
		if key == "" || !existsDir(c.entryDir(key)) {
			continue
		}
		c.entries[key] = record
	}
	c.logger.Debug("loaded asset cache index",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.root))
	return nil
}

func (c *Cache) saveLocked() error {
	records := make([]entry, 0, len(c.entries))
	for _, ent := range c.entries {
		records = append(records, ent)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key < records[j].Key
	})
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return fileutil.WriteFileAtomic(c.indexPath(), data, 0o644)
}

func validateKey(key string) error {
	if key == "" {
		return errors.New("assetcache: key required")
	}
	if strings.ContainsAny(key, "/\\") || strings.HasPrefix(key, ".") {
		return fmt.Errorf("assetcache: invalid key %q", key)
	}
	return nil
}

func existsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}
