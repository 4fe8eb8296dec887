package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/gapmap/internal/apperr"
)

const (
	metaFile          = "meta.json"
	resourceTypesFile = "resource-types.json"
)

// DatabaseMeta records the last sync of one database.
type DatabaseMeta struct {
	LastUpdated  int64     `json:"lastUpdated"` // epoch ms, 0 when never synced
	Count        int       `json:"count"`
	LastEditTime time.Time `json:"lastEditTime"` // watermark
}

// Meta is the content of meta.json.
type Meta struct {
	LastUpdated int64                   `json:"lastUpdated"`
	Databases   map[string]DatabaseMeta `json:"databases"`
}

// Database returns the record for id, zero when absent.
func (m Meta) Database(id string) DatabaseMeta {
	return m.Databases[id]
}

// Cache stores one JSON snapshot per database plus a shared metadata record.
type Cache struct {
	files  Provider
	now    func() time.Time
	logger *slog.Logger
	mu     sync.Mutex // serialises meta.json read-modify-write
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithNow overrides the wall clock used for lastUpdated stamps.
func WithNow(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a Cache over files.
func NewCache(files Provider, logger *slog.Logger, opts ...CacheOption) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{files: files, now: time.Now, logger: logger}
	for _, o := range opts {
		o(c)
	}
	return c
}

func snapshotFile(databaseID string) string {
	return databaseID + ".json"
}

// Load decodes the snapshot of databaseID into v. It returns
// apperr.ErrCacheMiss when no snapshot exists.
func (c *Cache) Load(databaseID string, v any) error {
	return c.readJSON(snapshotFile(databaseID), v)
}

// Save writes the snapshot of databaseID and records its metadata.
func (c *Cache) Save(databaseID string, v any, count int, latestEdit time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", databaseID, err)
	}
	if err := c.files.Write(snapshotFile(databaseID), data); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	meta, err := c.meta()
	if err != nil {
		return err
	}
	now := c.now().UnixMilli()
	meta.LastUpdated = now
	meta.Databases[databaseID] = DatabaseMeta{
		LastUpdated:  now,
		Count:        count,
		LastEditTime: latestEdit.UTC(),
	}
	return c.writeJSON(metaFile, meta)
}

// Meta returns the metadata record, empty when none was written yet.
func (c *Cache) Meta() (Meta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta()
}

func (c *Cache) meta() (Meta, error) {
	var m Meta
	err := c.readJSON(metaFile, &m)
	switch {
	case errors.Is(err, apperr.ErrCacheMiss):
		c.logger.Info("cache: initializing metadata")
		m = Meta{}
	case err != nil:
		// Unreadable metadata only costs a full refresh.
		c.logger.Warn("cache: discarding unreadable metadata", slog.String("error", err.Error()))
		m = Meta{}
	}
	if m.Databases == nil {
		m.Databases = make(map[string]DatabaseMeta)
	}
	return m, nil
}

// LoadResourceTypes returns the cached resource type options.
func (c *Cache) LoadResourceTypes() ([]string, error) {
	var opts []string
	if err := c.readJSON(resourceTypesFile, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// SaveResourceTypes caches the resource type options.
func (c *Cache) SaveResourceTypes(opts []string) error {
	return c.writeJSON(resourceTypesFile, opts)
}

// Clear removes every cached snapshot and the metadata record.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	names, err := c.files.List()
	if err != nil {
		return err
	}
	removed := 0
	for _, name := range names {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		if err := c.files.Delete(name); err != nil {
			return err
		}
		removed++
	}
	c.logger.Info("cache: cleared", slog.Int("files", removed))
	return nil
}

func (c *Cache) readJSON(name string, v any) error {
	data, err := c.files.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: %s: %w", name, apperr.ErrCacheMiss)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: decode %s: %w", name, err)
	}
	return nil
}

func (c *Cache) writeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", name, err)
	}
	return c.files.Write(name, data)
}
