// Package syncer pulls the catalog databases from Notion, keeps the disk
// cache current and assembles the relation-resolved catalog.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/gapmap/internal/apperr"
	"github.com/starford/gapmap/internal/metrics"
	"github.com/starford/gapmap/internal/notion"
	"github.com/starford/gapmap/internal/processor"
	"github.com/starford/gapmap/internal/storage"
)

const (
	// DefaultBatchSize bounds concurrent record processing in a full refresh.
	DefaultBatchSize = 10
	// DefaultStagger delays the i-th item of a batch by i times this value.
	DefaultStagger = 100 * time.Millisecond
)

const (
	modeFull        = "full"
	modeIncremental = "incremental"
)

// Entity is a cacheable catalog record.
type Entity interface {
	EntityID() string
	EditedAt() time.Time
}

// Cache is the snapshot store used by the orchestrator.
type Cache interface {
	Load(databaseID string, v any) error
	Save(databaseID string, v any, count int, latestEdit time.Time) error
	Meta() (storage.Meta, error)
}

// ProcessFunc converts one page into an entity.
type ProcessFunc[T Entity] func(ctx context.Context, page notion.Page) processor.Result[T]

// Options controls a single QueryEfficiently call.
type Options struct {
	FullRefresh bool
	// Filter is ANDed with the incremental watermark filter.
	Filter notion.Filter
	// Kind labels logs and metrics.
	Kind string
}

// Orchestrator combines the page fetcher, processors and disk cache.
type Orchestrator struct {
	source    notion.DatabaseQuerier
	cache     Cache
	logger    *slog.Logger
	fetch     notion.FetchOptions
	batchSize int
	stagger   time.Duration
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithBatch overrides the batch size and per-item stagger.
func WithBatch(size int, stagger time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if size > 0 {
			o.batchSize = size
		}
		if stagger >= 0 {
			o.stagger = stagger
		}
	}
}

// WithFetchOptions overrides page size and error budget.
func WithFetchOptions(fo notion.FetchOptions) OrchestratorOption {
	return func(o *Orchestrator) { o.fetch = fo }
}

// NewOrchestrator creates an Orchestrator. source must already be throttled.
func NewOrchestrator(source notion.DatabaseQuerier, cache Cache, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		source:    source,
		cache:     cache,
		logger:    logger,
		batchSize: DefaultBatchSize,
		stagger:   DefaultStagger,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.fetch.Logger == nil {
		o.fetch.Logger = logger
	}
	return o
}

// QueryEfficiently returns every entity of databaseID, fetching only what
// changed since the cached watermark unless a full refresh is needed.
//
// The error is non-nil only when ctx is done or when a full refresh has
// neither fresh records nor a cached snapshot to fall back on.
func QueryEfficiently[T Entity](ctx context.Context, o *Orchestrator, databaseID string, process ProcessFunc[T], opts Options) ([]T, error) {
	logger := o.logger.With(slog.String("database_id", databaseID), slog.String("kind", opts.Kind))

	meta, err := o.cache.Meta()
	if err != nil {
		logger.Warn("sync: read cache metadata failed", slog.String("error", err.Error()))
		meta = storage.Meta{}
	}
	dbMeta := meta.Database(databaseID)

	var cached []T
	hasCache := true
	if err := o.cache.Load(databaseID, &cached); err != nil {
		hasCache = false
		cached = nil
		if !errors.Is(err, apperr.ErrCacheMiss) {
			logger.Warn("sync: cached snapshot unreadable", slog.String("error", err.Error()))
		}
	}

	if opts.FullRefresh || !hasCache || dbMeta.LastUpdated == 0 {
		return fullRefresh(ctx, o, logger, databaseID, process, opts, cached, hasCache)
	}
	return incrementalRefresh(ctx, o, logger, databaseID, process, opts, cached, dbMeta.LastEditTime)
}

func fullRefresh[T Entity](ctx context.Context, o *Orchestrator, logger *slog.Logger, databaseID string, process ProcessFunc[T], opts Options, cached []T, hasCache bool) ([]T, error) {
	start := time.Now()
	logger.Info("sync: full refresh")

	pages, complete, err := notion.FetchAll(ctx, o.source, databaseID, opts.Filter, o.fetch)
	if err != nil {
		return nil, err
	}
	if !complete && len(pages) == 0 {
		if hasCache {
			logger.Warn("sync: full refresh fetched nothing, using cached snapshot", slog.Int("cached", len(cached)))
			return cached, nil
		}
		return nil, fmt.Errorf("sync: fetch %s: no records and no cached snapshot", databaseID)
	}

	items, err := processAll(ctx, o, opts.Kind, pages, process)
	if err != nil {
		return nil, err
	}
	// Cursor pagination can repeat a row that moved between pages.
	items = Merge(nil, items)
	metrics.RecordsSynced.WithLabelValues(opts.Kind, modeFull).Add(float64(len(items)))

	if !complete {
		// A truncated fetch must not replace records it never saw, nor
		// advance the watermark past them.
		if !hasCache {
			logger.Warn("sync: partial full refresh, not cached", slog.Int("records", len(items)))
			return items, nil
		}
		merged := Merge(cached, items)
		if err := saveSnapshot(o, databaseID, merged, latestEdit(cached)); err != nil {
			logger.Warn("sync: save cache failed", slog.String("error", err.Error()))
		}
		logger.Warn("sync: partial full refresh merged into cache",
			slog.Int("fetched", len(items)),
			slog.Int("total", len(merged)),
		)
		return merged, nil
	}

	if err := saveSnapshot(o, databaseID, items, latestEdit(items)); err != nil {
		logger.Warn("sync: save cache failed", slog.String("error", err.Error()))
	}
	logger.Info("sync: full refresh done",
		slog.Int("records", len(items)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return items, nil
}

func incrementalRefresh[T Entity](ctx context.Context, o *Orchestrator, logger *slog.Logger, databaseID string, process ProcessFunc[T], opts Options, cached []T, watermark time.Time) ([]T, error) {
	logger.Info("sync: incremental refresh", slog.Time("since", watermark))

	filter := notion.And(notion.LastEditedAfter(watermark), opts.Filter)
	pages, complete, err := notion.FetchAll(ctx, o.source, databaseID, filter, o.fetch)
	if err != nil {
		return nil, err
	}
	if !complete && len(pages) == 0 {
		logger.Warn("sync: incremental fetch failed, using cached snapshot", slog.Int("cached", len(cached)))
		return cached, nil
	}

	updates, err := processAll(ctx, o, opts.Kind, pages, process)
	if err != nil {
		return nil, err
	}
	metrics.RecordsSynced.WithLabelValues(opts.Kind, modeIncremental).Add(float64(len(updates)))
	if len(updates) == 0 {
		logger.Info("sync: no changes", slog.Int("cached", len(cached)))
		return cached, nil
	}

	merged := Merge(cached, updates)
	next := watermark
	if complete {
		if latest := latestEdit(updates); latest.After(next) {
			next = latest
		}
	} else {
		logger.Warn("sync: partial incremental fetch, watermark kept", slog.Int("fetched", len(updates)))
	}
	if err := saveSnapshot(o, databaseID, merged, next); err != nil {
		logger.Warn("sync: save cache failed", slog.String("error", err.Error()))
	}
	logger.Info("sync: incremental refresh done",
		slog.Int("updated", len(updates)),
		slog.Int("total", len(merged)),
	)
	return merged, nil
}

func saveSnapshot[T Entity](o *Orchestrator, databaseID string, items []T, watermark time.Time) error {
	if items == nil {
		items = []T{}
	}
	return o.cache.Save(databaseID, items, len(items), watermark)
}

// processAll runs process over pages in batches. Within a batch items run
// concurrently, each started after a stagger proportional to its position.
func processAll[T Entity](ctx context.Context, o *Orchestrator, kind string, pages []notion.Page, process ProcessFunc[T]) ([]T, error) {
	out := make([]T, 0, len(pages))
	fallbacks := 0
	for start := 0; start < len(pages); start += o.batchSize {
		batch := pages[start:min(start+o.batchSize, len(pages))]
		results := make([]processor.Result[T], len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, page := range batch {
			g.Go(func() error {
				if err := sleep(gctx, time.Duration(i)*o.stagger); err != nil {
					return err
				}
				results[i] = process(gctx, page)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, r := range results {
			if r.Fallback {
				fallbacks++
			}
			out = append(out, r.Value)
		}
	}
	if fallbacks > 0 {
		o.logger.Warn("sync: records used fallback values",
			slog.String("kind", kind),
			slog.Int("count", fallbacks),
		)
	}
	return out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Merge returns cached with every entity of updates applied by ID. Updated
// entities replace their cached version in place, new ones are appended in
// update order, and cached entities absent from updates are kept unchanged.
func Merge[T Entity](cached, updates []T) []T {
	pos := make(map[string]int, len(cached)+len(updates))
	out := make([]T, 0, len(cached)+len(updates))
	for _, e := range cached {
		if i, dup := pos[e.EntityID()]; dup {
			out[i] = e
			continue
		}
		pos[e.EntityID()] = len(out)
		out = append(out, e)
	}
	for _, e := range updates {
		if i, ok := pos[e.EntityID()]; ok {
			out[i] = e
			continue
		}
		pos[e.EntityID()] = len(out)
		out = append(out, e)
	}
	return out
}

func latestEdit[T Entity](items []T) time.Time {
	var latest time.Time
	for _, e := range items {
		if t := e.EditedAt(); t.After(latest) {
			latest = t
		}
	}
	return latest
}
