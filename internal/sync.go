package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/starford/gapmap/internal/notion"
	"github.com/starford/gapmap/internal/processor"
	"github.com/starford/gapmap/internal/render"
	"github.com/starford/gapmap/internal/storage"
	"github.com/starford/gapmap/internal/syncer"
	"github.com/starford/gapmap/internal/throttle"
)

// SyncOptions are the flags of the sync command.
type SyncOptions struct {
	FullRefresh bool
	ClearCache  bool
	// Out overrides the configured export path.
	Out string
}

// SyncResult summarizes a finished sync.
type SyncResult struct {
	RunID    string
	Path     string
	Checksum string
	Counts   map[string]int
}

// Sync pulls the catalog from Notion and writes the export file.
//
// Notion failures degrade to cached or default data inside the aggregator;
// Sync only fails when the cache directory or the export cannot be written.
func Sync(ctx context.Context, so SyncOptions, opts ...Option) (*SyncResult, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	cfg := app.config

	runID := uuid.NewString()
	logger := app.loggerTo(os.Stdout).With(slog.String("run_id", runID))

	source := app.source
	if source == nil {
		if err := cfg.Notion.Validate(); err != nil {
			return nil, err
		}
		th := throttle.New(cfg.Notion.RequestsPerSecond, cfg.Notion.MaxRetries,
			throttle.WithRetryable(notion.IsRetryable),
			throttle.WithLogger(logger))
		defer th.Close()
		source = notion.NewClient(notion.ClientConfig{
			BaseURL: cfg.Notion.BaseURL,
			Token:   cfg.Notion.APIKey,
			Version: cfg.Notion.Version,
			Timeout: cfg.Notion.Timeout,
		}, th, logger)
	}

	files, err := storage.NewFS(cfg.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("init cache dir: %w", err)
	}
	cache := storage.NewCache(files, logger)
	if so.ClearCache {
		if err := cache.Clear(); err != nil {
			return nil, fmt.Errorf("clear cache: %w", err)
		}
		logger.Info("sync: cache cleared", slog.String("dir", files.Root()))
	}

	procs := processor.New(render.NewRenderer(source, logger), logger)
	orch := syncer.NewOrchestrator(source, cache, logger,
		syncer.WithBatch(cfg.Notion.BatchSize, cfg.Notion.Stagger),
		syncer.WithFetchOptions(notion.FetchOptions{PageSize: cfg.Notion.PageSize, Logger: logger}))
	dbs := cfg.Notion.Databases
	agg := syncer.NewAggregator(orch, procs, source, cache, syncer.Databases{
		Resources:    dbs.Resources,
		Fields:       dbs.Fields,
		Capabilities: dbs.Capabilities,
		Bottlenecks:  dbs.Bottlenecks,
		Tags:         dbs.Tags,
	}, logger)

	logger.Info("sync: starting",
		slog.Bool("full_refresh", so.FullRefresh),
		slog.String("cache_dir", files.Root()))

	start := time.Now()
	cat, err := agg.GetAllData(ctx, syncer.SyncOptions{FullRefresh: so.FullRefresh})
	if err != nil {
		return nil, fmt.Errorf("aggregate catalog: %w", err)
	}

	out := so.Out
	if out == "" {
		out = cfg.Export.Path
	}
	sum, err := storage.WriteJSON(out, cat)
	if err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}

	res := &SyncResult{
		RunID:    runID,
		Path:     out,
		Checksum: sum,
		Counts: map[string]int{
			"resources":    len(cat.Resources),
			"fields":       len(cat.Fields),
			"capabilities": len(cat.Capabilities),
			"bottlenecks":  len(cat.Bottlenecks),
		},
	}
	logger.Info("sync: export written",
		slog.String("path", out),
		slog.String("checksum", sum),
		slog.Int("resources", res.Counts["resources"]),
		slog.Int("fields", res.Counts["fields"]),
		slog.Int("capabilities", res.Counts["capabilities"]),
		slog.Int("bottlenecks", res.Counts["bottlenecks"]),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}
