package syncer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/starford/gapmap/internal/apperr"
	"github.com/starford/gapmap/internal/metrics"
	"github.com/starford/gapmap/internal/models"
	"github.com/starford/gapmap/internal/notion"
	"github.com/starford/gapmap/internal/processor"
)

// Stage names, in execution order.
const (
	StageResources     = "resources"
	StageFields        = "fields"
	StageResourceTypes = "resource_types"
	StageCapabilities  = "capabilities"
	StageBottlenecks   = "bottlenecks"
	StageTags          = "tags"
)

var errNoDatabase = errors.New("database id not configured")

// Databases holds the Notion database IDs of the catalog.
type Databases struct {
	Resources    string
	Fields       string
	Capabilities string
	Bottlenecks  string
	Tags         string
}

// ResourceTypeCache stores the resource type options between runs.
type ResourceTypeCache interface {
	LoadResourceTypes() ([]string, error)
	SaveResourceTypes(opts []string) error
}

// SyncOptions controls GetAllData.
type SyncOptions struct {
	FullRefresh bool
}

// Aggregator builds the catalog from every database in dependency order.
type Aggregator struct {
	orch   *Orchestrator
	procs  *processor.Processors
	schema notion.SchemaReader
	types  ResourceTypeCache
	dbs    Databases
	logger *slog.Logger
	now    func() time.Time
}

// NewAggregator creates an Aggregator.
func NewAggregator(orch *Orchestrator, procs *processor.Processors, schema notion.SchemaReader, types ResourceTypeCache, dbs Databases, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		orch:   orch,
		procs:  procs,
		schema: schema,
		types:  types,
		dbs:    dbs,
		logger: logger,
		now:    time.Now,
	}
}

// GetAllData syncs every database and returns the resolved catalog.
//
// A failing stage degrades to an empty collection (or the default resource
// type) and the remaining stages still run. The error is non-nil only when
// ctx is done.
func (a *Aggregator) GetAllData(ctx context.Context, opts SyncOptions) (*models.Catalog, error) {
	start := time.Now()
	defer func() { metrics.SyncDuration.Observe(time.Since(start).Seconds()) }()

	query := func(kind string) Options {
		return Options{FullRefresh: opts.FullRefresh, Kind: kind}
	}

	resources, err := runStage(ctx, a, StageResources, []models.Resource{}, func() ([]models.Resource, error) {
		return fetchStage(ctx, a, a.dbs.Resources, a.procs.Resource, query(models.KindResource))
	})
	if err != nil {
		return nil, err
	}

	fields, err := runStage(ctx, a, StageFields, []models.Field{}, func() ([]models.Field, error) {
		return fetchStage(ctx, a, a.dbs.Fields, a.procs.Field, query(models.KindField))
	})
	if err != nil {
		return nil, err
	}

	resourceTypes, err := runStage(ctx, a, StageResourceTypes, []string{models.DefaultResourceType}, func() ([]string, error) {
		return a.resourceTypeOptions(ctx, opts.FullRefresh)
	})
	if err != nil {
		return nil, err
	}

	capabilities, err := runStage(ctx, a, StageCapabilities, []models.Capability{}, func() ([]models.Capability, error) {
		process := func(ctx context.Context, p notion.Page) processor.Result[models.Capability] {
			return a.procs.Capability(ctx, p, resources)
		}
		return fetchStage(ctx, a, a.dbs.Capabilities, process, query(models.KindCapability))
	})
	if err != nil {
		return nil, err
	}

	bottlenecks, err := runStage(ctx, a, StageBottlenecks, []models.Bottleneck{}, func() ([]models.Bottleneck, error) {
		process := func(ctx context.Context, p notion.Page) processor.Result[models.Bottleneck] {
			return a.procs.Bottleneck(ctx, p, fields, capabilities)
		}
		return fetchStage(ctx, a, a.dbs.Bottlenecks, process, query(models.KindBottleneck))
	})
	if err != nil {
		return nil, err
	}

	tags, err := runStage(ctx, a, StageTags, []models.Tag{}, func() ([]models.Tag, error) {
		return fetchStage(ctx, a, a.dbs.Tags, a.procs.Tag, query(models.KindTag))
	})
	if err != nil {
		return nil, err
	}

	capabilities, bottlenecks = Link(resources, fields, capabilities, bottlenecks)
	capabilities, bottlenecks = ResolveTags(capabilities, bottlenecks, tags)
	SortBottlenecks(bottlenecks)

	cat := &models.Catalog{
		Resources:           nonNil(resources),
		Fields:              nonNil(fields),
		Capabilities:        capabilities,
		Bottlenecks:         bottlenecks,
		ResourceTypeOptions: resourceTypes,
		GeneratedAt:         a.now().UTC(),
	}
	a.logger.Info("sync: catalog assembled",
		slog.Int("resources", len(resources)),
		slog.Int("fields", len(fields)),
		slog.Int("capabilities", len(capabilities)),
		slog.Int("bottlenecks", len(bottlenecks)),
		slog.Int("tags", len(tags)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return cat, nil
}

func fetchStage[T Entity](ctx context.Context, a *Aggregator, databaseID string, process ProcessFunc[T], opts Options) ([]T, error) {
	if databaseID == "" {
		return nil, errNoDatabase
	}
	return QueryEfficiently(ctx, a.orch, databaseID, process, opts)
}

func runStage[T any](ctx context.Context, a *Aggregator, name string, fallback T, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil {
		return v, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fallback, ctxErr
	}
	a.logger.Error("sync: stage failed, using fallback",
		slog.String("stage", name),
		slog.String("error", err.Error()),
	)
	metrics.StageFailures.WithLabelValues(name).Inc()
	return fallback, nil
}

// resourceTypeOptions reads the Resource Type options from the resources
// database schema. Between full refreshes the cached list is reused; a
// failed schema read falls back to it as well.
func (a *Aggregator) resourceTypeOptions(ctx context.Context, fullRefresh bool) ([]string, error) {
	cached, cacheErr := a.types.LoadResourceTypes()
	if cacheErr != nil && !errors.Is(cacheErr, apperr.ErrCacheMiss) {
		a.logger.Warn("sync: cached resource types unreadable", slog.String("error", cacheErr.Error()))
	}
	if !fullRefresh && cacheErr == nil && len(cached) > 0 {
		return cached, nil
	}
	if a.dbs.Resources == "" {
		return nil, errNoDatabase
	}

	opts, err := a.fetchResourceTypes(ctx)
	if err != nil {
		if cacheErr == nil && len(cached) > 0 {
			a.logger.Warn("sync: resource type schema read failed, using cache", slog.String("error", err.Error()))
			return cached, nil
		}
		return nil, err
	}
	if err := a.types.SaveResourceTypes(opts); err != nil {
		a.logger.Warn("sync: cache resource types failed", slog.String("error", err.Error()))
	}
	return opts, nil
}

func (a *Aggregator) fetchResourceTypes(ctx context.Context) ([]string, error) {
	db, err := a.schema.RetrieveDatabase(ctx, a.dbs.Resources)
	if err != nil {
		return nil, err
	}
	prop, ok := db.Properties[processor.PropResourceType]
	if !ok {
		return nil, fmt.Errorf("sync: resources database has no %q property", processor.PropResourceType)
	}
	sel := prop.MultiSelect
	if sel == nil {
		sel = prop.Select
	}
	if sel == nil || len(sel.Options) == 0 {
		return nil, fmt.Errorf("sync: %q has no options", processor.PropResourceType)
	}
	out := make([]string, 0, len(sel.Options))
	for _, o := range sel.Options {
		if n := strings.TrimSpace(o.Name); n != "" {
			out = append(out, n)
		}
	}
	return out, nil
}

// Link refreshes nested copies from the current top-level collections, so a
// capability edited in this run is seen inside bottlenecks that were served
// from cache. Nested entities with no current counterpart are kept as is.
func Link(resources []models.Resource, fields []models.Field, capabilities []models.Capability, bottlenecks []models.Bottleneck) ([]models.Capability, []models.Bottleneck) {
	resByID := byID(resources)
	fieldByID := byID(fields)

	caps := make([]models.Capability, len(capabilities))
	for i, c := range capabilities {
		c.Resources = relink(c.Resources, resByID)
		caps[i] = c
	}
	capByID := byID(caps)

	bns := make([]models.Bottleneck, len(bottlenecks))
	for i, b := range bottlenecks {
		if f, ok := fieldByID[b.Field.ID]; ok {
			b.Field = f
		}
		b.Capabilities = relink(b.Capabilities, capByID)
		bns[i] = b
	}
	return caps, bns
}

// ResolveTags replaces tag IDs with tag names on capabilities and
// bottlenecks, including the capability copies nested in bottlenecks.
// Unresolved IDs become models.UnknownTag. Inputs are not modified.
func ResolveTags(capabilities []models.Capability, bottlenecks []models.Bottleneck, tags []models.Tag) ([]models.Capability, []models.Bottleneck) {
	names := make(map[string]string, len(tags))
	for _, t := range tags {
		names[t.ID] = t.Name
	}

	caps := make([]models.Capability, len(capabilities))
	for i, c := range capabilities {
		caps[i] = resolveCapability(c, names)
	}

	bns := make([]models.Bottleneck, len(bottlenecks))
	for i, b := range bottlenecks {
		b.Tags = tagNames(b.Tags, names)
		b.PrivateTags = tagNames(b.PrivateTags, names)
		nested := make([]models.Capability, len(b.Capabilities))
		for j, c := range b.Capabilities {
			nested[j] = resolveCapability(c, names)
		}
		b.Capabilities = nested
		bns[i] = b
	}
	return caps, bns
}

func resolveCapability(c models.Capability, names map[string]string) models.Capability {
	c.Tags = tagNames(c.Tags, names)
	c.PrivateTags = tagNames(c.PrivateTags, names)
	return c
}

func tagNames(ids []string, names map[string]string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if n, ok := names[id]; ok {
			out[i] = n
		} else {
			out[i] = models.UnknownTag
		}
	}
	return out
}

// SortBottlenecks orders bottlenecks by display number, then name.
func SortBottlenecks(bns []models.Bottleneck) {
	slices.SortStableFunc(bns, func(a, b models.Bottleneck) int {
		return cmp.Or(cmp.Compare(a.Number, b.Number), strings.Compare(a.Name, b.Name))
	})
}

func byID[T Entity](items []T) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[it.EntityID()] = it
	}
	return m
}

func relink[T Entity](nested []T, current map[string]T) []T {
	out := make([]T, len(nested))
	for i, n := range nested {
		if c, ok := current[n.EntityID()]; ok {
			out[i] = c
		} else {
			out[i] = n
		}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
