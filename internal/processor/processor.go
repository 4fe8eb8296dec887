// Package processor maps raw Notion pages onto catalog entities.
//
// Processors never fail: a property that cannot be read is replaced by a
// default and recorded on the Result, and a page with no readable properties
// becomes a placeholder entity flagged as a fallback.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/gapmap/internal/metrics"
	"github.com/starford/gapmap/internal/models"
	"github.com/starford/gapmap/internal/notion"
	"github.com/starford/gapmap/internal/slug"
)

// Property names per database.
const (
	PropName                   = "Name"
	PropTitle                  = "Title"
	PropDescription            = "Description"
	PropURL                    = "URL"
	PropContent                = "Content"
	PropResourceType           = "Resource Type"
	PropRank                   = "Rank"
	PropNumber                 = "Number"
	PropResources              = "Resources"
	PropField                  = "Field"
	PropFoundationalCapability = "Foundational Capabilities"
	PropTags                   = "Tags"
	PropPrivateTags            = "Private Tags"
)

var errNoProperties = errors.New("page has no properties")

// ContentRenderer renders a page body. Implemented by render.Renderer.
type ContentRenderer interface {
	PageMarkdown(ctx context.Context, pageID string) (string, error)
}

// Result is the outcome of processing one page. Err joins every per-field
// failure; Fallback is set when the whole record was replaced by a
// placeholder.
type Result[T any] struct {
	Value    T
	Fallback bool
	Err      error
}

// Processors converts pages of each catalog database.
type Processors struct {
	content ContentRenderer
	logger  *slog.Logger
}

// New creates Processors. content may be nil, in which case empty inline
// descriptions stay empty.
func New(content ContentRenderer, logger *slog.Logger) *Processors {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processors{content: content, logger: logger}
}

// record collects per-field failures for one page.
type record struct {
	p    *Processors
	kind string
	page notion.Page
	errs []error
}

func (p *Processors) begin(kind string, page notion.Page) *record {
	return &record{p: p, kind: kind, page: page}
}

func (r *record) check(field string, err error) {
	if err == nil {
		return
	}
	r.errs = append(r.errs, fmt.Errorf("%s: %w", field, err))
	r.p.logger.Warn("processor: field extraction failed",
		slog.String("kind", r.kind),
		slog.String("page_id", r.page.ID),
		slog.String("field", field),
		slog.String("error", err.Error()),
	)
}

func (r *record) malformed() bool {
	if r.page.Properties != nil {
		return false
	}
	r.p.logger.Warn("processor: using fallback record",
		slog.String("kind", r.kind),
		slog.String("page_id", r.page.ID),
	)
	metrics.FallbackRecords.WithLabelValues(r.kind).Inc()
	return true
}

func finish[T any](r *record, v T) Result[T] {
	return Result[T]{Value: v, Err: errors.Join(r.errs...)}
}

// description prefers the inline rich text property and otherwise renders the
// page body.
func (r *record) description(ctx context.Context, field string) string {
	text, err := richText(r.page, field)
	r.check(field, err)
	if strings.TrimSpace(text) != "" || r.p.content == nil {
		return text
	}
	body, err := r.p.content.PageMarkdown(ctx, r.page.ID)
	if err != nil {
		r.check(field+" (page body)", err)
		return ""
	}
	return body
}

// Resource processes a page of the resources database.
func (p *Processors) Resource(ctx context.Context, page notion.Page) Result[models.Resource] {
	r := p.begin(models.KindResource, page)
	if r.malformed() {
		return Result[models.Resource]{
			Value: models.Resource{
				ID:             page.ID,
				Title:          fallbackName(page.ID),
				ResourceTypes:  []string{},
				LastEditedTime: page.LastEditedTime,
			},
			Fallback: true,
			Err:      errNoProperties,
		}
	}

	res := models.Resource{ID: page.ID, LastEditedTime: page.LastEditedTime}
	var err error
	res.Title, err = title(page, PropTitle, PropName)
	r.check(PropTitle, err)
	res.URL, err = url(page, PropURL)
	r.check(PropURL, err)
	res.Content = r.description(ctx, PropContent)
	res.ResourceTypes, err = options(page, PropResourceType)
	r.check(PropResourceType, err)
	return finish(r, res)
}

// Field processes a page of the fields database.
func (p *Processors) Field(ctx context.Context, page notion.Page) Result[models.Field] {
	r := p.begin(models.KindField, page)
	if r.malformed() {
		return Result[models.Field]{
			Value:    models.Field{ID: page.ID, Name: fallbackName(page.ID), LastEditedTime: page.LastEditedTime},
			Fallback: true,
			Err:      errNoProperties,
		}
	}

	f := models.Field{ID: page.ID, LastEditedTime: page.LastEditedTime}
	var err error
	f.Name, err = title(page, PropName)
	r.check(PropName, err)
	f.Description = r.description(ctx, PropDescription)
	return finish(r, f)
}

// Capability processes a page of the capabilities database, resolving its
// resources against the already processed resources.
func (p *Processors) Capability(ctx context.Context, page notion.Page, resources []models.Resource) Result[models.Capability] {
	r := p.begin(models.KindCapability, page)
	if r.malformed() {
		name := fallbackName(page.ID)
		return Result[models.Capability]{
			Value: models.Capability{
				ID:             page.ID,
				Name:           name,
				Slug:           slug.Make(name),
				Resources:      []models.Resource{},
				Tags:           []string{},
				PrivateTags:    []string{},
				LastEditedTime: page.LastEditedTime,
			},
			Fallback: true,
			Err:      errNoProperties,
		}
	}

	c := models.Capability{ID: page.ID, LastEditedTime: page.LastEditedTime}
	var err error
	c.Name, err = title(page, PropName)
	r.check(PropName, err)
	c.Slug = slug.Make(c.Name)
	c.Description = r.description(ctx, PropDescription)

	rank, _, err := number(page, PropRank)
	r.check(PropRank, err)
	c.Rank = rankFrom(rank)

	ids, err := relationIDs(page, PropResources)
	r.check(PropResources, err)
	c.Resources = resolve(ids, indexByID(resources))

	c.Tags, err = relationIDs(page, PropTags)
	r.check(PropTags, err)
	c.PrivateTags, err = relationIDs(page, PropPrivateTags)
	r.check(PropPrivateTags, err)
	return finish(r, c)
}

// Bottleneck processes a page of the bottlenecks database. A missing or
// unresolved field relation yields the Uncategorized field.
func (p *Processors) Bottleneck(ctx context.Context, page notion.Page, fields []models.Field, capabilities []models.Capability) Result[models.Bottleneck] {
	r := p.begin(models.KindBottleneck, page)
	if r.malformed() {
		name := fallbackName(page.ID)
		return Result[models.Bottleneck]{
			Value: models.Bottleneck{
				ID:             page.ID,
				Name:           name,
				Slug:           slug.Make(name),
				Field:          models.UncategorizedField(),
				Capabilities:   []models.Capability{},
				Tags:           []string{},
				PrivateTags:    []string{},
				LastEditedTime: page.LastEditedTime,
			},
			Fallback: true,
			Err:      errNoProperties,
		}
	}

	b := models.Bottleneck{ID: page.ID, LastEditedTime: page.LastEditedTime}
	var err error
	b.Name, err = title(page, PropName)
	r.check(PropName, err)
	b.Slug = slug.Make(b.Name)
	b.Description = r.description(ctx, PropDescription)

	rank, _, err := number(page, PropRank)
	r.check(PropRank, err)
	b.Rank = rankFrom(rank)

	num, _, err := number(page, PropNumber)
	r.check(PropNumber, err)
	b.Number = int(num)

	b.Field = models.UncategorizedField()
	fieldIDs, err := relationIDs(page, PropField)
	r.check(PropField, err)
	if resolved := resolve(fieldIDs, indexByID(fields)); len(resolved) > 0 {
		b.Field = resolved[0]
	}

	capIDs, err := relationIDs(page, PropFoundationalCapability)
	r.check(PropFoundationalCapability, err)
	b.Capabilities = resolve(capIDs, indexByID(capabilities))

	b.Tags, err = relationIDs(page, PropTags)
	r.check(PropTags, err)
	b.PrivateTags, err = relationIDs(page, PropPrivateTags)
	r.check(PropPrivateTags, err)
	return finish(r, b)
}

// Tag processes a page of the tags database.
func (p *Processors) Tag(_ context.Context, page notion.Page) Result[models.Tag] {
	r := p.begin(models.KindTag, page)
	if r.malformed() {
		return Result[models.Tag]{
			Value:    models.Tag{ID: page.ID, Name: fallbackName(page.ID), LastEditedTime: page.LastEditedTime},
			Fallback: true,
			Err:      errNoProperties,
		}
	}
	t := models.Tag{ID: page.ID, LastEditedTime: page.LastEditedTime}
	var err error
	t.Name, err = title(page, PropName)
	r.check(PropName, err)
	return finish(r, t)
}
