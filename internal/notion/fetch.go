package notion

import (
	"context"
	"log/slog"
)

const (
	// DefaultPageSize is the largest page the Notion API returns.
	DefaultPageSize = 100
	// DefaultErrorBudget bounds failed page requests per FetchAll call.
	DefaultErrorBudget = 5
)

// FetchOptions tunes FetchAll.
type FetchOptions struct {
	PageSize    int
	ErrorBudget int
	Logger      *slog.Logger
}

func (o FetchOptions) withDefaults() FetchOptions {
	if o.PageSize <= 0 || o.PageSize > DefaultPageSize {
		o.PageSize = DefaultPageSize
	}
	if o.ErrorBudget <= 0 {
		o.ErrorBudget = DefaultErrorBudget
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// FetchAll follows the query cursor until the database is exhausted.
//
// A failed page request halves the page size and is retried from the same
// cursor. Once the error budget is spent FetchAll stops and returns the rows
// gathered so far with complete set to false; it only returns an error when
// ctx is done.
func FetchAll(ctx context.Context, q DatabaseQuerier, databaseID string, filter Filter, opts FetchOptions) (pages []Page, complete bool, err error) {
	opts = opts.withDefaults()
	pageSize := opts.PageSize
	cursor := ""
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return pages, false, err
		}

		resp, err := q.QueryDatabase(ctx, databaseID, QueryRequest{
			Filter:      filter,
			StartCursor: cursor,
			PageSize:    pageSize,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return pages, false, ctxErr
			}
			failures++
			opts.Logger.Warn("fetch: batch failed",
				slog.String("database_id", databaseID),
				slog.Int("page_size", pageSize),
				slog.Int("failures", failures),
				slog.Int("fetched", len(pages)),
				slog.String("error", err.Error()))
			if failures >= opts.ErrorBudget {
				opts.Logger.Warn("fetch: error budget exhausted, returning partial results",
					slog.String("database_id", databaseID),
					slog.Int("fetched", len(pages)))
				return pages, false, nil
			}
			pageSize = max(1, pageSize/2)
			continue
		}

		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return pages, true, nil
		}
		cursor = *resp.NextCursor
	}
}
