// Package notion is a minimal client for the parts of the Notion REST API the
// catalog sync needs: database queries, database schemas and block children.
// Every request is funnelled through a shared throttle and a circuit breaker.
package notion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/starford/gapmap/internal/metrics"
	"github.com/starford/gapmap/internal/throttle"
)

const (
	// DefaultBaseURL is the public Notion API endpoint.
	DefaultBaseURL = "https://api.notion.com/v1"
	// DefaultVersion is the Notion-Version header sent with every request.
	DefaultVersion = "2022-06-28"

	maxResponseBytes = 32 << 20
)

// DatabaseQuerier runs paginated database queries.
type DatabaseQuerier interface {
	QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) (*QueryResponse, error)
}

// SchemaReader retrieves database schemas.
type SchemaReader interface {
	RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error)
}

// BlockLister lists the body blocks of a page or block.
type BlockLister interface {
	ListBlockChildren(ctx context.Context, blockID, cursor string) (*BlockList, error)
}

// Source is everything the sync layer reads from Notion.
type Source interface {
	DatabaseQuerier
	SchemaReader
	BlockLister
}

// Enqueuer dispatches a task through the process-wide request throttle.
type Enqueuer interface {
	Enqueue(ctx context.Context, key string, task throttle.Task) error
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL string
	Token   string
	Version string
	Timeout time.Duration
}

// Client implements Source over HTTP.
type Client struct {
	baseURL    string
	token      string
	version    string
	httpClient *http.Client
	throttle   Enqueuer
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

var _ Source = (*Client)(nil)

// NewClient creates a Notion client dispatching through th.
func NewClient(cfg ClientConfig, th Enqueuer, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		version:    cfg.Version,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		throttle:   th,
		breaker:    newBreaker(logger),
		logger:     logger,
	}
}

// QueryDatabase fetches one page of rows matching req.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) (*QueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("notion: encode query: %w", err)
	}
	var out QueryResponse
	err = c.do(ctx, requestConfig{
		method:   http.MethodPost,
		path:     "/databases/" + url.PathEscape(databaseID) + "/query",
		endpoint: "databases.query",
		body:     body,
		key:      "query:" + databaseID + ":" + req.StartCursor,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RetrieveDatabase fetches the schema of a database.
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error) {
	var out Database
	err := c.do(ctx, requestConfig{
		method:   http.MethodGet,
		path:     "/databases/" + url.PathEscape(databaseID),
		endpoint: "databases.retrieve",
		key:      "database:" + databaseID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBlockChildren fetches one page of child blocks.
func (c *Client) ListBlockChildren(ctx context.Context, blockID, cursor string) (*BlockList, error) {
	q := url.Values{}
	q.Set("page_size", "100")
	if cursor != "" {
		q.Set("start_cursor", cursor)
	}
	var out BlockList
	err := c.do(ctx, requestConfig{
		method:   http.MethodGet,
		path:     "/blocks/" + url.PathEscape(blockID) + "/children",
		query:    q,
		endpoint: "blocks.children",
		key:      "blocks:" + blockID + ":" + cursor,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// requestConfig holds everything needed to build one API request.
type requestConfig struct {
	method   string
	path     string
	query    url.Values
	body     []byte
	endpoint string // metrics label
	key      string // throttle dedupe key
}

// do runs the request through the throttle and circuit breaker and decodes
// the JSON response into result.
func (c *Client) do(ctx context.Context, cfg requestConfig, result any) error {
	return c.throttle.Enqueue(ctx, cfg.key, func(ctx context.Context) error {
		data, err := c.breaker.Execute(func() ([]byte, error) {
			return c.roundTrip(ctx, cfg)
		})
		if err != nil {
			return err
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("notion: decode %s response: %w", cfg.endpoint, err)
		}
		return nil
	})
}

func (c *Client) roundTrip(ctx context.Context, cfg requestConfig) ([]byte, error) {
	reqURL := c.baseURL + cfg.path
	if len(cfg.query) > 0 {
		reqURL += "?" + cfg.query.Encode()
	}

	var body io.Reader = http.NoBody
	if cfg.body != nil {
		body = bytes.NewReader(cfg.body)
	}
	req, err := http.NewRequestWithContext(ctx, cfg.method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("notion: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Accept", "application/json")
	if cfg.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.NotionRequests.WithLabelValues(cfg.endpoint, "error").Inc()
		return nil, fmt.Errorf("notion: %s: %w", cfg.endpoint, err)
	}
	defer resp.Body.Close()
	metrics.NotionRequests.WithLabelValues(cfg.endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("notion: read %s response: %w", cfg.endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.Status = resp.StatusCode
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, convErr := strconv.Atoi(s); convErr == nil {
				apiErr.RetryAfterDelay = time.Duration(secs) * time.Second
			}
		}
		c.logger.Debug("notion: request failed",
			slog.String("endpoint", cfg.endpoint),
			slog.Int("status", resp.StatusCode),
			slog.String("code", apiErr.Code))
		return nil, apiErr
	}
	return data, nil
}
