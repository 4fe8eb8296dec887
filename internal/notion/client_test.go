package notion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/gapmap/internal/throttle"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	th := throttle.New(1000, 0, throttle.WithRetryable(IsRetryable), throttle.WithLogger(logger))
	t.Cleanup(th.Close)

	return NewClient(ClientConfig{BaseURL: srv.URL, Token: "secret", Timeout: 5 * time.Second}, th, logger)
}

func TestClient_QueryDatabase(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/databases/db-1/query" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("Notion-Version") != DefaultVersion {
			t.Errorf("Notion-Version = %q", r.Header.Get("Notion-Version"))
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["start_cursor"] != "abc" || body["page_size"] != float64(50) {
			t.Errorf("body = %v", body)
		}
		if _, ok := body["filter"].(map[string]any); !ok {
			t.Errorf("filter missing from body: %v", body)
		}
		_, _ = w.Write([]byte(`{
			"object": "list",
			"results": [{
				"object": "page",
				"id": "p1",
				"last_edited_time": "2024-05-01T10:00:00.000Z",
				"properties": {
					"Name": {"id": "title", "type": "title", "title": [{"type": "text", "plain_text": "Hello", "text": {"content": "Hello"}}]},
					"Rank": {"id": "r", "type": "number", "number": 4}
				}
			}],
			"next_cursor": "def",
			"has_more": true
		}`))
	})

	resp, err := c.QueryDatabase(context.Background(), "db-1", QueryRequest{
		Filter:      LastEditedAfter(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		StartCursor: "abc",
		PageSize:    50,
	})
	if err != nil {
		t.Fatalf("QueryDatabase: %v", err)
	}
	if len(resp.Results) != 1 || !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor != "def" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	page := resp.Results[0]
	if !page.LastEditedTime.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("last_edited_time = %v", page.LastEditedTime)
	}
	prop, found, err := page.Property("Rank")
	if err != nil || !found || prop.Number == nil || *prop.Number != 4 {
		t.Errorf("Rank = %+v found=%v err=%v", prop, found, err)
	}
}

func TestClient_APIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"bad filter"}`))
	})

	_, err := c.RetrieveDatabase(context.Background(), "db")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != 400 || apiErr.Code != "validation_error" || apiErr.Message != "bad filter" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if IsRetryable(err) {
		t.Error("400 should not be retryable")
	}
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"status":429,"code":"rate_limited","message":"slow down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","results":[],"next_cursor":null,"has_more":false}`))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	th := throttle.New(1000, 3,
		throttle.WithRetryable(IsRetryable),
		throttle.WithLogger(logger),
		throttle.WithClock(instantClock{}))
	defer th.Close()
	c := NewClient(ClientConfig{BaseURL: srv.URL, Token: "t"}, th, logger)

	resp, err := c.ListBlockChildren(context.Background(), "block", "")
	if err != nil {
		t.Fatalf("ListBlockChildren: %v", err)
	}
	if resp.HasMore {
		t.Error("unexpected has_more")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&APIError{Status: 429}, true},
		{&APIError{Status: 500}, true},
		{&APIError{Status: 503}, true},
		{&APIError{Status: 404}, false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestPage_PropertyMalformed(t *testing.T) {
	var page Page
	err := json.Unmarshal([]byte(`{"id":"p","properties":{"Rank":{"type":"number","number":"high"},"Empty":null}}`), &page)
	if err != nil {
		t.Fatalf("page should decode even with malformed property: %v", err)
	}
	if _, found, err := page.Property("Rank"); !found || err == nil {
		t.Errorf("expected decode error for malformed Rank, found=%v err=%v", found, err)
	}
	if _, found, err := page.Property("Empty"); found || err != nil {
		t.Errorf("null property should be absent, found=%v err=%v", found, err)
	}
	if _, found, _ := page.Property("Missing"); found {
		t.Error("missing property reported as found")
	}
}

func TestAnd(t *testing.T) {
	if And(nil, nil) != nil {
		t.Error("And of nils should be nil")
	}
	single := LastEditedAfter(time.Now())
	if got := And(nil, single); got["timestamp"] != "last_edited_time" {
		t.Errorf("single filter should be returned unwrapped: %v", got)
	}
	combined := And(single, Filter{"property": "Rank", "number": map[string]any{"greater_than": 2}})
	parts, ok := combined["and"].([]any)
	if !ok || len(parts) != 2 {
		t.Errorf("combined = %v", combined)
	}
	b, _ := json.Marshal(combined)
	if !strings.Contains(string(b), `"and":[`) {
		t.Errorf("encoded = %s", b)
	}
}

type instantClock struct{}

func (instantClock) Now() time.Time                                   { return time.Now() }
func (instantClock) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }
