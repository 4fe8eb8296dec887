package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/gapmap/internal/catalogservice"
	"github.com/starford/gapmap/internal/sse"
	"github.com/starford/gapmap/internal/testutil"
)

// testEnv builds a router over the sample catalog. An empty token disables auth.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) http.Handler {
	t.Helper()
	svc := catalogservice.NewService(testutil.LoadedDB(t))
	return NewRouter(svc, authEnabled, token, sseHandler)
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListBottlenecks(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/bottlenecks")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 || len(resp.Items) != 3 {
		t.Fatalf("total = %d, items = %d, want 3", resp.Total, len(resp.Items))
	}
	if resp.Items[0].Number > resp.Items[1].Number {
		t.Errorf("bottlenecks not ordered by number: %+v", resp.Items)
	}
}

func TestListBottlenecks_FieldFilter(t *testing.T) {
	router := testEnv(t, "")

	for _, field := range []string{"f2", "physics"} {
		w := get(t, router, "/bottlenecks?field="+field)
		var resp ListResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if len(resp.Items) != 1 || resp.Items[0].ID != "b2" {
			t.Errorf("field=%s items = %+v", field, resp.Items)
		}
	}
}

func TestGetBottleneck(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/bottlenecks/reading-genomes")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var b BottleneckDetail
	_ = json.Unmarshal(w.Body.Bytes(), &b)
	if b.ID != "b1" || b.Field.Name != "Biology" {
		t.Errorf("bottleneck = %+v", b)
	}
	if len(b.Capabilities) != 1 || len(b.Capabilities[0].Resources) != 1 {
		t.Errorf("nested capabilities not resolved: %+v", b.Capabilities)
	}
}

func TestGetBottleneck_NotFound(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/bottlenecks/nope")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing bottleneck = %d, want 404", w.Code)
	}
}

func TestGetCapability(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/capabilities/cheap-sequencing")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var c CapabilityDetail
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	if c.ID != "c1" || c.Rank != 3 {
		t.Errorf("capability = %+v", c)
	}
}

func TestListOtherKinds(t *testing.T) {
	router := testEnv(t, "")

	for path, want := range map[string]int{"/capabilities": 2, "/resources": 2, "/fields": 2} {
		w := get(t, router, path)
		var resp ListResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Total != want {
			t.Errorf("%s total = %d, want %d", path, resp.Total, want)
		}
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/search?q=genomes")
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Slug != "reading-genomes" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/search")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", w.Code)
	}
}

func TestSearchUnknownKind(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/search?q=sequencing&kind=note")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown kind = %d, want 400", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/graph")
	if w.Code != http.StatusOK {
		t.Fatalf("graph status = %d", w.Code)
	}
	var resp GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Nodes) != 9 {
		t.Errorf("nodes = %d, want 9", len(resp.Nodes))
	}
	if len(resp.Links) != 6 {
		t.Errorf("links = %d, want 6", len(resp.Links))
	}
}

func TestStatusEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/status")
	var st StatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if !st.Loaded || st.Checksum != "sample" {
		t.Errorf("status = %+v", st)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/fields", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := get(t, router, "/fields")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unauthorized") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/fields", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)
	router := testEnvWithSSE(t, true, "secret", broker)

	w := get(t, router, "/events")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)
	router := testEnvWithSSE(t, true, "tok", broker)

	// The handler streams until the request context is done.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fields", nil))

	out := buf.String()
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"path":"/fields"`) {
		t.Errorf("log record = %s", out)
	}
}
