// Package notiontest provides an in-memory notion.Source and page builders
// for tests.
package notiontest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/gapmap/internal/notion"
)

// QueryCall records one QueryDatabase invocation.
type QueryCall struct {
	DatabaseID string
	Request    notion.QueryRequest
}

// Source is an in-memory notion.Source. Databases are paginated by index.
type Source struct {
	mu sync.Mutex

	Pages   map[string][]notion.Page
	Schemas map[string]*notion.Database
	Blocks  map[string][]notion.Block

	// QueryErr, when set, is consulted before every query; call is 1-based.
	QueryErr func(call int, databaseID string) error
	// SchemaErr is returned by RetrieveDatabase when set.
	SchemaErr error
	// BlockErr is returned by ListBlockChildren when set.
	BlockErr error

	queries    []QueryCall
	blockCalls map[string]int
}

var _ notion.Source = (*Source)(nil)

// NewSource returns an empty Source.
func NewSource() *Source {
	return &Source{
		Pages:      make(map[string][]notion.Page),
		Schemas:    make(map[string]*notion.Database),
		Blocks:     make(map[string][]notion.Block),
		blockCalls: make(map[string]int),
	}
}

// AddPages appends pages to databaseID.
func (s *Source) AddPages(databaseID string, pages ...notion.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pages[databaseID] = append(s.Pages[databaseID], pages...)
}

// Upsert replaces the page with the same ID or appends it.
func (s *Source) Upsert(databaseID string, page notion.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.Pages[databaseID] {
		if p.ID == page.ID {
			s.Pages[databaseID][i] = page
			return
		}
	}
	s.Pages[databaseID] = append(s.Pages[databaseID], page)
}

// Queries returns the recorded query calls.
func (s *Source) Queries() []QueryCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]QueryCall(nil), s.queries...)
}

// BlockCalls returns how many times children of blockID were listed.
func (s *Source) BlockCalls(blockID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockCalls[blockID]
}

// QueryDatabase implements notion.DatabaseQuerier.
func (s *Source) QueryDatabase(ctx context.Context, databaseID string, req notion.QueryRequest) (*notion.QueryResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.queries = append(s.queries, QueryCall{DatabaseID: databaseID, Request: req})
	call := len(s.queries)
	hook := s.QueryErr
	all := append([]notion.Page(nil), s.Pages[databaseID]...)
	s.mu.Unlock()

	if hook != nil {
		if err := hook(call, databaseID); err != nil {
			return nil, err
		}
	}

	var matched []notion.Page
	for _, p := range all {
		ok, err := matches(req.Filter, p)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, p)
		}
	}

	start := 0
	if req.StartCursor != "" {
		n, err := strconv.Atoi(req.StartCursor)
		if err != nil {
			return nil, &notion.APIError{Status: 400, Code: "validation_error", Message: "bad cursor"}
		}
		start = n
	}
	size := req.PageSize
	if size <= 0 {
		size = notion.DefaultPageSize
	}
	end := min(start+size, len(matched))
	if start > end {
		start = end
	}

	resp := &notion.QueryResponse{Object: "list", Results: matched[start:end]}
	if end < len(matched) {
		next := strconv.Itoa(end)
		resp.NextCursor = &next
		resp.HasMore = true
	}
	return resp, nil
}

// RetrieveDatabase implements notion.SchemaReader.
func (s *Source) RetrieveDatabase(_ context.Context, databaseID string) (*notion.Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SchemaErr != nil {
		return nil, s.SchemaErr
	}
	db, ok := s.Schemas[databaseID]
	if !ok {
		return nil, &notion.APIError{Status: 404, Code: "object_not_found", Message: "database not found"}
	}
	return db, nil
}

// ListBlockChildren implements notion.BlockLister with pages of 100 blocks.
func (s *Source) ListBlockChildren(_ context.Context, blockID, cursor string) (*notion.BlockList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockCalls[blockID]++
	if s.BlockErr != nil {
		return nil, s.BlockErr
	}
	blocks := s.Blocks[blockID]
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := min(start+100, len(blocks))
	out := &notion.BlockList{Object: "list", Results: blocks[start:end]}
	if end < len(blocks) {
		next := strconv.Itoa(end)
		out.NextCursor = &next
		out.HasMore = true
	}
	return out, nil
}

func matches(f notion.Filter, p notion.Page) (bool, error) {
	if len(f) == 0 {
		return true, nil
	}
	if raw, ok := f["and"]; ok {
		parts, ok := raw.([]any)
		if !ok {
			return false, fmt.Errorf("notiontest: bad and filter %T", raw)
		}
		for _, part := range parts {
			sub, ok := part.(map[string]any)
			if !ok {
				return false, fmt.Errorf("notiontest: bad filter part %T", part)
			}
			m, err := matches(notion.Filter(sub), p)
			if err != nil || !m {
				return false, err
			}
		}
		return true, nil
	}
	if f["timestamp"] == "last_edited_time" {
		cond, _ := f["last_edited_time"].(map[string]any)
		after, _ := cond["after"].(string)
		t, err := time.Parse(time.RFC3339Nano, after)
		if err != nil {
			return false, fmt.Errorf("notiontest: bad timestamp %q: %w", after, err)
		}
		return p.LastEditedTime.After(t), nil
	}
	// Unknown property filters match everything.
	return true, nil
}

// NewPage builds a page whose properties are encoded from props.
func NewPage(id string, edited time.Time, props map[string]any) notion.Page {
	raw := make(map[string]json.RawMessage, len(props))
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b, err := json.Marshal(props[k])
		if err != nil {
			panic(fmt.Sprintf("notiontest: encode %s: %v", k, err))
		}
		raw[k] = b
	}
	return notion.Page{
		Object:         "page",
		ID:             id,
		CreatedTime:    edited,
		LastEditedTime: edited,
		Properties:     raw,
	}
}

func richText(s string) []map[string]any {
	if s == "" {
		return []map[string]any{}
	}
	return []map[string]any{{
		"type":        "text",
		"plain_text":  s,
		"text":        map[string]any{"content": s},
		"annotations": map[string]any{},
	}}
}

// Title is a title property.
func Title(s string) map[string]any {
	return map[string]any{"id": "title", "type": notion.TypeTitle, "title": richText(s)}
}

// RichText is a rich_text property.
func RichText(s string) map[string]any {
	return map[string]any{"id": "rt", "type": notion.TypeRichText, "rich_text": richText(s)}
}

// Number is a number property.
func Number(n float64) map[string]any {
	return map[string]any{"id": "num", "type": notion.TypeNumber, "number": n}
}

// URL is a url property.
func URL(u string) map[string]any {
	return map[string]any{"id": "url", "type": notion.TypeURL, "url": u}
}

// Relation is a relation property referencing ids.
func Relation(ids ...string) map[string]any {
	rels := make([]map[string]any, len(ids))
	for i, id := range ids {
		rels[i] = map[string]any{"id": id}
	}
	return map[string]any{"id": "rel", "type": notion.TypeRelation, "relation": rels}
}

// MultiSelect is a multi_select property.
func MultiSelect(names ...string) map[string]any {
	opts := make([]map[string]any, len(names))
	for i, n := range names {
		opts[i] = map[string]any{"name": n}
	}
	return map[string]any{"id": "ms", "type": notion.TypeMultiSelect, "multi_select": opts}
}

// Paragraph is a paragraph block with plain text.
func Paragraph(id, text string) notion.Block {
	return notion.Block{
		Object:    "block",
		ID:        id,
		Type:      "paragraph",
		Paragraph: &notion.TextBlock{RichText: []notion.RichText{{Type: "text", PlainText: text, Text: &notion.TextContent{Content: text}}}},
	}
}
