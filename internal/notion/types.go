package notion

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Property types used by the catalog databases.
const (
	TypeTitle       = "title"
	TypeRichText    = "rich_text"
	TypeNumber      = "number"
	TypeURL         = "url"
	TypeSelect      = "select"
	TypeMultiSelect = "multi_select"
	TypeRelation    = "relation"
)

// Page is a database row. Properties are kept raw and decoded one at a time
// so a single malformed property cannot poison the whole record.
type Page struct {
	Object         string                     `json:"object"`
	ID             string                     `json:"id"`
	CreatedTime    time.Time                  `json:"created_time"`
	LastEditedTime time.Time                  `json:"last_edited_time"`
	Archived       bool                       `json:"archived"`
	URL            string                     `json:"url,omitempty"`
	Properties     map[string]json.RawMessage `json:"properties"`
}

// Property is the decoded value of a single page property.
type Property struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Title       []RichText `json:"title,omitempty"`
	RichText    []RichText `json:"rich_text,omitempty"`
	Number      *float64   `json:"number,omitempty"`
	URL         *string    `json:"url,omitempty"`
	Select      *Option    `json:"select,omitempty"`
	MultiSelect []Option   `json:"multi_select,omitempty"`
	Relation    []Relation `json:"relation,omitempty"`
	HasMore     bool       `json:"has_more,omitempty"`
}

// Property decodes the named property. found is false when the page has no
// such property; err is set when it exists but cannot be decoded.
func (p Page) Property(name string) (prop *Property, found bool, err error) {
	raw, ok := p.Properties[name]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, false, nil
	}
	var out Property
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, true, fmt.Errorf("notion: decode property %q: %w", name, err)
	}
	return &out, true, nil
}

// RichText is one styled run of text.
type RichText struct {
	Type        string       `json:"type"`
	PlainText   string       `json:"plain_text"`
	Href        *string      `json:"href,omitempty"`
	Text        *TextContent `json:"text,omitempty"`
	Annotations Annotations  `json:"annotations"`
}

// TextContent is the payload of a "text" rich text run.
type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// Link is a hyperlink target.
type Link struct {
	URL string `json:"url"`
}

// Annotations are the style flags of a rich text run.
type Annotations struct {
	Bold          bool   `json:"bold"`
	Italic        bool   `json:"italic"`
	Strikethrough bool   `json:"strikethrough"`
	Underline     bool   `json:"underline"`
	Code          bool   `json:"code"`
	Color         string `json:"color,omitempty"`
}

// Option is a select or multi-select value.
type Option struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Relation references another page by ID.
type Relation struct {
	ID string `json:"id"`
}

// QueryRequest is the body of a database query.
type QueryRequest struct {
	Filter      Filter `json:"filter,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

// QueryResponse is one page of database query results.
type QueryResponse struct {
	Object     string  `json:"object"`
	Results    []Page  `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// Database is the schema of a Notion database.
type Database struct {
	Object     string                      `json:"object"`
	ID         string                      `json:"id"`
	Title      []RichText                  `json:"title"`
	Properties map[string]DatabaseProperty `json:"properties"`
}

// DatabaseProperty describes one column of a database.
type DatabaseProperty struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Select      *SelectOptions `json:"select,omitempty"`
	MultiSelect *SelectOptions `json:"multi_select,omitempty"`
}

// SelectOptions lists the allowed values of a select column.
type SelectOptions struct {
	Options []Option `json:"options"`
}

// Block is a unit of page body content.
type Block struct {
	Object           string     `json:"object"`
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	HasChildren      bool       `json:"has_children"`
	Paragraph        *TextBlock `json:"paragraph,omitempty"`
	Heading1         *TextBlock `json:"heading_1,omitempty"`
	Heading2         *TextBlock `json:"heading_2,omitempty"`
	Heading3         *TextBlock `json:"heading_3,omitempty"`
	BulletedListItem *TextBlock `json:"bulleted_list_item,omitempty"`
	NumberedListItem *TextBlock `json:"numbered_list_item,omitempty"`
	Quote            *TextBlock `json:"quote,omitempty"`
	Callout          *TextBlock `json:"callout,omitempty"`
	Toggle           *TextBlock `json:"toggle,omitempty"`
	ToDo             *TextBlock `json:"to_do,omitempty"`
	Code             *TextBlock `json:"code,omitempty"`
	Bookmark         *URLBlock  `json:"bookmark,omitempty"`
	Divider          *struct{}  `json:"divider,omitempty"`
}

// TextBlock is the common payload of text-bearing blocks.
type TextBlock struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked,omitempty"`
	Language string     `json:"language,omitempty"`
}

// URLBlock is the payload of bookmark-like blocks.
type URLBlock struct {
	URL     string     `json:"url"`
	Caption []RichText `json:"caption,omitempty"`
}

// BlockList is one page of block children.
type BlockList struct {
	Object     string  `json:"object"`
	Results    []Block `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}
