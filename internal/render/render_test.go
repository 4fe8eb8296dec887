package render

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/gapmap/internal/notion"
	"github.com/starford/gapmap/internal/notion/notiontest"
)

func run(text string, a notion.Annotations) notion.RichText {
	return notion.RichText{Type: "text", PlainText: text, Text: &notion.TextContent{Content: text}, Annotations: a}
}

func TestMarkdown_Annotations(t *testing.T) {
	href := "https://example.org"
	rts := []notion.RichText{
		run("Plain ", notion.Annotations{}),
		run("bold ", notion.Annotations{Bold: true}),
		run("it", notion.Annotations{Italic: true}),
		run(" and ", notion.Annotations{}),
		run("code", notion.Annotations{Code: true}),
		{Type: "text", PlainText: " link", Href: &href},
	}
	got := Markdown(rts)
	want := "Plain **bold** _it_ and `code` [link](https://example.org)"
	if got != want {
		t.Errorf("Markdown = %q, want %q", got, want)
	}
	if PlainText(rts) != "Plain bold it and code link" {
		t.Errorf("PlainText = %q", PlainText(rts))
	}
}

func TestBlock_Types(t *testing.T) {
	tb := &notion.TextBlock{RichText: []notion.RichText{run("Text", notion.Annotations{})}}
	cases := []struct {
		block  notion.Block
		number int
		want   string
	}{
		{notion.Block{Type: "heading_1", Heading1: tb}, 0, "# Text"},
		{notion.Block{Type: "heading_2", Heading2: tb}, 0, "## Text"},
		{notion.Block{Type: "bulleted_list_item", BulletedListItem: tb}, 0, "- Text"},
		{notion.Block{Type: "numbered_list_item", NumberedListItem: tb}, 3, "3. Text"},
		{notion.Block{Type: "to_do", ToDo: &notion.TextBlock{RichText: tb.RichText, Checked: true}}, 0, "- [x] Text"},
		{notion.Block{Type: "quote", Quote: tb}, 0, "> Text"},
		{notion.Block{Type: "code", Code: &notion.TextBlock{RichText: tb.RichText, Language: "go"}}, 0, "```go\nText\n```"},
		{notion.Block{Type: "divider", Divider: &struct{}{}}, 0, "---"},
		{notion.Block{Type: "unsupported"}, 0, ""},
		{notion.Block{Type: "paragraph"}, 0, ""},
	}
	for _, tc := range cases {
		if got := Block(tc.block, tc.number); got != tc.want {
			t.Errorf("Block(%s) = %q, want %q", tc.block.Type, got, tc.want)
		}
	}
}

func TestPageMarkdown(t *testing.T) {
	src := notiontest.NewSource()
	item := func(id, text string) notion.Block {
		return notion.Block{ID: id, Type: "numbered_list_item", NumberedListItem: &notion.TextBlock{RichText: []notion.RichText{run(text, notion.Annotations{})}}}
	}
	src.Blocks["page"] = []notion.Block{
		{ID: "h", Type: "heading_2", Heading2: &notion.TextBlock{RichText: []notion.RichText{run("Overview", notion.Annotations{})}}},
		notiontest.Paragraph("p1", "First paragraph."),
		item("n1", "one"),
		item("n2", "two"),
		notiontest.Paragraph("p2", "Last."),
	}
	r := NewRenderer(src, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	got, err := r.PageMarkdown(context.Background(), "page")
	if err != nil {
		t.Fatalf("PageMarkdown: %v", err)
	}
	want := "## Overview\n\nFirst paragraph.\n\n1. one\n2. two\n\nLast."
	if got != want {
		t.Errorf("PageMarkdown =\n%q\nwant\n%q", got, want)
	}
}

func TestPageMarkdown_NestedChildren(t *testing.T) {
	src := notiontest.NewSource()
	parent := notion.Block{ID: "b1", Type: "bulleted_list_item", HasChildren: true,
		BulletedListItem: &notion.TextBlock{RichText: []notion.RichText{run("parent", notion.Annotations{})}}}
	src.Blocks["page"] = []notion.Block{parent}
	src.Blocks["b1"] = []notion.Block{{ID: "b2", Type: "bulleted_list_item",
		BulletedListItem: &notion.TextBlock{RichText: []notion.RichText{run("child", notion.Annotations{})}}}}

	r := NewRenderer(src, nil)
	got, err := r.PageMarkdown(context.Background(), "page")
	if err != nil {
		t.Fatalf("PageMarkdown: %v", err)
	}
	if got != "- parent\n    - child" {
		t.Errorf("got %q", got)
	}
}

func TestPageMarkdown_Error(t *testing.T) {
	src := notiontest.NewSource()
	src.BlockErr = errors.New("unavailable")
	r := NewRenderer(src, nil)
	if _, err := r.PageMarkdown(context.Background(), "page"); err == nil {
		t.Fatal("expected error")
	}
}
