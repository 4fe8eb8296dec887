// Package render turns Notion rich text and page bodies into Markdown.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/starford/gapmap/internal/notion"
)

// maxDepth bounds recursion into nested child blocks.
const maxDepth = 3

// Renderer renders page bodies. Concurrent renders of the same page share a
// single set of API calls.
type Renderer struct {
	blocks notion.BlockLister
	group  singleflight.Group
	logger *slog.Logger
}

// NewRenderer creates a Renderer reading blocks from bl.
func NewRenderer(bl notion.BlockLister, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{blocks: bl, logger: logger}
}

// PageMarkdown returns the body of pageID rendered as Markdown.
func (r *Renderer) PageMarkdown(ctx context.Context, pageID string) (string, error) {
	v, err, shared := r.group.Do(pageID, func() (any, error) {
		return r.renderChildren(ctx, pageID, 0)
	})
	if err != nil {
		return "", err
	}
	if shared {
		r.logger.Debug("render: shared in-flight render", slog.String("page_id", pageID))
	}
	return v.(string), nil
}

func (r *Renderer) listAll(ctx context.Context, blockID string) ([]notion.Block, error) {
	var out []notion.Block
	cursor := ""
	for {
		resp, err := r.blocks.ListBlockChildren(ctx, blockID, cursor)
		if err != nil {
			return nil, fmt.Errorf("render: list children of %s: %w", blockID, err)
		}
		out = append(out, resp.Results...)
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return out, nil
		}
		cursor = *resp.NextCursor
	}
}

func (r *Renderer) renderChildren(ctx context.Context, blockID string, depth int) (string, error) {
	blocks, err := r.listAll(ctx, blockID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	number := 0
	prev := ""
	for _, b := range blocks {
		if b.Type == "numbered_list_item" {
			number++
		} else {
			number = 0
		}
		line := Block(b, number)
		if line == "" && b.Type != "divider" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(separator(prev, b.Type))
		}
		sb.WriteString(line)
		prev = b.Type

		if b.HasChildren && depth+1 < maxDepth {
			child, err := r.renderChildren(ctx, b.ID, depth+1)
			if err != nil {
				r.logger.Warn("render: child blocks skipped",
					slog.String("block_id", b.ID),
					slog.String("error", err.Error()))
				continue
			}
			if child != "" {
				sb.WriteString("\n")
				sb.WriteString(indent(child))
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// separator keeps consecutive list items together and blank-line separates
// everything else.
func separator(prev, cur string) string {
	if isListItem(prev) && isListItem(cur) {
		return "\n"
	}
	return "\n\n"
}

func isListItem(blockType string) bool {
	switch blockType {
	case "bulleted_list_item", "numbered_list_item", "to_do":
		return true
	}
	return false
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "    " + l
		}
	}
	return strings.Join(lines, "\n")
}

// Block renders a single block. number is the 1-based position within a run
// of numbered list items.
func Block(b notion.Block, number int) string {
	switch b.Type {
	case "paragraph":
		return textOf(b.Paragraph)
	case "heading_1":
		return prefixed("# ", textOf(b.Heading1))
	case "heading_2":
		return prefixed("## ", textOf(b.Heading2))
	case "heading_3":
		return prefixed("### ", textOf(b.Heading3))
	case "bulleted_list_item":
		return "- " + textOf(b.BulletedListItem)
	case "numbered_list_item":
		return fmt.Sprintf("%d. %s", max(number, 1), textOf(b.NumberedListItem))
	case "to_do":
		box := "[ ]"
		if b.ToDo != nil && b.ToDo.Checked {
			box = "[x]"
		}
		return "- " + box + " " + textOf(b.ToDo)
	case "quote", "callout":
		tb := b.Quote
		if b.Type == "callout" {
			tb = b.Callout
		}
		return prefixed("> ", textOf(tb))
	case "toggle":
		return textOf(b.Toggle)
	case "code":
		if b.Code == nil {
			return ""
		}
		return "```" + b.Code.Language + "\n" + PlainText(b.Code.RichText) + "\n```"
	case "bookmark":
		if b.Bookmark == nil || b.Bookmark.URL == "" {
			return ""
		}
		label := PlainText(b.Bookmark.Caption)
		if label == "" {
			label = b.Bookmark.URL
		}
		return "[" + label + "](" + b.Bookmark.URL + ")"
	case "divider":
		return "---"
	}
	return ""
}

func textOf(tb *notion.TextBlock) string {
	if tb == nil {
		return ""
	}
	return Markdown(tb.RichText)
}

func prefixed(prefix, text string) string {
	if text == "" {
		return ""
	}
	return prefix + text
}
