package render

import (
	"strings"

	"github.com/starford/gapmap/internal/notion"
)

// PlainText concatenates the unstyled text of rts.
func PlainText(rts []notion.RichText) string {
	var sb strings.Builder
	for _, rt := range rts {
		sb.WriteString(plain(rt))
	}
	return sb.String()
}

// Markdown renders rts with bold, italic, strikethrough, inline code and links.
func Markdown(rts []notion.RichText) string {
	var sb strings.Builder
	for _, rt := range rts {
		sb.WriteString(markdownRun(rt))
	}
	return strings.TrimSpace(sb.String())
}

func plain(rt notion.RichText) string {
	if rt.PlainText != "" {
		return rt.PlainText
	}
	if rt.Text != nil {
		return rt.Text.Content
	}
	return ""
}

func markdownRun(rt notion.RichText) string {
	text := plain(rt)
	if strings.TrimSpace(text) == "" {
		return text
	}

	// Keep surrounding whitespace outside the markers so "**bold **" never
	// appears.
	core := strings.TrimSpace(text)
	lead := text[:strings.Index(text, core)]
	trail := text[len(lead)+len(core):]

	a := rt.Annotations
	if a.Code {
		core = "`" + core + "`"
	}
	if a.Bold {
		core = "**" + core + "**"
	}
	if a.Italic {
		core = "_" + core + "_"
	}
	if a.Strikethrough {
		core = "~~" + core + "~~"
	}
	if href := link(rt); href != "" {
		core = "[" + core + "](" + href + ")"
	}
	return lead + core + trail
}

func link(rt notion.RichText) string {
	if rt.Href != nil && *rt.Href != "" {
		return *rt.Href
	}
	if rt.Text != nil && rt.Text.Link != nil {
		return rt.Text.Link.URL
	}
	return ""
}
