package processor

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/starford/gapmap/internal/notion"
	"github.com/starford/gapmap/internal/render"
)

// DefaultTitle replaces missing or malformed titles.
const DefaultTitle = "Untitled"

// Rank bounds.
const (
	MinRank = 0
	MaxRank = 5
)

var errWrongType = errors.New("unexpected property type")

// ClampRank limits r to [MinRank, MaxRank].
func ClampRank(r int) int {
	return max(MinRank, min(MaxRank, r))
}

func rankFrom(f float64) int {
	if math.IsNaN(f) {
		return MinRank
	}
	return ClampRank(int(math.Round(max(-1, min(f, MaxRank+1)))))
}

func expect(prop *notion.Property, typ string) error {
	if prop.Type != "" && prop.Type != typ {
		return fmt.Errorf("%w: got %s, want %s", errWrongType, prop.Type, typ)
	}
	return nil
}

// title returns the plain text of the first present title property among
// names, falling back to DefaultTitle.
func title(p notion.Page, names ...string) (string, error) {
	for _, name := range names {
		prop, found, err := p.Property(name)
		if err != nil {
			return DefaultTitle, err
		}
		if !found {
			continue
		}
		if err := expect(prop, notion.TypeTitle); err != nil {
			return DefaultTitle, fmt.Errorf("%s: %w", name, err)
		}
		if s := strings.TrimSpace(render.PlainText(prop.Title)); s != "" {
			return s, nil
		}
	}
	return DefaultTitle, nil
}

// richText returns the Markdown of a rich_text property, or "" when absent.
func richText(p notion.Page, name string) (string, error) {
	prop, found, err := p.Property(name)
	if err != nil || !found {
		return "", err
	}
	if err := expect(prop, notion.TypeRichText); err != nil {
		return "", err
	}
	return render.Markdown(prop.RichText), nil
}

func number(p notion.Page, name string) (float64, bool, error) {
	prop, found, err := p.Property(name)
	if err != nil || !found {
		return 0, false, err
	}
	if err := expect(prop, notion.TypeNumber); err != nil {
		return 0, false, err
	}
	if prop.Number == nil {
		return 0, false, nil
	}
	return *prop.Number, true, nil
}

func url(p notion.Page, name string) (string, error) {
	prop, found, err := p.Property(name)
	if err != nil || !found {
		return "", err
	}
	if err := expect(prop, notion.TypeURL); err != nil {
		return "", err
	}
	if prop.URL == nil {
		return "", nil
	}
	return strings.TrimSpace(*prop.URL), nil
}

// options returns the distinct option names of a select or multi_select
// property in their original order.
func options(p notion.Page, name string) ([]string, error) {
	prop, found, err := p.Property(name)
	if err != nil || !found {
		return []string{}, err
	}
	var opts []notion.Option
	switch prop.Type {
	case notion.TypeMultiSelect, "":
		opts = prop.MultiSelect
	case notion.TypeSelect:
		if prop.Select != nil {
			opts = []notion.Option{*prop.Select}
		}
	default:
		return []string{}, fmt.Errorf("%w: got %s, want %s", errWrongType, prop.Type, notion.TypeMultiSelect)
	}
	out := make([]string, 0, len(opts))
	seen := make(map[string]struct{}, len(opts))
	for _, o := range opts {
		n := strings.TrimSpace(o.Name)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// relationIDs returns the distinct IDs referenced by a relation property.
func relationIDs(p notion.Page, name string) ([]string, error) {
	prop, found, err := p.Property(name)
	if err != nil || !found {
		return []string{}, err
	}
	if err := expect(prop, notion.TypeRelation); err != nil {
		return []string{}, err
	}
	out := make([]string, 0, len(prop.Relation))
	seen := make(map[string]struct{}, len(prop.Relation))
	for _, r := range prop.Relation {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r.ID)
	}
	return out, nil
}

// resolve maps ids to entities, dropping those not present in byID.
func resolve[T any](ids []string, byID map[string]T) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

type identified interface{ EntityID() string }

func indexByID[T identified](items []T) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[it.EntityID()] = it
	}
	return m
}

// shortID is the first eight characters of id, used in placeholder names.
func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func fallbackName(id string) string {
	if s := shortID(id); s != "" {
		return DefaultTitle + " " + s
	}
	return DefaultTitle
}
