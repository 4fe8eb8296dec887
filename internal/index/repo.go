package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/gapmap/internal/apperr"
	"github.com/starford/gapmap/internal/models"
	"github.com/starford/gapmap/internal/slug"
)

// Link types.
const (
	LinkField      = "field"
	LinkCapability = "capability"
	LinkResource   = "resource"
)

const (
	metaChecksum    = "checksum"
	metaGeneratedAt = "generated_at"
)

// EntityRow is the listing view of an indexed entity.
type EntityRow struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Rank        int      `json:"rank"`
	Number      int      `json:"number"`
	FieldID     string   `json:"fieldId,omitempty"`
	Tags        []string `json:"tags"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string
	Kind    string
	Slug    string
	Name    string
	Snippet string
}

// GraphNode is a vertex of the relationship graph.
type GraphNode struct {
	ID      string
	Kind    string
	Name    string
	Slug    string
	Rank    int
	FieldID string
}

// GraphLink is a directed edge of the relationship graph.
type GraphLink struct {
	Source string
	Target string
	Type   string
}

// Status summarises the indexed catalog.
type Status struct {
	Checksum    string
	GeneratedAt time.Time
	Counts      map[string]int
}

type entity struct {
	row  EntityRow
	body string
	data any
}

type link struct{ source, target, typ string }

func flatten(cat *models.Catalog) ([]entity, []link) {
	var out []entity
	var links []link
	for _, r := range cat.Resources {
		out = append(out, entity{
			row: EntityRow{
				ID: r.ID, Kind: models.KindResource, Slug: slug.Make(r.Title),
				Name: r.Title, Description: r.Content, Tags: r.ResourceTypes,
			},
			body: r.Content + "\n" + r.URL,
			data: r,
		})
	}
	for _, f := range cat.Fields {
		out = append(out, entity{
			row:  EntityRow{ID: f.ID, Kind: models.KindField, Slug: slug.Make(f.Name), Name: f.Name, Description: f.Description},
			body: f.Description,
			data: f,
		})
	}
	for _, c := range cat.Capabilities {
		out = append(out, entity{
			row: EntityRow{
				ID: c.ID, Kind: models.KindCapability, Slug: c.Slug, Name: c.Name,
				Description: c.Description, Rank: c.Rank, Tags: c.Tags,
			},
			body: c.Description,
			data: c,
		})
		for _, r := range c.Resources {
			links = append(links, link{c.ID, r.ID, LinkResource})
		}
	}
	for _, b := range cat.Bottlenecks {
		out = append(out, entity{
			row: EntityRow{
				ID: b.ID, Kind: models.KindBottleneck, Slug: b.Slug, Name: b.Name,
				Description: b.Description, Rank: b.Rank, Number: b.Number,
				FieldID: b.Field.ID, Tags: b.Tags,
			},
			body: b.Description,
			data: b,
		})
		links = append(links, link{b.ID, b.Field.ID, LinkField})
		for _, c := range b.Capabilities {
			links = append(links, link{b.ID, c.ID, LinkCapability})
		}
	}
	return out, links
}

// ReplaceCatalog rewrites the whole index from cat within one transaction.
func (db *DB) ReplaceCatalog(cat *models.Catalog, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, stmt := range []string{`DELETE FROM entities`, `DELETE FROM links`} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("index: clear: %w", err)
		}
	}
	if err := ftsClear(tx); err != nil {
		return err
	}

	entities, links := flatten(cat)

	ins, err := tx.Prepare(`
		INSERT OR REPLACE INTO entities
			(id, kind, slug, name, description, rank, number, field_id, tags, body, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare entity insert: %w", err)
	}
	defer ins.Close()

	for _, e := range entities {
		tags := e.row.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("index: encode tags of %s %s: %w", e.row.Kind, e.row.ID, err)
		}
		data, err := json.Marshal(e.data)
		if err != nil {
			return fmt.Errorf("index: encode %s %s: %w", e.row.Kind, e.row.ID, err)
		}
		r := e.row
		if _, err := ins.Exec(r.ID, r.Kind, r.Slug, r.Name, r.Description, r.Rank, r.Number,
			r.FieldID, string(tagsJSON), e.body, string(data)); err != nil {
			return fmt.Errorf("index: insert %s %s: %w", r.Kind, r.ID, err)
		}
		if err := ftsInsert(tx, r, e.body); err != nil {
			return err
		}
	}

	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.Exec(l.source, l.target, l.typ); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	for k, v := range map[string]string{
		metaChecksum:    checksum,
		metaGeneratedAt: cat.GeneratedAt.UTC().Format(time.RFC3339Nano),
	} {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO catalog_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("index: write meta: %w", err)
		}
	}

	return tx.Commit()
}

// Checksum returns the checksum of the indexed export, or "" if none.
func (db *DB) Checksum() (string, error) {
	return db.meta(metaChecksum)
}

func (db *DB) meta(key string) (string, error) {
	var v string
	err := db.conn.QueryRow(`SELECT value FROM catalog_meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: read meta %s: %w", key, err)
	}
	return v, nil
}

// Status reports the indexed checksum, generation time and per-kind counts.
func (db *DB) Status() (Status, error) {
	st := Status{Counts: make(map[string]int)}
	var err error
	if st.Checksum, err = db.meta(metaChecksum); err != nil {
		return st, err
	}
	gen, err := db.meta(metaGeneratedAt)
	if err != nil {
		return st, err
	}
	if gen != "" {
		st.GeneratedAt, _ = time.Parse(time.RFC3339Nano, gen)
	}

	rows, err := db.conn.Query(`SELECT kind, COUNT(*) FROM entities GROUP BY kind`)
	if err != nil {
		return st, fmt.Errorf("index: count: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return st, err
		}
		st.Counts[kind] = n
	}
	return st, rows.Err()
}

// List returns every entity of kind. field, when set, restricts the result
// to bottlenecks whose field matches by ID or slug.
func (db *DB) List(kind, field string) ([]EntityRow, error) {
	q := `SELECT id, kind, slug, name, description, rank, number, field_id, tags FROM entities WHERE kind = ?`
	args := []any{kind}
	if field != "" {
		q += ` AND (field_id = ? OR field_id IN (SELECT id FROM entities WHERE kind = ? AND slug = ?))`
		args = append(args, field, models.KindField, field)
	}
	if kind == models.KindBottleneck {
		q += ` ORDER BY number, name`
	} else {
		q += ` ORDER BY name`
	}

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list %s: %w", kind, err)
	}
	defer rows.Close()

	out := []EntityRow{}
	for rows.Next() {
		var r EntityRow
		var tags string
		if err := rows.Scan(&r.ID, &r.Kind, &r.Slug, &r.Name, &r.Description, &r.Rank, &r.Number, &r.FieldID, &tags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
			r.Tags = []string{}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns the stored JSON document of the entity of kind with slug (or
// ID). It returns apperr.ErrNotFound when there is none.
func (db *DB) Get(kind, key string) ([]byte, error) {
	var data string
	err := db.conn.QueryRow(`
		SELECT data FROM entities
		WHERE kind = ? AND (slug = ? OR id = ?)
		ORDER BY number, name
		LIMIT 1
	`, kind, strings.ToLower(key), key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s %q: %w", kind, key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get %s: %w", kind, err)
	}
	return []byte(data), nil
}

// Graph returns every indexed entity as a node and every relation as a link.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT id, kind, name, slug, rank, field_id FROM entities ORDER BY kind, name`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer rows.Close()

	nodes := []GraphNode{}
	known := make(map[string]struct{})
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.ID, &n.Kind, &n.Name, &n.Slug, &n.Rank, &n.FieldID); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
		known[n.ID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	lrows, err := db.conn.Query(`SELECT source, target, type FROM links ORDER BY source, type, target`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer lrows.Close()

	links := []GraphLink{}
	for lrows.Next() {
		var l GraphLink
		if err := lrows.Scan(&l.Source, &l.Target, &l.Type); err != nil {
			return nil, nil, err
		}
		// Drop edges to entities that are not part of the catalog, such as the
		// Uncategorized field.
		if _, ok := known[l.Target]; !ok {
			continue
		}
		links = append(links, l)
	}
	return nodes, links, lrows.Err()
}
