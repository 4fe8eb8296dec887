//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on entities.body.
	return nil
}

func ftsInsert(_ *sql.Tx, _ EntityRow, _ string) error {
	// Body is already stored in the entities table; nothing extra to do.
	return nil
}

func ftsClear(_ *sql.Tx) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
// kind, when set, restricts hits to one entity kind.
func (db *DB) Search(query, kind string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT id, kind, slug, name, substr(body, 1, 200)
		FROM entities
		WHERE (name LIKE ? OR body LIKE ? OR tags LIKE ?)
		  AND (? = '' OR kind = ?)
		ORDER BY CASE WHEN name LIKE ? THEN 0 ELSE 1 END, name
		LIMIT ?
	`, like, like, like, kind, kind, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Kind, &r.Slug, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
