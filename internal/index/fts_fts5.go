//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
			id UNINDEXED,
			kind UNINDEXED,
			slug UNINDEXED,
			name,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, r EntityRow, body string) error {
	_, err := tx.Exec(`INSERT INTO entities_fts (id, kind, slug, name, body, tags) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Slug, r.Name, body, strings.Join(r.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

func ftsClear(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM entities_fts`); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching results with
// snippets. kind, when set, restricts hits to one entity kind.
func (db *DB) Search(query, kind string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id,
		       kind,
		       slug,
		       name,
		       snippet(entities_fts, 4, '<b>', '</b>', '...', 64)
		FROM entities_fts
		WHERE entities_fts MATCH ?
		  AND (? = '' OR kind = ?)
		ORDER BY rank
		LIMIT ?
	`, query, kind, kind, limit)
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
