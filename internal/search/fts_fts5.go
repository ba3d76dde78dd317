//go:build sqlite_fts5

package search

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			hash UNINDEXED,
			path UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, hash, path, title, body string) error {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE hash = ?`, hash)
	_, err := tx.Exec(`INSERT INTO notes_fts (hash, path, title, body) VALUES (?, ?, ?, ?)`,
		hash, path, title, body)
	if err != nil {
		return fmt.Errorf("search: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, hash string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE hash = ?`, hash)
}

// Search performs an FTS5 full-text search over titles and bodies.
func (db *DB) Search(query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.hash,
		       f.path,
		       n.code,
		       f.title,
		       snippet(notes_fts, 3, '<b>', '</b>', '...', 64)
		FROM notes_fts f
		JOIN notes n ON n.hash = f.hash
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Hash, &r.Path, &r.Code, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
