package search

import (
	"encoding/json"
	"fmt"
)

// Row is a note's cached representation.
type Row struct {
	Hash   string
	Path   string
	Code   string
	Title  string
	Status string
	Kind   string
	Tags   []string
}

// Result is one search hit.
type Result struct {
	Hash    string
	Path    string
	Code    string
	Title   string
	Snippet string
}

// Upsert inserts or replaces a note row, its FTS entry, and its outgoing
// links within one transaction. A stale row holding the same path under a
// different hash is evicted first.
func (db *DB) Upsert(r Row, body, checksum string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(r.Tags)

	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ? AND hash <> ?`, r.Path, r.Hash)
	_, err = tx.Exec(`
		INSERT INTO notes (hash, path, code, title, status, kind, tags, body, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(hash) DO UPDATE SET
			path       = excluded.path,
			code       = excluded.code,
			title      = excluded.title,
			status     = excluded.status,
			kind       = excluded.kind,
			tags       = excluded.tags,
			body       = excluded.body,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, r.Hash, r.Path, r.Code, r.Title, r.Status, r.Kind, string(tagsJSON), body, checksum)
	if err != nil {
		return fmt.Errorf("search: upsert note: %w", err)
	}

	if err := ftsUpsert(tx, r.Hash, r.Path, r.Title, body); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, r.Hash)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("search: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(r.Hash, target); err != nil {
				return fmt.Errorf("search: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteByPath removes the row cached for a path, with its FTS entry and
// links.
func (db *DB) DeleteByPath(path string) error {
	var hash string
	err := db.conn.QueryRow(`SELECT hash FROM notes WHERE path = ?`, path).Scan(&hash)
	if err != nil {
		return nil // nothing cached for this path
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, hash)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, hash)
	_, _ = tx.Exec(`DELETE FROM notes WHERE hash = ?`, hash)

	return tx.Commit()
}

// Checksums returns path → checksum for every cached note.
func (db *DB) Checksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("search: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Backlinks returns the hashes of notes whose bodies link to target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ?`, target)
	if err != nil {
		return nil, fmt.Errorf("search: backlinks: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
