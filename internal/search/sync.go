package search

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/hankxu/memoflow/internal/notefile"
	"github.com/hankxu/memoflow/internal/storage"
)

// Sync walks the note tree and brings the cache up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the cache
func Sync(db *DB, fs *storage.FS, logger *slog.Logger) error {
	cached, err := db.Checksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{})
	err = fs.WalkNotes("", func(rel string) error {
		disk[rel] = struct{}{}

		data, readErr := fs.Read(rel)
		if readErr != nil {
			logger.Warn("sync: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
			return nil
		}
		if cached[rel] == checksumOf(data) {
			return nil
		}
		if idxErr := indexFile(db, rel, data); idxErr != nil {
			logger.Warn("sync: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", rel))
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Remove stale entries.
	for p := range cached {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteByPath(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile parses data and upserts it into the cache. Files without a
// parsable frontmatter block are skipped by the caller via the returned
// error.
func indexFile(db *DB, path string, data []byte) error {
	note, err := notefile.Parse(data)
	if err != nil {
		return err
	}

	row := Row{
		Hash:   note.Hash,
		Path:   path,
		Code:   note.Code,
		Title:  note.Title,
		Status: note.Status,
		Kind:   note.Kind,
		Tags:   note.Tags,
	}
	return db.Upsert(row, note.Body, checksumOf(data), notefile.Links(note.Body))
}

func checksumOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
