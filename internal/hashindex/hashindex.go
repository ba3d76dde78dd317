// Package hashindex maintains the hash → (path, location code) map that
// gives every note its permanent identity. The on-disk notes remain the
// source of truth; the index is a cache that Rebuild can reconstruct from
// them at any time.
package hashindex

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hankxu/memoflow/internal/apperr"
	"github.com/hankxu/memoflow/internal/notefile"
	"github.com/hankxu/memoflow/internal/storage"
)

// File is the index location relative to the repo root.
const File = ".mf/hash_index.json"

const (
	minHashLen  = 6
	maxHashLen  = 12
	maxAttempts = 100
)

// Entry is one index record.
type Entry struct {
	Path        string    `json:"path"`
	Code        string    `json:"id"`
	LastUpdated time.Time `json:"last_updated"`
}

// Match pairs a full hash with its entry, as returned by Resolve.
type Match struct {
	Hash  string
	Entry Entry
}

// Index is the persistent hash index for one repository.
type Index struct {
	root    string
	logger  *slog.Logger
	entries map[string]Entry
}

// Open loads the index for the repository rooted at root. A missing or
// unreadable index file yields an empty index with a warning; Rebuild
// restores it from the note tree.
func Open(root string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Index{root: root, logger: logger, entries: make(map[string]Entry)}

	data, err := os.ReadFile(ix.filePath())
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("hash index unreadable, starting empty", slog.String("error", err.Error()))
		}
		return ix
	}
	if err := json.Unmarshal(data, &ix.entries); err != nil {
		logger.Warn("hash index corrupt, starting empty", slog.String("error", err.Error()))
		ix.entries = make(map[string]Entry)
	}
	return ix
}

func (ix *Index) filePath() string {
	return filepath.Join(ix.root, filepath.FromSlash(File))
}

func (ix *Index) save() error {
	if err := os.MkdirAll(filepath.Dir(ix.filePath()), 0o755); err != nil {
		return fmt.Errorf("hashindex: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(ix.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("hashindex: marshal: %w", err)
	}
	if err := os.WriteFile(ix.filePath(), data, 0o644); err != nil {
		return fmt.Errorf("hashindex: write: %w", err)
	}
	return nil
}

// GenerateHash draws a 6-hex-char hash from a random 128-bit source. On
// collision the hash is extended one character at a time up to 12 before a
// fresh source is drawn. Returns apperr.ErrExhausted after a bounded number
// of attempts.
func (ix *Index) GenerateHash() (string, error) {
	source := randomHex()
	length := minHashLen
	hash := source[:length]

	for attempts := 0; attempts < maxAttempts; attempts++ {
		if _, taken := ix.entries[hash]; !taken {
			return hash, nil
		}
		if length < maxHashLen {
			length++
		} else {
			source = randomHex()
			length = minHashLen
		}
		hash = source[:length]
	}
	return "", fmt.Errorf("hashindex: after %d attempts: %w", maxAttempts, apperr.ErrExhausted)
}

func randomHex() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Register inserts or overwrites an entry and persists the index.
func (ix *Index) Register(hash, path, code string) error {
	ix.entries[hash] = Entry{
		Path:        filepath.ToSlash(path),
		Code:        code,
		LastUpdated: time.Now(),
	}
	return ix.save()
}

// Resolve returns every entry whose hash starts with the given prefix.
// No match is apperr.ErrNotFound.
func (ix *Index) Resolve(partial string) ([]Match, error) {
	var out []Match
	for h, e := range ix.entries {
		if strings.HasPrefix(h, partial) {
			out = append(out, Match{Hash: h, Entry: e})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("hashindex: %q: %w", partial, apperr.ErrNotFound)
	}
	return out, nil
}

// ResolveOne resolves a prefix that must identify exactly one note. More
// than one match is apperr.ErrAmbiguous; the caller should ask for a longer
// prefix.
func (ix *Index) ResolveOne(partial string) (Match, error) {
	matches, err := ix.Resolve(partial)
	if err != nil {
		return Match{}, err
	}
	if len(matches) > 1 {
		return Match{}, fmt.Errorf("hashindex: %q matches %d entries: %w",
			partial, len(matches), apperr.ErrAmbiguous)
	}
	return matches[0], nil
}

// Get returns the entry for an exact hash.
func (ix *Index) Get(hash string) (Entry, bool) {
	e, ok := ix.entries[hash]
	return e, ok
}

// UpdatePath mutates an existing entry in place. An empty newCode keeps the
// stored code. Fails with apperr.ErrNotFound when the hash is absent.
func (ix *Index) UpdatePath(hash, newPath, newCode string) error {
	e, ok := ix.entries[hash]
	if !ok {
		return fmt.Errorf("hashindex: %q: %w", hash, apperr.ErrNotFound)
	}
	e.Path = filepath.ToSlash(newPath)
	if newCode != "" {
		e.Code = newCode
	}
	e.LastUpdated = time.Now()
	ix.entries[hash] = e
	return ix.save()
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Hashes returns every registered hash.
func (ix *Index) Hashes() []string {
	out := make([]string, 0, len(ix.entries))
	for h := range ix.entries {
		out = append(out, h)
	}
	return out
}

// Rebuild clears the index and rescans every note file in the tree,
// re-registering each by its stored hash and code. Files that fail to parse
// are skipped with a warning. This is the reconciliation operation that
// restores the cache invariant after manual edits or corruption.
func (ix *Index) Rebuild(store *storage.FS) (int, error) {
	ix.entries = make(map[string]Entry)
	count := 0

	err := store.WalkNotes("", func(rel string) error {
		data, err := store.Read(rel)
		if err != nil {
			ix.logger.Warn("rebuild: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}
		n, err := notefile.Parse(data)
		if err != nil {
			ix.logger.Warn("rebuild: parse failed", slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}
		ix.entries[n.Hash] = Entry{
			Path:        rel,
			Code:        n.Code,
			LastUpdated: time.Now(),
		}
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("hashindex: rebuild: %w", err)
	}
	if err := ix.save(); err != nil {
		return 0, err
	}
	ix.logger.Info("hash index rebuilt", slog.Int("notes", count))
	return count, nil
}
