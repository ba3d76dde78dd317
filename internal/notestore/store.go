// Package notestore orchestrates note CRUD: it consults the taxonomy for
// placement, performs the file mutation, updates the hash index, and asks
// the version log to commit the changed files as one unit.
//
// The on-disk notes are the source of truth. A failed commit after a
// successful file mutation leaves the store in the new state with only the
// audit trail lagging; every mutating operation therefore returns an Audit
// outcome so callers can distinguish "applied, audit failed" from full
// success instead of relying on logs.
package notestore

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/hankxu/memoflow/internal/apperr"
	"github.com/hankxu/memoflow/internal/config"
	"github.com/hankxu/memoflow/internal/hashindex"
	"github.com/hankxu/memoflow/internal/models"
	"github.com/hankxu/memoflow/internal/notefile"
	"github.com/hankxu/memoflow/internal/storage"
	"github.com/hankxu/memoflow/internal/taxonomy"
	"github.com/hankxu/memoflow/internal/versionlog"
)

// InboxDir is where newly captured notes land before classification.
const InboxDir = "00-Inbox"

const maxTitleLen = 50

var (
	unsafeRe   = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	collapseRe = regexp.MustCompile(`[-\s]+`)
)

// Audit reports how the version-log step of a mutation went. The mutation
// itself has already succeeded by the time an Audit is produced.
type Audit struct {
	Revision string
	Err      error
}

// Logged reports whether the mutation made it into the version log.
func (a Audit) Logged() bool { return a.Err == nil }

// Store is the CRUD orchestrator for one repository.
type Store struct {
	fs     *storage.FS
	tax    *taxonomy.Engine
	index  *hashindex.Index
	vlog   *versionlog.Engine
	cfg    *config.Config
	logger *slog.Logger
}

// New assembles a store from its collaborators.
func New(fs *storage.FS, tax *taxonomy.Engine, index *hashindex.Index, vlog *versionlog.Engine, cfg *config.Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{fs: fs, tax: tax, index: index, vlog: vlog, cfg: cfg, logger: logger}
}

// commit runs the version-log step of a mutation. Failures are logged and
// returned in the Audit, never propagated: the file mutation has already
// succeeded and the on-disk note is authoritative.
func (s *Store) commit(ctx context.Context, t versionlog.Type, scope, message string, files, removed []string) Audit {
	rev, err := s.vlog.Commit(ctx, t, scope, message, files, removed)
	if err != nil {
		s.logger.Warn("auto-commit failed",
			slog.String("scope", scope), slog.String("error", err.Error()))
		return Audit{Err: err}
	}
	s.vlog.Push(ctx, s.cfg.Git.Remote, s.cfg.Git.AutoPush)
	return Audit{Revision: rev}
}

// withIndexFile appends the hash index file to a commit list when it exists.
func (s *Store) withIndexFile(files []string) []string {
	if s.fs.Exists(hashindex.File) {
		return append(files, hashindex.File)
	}
	return files
}

// sanitizeTitle turns a title into a filename fragment: strip unsafe
// characters, collapse whitespace and dashes, cap the length. The cap
// counts runes so a multi-byte title is never cut mid-character.
func sanitizeTitle(title string) string {
	safe := unsafeRe.ReplaceAllString(title, "")
	safe = collapseRe.ReplaceAllString(safe, "-")
	safe = strings.Trim(safe, "-")
	if runes := []rune(safe); len(runes) > maxTitleLen {
		safe = string(runes[:maxTitleLen])
	}
	return safe
}

// Create captures a new note into the inbox with a freshly generated hash
// and a provisional location code, and commits it as feat(new).
func (s *Store) Create(ctx context.Context, kind, title, body string) (*models.Note, Audit, error) {
	if kind != "" && !models.ValidKind(kind) {
		return nil, Audit{}, fmt.Errorf("notestore: invalid kind %q", kind)
	}
	if strings.TrimSpace(title) == "" {
		return nil, Audit{}, fmt.Errorf("notestore: title is required")
	}

	hash, err := s.index.GenerateHash()
	if err != nil {
		return nil, Audit{}, err
	}

	inboxCount, err := s.fs.CountNotes(InboxDir)
	if err != nil {
		return nil, Audit{}, err
	}
	code, err := s.tax.ProvisionalCode(inboxCount + 1)
	if err != nil {
		return nil, Audit{}, err
	}

	n := &models.Note{
		Hash:      hash,
		Code:      code,
		Title:     title,
		Status:    models.StatusOpen,
		Kind:      kind,
		CreatedAt: time.Now(),
		Body:      body,
	}
	if err := n.Validate(); err != nil {
		return nil, Audit{}, fmt.Errorf("notestore: validate: %w", err)
	}

	// The hash keeps filenames unique even when sanitized titles collide.
	n.Path = path.Join(InboxDir, fmt.Sprintf("%s_%s.md", hash, sanitizeTitle(title)))

	data, err := notefile.Render(n)
	if err != nil {
		return nil, Audit{}, err
	}
	if err := s.fs.Write(n.Path, data); err != nil {
		return nil, Audit{}, err
	}
	if err := s.index.Register(hash, n.Path, code); err != nil {
		return nil, Audit{}, err
	}

	audit := s.commit(ctx, versionlog.TypeFeat, "new",
		fmt.Sprintf("capture %s", title), s.withIndexFile([]string{n.Path}), nil)
	return n, audit, nil
}

// Read resolves a full or partial hash and parses the note file. Not-found
// and ambiguous errors from the index are surfaced unchanged.
func (s *Store) Read(hashOrPrefix string) (*models.Note, error) {
	match, err := s.index.ResolveOne(hashOrPrefix)
	if err != nil {
		return nil, err
	}
	data, err := s.fs.Read(match.Entry.Path)
	if err != nil {
		return nil, err
	}
	n, err := notefile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("notestore: parse %s: %w", match.Entry.Path, err)
	}
	n.Path = match.Entry.Path
	return n, nil
}

// Move relocates a note to a new taxonomy position. expectedOldCode guards
// against stale callers: it must equal the note's current code. Both
// pre-condition failures (apperr.ErrPathMismatch, apperr.ErrInvalidPath)
// leave all state untouched. The addition and removal are committed as one
// refactor unit.
func (s *Store) Move(ctx context.Context, hashOrPrefix, expectedOldCode, newCode string) (string, Audit, error) {
	n, err := s.Read(hashOrPrefix)
	if err != nil {
		return "", Audit{}, err
	}
	if n.Code != expectedOldCode {
		return "", Audit{}, fmt.Errorf("notestore: expected %s, note is at %s: %w",
			expectedOldCode, n.Code, apperr.ErrPathMismatch)
	}
	if !s.tax.ValidateLocation(newCode) {
		return "", Audit{}, fmt.Errorf("notestore: %q: %w", newCode, apperr.ErrInvalidPath)
	}

	newDir, err := s.tax.DirectoryFor(newCode)
	if err != nil {
		return "", Audit{}, err
	}
	oldPath := n.Path
	newPath := path.Join(newDir, path.Base(oldPath))

	n.Code = newCode
	data, err := notefile.Render(n)
	if err != nil {
		return "", Audit{}, err
	}
	if err := s.fs.Write(newPath, data); err != nil {
		return "", Audit{}, err
	}
	// A reclassify within the same category keeps the same directory and
	// filename; the rewrite above is the whole move and there is nothing
	// to delete.
	var removed []string
	if newPath != oldPath {
		if err := s.fs.Delete(oldPath); err != nil {
			return "", Audit{}, err
		}
		removed = []string{oldPath}
	}
	if err := s.index.UpdatePath(n.Hash, newPath, newCode); err != nil {
		return "", Audit{}, err
	}

	audit := s.commit(ctx, versionlog.TypeRefactor, n.Hash,
		fmt.Sprintf("move from %s to %s", expectedOldCode, newCode),
		s.withIndexFile([]string{newPath}), removed)
	return newPath, audit, nil
}

// Patch is a partial update to a note's body and metadata. Nil fields are
// left unchanged; ClearDueDate removes the due date.
type Patch struct {
	Body         *string
	Title        *string
	Status       *string
	Kind         *string
	DueDate      *time.Time
	ClearDueDate bool
	Tags         []string // nil = unchanged
	// Message overrides the auto-derived commit message.
	Message string
}

func (p *Patch) describe() string {
	var parts []string
	if p.Body != nil {
		parts = append(parts, "update content")
	}
	if p.Title != nil {
		parts = append(parts, fmt.Sprintf("set title to %s", *p.Title))
	}
	if p.Status != nil {
		parts = append(parts, fmt.Sprintf("set status to %s", *p.Status))
	}
	if p.Kind != nil {
		parts = append(parts, fmt.Sprintf("set type to %s", *p.Kind))
	}
	if p.DueDate != nil {
		parts = append(parts, fmt.Sprintf("set due_date to %s", p.DueDate.Format("2006-01-02")))
	}
	if p.ClearDueDate {
		parts = append(parts, "remove due_date")
	}
	if p.Tags != nil {
		parts = append(parts, "set tags")
	}
	if len(parts) == 0 {
		return "update file"
	}
	return strings.Join(parts, ", ")
}

// Update applies a partial patch, rewrites the file, and commits as docs.
// The hash index is untouched: nothing a patch can change affects it.
func (s *Store) Update(ctx context.Context, hashOrPrefix string, patch Patch) (*models.Note, Audit, error) {
	n, err := s.Read(hashOrPrefix)
	if err != nil {
		return nil, Audit{}, err
	}

	if patch.Body != nil {
		n.Body = *patch.Body
	}
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Status != nil {
		n.Status = *patch.Status
	}
	if patch.Kind != nil {
		n.Kind = *patch.Kind
	}
	if patch.DueDate != nil {
		due := *patch.DueDate
		n.DueDate = &due
	}
	if patch.ClearDueDate {
		n.DueDate = nil
	}
	if patch.Tags != nil {
		n.Tags = patch.Tags
	}
	if err := n.Validate(); err != nil {
		return nil, Audit{}, fmt.Errorf("notestore: validate: %w", err)
	}

	data, err := notefile.Render(n)
	if err != nil {
		return nil, Audit{}, err
	}
	if err := s.fs.Write(n.Path, data); err != nil {
		return nil, Audit{}, err
	}

	message := patch.Message
	if message == "" {
		message = patch.describe()
	}
	audit := s.commit(ctx, versionlog.TypeDocs, n.Hash, message, []string{n.Path}, nil)
	return n, audit, nil
}

// Filter selects notes in Query. Zero values match everything. Kind may be
// models.KindUntyped to select notes without a kind.
type Filter struct {
	Status string
	Kind   string
	DueOn  *time.Time
}

func (f Filter) matches(n *models.Note) bool {
	if f.Status != "" && n.Status != f.Status {
		return false
	}
	switch f.Kind {
	case "":
	case models.KindUntyped:
		if n.Kind != "" {
			return false
		}
	default:
		if n.Kind != f.Kind {
			return false
		}
	}
	if f.DueOn != nil {
		if n.DueDate == nil {
			return false
		}
		y1, m1, d1 := f.DueOn.Date()
		y2, m2, d2 := n.DueDate.Date()
		if y1 != y2 || m1 != m2 || d1 != d2 {
			return false
		}
	}
	return true
}

// Query scans every note file under the repository root and returns the
// ones matching the filter. This is deliberately a full-tree scan, not an
// index lookup: the index caches only hash, path, and code, and the notes
// themselves are authoritative for the filterable fields. Files that fail
// to parse are skipped with a log line, never fatal to the scan.
func (s *Store) Query(filter Filter) ([]*models.Note, error) {
	var out []*models.Note
	err := s.fs.WalkNotes("", func(rel string) error {
		data, err := s.fs.Read(rel)
		if err != nil {
			s.logger.Debug("query: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}
		n, err := notefile.Parse(data)
		if err != nil {
			s.logger.Debug("query: parse failed", slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}
		n.Path = rel
		if filter.matches(n) {
			out = append(out, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Finish marks a note done, committed as feat (task completion). Returns
// false without mutating anything when the note is already done.
func (s *Store) Finish(ctx context.Context, hashOrPrefix string) (bool, Audit, error) {
	n, err := s.Read(hashOrPrefix)
	if err != nil {
		return false, Audit{}, err
	}
	if n.Status == models.StatusDone {
		return false, Audit{}, nil
	}

	n.Status = models.StatusDone
	data, err := notefile.Render(n)
	if err != nil {
		return false, Audit{}, err
	}
	if err := s.fs.Write(n.Path, data); err != nil {
		return false, Audit{}, err
	}

	audit := s.commit(ctx, versionlog.TypeFeat, n.Hash, "mark as done", []string{n.Path}, nil)
	return true, audit, nil
}

// Retype changes a note's kind, committed as docs with an auto message.
// Returns false without mutating anything when the kind is unchanged.
func (s *Store) Retype(ctx context.Context, hashOrPrefix, newKind string) (bool, Audit, error) {
	if !models.ValidKind(newKind) {
		return false, Audit{}, fmt.Errorf("notestore: invalid kind %q", newKind)
	}
	n, err := s.Read(hashOrPrefix)
	if err != nil {
		return false, Audit{}, err
	}
	if n.Kind == newKind {
		return false, Audit{}, nil
	}

	kind := newKind
	_, audit, err := s.Update(ctx, n.Hash, Patch{
		Kind:    &kind,
		Message: fmt.Sprintf("change type from %s to %s", n.KindLabel(), newKind),
	})
	if err != nil {
		return false, Audit{}, err
	}
	return true, audit, nil
}

// RebuildIndex reconstructs the hash index from the note tree and commits
// the refreshed index file as chore(index).
func (s *Store) RebuildIndex(ctx context.Context) (int, Audit, error) {
	count, err := s.index.Rebuild(s.fs)
	if err != nil {
		return 0, Audit{}, err
	}
	audit := s.commit(ctx, versionlog.TypeChore, "index",
		fmt.Sprintf("rebuild index with %d files", count), []string{hashindex.File}, nil)
	return count, audit, nil
}
