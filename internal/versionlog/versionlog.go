// Package versionlog wraps the git CLI to give every note mutation an
// auditable commit with a structured message, and to parse that history
// back. Commits follow the conventional grammar "type(scope): message".
package versionlog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Type is a commit type. The enumeration is closed: feat for capture and
// completion, refactor for relocation, docs for content or metadata edits,
// chore for maintenance.
type Type string

const (
	TypeFeat     Type = "feat"
	TypeRefactor Type = "refactor"
	TypeDocs     Type = "docs"
	TypeChore    Type = "chore"
)

var messageRe = regexp.MustCompile(`^(\w+)\(([^)]+)\):\s*(.+)$`)

// Record is one parsed history entry.
type Record struct {
	Type      Type
	Scope     string
	Message   string
	Revision  string // abbreviated commit id
	Timestamp time.Time
	Author    string
}

// Engine runs git against one repository. Every invocation is bounded by
// the configured timeout.
type Engine struct {
	root    string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an engine for the repository rooted at root.
func New(root string, timeout time.Duration, logger *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{root: root, timeout: timeout, logger: logger}
}

// run executes a git command in the repo and returns trimmed stdout.
func (e *Engine) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = e.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("versionlog: git %s: timeout after %v", args[0], e.timeout)
		}
		return "", fmt.Errorf("versionlog: git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// EnsureRepository opens the repository or initializes a fresh one with an
// empty initial commit. A failing initial commit (typically no identity
// configured) is logged and swallowed; startup must not depend on it.
func (e *Engine) EnsureRepository(ctx context.Context) error {
	if _, err := e.run(ctx, "rev-parse", "--git-dir"); err == nil {
		return nil
	}

	e.logger.Info("initializing git repository", slog.String("root", e.root))
	if _, err := e.run(ctx, "init"); err != nil {
		return err
	}
	if _, err := e.run(ctx, "commit", "--allow-empty",
		"-m", "chore(init): initialize memoflow repository"); err != nil {
		e.logger.Warn("could not create initial commit", slog.String("error", err.Error()))
	}
	return nil
}

// Commit stages exactly the given repo-relative files (additions and
// removals) and commits them as one unit with the message
// "type(scope): message". Listed files that no longer exist on disk are
// skipped with a warning rather than failing the commit. Returns the new
// revision id.
func (e *Engine) Commit(ctx context.Context, t Type, scope, message string, files, removed []string) (string, error) {
	staged := 0
	for _, f := range files {
		abs := filepath.Join(e.root, filepath.FromSlash(f))
		if _, err := os.Stat(abs); err != nil {
			e.logger.Warn("commit: file missing, skipping", slog.String("path", f))
			continue
		}
		if _, err := e.run(ctx, "add", "--", filepath.FromSlash(f)); err != nil {
			return "", err
		}
		staged++
	}
	for _, f := range removed {
		// The worktree file is already gone; drop it from the index so the
		// deletion is part of this commit.
		if _, err := e.run(ctx, "rm", "--cached", "--ignore-unmatch", "--", filepath.FromSlash(f)); err != nil {
			return "", err
		}
		staged++
	}
	if staged == 0 {
		return "", fmt.Errorf("versionlog: nothing to stage for %s(%s)", t, scope)
	}

	full := fmt.Sprintf("%s(%s): %s", t, scope, message)
	if _, err := e.run(ctx, "commit", "-m", full); err != nil {
		return "", err
	}
	rev, err := e.run(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	e.logger.Info("committed", slog.String("message", full), slog.String("revision", rev))
	return rev, nil
}

// History returns commits from the given window, newest first. Messages are
// parsed against the conventional grammar; non-conforming ones fall back to
// chore(unknown) with the raw subject preserved.
func (e *Engine) History(ctx context.Context, since time.Duration, until *time.Time) ([]Record, error) {
	args := []string{"log", "--pretty=format:%h%x09%ct%x09%an%x09%s"}
	if since > 0 {
		args = append(args, fmt.Sprintf("--since=%d seconds ago", int(since.Seconds())))
	}
	out, err := e.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var records []Record
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) != 4 {
			continue
		}
		epoch, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		ts := time.Unix(epoch, 0)
		if until != nil && ts.After(*until) {
			continue
		}
		records = append(records, parseSubject(parts[3], parts[0], ts, parts[2]))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

func parseSubject(subject, revision string, ts time.Time, author string) Record {
	if m := messageRe.FindStringSubmatch(subject); m != nil {
		return Record{
			Type:      Type(m[1]),
			Scope:     m[2],
			Message:   m[3],
			Revision:  revision,
			Timestamp: ts,
			Author:    author,
		}
	}
	return Record{
		Type:      TypeChore,
		Scope:     "unknown",
		Message:   subject,
		Revision:  revision,
		Timestamp: ts,
		Author:    author,
	}
}

// Push pushes to the named remote when enabled. Push is best-effort by
// contract: failures are logged and swallowed and must never block a local
// mutation.
func (e *Engine) Push(ctx context.Context, remote string, enabled bool) {
	if !enabled {
		return
	}
	if _, err := e.run(ctx, "push", remote); err != nil {
		e.logger.Warn("push failed", slog.String("remote", remote), slog.String("error", err.Error()))
		return
	}
	e.logger.Info("pushed", slog.String("remote", remote))
}
