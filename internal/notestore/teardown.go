package notestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hankxu/memoflow/internal/taxonomy"
	"github.com/hankxu/memoflow/internal/versionlog"
)

// Teardown removes all memoflow state from the repository: the .mf
// directory, the schema definition, the inbox, and every area directory.
// It refuses to run without force, and commits the removals as one chore
// unit. Returns the number of files and directories removed.
func (s *Store) Teardown(ctx context.Context, force bool) (int, Audit, error) {
	targets, err := s.teardownTargets()
	if err != nil {
		return 0, Audit{}, err
	}
	if len(targets) == 0 {
		s.logger.Info("nothing to remove")
		return 0, Audit{}, nil
	}
	if !force {
		return 0, Audit{}, fmt.Errorf("notestore: teardown is destructive, pass force to confirm")
	}

	// Collect the individual files first so the commit can record their
	// deletion after the directories are gone.
	var removedFiles []string
	for _, target := range targets {
		abs := filepath.Join(s.fs.Root(), filepath.FromSlash(target))
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			removedFiles = append(removedFiles, target)
			continue
		}
		_ = filepath.WalkDir(abs, func(p string, d os.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() {
				return nil
			}
			if rel, err := s.fs.Rel(p); err == nil {
				removedFiles = append(removedFiles, rel)
			}
			return nil
		})
	}

	deleted := 0
	for _, target := range targets {
		if err := s.fs.RemoveAll(target); err != nil {
			return deleted, Audit{}, err
		}
		deleted++
		s.logger.Info("removed", slog.String("path", target))
	}

	audit := s.commit(ctx, versionlog.TypeChore, "cleanup",
		"remove memoflow repo data", nil, removedFiles)
	return deleted, audit, nil
}

// teardownTargets lists the repo-relative paths Teardown would remove:
// .mf/, schema.yaml, the inbox, and every "{area}-{area+10}" directory.
func (s *Store) teardownTargets() ([]string, error) {
	var targets []string

	for _, known := range []string{".mf", taxonomy.SchemaFile, InboxDir} {
		if s.fs.Exists(known) {
			targets = append(targets, known)
		}
	}

	entries, err := os.ReadDir(s.fs.Root())
	if err != nil {
		return nil, fmt.Errorf("notestore: list root: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || !isAreaDir(entry.Name()) {
			continue
		}
		targets = append(targets, path.Clean(entry.Name()))
	}
	return targets, nil
}

// isAreaDir matches the "{low}-{high}" area directory convention.
func isAreaDir(name string) bool {
	parts := strings.Split(name, "-")
	if len(parts) != 2 {
		return false
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return false
		}
	}
	return true
}
