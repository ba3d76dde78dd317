package notestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hankxu/memoflow/internal/apperr"
	"github.com/hankxu/memoflow/internal/config"
	"github.com/hankxu/memoflow/internal/hashindex"
	"github.com/hankxu/memoflow/internal/registry"
	"github.com/hankxu/memoflow/internal/storage"
	"github.com/hankxu/memoflow/internal/taxonomy"
	"github.com/hankxu/memoflow/internal/versionlog"
)

// Init prepares a directory as a memoflow repository: the .mf state
// directory, a default config and schema (existing valid files are kept),
// the inbox, an empty hash index, and a git repository with an initial
// commit. The repository is then registered under name. A directory that
// already holds a .mf directory fails with apperr.ErrAlreadyInitialized
// unless force is set; force re-runs the setup but never discards notes.
func Init(ctx context.Context, root, name string, force bool, reg *registry.Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mfDir := filepath.Join(root, ".mf")
	if _, err := os.Stat(mfDir); err == nil && !force {
		return fmt.Errorf("notestore: %s: %w", root, apperr.ErrAlreadyInitialized)
	}

	for _, dir := range []string{mfDir, filepath.Join(root, InboxDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("notestore: init: %w", err)
		}
	}

	// Config: write defaults only when nothing is there yet.
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(config.File))); os.IsNotExist(err) {
		if err := config.Save(root, config.Default()); err != nil {
			return err
		}
	}

	// Schema: Load writes the default when missing and keeps a valid
	// existing one. An unparsable schema is only replaced under force.
	tax := taxonomy.NewEngine(root, logger)
	if _, err := tax.Load(); err != nil {
		if !force {
			return err
		}
		logger.Warn("replacing unparsable schema with default", slog.String("error", err.Error()))
		if err := tax.Save(taxonomy.Default()); err != nil {
			return err
		}
	}

	// Index: rebuild from whatever notes already exist. On a fresh
	// directory this writes an empty index file.
	fs, err := storage.NewFS(root)
	if err != nil {
		return err
	}
	ix := hashindex.Open(root, logger)
	if _, err := ix.Rebuild(fs); err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	vlog := versionlog.New(root, time.Duration(cfg.Git.Timeout), logger)
	if err := vlog.EnsureRepository(ctx); err != nil {
		return err
	}

	if reg != nil {
		if err := reg.Add(name, root); err != nil {
			return err
		}
	}

	logger.Info("repository initialized", slog.String("root", root), slog.String("name", name))
	return nil
}
