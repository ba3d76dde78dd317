package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hankxu/memoflow/internal/config"
	"github.com/hankxu/memoflow/internal/hashindex"
	"github.com/hankxu/memoflow/internal/notestore"
	"github.com/hankxu/memoflow/internal/registry"
	"github.com/hankxu/memoflow/internal/storage"
	"github.com/hankxu/memoflow/internal/taxonomy"
	"github.com/hankxu/memoflow/internal/versionlog"
)

// app bundles everything a command needs for one repository.
type app struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	fs     *storage.FS
	tax    *taxonomy.Engine
	index  *hashindex.Index
	vlog   *versionlog.Engine
	store  *notestore.Store
}

// openRegistry loads the user-level repository registry.
func openRegistry(logger *slog.Logger) (*registry.Registry, error) {
	file, err := registry.DefaultFile()
	if err != nil {
		return nil, err
	}
	return registry.Open(file, logger), nil
}

// resolveRoot determines the repository root for a command. The --repo flag
// takes a registered name or a path; without it the current directory and
// its parents are searched for a .mf directory.
func resolveRoot(cmd *cli.Command, logger *slog.Logger) (string, error) {
	if repo := cmd.String("repo"); repo != "" {
		reg, err := openRegistry(logger)
		if err != nil {
			return "", err
		}
		if r, ok := reg.ByName(repo); ok {
			return r.Path, nil
		}
		abs, err := filepath.Abs(repo)
		if err != nil {
			return "", err
		}
		return abs, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for cur := dir; ; {
		if info, err := os.Stat(filepath.Join(cur, ".mf")); err == nil && info.IsDir() {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return "", fmt.Errorf("not inside a memoflow repository (run 'mf init' or pass --repo)")
}

// openApp assembles the per-repository services.
func openApp(cmd *cli.Command) (*app, error) {
	bootLogger := newLogger(slog.LevelInfo)
	root, err := resolveRoot(cmd, bootLogger)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.SlogLevel())

	fs, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	tax := taxonomy.NewEngine(root, logger)
	index := hashindex.Open(root, logger)
	vlog := versionlog.New(root, time.Duration(cfg.Git.Timeout), logger)
	store := notestore.New(fs, tax, index, vlog, cfg, logger)

	return &app{
		root:   root,
		cfg:    cfg,
		logger: logger,
		fs:     fs,
		tax:    tax,
		index:  index,
		vlog:   vlog,
		store:  store,
	}, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
