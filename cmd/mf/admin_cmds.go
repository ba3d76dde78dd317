package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hankxu/memoflow/internal/mcpserver"
	"github.com/hankxu/memoflow/internal/notestore"
	"github.com/hankxu/memoflow/internal/search"
)

func cmdInit() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Initialize a directory as a memoflow repository",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Registry name (default: directory name)"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Re-run setup on an initialized repository"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			target := cmd.Args().First()
			if target == "" {
				target = "."
			}
			root, err := filepath.Abs(target)
			if err != nil {
				return err
			}
			name := cmd.String("name")
			if name == "" {
				name = filepath.Base(root)
			}

			logger := newLogger(slog.LevelInfo)
			reg, err := openRegistry(logger)
			if err != nil {
				return err
			}
			if err := notestore.Init(ctx, root, name, cmd.Bool("force"), reg, logger); err != nil {
				return err
			}
			fmt.Printf("initialized %s (registered as %q)\n", root, name)
			return nil
		},
	}
}

// openSearchDB opens the repository's search cache and brings it up to date
// before use.
func openSearchDB(a *app) (*search.DB, error) {
	db, err := search.Open(filepath.Join(a.root, filepath.FromSlash(search.File)))
	if err != nil {
		return nil, err
	}
	if err := search.Sync(db, a.fs, a.logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func cmdSearch() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search through note titles and bodies",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum results"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := cmd.Args().First()
			if query == "" {
				return fmt.Errorf("usage: mf search <query>")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			db, err := openSearchDB(a)
			if err != nil {
				return err
			}
			defer db.Close()

			results, err := db.Search(query, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%-12s  %-14s  %s\n", r.Hash, r.Code, r.Title)
				if r.Snippet != "" {
					fmt.Printf("    %s\n", r.Snippet)
				}
			}
			return nil
		},
	}
}

func cmdWatch() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the note tree and keep the search cache current",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			db, err := openSearchDB(a)
			if err != nil {
				return err
			}
			defer db.Close()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return search.Watch(gctx, db, a.fs, a.logger, nil)
			})
			return g.Wait()
		},
	}
}

func cmdTimeline() *cli.Command {
	return &cli.Command{
		Name:  "timeline",
		Usage: "Show recent note activity from the version log",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "since", Value: 7 * 24 * time.Hour, Usage: "How far back to look"},
			&cli.StringFlag{Name: "until", Usage: "Upper bound (YYYY-MM-DD)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			var until *time.Time
			if s := cmd.String("until"); s != "" {
				day, err := parseDay(s)
				if err != nil {
					return fmt.Errorf("invalid --until: %w", err)
				}
				end := day.Add(24 * time.Hour)
				until = &end
			}
			records, err := a.vlog.History(ctx, cmd.Duration("since"), until)
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Printf("%s  %-8s  %-10s  %-8s  %s\n",
					rec.Timestamp.Format("2006-01-02 15:04"),
					rec.Revision, rec.Type, rec.Scope, rec.Message)
			}
			return nil
		},
	}
}

func cmdRebuildIndex() *cli.Command {
	return &cli.Command{
		Name:  "rebuild-index",
		Usage: "Reconstruct the hash index from the note files",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			count, audit, err := a.store.RebuildIndex(ctx)
			if err != nil {
				return err
			}
			reportAudit(audit)
			fmt.Printf("indexed %d notes\n", count)
			return nil
		},
	}
}

func cmdMigratePrefix() *cli.Command {
	return &cli.Command{
		Name:      "migrate-prefix",
		Usage:     "Rewrite every note's location code to a new user prefix",
		ArgsUsage: "<old-prefix> <new-prefix>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("usage: mf migrate-prefix <old-prefix> <new-prefix>")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			count, err := a.store.MigratePrefix(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
			if err != nil {
				return err
			}
			fmt.Printf("migrated %d notes\n", count)
			return nil
		},
	}
}

func cmdRepo() *cli.Command {
	return &cli.Command{
		Name:  "repo",
		Usage: "Manage the repository registry",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List registered repositories",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					reg, err := openRegistry(newLogger(slog.LevelInfo))
					if err != nil {
						return err
					}
					for _, r := range reg.List() {
						fmt.Printf("%-20s  %s\n", r.Name, r.Path)
					}
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "Register a repository",
				ArgsUsage: "<name> <path>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 2 {
						return fmt.Errorf("usage: mf repo add <name> <path>")
					}
					reg, err := openRegistry(newLogger(slog.LevelInfo))
					if err != nil {
						return err
					}
					return reg.Add(cmd.Args().Get(0), cmd.Args().Get(1))
				},
			},
			{
				Name:      "rm",
				Usage:     "Unregister a repository by name",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().First()
					if name == "" {
						return fmt.Errorf("usage: mf repo rm <name>")
					}
					reg, err := openRegistry(newLogger(slog.LevelInfo))
					if err != nil {
						return err
					}
					removed, err := reg.RemoveByName(name)
					if err != nil {
						return err
					}
					if !removed {
						return fmt.Errorf("no repository named %q", name)
					}
					return nil
				},
			},
		},
	}
}

func cmdTeardown() *cli.Command {
	return &cli.Command{
		Name:  "teardown",
		Usage: "Remove all memoflow data from a repository",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Confirm the destructive removal"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			count, audit, err := a.store.Teardown(ctx, cmd.Bool("force"))
			if err != nil {
				return err
			}
			if count > 0 {
				reportAudit(audit)
				// Unregister the torn-down repository.
				if reg, regErr := openRegistry(a.logger); regErr == nil {
					_, _ = reg.RemoveByPath(a.root)
				}
			}
			fmt.Printf("removed %d entries\n", count)
			return nil
		},
	}
}

func cmdMCP() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve memoflow tools over MCP stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			db, err := openSearchDB(a)
			if err != nil {
				a.logger.Warn("search cache unavailable", "error", err.Error())
				db = nil
			} else {
				defer db.Close()
			}

			// MCP uses stdout for the protocol; keep logs on stderr only.
			srv := mcpserver.New(a.store, a.tax, db)
			return srv.ServeStdio()
		},
	}
}
