// Command mf is the memoflow CLI: a note organizer with content-addressed
// identity, decimal taxonomy filing, and a git-backed version log.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func main() {
	repoFlag := &cli.StringFlag{
		Name:    "repo",
		Aliases: []string{"r"},
		Usage:   "Registered repository name or path (default: search upward from cwd)",
		Sources: cli.EnvVars("MEMOFLOW_REPO"),
	}

	cmd := &cli.Command{
		Name:  "mf",
		Usage: "Markdown note organizer with hash identity, decimal filing, and git history",
		Flags: []cli.Flag{repoFlag},
		Commands: []*cli.Command{
			cmdInit(),
			cmdNew(),
			cmdShow(),
			cmdList(),
			cmdMove(),
			cmdFinish(),
			cmdType(),
			cmdUpdate(),
			cmdSearch(),
			cmdWatch(),
			cmdTimeline(),
			cmdNextCode(),
			cmdRebuildIndex(),
			cmdMigratePrefix(),
			cmdRepo(),
			cmdTeardown(),
			cmdMCP(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
