package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hankxu/memoflow/internal/notestore"
)

// reportAudit surfaces a mutation whose version-log step failed. The
// mutation itself has succeeded; only the history entry is missing.
func reportAudit(a notestore.Audit) {
	if !a.Logged() {
		fmt.Fprintf(os.Stderr, "warning: change applied but not recorded in version log: %v\n", a.Err)
	}
}

func readAll(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	return string(b), err
}

func parseDay(s string) (time.Time, error) {
	if s == "today" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	}
	return time.Parse("2006-01-02", s)
}

func cmdNew() *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Capture a new note into the inbox",
		ArgsUsage: "<title>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "meeting, note, task, or email"},
			&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "Markdown body"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			title := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if title == "" {
				return fmt.Errorf("usage: mf new <title>")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			n, audit, err := a.store.Create(ctx, cmd.String("type"), title, cmd.String("body"))
			if err != nil {
				return err
			}
			reportAudit(audit)
			fmt.Printf("%s  %s  %s\n", n.Hash, n.Code, n.Path)
			return nil
		},
	}
}

func cmdShow() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a note by hash or unique hash prefix",
		ArgsUsage: "<hash>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			hash := cmd.Args().First()
			if hash == "" {
				return fmt.Errorf("usage: mf show <hash>")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			n, err := a.store.Read(hash)
			if err != nil {
				return err
			}
			fmt.Printf("hash:   %s\n", n.Hash)
			fmt.Printf("id:     %s\n", n.Code)
			fmt.Printf("title:  %s\n", n.Title)
			fmt.Printf("status: %s\n", n.Status)
			fmt.Printf("type:   %s\n", n.KindLabel())
			if n.DueDate != nil {
				fmt.Printf("due:    %s\n", n.DueDate.Format("2006-01-02"))
			}
			if len(n.Tags) > 0 {
				fmt.Printf("tags:   %s\n", strings.Join(n.Tags, ", "))
			}
			fmt.Printf("path:   %s\n", n.Path)
			if n.Body != "" {
				fmt.Printf("\n%s\n", n.Body)
			}
			return nil
		},
	}
}

func cmdList() *cli.Command {
	return &cli.Command{
		Name:    "ls",
		Aliases: []string{"list"},
		Usage:   "List notes, optionally filtered",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "open, done, or archived"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "meeting, note, task, email, or untyped"},
			&cli.StringFlag{Name: "due", Usage: "Due date filter (YYYY-MM-DD or 'today')"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			filter := notestore.Filter{
				Status: cmd.String("status"),
				Kind:   cmd.String("type"),
			}
			if due := cmd.String("due"); due != "" {
				day, err := parseDay(due)
				if err != nil {
					return fmt.Errorf("invalid --due: %w", err)
				}
				filter.DueOn = &day
			}
			notes, err := a.store.Query(filter)
			if err != nil {
				return err
			}
			for _, n := range notes {
				prefix := n.Hash
				if len(prefix) > 6 {
					prefix = prefix[:6]
				}
				fmt.Printf("%-12s  %-14s  %-8s  %-8s  %s\n",
					prefix, n.Code, n.Status, n.KindLabel(), n.Title)
			}
			return nil
		},
	}
}

func cmdMove() *cli.Command {
	return &cli.Command{
		Name:      "mv",
		Usage:     "Move a note to a new location code",
		ArgsUsage: "<hash> <from-code> <to-code>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 3 {
				return fmt.Errorf("usage: mf mv <hash> <from-code> <to-code>")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			newPath, audit, err := a.store.Move(ctx,
				cmd.Args().Get(0), cmd.Args().Get(1), cmd.Args().Get(2))
			if err != nil {
				return err
			}
			reportAudit(audit)
			fmt.Printf("moved to %s\n", newPath)
			return nil
		},
	}
}

func cmdFinish() *cli.Command {
	return &cli.Command{
		Name:      "finish",
		Aliases:   []string{"done"},
		Usage:     "Mark a note as done",
		ArgsUsage: "<hash>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			hash := cmd.Args().First()
			if hash == "" {
				return fmt.Errorf("usage: mf finish <hash>")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			changed, audit, err := a.store.Finish(ctx, hash)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Println("already done")
				return nil
			}
			reportAudit(audit)
			fmt.Println("done")
			return nil
		},
	}
}

func cmdType() *cli.Command {
	return &cli.Command{
		Name:      "type",
		Usage:     "Change a note's type",
		ArgsUsage: "<hash> <type>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("usage: mf type <hash> <type>")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			changed, audit, err := a.store.Retype(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
			if err != nil {
				return err
			}
			if !changed {
				fmt.Println("type unchanged")
				return nil
			}
			reportAudit(audit)
			fmt.Println("type updated")
			return nil
		},
	}
}

func cmdUpdate() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update a note's body or metadata",
		ArgsUsage: "<hash>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "New title"},
			&cli.StringFlag{Name: "status", Usage: "open, done, or archived"},
			&cli.StringFlag{Name: "body", Usage: "Replace the body ('-' reads stdin)"},
			&cli.StringFlag{Name: "due", Usage: "Due date (YYYY-MM-DD)"},
			&cli.BoolFlag{Name: "clear-due", Usage: "Remove the due date"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags (replaces existing)"},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Version log message"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			hash := cmd.Args().First()
			if hash == "" {
				return fmt.Errorf("usage: mf update <hash>")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}

			patch := notestore.Patch{
				ClearDueDate: cmd.Bool("clear-due"),
				Message:      cmd.String("message"),
			}
			if cmd.IsSet("title") {
				v := cmd.String("title")
				patch.Title = &v
			}
			if cmd.IsSet("status") {
				v := cmd.String("status")
				patch.Status = &v
			}
			if cmd.IsSet("body") {
				v := cmd.String("body")
				if v == "-" {
					data, err := readAll(os.Stdin)
					if err != nil {
						return err
					}
					v = data
				}
				patch.Body = &v
			}
			if cmd.IsSet("due") {
				day, err := parseDay(cmd.String("due"))
				if err != nil {
					return fmt.Errorf("invalid --due: %w", err)
				}
				patch.DueDate = &day
			}
			if cmd.IsSet("tags") {
				var tags []string
				for _, t := range strings.Split(cmd.String("tags"), ",") {
					if t = strings.TrimSpace(t); t != "" {
						tags = append(tags, t)
					}
				}
				if tags == nil {
					tags = []string{}
				}
				patch.Tags = tags
			}

			n, audit, err := a.store.Update(ctx, hash, patch)
			if err != nil {
				return err
			}
			reportAudit(audit)
			fmt.Printf("updated %s\n", n.Hash)
			return nil
		},
	}
}

func cmdNextCode() *cli.Command {
	return &cli.Command{
		Name:      "next-code",
		Usage:     "Suggest the lowest free location code in a category",
		ArgsUsage: "<area> <category>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("usage: mf next-code <area> <category>")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			var area, category int
			if _, err := fmt.Sscanf(cmd.Args().Get(0), "%d", &area); err != nil {
				return fmt.Errorf("invalid area %q", cmd.Args().Get(0))
			}
			if _, err := fmt.Sscanf(cmd.Args().Get(1), "%d", &category); err != nil {
				return fmt.Errorf("invalid category %q", cmd.Args().Get(1))
			}
			code, ok, err := a.tax.NextFreeCode(area, category)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no free slot in category %d of area %d", category, area)
			}
			fmt.Println(code)
			return nil
		},
	}
}
