package versionlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hankxu/memoflow/internal/testutil"
)

func TestParseSubject(t *testing.T) {
	ts := time.Now()
	cases := []struct {
		subject string
		typ     Type
		scope   string
		message string
	}{
		{"feat(new): capture Weekly sync", TypeFeat, "new", "capture Weekly sync"},
		{"refactor(a1b2c3): move from HANK-00.01 to HANK-10.001", TypeRefactor, "a1b2c3", "move from HANK-00.01 to HANK-10.001"},
		{"docs(a1b2c3): set status to done", TypeDocs, "a1b2c3", "set status to done"},
		{"chore(index): rebuild index with 3 files", TypeChore, "index", "rebuild index with 3 files"},
		// Anything outside the grammar falls back to chore(unknown).
		{"Merge branch 'main'", TypeChore, "unknown", "Merge branch 'main'"},
		{"fix typo", TypeChore, "unknown", "fix typo"},
	}
	for _, c := range cases {
		rec := parseSubject(c.subject, "abc1234", ts, "tester")
		if rec.Type != c.typ || rec.Scope != c.scope || rec.Message != c.message {
			t.Errorf("parseSubject(%q) = %+v", c.subject, rec)
		}
		if rec.Revision != "abc1234" || rec.Author != "tester" {
			t.Errorf("metadata lost: %+v", rec)
		}
	}
}

func TestCommitAndHistory(t *testing.T) {
	root := testutil.TestGitRepo(t)
	e := New(root, 10*time.Second, testutil.Logger())
	ctx := context.Background()

	if err := e.EnsureRepository(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	write := func(rel, content string) {
		if err := os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.md", "note a")

	rev, err := e.Commit(ctx, TypeFeat, "new", "capture a", []string{"a.md"}, nil)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if rev == "" {
		t.Error("empty revision")
	}

	// A move: new file staged, old one removed in the same commit.
	write("b.md", "note a moved")
	if err := os.Remove(filepath.Join(root, "a.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Commit(ctx, TypeRefactor, "abc123", "move a to b", []string{"b.md"}, []string{"a.md"}); err != nil {
		t.Fatalf("move commit: %v", err)
	}

	records, err := e.History(ctx, time.Hour, nil)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) < 2 {
		t.Fatalf("len(records) = %d, want >= 2", len(records))
	}
	// Newest first.
	if records[0].Type != TypeRefactor || records[0].Scope != "abc123" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[1].Type != TypeFeat || records[1].Message != "capture a" {
		t.Errorf("records[1] = %+v", records[1])
	}
}

func TestCommit_MissingFileSkipped(t *testing.T) {
	root := testutil.TestGitRepo(t)
	e := New(root, 10*time.Second, testutil.Logger())
	ctx := context.Background()

	// Only missing files listed: nothing stages, commit refuses.
	if _, err := e.Commit(ctx, TypeFeat, "new", "nothing", []string{"ghost.md"}, nil); err == nil {
		t.Error("expected error with nothing staged")
	}

	// A missing file alongside a real one is skipped, not fatal.
	if err := os.WriteFile(filepath.Join(root, "real.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Commit(ctx, TypeFeat, "new", "partial", []string{"ghost.md", "real.md"}, nil); err != nil {
		t.Errorf("commit with one missing file: %v", err)
	}
}

func TestEnsureRepository_Idempotent(t *testing.T) {
	root := testutil.TestGitRepo(t)
	e := New(root, 10*time.Second, testutil.Logger())
	ctx := context.Background()

	if err := e.EnsureRepository(ctx); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := e.EnsureRepository(ctx); err != nil {
		t.Fatalf("second: %v", err)
	}
}

func TestPush_BestEffort(t *testing.T) {
	root := testutil.TestGitRepo(t)
	e := New(root, 10*time.Second, testutil.Logger())
	// No remote configured; must not panic or block.
	e.Push(context.Background(), "origin", true)
	e.Push(context.Background(), "origin", false)
}
