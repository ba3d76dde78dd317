// Package testutil provides shared test helpers for setting up repositories
// and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"testing"

	"github.com/hankxu/memoflow/internal/search"
	"github.com/hankxu/memoflow/internal/storage"
	"github.com/hankxu/memoflow/internal/taxonomy"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestRepo creates a temporary repository directory with the default schema
// written out and returns its root with a storage handle.
func TestRepo(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	tax := taxonomy.NewEngine(root, Logger())
	if _, err := tax.Load(); err != nil {
		t.Fatal(err)
	}
	return root, fs
}

// TestGitRepo creates a temporary directory initialized as a git repository
// with a throwaway identity, so commit operations work in CI.
func TestGitRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Skipf("git unavailable: %v: %s", err, out)
		}
	}
	return root
}

// TestDB creates a temporary search database that is cleaned up with the
// test.
func TestDB(t *testing.T) *search.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "memoflow-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := search.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
