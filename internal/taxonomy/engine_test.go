package taxonomy

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hankxu/memoflow/internal/models"
	"github.com/hankxu/memoflow/internal/notefile"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngine_LoadWritesDefault(t *testing.T) {
	root := t.TempDir()
	e := NewEngine(root, testLogger())

	s, err := e.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Prefix == "" || len(s.Areas) == 0 {
		t.Fatalf("default schema incomplete: %+v", s)
	}
	if _, err := os.Stat(filepath.Join(root, SchemaFile)); err != nil {
		t.Errorf("schema file not written: %v", err)
	}
}

func TestEngine_LoadKeepsExisting(t *testing.T) {
	root := t.TempDir()
	custom := "user_prefix: ZOE\nareas:\n  - id: 10\n    name: Work\n    categories:\n      - id: 1\n        name: Main\n        range: [10.01, 10.99]\n"
	if err := os.WriteFile(filepath.Join(root, SchemaFile), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(root, testLogger())
	s, err := e.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Prefix != "ZOE" {
		t.Errorf("prefix = %q, want ZOE", s.Prefix)
	}
}

func TestEngine_LoadRejectsCorrupt(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, SchemaFile), []byte("{{{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := NewEngine(root, testLogger())
	if _, err := e.Load(); err == nil {
		t.Error("expected error for corrupt schema")
	}
}

func TestEngine_NextFreeCodeScansNotes(t *testing.T) {
	root := t.TempDir()
	e := NewEngine(root, testLogger())
	if _, err := e.Load(); err != nil {
		t.Fatal(err)
	}

	// Occupy the first slot of the default Projects/Planning category.
	dir := filepath.Join(root, "10-20", "10.001-10.099")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := notefile.Render(&models.Note{
		Hash:      "abc123",
		Code:      "HANK-10.001",
		Title:     "occupied",
		Status:    models.StatusOpen,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "abc123_occupied.md"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	code, ok, err := e.NextFreeCode(10, 1)
	if err != nil {
		t.Fatalf("next free: %v", err)
	}
	if !ok || code != "HANK-10.002" {
		t.Errorf("code = %q ok = %v, want HANK-10.002", code, ok)
	}
}

func TestEngine_NextFreeCodeOverlappingCategories(t *testing.T) {
	root := t.TempDir()
	schema := "user_prefix: ZOE\nareas:\n  - id: 10\n    name: Work\n    categories:\n      - id: 1\n        name: Front\n        range: [10.01, 10.50]\n      - id: 2\n        name: Back\n        range: [10.40, 10.99]\n"
	if err := os.WriteFile(filepath.Join(root, SchemaFile), []byte(schema), 0o644); err != nil {
		t.Fatal(err)
	}
	e := NewEngine(root, testLogger())
	if _, err := e.Load(); err != nil {
		t.Fatal(err)
	}

	// 10.40 belongs to both ranges; the filing rules put it in the first
	// declared category's directory. Allocation for the second category
	// still has to see it.
	dir := filepath.Join(root, "10-20", "10.01-10.50")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := notefile.Render(&models.Note{
		Hash:      "def456",
		Code:      "ZOE-10.40",
		Title:     "shared slot",
		Status:    models.StatusOpen,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "def456_shared-slot.md"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	code, ok, err := e.NextFreeCode(10, 2)
	if err != nil {
		t.Fatalf("next free: %v", err)
	}
	if !ok || code != "ZOE-10.41" {
		t.Errorf("code = %q ok = %v, want ZOE-10.41", code, ok)
	}
}

func TestEngine_NextFreeCodeEmptyCategory(t *testing.T) {
	root := t.TempDir()
	e := NewEngine(root, testLogger())
	if _, err := e.Load(); err != nil {
		t.Fatal(err)
	}
	code, ok, err := e.NextFreeCode(10, 1)
	if err != nil {
		t.Fatalf("next free: %v", err)
	}
	if !ok || code != "HANK-10.001" {
		t.Errorf("code = %q ok = %v, want HANK-10.001", code, ok)
	}
}
