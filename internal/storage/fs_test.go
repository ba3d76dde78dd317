package storage

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func newFS(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestWriteRead(t *testing.T) {
	fs := newFS(t)
	if err := fs.Write("00-Inbox/note.md", []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := fs.Read("00-Inbox/note.md")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("data = %q", data)
	}

	// No temp files left behind by the atomic write.
	entries, err := os.ReadDir(filepath.Join(fs.Root(), "00-Inbox"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestSafePath_RejectsTraversal(t *testing.T) {
	fs := newFS(t)
	for _, p := range []string{"../outside.md", "a/../../escape.md", "/etc/passwd"} {
		if err := fs.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) accepted", p)
		}
		if _, err := fs.Read(p); err == nil {
			t.Errorf("Read(%q) accepted", p)
		}
	}
}

func TestDelete(t *testing.T) {
	fs := newFS(t)
	if err := fs.Write("a.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Delete("a.md"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if fs.Exists("a.md") {
		t.Error("file still exists")
	}
}

func TestRemoveAll_RefusesRoot(t *testing.T) {
	fs := newFS(t)
	for _, p := range []string{"", ".", "/"} {
		if err := fs.RemoveAll(p); err == nil {
			t.Errorf("RemoveAll(%q) accepted", p)
		}
	}
}

func TestWalkNotes(t *testing.T) {
	fs := newFS(t)
	files := []string{
		"00-Inbox/a.md",
		"10-20/10.001-10.099/b.md",
		"10-20/10.001-10.099/c.md",
	}
	for _, f := range files {
		if err := fs.Write(f, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	// Non-notes and dot directories are skipped.
	if err := fs.Write("10-20/notes.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Write(".mf/hash_index.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}

	var got []string
	err := fs.WalkNotes("", func(rel string) error {
		got = append(got, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	sort.Strings(got)
	if len(got) != 3 {
		t.Fatalf("got = %v", got)
	}
	for i, want := range files {
		if got[i] != want {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want)
		}
	}
}

func TestCountNotes(t *testing.T) {
	fs := newFS(t)
	if n, err := fs.CountNotes("00-Inbox"); err != nil || n != 0 {
		t.Fatalf("empty: n = %d, err = %v", n, err)
	}
	for _, f := range []string{"00-Inbox/a.md", "00-Inbox/b.md", "00-Inbox/sub/c.md"} {
		if err := fs.Write(f, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	// Only direct children count.
	n, err := fs.CountNotes("00-Inbox")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
}
