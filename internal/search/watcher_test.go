package search

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hankxu/memoflow/internal/storage"
)

func watcherEnv(t *testing.T) (string, *storage.FS, *DB) {
	t.Helper()
	root := t.TempDir()
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, fs, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func cached(db *DB, path string) bool {
	cs, _ := db.Checksums()
	_, ok := cs[path]
	return ok
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	_, fs, db := watcherEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, db, fs, testLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	writeNote(t, fs, "new.md", "aaa111", "New", "fresh")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return cached(db, "new.md")
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new.md" || e == "updated:new.md" {
				return true
			}
		}
		return false
	}, "expected callback for new.md")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root, fs, db := watcherEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, fs, testLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	if err := os.MkdirAll(filepath.Join(root, "10-20"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	writeNote(t, fs, "10-20/deep.md", "bbb222", "Deep", "nested")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return cached(db, "10-20/deep.md")
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemoves(t *testing.T) {
	root, fs, db := watcherEnv(t)
	writeNote(t, fs, "del.md", "ccc333", "Doomed", "x")
	if err := Sync(db, fs, testLogger()); err != nil {
		t.Fatal(err)
	}
	if !cached(db, "del.md") {
		t.Fatal("precondition: file should be cached")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, fs, testLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	if err := os.Remove(filepath.Join(root, "del.md")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !cached(db, "del.md")
	}, "deleted file still cached")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	root, fs, db := watcherEnv(t)
	writeNote(t, fs, "old.md", "ddd444", "Movable", "x")
	if err := Sync(db, fs, testLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, fs, testLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	if err := os.Rename(filepath.Join(root, "old.md"), filepath.Join(root, "renamed.md")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !cached(db, "old.md") && cached(db, "renamed.md")
	}, "rename reconciliation failed")
}
