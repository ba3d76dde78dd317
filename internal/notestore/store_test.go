package notestore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hankxu/memoflow/internal/apperr"
	"github.com/hankxu/memoflow/internal/config"
	"github.com/hankxu/memoflow/internal/hashindex"
	"github.com/hankxu/memoflow/internal/models"
	"github.com/hankxu/memoflow/internal/storage"
	"github.com/hankxu/memoflow/internal/taxonomy"
	"github.com/hankxu/memoflow/internal/testutil"
	"github.com/hankxu/memoflow/internal/versionlog"
)

// newTestStore builds a store over a temp repository with the default
// schema. The directory is not a git repository, so commits land in the
// Audit error rather than failing operations; that is the contract under
// test too.
func newTestStore(t *testing.T) (*Store, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	logger := testutil.Logger()

	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	tax := taxonomy.NewEngine(root, logger)
	if _, err := tax.Load(); err != nil {
		t.Fatal(err)
	}
	index := hashindex.Open(root, logger)
	vlog := versionlog.New(root, 5*time.Second, logger)
	store := New(fs, tax, index, vlog, config.Default(), logger)
	return store, fs
}

func TestCreate(t *testing.T) {
	s, fs := newTestStore(t)

	n, _, err := s.Create(context.Background(), models.KindMeeting, "Weekly sync", "agenda\n")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(n.Hash) < 6 {
		t.Errorf("hash = %q", n.Hash)
	}
	if n.Code != "HANK-00.01" {
		t.Errorf("code = %q, want HANK-00.01", n.Code)
	}
	if !strings.HasPrefix(n.Path, InboxDir+"/") || !strings.Contains(n.Path, n.Hash) {
		t.Errorf("path = %q", n.Path)
	}
	if !fs.Exists(n.Path) {
		t.Error("note file not written")
	}

	// A second capture gets the next inbox ordinal.
	n2, _, err := s.Create(context.Background(), "", "Second", "")
	if err != nil {
		t.Fatal(err)
	}
	if n2.Code != "HANK-00.02" {
		t.Errorf("second code = %q, want HANK-00.02", n2.Code)
	}
}

func TestCreate_Invalid(t *testing.T) {
	s, _ := newTestStore(t)
	if _, _, err := s.Create(context.Background(), "bogus", "T", ""); err == nil {
		t.Error("invalid kind accepted")
	}
	if _, _, err := s.Create(context.Background(), "", "  ", ""); err == nil {
		t.Error("blank title accepted")
	}
}

func TestRead_ByPrefix(t *testing.T) {
	s, _ := newTestStore(t)
	n, _, err := s.Create(context.Background(), "", "Findable", "")
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Read(n.Hash[:6])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Hash != n.Hash || got.Title != "Findable" {
		t.Errorf("got = %+v", got)
	}

	if _, err := s.Read("ffffff"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMove(t *testing.T) {
	s, fs := newTestStore(t)
	n, _, err := s.Create(context.Background(), "", "Filed note", "")
	if err != nil {
		t.Fatal(err)
	}
	oldPath := n.Path

	newPath, _, err := s.Move(context.Background(), n.Hash, "HANK-00.01", "HANK-10.001")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !strings.HasPrefix(newPath, "10-20/10.001-10.099/") {
		t.Errorf("newPath = %q", newPath)
	}
	if fs.Exists(oldPath) {
		t.Error("old file still present")
	}
	if !fs.Exists(newPath) {
		t.Error("new file missing")
	}

	got, err := s.Read(n.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != "HANK-10.001" || got.Path != newPath {
		t.Errorf("after move: code = %q path = %q", got.Code, got.Path)
	}
}

func TestMove_SameCategoryKeepsFile(t *testing.T) {
	s, fs := newTestStore(t)
	ctx := context.Background()
	n, _, err := s.Create(ctx, "", "Same category", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Move(ctx, n.Hash, "HANK-00.01", "HANK-10.001"); err != nil {
		t.Fatal(err)
	}

	// Both codes map to the same directory and the filename is unchanged,
	// so the rewrite and the delete would target the same path.
	newPath, _, err := s.Move(ctx, n.Hash, "HANK-10.001", "HANK-10.002")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !fs.Exists(newPath) {
		t.Fatalf("note file %s gone after same-category move", newPath)
	}
	got, err := s.Read(n.Hash)
	if err != nil {
		t.Fatalf("read after move: %v", err)
	}
	if got.Code != "HANK-10.002" || got.Path != newPath {
		t.Errorf("after move: code = %q path = %q", got.Code, got.Path)
	}
}

func TestMove_PathMismatchLeavesStateUntouched(t *testing.T) {
	s, fs := newTestStore(t)
	n, _, err := s.Create(context.Background(), "", "Guarded", "")
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = s.Move(context.Background(), n.Hash, "HANK-00.99", "HANK-10.001")
	if !errors.Is(err, apperr.ErrPathMismatch) {
		t.Fatalf("err = %v, want ErrPathMismatch", err)
	}
	if !fs.Exists(n.Path) {
		t.Error("original file touched")
	}
	got, _ := s.Read(n.Hash)
	if got.Code != "HANK-00.01" {
		t.Errorf("code = %q, want unchanged", got.Code)
	}
}

func TestMove_InvalidTarget(t *testing.T) {
	s, fs := newTestStore(t)
	n, _, err := s.Create(context.Background(), "", "Guarded", "")
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = s.Move(context.Background(), n.Hash, "HANK-00.01", "HANK-99.001")
	if !errors.Is(err, apperr.ErrInvalidPath) {
		t.Fatalf("err = %v, want ErrInvalidPath", err)
	}
	if !fs.Exists(n.Path) {
		t.Error("original file touched")
	}
}

func TestUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	n, _, err := s.Create(context.Background(), models.KindTask, "Todo", "old body\n")
	if err != nil {
		t.Fatal(err)
	}

	body := "new body\n"
	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	got, _, err := s.Update(context.Background(), n.Hash, Patch{
		Body:    &body,
		DueDate: &due,
		Tags:    []string{"q3"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Body != body || got.DueDate == nil || len(got.Tags) != 1 {
		t.Errorf("got = %+v", got)
	}

	// Clearing the due date.
	got, _, err = s.Update(context.Background(), n.Hash, Patch{ClearDueDate: true})
	if err != nil {
		t.Fatal(err)
	}
	if got.DueDate != nil {
		t.Errorf("due date not cleared: %v", got.DueDate)
	}

	// Fields not in the patch stay put.
	if got.Title != "Todo" || got.Kind != models.KindTask {
		t.Errorf("unrelated fields changed: %+v", got)
	}
}

func TestQuery_Filters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mk := func(kind, title string) *models.Note {
		n, _, err := s.Create(ctx, kind, title, "")
		if err != nil {
			t.Fatal(err)
		}
		return n
	}
	task := mk(models.KindTask, "A task")
	mk(models.KindMeeting, "A meeting")
	mk("", "No type yet")

	if _, _, err := s.Finish(ctx, task.Hash); err != nil {
		t.Fatal(err)
	}

	open, err := s.Query(Filter{Status: models.StatusOpen})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 2 {
		t.Errorf("open = %d, want 2", len(open))
	}

	untyped, err := s.Query(Filter{Kind: models.KindUntyped})
	if err != nil {
		t.Fatal(err)
	}
	if len(untyped) != 1 || untyped[0].Title != "No type yet" {
		t.Errorf("untyped = %+v", untyped)
	}

	tasks, err := s.Query(Filter{Kind: models.KindTask})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Status != models.StatusDone {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestQuery_DueOn(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	n, _, err := s.Create(ctx, models.KindTask, "Due soon", "")
	if err != nil {
		t.Fatal(err)
	}
	due := time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)
	if _, _, err := s.Update(ctx, n.Hash, Patch{DueDate: &due}); err != nil {
		t.Fatal(err)
	}

	// Same day, different time of day.
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	got, err := s.Query(Filter{DueOn: &day})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}

	other := day.AddDate(0, 0, 1)
	got, err = s.Query(Filter{DueOn: &other})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestFinish_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	n, _, err := s.Create(ctx, models.KindTask, "Close me", "")
	if err != nil {
		t.Fatal(err)
	}

	changed, _, err := s.Finish(ctx, n.Hash)
	if err != nil || !changed {
		t.Fatalf("first finish: changed = %v, err = %v", changed, err)
	}
	changed, _, err = s.Finish(ctx, n.Hash)
	if err != nil || changed {
		t.Fatalf("second finish: changed = %v, err = %v", changed, err)
	}
}

func TestRetype(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	n, _, err := s.Create(ctx, "", "Classify me", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Retype(ctx, n.Hash, "bogus"); err == nil {
		t.Error("invalid kind accepted")
	}

	changed, _, err := s.Retype(ctx, n.Hash, models.KindEmail)
	if err != nil || !changed {
		t.Fatalf("retype: changed = %v, err = %v", changed, err)
	}
	changed, _, err = s.Retype(ctx, n.Hash, models.KindEmail)
	if err != nil || changed {
		t.Fatalf("same kind: changed = %v, err = %v", changed, err)
	}
}

func TestRebuildIndex(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	n, _, err := s.Create(ctx, "", "Reindex me", "")
	if err != nil {
		t.Fatal(err)
	}

	// Blow away the in-memory state via a fresh index and rebuild.
	count, _, err := s.RebuildIndex(ctx)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if _, err := s.Read(n.Hash); err != nil {
		t.Errorf("read after rebuild: %v", err)
	}
}

func TestMigratePrefix(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	n, _, err := s.Create(ctx, "", "Renamed", "")
	if err != nil {
		t.Fatal(err)
	}

	count, err := s.MigratePrefix(ctx, "HANK", "ZOE")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	got, err := s.Read(n.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != "ZOE-00.01" {
		t.Errorf("code = %q, want ZOE-00.01", got.Code)
	}
}

func TestTeardown(t *testing.T) {
	s, fs := newTestStore(t)
	ctx := context.Background()
	if _, _, err := s.Create(ctx, "", "Doomed", ""); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Teardown(ctx, false); err == nil {
		t.Fatal("teardown without force succeeded")
	}

	count, _, err := s.Teardown(ctx, true)
	if err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if count == 0 {
		t.Error("nothing removed")
	}
	if fs.Exists(InboxDir) || fs.Exists(".mf") {
		t.Error("repo data still present")
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Weekly sync", "Weekly-sync"},
		{"What? A title!", "What-A-title"},
		{"  spaced   out  ", "spaced-out"},
		{"déjà vu", "déjà-vu"},
	}
	for _, c := range cases {
		if got := sanitizeTitle(c.in); got != c.want {
			t.Errorf("sanitizeTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	long := strings.Repeat("a", 80)
	if got := sanitizeTitle(long); len(got) != maxTitleLen {
		t.Errorf("len = %d, want %d", len(got), maxTitleLen)
	}
}

func TestSanitizeTitle_TruncatesByRunes(t *testing.T) {
	got := sanitizeTitle(strings.Repeat("中", 80))
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != maxTitleLen {
		t.Errorf("rune count = %d, want %d", n, maxTitleLen)
	}
}
