package notefile

import (
	"strings"
	"testing"
	"time"

	"github.com/hankxu/memoflow/internal/models"
)

func sampleNote() *models.Note {
	created, _ := time.Parse(time.RFC3339, "2026-01-15T10:30:00Z")
	return &models.Note{
		Hash:      "a1b2c3",
		Code:      "HANK-00.01",
		Title:     "Weekly sync",
		Status:    models.StatusOpen,
		Kind:      models.KindMeeting,
		CreatedAt: created,
		Tags:      []string{"team", "weekly"},
		Body:      "# Agenda\n\nDiscuss [[Roadmap]].\n",
	}
}

func TestRenderParse_RoundTrip(t *testing.T) {
	src := sampleNote()
	data, err := Render(src)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	n, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n.Hash != src.Hash || n.Code != src.Code || n.Title != src.Title {
		t.Errorf("identity fields lost: %+v", n)
	}
	if n.Status != src.Status || n.Kind != src.Kind {
		t.Errorf("status/kind lost: %q %q", n.Status, n.Kind)
	}
	if !n.CreatedAt.Equal(src.CreatedAt) {
		t.Errorf("created_at = %v, want %v", n.CreatedAt, src.CreatedAt)
	}
	if len(n.Tags) != 2 || n.Tags[0] != "team" {
		t.Errorf("tags = %v", n.Tags)
	}
	if n.Body != src.Body {
		t.Errorf("body = %q, want %q", n.Body, src.Body)
	}
}

func TestRender_KeyOrder(t *testing.T) {
	data, err := Render(sampleNote())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(data)

	order := []string{"uuid:", "id:", "title:", "status:", "created_at:", "type:", "tags:"}
	last := -1
	for _, key := range order {
		idx := strings.Index(text, key)
		if idx < 0 {
			t.Fatalf("key %q missing in:\n%s", key, text)
		}
		if idx < last {
			t.Errorf("key %q out of order in:\n%s", key, text)
		}
		last = idx
	}
}

func TestParse_UnknownKeysPreserved(t *testing.T) {
	src := "---\nuuid: a1b2c3\nid: HANK-00.01\ntitle: T\nstatus: open\ncreated_at: 2026-01-15T10:30:00Z\npriority: high\nsource: email\n---\n\nbody\n"
	n, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n.Extra["priority"] != "high" || n.Extra["source"] != "email" {
		t.Fatalf("extra = %v", n.Extra)
	}

	// Render must carry the unknown keys back out.
	out, err := Render(n)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), "priority: high") {
		t.Errorf("priority lost:\n%s", out)
	}
}

func TestParse_MissingFrontmatter(t *testing.T) {
	if _, err := Parse([]byte("just a body\n")); err == nil {
		t.Error("expected error without frontmatter")
	}
}

func TestParse_MissingRequiredKeys(t *testing.T) {
	src := "---\ntitle: T\nstatus: open\n---\nbody\n"
	_, err := Parse([]byte(src))
	if err == nil {
		t.Fatal("expected error for missing keys")
	}
	for _, key := range []string{"uuid", "id", "created_at"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestParse_UntypedNote(t *testing.T) {
	src := "---\nuuid: a1b2c3\nid: HANK-00.01\ntitle: T\nstatus: open\ncreated_at: 2026-01-15\n---\nbody\n"
	n, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n.Kind != "" {
		t.Errorf("kind = %q, want empty", n.Kind)
	}
}

func TestParse_ZonelessTimestamp(t *testing.T) {
	src := "---\nuuid: a1b2c3\nid: HANK-00.01\ntitle: T\nstatus: open\ncreated_at: 2026-01-15T10:30:00.123456\n---\nbody\n"
	n, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n.CreatedAt.Year() != 2026 || n.CreatedAt.Minute() != 30 {
		t.Errorf("created_at = %v", n.CreatedAt)
	}
}

func TestParse_DueDate(t *testing.T) {
	src := "---\nuuid: a1b2c3\nid: HANK-00.01\ntitle: T\nstatus: open\ncreated_at: 2026-01-15\ndue_date: 2026-02-01\n---\nbody\n"
	n, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n.DueDate == nil || n.DueDate.Day() != 1 {
		t.Errorf("due_date = %v", n.DueDate)
	}
}

func TestLinks(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] and [[ ]]."
	links := Links(body)
	if len(links) != 2 || links[0] != "Note A" || links[1] != "Note B" {
		t.Errorf("links = %v", links)
	}
}

func TestInlineTags(t *testing.T) {
	body := "Work on #project-x today. #urgent stuff, then #project-x again."
	tags := InlineTags(body)
	if len(tags) != 2 || tags[0] != "project-x" || tags[1] != "urgent" {
		t.Errorf("tags = %v", tags)
	}
}
