// Package models defines the domain types for memoflow.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Note statuses.
const (
	StatusOpen     = "open"
	StatusDone     = "done"
	StatusArchived = "archived"
)

// Note kinds. An empty Kind means the note is untyped.
const (
	KindMeeting = "meeting"
	KindNote    = "note"
	KindTask    = "task"
	KindEmail   = "email"
)

// KindUntyped is the query-filter alias for notes without a kind. It is
// never stored in a note file.
const KindUntyped = "untyped"

// Note is a single markdown note. Hash is the immutable identity; Code is
// the mutable taxonomy placement (PREFIX-AREA.ITEM).
type Note struct {
	Hash      string
	Code      string
	Title     string
	Status    string
	Kind      string // empty = untyped
	CreatedAt time.Time
	DueDate   *time.Time
	Tags      []string
	Body      string

	// Extra preserves frontmatter keys the schema does not know about, so
	// round-tripping a hand-edited file never drops them.
	Extra map[string]any

	// Path is the file's location relative to the repo root. Derived from
	// where the file was read, not part of the stored metadata.
	Path string
}

// Validate checks the note's identity and enumerated fields.
func (n *Note) Validate() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.Hash, validation.Required, validation.Length(6, 12)),
		validation.Field(&n.Code, validation.Required),
		validation.Field(&n.Title, validation.Required),
		validation.Field(&n.Status, validation.Required,
			validation.In(StatusOpen, StatusDone, StatusArchived)),
		validation.Field(&n.Kind,
			validation.In(KindMeeting, KindNote, KindTask, KindEmail)),
	)
}

// ValidKind reports whether k names a storable note kind.
func ValidKind(k string) bool {
	switch k {
	case KindMeeting, KindNote, KindTask, KindEmail:
		return true
	}
	return false
}

// KindLabel returns the kind as shown to users: "untyped" for empty.
func (n *Note) KindLabel() string {
	if n.Kind == "" {
		return KindUntyped
	}
	return n.Kind
}
