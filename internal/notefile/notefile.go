// Package notefile encodes and decodes the on-disk note representation:
// a YAML frontmatter block followed by a free-text markdown body.
package notefile

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hankxu/memoflow/internal/models"
)

// Frontmatter keys the codec owns. Anything else round-trips via Note.Extra.
var knownKeys = map[string]struct{}{
	"uuid": {}, "id": {}, "title": {}, "status": {}, "created_at": {},
	"type": {}, "due_date": {}, "tags": {},
}

var requiredKeys = []string{"uuid", "id", "title", "status", "created_at"}

const delim = "---"

// Parse decodes raw note bytes into a typed Note. It fails on a missing
// frontmatter block or missing required keys.
func Parse(data []byte) (*models.Note, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	if fm == nil {
		return nil, fmt.Errorf("notefile: missing frontmatter block")
	}

	var missing []string
	for _, k := range requiredKeys {
		if _, ok := fm[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("notefile: missing required keys: %s", strings.Join(missing, ", "))
	}

	createdAt, err := parseTime(fm["created_at"])
	if err != nil {
		return nil, fmt.Errorf("notefile: created_at: %w", err)
	}

	n := &models.Note{
		Hash:      asString(fm["uuid"]),
		Code:      asString(fm["id"]),
		Title:     asString(fm["title"]),
		Status:    asString(fm["status"]),
		Kind:      asString(fm["type"]), // absent means untyped
		CreatedAt: createdAt,
		Tags:      asStringSlice(fm["tags"]),
		Body:      body,
	}

	if raw, ok := fm["due_date"]; ok && raw != nil {
		due, err := parseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("notefile: due_date: %w", err)
		}
		n.DueDate = &due
	}

	for k, v := range fm {
		if _, ok := knownKeys[k]; ok {
			continue
		}
		if n.Extra == nil {
			n.Extra = make(map[string]any)
		}
		n.Extra[k] = v
	}

	return n, nil
}

// Render encodes a Note into canonical file bytes. Known keys are emitted in
// a fixed order; extra keys follow, sorted.
func Render(n *models.Note) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")

	writeKey := func(key string, value any) error {
		out, err := yaml.Marshal(map[string]any{key: value})
		if err != nil {
			return fmt.Errorf("notefile: marshal %s: %w", key, err)
		}
		buf.Write(out)
		return nil
	}

	if err := writeKey("uuid", n.Hash); err != nil {
		return nil, err
	}
	if err := writeKey("id", n.Code); err != nil {
		return nil, err
	}
	if err := writeKey("title", n.Title); err != nil {
		return nil, err
	}
	if err := writeKey("status", n.Status); err != nil {
		return nil, err
	}
	if err := writeKey("created_at", n.CreatedAt.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if n.Kind != "" {
		if err := writeKey("type", n.Kind); err != nil {
			return nil, err
		}
	}
	if n.DueDate != nil {
		if err := writeKey("due_date", n.DueDate.Format(time.RFC3339)); err != nil {
			return nil, err
		}
	}
	if len(n.Tags) > 0 {
		if err := writeKey("tags", n.Tags); err != nil {
			return nil, err
		}
	}

	extraKeys := make([]string, 0, len(n.Extra))
	for k := range n.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if err := writeKey(k, n.Extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteString(delim + "\n\n")
	buf.WriteString(n.Body)
	if !strings.HasSuffix(n.Body, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// splitFrontmatter separates the YAML block (between leading --- delimiters)
// from the body. A file without a block yields a nil map.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", fmt.Errorf("notefile: frontmatter: %w", err)
	}
	return fm, body, nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func asStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// timeLayouts accepts RFC3339 and zone-less ISO-8601 variants that other
// tooling writes into frontmatter.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", t)
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", v)
	}
}

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Links returns deduplicated wikilink targets from a note body, normalising
// [[Target|Alias]] to Target. Used by the search index, not by the core store.
func Links(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// InlineTags collects #tags from a note body, preserving first-seen order.
func InlineTags(body string) []string {
	matches := tagRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}
