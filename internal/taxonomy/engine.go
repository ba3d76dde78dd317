package taxonomy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hankxu/memoflow/internal/notefile"
)

// SchemaFile is the taxonomy definition file name at the repo root.
const SchemaFile = "schema.yaml"

// Engine loads the schema definition for a repository and answers placement
// questions that need the note tree (free-slot allocation).
type Engine struct {
	root   string
	logger *slog.Logger
	schema *Schema
}

// NewEngine creates an engine rooted at the repository directory. The schema
// is loaded lazily on first use.
func NewEngine(root string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{root: root, logger: logger}
}

func (e *Engine) schemaPath() string {
	return filepath.Join(e.root, SchemaFile)
}

// Load returns the repository schema, reading schema.yaml on first call.
// A missing file is replaced with the default schema, which is also written
// out so the user has something to edit.
func (e *Engine) Load() (*Schema, error) {
	if e.schema != nil {
		return e.schema, nil
	}

	data, err := os.ReadFile(e.schemaPath())
	if os.IsNotExist(err) {
		e.logger.Info("schema file not found, writing default", slog.String("path", e.schemaPath()))
		e.schema = Default()
		if err := e.Save(e.schema); err != nil {
			return nil, err
		}
		return e.schema, nil
	}
	if err != nil {
		return nil, fmt.Errorf("taxonomy: read schema: %w", err)
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("taxonomy: parse schema: %w", err)
	}
	e.schema = &s
	return e.schema, nil
}

// Reload drops the cached schema so the next call re-reads schema.yaml.
func (e *Engine) Reload() {
	e.schema = nil
}

// Save writes the schema definition file.
func (e *Engine) Save(s *Schema) error {
	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("taxonomy: marshal schema: %w", err)
	}
	if err := os.WriteFile(e.schemaPath(), out, 0o644); err != nil {
		return fmt.Errorf("taxonomy: write schema: %w", err)
	}
	return nil
}

// ValidateLocation reports whether code is valid under the loaded schema.
// Fails closed when the schema cannot be loaded.
func (e *Engine) ValidateLocation(code string) bool {
	s, err := e.Load()
	if err != nil {
		e.logger.Warn("schema load failed during validation", slog.String("error", err.Error()))
		return false
	}
	return s.ValidateLocation(code)
}

// DirectoryFor maps a location code to its directory relative to the root.
func (e *Engine) DirectoryFor(code string) (string, error) {
	s, err := e.Load()
	if err != nil {
		return "", err
	}
	return s.DirectoryFor(code)
}

// ProvisionalCode builds an inbox code for a new capture.
func (e *Engine) ProvisionalCode(counter int) (string, error) {
	s, err := e.Load()
	if err != nil {
		return "", err
	}
	return s.ProvisionalCode(counter), nil
}

// NextFreeCode scans for notes already holding a value in the category's
// range, then returns the lowest unused code. Overlapping category ranges
// file into the first declared match, so every directory of a category whose
// range intersects the target's is scanned, not just the target's own. ok is
// false when the range is exhausted or the area/category is not declared.
func (e *Engine) NextFreeCode(areaID, categoryID int) (code string, ok bool, err error) {
	s, err := e.Load()
	if err != nil {
		return "", false, err
	}
	area := s.Area(areaID)
	if area == nil {
		return "", false, nil
	}
	target := area.Category(categoryID)
	if target == nil {
		return "", false, nil
	}

	taken := make(map[Milli]struct{})
	seen := make(map[string]struct{})
	for _, cat := range area.Categories {
		if cat.End < target.Start || cat.Start > target.End {
			continue
		}
		dir := categoryDir(area, cat)
		if _, done := seen[dir]; done {
			continue
		}
		seen[dir] = struct{}{}
		if err := e.takenValues(filepath.Join(e.root, dir), taken); err != nil {
			return "", false, err
		}
	}
	code, ok = s.NextFreeCode(areaID, categoryID, taken)
	return code, ok, nil
}

// takenValues adds the location values stored in every parsable note under
// dir to taken. A missing directory means nothing is taken there yet.
func (e *Engine) takenValues(dir string, taken map[Milli]struct{}) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("taxonomy: scan category dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			e.logger.Warn("skipping unreadable note", slog.String("file", entry.Name()), slog.String("error", err.Error()))
			continue
		}
		n, err := notefile.Parse(data)
		if err != nil {
			e.logger.Warn("skipping unparsable note", slog.String("file", entry.Name()), slog.String("error", err.Error()))
			continue
		}
		if _, _, value, ok := ParseCode(n.Code); ok {
			taken[value] = struct{}{}
		}
	}
	return nil
}
