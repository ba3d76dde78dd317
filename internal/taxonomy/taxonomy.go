// Package taxonomy implements the decimal area/category schema that gives
// every note its hierarchical location code (PREFIX-AREA.ITEM).
//
// Fractional item values are held internally as fixed-point thousandths
// (Milli) so that range containment and free-slot stepping never suffer
// binary-float drift; decimal text exists only at the parse/format boundary.
package taxonomy

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Milli is a location value in thousandths: 10.050 is Milli(10050).
type Milli int64

// InboxArea is the area id newly captured notes land in before filing.
const InboxArea = 0

var codeRe = regexp.MustCompile(`^([A-Z]+)-(\d+)\.(\d{2,3})$`)

// Category owns an inclusive decimal range of item values within an area.
type Category struct {
	ID    int
	Name  string
	Start Milli
	End   Milli
}

// Contains reports whether v falls inside the category's range.
func (c Category) Contains(v Milli) bool {
	return c.Start <= v && v <= c.End
}

// Precision returns the number of fractional digits the category's range
// declares: 3 when either bound carries a third significant fractional
// digit, otherwise 2.
func (c Category) Precision() int {
	if c.Start%10 != 0 || c.End%10 != 0 {
		return 3
	}
	return 2
}

// Step returns the allocation step for the category: 0.001 for 3-digit
// ranges, 0.01 for 2-digit ones.
func (c Category) Step() Milli {
	if c.Precision() == 3 {
		return 1
	}
	return 10
}

// Area groups categories. Validation walks categories in declared order;
// when ranges overlap the first match wins (the engine does not reject
// overlapping definitions).
type Area struct {
	ID         int
	Name       string
	Categories []Category
}

// Category returns the area's category with the given id, or nil.
func (a *Area) Category(id int) *Category {
	for i := range a.Categories {
		if a.Categories[i].ID == id {
			return &a.Categories[i]
		}
	}
	return nil
}

// Schema is the full taxonomy: a prefix shared by every location code in the
// repository plus an ordered set of areas.
type Schema struct {
	Prefix string
	Areas  []Area
}

// Area returns the area with the given id, or nil.
func (s *Schema) Area(id int) *Area {
	for i := range s.Areas {
		if s.Areas[i].ID == id {
			return &s.Areas[i]
		}
	}
	return nil
}

// ParseCode splits a location code into prefix, area id, and fixed-point
// value. ok is false on any malformed input.
func ParseCode(code string) (prefix string, area int, value Milli, ok bool) {
	m := codeRe.FindStringSubmatch(code)
	if m == nil {
		return "", 0, 0, false
	}
	area, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, 0, false
	}
	frac, err := strconv.Atoi(m[3])
	if err != nil {
		return "", 0, 0, false
	}
	if len(m[3]) == 2 {
		frac *= 10
	}
	return m[1], area, Milli(int64(area)*1000 + int64(frac)), true
}

// FormatCode renders a location code with the given fractional precision.
func FormatCode(prefix string, v Milli, precision int) string {
	whole := v / 1000
	frac := v % 1000
	if precision == 3 {
		return fmt.Sprintf("%s-%d.%03d", prefix, whole, frac)
	}
	return fmt.Sprintf("%s-%d.%02d", prefix, whole, frac/10)
}

// milliString renders a bare decimal value ("10.05" or "10.050") for
// directory names.
func milliString(v Milli, precision int) string {
	whole := v / 1000
	frac := v % 1000
	if precision == 3 {
		return fmt.Sprintf("%d.%03d", whole, frac)
	}
	return fmt.Sprintf("%d.%02d", whole, frac/10)
}

// ValidateLocation reports whether code is a well-formed location under this
// schema: matching prefix, declared area, and a value inside some category
// range of that area. Fails closed on malformed input.
func (s *Schema) ValidateLocation(code string) bool {
	prefix, areaID, value, ok := ParseCode(code)
	if !ok || prefix != s.Prefix {
		return false
	}
	area := s.Area(areaID)
	if area == nil {
		return false
	}
	for _, cat := range area.Categories {
		if cat.Contains(value) {
			return true
		}
	}
	return false
}

// DirectoryFor maps a location code to its two-level directory, relative to
// the repo root: "{area}-{area+10}/{rangeStart}-{rangeEnd}". This convention
// is the physical encoding of the taxonomy; callers must not build these
// paths by other means.
func (s *Schema) DirectoryFor(code string) (string, error) {
	prefix, areaID, value, ok := ParseCode(code)
	if !ok {
		return "", fmt.Errorf("taxonomy: malformed location code %q", code)
	}
	if prefix != s.Prefix {
		return "", fmt.Errorf("taxonomy: prefix %q does not match schema prefix %q", prefix, s.Prefix)
	}
	area := s.Area(areaID)
	if area == nil {
		return "", fmt.Errorf("taxonomy: area %d not declared", areaID)
	}
	for _, cat := range area.Categories {
		if cat.Contains(value) {
			return categoryDir(area, cat), nil
		}
	}
	return "", fmt.Errorf("taxonomy: value %s outside every category of area %d",
		milliString(value, 3), areaID)
}

// categoryDir builds the two-level directory for one specific category,
// bypassing the first-match scan DirectoryFor performs.
func categoryDir(area *Area, cat Category) string {
	prec := cat.Precision()
	return fmt.Sprintf("%d-%d/%s-%s",
		area.ID, area.ID+10,
		milliString(cat.Start, prec), milliString(cat.End, prec))
}

// ProvisionalCode builds an inbox code (area 00) for a freshly captured,
// not-yet-filed note. The ordinal is caller-supplied and not unique on its
// own; the store combines it with the note hash for file naming.
func (s *Schema) ProvisionalCode(counter int) string {
	return fmt.Sprintf("%s-%02d.%02d", s.Prefix, InboxArea, counter)
}

// NextFreeCode walks the category's range from its start in fixed steps and
// returns the first value not present in taken, formatted at the category's
// precision. The second return is false when the range is exhausted or the
// area/category is unknown. Lowest free value always wins.
func (s *Schema) NextFreeCode(areaID, categoryID int, taken map[Milli]struct{}) (string, bool) {
	area := s.Area(areaID)
	if area == nil {
		return "", false
	}
	cat := area.Category(categoryID)
	if cat == nil {
		return "", false
	}
	step := cat.Step()
	for v := cat.Start; v <= cat.End; v += step {
		if _, used := taken[v]; !used {
			return FormatCode(s.Prefix, v, cat.Precision()), true
		}
	}
	return "", false
}

// --- YAML representation (spec'd definition file format) ---

type yamlSchema struct {
	UserPrefix string     `yaml:"user_prefix"`
	Areas      []yamlArea `yaml:"areas"`
}

type yamlArea struct {
	ID         int            `yaml:"id"`
	Name       string         `yaml:"name"`
	Categories []yamlCategory `yaml:"categories"`
}

type yamlCategory struct {
	ID    int        `yaml:"id"`
	Name  string     `yaml:"name"`
	Range [2]float64 `yaml:"range,flow"`
}

func toMilli(f float64) Milli {
	return Milli(math.Round(f * 1000))
}

// UnmarshalYAML decodes the definition-file form, rounding decimal range
// bounds to thousandths.
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	var raw yamlSchema
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.UserPrefix == "" {
		return fmt.Errorf("taxonomy: user_prefix is required")
	}
	s.Prefix = raw.UserPrefix
	s.Areas = s.Areas[:0]
	for _, a := range raw.Areas {
		area := Area{ID: a.ID, Name: a.Name}
		for _, c := range a.Categories {
			area.Categories = append(area.Categories, Category{
				ID:    c.ID,
				Name:  c.Name,
				Start: toMilli(c.Range[0]),
				End:   toMilli(c.Range[1]),
			})
		}
		s.Areas = append(s.Areas, area)
	}
	return nil
}

// MarshalYAML encodes back to the definition-file form.
func (s Schema) MarshalYAML() (any, error) {
	raw := yamlSchema{UserPrefix: s.Prefix}
	for _, a := range s.Areas {
		area := yamlArea{ID: a.ID, Name: a.Name}
		for _, c := range a.Categories {
			area.Categories = append(area.Categories, yamlCategory{
				ID:    c.ID,
				Name:  c.Name,
				Range: [2]float64{float64(c.Start) / 1000, float64(c.End) / 1000},
			})
		}
		raw.Areas = append(raw.Areas, area)
	}
	return raw, nil
}

// Default returns the schema written into fresh repositories.
func Default() *Schema {
	return &Schema{
		Prefix: "HANK",
		Areas: []Area{
			{
				ID:   10,
				Name: "Projects",
				Categories: []Category{
					{ID: 1, Name: "Planning", Start: 10001, End: 10099},
					{ID: 2, Name: "Execution", Start: 10100, End: 10199},
				},
			},
			{
				ID:   20,
				Name: "Learning",
				Categories: []Category{
					{ID: 1, Name: "Reading", Start: 20001, End: 20099},
					{ID: 2, Name: "Practice", Start: 20100, End: 20199},
				},
			},
		},
	}
}
