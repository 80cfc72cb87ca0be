package datanorm

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ignite/climblog/internal/domain"
)

// Partial is a canonical record under construction. It remembers which fields
// already hold a value so the generic mapping pass only fills the gaps a
// template transform left.
type Partial struct {
	climb domain.CsvClimb
	set   map[CanonicalField]bool
}

// NewPartial returns an empty record.
func NewPartial() *Partial {
	return &Partial{set: make(map[CanonicalField]bool)}
}

// Has reports whether f already holds a value.
func (p *Partial) Has(f CanonicalField) bool {
	return p.set[f]
}

// Claim marks f as handled without storing a value, so the generic mapping
// pass leaves it alone.
func (p *Partial) Claim(f CanonicalField) {
	p.set[f] = true
}

// Climb returns a copy of the record built so far.
func (p *Partial) Climb() domain.CsvClimb {
	c := p.climb
	c.Skills = cloneStrings(c.Skills)
	c.PhysicalSkills = cloneStrings(c.PhysicalSkills)
	c.TechnicalSkills = cloneStrings(c.TechnicalSkills)
	return c
}

// Set coerces raw into field f. Empty and unusable values are dropped and
// leave the field unset; the return value reports whether anything was stored.
//
//nolint:gocyclo // one arm per canonical field
func (p *Partial) Set(f CanonicalField, raw any) bool {
	text := ToText(raw)

	switch f {
	case FieldName:
		if text == "" {
			return false
		}
		p.climb.Name = text
	case FieldGrade:
		if text == "" {
			return false
		}
		p.climb.Grade = text
	case FieldType:
		if text == "" {
			return false
		}
		if ct, ok := ClassifyClimbType(text); ok {
			p.climb.Type = ct
		} else {
			// left as-is so validation names the offending value
			p.climb.Type = domain.ClimbType(text)
		}
	case FieldSendType:
		if text == "" {
			return false
		}
		if st, ok := ClassifySendType(text); ok {
			p.climb.SendType = st
		} else {
			p.climb.SendType = domain.SendType(text)
		}
	case FieldDate:
		if text == "" {
			return false
		}
		p.climb.Date = NormalizeDate(text)
	case FieldLocation:
		if text == "" {
			return false
		}
		p.climb.Location = text
	case FieldAttempts:
		n, ok := ParseNumber(raw)
		if !ok {
			return false
		}
		p.climb.Attempts = domain.ScalarFromFloat(n)
	case FieldRating:
		n, ok := ParseNumber(raw)
		if !ok {
			return false
		}
		p.climb.Rating = domain.ScalarFromFloat(n)
	case FieldNotes:
		if text == "" {
			return false
		}
		p.climb.Notes = text
	case FieldDuration:
		if n, ok := ParseNumber(raw); ok {
			p.climb.Duration = domain.ScalarFromFloat(n)
		} else if strings.Contains(text, ":") {
			p.climb.Duration = domain.Scalar(text)
		} else {
			return false
		}
	case FieldElevationGain:
		n, ok := ParseNumber(raw)
		if !ok {
			return false
		}
		p.climb.ElevationGain = domain.ScalarFromFloat(n)
	case FieldColor:
		if text == "" {
			return false
		}
		p.climb.Color = text
	case FieldGym:
		if text == "" {
			return false
		}
		p.climb.Gym = text
	case FieldCountry:
		if text == "" {
			return false
		}
		p.climb.Country = text
	case FieldSkills:
		list := ParseList(raw)
		if len(list) == 0 {
			return false
		}
		p.climb.Skills = list
	case FieldPhysicalSkills:
		list := ParseList(raw)
		if len(list) == 0 {
			return false
		}
		p.climb.PhysicalSkills = list
	case FieldTechnicalSkills:
		list := ParseList(raw)
		if len(list) == 0 {
			return false
		}
		p.climb.TechnicalSkills = list
	case FieldStiffness:
		if n, ok := ParseNumber(raw); ok {
			p.climb.Stiffness = domain.ScalarFromFloat(n)
		} else if text != "" {
			// descriptive stiffness ("Hard for the grade") is kept as a note
			p.climb.StiffnessNote = text
		} else {
			return false
		}
	default:
		return false
	}

	p.set[f] = true
	return true
}

// BuildRecord turns one raw row into a canonical record: the template's
// transform runs first, then every mapped key fills a field the transform did
// not claim, in key order.
func BuildRecord(row RawRow, keys []string, mapping Mapping, tmpl *Template) domain.CsvClimb {
	var p *Partial
	if tmpl != nil && tmpl.Transform != nil {
		p = tmpl.Transform(row, mapping)
	}
	if p == nil {
		p = NewPartial()
	}

	for _, k := range keys {
		f := mapping[k]
		if f == FieldNone || p.Has(f) {
			continue
		}
		p.Set(f, row[k])
	}
	return p.Climb()
}

// BuildRecords runs BuildRecord over every row of a parsed file.
func BuildRecords(file *ParsedFile, mapping Mapping, tmpl *Template) []domain.CsvClimb {
	out := make([]domain.CsvClimb, 0, len(file.Rows))
	for _, row := range file.Rows {
		out = append(out, BuildRecord(row, file.Keys, mapping, tmpl))
	}
	return out
}

// ToText renders a raw value as trimmed text. Lists are joined with ", ";
// objects have no text form.
func ToText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case []string:
		return strings.Join(ParseList(v), ", ")
	case []any:
		return strings.Join(ParseList(v), ", ")
	case map[string]any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

var thousandsPattern = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseNumber reads a number out of a raw value. It never fails loudly and
// never invents a value: anything that is not clearly numeric yields ok=false.
func ParseNumber(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		s := strings.TrimSpace(v)
		if thousandsPattern.MatchString(s) {
			s = strings.ReplaceAll(s, ",", "")
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseList accepts a list value or a comma-separated string and returns the
// trimmed, non-empty items.
func ParseList(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		items = v
	case []any:
		for _, e := range v {
			items = append(items, ToText(e))
		}
	case string:
		items = strings.Split(v, ",")
	default:
		items = []string{ToText(v)}
	}

	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]|$)`)

// NormalizeDate keeps the calendar part of an ISO timestamp
// ("2024-05-01T10:00:00Z" becomes "2024-05-01"). Other text is returned
// unchanged for validation to judge.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if datePrefix.MatchString(s) {
		return s[:10]
	}
	return s
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
