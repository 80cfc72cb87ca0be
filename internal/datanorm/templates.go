package datanorm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/ignite/climblog/internal/grade"
)

// TransformFunc derives source-specific fields of one raw row. It is pure and
// returns a partial record; fields it leaves unclaimed are filled from the
// column mapping afterwards.
type TransformFunc func(row RawRow, mapping Mapping) *Partial

// Template describes one external platform's export schema.
type Template struct {
	SourceType  string                    `json:"sourceType"`
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	IsJSON      bool                      `json:"isJson"`
	GradeSystem grade.System              `json:"gradeSystem,omitempty"`
	Heuristic   bool                      `json:"heuristic"`
	Mapping     map[string]CanonicalField `json:"mapping"`
	Transform   TransformFunc             `json:"-"`
}

// Source types of the built-in templates.
const (
	SourceMountainProject = "mountainProject"
	SourceEightANu        = "eightANu"
	SourceTheCrag         = "theCrag"
	SourceVerticalLife    = "verticalLife"
	SourceGenericJSON     = "genericJson"
	SourceGeneric         = "generic"
)

var registry = []Template{
	{
		SourceType:  SourceMountainProject,
		Name:        "Mountain Project",
		Description: "Tick export CSV from mountainproject.com",
		GradeSystem: grade.YDS,
		Mapping: map[string]CanonicalField{
			"Date":       FieldDate,
			"Route":      FieldName,
			"Rating":     FieldGrade,
			"Notes":      FieldNotes,
			"Location":   FieldLocation,
			"Route Type": FieldType,
			"Lead Style": FieldSendType,
			"Your Stars": FieldRating,
		},
		Transform: mountainProjectTransform,
	},
	{
		SourceType:  SourceEightANu,
		Name:        "8a.nu",
		Description: "Ascent export CSV from 8a.nu",
		GradeSystem: grade.French,
		Mapping: map[string]CanonicalField{
			"Ascent Date":  FieldDate,
			"Name":         FieldName,
			"Grade":        FieldGrade,
			"Type":         FieldType,
			"Ascent Style": FieldSendType,
			"Crag":         FieldLocation,
			"Country":      FieldCountry,
			"Tries":        FieldAttempts,
			"Rating":       FieldRating,
			"Comment":      FieldNotes,
		},
		Transform: eightANuTransform,
	},
	{
		SourceType:  SourceTheCrag,
		Name:        "theCrag",
		Description: "Logbook export CSV from thecrag.com",
		Mapping: map[string]CanonicalField{
			"Route Name":       FieldName,
			"Ascent Grade":     FieldGrade,
			"Route Gear Style": FieldType,
			"Ascent Type":      FieldSendType,
			"Ascent Date":      FieldDate,
			"Crag Name":        FieldLocation,
			"Country":          FieldCountry,
			"Comment":          FieldNotes,
		},
		Transform: theCragTransform,
	},
	{
		SourceType:  SourceVerticalLife,
		Name:        "Vertical-Life",
		Description: "Gym ascent export JSON from the Vertical-Life app",
		IsJSON:      true,
		GradeSystem: grade.Font,
		Mapping: map[string]CanonicalField{
			"zlaggableName": FieldName,
			"difficulty":    FieldGrade,
			"date":          FieldDate,
			"ascentType":    FieldSendType,
			"tries":         FieldAttempts,
			"gymName":       FieldGym,
			"holdColor":     FieldColor,
			"rating":        FieldRating,
			"comment":       FieldNotes,
		},
		Transform: verticalLifeTransform,
	},
	{
		SourceType:  SourceGenericJSON,
		Name:        "Generic JSON",
		Description: "Array of objects keyed by canonical field names or close synonyms",
		IsJSON:      true,
		Heuristic:   true,
		Mapping:     identityMapping(),
	},
	{
		SourceType:  SourceGeneric,
		Name:        "Generic CSV",
		Description: "CSV with a header row of canonical field names or close synonyms",
		Heuristic:   true,
		Mapping:     identityMapping(),
	},
}

func identityMapping() map[string]CanonicalField {
	m := make(map[string]CanonicalField, len(CanonicalFields))
	for _, f := range CanonicalFields {
		m[string(f)] = f
	}
	return m
}

// Templates returns the catalog in display order. The registry is fixed at
// build time; callers must treat the returned templates as read-only.
func Templates() []Template {
	return append([]Template(nil), registry...)
}

// LookupTemplate finds a template by its stable source type.
func LookupTemplate(sourceType string) (*Template, bool) {
	for i := range registry {
		if registry[i].SourceType == sourceType {
			t := registry[i]
			return &t, true
		}
	}
	return nil, false
}

// ResolveTemplate maps the source type of an import request to its template.
// A blank source type means no template. Anything other than an exact source
// type is ErrUnknownTemplate; loose matching is left to FindTemplate.
func ResolveTemplate(sourceType string) (*Template, error) {
	sourceType = strings.TrimSpace(sourceType)
	if sourceType == "" {
		return nil, nil
	}
	if t, ok := LookupTemplate(sourceType); ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, sourceType)
}

// FindTemplate resolves loose user input ("8a", "mountain project", "mp")
// to a template: exact source type first, then the closest fuzzy match over
// source types and display names.
func FindTemplate(query string) (*Template, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false
	}
	for i := range registry {
		if strings.EqualFold(registry[i].SourceType, query) || strings.EqualFold(registry[i].Name, query) {
			t := registry[i]
			return &t, true
		}
	}

	targets := make([]string, 0, len(registry)*2)
	owners := make([]int, 0, len(registry)*2)
	for i, t := range registry {
		targets = append(targets, t.SourceType, t.Name)
		owners = append(owners, i, i)
	}

	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	if len(ranks) == 0 {
		return nil, false
	}
	sort.Sort(ranks)
	t := registry[owners[ranks[0].OriginalIndex]]
	return &t, true
}

func (t *Template) normalizedMapping() map[string]CanonicalField {
	out := make(map[string]CanonicalField, len(t.Mapping))
	for header, f := range t.Mapping {
		out[NormalizeKey(header)] = f
	}
	return out
}

func (t *Template) formatName() Format {
	if t.IsJSON {
		return FormatJSON
	}
	return FormatCSV
}

// SystemFor returns the grading system a record from this source is assumed
// to use. Platforms pair a route system with a boulder system, so the hint
// flips to the partner notation for boulders.
func (t *Template) SystemFor(isBoulder bool) grade.System {
	return grade.ForDiscipline(t.GradeSystem, isBoulder)
}

// ConvertGrade rewrites g into target, or its boulder partner for boulders.
// Heuristic templates detect the source notation from the grade itself;
// platform templates without a known system leave the grade alone.
func (t *Template) ConvertGrade(g string, isBoulder bool, target grade.System) string {
	if target == grade.Unknown {
		return g
	}
	from := t.SystemFor(isBoulder)
	if from == grade.Unknown && !t.Heuristic {
		return g
	}
	return grade.Normalize(g, from, grade.ForDiscipline(target, isBoulder), grade.HintFor(isBoulder))
}
