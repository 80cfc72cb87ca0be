package datanorm

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// CanonicalField is a field of the canonical climb record.
type CanonicalField string

const (
	FieldNone            CanonicalField = ""
	FieldName            CanonicalField = "name"
	FieldGrade           CanonicalField = "grade"
	FieldType            CanonicalField = "type"
	FieldSendType        CanonicalField = "send_type"
	FieldDate            CanonicalField = "date"
	FieldLocation        CanonicalField = "location"
	FieldAttempts        CanonicalField = "attempts"
	FieldRating          CanonicalField = "rating"
	FieldNotes           CanonicalField = "notes"
	FieldDuration        CanonicalField = "duration"
	FieldElevationGain   CanonicalField = "elevation_gain"
	FieldColor           CanonicalField = "color"
	FieldGym             CanonicalField = "gym"
	FieldCountry         CanonicalField = "country"
	FieldSkills          CanonicalField = "skills"
	FieldPhysicalSkills  CanonicalField = "physical_skills"
	FieldTechnicalSkills CanonicalField = "technical_skills"
	FieldStiffness       CanonicalField = "stiffness"
)

// CanonicalFields is the closed set of mappable fields in record order.
var CanonicalFields = []CanonicalField{
	FieldName, FieldGrade, FieldType, FieldSendType, FieldDate, FieldLocation,
	FieldAttempts, FieldRating, FieldNotes, FieldDuration, FieldElevationGain,
	FieldColor, FieldGym, FieldCountry, FieldSkills, FieldPhysicalSkills,
	FieldTechnicalSkills, FieldStiffness,
}

// RequiredFields must be mapped for a file to be importable at all.
var RequiredFields = []CanonicalField{FieldName, FieldGrade, FieldType, FieldSendType, FieldDate, FieldLocation}

// Valid reports whether f is one of CanonicalFields.
func (f CanonicalField) Valid() bool {
	for _, c := range CanonicalFields {
		if c == f {
			return true
		}
	}
	return false
}

// ParseField resolves a field name; the empty string means "not mapped".
func ParseField(s string) (CanonicalField, error) {
	f := CanonicalField(strings.TrimSpace(s))
	if f == FieldNone || f.Valid() {
		return f, nil
	}
	return FieldNone, fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// fieldSynonyms maps normalized header text to canonical fields.
var fieldSynonyms = map[string]CanonicalField{
	// Name
	"name":          FieldName,
	"climbname":     FieldName,
	"routename":     FieldName,
	"route":         FieldName,
	"climb":         FieldName,
	"problem":       FieldName,
	"problemname":   FieldName,
	"zlaggablename": FieldName,

	// Grade
	"grade":      FieldGrade,
	"difficulty": FieldGrade,
	"routegrade": FieldGrade,
	"climbgrade": FieldGrade,

	// Discipline
	"type":           FieldType,
	"climbtype":      FieldType,
	"routetype":      FieldType,
	"discipline":     FieldType,
	"routegearstyle": FieldType,
	"gearstyle":      FieldType,

	// Tick type
	"sendtype":    FieldSendType,
	"send":        FieldSendType,
	"ascenttype":  FieldSendType,
	"ascentstyle": FieldSendType,
	"ticktype":    FieldSendType,
	"leadstyle":   FieldSendType,
	"style":       FieldSendType,

	// Date
	"date":        FieldDate,
	"climbdate":   FieldDate,
	"ascentdate":  FieldDate,
	"dateclimbed": FieldDate,
	"tickdate":    FieldDate,
	"day":         FieldDate,

	// Where
	"location": FieldLocation,
	"crag":     FieldLocation,
	"cragname": FieldLocation,
	"area":     FieldLocation,
	"venue":    FieldLocation,
	"place":    FieldLocation,

	"attempts":    FieldAttempts,
	"tries":       FieldAttempts,
	"numattempts": FieldAttempts,
	"goes":        FieldAttempts,

	"rating":    FieldRating,
	"stars":     FieldRating,
	"yourstars": FieldRating,
	"quality":   FieldRating,
	"myrating":  FieldRating,

	"notes":       FieldNotes,
	"note":        FieldNotes,
	"comment":     FieldNotes,
	"comments":    FieldNotes,
	"description": FieldNotes,

	"duration":        FieldDuration,
	"timespent":       FieldDuration,
	"elapsed":         FieldDuration,
	"sessionduration": FieldDuration,

	"elevationgain": FieldElevationGain,
	"elevation":     FieldElevationGain,
	"verticalgain":  FieldElevationGain,

	"color":      FieldColor,
	"colour":     FieldColor,
	"holdcolor":  FieldColor,
	"holdcolour": FieldColor,
	"tapecolor":  FieldColor,

	"gym":      FieldGym,
	"gymname":  FieldGym,
	"facility": FieldGym,

	"country":     FieldCountry,
	"countrycode": FieldCountry,

	"skills": FieldSkills,
	"skill":  FieldSkills,
	"tags":   FieldSkills,

	"physicalskills": FieldPhysicalSkills,
	"physical":       FieldPhysicalSkills,

	"technicalskills": FieldTechnicalSkills,
	"technical":       FieldTechnicalSkills,
	"techniques":      FieldTechnicalSkills,

	"stiffness": FieldStiffness,
	"gradefeel": FieldStiffness,
	"feel":      FieldStiffness,
}

// containmentOrder is CanonicalFields sorted longest normalized name first so
// "physicalskills" wins over "skills" during substring matching.
var containmentOrder = func() []CanonicalField {
	out := append([]CanonicalField(nil), CanonicalFields...)
	sort.SliceStable(out, func(i, j int) bool {
		return len(NormalizeKey(string(out[i]))) > len(NormalizeKey(string(out[j])))
	})
	return out
}()

// NormalizeKey case-folds s and strips whitespace, underscores and hyphens,
// so "Route Name", "route_name" and "routename" compare equal.
func NormalizeKey(s string) string {
	s = cases.Fold().String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '_' || r == '-' || r == '\uFEFF' {
			return -1
		}
		return r
	}, s)
}

// Mapping assigns every source key a canonical field, FieldNone when unmapped.
type Mapping map[string]CanonicalField

// Strings renders the mapping for JSON responses.
func (m Mapping) Strings() map[string]string {
	out := make(map[string]string, len(m))
	for k, f := range m {
		out[k] = string(f)
	}
	return out
}

// Missing returns the required fields no key is mapped to.
func (m Mapping) Missing() []CanonicalField {
	claimed := make(map[CanonicalField]bool, len(m))
	for _, f := range m {
		claimed[f] = true
	}
	var missing []CanonicalField
	for _, f := range RequiredFields {
		if !claimed[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// GuessMapping maps source keys onto canonical fields. A template's declared
// mapping is applied first; heuristic matching runs when there is no template
// or the template is a generic one. Each canonical field is claimed by at most
// one key, earlier keys first. The result depends only on its arguments.
func GuessMapping(keys []string, tmpl *Template) Mapping {
	m := make(Mapping, len(keys))
	claimed := make(map[CanonicalField]bool)

	claim := func(key string, f CanonicalField) bool {
		if f == FieldNone || claimed[f] {
			return false
		}
		m[key] = f
		claimed[f] = true
		return true
	}

	for _, k := range keys {
		m[k] = FieldNone
	}

	if tmpl != nil {
		declared := tmpl.normalizedMapping()
		for _, k := range keys {
			claim(k, declared[NormalizeKey(k)])
		}
		if !tmpl.Heuristic {
			return m
		}
	}

	// exact synonyms
	for _, k := range keys {
		if m[k] != FieldNone {
			continue
		}
		claim(k, fieldSynonyms[NormalizeKey(k)])
	}

	// substring containment in either direction
	for _, k := range keys {
		if m[k] != FieldNone {
			continue
		}
		nk := NormalizeKey(k)
		if nk == "" {
			continue
		}
		for _, f := range containmentOrder {
			nf := NormalizeKey(string(f))
			if strings.Contains(nk, nf) || (utf8.RuneCountInString(nk) >= 3 && strings.Contains(nf, nk)) {
				if claim(k, f) {
					break
				}
			}
		}
	}

	return m
}

// ResolveMapping guesses a mapping for keys and lays the caller's explicit
// overrides on top. When the template reads a different format than the file,
// the overrides are discarded and an empty mapping is returned together with
// ErrTemplateMismatch; the caller must select another template or re-guess.
func ResolveMapping(keys []string, isJSON bool, tmpl *Template, overrides map[string]string) (Mapping, error) {
	if tmpl != nil && tmpl.IsJSON != isJSON {
		return Mapping{}, fmt.Errorf("%w: %s reads %s", ErrTemplateMismatch, tmpl.Name, tmpl.formatName())
	}

	m := GuessMapping(keys, tmpl)

	for _, k := range keys {
		raw, ok := overrides[k]
		if !ok {
			continue
		}
		f, err := ParseField(raw)
		if err != nil {
			return Mapping{}, err
		}
		if f != FieldNone {
			// the override steals the field from whichever key had it
			for other, assigned := range m {
				if other != k && assigned == f {
					m[other] = FieldNone
				}
			}
		}
		m[k] = f
	}

	return m, nil
}
