// Package grade detects climbing grade systems and converts grades between the
// systems that share a conversion table.
//
// Only two axes are supported: YDS <-> French for routes and V-Scale <-> Font
// for boulders. Every other pairing returns its input unchanged.
package grade

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnknownSystem is returned by ParseSystem for unrecognized names.
var ErrUnknownSystem = errors.New("unknown grade system")

// System identifies a grading notation.
type System string

const (
	Unknown    System = ""
	YDS        System = "YDS"
	French     System = "French"
	VScale     System = "V-Scale"
	Font       System = "Font"
	UIAA       System = "UIAA"
	Australian System = "Australian"
)

// Systems lists every named system in display order.
var Systems = []System{YDS, French, VScale, Font, UIAA, Australian}

// Hint tells detection whether the grade belongs to a route or a boulder.
type Hint int

const (
	HintNone Hint = iota
	HintRoute
	HintBoulder
)

var (
	ydsPattern    = regexp.MustCompile(`^5\.\d{1,2}([a-dA-D](/[a-dA-D])?)?[+-]?$`)
	vScalePattern = regexp.MustCompile(`^[vV]([bB]|\d{1,2})([+-]|-\d{1,2})?$`)
	uiaaPattern   = regexp.MustCompile(`^(XII|XI|X|IX|VIII|VII|VI|V|IV|III|II|I)[+-]?$`)
	letterPattern = regexp.MustCompile(`^[1-9][abcABC]\+?$`)
	numberPattern = regexp.MustCompile(`^\d{1,2}\+?$`)
)

// Detect returns the grading system of g, or Unknown when the pattern is
// missing or ambiguous for the given hint.
func Detect(g string, hint Hint) System {
	g = strings.TrimSpace(g)
	if g == "" {
		return Unknown
	}

	switch {
	case strings.HasPrefix(g, "5.") && ydsPattern.MatchString(g):
		return YDS
	case vScalePattern.MatchString(g):
		return VScale
	case uiaaPattern.MatchString(g):
		return UIAA
	case letterPattern.MatchString(g):
		switch hint {
		case HintBoulder:
			return Font
		case HintRoute:
			return French
		}
		return Unknown
	case numberPattern.MatchString(g):
		switch hint {
		case HintBoulder:
			if _, ok := fontToV[strings.ToUpper(g)]; ok {
				return Font
			}
		case HintRoute:
			if !strings.HasSuffix(g, "+") {
				return Australian
			}
		}
		return Unknown
	}
	return Unknown
}

// Normalize converts g from one system to another. An Unknown source system
// is detected first. The input is returned unchanged when the source cannot be
// determined, when both systems are equal, when the pairing has no table, or
// when the token is not in the table.
func Normalize(g string, from, to System, hint Hint) string {
	if from != Unknown && from == to {
		return g
	}
	if to == Unknown {
		return g
	}
	if from == Unknown {
		from = Detect(g, hint)
		if from == Unknown || from == to {
			return g
		}
	}

	key := strings.TrimSpace(g)
	var table map[string]string
	switch {
	case from == YDS && to == French:
		table, key = ydsToFrench, strings.ToLower(key)
	case from == French && to == YDS:
		table, key = frenchToYDS, strings.ToLower(key)
	case from == VScale && to == Font:
		table, key = vToFont, strings.ToUpper(key)
	case from == Font && to == VScale:
		table, key = fontToV, strings.ToUpper(key)
	default:
		return g
	}

	if converted, ok := table[key]; ok {
		return converted
	}
	return g
}

// Supported reports whether a conversion table exists from one system to the other.
func Supported(from, to System) bool {
	return tableFor(from, to) != nil
}

// Pairs returns a copy of the conversion table from one system to another,
// or nil when the pairing is unsupported.
func Pairs(from, to System) map[string]string {
	t := tableFor(from, to)
	if t == nil {
		return nil
	}
	out := make(map[string]string, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

func tableFor(from, to System) map[string]string {
	switch {
	case from == YDS && to == French:
		return ydsToFrench
	case from == French && to == YDS:
		return frenchToYDS
	case from == VScale && to == Font:
		return vToFont
	case from == Font && to == VScale:
		return fontToV
	}
	return nil
}

// ParseSystem resolves a user-supplied system name.
func ParseSystem(s string) (System, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Unknown, nil
	case "yds", "yosemite":
		return YDS, nil
	case "french", "fr", "sport":
		return French, nil
	case "v", "v-scale", "vscale", "hueco":
		return VScale, nil
	case "font", "fontainebleau", "fb":
		return Font, nil
	case "uiaa":
		return UIAA, nil
	case "australian", "ewbank", "au":
		return Australian, nil
	}
	return Unknown, fmt.Errorf("%w %q", ErrUnknownSystem, s)
}

// HintFor maps a boulder flag to a detection hint.
func HintFor(isBoulder bool) Hint {
	if isBoulder {
		return HintBoulder
	}
	return HintRoute
}

// ForDiscipline returns the partner notation of s for the given discipline:
// YDS pairs with V-Scale and French with Font. Systems without a partner are
// returned unchanged.
func ForDiscipline(s System, isBoulder bool) System {
	switch s {
	case YDS, VScale:
		if isBoulder {
			return VScale
		}
		return YDS
	case French, Font:
		if isBoulder {
			return Font
		}
		return French
	}
	return s
}
