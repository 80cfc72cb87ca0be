package datanorm

import (
	"strings"

	"github.com/ignite/climblog/internal/domain"
)

// rowLookup indexes a raw row by normalized header so transforms can ask for
// "Lead Style" regardless of how the export spelled it.
type rowLookup map[string]any

func lookupRow(row RawRow) rowLookup {
	idx := make(rowLookup, len(row))
	for k, v := range row {
		nk := NormalizeKey(k)
		if prev, dup := idx[nk]; dup && ToText(prev) != "" {
			continue
		}
		idx[nk] = v
	}
	return idx
}

// text returns the first non-empty value among names.
func (l rowLookup) text(names ...string) string {
	for _, n := range names {
		if s := ToText(l[NormalizeKey(n)]); s != "" {
			return s
		}
	}
	return ""
}

func (l rowLookup) raw(name string) any {
	return l[NormalizeKey(name)]
}

// setSendType stores the send type style text classifies to, if any.
func setSendType(p *Partial, style string) (domain.SendType, bool) {
	st, ok := ClassifySendType(style)
	if !ok {
		return "", false
	}
	p.Set(FieldSendType, string(st))
	return st, true
}

// Mountain Project ticks: "Lead Style" (Onsight, Flash, Redpoint, Pinkpoint,
// Fell/Hung) is more specific than "Style" (Lead, TR, Follow, Send, Attempt,
// Flash, Solo). "Your Stars" is on a 0–4 scale with -1 meaning unrated.
func mountainProjectTransform(row RawRow, _ Mapping) *Partial {
	r := lookupRow(row)
	p := NewPartial()

	style := r.text("Style")
	st, ok := setSendType(p, r.text("Lead Style"))
	if !ok {
		st, ok = setSendType(p, style)
	}
	if ok && (st == domain.SendOnsight || st == domain.SendFlash) {
		p.Set(FieldAttempts, 1)
	}

	routeType := r.text("Route Type")
	ct, typed := ClassifyClimbType(routeType)
	if s := strings.ToLower(style); (s == "tr" || s == "follow") && ct != domain.ClimbBoulder {
		ct, typed = domain.ClimbTopRope, true
	}
	if typed {
		p.Set(FieldType, string(ct))
	}

	if stars, ok := ParseNumber(r.raw("Your Stars")); ok {
		if stars >= 0 {
			p.Set(FieldRating, min(stars+1, 5))
		} else {
			p.Claim(FieldRating)
		}
	}

	return p
}

// 8a.nu ascents: category 1 is a boulder and category 0 or a missing type a
// sport route, crag and sector combined into the location, and 0 stars
// meaning unrated. Any other type text goes through the keyword table.
func eightANuTransform(row RawRow, _ Mapping) *Partial {
	r := lookupRow(row)
	p := NewPartial()

	kind := strings.ToLower(r.text("Type", "Category"))
	isBoulder := kind == "1"
	switch {
	case isBoulder:
		p.Set(FieldType, string(domain.ClimbBoulder))
	case kind == "" || kind == "0":
		p.Set(FieldType, string(domain.ClimbSport))
	default:
		if ct, ok := ClassifyClimbType(kind); ok {
			p.Set(FieldType, string(ct))
			isBoulder = ct == domain.ClimbBoulder
		}
	}

	style := r.text("Ascent Style", "Style")
	if st, ok := setSendType(p, style); ok && (st == domain.SendOnsight || st == domain.SendFlash) {
		if !hasNumber(r.raw("Tries")) {
			p.Set(FieldAttempts, 1)
		}
	}
	if ct, ok := ClassifyClimbType(style); ok && ct == domain.ClimbTopRope && !isBoulder {
		p.Set(FieldType, string(ct))
	}

	crag, sector := r.text("Crag"), r.text("Sector")
	switch {
	case crag != "" && sector != "":
		p.Set(FieldLocation, crag+" - "+sector)
	case crag != "":
		p.Set(FieldLocation, crag)
	case sector != "":
		p.Set(FieldLocation, sector)
	}

	if stars, ok := ParseNumber(r.raw("Rating")); ok && stars <= 0 {
		p.Claim(FieldRating)
	}

	return p
}

// theCrag logbook: the ascent grade wins over the route grade, "Ascent Type"
// covers both tick type and top-rope ascents, and the crag path is the
// location fallback.
func theCragTransform(row RawRow, _ Mapping) *Partial {
	r := lookupRow(row)
	p := NewPartial()

	p.Set(FieldGrade, r.text("Ascent Grade", "Route Grade"))

	ascentType := r.text("Ascent Type")
	setSendType(p, ascentType)

	if ct, ok := ClassifyClimbType(ascentType); ok && ct == domain.ClimbTopRope {
		p.Set(FieldType, string(ct))
	} else if ct, ok := ClassifyClimbType(r.text("Route Gear Style")); ok {
		p.Set(FieldType, string(ct))
	}

	if crag := r.text("Crag Name"); crag != "" {
		p.Set(FieldLocation, crag)
	} else if path := r.text("Crag Path"); path != "" {
		p.Set(FieldLocation, lastPathSegment(path))
	}

	return p
}

// Vertical-Life gym ascents: abbreviated ascent types (F, RP, OS, TR), an
// isBoulder flag and the gym doubling as location.
func verticalLifeTransform(row RawRow, _ Mapping) *Partial {
	r := lookupRow(row)
	p := NewPartial()

	isBoulder, flagged := r.raw("isBoulder").(bool)
	if !flagged {
		isBoulder = strings.Contains(strings.ToLower(r.text("type", "category")), "boulder")
	}
	if isBoulder {
		p.Set(FieldType, string(domain.ClimbBoulder))
	} else {
		p.Set(FieldType, string(domain.ClimbSport))
	}

	ascent := strings.ToLower(r.text("ascentType", "style"))
	switch ascent {
	case "f":
		p.Set(FieldSendType, string(domain.SendFlash))
	case "tr":
		p.Set(FieldSendType, string(domain.SendSend))
		if !isBoulder {
			p.Set(FieldType, string(domain.ClimbTopRope))
		}
	case "go":
		p.Set(FieldSendType, string(domain.SendAttempt))
	default:
		setSendType(p, ascent)
	}

	gym := r.text("gymName", "gym")
	wall := r.text("wallName", "wall")
	switch {
	case gym != "" && wall != "":
		p.Set(FieldLocation, gym+" - "+wall)
	case gym != "":
		p.Set(FieldLocation, gym)
	}

	return p
}

func hasNumber(raw any) bool {
	_, ok := ParseNumber(raw)
	return ok
}

func lastPathSegment(path string) string {
	fields := strings.FieldsFunc(path, func(r rune) bool { return r == '>' || r == '|' })
	if len(fields) <= 1 {
		fields = strings.Split(path, " - ")
	}
	for i := len(fields) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(fields[i]); s != "" {
			return s
		}
	}
	return strings.TrimSpace(path)
}
