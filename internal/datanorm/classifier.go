package datanorm

import (
	"strings"
	"unicode"

	"github.com/ignite/climblog/internal/domain"
)

// keywordRule matches free text case-insensitively. Word rules match a whole
// token only, for short keywords that would otherwise hit inside longer words.
type keywordRule[T any] struct {
	keyword string
	word    bool
	value   T
}

// StyleRules classify ascent style text into a send type. Rules are evaluated
// top to bottom and the first hit wins; the list is best-effort, not exhaustive.
var StyleRules = []keywordRule[domain.SendType]{
	{keyword: "onsight", value: domain.SendOnsight},
	{keyword: "on sight", value: domain.SendOnsight},
	{keyword: "on-sight", value: domain.SendOnsight},
	{keyword: "os", word: true, value: domain.SendOnsight},
	{keyword: "flash", value: domain.SendFlash},
	{keyword: "redpoint", value: domain.SendSend},
	{keyword: "red point", value: domain.SendSend},
	{keyword: "pinkpoint", value: domain.SendSend},
	{keyword: "pink point", value: domain.SendSend},
	{keyword: "rp", word: true, value: domain.SendSend},
	{keyword: "send", value: domain.SendSend},
	{keyword: "sent", value: domain.SendSend},
	{keyword: "tick", value: domain.SendSend},
	{keyword: "clean", value: domain.SendSend},
	{keyword: "top", word: true, value: domain.SendSend},
	{keyword: "fell", value: domain.SendAttempt},
	{keyword: "hung", value: domain.SendAttempt},
	{keyword: "hang", value: domain.SendAttempt},
	{keyword: "attempt", value: domain.SendAttempt},
	{keyword: "retreat", value: domain.SendAttempt},
	{keyword: "dog", value: domain.SendAttempt},
	{keyword: "project", value: domain.SendProject},
	{keyword: "working", value: domain.SendProject},
}

// TypeRules classify route-type text into a climb type.
var TypeRules = []keywordRule[domain.ClimbType]{
	{keyword: "boulder", value: domain.ClimbBoulder},
	{keyword: "bouldering", value: domain.ClimbBoulder},
	{keyword: "alpine", value: domain.ClimbAlpine},
	{keyword: "ice", word: true, value: domain.ClimbAlpine},
	{keyword: "mixed", word: true, value: domain.ClimbAlpine},
	{keyword: "trad", value: domain.ClimbTrad},
	{keyword: "sport", value: domain.ClimbSport},
	{keyword: "lead", value: domain.ClimbSport},
	{keyword: "top rope", value: domain.ClimbTopRope},
	{keyword: "toprope", value: domain.ClimbTopRope},
	{keyword: "top-rope", value: domain.ClimbTopRope},
	{keyword: "tr", word: true, value: domain.ClimbTopRope},
}

// ClassifySendType maps ascent style text to a send type. ok is false when no
// rule matches.
func ClassifySendType(text string) (domain.SendType, bool) {
	if st := domain.SendType(strings.ToLower(strings.TrimSpace(text))); st.Valid() {
		return st, true
	}
	return classify(StyleRules, text)
}

// ClassifyClimbType maps route type text to a climb type.
func ClassifyClimbType(text string) (domain.ClimbType, bool) {
	if ct := domain.ClimbType(strings.ToLower(strings.TrimSpace(text))); ct.Valid() {
		return ct, true
	}
	return classify(TypeRules, text)
}

func classify[T any](rules []keywordRule[T], text string) (T, bool) {
	var zero T
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return zero, false
	}

	var words map[string]bool
	for _, r := range rules {
		if !r.word {
			if strings.Contains(lower, r.keyword) {
				return r.value, true
			}
			continue
		}
		if words == nil {
			words = tokenSet(lower)
		}
		if words[r.keyword] {
			return r.value, true
		}
	}
	return zero, false
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[w] = true
	}
	return set
}
