package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/climblog/internal/grade"
	"github.com/ignite/climblog/internal/pkg/httputil"
)

// GradeHandlers exposes grade detection and conversion.
type GradeHandlers struct{}

func NewGradeHandlers() *GradeHandlers { return &GradeHandlers{} }

func (h *GradeHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/grades", func(r chi.Router) {
		r.Get("/detect", h.HandleDetect)
		r.Get("/convert", h.HandleConvert)
		r.Get("/table", h.HandleTable)
	})
}

// HandleDetect names the grading system of a grade
// GET /api/grades/detect?grade=6a&boulder=false
func (h *GradeHandlers) HandleDetect(w http.ResponseWriter, r *http.Request) {
	g := r.URL.Query().Get("grade")
	if strings.TrimSpace(g) == "" {
		httputil.BadRequest(w, "grade is required")
		return
	}
	sys := grade.Detect(g, hintParam(r))
	httputil.OK(w, map[string]any{
		"grade":  g,
		"system": string(sys),
		"known":  sys != grade.Unknown,
	})
}

// HandleConvert converts a grade between systems. An empty from detects the
// source system.
// GET /api/grades/convert?grade=5.10a&from=yds&to=french
func (h *GradeHandlers) HandleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g := q.Get("grade")
	if strings.TrimSpace(g) == "" {
		httputil.BadRequest(w, "grade is required")
		return
	}
	from, err := grade.ParseSystem(q.Get("from"))
	if err != nil {
		respondError(w, err)
		return
	}
	to, err := grade.ParseSystem(q.Get("to"))
	if err != nil {
		respondError(w, err)
		return
	}
	if to == grade.Unknown {
		httputil.BadRequest(w, "to is required")
		return
	}

	hint := hintParam(r)
	if from == grade.Unknown {
		from = grade.Detect(g, hint)
	}
	converted := grade.Normalize(g, from, to, hint)
	httputil.OK(w, map[string]any{
		"grade":     g,
		"from":      string(from),
		"to":        string(to),
		"converted": converted,
		"changed":   converted != g,
	})
}

type gradePair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HandleTable returns a conversion table sorted by source grade
// GET /api/grades/table?from=v-scale&to=font
func (h *GradeHandlers) HandleTable(w http.ResponseWriter, r *http.Request) {
	from, err := grade.ParseSystem(r.URL.Query().Get("from"))
	if err != nil {
		respondError(w, err)
		return
	}
	to, err := grade.ParseSystem(r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, err)
		return
	}
	pairs := grade.Pairs(from, to)
	if pairs == nil {
		httputil.NotFound(w, "no conversion table between "+string(from)+" and "+string(to))
		return
	}

	out := make([]gradePair, 0, len(pairs))
	for k, v := range pairs {
		out = append(out, gradePair{From: k, To: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	httputil.OK(w, map[string]any{"from": string(from), "to": string(to), "pairs": out})
}

func hintParam(r *http.Request) grade.Hint {
	raw := r.URL.Query().Get("boulder")
	if raw == "" {
		return grade.HintNone
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return grade.HintNone
	}
	return grade.HintFor(b)
}
