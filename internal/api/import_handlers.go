package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/climblog/internal/datanorm"
	"github.com/ignite/climblog/internal/domain"
	"github.com/ignite/climblog/internal/pkg/httputil"
	"github.com/ignite/climblog/internal/service/climbimport"
	"github.com/ignite/climblog/internal/validation"
	"github.com/ignite/climblog/internal/worker"
)

// =============================================================================
// CLIMB IMPORT HANDLERS
// =============================================================================
// HTTP handlers for the import API:
// - template catalog and mapping suggestions
// - file preview before committing
// - direct, S3 and URL imports with job progress
// - the batch import of already-normalized records

const (
	defaultPreviewRows = 20
	maxPreviewRows     = 200
)

// ClimbImporter imports a batch of normalized records.
type ClimbImporter interface {
	ImportClimbs(ctx context.Context, req climbimport.ImportRequest) (*domain.ImportResult, error)
}

// UploadProcessor runs exports through the upload pipeline.
type UploadProcessor interface {
	ProcessFile(ctx context.Context, req worker.UploadRequest, content []byte) (*domain.ImportJob, error)
	ProcessObject(ctx context.Context, req worker.UploadRequest, key string) (*domain.ImportJob, error)
	ProcessURL(ctx context.Context, req worker.UploadRequest, rawURL string) (*domain.ImportJob, error)
	GetJob(ctx context.Context, id string) (*domain.ImportJob, error)
}

// ClimbLister pages through a user's climbs.
type ClimbLister interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Climb, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// ImportHandlers provides HTTP handlers for climb imports.
type ImportHandlers struct {
	importer       ClimbImporter
	uploads        UploadProcessor
	climbs         ClimbLister
	maxUploadBytes int64
}

func NewImportHandlers(importer ClimbImporter, uploads UploadProcessor, climbs ClimbLister, maxUploadBytes int64) *ImportHandlers {
	return &ImportHandlers{importer: importer, uploads: uploads, climbs: climbs, maxUploadBytes: maxUploadBytes}
}

// RegisterRoutes registers the import routes
func (h *ImportHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/import", func(r chi.Router) {
		r.Get("/templates", h.HandleListTemplates)
		r.Post("/mapping", h.HandleSuggestMapping)
		r.Post("/preview", h.HandlePreview)

		r.Post("/upload", h.HandleUpload)
		r.Post("/s3", h.HandleImportObject)
		r.Post("/url", h.HandleImportURL)
		r.Get("/jobs/{jobId}", h.HandleGetJob)

		r.Post("/climbs", h.HandleImportClimbs)
	})
	r.Get("/climbs", h.HandleListClimbs)
}

// =============================================================================
// TEMPLATES AND MAPPING
// =============================================================================

type templateInfo struct {
	SourceType  string            `json:"sourceType"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	IsJSON      bool              `json:"isJson"`
	GradeSystem string            `json:"gradeSystem,omitempty"`
	Mapping     map[string]string `json:"mapping"`
}

// HandleListTemplates returns the template catalog
// GET /api/import/templates
func (h *ImportHandlers) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates := datanorm.Templates()
	out := make([]templateInfo, 0, len(templates))
	for _, t := range templates {
		mapping := make(map[string]string, len(t.Mapping))
		for k, f := range t.Mapping {
			mapping[k] = string(f)
		}
		out = append(out, templateInfo{
			SourceType:  t.SourceType,
			Name:        t.Name,
			Description: t.Description,
			IsJSON:      t.IsJSON,
			GradeSystem: string(t.GradeSystem),
			Mapping:     mapping,
		})
	}

	fields := make([]string, len(datanorm.CanonicalFields))
	for i, f := range datanorm.CanonicalFields {
		fields[i] = string(f)
	}
	httputil.OK(w, map[string]any{
		"templates": out,
		"fields":    fields,
	})
}

type mappingRequest struct {
	Keys       []string          `json:"keys"`
	IsJSON     bool              `json:"isJson"`
	SourceType string            `json:"sourceType"`
	Overrides  map[string]string `json:"overrides"`
}

type mappingResponse struct {
	Mapping       map[string]string `json:"mapping"`
	Missing       []string          `json:"missing"`
	TemplateReset bool              `json:"templateReset"`
	Message       string            `json:"message,omitempty"`
}

// HandleSuggestMapping guesses a column mapping for a set of source keys.
// A template that reads a different format resets the mapping instead of
// failing, so the client can pick another template.
// POST /api/import/mapping
func (h *ImportHandlers) HandleSuggestMapping(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if !httputil.Decode(w, r, &req, 1<<20) {
		return
	}
	tmpl, err := datanorm.ResolveTemplate(req.SourceType)
	if err != nil {
		respondError(w, err)
		return
	}

	resp, err := resolveMapping(req.Keys, req.IsJSON, tmpl, req.Overrides)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, resp)
}

func resolveMapping(keys []string, isJSON bool, tmpl *datanorm.Template, overrides map[string]string) (mappingResponse, error) {
	m, err := datanorm.ResolveMapping(keys, isJSON, tmpl, overrides)
	if errors.Is(err, datanorm.ErrTemplateMismatch) {
		return mappingResponse{Mapping: map[string]string{}, Missing: []string{}, TemplateReset: true, Message: err.Error()}, nil
	}
	if err != nil {
		return mappingResponse{}, err
	}
	missing := []string{}
	for _, f := range m.Missing() {
		missing = append(missing, string(f))
	}
	return mappingResponse{Mapping: m.Strings(), Missing: missing}, nil
}

// =============================================================================
// PREVIEW
// =============================================================================

type previewRecord struct {
	Row    int             `json:"row"`
	Record domain.CsvClimb `json:"record"`
	Errors []string        `json:"errors,omitempty"`
}

type previewResponse struct {
	Format    datanorm.Format `json:"format"`
	IsJSON    bool            `json:"isJson"`
	Keys      []string        `json:"keys"`
	TotalRows int             `json:"totalRows"`
	mappingResponse
	Records []previewRecord `json:"records"`
}

// HandlePreview parses an upload and shows how its first rows would import.
// Nothing is written.
// POST /api/import/preview (multipart: file, sourceType, overrides, limit)
func (h *ImportHandlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	tmpl, err := datanorm.ResolveTemplate(up.req.SourceType)
	if err != nil {
		respondError(w, err)
		return
	}

	file, err := datanorm.Parse(up.content, datanorm.FileHint{
		Name:        up.req.FileName,
		ContentType: up.req.ContentType,
		ForceJSON:   tmpl != nil && tmpl.IsJSON,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	mr, err := resolveMapping(file.Keys, file.IsJSON, tmpl, up.req.Overrides)
	if err != nil {
		respondError(w, err)
		return
	}
	resp := previewResponse{
		Format:          file.Format,
		IsJSON:          file.IsJSON,
		Keys:            file.Keys,
		TotalRows:       len(file.Rows),
		mappingResponse: mr,
		Records:         []previewRecord{},
	}
	if mr.TemplateReset {
		httputil.OK(w, resp)
		return
	}

	limit, _ := strconv.Atoi(r.FormValue("limit"))
	if limit < 1 {
		limit = defaultPreviewRows
	}
	limit = min(limit, maxPreviewRows, len(file.Rows))

	mapping := make(datanorm.Mapping, len(mr.Mapping))
	for k, f := range mr.Mapping {
		mapping[k] = datanorm.CanonicalField(f)
	}
	for i := 0; i < limit; i++ {
		rec := datanorm.BuildRecord(file.Rows[i], file.Keys, mapping, tmpl)
		resp.Records = append(resp.Records, previewRecord{
			Row:    file.RowNumber(i),
			Record: rec,
			Errors: validation.ValidateClimb(rec),
		})
	}
	httputil.OK(w, resp)
}

// =============================================================================
// IMPORTS
// =============================================================================

// HandleUpload imports an uploaded export file.
// POST /api/import/upload (multipart: file, userId, sessionId, sourceType,
// overrides, targetGradeSystem, dryRun)
func (h *ImportHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	job, err := h.uploads.ProcessFile(r.Context(), up.req, up.content)
	h.respondJob(w, job, err)
}

type remoteImportRequest struct {
	worker.UploadRequest
	Key string `json:"key"`
	URL string `json:"url"`
}

// HandleImportObject imports an export stored in the S3 bucket.
// POST /api/import/s3
func (h *ImportHandlers) HandleImportObject(w http.ResponseWriter, r *http.Request) {
	var req remoteImportRequest
	if !httputil.Decode(w, r, &req, 1<<20) {
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		httputil.BadRequest(w, "key is required")
		return
	}
	job, err := h.uploads.ProcessObject(r.Context(), req.UploadRequest, req.Key)
	h.respondJob(w, job, err)
}

// HandleImportURL imports an export published at a URL.
// POST /api/import/url
func (h *ImportHandlers) HandleImportURL(w http.ResponseWriter, r *http.Request) {
	var req remoteImportRequest
	if !httputil.Decode(w, r, &req, 1<<20) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		httputil.BadRequest(w, "url is required")
		return
	}
	job, err := h.uploads.ProcessURL(r.Context(), req.UploadRequest, req.URL)
	h.respondJob(w, job, err)
}

// respondJob returns the job even when the pipeline failed after the job
// started, so the client can show the partial result.
func (h *ImportHandlers) respondJob(w http.ResponseWriter, job *domain.ImportJob, err error) {
	if err != nil && job == nil {
		respondError(w, err)
		return
	}
	if err != nil {
		httputil.ErrorWithCode(w, http.StatusUnprocessableEntity, "import_failed", err.Error(), job)
		return
	}
	httputil.OK(w, job)
}

// HandleGetJob returns the progress of an import job
// GET /api/import/jobs/{jobId}
func (h *ImportHandlers) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.uploads.GetJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, job)
}

type importClimbsRequest struct {
	UserID        string            `json:"userId"`
	SessionID     string            `json:"sessionId"`
	PreParsedData []domain.CsvClimb `json:"preParsedData"`
}

// HandleImportClimbs imports records that were already parsed and mapped on
// the client.
// POST /api/import/climbs
func (h *ImportHandlers) HandleImportClimbs(w http.ResponseWriter, r *http.Request) {
	var req importClimbsRequest
	if !httputil.Decode(w, r, &req, h.maxUploadBytes) {
		return
	}
	result, err := h.importer.ImportClimbs(r.Context(), climbimport.ImportRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Records:   req.PreParsedData,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, result)
}

// HandleListClimbs pages through a user's climbs
// GET /api/climbs?userId=...&page=1&limit=50 (or &offset=)
func (h *ImportHandlers) HandleListClimbs(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		httputil.BadRequest(w, "userId is required")
		return
	}
	p := ParsePageRequest(r, 50, 500)

	climbs, err := h.climbs.ListByUser(r.Context(), userID, p.Limit, p.Offset)
	if err != nil {
		respondError(w, err)
		return
	}
	total, err := h.climbs.CountByUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, NewPage(climbs, p, total))
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

type upload struct {
	req     worker.UploadRequest
	content []byte
}

// readUpload reads the multipart file and form fields shared by preview and
// upload. It writes the error response itself.
func (h *ImportHandlers) readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, false
		}
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return nil, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file is required")
		return nil, false
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		httputil.BadRequest(w, "could not read file")
		return nil, false
	}

	req := worker.UploadRequest{
		UserID:            r.FormValue("userId"),
		SessionID:         r.FormValue("sessionId"),
		SourceType:        r.FormValue("sourceType"),
		FileName:          header.Filename,
		ContentType:       header.Header.Get("Content-Type"),
		TargetGradeSystem: r.FormValue("targetGradeSystem"),
	}
	req.DryRun, _ = strconv.ParseBool(r.FormValue("dryRun"))
	if raw := r.FormValue("overrides"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Overrides); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("overrides must be a JSON object: %v", err))
			return nil, false
		}
	}
	return &upload{req: req, content: content}, true
}

