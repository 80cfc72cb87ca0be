package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/climblog/internal/domain"
	"github.com/ignite/climblog/internal/pkg/httputil"
	"github.com/ignite/climblog/internal/service/climbimport"
	"github.com/ignite/climblog/internal/worker"
)

// memRepo is an in-memory climb repository for testing.
type memRepo struct {
	mu     sync.Mutex
	climbs []domain.Climb
}

func (m *memRepo) FindDuplicate(_ context.Context, k climbimport.DuplicateKey) (*domain.Climb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.climbs {
		c := &m.climbs[i]
		if c.UserID == k.UserID && c.Name == k.Name && c.Grade == k.Grade &&
			c.Date.Format(domain.DateLayout) == k.Date && c.Location == k.Location {
			return c, nil
		}
	}
	return nil, nil
}

func (m *memRepo) InsertClimb(_ context.Context, c *domain.Climb) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.climbs = append(m.climbs, *c)
	return nil
}

func (m *memRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Climb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Climb
	for _, c := range m.climbs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (m *memRepo) CountByUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.climbs {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

// stubUploads records requests and returns canned jobs.
type stubUploads struct {
	lastReq     worker.UploadRequest
	lastContent []byte
	lastKey     string
	job         *domain.ImportJob
	err         error
}

func (s *stubUploads) ProcessFile(_ context.Context, req worker.UploadRequest, content []byte) (*domain.ImportJob, error) {
	s.lastReq, s.lastContent = req, content
	return s.job, s.err
}

func (s *stubUploads) ProcessObject(_ context.Context, req worker.UploadRequest, key string) (*domain.ImportJob, error) {
	s.lastReq, s.lastKey = req, key
	return s.job, s.err
}

func (s *stubUploads) ProcessURL(_ context.Context, req worker.UploadRequest, rawURL string) (*domain.ImportJob, error) {
	s.lastReq, s.lastKey = req, rawURL
	return s.job, s.err
}

func (s *stubUploads) GetJob(_ context.Context, id string) (*domain.ImportJob, error) {
	if s.job != nil && s.job.ID == id {
		return s.job, nil
	}
	return nil, worker.ErrJobNotFound
}

func setupImportAPI(t *testing.T) (http.Handler, *memRepo, *stubUploads) {
	t.Helper()
	repo := &memRepo{}
	uploads := &stubUploads{}
	h := NewImportHandlers(climbimport.NewService(repo, climbimport.Options{}), uploads, repo, 1<<20)
	router := SetupRoutes(nil, []string{"*"}, h, NewGradeHandlers())
	return router, repo, uploads
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, path, fileName, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestListTemplates(t *testing.T) {
	router, _, _ := setupImportAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/import/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Templates []templateInfo `json:"templates"`
		Fields    []string       `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Templates, 6)
	assert.Equal(t, "mountainProject", body.Templates[0].SourceType)
	assert.Equal(t, "YDS", body.Templates[0].GradeSystem)
	assert.Equal(t, "name", body.Fields[0])
}

func TestSuggestMapping(t *testing.T) {
	router, _, _ := setupImportAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/import/mapping", mappingRequest{
		Keys:       []string{"Date", "Route", "Rating", "Location", "Lead Style", "Route Type"},
		SourceType: "mountainProject",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp mappingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "name", resp.Mapping["Route"])
	assert.Equal(t, "grade", resp.Mapping["Rating"])
	assert.False(t, resp.TemplateReset)
	assert.Empty(t, resp.Missing)
}

func TestSuggestMapping_TemplateMismatchResets(t *testing.T) {
	router, _, _ := setupImportAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/import/mapping", mappingRequest{
		Keys:       []string{"name"},
		IsJSON:     false,
		SourceType: "verticalLife",
		Overrides:  map[string]string{"name": "name"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp mappingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.TemplateReset)
	assert.Empty(t, resp.Mapping)
}

func TestSuggestMapping_BadInput(t *testing.T) {
	router, _, _ := setupImportAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/import/mapping", mappingRequest{Keys: []string{"a"}, SourceType: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/import/mapping", mappingRequest{
		Keys:      []string{"a"},
		Overrides: map[string]string{"a": "wingspan"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unknown_field", body.Code)
}

func TestPreview(t *testing.T) {
	router, repo, _ := setupImportAPI(t)

	csv := "name,grade,type,send_type,date,location\n" +
		"Arête,5.10a,sport,send,2024-05-01,Smith Rock\n" +
		",,,,,\n" +
		"Roof,V4,boulder,flash,not-a-date,Gym\n"
	req := multipartRequest(t, "/api/import/preview", "climbs.csv", csv, map[string]string{"sourceType": "generic"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp previewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CSV", string(resp.Format))
	assert.Equal(t, 2, resp.TotalRows)
	require.Len(t, resp.Records, 2)
	assert.Equal(t, 2, resp.Records[0].Row)
	assert.Empty(t, resp.Records[0].Errors)
	assert.Equal(t, "Arête", resp.Records[0].Record.Name)
	assert.Equal(t, 4, resp.Records[1].Row, "the blank row still counts")
	assert.Contains(t, resp.Records[1].Errors, "date must be a valid date in YYYY-MM-DD format")

	assert.Empty(t, repo.climbs, "preview must not write")
}

func TestPreview_ParseError(t *testing.T) {
	router, _, _ := setupImportAPI(t)

	req := multipartRequest(t, "/api/import/preview", "bad.csv", "name,grade\n\"Bad \"quote\" here\",5.9\n", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Code    string   `json:"code"`
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "parse_error", body.Code)
	require.NotEmpty(t, body.Details)
	assert.True(t, strings.HasPrefix(body.Details[0], "CSV Parsing Error: "))
}

func TestPreview_MissingFile(t *testing.T) {
	router, _, _ := setupImportAPI(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("sourceType", "generic")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload(t *testing.T) {
	router, _, uploads := setupImportAPI(t)
	uploads.job = &domain.ImportJob{ID: "job-1", Status: domain.ImportCompleted, Result: &domain.ImportResult{SuccessCount: 1, Errors: []string{}}}

	req := multipartRequest(t, "/api/import/upload", "ticks.csv", "Date,Route\n", map[string]string{
		"userId":            "user-1",
		"sourceType":        "mountainProject",
		"targetGradeSystem": "french",
		"dryRun":            "true",
		"overrides":         `{"Route":"name"}`,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "user-1", uploads.lastReq.UserID)
	assert.Equal(t, "ticks.csv", uploads.lastReq.FileName)
	assert.True(t, uploads.lastReq.DryRun)
	assert.Equal(t, "french", uploads.lastReq.TargetGradeSystem)
	assert.Equal(t, "name", uploads.lastReq.Overrides["Route"])
	assert.Equal(t, "Date,Route\n", string(uploads.lastContent))

	var job domain.ImportJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "job-1", job.ID)
}

func TestUpload_Errors(t *testing.T) {
	router, _, uploads := setupImportAPI(t)

	uploads.err = worker.ErrImportInProgress
	req := multipartRequest(t, "/api/import/upload", "ticks.csv", "a\n", map[string]string{"userId": "u"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	uploads.err = errors.New("connection refused")
	req = multipartRequest(t, "/api/import/upload", "ticks.csv", "a\n", map[string]string{"userId": "u"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")

	req = multipartRequest(t, "/api/import/upload", "ticks.csv", "a\n", map[string]string{"overrides": "{not json"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	repo := &memRepo{}
	h := NewImportHandlers(climbimport.NewService(repo, climbimport.Options{}), &stubUploads{}, repo, 64)
	router := SetupRoutes(nil, []string{"*"}, h)

	req := multipartRequest(t, "/api/import/upload", "big.csv", strings.Repeat("x", 1024), map[string]string{"userId": "u"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestImportObjectAndURL(t *testing.T) {
	router, _, uploads := setupImportAPI(t)
	uploads.job = &domain.ImportJob{ID: "job-2", Status: domain.ImportCompleted}

	rec := doJSON(t, router, http.MethodPost, "/api/import/s3", map[string]any{"userId": "u", "key": "exports/a.csv", "sourceType": "theCrag"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "exports/a.csv", uploads.lastKey)
	assert.Equal(t, "theCrag", uploads.lastReq.SourceType)

	rec = doJSON(t, router, http.MethodPost, "/api/import/s3", map[string]any{"userId": "u"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/import/url", map[string]any{"userId": "u", "url": "https://example.com/ticks.csv"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com/ticks.csv", uploads.lastKey)

	uploads.job, uploads.err = nil, worker.ErrSourceNotConfigured
	rec = doJSON(t, router, http.MethodPost, "/api/import/url", map[string]any{"userId": "u", "url": "https://example.com/ticks.csv"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestImportFailureReturnsJob(t *testing.T) {
	router, _, uploads := setupImportAPI(t)
	uploads.job = &domain.ImportJob{ID: "job-3", Status: domain.ImportFailed}
	uploads.err = context.Canceled

	rec := doJSON(t, router, http.MethodPost, "/api/import/s3", map[string]any{"userId": "u", "key": "a.csv"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "job-3")
}

func TestGetJob(t *testing.T) {
	router, _, uploads := setupImportAPI(t)
	uploads.job = &domain.ImportJob{ID: "job-4", Status: domain.ImportProcessing, TotalRows: 10, ProcessedRows: 3}

	rec := doJSON(t, router, http.MethodGet, "/api/import/jobs/job-4", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed_rows":3`)

	rec = doJSON(t, router, http.MethodGet, "/api/import/jobs/other", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportClimbs(t *testing.T) {
	router, repo, _ := setupImportAPI(t)

	body := map[string]any{
		"userId":    "user-1",
		"sessionId": "session-9",
		"preParsedData": []map[string]any{
			{"name": "Arête", "grade": "5.10a", "type": "sport", "send_type": "send", "date": "2024-05-01", "location": "Smith Rock", "attempts": 2},
			{"name": "Arête", "grade": "5.10a", "type": "sport", "send_type": "send", "date": "2024-05-01", "location": "Smith Rock"},
			{"name": "", "grade": "V4", "type": "boulder", "send_type": "flash", "date": "2024-05-01", "location": "Gym"},
		},
	}
	rec := doJSON(t, router, http.MethodPost, "/api/import/climbs", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result domain.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.ErrorCount)
	assert.Equal(t, "Row 3: Duplicate climb already exists - Arête", result.Errors[0])
	assert.True(t, strings.HasPrefix(result.Errors[1], "Row 4: Validation failed - "))

	require.Len(t, repo.climbs, 1)
	require.NotNil(t, repo.climbs[0].SessionID)
	assert.Equal(t, "session-9", *repo.climbs[0].SessionID)
}

func TestImportClimbs_MissingUser(t *testing.T) {
	router, _, _ := setupImportAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/import/climbs", map[string]any{"preParsedData": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListClimbs(t *testing.T) {
	router, repo, _ := setupImportAPI(t)
	for i := 0; i < 3; i++ {
		repo.climbs = append(repo.climbs, domain.Climb{ID: string(rune('a' + i)), UserID: "user-1", Date: time.Now()})
	}
	repo.climbs = append(repo.climbs, domain.Climb{ID: "z", UserID: "user-2"})

	rec := doJSON(t, router, http.MethodGet, "/api/climbs?userId=user-1&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Page[domain.Climb]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasMore)

	rec = doJSON(t, router, http.MethodGet, "/api/climbs?userId=user-1&limit=2&offset=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 2, resp.Pagination.Page)
	assert.False(t, resp.Pagination.HasMore)

	rec = doJSON(t, router, http.MethodGet, "/api/climbs?userId=nobody", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)

	rec = doJSON(t, router, http.MethodGet, "/api/climbs", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
