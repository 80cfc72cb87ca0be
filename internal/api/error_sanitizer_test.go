package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/climblog/internal/datanorm"
	"github.com/ignite/climblog/internal/pkg/httputil"
	"github.com/ignite/climblog/internal/service/climbimport"
	"github.com/ignite/climblog/internal/storage"
	"github.com/ignite/climblog/internal/worker"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantTag  string
	}{
		{climbimport.ErrMissingUser, http.StatusBadRequest, "missing_user"},
		{fmt.Errorf("lookup: %w", datanorm.ErrUnknownTemplate), http.StatusBadRequest, "unknown_template"},
		{fmt.Errorf("fetch: %w", storage.ErrObjectTooLarge), http.StatusRequestEntityTooLarge, "too_large"},
		{worker.ErrImportInProgress, http.StatusConflict, "import_in_progress"},
		{storage.ErrNotConfigured, http.StatusServiceUnavailable, "not_configured"},
		{worker.ErrJobNotFound, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		respondError(rec, tt.err)
		assert.Equal(t, tt.wantCode, rec.Code, tt.err.Error())

		var body httputil.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.wantTag, body.Code)
	}
}

func TestRespondError_ParseError(t *testing.T) {
	_, err := datanorm.Parse([]byte(""), datanorm.FileHint{Name: "a.csv"})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	respondError(rec, err)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "CSV Parsing Error")
}
