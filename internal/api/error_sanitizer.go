package api

import (
	"errors"
	"net/http"

	"github.com/ignite/climblog/internal/datanorm"
	"github.com/ignite/climblog/internal/grade"
	"github.com/ignite/climblog/internal/pkg/httputil"
	"github.com/ignite/climblog/internal/service/climbimport"
	"github.com/ignite/climblog/internal/storage"
	"github.com/ignite/climblog/internal/worker"
)

// =============================================================================
// ERROR SANITIZER
// Maps domain errors onto HTTP statuses. Client errors carry their message;
// anything unrecognized is logged and answered with a generic 500 so driver
// and SDK details never reach the caller.
// =============================================================================

type errorRule struct {
	target error
	status int
	code   string
}

var errorRules = []errorRule{
	{climbimport.ErrMissingUser, http.StatusBadRequest, "missing_user"},
	{datanorm.ErrUnknownTemplate, http.StatusBadRequest, "unknown_template"},
	{datanorm.ErrTemplateMismatch, http.StatusUnprocessableEntity, "template_mismatch"},
	{datanorm.ErrUnknownField, http.StatusBadRequest, "unknown_field"},
	{grade.ErrUnknownSystem, http.StatusBadRequest, "unknown_grade_system"},
	{storage.ErrInvalidKey, http.StatusBadRequest, "invalid_key"},
	{storage.ErrObjectTooLarge, http.StatusRequestEntityTooLarge, "too_large"},
	{storage.ErrRemoteStatus, http.StatusBadGateway, "remote_error"},
	{worker.ErrImportInProgress, http.StatusConflict, "import_in_progress"},
	{worker.ErrSourceNotConfigured, http.StatusServiceUnavailable, "not_configured"},
	{storage.ErrNotConfigured, http.StatusServiceUnavailable, "not_configured"},
	{worker.ErrJobNotFound, http.StatusNotFound, "not_found"},
}

// respondError writes the status matching err.
func respondError(w http.ResponseWriter, err error) {
	var pe *datanorm.ParseError
	if errors.As(err, &pe) {
		httputil.ErrorWithCode(w, http.StatusUnprocessableEntity, "parse_error", pe.Error(), pe.Messages())
		return
	}
	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			httputil.ErrorWithCode(w, rule.status, rule.code, err.Error(), nil)
			return
		}
	}
	httputil.InternalError(w, err)
}
