package climbimport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/climblog/internal/domain"
	"github.com/ignite/climblog/internal/pkg/logger"
	"github.com/ignite/climblog/internal/validation"
)

// firstDataRow is the spreadsheet row number of the first record; row 1 is
// the header.
const firstDataRow = 2

const (
	phaseDuplicateCheck = "duplicate check"
	phaseInsert         = "insert"
)

// Options tunes the importer.
type Options struct {
	// FailClosedOnLookupError records a row as failed when the duplicate
	// lookup errors, instead of inserting it as if no duplicate existed.
	FailClosedOnLookupError bool
}

// ImportRequest is one batch of already-normalized records.
type ImportRequest struct {
	UserID    string
	SessionID string
	Records   []domain.CsvClimb

	// RowNumbers is the source row of each record, as a spreadsheet numbers
	// it. When nil, records are numbered from row 2 in slice order.
	RowNumbers []int

	// OnProgress, when set, is called after each row with the number of rows
	// processed so far.
	OnProgress func(processed, total int)
}

// Service implements the batch climb importer. It is safe for concurrent
// use; each call owns its own result.
type Service struct {
	repo    Repository
	checker *DuplicateChecker
	opts    Options
}

// NewService creates an import service backed by the given repository.
func NewService(repo Repository, opts Options) *Service {
	return &Service{repo: repo, checker: NewDuplicateChecker(repo), opts: opts}
}

// ImportClimbs validates, deduplicates and inserts every record in order.
// Per-row failures never stop the batch; they are counted and described in
// the result. The only request-level errors are a missing user id and a
// cancelled context, in which case the partial result is returned as well.
func (s *Service) ImportClimbs(ctx context.Context, req ImportRequest) (*domain.ImportResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, ErrMissingUser
	}

	result := domain.NewImportResult()
	total := len(req.Records)
	start := time.Now()

	for i, rec := range req.Records {
		if err := ctx.Err(); err != nil {
			logger.Warn("climb import cancelled", "user_id", userID, "processed", i, "total", total)
			return result, err
		}

		s.importRow(ctx, userID, req.SessionID, rowNumber(req.RowNumbers, i), rec, result)

		if req.OnProgress != nil {
			req.OnProgress(i+1, total)
		}
	}

	logger.Info("climb import finished",
		"user_id", userID,
		"total", total,
		"success", result.SuccessCount,
		"errors", result.ErrorCount,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// ValidateRecords checks every record without touching the repository. A
// valid record counts as a success, so the result previews an import.
// rowNumbers follows ImportRequest.RowNumbers.
func ValidateRecords(records []domain.CsvClimb, rowNumbers []int) *domain.ImportResult {
	result := domain.NewImportResult()
	for i, rec := range records {
		if msgs := validation.ValidateClimb(rec); len(msgs) > 0 {
			result.Fail(validationFailed(rowNumber(rowNumbers, i), msgs))
			continue
		}
		result.SuccessCount++
	}
	return result
}

func rowNumber(rowNumbers []int, i int) int {
	if i < len(rowNumbers) {
		return rowNumbers[i]
	}
	return i + firstDataRow
}

func validationFailed(row int, msgs []string) string {
	return fmt.Sprintf("Row %d: Validation failed - %s", row, strings.Join(msgs, ", "))
}

func (s *Service) importRow(ctx context.Context, userID, sessionID string, row int, rec domain.CsvClimb, result *domain.ImportResult) {
	if msgs := validation.ValidateClimb(rec); len(msgs) > 0 {
		result.Fail(validationFailed(row, msgs))
		return
	}

	name := strings.TrimSpace(rec.Name)

	var existing *domain.Climb
	err := guard(func() error {
		var err error
		existing, err = s.checker.Find(ctx, KeyFor(userID, rec))
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrLookupFailed) && !s.opts.FailClosedOnLookupError:
		logger.Warn("inserting without duplicate check", "user_id", userID, "row", row)
	case errors.Is(err, ErrIncompleteKey):
	default:
		result.Fail(unexpected(row, name, phaseDuplicateCheck, err))
		return
	}
	if existing != nil {
		result.Fail(fmt.Sprintf("Row %d: Duplicate climb already exists - %s", row, name))
		return
	}

	climb, err := ToClimb(userID, sessionID, rec)
	if err != nil {
		result.Fail(fmt.Sprintf("Row %d: Validation failed - %s", row, err))
		return
	}

	if err := guard(func() error { return s.repo.InsertClimb(ctx, climb) }); err != nil {
		var pe *panicError
		if errors.As(err, &pe) {
			result.Fail(unexpected(row, name, phaseInsert, err))
			return
		}
		logger.Error("climb insert failed", "user_id", userID, "row", row, "error", err)
		result.Fail(fmt.Sprintf("Row %d: Error inserting climb \"%s\": %s", row, name, err))
		return
	}

	result.SuccessCount++
}

// panicError carries a value recovered from a panicking repository call.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprint(e.value)
}

// guard runs fn and turns a panic into a *panicError.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return fn()
}

func unexpected(row int, name, phase string, err error) string {
	logger.Error("unexpected error during climb import", "row", row, "phase", phase, "error", err)
	return fmt.Sprintf("Row %d (Climb: \"%s\"): Unexpected error during %s: %s", row, name, phase, err)
}

// ToClimb converts a validated record into the persisted shape.
func ToClimb(userID, sessionID string, rec domain.CsvClimb) (*domain.Climb, error) {
	date, err := time.Parse(domain.DateLayout, strings.TrimSpace(rec.Date))
	if err != nil {
		return nil, fmt.Errorf("date %q: %w", rec.Date, err)
	}

	c := &domain.Climb{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            strings.TrimSpace(rec.Name),
		Grade:           strings.TrimSpace(rec.Grade),
		Type:            rec.Type,
		SendType:        rec.SendType,
		Date:            date,
		Location:        strings.TrimSpace(rec.Location),
		Notes:           strings.TrimSpace(rec.Notes),
		Color:           strings.TrimSpace(rec.Color),
		Gym:             strings.TrimSpace(rec.Gym),
		Country:         strings.TrimSpace(rec.Country),
		Skills:          nonNil(rec.Skills),
		PhysicalSkills:  nonNil(rec.PhysicalSkills),
		TechnicalSkills: nonNil(rec.TechnicalSkills),
		StiffnessNote:   strings.TrimSpace(rec.StiffnessNote),
		CreatedAt:       time.Now().UTC(),
	}
	if sid := strings.TrimSpace(sessionID); sid != "" {
		c.SessionID = &sid
	}

	if rec.Attempts.IsSet() {
		n, ok := rec.Attempts.Int()
		if !ok {
			return nil, fmt.Errorf("attempts %q is not an integer", rec.Attempts)
		}
		c.Attempts = &n
	}
	if c.Rating, err = optionalFloat("rating", rec.Rating); err != nil {
		return nil, err
	}
	if c.ElevationGain, err = optionalFloat("elevation_gain", rec.ElevationGain); err != nil {
		return nil, err
	}
	if c.Stiffness, err = optionalFloat("stiffness", rec.Stiffness); err != nil {
		return nil, err
	}
	if rec.Duration.IsSet() {
		secs, ok := validation.ParseDurationSeconds(rec.Duration.String())
		if !ok {
			return nil, fmt.Errorf("duration %q is not a duration", rec.Duration)
		}
		n := int(math.Round(secs))
		c.DurationSeconds = &n
	}
	return c, nil
}

func optionalFloat(field string, s domain.Scalar) (*float64, error) {
	if !s.IsSet() {
		return nil, nil
	}
	f, ok := s.Float()
	if !ok {
		return nil, fmt.Errorf("%s %q is not a number", field, s)
	}
	return &f, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
