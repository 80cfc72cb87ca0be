package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/climblog/internal/datanorm"
	"github.com/ignite/climblog/internal/domain"
	"github.com/ignite/climblog/internal/grade"
	"github.com/ignite/climblog/internal/pkg/distlock"
	"github.com/ignite/climblog/internal/pkg/logger"
	"github.com/ignite/climblog/internal/service/climbimport"
	"github.com/ignite/climblog/internal/storage"
)

// =============================================================================
// CLIMB UPLOAD SERVICE - export file to climbs
// =============================================================================
// Runs one uploaded export through the whole pipeline:
// - per-user lock so concurrent uploads cannot race on duplicate detection
// - format parse, column mapping and record construction
// - optional grade conversion to the user's preferred system
// - dry-run validation or the batch importer
// - progress in Redis, job rows in Postgres, reports in S3

var (
	ErrJobNotFound         = errors.New("import job not found")
	ErrImportInProgress    = errors.New("an import is already running for this user")
	ErrSourceNotConfigured = errors.New("import source is not configured")
)

const (
	ClimbProgressUpdateFreq = 25 // rows between progress writes
	DefaultClimbJobTTL      = 24 * time.Hour
	DefaultImportLockTTL    = 10 * time.Minute

	SourceUpload = "upload"
	SourceS3     = "s3"
	SourceURL    = "url"
)

// ClimbImporter persists a batch of normalized records.
type ClimbImporter interface {
	ImportClimbs(ctx context.Context, req climbimport.ImportRequest) (*domain.ImportResult, error)
}

// ImportJobStore keeps a durable record of each job.
type ImportJobStore interface {
	CreateJob(ctx context.Context, job *domain.ImportJob) error
	FinishJob(ctx context.Context, job *domain.ImportJob) error
	GetJob(ctx context.Context, id string) (*domain.ImportJob, error)
}

// ObjectSource fetches exports by object key.
type ObjectSource interface {
	Get(ctx context.Context, key string) (*storage.Object, error)
}

// RemoteSource fetches exports published at a URL.
type RemoteSource interface {
	Fetch(ctx context.Context, rawURL string) (*storage.Object, error)
}

// ReportSink stores the final report of a job.
type ReportSink interface {
	SaveReport(ctx context.Context, jobID string, report any) error
}

// UploadRequest describes one export to import.
type UploadRequest struct {
	UserID      string `json:"userId"`
	SessionID   string `json:"sessionId,omitempty"`
	SourceType  string `json:"sourceType,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	// Overrides maps source keys to canonical field names on top of the
	// guessed mapping. An empty field name unmaps the key.
	Overrides         map[string]string `json:"overrides,omitempty"`
	TargetGradeSystem string            `json:"targetGradeSystem,omitempty"`
	DryRun            bool              `json:"dryRun,omitempty"`
}

// ClimbUploadOptions tunes the upload service.
type ClimbUploadOptions struct {
	LockTTL     time.Duration
	ProgressTTL time.Duration
	// DefaultTargetGrade applies when a request names no target system.
	DefaultTargetGrade grade.System
}

// ClimbUploadService handles climb export uploads and imports.
type ClimbUploadService struct {
	db       *sql.DB
	redis    *redis.Client
	importer ClimbImporter
	opts     ClimbUploadOptions

	jobs    ImportJobStore
	objects ObjectSource
	remote  RemoteSource
	reports ReportSink
}

// NewClimbUploadService creates the upload service. redisClient and db are
// both optional: Redis holds progress and the per-user lock, Postgres backs
// the lock when Redis is absent.
func NewClimbUploadService(db *sql.DB, redisClient *redis.Client, importer ClimbImporter, opts ClimbUploadOptions) *ClimbUploadService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultImportLockTTL
	}
	if opts.ProgressTTL <= 0 {
		opts.ProgressTTL = DefaultClimbJobTTL
	}
	return &ClimbUploadService{db: db, redis: redisClient, importer: importer, opts: opts}
}

// WithJobStore records jobs durably.
func (s *ClimbUploadService) WithJobStore(jobs ImportJobStore) *ClimbUploadService {
	s.jobs = jobs
	return s
}

// WithExportStore enables S3 imports and, when reports is non-nil, saves a
// report for every finished job.
func (s *ClimbUploadService) WithExportStore(objects ObjectSource, reports ReportSink) *ClimbUploadService {
	s.objects = objects
	s.reports = reports
	return s
}

// WithRemoteSource enables URL imports.
func (s *ClimbUploadService) WithRemoteSource(remote RemoteSource) *ClimbUploadService {
	s.remote = remote
	return s
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// ProcessFile imports an export already held in memory.
func (s *ClimbUploadService) ProcessFile(ctx context.Context, req UploadRequest, content []byte) (*domain.ImportJob, error) {
	return s.process(ctx, req, SourceUpload, content)
}

// ProcessObject downloads an export from the bucket and imports it.
func (s *ClimbUploadService) ProcessObject(ctx context.Context, req UploadRequest, key string) (*domain.ImportJob, error) {
	if s.objects == nil {
		return nil, ErrSourceNotConfigured
	}
	obj, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, withObject(req, obj), SourceS3, obj.Body)
}

// ProcessURL downloads an export from a URL and imports it.
func (s *ClimbUploadService) ProcessURL(ctx context.Context, req UploadRequest, rawURL string) (*domain.ImportJob, error) {
	if s.remote == nil {
		return nil, ErrSourceNotConfigured
	}
	obj, err := s.remote.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, withObject(req, obj), SourceURL, obj.Body)
}

func withObject(req UploadRequest, obj *storage.Object) UploadRequest {
	if req.FileName == "" {
		req.FileName = obj.Name()
	}
	if req.ContentType == "" {
		req.ContentType = obj.ContentType
	}
	return req
}

// GetJob returns a job's progress from Redis, falling back to the job store
// once the progress key has expired.
func (s *ClimbUploadService) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	if s.redis != nil {
		data, err := s.redis.Get(ctx, s.jobKey(id)).Bytes()
		switch {
		case err == nil:
			var job domain.ImportJob
			if err := json.Unmarshal(data, &job); err != nil {
				return nil, fmt.Errorf("decode import job %s: %w", id, err)
			}
			return &job, nil
		case !errors.Is(err, redis.Nil):
			return nil, err
		}
	}
	if s.jobs != nil {
		job, err := s.jobs.GetJob(ctx, id)
		if err == nil {
			return job, nil
		}
		logger.Debug("import job lookup failed", "job_id", id, "error", err)
	}
	return nil, ErrJobNotFound
}

// =============================================================================
// PIPELINE
// =============================================================================

func (s *ClimbUploadService) process(ctx context.Context, req UploadRequest, origin string, content []byte) (*domain.ImportJob, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return nil, climbimport.ErrMissingUser
	}

	tmpl, err := datanorm.ResolveTemplate(req.SourceType)
	if err != nil {
		return nil, err
	}
	target := s.opts.DefaultTargetGrade
	if req.TargetGradeSystem != "" {
		if target, err = grade.ParseSystem(req.TargetGradeSystem); err != nil {
			return nil, err
		}
	}

	job := &domain.ImportJob{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		SourceType: origin,
		FileName:   req.FileName,
		Status:     domain.ImportPending,
		DryRun:     req.DryRun,
		StartedAt:  time.Now().UTC(),
	}

	var runErr error
	lockErr := s.withUserLock(ctx, req.UserID, func(ctx context.Context) error {
		runErr = s.run(ctx, job, req, tmpl, target, content)
		return nil
	})
	if lockErr != nil {
		if errors.Is(lockErr, distlock.ErrLockHeld) {
			return nil, ErrImportInProgress
		}
		return nil, fmt.Errorf("acquiring import lock: %w", lockErr)
	}
	return job, runErr
}

func (s *ClimbUploadService) run(ctx context.Context, job *domain.ImportJob, req UploadRequest, tmpl *datanorm.Template, target grade.System, content []byte) error {
	s.createJob(ctx, job)
	s.updateProgress(ctx, job)

	file, err := datanorm.Parse(content, datanorm.FileHint{
		Name:        req.FileName,
		ContentType: req.ContentType,
		ForceJSON:   tmpl != nil && tmpl.IsJSON,
	})
	if err != nil {
		var pe *datanorm.ParseError
		if !errors.As(err, &pe) {
			return s.fail(ctx, job, err)
		}
		// a file that cannot be parsed imports nothing and reports why
		job.Result = &domain.ImportResult{SuccessCount: 0, ErrorCount: len(pe.Messages()), Errors: pe.Messages()}
		logger.Warn("import file rejected", "job_id", job.ID, "user_id", job.UserID, "format", pe.Format, "error", pe)
		return s.complete(ctx, job)
	}

	mapping, err := datanorm.ResolveMapping(file.Keys, file.IsJSON, tmpl, req.Overrides)
	if err != nil {
		return s.fail(ctx, job, err)
	}
	job.Mapping = mapping.Strings()
	job.TotalRows = len(file.Rows)
	job.Status = domain.ImportProcessing
	s.updateProgress(ctx, job)

	records := datanorm.BuildRecords(file, mapping, tmpl)
	if target != grade.Unknown {
		convertGrades(records, tmpl, target)
	}

	if req.DryRun {
		job.Result = climbimport.ValidateRecords(records, file.RowNumbers)
		job.ProcessedRows = job.TotalRows
		return s.complete(ctx, job)
	}

	result, err := s.importer.ImportClimbs(ctx, climbimport.ImportRequest{
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Records:    records,
		RowNumbers: file.RowNumbers,
		OnProgress: func(processed, total int) {
			job.ProcessedRows = processed
			if processed%ClimbProgressUpdateFreq == 0 || processed == total {
				s.updateProgress(ctx, job)
			}
		},
	})
	job.Result = result
	if err != nil {
		return s.fail(ctx, job, err)
	}
	return s.complete(ctx, job)
}

func convertGrades(records []domain.CsvClimb, tmpl *datanorm.Template, target grade.System) {
	if tmpl == nil {
		generic, _ := datanorm.LookupTemplate(datanorm.SourceGeneric)
		tmpl = generic
	}
	for i := range records {
		records[i].Grade = tmpl.ConvertGrade(records[i].Grade, records[i].IsBoulder(), target)
	}
}

func (s *ClimbUploadService) complete(ctx context.Context, job *domain.ImportJob) error {
	now := time.Now().UTC()
	job.Status = domain.ImportCompleted
	job.CompletedAt = &now
	s.finish(ctx, job)
	logger.Info("import job completed",
		"job_id", job.ID,
		"user_id", job.UserID,
		"dry_run", job.DryRun,
		"rows", job.TotalRows,
		"success", job.Result.SuccessCount,
		"errors", job.Result.ErrorCount)
	return nil
}

func (s *ClimbUploadService) fail(ctx context.Context, job *domain.ImportJob, err error) error {
	now := time.Now().UTC()
	job.Status = domain.ImportFailed
	job.CompletedAt = &now
	if job.Result == nil {
		job.Result = domain.NewImportResult()
	}
	s.finish(ctx, job)
	logger.Error("import job failed", "job_id", job.ID, "user_id", job.UserID, "error", err)
	return err
}

// finish persists the final state. The caller's context may already be
// cancelled, so the writes get their own deadline.
func (s *ClimbUploadService) finish(ctx context.Context, job *domain.ImportJob) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	s.updateProgress(wctx, job)
	if s.jobs != nil {
		if err := s.jobs.FinishJob(wctx, job); err != nil {
			logger.Warn("failed to record import job", "job_id", job.ID, "error", err)
		}
	}
	if s.reports != nil {
		if err := s.reports.SaveReport(wctx, job.ID, job); err != nil {
			logger.Warn("failed to save import report", "job_id", job.ID, "error", err)
		}
	}
}

func (s *ClimbUploadService) createJob(ctx context.Context, job *domain.ImportJob) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		logger.Warn("failed to create import job row", "job_id", job.ID, "error", err)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (s *ClimbUploadService) withUserLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	if s.redis == nil && s.db == nil {
		return fn(ctx)
	}
	lock := distlock.NewLock(s.redis, s.db, distlock.ImportLockKey(userID), s.opts.LockTTL)
	return distlock.Run(ctx, lock, fn)
}

func (s *ClimbUploadService) jobKey(jobID string) string {
	return "climb_import:" + jobID
}

func (s *ClimbUploadService) updateProgress(ctx context.Context, job *domain.ImportJob) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.jobKey(job.ID), data, s.opts.ProgressTTL).Err(); err != nil {
		logger.Warn("failed to write import progress", "job_id", job.ID, "error", err)
	}
}
