package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/climblog/internal/domain"
)

// ErrJobNotFound is returned when no import job has the requested ID.
var ErrJobNotFound = errors.New("import job not found")

// ImportJobRepo records upload jobs in climb_import_jobs.
type ImportJobRepo struct{ db *sql.DB }

func NewImportJobRepo(db *sql.DB) *ImportJobRepo { return &ImportJobRepo{db: db} }

// CreateJob inserts job in its starting state.
func (r *ImportJobRepo) CreateJob(ctx context.Context, job *domain.ImportJob) error {
	mapping, err := mappingJSON(job.Mapping)
	if err != nil {
		return err
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO climb_import_jobs (id, user_id, source_type, file_name, status, dry_run, total_rows, field_mapping, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, job.ID, job.UserID, job.SourceType, job.FileName, string(job.Status), job.DryRun, job.TotalRows, mapping, job.StartedAt)
	if err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

// FinishJob stores the final status, counts and the mapping that was used.
func (r *ImportJobRepo) FinishJob(ctx context.Context, job *domain.ImportJob) error {
	mapping, err := mappingJSON(job.Mapping)
	if err != nil {
		return err
	}
	var success, failed int
	if job.Result != nil {
		success, failed = job.Result.SuccessCount, job.Result.ErrorCount
	}
	completed := time.Now().UTC()
	if job.CompletedAt != nil {
		completed = *job.CompletedAt
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE climb_import_jobs
		SET status = $2, total_rows = $3, success_count = $4, error_count = $5, field_mapping = $6, completed_at = $7
		WHERE id = $1
	`, job.ID, string(job.Status), job.TotalRows, success, failed, mapping, completed)
	if err != nil {
		return fmt.Errorf("finish import job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// GetJob loads a stored job. Row level errors are not persisted, so Result
// only carries the counts.
func (r *ImportJobRepo) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	var (
		job       domain.ImportJob
		status    string
		mapping   []byte
		success   int
		failed    int
		completed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, source_type, file_name, status, dry_run, total_rows,
			success_count, error_count, field_mapping, started_at, completed_at
		FROM climb_import_jobs WHERE id = $1
	`, id).Scan(&job.ID, &job.UserID, &job.SourceType, &job.FileName, &status, &job.DryRun, &job.TotalRows,
		&success, &failed, &mapping, &job.StartedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}

	job.Status = domain.ImportStatus(status)
	if len(mapping) > 0 {
		if err := json.Unmarshal(mapping, &job.Mapping); err != nil {
			return nil, fmt.Errorf("decode field mapping: %w", err)
		}
	}
	if completed.Valid {
		t := completed.Time
		job.CompletedAt = &t
		job.ProcessedRows = job.TotalRows
	}
	job.Result = &domain.ImportResult{SuccessCount: success, ErrorCount: failed, Errors: []string{}}
	return &job, nil
}

// mappingJSON returns an untyped nil for an empty mapping so the column is NULL.
func mappingJSON(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode field mapping: %w", err)
	}
	return b, nil
}
