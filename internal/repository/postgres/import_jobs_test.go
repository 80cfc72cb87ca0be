package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/climblog/internal/domain"
)

func TestImportJobRepo_CreateAndFinish(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewImportJobRepo(db)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	job := &domain.ImportJob{
		ID: "job-1", UserID: "user-1", SourceType: "upload", FileName: "ticks.csv",
		Status: domain.ImportProcessing, TotalRows: 3,
		Mapping:   map[string]string{"Route": "name"},
		StartedAt: started,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO climb_import_jobs")).
		WithArgs("job-1", "user-1", "upload", "ticks.csv", "processing", false, 3, []byte(`{"Route":"name"}`), started).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.CreateJob(context.Background(), job))

	done := started.Add(time.Minute)
	job.Status = domain.ImportCompleted
	job.CompletedAt = &done
	job.Result = &domain.ImportResult{SuccessCount: 2, ErrorCount: 1}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE climb_import_jobs")).
		WithArgs("job-1", "completed", 3, 2, 1, []byte(`{"Route":"name"}`), done).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.FinishJob(context.Background(), job))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportJobRepo_FinishMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE climb_import_jobs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewImportJobRepo(db).FinishJob(context.Background(), &domain.ImportJob{ID: "nope", Status: domain.ImportFailed})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestImportJobRepo_GetJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	done := started.Add(time.Minute)
	rows := sqlmock.NewRows([]string{"id", "user_id", "source_type", "file_name", "status", "dry_run", "total_rows",
		"success_count", "error_count", "field_mapping", "started_at", "completed_at"}).
		AddRow("job-1", "user-1", "s3", "ticks.csv", "completed", true, 4, 4, 0, []byte(`{"Date":"date"}`), started, done)
	mock.ExpectQuery(regexp.QuoteMeta("FROM climb_import_jobs WHERE id = $1")).WithArgs("job-1").WillReturnRows(rows)

	job, err := NewImportJobRepo(db).GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ImportCompleted, job.Status)
	assert.True(t, job.DryRun)
	assert.Equal(t, "date", job.Mapping["Date"])
	assert.Equal(t, 4, job.Result.SuccessCount)
	assert.Equal(t, 4, job.ProcessedRows)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, done, *job.CompletedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM climb_import_jobs")).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = NewImportJobRepo(db).GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
