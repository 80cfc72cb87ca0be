package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/climblog/internal/domain"
	"github.com/ignite/climblog/internal/service/climbimport"
)

var climbCols = []string{
	"id", "user_id", "session_id", "name", "grade", "type", "send_type", "climb_date", "location",
	"attempts", "rating", "notes", "duration_seconds", "elevation_gain", "color", "gym", "country",
	"skills", "physical_skills", "technical_skills", "stiffness", "stiffness_note", "created_at",
}

func newMock(t *testing.T) (*ClimbRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewClimbRepo(db), mock
}

func TestFindDuplicate_Hit(t *testing.T) {
	repo, mock := newMock(t)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM climbs")).
		WithArgs("user-1", "Arête", "5.9", day, "Crag").
		WillReturnRows(sqlmock.NewRows(climbCols).AddRow(
			"c-1", "user-1", nil, "Arête", "5.9", "sport", "send", day, "Crag",
			int64(2), 4.0, "good", nil, nil, nil, nil, nil,
			"{crimps,slopers}", "{}", "{}", nil, nil, day,
		))

	got, err := repo.FindDuplicate(context.Background(), climbimport.DuplicateKey{
		UserID: "user-1", Name: "Arête", Grade: "5.9", Date: "2024-05-01", Location: "Crag",
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c-1", got.ID)
	assert.Equal(t, domain.ClimbSport, got.Type)
	require.NotNil(t, got.Attempts)
	assert.Equal(t, 2, *got.Attempts)
	assert.Nil(t, got.SessionID)
	assert.Equal(t, []string{"crimps", "slopers"}, got.Skills)
	assert.Equal(t, "good", got.Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDuplicate_Miss(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM climbs")).
		WillReturnRows(sqlmock.NewRows(climbCols))

	got, err := repo.FindDuplicate(context.Background(), climbimport.DuplicateKey{
		UserID: "user-1", Name: "X", Grade: "5.9", Date: "2024-05-01", Location: "Crag",
	})
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindDuplicate_QueryError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM climbs")).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.FindDuplicate(context.Background(), climbimport.DuplicateKey{
		UserID: "user-1", Name: "X", Grade: "5.9", Date: "2024-05-01", Location: "Crag",
	})
	assert.ErrorContains(t, err, "connection refused")
}

func TestInsertClimb(t *testing.T) {
	repo, mock := newMock(t)
	session := "sess-1"
	attempts := 3
	c := &domain.Climb{
		UserID:    "user-1",
		SessionID: &session,
		Name:      "Roof",
		Grade:     "V4",
		Type:      domain.ClimbBoulder,
		SendType:  domain.SendFlash,
		Date:      time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		Location:  "Gym",
		Attempts:  &attempts,
		Skills:    []string{"heel hook"},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO climbs")).
		WithArgs(sqlmock.AnyArg(), "user-1", sqlmock.AnyArg(), "Roof", "V4", "boulder", "flash", c.Date, "Gym",
			sqlmock.AnyArg(), nil, sqlmock.AnyArg(), nil, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.InsertClimb(context.Background(), c))
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertClimb_Error(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO climbs")).
		WillReturnError(errors.New(`violates foreign key constraint "climbs_user_id_fkey"`))

	err := repo.InsertClimb(context.Background(), &domain.Climb{UserID: "ghost", Name: "A"})
	assert.ErrorContains(t, err, "insert climb: ")
}

func TestListByUser(t *testing.T) {
	repo, mock := newMock(t)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY climb_date DESC")).
		WithArgs("user-1", 100, 0).
		WillReturnRows(sqlmock.NewRows(climbCols).
			AddRow("c-2", "user-1", "sess", "B", "6a", "sport", "onsight", day, "Crag",
				nil, nil, nil, int64(600), 120.5, nil, nil, "FR", "{}", "{}", "{}", -1.0, "soft", day).
			AddRow("c-1", "user-1", nil, "A", "5.9", "trad", "send", day, "Crag",
				nil, nil, nil, nil, nil, nil, nil, nil, "{}", "{}", "{}", nil, nil, day))

	climbs, err := repo.ListByUser(context.Background(), "user-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, climbs, 2)
	assert.Equal(t, "sess", *climbs[0].SessionID)
	assert.Equal(t, 600, *climbs[0].DurationSeconds)
	assert.Equal(t, -1.0, *climbs[0].Stiffness)
	assert.Equal(t, "soft", climbs[0].StiffnessNote)
	assert.Nil(t, climbs[1].Stiffness)
}

func TestCountByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM climbs WHERE user_id = $1")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := NewClimbRepo(db).CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
