package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/climblog/internal/domain"
	"github.com/ignite/climblog/internal/service/climbimport"
)

// ClimbRepo implements climbimport.Repository against PostgreSQL.
type ClimbRepo struct{ db *sql.DB }

// NewClimbRepo creates a Postgres-backed climb repository.
func NewClimbRepo(db *sql.DB) *ClimbRepo { return &ClimbRepo{db: db} }

var _ climbimport.Repository = (*ClimbRepo)(nil)

const climbColumns = `id, user_id, session_id, name, grade, type, send_type, climb_date, location,
	attempts, rating, notes, duration_seconds, elevation_gain, color, gym, country,
	skills, physical_skills, technical_skills, stiffness, stiffness_note, created_at`

func (r *ClimbRepo) FindDuplicate(ctx context.Context, k climbimport.DuplicateKey) (*domain.Climb, error) {
	date, err := time.Parse(domain.DateLayout, k.Date)
	if err != nil {
		return nil, fmt.Errorf("find duplicate: %w", err)
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT `+climbColumns+`
		FROM climbs
		WHERE user_id = $1 AND name = $2 AND grade = $3 AND climb_date = $4 AND location = $5
		LIMIT 1
	`, k.UserID, k.Name, k.Grade, date, k.Location)

	c, err := scanClimb(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find duplicate: %w", err)
	}
	return c, nil
}

func (r *ClimbRepo) InsertClimb(ctx context.Context, c *domain.Climb) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO climbs (`+climbColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`,
		c.ID, c.UserID, c.SessionID, c.Name, c.Grade, string(c.Type), string(c.SendType), c.Date, c.Location,
		c.Attempts, c.Rating, nullString(c.Notes), c.DurationSeconds, c.ElevationGain,
		nullString(c.Color), nullString(c.Gym), nullString(c.Country),
		pq.Array(c.Skills), pq.Array(c.PhysicalSkills), pq.Array(c.TechnicalSkills),
		c.Stiffness, nullString(c.StiffnessNote), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert climb: %w", err)
	}
	return nil
}

// ListByUser returns a user's climbs, newest first.
func (r *ClimbRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Climb, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+climbColumns+`
		FROM climbs
		WHERE user_id = $1
		ORDER BY climb_date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list climbs: %w", err)
	}
	defer rows.Close()

	var out []domain.Climb
	for rows.Next() {
		c, err := scanClimb(rows)
		if err != nil {
			return nil, fmt.Errorf("scan climb: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CountByUser returns how many climbs a user has logged.
func (r *ClimbRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM climbs WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count climbs: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClimb(s scanner) (*domain.Climb, error) {
	var (
		c                                    domain.Climb
		sessionID                            sql.NullString
		attempts, duration                   sql.NullInt64
		rating, elevation, stiffness         sql.NullFloat64
		notes, color, gym, country, stiffTxt sql.NullString
		typ, sendType                        string
	)
	err := s.Scan(
		&c.ID, &c.UserID, &sessionID, &c.Name, &c.Grade, &typ, &sendType, &c.Date, &c.Location,
		&attempts, &rating, &notes, &duration, &elevation, &color, &gym, &country,
		pq.Array(&c.Skills), pq.Array(&c.PhysicalSkills), pq.Array(&c.TechnicalSkills),
		&stiffness, &stiffTxt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Type = domain.ClimbType(typ)
	c.SendType = domain.SendType(sendType)
	c.Notes, c.Color, c.Gym, c.Country, c.StiffnessNote = notes.String, color.String, gym.String, country.String, stiffTxt.String
	if sessionID.Valid {
		c.SessionID = &sessionID.String
	}
	if attempts.Valid {
		n := int(attempts.Int64)
		c.Attempts = &n
	}
	if duration.Valid {
		n := int(duration.Int64)
		c.DurationSeconds = &n
	}
	if rating.Valid {
		c.Rating = &rating.Float64
	}
	if elevation.Valid {
		c.ElevationGain = &elevation.Float64
	}
	if stiffness.Valid {
		c.Stiffness = &stiffness.Float64
	}
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
