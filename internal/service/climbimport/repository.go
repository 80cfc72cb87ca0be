package climbimport

import (
	"context"

	"github.com/ignite/climblog/internal/domain"
)

// Repository defines the data access contract for persisted climbs.
type Repository interface {
	// FindDuplicate returns the first climb matching key, or nil when there is none.
	FindDuplicate(ctx context.Context, key DuplicateKey) (*domain.Climb, error)

	// InsertClimb persists one climb.
	InsertClimb(ctx context.Context, c *domain.Climb) error
}

// DuplicateKey identifies a climb for deduplication. Two records are the same
// climb when every field matches exactly.
type DuplicateKey struct {
	UserID   string
	Name     string
	Grade    string
	Date     string
	Location string
}

// Complete reports whether every field of the key is present.
func (k DuplicateKey) Complete() bool {
	return k.UserID != "" && k.Name != "" && k.Grade != "" && k.Date != "" && k.Location != ""
}
