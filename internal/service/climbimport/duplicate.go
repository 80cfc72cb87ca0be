package climbimport

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/climblog/internal/domain"
	"github.com/ignite/climblog/internal/pkg/logger"
)

// DuplicateChecker looks up already-persisted climbs with the same key.
type DuplicateChecker struct {
	repo Repository
}

// NewDuplicateChecker creates a checker backed by the given repository.
func NewDuplicateChecker(repo Repository) *DuplicateChecker {
	return &DuplicateChecker{repo: repo}
}

// KeyFor builds the dedup key of a record owned by userID.
func KeyFor(userID string, c domain.CsvClimb) DuplicateKey {
	return DuplicateKey{
		UserID:   strings.TrimSpace(userID),
		Name:     strings.TrimSpace(c.Name),
		Grade:    strings.TrimSpace(c.Grade),
		Date:     strings.TrimSpace(c.Date),
		Location: strings.TrimSpace(c.Location),
	}
}

// Find returns the existing climb for key, or nil when there is none.
//
// An incomplete key yields ErrIncompleteKey and a failed query yields an
// error wrapping ErrLookupFailed; callers that only care about "is there a
// duplicate" can treat both as none, but the two stay distinguishable from a
// clean miss.
func (d *DuplicateChecker) Find(ctx context.Context, key DuplicateKey) (*domain.Climb, error) {
	if !key.Complete() {
		logger.Warn("duplicate check skipped, key incomplete",
			"user_id", key.UserID, "name", key.Name, "grade", key.Grade, "date", key.Date, "location", key.Location)
		return nil, ErrIncompleteKey
	}

	existing, err := d.repo.FindDuplicate(ctx, key)
	if err != nil {
		logger.Error("duplicate lookup failed", "user_id", key.UserID, "name", key.Name, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	return existing, nil
}
