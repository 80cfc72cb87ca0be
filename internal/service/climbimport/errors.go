package climbimport

import "errors"

// Sentinel errors for the climb import service layer.
var (
	ErrMissingUser   = errors.New("user id is required")
	ErrIncompleteKey = errors.New("duplicate key is incomplete")
	ErrLookupFailed  = errors.New("duplicate lookup failed")
)
