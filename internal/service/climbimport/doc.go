// Package climbimport runs a batch of canonical climb records through
// validation, duplicate detection and insertion, and aggregates the outcome.
//
// Rows are processed strictly in order, one at a time. A row that fails in
// any phase is recorded in the result and the batch moves on; only a missing
// user id or a cancelled context stops it.
//
// The service depends on the Repository interface in repository.go and never
// imports database/sql directly.
package climbimport
