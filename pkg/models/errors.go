package models

import "errors"

// Domain error taxonomy. Routes translate these into HTTP errors; everything
// else (infrastructure failures) surfaces as httperror directly from the
// repositories.
var (
	// ErrNotFound indicates an unknown company, entity, or instrument.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameter indicates a caller error (bad relationship name,
	// negative depth, malformed date). Not retryable.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDanglingReference indicates a write referencing a record that does
	// not exist (e.g. a guarantee naming an unknown guarantor). The write is
	// rejected whole; nothing is partially applied.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrSnapshotConflict indicates a re-capture at an existing as-of date
	// with different content. History is never overwritten.
	ErrSnapshotConflict = errors.New("snapshot conflict")

	// ErrNoBaseline indicates a diff was requested but no snapshot exists at
	// or before the requested date.
	ErrNoBaseline = errors.New("no baseline snapshot")
)
