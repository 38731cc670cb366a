package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no topic has the requested identity.
	ErrNotFound = errors.New("topic not found")

	// ErrInvalidTitle marks a candidate whose title is empty after cleaning.
	ErrInvalidTitle = errors.New("invalid title")

	// ErrInvalidRank marks a candidate with a non-positive rank.
	ErrInvalidRank = errors.New("invalid rank")

	// ErrInvalidHeat marks a candidate with a negative heat value.
	ErrInvalidHeat = errors.New("invalid heat value")

	// ErrPartitionMismatch marks a candidate reconciled under a platform or category it does not belong to.
	ErrPartitionMismatch = errors.New("candidate does not belong to partition")
)

// CandidateError records why a single candidate could not be reconciled.
type CandidateError struct {
	Platform string
	Title    string
	Rank     int
	Err      error
}

func (e CandidateError) Error() string {
	return fmt.Sprintf("candidate %q (%s, rank %d): %v", e.Title, e.Platform, e.Rank, e.Err)
}

func (e CandidateError) Unwrap() error {
	return e.Err
}
