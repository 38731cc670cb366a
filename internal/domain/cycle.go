package domain

import (
	"strings"
	"time"
)

// CycleStatus summarizes how a reconciliation cycle ended.
type CycleStatus string

const (
	StatusSuccess  CycleStatus = "success"
	StatusPartial  CycleStatus = "partial"
	StatusFailed   CycleStatus = "failed"
	StatusSkipped  CycleStatus = "skipped"
	StatusCanceled CycleStatus = "canceled"
)

// CycleResult is the outcome of reconciling one (platform, category) candidate list.
type CycleResult struct {
	Platform string
	Category string

	Total     int
	Inserted  int
	Updated   int
	Duplicate int
	Errors    int

	Retired  []Identity
	Status   CycleStatus
	Failures []CandidateError
	SweepErr error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Written counts candidates that resulted in a successful store write.
func (r CycleResult) Written() int {
	return r.Inserted + r.Updated
}

// Duration is the wall time spent on the cycle.
func (r CycleResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SettleStatus derives Status from the counters. Skipped and canceled cycles keep their status.
func (r *CycleResult) SettleStatus() {
	if r.Status == StatusSkipped || r.Status == StatusCanceled {
		return
	}
	switch {
	case r.Total > 0 && r.Written() == 0:
		r.Status = StatusFailed
	case r.Errors > 0 || r.SweepErr != nil:
		r.Status = StatusPartial
	default:
		r.Status = StatusSuccess
	}
}

// CollectionLog is the persisted audit row for one cycle.
type CollectionLog struct {
	ID           string
	RunID        string
	Platform     string
	Category     string
	Status       CycleStatus
	Total        int
	Success      int
	Errors       int
	Duplicates   int
	Retired      int
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

const maxLoggedFailures = 3

// NewCollectionLog flattens a cycle result; cause is an orchestration error, if any.
func NewCollectionLog(runID string, r CycleResult, cause error) CollectionLog {
	var messages []string
	if cause != nil {
		messages = append(messages, cause.Error())
	}
	if r.SweepErr != nil {
		messages = append(messages, "sweep: "+r.SweepErr.Error())
	}
	for i, f := range r.Failures {
		if i == maxLoggedFailures {
			break
		}
		messages = append(messages, f.Error())
	}

	return CollectionLog{
		RunID:        runID,
		Platform:     r.Platform,
		Category:     r.Category,
		Status:       r.Status,
		Total:        r.Total,
		Success:      r.Written(),
		Errors:       r.Errors,
		Duplicates:   r.Duplicate,
		Retired:      len(r.Retired),
		ErrorMessage: strings.Join(messages, "; "),
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

// PassSummary aggregates every cycle of one collection pass across platforms.
type PassSummary struct {
	RunID      string
	Platforms  int
	Disabled   int
	Categories int
	Inserted   int
	Updated    int
	Duplicate  int
	Errors     int
	Retired    int
	Failed     []string
	Cycles     []CycleResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Add folds a cycle result into the summary.
func (s *PassSummary) Add(r CycleResult) {
	s.Categories++
	s.Inserted += r.Inserted
	s.Updated += r.Updated
	s.Duplicate += r.Duplicate
	s.Errors += r.Errors
	s.Retired += len(r.Retired)
	if r.Status == StatusFailed || r.Status == StatusCanceled {
		s.Failed = append(s.Failed, r.Platform+"/"+r.Category)
	}
	s.Cycles = append(s.Cycles, r)
}
