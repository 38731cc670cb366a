package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		result CycleResult
		want   CycleStatus
	}{
		{"all written", CycleResult{Total: 2, Inserted: 1, Updated: 1}, StatusSuccess},
		{"some errors", CycleResult{Total: 2, Inserted: 1, Errors: 1}, StatusPartial},
		{"sweep failed", CycleResult{Total: 1, Inserted: 1, SweepErr: errors.New("boom")}, StatusPartial},
		{"nothing written", CycleResult{Total: 2, Errors: 2}, StatusFailed},
		{"skipped kept", CycleResult{Status: StatusSkipped}, StatusSkipped},
		{"canceled kept", CycleResult{Total: 3, Status: StatusCanceled}, StatusCanceled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.result
			r.SettleStatus()
			assert.Equal(t, tc.want, r.Status)
		})
	}
}

func TestNewCollectionLog(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r := CycleResult{
		Platform:  "weibo",
		Category:  "search",
		Total:     5,
		Inserted:  2,
		Updated:   1,
		Duplicate: 1,
		Errors:    2,
		Retired:   []Identity{"a", "b"},
		Status:    StatusPartial,
		Failures: []CandidateError{
			{Platform: "weibo", Title: "x", Rank: 3, Err: ErrInvalidTitle},
		},
		SweepErr:   errors.New("db gone"),
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}

	log := NewCollectionLog("run-1", r, nil)
	assert.Equal(t, "run-1", log.RunID)
	assert.Equal(t, 3, log.Success)
	assert.Equal(t, 2, log.Retired)
	assert.Contains(t, log.ErrorMessage, "sweep: db gone")
	assert.Contains(t, log.ErrorMessage, "invalid title")
}

func TestCandidateErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := error(CandidateError{Platform: "zhihu", Title: "t", Rank: 1, Err: ErrInvalidRank})
	require.ErrorIs(t, err, ErrInvalidRank)

	var ce CandidateError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "zhihu", ce.Platform)
}
