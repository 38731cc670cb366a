package domain

import "time"

// RawItem is one list entry as a platform returned it, keyed by the platform's own field names.
type RawItem map[string]string

// Candidate is a single observation of a topic in one collection cycle.
// Rank is list-global and 1-based; Tags are treated as a set.
type Candidate struct {
	Platform   string
	Category   string
	Title      string
	Rank       int
	HeatValue  *int64
	URL        string
	Tags       []string
	ObservedAt time.Time
}

// Heat returns a pointer to v, for building candidates with a known heat value.
func Heat(v int64) *int64 {
	return &v
}
