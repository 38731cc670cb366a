package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"HotlistTracker/internal/domain"
)

// MatchKind tells how a candidate was resolved.
type MatchKind int

const (
	NoMatch MatchKind = iota
	ExactMatch
	FuzzyMatch
)

func (k MatchKind) String() string {
	switch k {
	case ExactMatch:
		return "exact"
	case FuzzyMatch:
		return "fuzzy"
	default:
		return "none"
	}
}

// Match is the outcome of resolving one candidate.
type Match struct {
	Kind     MatchKind
	Existing domain.TrackedTopic
	// Similarity is 1 for exact matches and the Jaccard score for fuzzy ones.
	Similarity float64
	// Stale is set when an exact match was last seen before the dedup window.
	Stale bool
}

// Found reports whether an existing topic was matched.
func (m Match) Found() bool {
	return m.Kind != NoMatch
}

// Lookup is the read side of the topic store the resolver needs.
type Lookup interface {
	FindByIdentity(ctx context.Context, id domain.Identity) (domain.TrackedTopic, error)
	FindActiveSimilarCandidates(ctx context.Context, platform string, since time.Time) ([]domain.TopicRef, error)
}

// Resolver decides whether a candidate is new or a re-sighting. It has no side effects.
type Resolver struct {
	lookup    Lookup
	window    time.Duration
	threshold float64
}

// NewResolver builds a resolver over lookup with the given dedup window and similarity threshold.
func NewResolver(lookup Lookup, window time.Duration, threshold float64) *Resolver {
	return &Resolver{lookup: lookup, window: window, threshold: threshold}
}

// Resolve looks up id first; without an exact hit it scans active topics of
// the candidate's platform seen within the window and takes the first whose
// title meets the similarity threshold.
func (r *Resolver) Resolve(ctx context.Context, c domain.Candidate, id domain.Identity, now time.Time) (Match, error) {
	existing, err := r.lookup.FindByIdentity(ctx, id)
	switch {
	case err == nil:
		return Match{
			Kind:       ExactMatch,
			Existing:   existing,
			Similarity: 1,
			Stale:      existing.LastSeenAt.Before(now.Add(-r.window)),
		}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return Match{}, fmt.Errorf("find by identity: %w", err)
	}

	pool, err := r.lookup.FindActiveSimilarCandidates(ctx, c.Platform, now.Add(-r.window))
	if err != nil {
		return Match{}, fmt.Errorf("find similar: %w", err)
	}

	for _, ref := range pool {
		if ref.Identity == id {
			continue
		}
		score := Similarity(c.Title, ref.Title)
		if !meetsThreshold(score, r.threshold) {
			continue
		}

		existing, err := r.lookup.FindByIdentity(ctx, ref.Identity)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return Match{}, fmt.Errorf("load fuzzy match %s: %w", ref.Identity.Short(), err)
		}
		return Match{Kind: FuzzyMatch, Existing: existing, Similarity: score}, nil
	}

	return Match{Kind: NoMatch}, nil
}
