// Package pagination maps page-relative ranks onto list-global ranks and
// decides when a paginated hot list has been fully read.
package pagination

import "HotlistTracker/internal/domain"

// Window locates one page inside a collection cycle.
type Window struct {
	// Page is the 1-based ordinal of the page within the cycle.
	Page int
	// PageSize is the configured item count per page; zero means unknown.
	PageSize int
	// Accumulated is the number of candidates gathered from earlier pages.
	Accumulated int
}

// GlobalRank converts a page-local rank. Unknown page sizes leave the rank untouched.
func GlobalRank(rawRank, page, pageSize int) int {
	if pageSize <= 0 || page <= 1 {
		return rawRank
	}
	return rawRank + (page-1)*pageSize
}

// Normalize returns copies of items with list-global ranks.
func Normalize(items []domain.Candidate, w Window) []domain.Candidate {
	out := make([]domain.Candidate, len(items))
	for i, item := range items {
		item.Rank = GlobalRank(item.Rank, w.Page, w.PageSize)
		out[i] = item
	}
	return out
}

// Policy is the per-platform paging configuration the orchestrator consults.
type Policy struct {
	StartPage int
	PageSize  int
	MaxPages  int
}

// APIPage converts a 1-based ordinal into the platform's own page number.
func (p Policy) APIPage(ordinal int) int {
	return p.StartPage + ordinal - 1
}

// ShouldStop reports whether no further page should be requested after the
// page at ordinal returned the given number of items.
func (p Policy) ShouldStop(ordinal, returned int) bool {
	switch {
	case p.MaxPages > 0 && ordinal >= p.MaxPages:
		return true
	case returned == 0:
		return true
	case p.PageSize > 0 && returned < p.PageSize:
		return true
	default:
		return false
	}
}
