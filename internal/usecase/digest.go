package usecase

import (
	"fmt"
	"strings"
	"time"

	"HotlistTracker/internal/domain"
)

// Digest renders a pass summary as a short plain-text report.
func Digest(s domain.PassSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hot list pass %s\n", shortRunID(s.RunID))
	fmt.Fprintf(&b, "Platforms: %d (disabled %d), categories: %d\n", s.Platforms, s.Disabled, s.Categories)
	fmt.Fprintf(&b, "New: %d, updated: %d, retired: %d, errors: %d\n", s.Inserted, s.Updated, s.Retired, s.Errors)
	if !s.StartedAt.IsZero() && !s.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Took: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	}
	if len(s.Failed) > 0 {
		fmt.Fprintf(&b, "Failed: %s\n", strings.Join(s.Failed, ", "))
	}

	for _, res := range s.Cycles {
		if res.Status == domain.StatusSuccess {
			continue
		}
		fmt.Fprintf(&b, "- %s/%s: %s\n", res.Platform, res.Category, res.Status)
	}

	return strings.TrimRight(b.String(), "\n")
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
