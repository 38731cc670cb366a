// Package identity fingerprints topics and resolves incoming candidates
// against tracked topics by exact identity or fuzzy title similarity.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"HotlistTracker/internal/domain"
)

// DomainTopic prefixes every topic fingerprint. The version suffix allows a
// future change of the hashed fields without colliding with stored identities.
const DomainTopic = "hotlist/topic/v1"

// Compute returns the identity of a topic. Rank and heat are excluded, so
// re-observations of the same title in the same partition hash identically.
func Compute(platform, category, title string) (domain.Identity, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("compute identity: %w", domain.ErrInvalidTitle)
	}

	h := sha256.New()
	h.Write([]byte(DomainTopic))
	for _, part := range []string{platform, category, title} {
		h.Write([]byte{0x00})
		h.Write([]byte(part))
	}
	return domain.Identity(hex.EncodeToString(h.Sum(nil))), nil
}
