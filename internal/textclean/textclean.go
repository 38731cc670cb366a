// Package textclean normalizes the free text that hot-list platforms return:
// titles, tag labels and human-formatted heat counters.
package textclean

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	ellipsis = "..."

	// DefaultMaxTagLength bounds a single tag label in runes.
	DefaultMaxTagLength = 100
)

var (
	disallowed = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s\-.,!?()\[\]【】]`)
	heatExpr   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([wW万亿]?)`)
)

// CleanTitle folds compatibility characters, collapses whitespace, drops
// symbols outside letters/digits/basic punctuation and truncates to maxLen runes.
// A maxLen <= 0 disables truncation.
func CleanTitle(s string, maxLen int) string {
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	s = disallowed.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return Truncate(s, maxLen)
}

// Truncate shortens s to at most maxLen runes, marking the cut with an ellipsis when room allows.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= len(ellipsis) {
		return string(runes[:maxLen])
	}
	return strings.TrimSpace(string(runes[:maxLen-len(ellipsis)])) + ellipsis
}

// ParseHeat extracts a heat counter such as "1.2万", "35w", "3亿" or "98765".
// It returns nil when no number is present; values beyond int64 saturate at math.MaxInt64.
func ParseHeat(s string) *int64 {
	s = strings.ReplaceAll(norm.NFKC.String(s), ",", "")
	match := heatExpr.FindStringSubmatch(s)
	if match == nil {
		return nil
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}

	switch match[2] {
	case "万", "w", "W":
		value *= 1e4
	case "亿":
		value *= 1e8
	}

	// counters beyond int64 saturate instead of wrapping negative
	heat := int64(math.MaxInt64)
	if value < math.MaxInt64 {
		heat = int64(value)
	}
	return &heat
}

// ProcessTags trims and de-duplicates tags, drops empty ones, caps each label at
// maxTagLen runes and keeps at most maxCount entries (maxCount <= 0 means no cap).
func ProcessTags(tags []string, maxTagLen, maxCount int) []string {
	if maxTagLen <= 0 {
		maxTagLen = DefaultMaxTagLength
	}

	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(norm.NFKC.String(tag))
		if utf8.RuneCountInString(tag) > maxTagLen {
			tag = strings.TrimSpace(string([]rune(tag)[:maxTagLen]))
		}
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if maxCount > 0 && len(out) == maxCount {
			break
		}
	}
	return out
}

// SplitTags turns a raw tag field into labels. An empty separator keeps the whole field as one tag.
func SplitTags(raw, sep string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if sep == "" {
		return []string{raw}
	}
	return strings.Split(raw, sep)
}
