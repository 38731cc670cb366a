package identity

import (
	"math"
	"strings"
	"unicode"
)

const epsilon = 1e-9

// Tokens splits s into a set of lowercase word tokens. A token is a maximal
// run of letters, digits, marks or underscores.
func Tokens(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_')
	})

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Similarity is the Jaccard index of the token sets of a and b.
// It is 0 when either side has no tokens.
func Similarity(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	small, large := ta, tb
	if len(small) > len(large) {
		small, large = large, small
	}

	shared := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			shared++
		}
	}

	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

// meetsThreshold compares with a small tolerance so that exact rational
// equality (17/20 against 0.85) is not lost to float rounding.
func meetsThreshold(score, threshold float64) bool {
	return score >= threshold || math.Abs(score-threshold) < epsilon
}
