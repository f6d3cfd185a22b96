package risk

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// EditDistance returns the case-insensitive Levenshtein distance between two strings
func EditDistance(a, b string) int {
	return levenshtein.ComputeDistance(strings.ToLower(a), strings.ToLower(b))
}

// Similarity maps edit distance to [0,1]: identical non-empty strings score 1,
// either side empty scores 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	dist := EditDistance(a, b)
	if dist >= maxLen {
		return 0
	}
	return float64(maxLen-dist) / float64(maxLen)
}

// DigitDistance computes an alignment-tolerant positional distance between two
// digit strings. Equal lengths compare position by position. Lengths differing
// by one slide the shorter string across the longer and add the length gap as
// a baseline mismatch, keeping the best alignment. Larger gaps are not
// comparable and the second return value is false.
func DigitDistance(a, b string) (int, bool) {
	la, lb := len(a), len(b)
	gap := la - lb
	if gap < 0 {
		gap = -gap
	}

	switch gap {
	case 0:
		return hamming(a, b), true
	case 1:
		shorter, longer := a, b
		if la > lb {
			shorter, longer = b, a
		}
		best := len(shorter) + 1
		for offset := 0; offset+len(shorter) <= len(longer); offset++ {
			if d := hamming(shorter, longer[offset:offset+len(shorter)]); d < best {
				best = d
			}
		}
		return best + gap, true
	default:
		return 0, false
	}
}

func hamming(a, b string) int {
	mismatches := 0
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			mismatches++
		}
	}
	return mismatches
}
