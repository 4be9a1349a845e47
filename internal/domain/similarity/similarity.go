// Package similarity scores how alike two names are on a 0..100 scale.
package similarity

import (
	"math"
	"strings"
)

// Scorer returns a similarity between 0 and 100.
type Scorer func(a, b string) int

// Distance computes the insertion/deletion edit distance between two strings,
// with a substitution counted as one deletion plus one insertion.
// Runes are compared, not bytes.
//
// Time complexity: O(len(a) * len(b))
// Space complexity: O(min(len(a), len(b))).
func Distance(a, b string) int {
	return distance([]rune(a), []rune(b))
}

func distance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Keep a as the shorter sequence so the rows stay small.
	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 2
			}
			curr[i] = min(
				prev[i]+1,      // deletion
				curr[i-1]+1,    // insertion
				prev[i-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(a)]
}

// Ratio returns round(100 * (L - d) / L) where L is the combined rune length
// and d the edit distance of the lowercased inputs. Identical names score 100.
// Two empty strings score 0.
func Ratio(a, b string) int {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}
	d := distance(ra, rb)
	return int(math.RoundToEven(100 * float64(total-d) / float64(total)))
}

// Best returns the highest Ratio over every pair drawn from xs and ys.
// It stops early at 100.
func Best(xs, ys []string, score Scorer) int {
	if score == nil {
		score = Ratio
	}
	best := 0
	for _, x := range xs {
		for _, y := range ys {
			s := score(x, y)
			if s > best {
				best = s
				if best == 100 {
					return best
				}
			}
		}
	}
	return best
}
