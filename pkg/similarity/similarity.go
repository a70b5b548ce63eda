// Package similarity implements the fuzzy name-matching used by the
// name-suspicion signal and the SuggestAlternatives operation: a hybrid
// ratio (edit distance plus a common-prefix bonus) in [0, 100], since
// plain Levenshtein ratio alone misses that "djnago" and "django" share a
// prefix a reader would find obviously suspicious.
package similarity

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Ratio returns a normalised similarity in [0, 100] between a and b, 100
// meaning identical. It favours matching prefixes over a plain edit-distance
// ratio, leaning toward a WRatio-style comparison.
func Ratio(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 100
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	base := (1 - float64(dist)/float64(maxLen)) * 100

	prefix := commonPrefixLen(a, b)
	bonus := float64(prefix) * 2
	if bonus > 10 {
		bonus = 10
	}

	ratio := base + bonus
	if ratio > 100 {
		ratio = 100
	}
	if ratio < 0 {
		ratio = 0
	}
	return ratio
}

// Distance is the complement of Ratio, in [0, 100].
func Distance(a, b string) float64 {
	return 100 - Ratio(a, b)
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Suggestion is one candidate alternative returned by SuggestAlternatives.
type Suggestion struct {
	Canonical  string
	Similarity float64 // in [0, 100]
}

// SuggestAlternatives returns the top-5 canonical names most similar to
// name, excluding an exact match, restricted to those at or above
// threshold similarity, ordered by descending similarity then
// lexicographically by canonical name.
func SuggestAlternatives(name string, canonicalNames []string, threshold float64) []Suggestion {
	lname := strings.ToLower(name)
	var out []Suggestion
	for _, c := range canonicalNames {
		if strings.ToLower(c) == lname {
			continue
		}
		sim := Ratio(name, c)
		if sim >= threshold {
			out = append(out, Suggestion{Canonical: c, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Canonical < out[j].Canonical
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// DistanceDescription buckets a similarity score into the human-readable
// phrasing used in suggestion reason text.
func DistanceDescription(similarity float64) string {
	switch {
	case similarity >= 95:
		return "very similar"
	case similarity >= 90:
		return "similar"
	case similarity >= 85:
		return "somewhat similar"
	default:
		return "moderately similar"
	}
}
