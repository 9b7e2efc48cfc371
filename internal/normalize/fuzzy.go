// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"math"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// strippedSuffixes are generic trailing tokens that don't change a skill's
// identity ("transformer-based", "transformer architecture").
var strippedSuffixes = map[string]bool{
	"based":         true,
	"architecture":  true,
	"architectures": true,
	"model":         true,
	"models":        true,
}

// cleanKey reduces a surface form for comparison: lowercase, punctuation and
// whitespace collapsed to single spaces, generic trailing tokens removed.
func cleanKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	tokens := strings.Fields(b.String())
	for len(tokens) > 1 && strippedSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// fuzzyMatch finds the candidate skill for key with similarity at or above
// threshold. Reports ambiguous=true when two distinct skills both qualify;
// a mis-merge is worse than a drop.
func fuzzyMatch(key string, candidates []candidate, threshold float64) (skillID string, ambiguous bool) {
	for _, c := range candidates {
		if similarity(key, c.cleaned) < threshold {
			continue
		}
		if skillID != "" && skillID != c.skillID {
			return "", true
		}
		skillID = c.skillID
	}
	return skillID, false
}

// similarity scores two cleaned strings in [0,1] as the better of normalized
// Levenshtein similarity and token-set overlap. Edit distance catches
// spelling variants; token overlap catches reordered or partially matching
// multi-word names.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	lev := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)

	return math.Max(lev, tokenOverlap(a, b))
}

// tokenOverlap is the Jaccard index over whitespace-separated tokens.
func tokenOverlap(a, b string) float64 {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}
	set := make(map[string]bool, len(at))
	for _, tok := range at {
		set[tok] = true
	}
	bset := make(map[string]bool, len(bt))
	for _, tok := range bt {
		bset[tok] = true
	}
	shared := 0
	union := len(set)
	for tok := range bset {
		if set[tok] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}
