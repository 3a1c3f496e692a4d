package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeHeadline lowercases a headline and strips punctuation so the
// same story fetched from two sources hashes identically.
func NormalizeHeadline(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}

// ContentHash returns the SHA-256 hex digest of the normalized headline.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeHeadline(text)))
	return hex.EncodeToString(sum[:])
}

// TokenSimilarity computes Jaccard similarity between the token sets of
// two summaries. 1.0 means identical token sets.
func TokenSimilarity(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			intersection++
		}
	}

	union := len(tokensA) + len(tokensB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// IsNearDuplicate reports whether a summary is effectively the same as
// any of the recent ones. The threshold comes from observed repost noise;
// above 0.90 the stories are rewordings of the same event.
func IsNearDuplicate(summary string, recent []string, threshold float64) bool {
	for _, other := range recent {
		if TokenSimilarity(summary, other) > threshold {
			return true
		}
	}
	return false
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(NormalizeHeadline(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
