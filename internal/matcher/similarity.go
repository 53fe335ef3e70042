// Package matcher scores bank deposit rows against open membership-fee
// invoices and classifies each row into a match outcome.
//
// Matching combines three signals: amount equality, depositor/member name
// similarity, and license-number containment. Scores are additive with a
// 0-100 cap; classification applies a dominance gap so that near-ties are
// surfaced for human review instead of being auto-resolved.
package matcher

import (
	"strings"
	"unicode"
)

// Similarity computes a normalized similarity score in [0,1] between two
// display names.
//
// Both names are normalized first (whitespace and digits removed, only
// letters kept, lowercased). Digits are dropped so a license number embedded
// in the depositor field, like "이영희(12345)", compares as the bare name;
// the license signal is scored separately. An exact normalized match scores
// 1.0; substring containment in either direction scores a fixed 0.9, which
// rewards common prefix/suffix variants like "김철수(약국)" vs "김철수".
// Otherwise the score decays with Levenshtein distance relative to the
// longer name. Two empty names score 0.
func Similarity(a, b string) float64 {
	na := normalizeName(a)
	nb := normalizeName(b)

	if na == "" && nb == "" {
		return 0
	}

	if na == nb {
		return 1.0
	}

	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return 0.9
	}

	ra := []rune(na)
	rb := []rune(nb)

	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 0
	}

	distance := levenshtein(ra, rb)
	score := 1.0 - float64(distance)/float64(longest)
	if score < 0 {
		return 0
	}
	return score
}

// normalizeName strips whitespace, digits and everything outside letters,
// then lowercases.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsSpace(r) || unicode.IsDigit(r):
			continue
		case r >= '가' && r <= '힣':
			b.WriteRune(r)
		case unicode.IsLetter(r) || r == '_':
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// levenshtein computes the classic edit distance with unit costs for
// insertion, deletion and substitution.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			deletion := prev[j] + 1
			insertion := curr[j-1] + 1
			substitution := prev[j-1] + cost

			min := deletion
			if insertion < min {
				min = insertion
			}
			if substitution < min {
				min = substitution
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
