package textutil

import (
	"sort"
	"strings"
	"unicode"
)

// Tokenize splits s on every rune that is neither a letter nor a digit.
// Case is left untouched.
func Tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// SortedTokens tokenizes s, sorts the tokens and joins them with single spaces.
func SortedTokens(s string) string {
	tokens := Tokenize(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// TokenSet returns the unique tokens of s in sorted order.
func TokenSet(s string) []string {
	return uniqueSorted(Tokenize(s))
}

// Overlap returns the size of the intersection and of the union of two token sets.
func Overlap(a, b []string) (intersection, union int) {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	union = len(set)
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			intersection++
		} else {
			union++
		}
	}
	return intersection, union
}

func uniqueSorted(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	sort.Strings(tokens)
	out := tokens[:1]
	for _, t := range tokens[1:] {
		if t != out[len(out)-1] {
			out = append(out, t)
		}
	}
	return out
}
