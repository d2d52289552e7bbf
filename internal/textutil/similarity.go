package textutil

import "strings"

// Ratio returns the normalized Indel similarity of a and b on a 0-100 scale:
// 100 * 2*LCS / (len(a)+len(b)), counted in runes. Two empty strings score 100,
// one empty string scores 0.
func Ratio(a, b string) float64 {
	return runeRatio([]rune(a), []rune(b))
}

func runeRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return 100 * float64(2*lcsLength(a, b)) / float64(total)
}

// lcsLength computes the longest common subsequence length with two DP rows.
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// PartialRatio scores the shorter string against every alignment inside the
// longer one and keeps the best Ratio. Alignments are the full-length windows
// plus the partial windows hanging over either end.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}
	if len(short) == len(long) {
		return runeRatio(short, long)
	}

	m, n := len(short), len(long)
	best := 0.0
	consider := func(window []rune) bool {
		if score := runeRatio(short, window); score > best {
			best = score
		}
		return best == 100
	}
	for i := 1; i < m; i++ {
		if consider(long[:i]) {
			return best
		}
	}
	for i := 0; i+m <= n; i++ {
		if consider(long[i : i+m]) {
			return best
		}
	}
	for i := m - 1; i >= 1; i-- {
		if consider(long[n-i:]) {
			return best
		}
	}
	return best
}

// TokenSortRatio compares the strings after sorting their tokens, which makes
// it insensitive to word order.
func TokenSortRatio(a, b string) float64 {
	sa, sb := SortedTokens(a), SortedTokens(b)
	if sa == "" || sb == "" {
		return 0
	}
	return Ratio(sa, sb)
}

// TokenSetRatio compares the shared tokens against each side's full token set,
// which tolerates extra or missing tokens. It scores 100 when one token set
// contains the other.
func TokenSetRatio(a, b string) float64 {
	setA, setB := TokenSet(a), TokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inB := make(map[string]bool, len(setB))
	for _, t := range setB {
		inB[t] = true
	}
	var intersection, diffA, diffB []string
	inA := make(map[string]bool, len(setA))
	for _, t := range setA {
		inA[t] = true
		if inB[t] {
			intersection = append(intersection, t)
		} else {
			diffA = append(diffA, t)
		}
	}
	for _, t := range setB {
		if !inA[t] {
			diffB = append(diffB, t)
		}
	}
	if len(intersection) > 0 && (len(diffA) == 0 || len(diffB) == 0) {
		return 100
	}

	sect := strings.Join(intersection, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(diffA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(diffB, " "))

	best := Ratio(combinedA, combinedB)
	if sect != "" {
		best = max(best, Ratio(sect, combinedA), Ratio(sect, combinedB))
	}
	return best
}
