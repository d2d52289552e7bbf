package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "abc", "abc", 100},
		{"one substitution", "abc", "abd", 66.6667},
		{"both empty", "", "", 100},
		{"one empty", "a", "", 0},
		{"inserted word", "age death", "age at death", 85.7143},
		{"counts runes not bytes", "äge", "age", 66.6667},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 0.001)
			assert.InDelta(t, tt.want, Ratio(tt.b, tt.a), 0.001, "ratio must be symmetric")
		})
	}
}

func TestPartialRatio(t *testing.T) {
	t.Run("substring scores 100", func(t *testing.T) {
		assert.Equal(t, 100.0, PartialRatio("death", "age_at_death"))
		assert.Equal(t, 100.0, PartialRatio("age_at_death", "death"))
	})

	t.Run("best window wins", func(t *testing.T) {
		assert.InDelta(t, 66.6667, PartialRatio("abc", "xxabxx"), 0.001)
	})

	t.Run("equal length falls back to ratio", func(t *testing.T) {
		assert.InDelta(t, Ratio("abcd", "abdc"), PartialRatio("abcd", "abdc"), 0.001)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, 0.0, PartialRatio("", "abc"))
		assert.Equal(t, 100.0, PartialRatio("", ""))
	})

	t.Run("overhanging prefix counts", func(t *testing.T) {
		// "cde" only overlaps the head "de" of the longer string
		assert.InDelta(t, 80.0, PartialRatio("cde", "dexxxxx"), 0.001)
	})
}

func TestTokenSortRatio(t *testing.T) {
	assert.Equal(t, 100.0, TokenSortRatio("death_age", "age death"))
	assert.InDelta(t, 85.7143, TokenSortRatio("age_death", "age_at_death"), 0.001)
	assert.Equal(t, 0.0, TokenSortRatio("___", "age"))
}

func TestTokenSetRatio(t *testing.T) {
	t.Run("subset scores 100", func(t *testing.T) {
		assert.Equal(t, 100.0, TokenSetRatio("age at death", "age_death"))
	})

	t.Run("disjoint tokens", func(t *testing.T) {
		assert.InDelta(t, 33.3333, TokenSetRatio("a b", "c d"), 0.001)
	})

	t.Run("partial overlap uses intersection", func(t *testing.T) {
		score := TokenSetRatio("brain weight fresh", "brain ph")
		assert.Greater(t, score, TokenSortRatio("brain weight fresh", "brain ph"))
		assert.Less(t, score, 100.0)
	})

	t.Run("no tokens", func(t *testing.T) {
		assert.Equal(t, 0.0, TokenSetRatio("--", "age"))
	})
}
