package usecase

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdematcher/backend/internal/domain"
)

func mustFingerprint(t *testing.T, sources, targets []string, configs ...domain.StrategyConfig) string {
	t.Helper()
	fp, err := Fingerprint(sources, targets, configs)
	require.NoError(t, err)
	return fp
}

func specsFromJSON(t *testing.T, raw string) []domain.StrategySpec {
	t.Helper()
	var specs []domain.StrategySpec
	require.NoError(t, json.Unmarshal([]byte(raw), &specs))
	return specs
}

func TestFingerprint_Stable(t *testing.T) {
	sources := []string{"age_death", "sex"}
	targets := []string{"age_at_death", "sex"}
	fuzzy := domain.FuzzyConfig{Threshold: 0.8, Algorithm: domain.AlgorithmTokenSortRatio}

	base := mustFingerprint(t, sources, targets, domain.DefaultExactConfig(), fuzzy)
	assert.Len(t, base, 64)

	tests := []struct {
		name    string
		sources []string
		targets []string
		configs []domain.StrategyConfig
	}{
		{"same input", sources, targets, []domain.StrategyConfig{domain.DefaultExactConfig(), fuzzy}},
		{"list order", []string{"sex", "age_death"}, []string{"sex", "age_at_death"}, []domain.StrategyConfig{domain.DefaultExactConfig(), fuzzy}},
		{"whitespace and repeats", []string{" sex", "age_death", "sex", ""}, targets, []domain.StrategyConfig{domain.DefaultExactConfig(), fuzzy}},
		{"ensemble order", sources, targets, []domain.StrategyConfig{fuzzy, domain.DefaultExactConfig()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, base, mustFingerprint(t, tt.sources, tt.targets, tt.configs...))
		})
	}
}

func TestFingerprint_Changes(t *testing.T) {
	sources := []string{"age_death"}
	targets := []string{"age_at_death"}
	base := mustFingerprint(t, sources, targets, domain.DefaultFuzzyConfig())

	tests := []struct {
		name    string
		sources []string
		targets []string
		config  domain.StrategyConfig
	}{
		{"threshold", sources, targets, domain.FuzzyConfig{Threshold: 0.71, Algorithm: domain.AlgorithmRatio}},
		{"algorithm", sources, targets, domain.FuzzyConfig{Threshold: 0.7, Algorithm: domain.AlgorithmPartialRatio}},
		{"case sensitivity", sources, targets, domain.FuzzyConfig{Threshold: 0.7, Algorithm: domain.AlgorithmRatio, CaseSensitive: true}},
		{"kind", sources, targets, domain.DefaultExactConfig()},
		{"sources", []string{"age_death", "sex"}, targets, domain.DefaultFuzzyConfig()},
		{"targets", sources, []string{"Age_At_Death"}, domain.DefaultFuzzyConfig()},
		{"sources and targets swapped", targets, sources, domain.DefaultFuzzyConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, mustFingerprint(t, tt.sources, tt.targets, tt.config))
		})
	}
}

func TestFingerprint_Specs(t *testing.T) {
	sources := []string{"donor id"}
	targets := []string{"participant_id"}

	t.Run("key order does not matter", func(t *testing.T) {
		a, err := FingerprintSpecs(sources, targets, specsFromJSON(t, `[{"kind":"fuzzy","threshold":0.8,"algorithm":"token_set_ratio"}]`))
		require.NoError(t, err)
		b, err := FingerprintSpecs(sources, targets, specsFromJSON(t, `[{"algorithm":"token_set_ratio","threshold":0.8,"type":"fuzzy"}]`))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("defaults are applied", func(t *testing.T) {
		a, err := FingerprintSpecs(sources, targets, specsFromJSON(t, `[{"kind":"fuzzy"}]`))
		require.NoError(t, err)
		b, err := FingerprintSpecs(sources, targets, specsFromJSON(t, `[{"kind":"fuzzy","threshold":0.7,"algorithm":"ratio","max_results":0}]`))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("variant order does not matter", func(t *testing.T) {
		a, err := FingerprintSpecs(sources, targets, specsFromJSON(t, `[{"kind":"semantic","custom_mappings":{"tissue":["a","b"]}}]`))
		require.NoError(t, err)
		b, err := FingerprintSpecs(sources, targets, specsFromJSON(t, `[{"kind":"semantic","custom_mappings":{"tissue":["b","a"]}}]`))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("no specs means default ensemble", func(t *testing.T) {
		a, err := FingerprintSpecs(sources, targets, nil)
		require.NoError(t, err)
		b, err := FingerprintSpecs(sources, targets, specsFromJSON(t, `[{"kind":"semantic"},{"kind":"exact"},{"kind":"fuzzy"}]`))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("invalid spec", func(t *testing.T) {
		_, err := FingerprintSpecs(sources, targets, specsFromJSON(t, `[{"kind":"fuzzy","threshold":2}]`))
		assert.True(t, errors.Is(err, domain.ErrConfiguration))
	})
}

func TestFingerprint_InvalidConfig(t *testing.T) {
	_, err := Fingerprint(nil, nil, []domain.StrategyConfig{domain.FuzzyConfig{Threshold: -1, Algorithm: domain.AlgorithmRatio}})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = Fingerprint(nil, nil, []domain.StrategyConfig{nil})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
