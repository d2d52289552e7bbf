package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdematcher/backend/internal/domain"
	"github.com/cdematcher/backend/internal/matcher"
)

// fakeMatcher lets tests control what one strategy returns per source.
type fakeMatcher struct {
	kind  domain.MatchType
	cfg   domain.StrategyConfig
	match func(source string) ([]domain.MatchResult, error)
	calls *atomic.Int32
}

func (f *fakeMatcher) Kind() domain.MatchType { return f.kind }

func (f *fakeMatcher) Config() domain.StrategyConfig { return f.cfg }

func (f *fakeMatcher) Index(targets []string) matcher.Index { return fakeIndex{f} }

func (f *fakeMatcher) Match(source string, targets []string) ([]domain.MatchResult, error) {
	return f.Index(targets).Match(source)
}

type fakeIndex struct{ m *fakeMatcher }

func (i fakeIndex) Match(source string) ([]domain.MatchResult, error) {
	if i.m.calls != nil {
		i.m.calls.Add(1)
	}
	return i.m.match(source)
}

// factoryWith uses the real constructors except for kind, which builds m.
func factoryWith(kind domain.MatchType, m *fakeMatcher) *matcher.Factory {
	builtin := matcher.DefaultFactory()
	constructors := make(map[domain.MatchType]matcher.Constructor)
	for _, k := range domain.AllMatchTypes() {
		constructors[k] = builtin.Create
	}
	constructors[kind] = func(cfg domain.StrategyConfig) (matcher.Matcher, error) {
		m.cfg = cfg
		return m, nil
	}
	return matcher.NewFactory(constructors)
}

var (
	testSources = []string{"age_death", "Sex", "donor id", "pmi_hours"}
	testTargets = []string{"age_at_death", "death_age", "sex", "participant_id", "pmi", "birth_date"}
)

func TestPipeline_RunIsIdempotent(t *testing.T) {
	p := NewPipeline(nil, PipelineConfig{Workers: 4})

	first, err := p.Run(context.Background(), testSources, testTargets, nil)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), testSources, testTargets, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ConfigFingerprint, second.ConfigFingerprint)
	assert.Equal(t, first.ResultsByType, second.ResultsByType)
	assert.Empty(t, first.Failures)
}

func TestPipeline_ResultsByType(t *testing.T) {
	p := NewPipeline(nil, PipelineConfig{})

	report, err := p.Run(context.Background(), testSources, testTargets, nil)
	require.NoError(t, err)

	require.Len(t, report.ResultsByType, 3)
	exact := report.ResultsByType[domain.MatchTypeExact]
	require.Len(t, exact, 1)
	assert.Equal(t, domain.Pair{Source: "Sex", Target: "sex"}, exact[0].Pair())

	semantic, ok := report.Find(domain.Pair{Source: "donor id", Target: "participant_id"})
	require.True(t, ok)
	assert.Equal(t, domain.MatchTypeSemantic, semantic.MatchType)
	assert.Equal(t, 1.0, semantic.Confidence)

	for kind, results := range report.ResultsByType {
		assert.Equal(t, len(results), report.Summary.Counts[kind])
		for i := 1; i < len(results); i++ {
			assert.False(t, domain.Less(results[i], results[i-1]), "%s results out of order", kind)
		}
	}
	assert.Equal(t, 4, report.Summary.SourceCount)
	assert.Equal(t, 6, report.Summary.TargetCount)
	require.Len(t, report.Summary.Strategies, 3)
	assert.Equal(t, domain.MatchTypeFuzzy, report.Summary.Strategies[1].Kind)
	assert.Len(t, report.ConfigFingerprint, 64)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestPipeline_UniquePairsSpanTypes(t *testing.T) {
	p := NewPipeline(nil, PipelineConfig{})

	report, err := p.RunConfigs(context.Background(), []string{"sex"}, []string{"sex"}, nil)
	require.NoError(t, err)

	// exact, fuzzy and semantic all find the same pair
	assert.Equal(t, 1, report.Summary.Counts[domain.MatchTypeExact])
	assert.Equal(t, 1, report.Summary.Counts[domain.MatchTypeFuzzy])
	assert.Equal(t, 1, report.Summary.Counts[domain.MatchTypeSemantic])
	assert.Equal(t, 1, report.Summary.UniquePairs)
	assert.Equal(t, 3, report.Total())
}

func TestPipeline_DedupeKeepsHighestConfidence(t *testing.T) {
	p := NewPipeline(nil, PipelineConfig{})

	report, err := p.RunConfigs(context.Background(), []string{"age_death"}, []string{"death_age"}, []domain.StrategyConfig{
		domain.FuzzyConfig{Threshold: 0.3, Algorithm: domain.AlgorithmRatio},
		domain.FuzzyConfig{Threshold: 0.3, Algorithm: domain.AlgorithmTokenSortRatio},
	})
	require.NoError(t, err)

	fuzzy := report.ResultsByType[domain.MatchTypeFuzzy]
	require.Len(t, fuzzy, 1)
	assert.Equal(t, 1.0, fuzzy[0].Confidence)
	assert.Equal(t, "token_sort_ratio", fuzzy[0].Metadata["algorithm"])
	assert.Equal(t, 2, report.Summary.Strategies[0].Results+report.Summary.Strategies[1].Results)
}

func TestPipeline_DedupeTieIgnoresEnsembleOrder(t *testing.T) {
	p := NewPipeline(nil, PipelineConfig{})
	ratio := domain.FuzzyConfig{Threshold: 0.5, Algorithm: domain.AlgorithmRatio}
	tokenSort := domain.FuzzyConfig{Threshold: 0.5, Algorithm: domain.AlgorithmTokenSortRatio}

	forward, err := p.RunConfigs(context.Background(), []string{"sex"}, []string{"sex"}, []domain.StrategyConfig{ratio, tokenSort})
	require.NoError(t, err)
	reversed, err := p.RunConfigs(context.Background(), []string{"sex"}, []string{"sex"}, []domain.StrategyConfig{tokenSort, ratio})
	require.NoError(t, err)

	assert.Equal(t, forward.ConfigFingerprint, reversed.ConfigFingerprint)
	assert.Equal(t, forward.ResultsByType, reversed.ResultsByType)

	// both score 1.0; the smaller canonical config wins the tie
	fuzzy := forward.ResultsByType[domain.MatchTypeFuzzy]
	require.Len(t, fuzzy, 1)
	assert.Equal(t, "ratio", fuzzy[0].Metadata["algorithm"])
}

func TestPipeline_EmptyInputs(t *testing.T) {
	p := NewPipeline(nil, PipelineConfig{})

	t.Run("empty targets", func(t *testing.T) {
		report, err := p.Run(context.Background(), testSources, nil, nil)
		require.NoError(t, err)
		for _, kind := range domain.AllMatchTypes() {
			results, ok := report.ResultsByType[kind]
			assert.True(t, ok, kind)
			assert.Empty(t, results, kind)
		}
		assert.Equal(t, 0, report.Summary.UniquePairs)
	})

	t.Run("empty sources", func(t *testing.T) {
		report, err := p.Run(context.Background(), nil, testTargets, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Total())
		assert.Equal(t, 0, report.Summary.UniquePairs)
		assert.Equal(t, 0, report.Summary.SourceCount)
		for _, kind := range domain.AllMatchTypes() {
			assert.Equal(t, 0, report.Summary.Counts[kind])
		}
	})
}

func TestPipeline_CleansInputs(t *testing.T) {
	p := NewPipeline(nil, PipelineConfig{})

	report, err := p.Run(context.Background(), []string{" sex", "sex ", "", "  "}, []string{"sex", "sex", ""}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Summary.SourceCount)
	assert.Equal(t, 1, report.Summary.TargetCount)
	require.Len(t, report.ResultsByType[domain.MatchTypeExact], 1)
	assert.Equal(t, "sex", report.ResultsByType[domain.MatchTypeExact][0].Source)
}

func TestPipeline_WorkerCountDoesNotChangeOutput(t *testing.T) {
	ctx := context.Background()
	serial, err := NewPipeline(nil, PipelineConfig{Workers: 1}).Run(ctx, testSources, testTargets, nil)
	require.NoError(t, err)
	parallel, err := NewPipeline(nil, PipelineConfig{Workers: 16}).Run(ctx, testSources, testTargets, nil)
	require.NoError(t, err)

	assert.Equal(t, serial.ResultsByType, parallel.ResultsByType)
	assert.Equal(t, serial.ConfigFingerprint, parallel.ConfigFingerprint)
}

func TestPipeline_ConfigurationErrorBeforeMatching(t *testing.T) {
	calls := &atomic.Int32{}
	fake := &fakeMatcher{kind: domain.MatchTypeSemantic, calls: calls, match: func(string) ([]domain.MatchResult, error) { return nil, nil }}
	p := NewPipeline(factoryWith(domain.MatchTypeSemantic, fake), PipelineConfig{})

	_, err := p.Run(context.Background(), testSources, testTargets, []domain.StrategySpec{
		{Kind: "semantic"},
		{Kind: "fuzzy", Params: map[string]any{"threshold": 1.5}},
	})
	require.Error(t, err)

	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, 1, cfgErr.Index)
	assert.Equal(t, "fuzzy", cfgErr.Kind)
	assert.Equal(t, int32(0), calls.Load())
}

func TestPipeline_MatchingErrorDropsOnlyThatStrategy(t *testing.T) {
	tests := []struct {
		name  string
		match func(source string) ([]domain.MatchResult, error)
	}{
		{
			name: "returned error",
			match: func(source string) ([]domain.MatchResult, error) {
				if source == "Sex" {
					return nil, errors.New("concept table corrupted")
				}
				return nil, nil
			},
		},
		{
			name: "panic",
			match: func(source string) ([]domain.MatchResult, error) {
				if source == "Sex" {
					panic("index out of range")
				}
				return nil, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeMatcher{kind: domain.MatchTypeSemantic, match: tt.match}
			p := NewPipeline(factoryWith(domain.MatchTypeSemantic, fake), PipelineConfig{Workers: 2})

			report, err := p.Run(context.Background(), testSources, testTargets, nil)
			require.NoError(t, err)

			require.Len(t, report.Failures, 1)
			failure := report.Failures[0]
			assert.Equal(t, 2, failure.Index)
			assert.Equal(t, domain.MatchTypeSemantic, failure.Kind)
			assert.Equal(t, "Sex", failure.Source)
			assert.NotEmpty(t, failure.Error)

			assert.Empty(t, report.ResultsByType[domain.MatchTypeSemantic])
			assert.NotEmpty(t, report.ResultsByType[domain.MatchTypeExact])
			assert.NotEmpty(t, report.ResultsByType[domain.MatchTypeFuzzy])
		})
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(nil, PipelineConfig{}).Run(ctx, testSources, testTargets, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_FingerprintMatchesStandalone(t *testing.T) {
	report, err := NewPipeline(nil, PipelineConfig{}).Run(context.Background(), testSources, testTargets, nil)
	require.NoError(t, err)

	want, err := Fingerprint(testSources, testTargets, matcher.DefaultEnsemble())
	require.NoError(t, err)
	assert.Equal(t, want, report.ConfigFingerprint)
}
