package matcher

import (
	"container/heap"
	"sort"

	"github.com/cdematcher/backend/internal/domain"
	"github.com/cdematcher/backend/internal/textutil"
)

// algorithm pairs the per-string preprocessing of a fuzzy algorithm with its
// 0-100 scorer, so targets are preprocessed once per index.
type algorithm struct {
	prepare func(string) string
	score   func(a, b string) float64
}

var algorithms = map[domain.FuzzyAlgorithm]algorithm{
	domain.AlgorithmRatio: {
		prepare: identity,
		score:   textutil.Ratio,
	},
	domain.AlgorithmPartialRatio: {
		prepare: identity,
		score:   textutil.PartialRatio,
	},
	domain.AlgorithmTokenSortRatio: {
		prepare: textutil.SortedTokens,
		score: func(a, b string) float64 {
			if a == "" || b == "" {
				return 0
			}
			return textutil.Ratio(a, b)
		},
	},
	domain.AlgorithmTokenSetRatio: {
		prepare: identity,
		score:   textutil.TokenSetRatio,
	},
}

func identity(s string) string { return s }

// Fuzzy returns every target whose similarity to the source reaches the
// threshold under the configured algorithm.
type Fuzzy struct {
	cfg  domain.FuzzyConfig
	algo algorithm
}

// NewFuzzy creates a fuzzy matcher.
func NewFuzzy(cfg domain.FuzzyConfig) (*Fuzzy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	algo, ok := algorithms[cfg.Algorithm]
	if !ok {
		return nil, domain.NewConfigurationError(string(domain.MatchTypeFuzzy), "algorithm", cfg.Algorithm, "unsupported algorithm")
	}
	return &Fuzzy{cfg: cfg, algo: algo}, nil
}

func (m *Fuzzy) Kind() domain.MatchType { return domain.MatchTypeFuzzy }

func (m *Fuzzy) Config() domain.StrategyConfig { return m.cfg }

// Index preprocesses every unique target once.
func (m *Fuzzy) Index(targets []string) Index {
	unique := uniqueTargets(targets)
	idx := &fuzzyIndex{cfg: m.cfg, algo: m.algo, targets: make([]fuzzyTarget, len(unique))}
	for i, t := range unique {
		idx.targets[i] = fuzzyTarget{original: t, compare: m.algo.prepare(textutil.Prepare(t, m.cfg.CaseSensitive))}
	}
	return idx
}

// Match finds fuzzy matches between source and targets.
func (m *Fuzzy) Match(source string, targets []string) ([]domain.MatchResult, error) {
	return m.Index(targets).Match(source)
}

type fuzzyTarget struct {
	original string
	compare  string
}

type fuzzyIndex struct {
	cfg     domain.FuzzyConfig
	algo    algorithm
	targets []fuzzyTarget
}

type candidate struct {
	target string
	score  float64
}

// better orders candidates like domain.Less: score descending, target ascending.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.target < b.target
}

func (idx *fuzzyIndex) Match(source string) ([]domain.MatchResult, error) {
	if err := checkSource(domain.MatchTypeFuzzy, source); err != nil {
		return nil, err
	}
	compare := idx.algo.prepare(textutil.Prepare(source, idx.cfg.CaseSensitive))

	var kept []candidate
	if idx.cfg.MaxResults > 0 {
		kept = idx.topK(compare, idx.cfg.MaxResults)
	} else {
		kept = idx.all(compare)
	}

	results := make([]domain.MatchResult, 0, len(kept))
	for _, c := range kept {
		res, err := newResult(domain.MatchTypeFuzzy, source, c.target, toConfidence(c.score), map[string]any{
			"algorithm":      string(idx.cfg.Algorithm),
			"threshold":      idx.cfg.Threshold,
			"raw_score":      c.score,
			"case_sensitive": idx.cfg.CaseSensitive,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (idx *fuzzyIndex) all(compare string) []candidate {
	var out []candidate
	for _, t := range idx.targets {
		score := idx.algo.score(compare, t.compare)
		if toConfidence(score) >= idx.cfg.Threshold {
			out = append(out, candidate{target: t.original, score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}

// topK keeps only the k best candidates in a bounded heap while scanning.
func (idx *fuzzyIndex) topK(compare string, k int) []candidate {
	h := make(worstFirst, 0, k)
	for _, t := range idx.targets {
		score := idx.algo.score(compare, t.compare)
		if toConfidence(score) < idx.cfg.Threshold {
			continue
		}
		c := candidate{target: t.original, score: score}
		if h.Len() < k {
			heap.Push(&h, c)
		} else if better(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}
	out := []candidate(h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}

func toConfidence(score float64) float64 {
	c := score / 100
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}

// worstFirst is a heap with the weakest candidate on top.
type worstFirst []candidate

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
