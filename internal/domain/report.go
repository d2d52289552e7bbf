package domain

import "time"

// MatchReport is the aggregate output of one pipeline run
type MatchReport struct {
	ResultsByType     map[MatchType][]MatchResult `json:"results_by_type"`
	Summary           Summary                     `json:"summary"`
	Failures          []StrategyFailure           `json:"failures,omitempty"`
	ConfigFingerprint string                      `json:"config_fingerprint"`
	GeneratedAt       time.Time                   `json:"generated_at"`
}

// Summary holds the statistics of a run
type Summary struct {
	Counts      map[MatchType]int `json:"counts"`
	UniquePairs int               `json:"unique_pairs"`
	SourceCount int               `json:"source_count"`
	TargetCount int               `json:"target_count"`
	Strategies  []StrategyTiming  `json:"strategies"`
}

// StrategyTiming records how long one ensemble entry took
type StrategyTiming struct {
	Index   int           `json:"index"`
	Kind    MatchType     `json:"kind"`
	Results int           `json:"results"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// StrategyFailure records an ensemble entry whose results were dropped
type StrategyFailure struct {
	Index  int       `json:"index"`
	Kind   MatchType `json:"kind"`
	Source string    `json:"source,omitempty"`
	Target string    `json:"target,omitempty"`
	Error  string    `json:"error"`
}

// Find returns the result for a (source, target) pair, searching the types in
// canonical order.
func (r *MatchReport) Find(pair Pair) (MatchResult, bool) {
	if r == nil {
		return MatchResult{}, false
	}
	for _, t := range AllMatchTypes() {
		for _, res := range r.ResultsByType[t] {
			if res.Source == pair.Source && res.Target == pair.Target {
				return res, true
			}
		}
	}
	return MatchResult{}, false
}

// Total returns the number of results across all types.
func (r *MatchReport) Total() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, results := range r.ResultsByType {
		n += len(results)
	}
	return n
}
