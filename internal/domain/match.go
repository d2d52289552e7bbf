package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// MatchType identifies the strategy that produced a MatchResult
type MatchType string

const (
	MatchTypeExact    MatchType = "exact"
	MatchTypeFuzzy    MatchType = "fuzzy"
	MatchTypeSemantic MatchType = "semantic"
)

// AllMatchTypes returns the strategy kinds in canonical order.
func AllMatchTypes() []MatchType {
	return []MatchType{MatchTypeExact, MatchTypeFuzzy, MatchTypeSemantic}
}

// Valid reports whether t is one of the known strategy kinds.
func (t MatchType) Valid() bool {
	switch t {
	case MatchTypeExact, MatchTypeFuzzy, MatchTypeSemantic:
		return true
	}
	return false
}

// ParseMatchType parses a strategy kind name, case-insensitively.
func ParseMatchType(s string) (MatchType, error) {
	t := MatchType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", NewConfigurationError(s, "kind", s, "unknown strategy kind, want exact, fuzzy or semantic")
	}
	return t, nil
}

// MatchResult is one candidate mapping of a source variable onto a CDE item
type MatchResult struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Confidence float64        `json:"confidence"`
	MatchType  MatchType      `json:"match_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewMatchResult validates the fields and builds a MatchResult.
func NewMatchResult(source, target string, confidence float64, matchType MatchType, metadata map[string]any) (MatchResult, error) {
	if strings.TrimSpace(source) == "" {
		return MatchResult{}, &ValidationError{Field: "source", Value: fmt.Sprintf("%q", source), Reason: "must not be empty"}
	}
	if strings.TrimSpace(target) == "" {
		return MatchResult{}, &ValidationError{Field: "target", Value: fmt.Sprintf("%q", target), Reason: "must not be empty"}
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return MatchResult{}, &ValidationError{Field: "confidence", Value: confidence, Reason: "must be between 0.0 and 1.0"}
	}
	if !matchType.Valid() {
		return MatchResult{}, &ValidationError{Field: "match_type", Value: matchType, Reason: "unknown match type"}
	}
	return MatchResult{
		Source:     source,
		Target:     target,
		Confidence: confidence,
		MatchType:  matchType,
		Metadata:   metadata,
	}, nil
}

// Pair returns the (source, target) identity of the result.
func (r MatchResult) Pair() Pair {
	return Pair{Source: r.Source, Target: r.Target}
}

// Pair identifies a candidate mapping independently of the strategy that found it
type Pair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Less is the ordering every strategy sorts by: confidence descending, then
// target ascending, then source ascending.
func Less(a, b MatchResult) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Target != b.Target {
		return a.Target < b.Target
	}
	return a.Source < b.Source
}

// SortResults sorts results in place by Less and returns them.
func SortResults(results []MatchResult) []MatchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return Less(results[i], results[j])
	})
	return results
}
