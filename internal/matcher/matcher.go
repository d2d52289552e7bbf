// Package matcher implements the exact, fuzzy and semantic matching
// strategies and the factory that builds them from declarative config.
package matcher

import (
	"sort"
	"strings"

	"github.com/cdematcher/backend/internal/domain"
)

// Matcher is one configured matching strategy. Implementations are
// read-only after construction and safe for concurrent use.
type Matcher interface {
	// Kind returns the strategy kind, which is also the MatchType of its results.
	Kind() domain.MatchType
	// Config returns a copy of the validated configuration.
	Config() domain.StrategyConfig
	// Index prepares the target vocabulary once so it can be reused for many sources.
	Index(targets []string) Index
	// Match compares one source against targets. Results follow domain.Less.
	Match(source string, targets []string) ([]domain.MatchResult, error)
}

// Index is a target vocabulary prepared by a Matcher. It is read-only and
// safe for concurrent use.
type Index interface {
	Match(source string) ([]domain.MatchResult, error)
}

// checkSource rejects sources that are blank after trimming.
func checkSource(kind domain.MatchType, source string) error {
	if strings.TrimSpace(source) == "" {
		return &domain.MatchingError{
			Strategy: kind,
			Index:    -1,
			Source:   source,
			Err:      &domain.ValidationError{Field: "source", Value: `""`, Reason: "must not be empty"},
		}
	}
	return nil
}

// uniqueTargets drops blank and repeated targets and returns the rest sorted,
// so every index is independent of the order targets were supplied in.
func uniqueTargets(targets []string) []string {
	seen := make(map[string]bool, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if strings.TrimSpace(t) == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// newResult builds a result, turning a validation failure into a MatchingError
// that names the pair.
func newResult(kind domain.MatchType, source, target string, confidence float64, metadata map[string]any) (domain.MatchResult, error) {
	res, err := domain.NewMatchResult(source, target, confidence, kind, metadata)
	if err != nil {
		return domain.MatchResult{}, &domain.MatchingError{Strategy: kind, Index: -1, Source: source, Target: target, Err: err}
	}
	return res, nil
}
