package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// StrategyConfig is the validated configuration of one matching strategy.
// It is implemented by ExactConfig, FuzzyConfig and SemanticConfig.
type StrategyConfig interface {
	Kind() MatchType
	Validate() error
}

// FuzzyAlgorithm selects the similarity function of a fuzzy matcher
type FuzzyAlgorithm string

const (
	AlgorithmRatio          FuzzyAlgorithm = "ratio"
	AlgorithmPartialRatio   FuzzyAlgorithm = "partial_ratio"
	AlgorithmTokenSortRatio FuzzyAlgorithm = "token_sort_ratio"
	AlgorithmTokenSetRatio  FuzzyAlgorithm = "token_set_ratio"
)

// FuzzyAlgorithms lists the supported algorithms.
func FuzzyAlgorithms() []FuzzyAlgorithm {
	return []FuzzyAlgorithm{AlgorithmRatio, AlgorithmPartialRatio, AlgorithmTokenSortRatio, AlgorithmTokenSetRatio}
}

// Valid reports whether a is a supported fuzzy algorithm.
func (a FuzzyAlgorithm) Valid() bool {
	for _, known := range FuzzyAlgorithms() {
		if a == known {
			return true
		}
	}
	return false
}

// ExactConfig configures the exact matcher
type ExactConfig struct {
	CaseSensitive bool `json:"case_sensitive" mapstructure:"case_sensitive"`
}

// DefaultExactConfig returns the exact matcher defaults.
func DefaultExactConfig() ExactConfig {
	return ExactConfig{}
}

func (c ExactConfig) Kind() MatchType { return MatchTypeExact }

func (c ExactConfig) Validate() error { return nil }

// FuzzyConfig configures the fuzzy matcher.
// Threshold is in [0,1]; MaxResults of 0 keeps every result above the threshold.
type FuzzyConfig struct {
	Threshold     float64        `json:"threshold" mapstructure:"threshold"`
	Algorithm     FuzzyAlgorithm `json:"algorithm" mapstructure:"algorithm"`
	CaseSensitive bool           `json:"case_sensitive" mapstructure:"case_sensitive"`
	MaxResults    int            `json:"max_results" mapstructure:"max_results"`
}

// DefaultFuzzyConfig returns the fuzzy matcher defaults.
func DefaultFuzzyConfig() FuzzyConfig {
	return FuzzyConfig{Threshold: 0.7, Algorithm: AlgorithmRatio}
}

func (c FuzzyConfig) Kind() MatchType { return MatchTypeFuzzy }

func (c FuzzyConfig) Validate() error {
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > 1 {
		return NewConfigurationError(string(MatchTypeFuzzy), "threshold", c.Threshold, "must be between 0.0 and 1.0")
	}
	if !c.Algorithm.Valid() {
		names := make([]string, 0, 4)
		for _, a := range FuzzyAlgorithms() {
			names = append(names, string(a))
		}
		return NewConfigurationError(string(MatchTypeFuzzy), "algorithm", c.Algorithm,
			"must be one of: "+strings.Join(names, ", "))
	}
	if c.MaxResults < 0 {
		return NewConfigurationError(string(MatchTypeFuzzy), "max_results", c.MaxResults, "must be zero (unlimited) or positive")
	}
	return nil
}

// SemanticConfig configures the semantic matcher. CustomMappings are merged
// over the built-in concept table; an entry for an existing concept replaces
// its built-in variants.
type SemanticConfig struct {
	CaseSensitive  bool                `json:"case_sensitive" mapstructure:"case_sensitive"`
	ExactOnly      bool                `json:"exact_only" mapstructure:"exact_only"`
	CustomMappings map[string][]string `json:"custom_mappings,omitempty" mapstructure:"custom_mappings"`
}

// DefaultSemanticConfig returns the semantic matcher defaults.
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{}
}

func (c SemanticConfig) Kind() MatchType { return MatchTypeSemantic }

func (c SemanticConfig) Validate() error {
	for concept, variants := range c.CustomMappings {
		if strings.TrimSpace(concept) == "" {
			return NewConfigurationError(string(MatchTypeSemantic), "custom_mappings", concept, "concept name must not be empty")
		}
		if len(variants) == 0 {
			return NewConfigurationError(string(MatchTypeSemantic), "custom_mappings."+concept, variants, "needs at least one variant")
		}
		for _, v := range variants {
			if strings.TrimSpace(v) == "" {
				return NewConfigurationError(string(MatchTypeSemantic), "custom_mappings."+concept, variants, "variants must not be empty")
			}
		}
	}
	return nil
}

// Clone returns a copy that shares no maps or slices with c.
func (c SemanticConfig) Clone() SemanticConfig {
	out := c
	if c.CustomMappings != nil {
		out.CustomMappings = make(map[string][]string, len(c.CustomMappings))
		for k, v := range c.CustomMappings {
			out.CustomMappings[k] = append([]string(nil), v...)
		}
	}
	return out
}

// Canonical returns a copy with sorted variant lists, so equal mappings
// render to identical JSON.
func (c SemanticConfig) Canonical() SemanticConfig {
	out := c.Clone()
	for _, v := range out.CustomMappings {
		sort.Strings(v)
	}
	return out
}

// StrategySpec is a declarative ensemble entry: a strategy kind plus its raw
// parameters. In JSON it is a flat object, {"kind": "fuzzy", "threshold": 0.8};
// "type" is accepted in place of "kind".
type StrategySpec struct {
	Kind   string
	Params map[string]any
}

func (s StrategySpec) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(s.Params)+1)
	for k, v := range s.Params {
		flat[k] = v
	}
	flat["kind"] = s.Kind
	return json.Marshal(flat)
}

func (s *StrategySpec) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	return s.fromMap(flat)
}

// SpecFromMap builds a StrategySpec from a flat parameter map.
func SpecFromMap(flat map[string]any) (StrategySpec, error) {
	var s StrategySpec
	err := s.fromMap(flat)
	return s, err
}

func (s *StrategySpec) fromMap(flat map[string]any) error {
	kindKey := "kind"
	raw, ok := flat[kindKey]
	if !ok {
		kindKey = "type"
		raw, ok = flat[kindKey]
	}
	if !ok {
		return NewConfigurationError("", "kind", nil, "missing required strategy kind")
	}
	kind, isString := raw.(string)
	if !isString {
		return NewConfigurationError("", "kind", raw, fmt.Sprintf("must be a string, got %T", raw))
	}
	params := make(map[string]any, len(flat))
	for k, v := range flat {
		if k == kindKey {
			continue
		}
		params[k] = v
	}
	s.Kind = kind
	s.Params = params
	return nil
}
