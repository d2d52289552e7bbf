package matcher

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"github.com/cdematcher/backend/internal/domain"
)

// Constructor builds a Matcher from an already validated config of its kind.
type Constructor func(cfg domain.StrategyConfig) (Matcher, error)

// Factory creates matchers from configs and declarative specs.
type Factory struct {
	constructors map[domain.MatchType]Constructor
}

// NewFactory creates a factory from an explicit kind to constructor map.
func NewFactory(constructors map[domain.MatchType]Constructor) *Factory {
	f := &Factory{constructors: make(map[domain.MatchType]Constructor, len(constructors))}
	for kind, c := range constructors {
		f.constructors[kind] = c
	}
	return f
}

// DefaultFactory registers the exact, fuzzy and semantic strategies.
func DefaultFactory() *Factory {
	return NewFactory(map[domain.MatchType]Constructor{
		domain.MatchTypeExact: func(cfg domain.StrategyConfig) (Matcher, error) {
			c, ok := cfg.(domain.ExactConfig)
			if !ok {
				return nil, mismatch(domain.MatchTypeExact, cfg)
			}
			m, err := NewExact(c)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		domain.MatchTypeFuzzy: func(cfg domain.StrategyConfig) (Matcher, error) {
			c, ok := cfg.(domain.FuzzyConfig)
			if !ok {
				return nil, mismatch(domain.MatchTypeFuzzy, cfg)
			}
			m, err := NewFuzzy(c)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		domain.MatchTypeSemantic: func(cfg domain.StrategyConfig) (Matcher, error) {
			c, ok := cfg.(domain.SemanticConfig)
			if !ok {
				return nil, mismatch(domain.MatchTypeSemantic, cfg)
			}
			m, err := NewSemantic(c)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	})
}

func mismatch(kind domain.MatchType, cfg domain.StrategyConfig) error {
	return domain.NewConfigurationError(string(kind), "", nil, fmt.Sprintf("unexpected config type %T", cfg))
}

// Kinds returns the registered strategy kinds in canonical order.
func (f *Factory) Kinds() []domain.MatchType {
	var kinds []domain.MatchType
	for _, k := range domain.AllMatchTypes() {
		if _, ok := f.constructors[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Create validates cfg and builds the matcher for its kind.
func (f *Factory) Create(cfg domain.StrategyConfig) (Matcher, error) {
	if cfg == nil {
		return nil, domain.NewConfigurationError("", "", nil, "missing strategy configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	construct, ok := f.constructors[cfg.Kind()]
	if !ok {
		return nil, domain.NewConfigurationError(string(cfg.Kind()), "kind", cfg.Kind(), "no strategy registered for kind")
	}
	return construct(cfg)
}

// CreateFromSpec parses a declarative entry and builds its matcher.
func (f *Factory) CreateFromSpec(spec domain.StrategySpec) (Matcher, error) {
	cfg, err := ParseConfig(spec.Kind, spec.Params)
	if err != nil {
		return nil, err
	}
	return f.Create(cfg)
}

// CreateEnsemble builds every entry or none. The error of the first bad
// entry carries its index and kind.
func (f *Factory) CreateEnsemble(specs []domain.StrategySpec) ([]Matcher, error) {
	if len(specs) == 0 {
		return nil, domain.NewConfigurationError("", "", nil, "ensemble needs at least one strategy")
	}
	matchers := make([]Matcher, 0, len(specs))
	for i, spec := range specs {
		m, err := f.CreateFromSpec(spec)
		if err != nil {
			return nil, atIndex(i, spec.Kind, err)
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

// ParseEnsemble parses every entry or none, with the same errors as
// CreateEnsemble.
func ParseEnsemble(specs []domain.StrategySpec) ([]domain.StrategyConfig, error) {
	if len(specs) == 0 {
		return nil, domain.NewConfigurationError("", "", nil, "ensemble needs at least one strategy")
	}
	configs := make([]domain.StrategyConfig, 0, len(specs))
	for i, spec := range specs {
		cfg, err := ParseConfig(spec.Kind, spec.Params)
		if err != nil {
			return nil, atIndex(i, spec.Kind, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// CreateEnsembleFromConfigs is CreateEnsemble for already typed configs.
func (f *Factory) CreateEnsembleFromConfigs(configs []domain.StrategyConfig) ([]Matcher, error) {
	if len(configs) == 0 {
		return nil, domain.NewConfigurationError("", "", nil, "ensemble needs at least one strategy")
	}
	matchers := make([]Matcher, 0, len(configs))
	for i, cfg := range configs {
		m, err := f.Create(cfg)
		if err != nil {
			kind := ""
			if cfg != nil {
				kind = string(cfg.Kind())
			}
			return nil, atIndex(i, kind, err)
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

func atIndex(i int, kind string, err error) error {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		out := *cfgErr
		out.Index = i
		if out.Kind == "" {
			out.Kind = kind
		}
		return &out
	}
	return &domain.ConfigurationError{Index: i, Kind: kind, Err: err}
}

// DefaultEnsemble is exact, fuzzy and semantic with their defaults.
func DefaultEnsemble() []domain.StrategyConfig {
	return []domain.StrategyConfig{
		domain.DefaultExactConfig(),
		domain.DefaultFuzzyConfig(),
		domain.DefaultSemanticConfig(),
	}
}

// ParseConfig decodes raw parameters into the config record of kind, starting
// from its defaults. Unknown keys and wrongly typed values are rejected.
func ParseConfig(kind string, params map[string]any) (domain.StrategyConfig, error) {
	t, err := domain.ParseMatchType(kind)
	if err != nil {
		return nil, err
	}

	switch t {
	case domain.MatchTypeExact:
		cfg := domain.DefaultExactConfig()
		if err := decode(t, params, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case domain.MatchTypeFuzzy:
		if v, ok := params["max_results"].(float64); ok {
			if v != math.Trunc(v) || math.IsInf(v, 0) {
				return nil, domain.NewConfigurationError(string(t), "max_results", v, "must be a whole number")
			}
			if v >= math.MaxInt || v < math.MinInt {
				return nil, domain.NewConfigurationError(string(t), "max_results", v, "out of range")
			}
		}
		cfg := domain.DefaultFuzzyConfig()
		if err := decode(t, params, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	default:
		cfg := domain.DefaultSemanticConfig()
		if err := decode(t, params, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
}

func decode(kind domain.MatchType, params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:   out,
		Metadata: &md,
		TagName:  "mapstructure",
	})
	if err != nil {
		return domain.NewConfigurationError(string(kind), "", nil, err.Error())
	}
	if err := dec.Decode(params); err != nil {
		return &domain.ConfigurationError{Index: -1, Kind: string(kind), Reason: "malformed parameters", Err: err}
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return domain.NewConfigurationError(string(kind), md.Unused[0], params[md.Unused[0]], "unknown parameter")
	}
	return nil
}

// StrategyInfo describes a registered strategy for API listings.
type StrategyInfo struct {
	Kind       domain.MatchType        `json:"kind"`
	Defaults   domain.StrategyConfig   `json:"defaults"`
	Algorithms []domain.FuzzyAlgorithm `json:"algorithms,omitempty"`
}

// Available lists the registered strategies with their defaults.
func (f *Factory) Available() []StrategyInfo {
	var out []StrategyInfo
	for _, kind := range f.Kinds() {
		info := StrategyInfo{Kind: kind}
		switch kind {
		case domain.MatchTypeExact:
			info.Defaults = domain.DefaultExactConfig()
		case domain.MatchTypeFuzzy:
			info.Defaults = domain.DefaultFuzzyConfig()
			info.Algorithms = domain.FuzzyAlgorithms()
		case domain.MatchTypeSemantic:
			info.Defaults = domain.DefaultSemanticConfig()
		}
		out = append(out, info)
	}
	return out
}
