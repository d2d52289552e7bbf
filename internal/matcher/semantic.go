package matcher

import (
	"github.com/cdematcher/backend/internal/domain"
	"github.com/cdematcher/backend/internal/textutil"
)

const (
	methodExactSemantic   = "exact_semantic"
	methodPartialSemantic = "partial_semantic"
)

// Semantic matches variables that name the same concept under different
// conventions, using a fixed concept-to-synonym table.
type Semantic struct {
	cfg      domain.SemanticConfig
	concepts map[string][]string
	terms    map[string][]conceptTerm
	reverse  map[string][]string
}

// conceptTerm is a concept key or one of its variants, normalized.
type conceptTerm struct {
	original   string
	normalized string
	tokens     []string
}

// NewSemantic creates a semantic matcher and builds the reverse index from
// normalized term to concept keys.
func NewSemantic(cfg domain.SemanticConfig) (*Semantic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()
	m := &Semantic{
		cfg:      cfg,
		concepts: mergeConcepts(cfg.CustomMappings, cfg.CaseSensitive),
		terms:    make(map[string][]conceptTerm),
		reverse:  make(map[string][]string),
	}

	for _, concept := range ConceptNames(m.concepts) {
		seen := make(map[string]bool)
		for _, raw := range append([]string{concept}, m.concepts[concept]...) {
			norm := textutil.Identifier(raw, cfg.CaseSensitive)
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			m.terms[concept] = append(m.terms[concept], conceptTerm{
				original:   raw,
				normalized: norm,
				tokens:     textutil.TokenSet(norm),
			})
			// concepts are visited in sorted order, so each list stays sorted
			m.reverse[norm] = append(m.reverse[norm], concept)
		}
	}
	return m, nil
}

func (m *Semantic) Kind() domain.MatchType { return domain.MatchTypeSemantic }

func (m *Semantic) Config() domain.StrategyConfig { return m.cfg.Clone() }

// Concepts returns a copy of the merged concept table.
func (m *Semantic) Concepts() map[string][]string {
	out := make(map[string][]string, len(m.concepts))
	for k, v := range m.concepts {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Index normalizes every unique target once.
func (m *Semantic) Index(targets []string) Index {
	unique := uniqueTargets(targets)
	idx := &semanticIndex{m: m, targets: make([]semanticTarget, 0, len(unique))}
	for _, t := range unique {
		norm := textutil.Identifier(t, m.cfg.CaseSensitive)
		if norm == "" {
			continue
		}
		idx.targets = append(idx.targets, semanticTarget{original: t, normalized: norm, tokens: textutil.TokenSet(norm)})
	}
	return idx
}

// Match finds semantic matches between source and targets.
func (m *Semantic) Match(source string, targets []string) ([]domain.MatchResult, error) {
	return m.Index(targets).Match(source)
}

type semanticTarget struct {
	original   string
	normalized string
	tokens     []string
}

type semanticIndex struct {
	m       *Semantic
	targets []semanticTarget
}

type semanticHit struct {
	concept    string
	variant    string
	method     string
	confidence float64
}

func (idx *semanticIndex) Match(source string) ([]domain.MatchResult, error) {
	if err := checkSource(domain.MatchTypeSemantic, source); err != nil {
		return nil, err
	}
	normSource := textutil.Identifier(source, idx.m.cfg.CaseSensitive)
	concepts := idx.m.reverse[normSource]
	if len(concepts) == 0 {
		return nil, nil
	}

	var results []domain.MatchResult
	for _, target := range idx.targets {
		hit, ok := idx.best(target, concepts)
		if !ok {
			continue
		}
		res, err := newResult(domain.MatchTypeSemantic, source, target.original, hit.confidence, map[string]any{
			"concept":           hit.concept,
			"match_method":      hit.method,
			"matched_variant":   hit.variant,
			"case_sensitive":    idx.m.cfg.CaseSensitive,
			"exact_only":        idx.m.cfg.ExactOnly,
			"source_normalized": normSource,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return domain.SortResults(results), nil
}

// best returns the strongest hit of target across the source's concepts.
// Ties keep the earlier concept, and concepts arrive sorted.
func (idx *semanticIndex) best(target semanticTarget, concepts []string) (semanticHit, bool) {
	var hit semanticHit
	found := false
	for _, concept := range concepts {
		for _, term := range idx.m.terms[concept] {
			var confidence float64
			method := methodExactSemantic
			if term.normalized == target.normalized {
				confidence = 1.0
			} else if idx.m.cfg.ExactOnly {
				continue
			} else {
				method = methodPartialSemantic
				confidence = partialScore(target.tokens, term.tokens)
				if confidence == 0 {
					continue
				}
			}
			if !found || confidence > hit.confidence {
				hit = semanticHit{concept: concept, variant: term.original, method: method, confidence: confidence}
				found = true
			}
		}
	}
	return hit, found
}

// partialScore is 0.5 + 0.5*Jaccard when one token set strictly contains the
// other, and 0 otherwise. The result is always inside (0.5, 1).
func partialScore(target, variant []string) float64 {
	if len(target) == 0 || len(variant) == 0 {
		return 0
	}
	inter, union := textutil.Overlap(target, variant)
	if inter == 0 || inter == union {
		return 0
	}
	if inter != len(target) && inter != len(variant) {
		return 0
	}
	return 0.5 + 0.5*float64(inter)/float64(union)
}
