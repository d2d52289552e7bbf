package matcher

import (
	"github.com/cdematcher/backend/internal/domain"
	"github.com/cdematcher/backend/internal/textutil"
)

// Exact matches a source only against targets that are identical after
// optional case folding. It is the highest-precision strategy.
type Exact struct {
	cfg domain.ExactConfig
}

// NewExact creates an exact matcher.
func NewExact(cfg domain.ExactConfig) (*Exact, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Exact{cfg: cfg}, nil
}

func (m *Exact) Kind() domain.MatchType { return domain.MatchTypeExact }

func (m *Exact) Config() domain.StrategyConfig { return m.cfg }

// Index builds the normalized target set. When several spellings normalize
// to the same key the smallest one is kept and the rest become alternates.
func (m *Exact) Index(targets []string) Index {
	idx := &exactIndex{cfg: m.cfg, lookup: make(map[string]exactEntry)}
	for _, t := range uniqueTargets(targets) {
		key := m.normalize(t)
		entry, ok := idx.lookup[key]
		if !ok {
			idx.lookup[key] = exactEntry{target: t}
			continue
		}
		// uniqueTargets is sorted, so the first spelling seen is the smallest
		entry.alternates = append(entry.alternates, t)
		idx.lookup[key] = entry
	}
	return idx
}

// Match finds exact matches between source and targets.
func (m *Exact) Match(source string, targets []string) ([]domain.MatchResult, error) {
	return m.Index(targets).Match(source)
}

func (m *Exact) normalize(s string) string {
	return textutil.Prepare(s, m.cfg.CaseSensitive)
}

type exactEntry struct {
	target     string
	alternates []string
}

type exactIndex struct {
	cfg    domain.ExactConfig
	lookup map[string]exactEntry
}

func (idx *exactIndex) Match(source string) ([]domain.MatchResult, error) {
	if err := checkSource(domain.MatchTypeExact, source); err != nil {
		return nil, err
	}
	key := textutil.Prepare(source, idx.cfg.CaseSensitive)
	entry, ok := idx.lookup[key]
	if !ok {
		return nil, nil
	}

	metadata := map[string]any{
		"case_sensitive":    idx.cfg.CaseSensitive,
		"source_normalized": key,
	}
	if len(entry.alternates) > 0 {
		metadata["alternates"] = append([]string(nil), entry.alternates...)
	}
	res, err := newResult(domain.MatchTypeExact, source, entry.target, 1.0, metadata)
	if err != nil {
		return nil, err
	}
	return []domain.MatchResult{res}, nil
}
