package usecase

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cdematcher/backend/internal/domain"
)

// Curation is a curator's working set of accepted mappings. It is owned by
// one caller and not safe for concurrent use.
type Curation struct {
	selections map[domain.Pair]domain.Selection
}

// Conflict is a source that was accepted against more than one target.
// Candidates are ordered by confidence, highest first.
type Conflict struct {
	Source     string             `json:"source"`
	Candidates []domain.Selection `json:"candidates"`
}

// NewCuration creates a curation holding the given selections.
func NewCuration(selections ...domain.Selection) (*Curation, error) {
	c := &Curation{selections: make(map[domain.Pair]domain.Selection)}
	for _, s := range selections {
		if err := c.AcceptSelection(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Accept adds a match result to the selection. Accepting the same pair again
// replaces the earlier entry.
func (c *Curation) Accept(r domain.MatchResult) {
	c.selections[r.Pair()] = domain.Selection{
		Source:     r.Source,
		Target:     r.Target,
		Confidence: r.Confidence,
		MatchType:  r.MatchType,
	}
}

// AcceptSelection adds a selection after checking its fields.
func (c *Curation) AcceptSelection(s domain.Selection) error {
	r, err := domain.NewMatchResult(s.Source, s.Target, s.Confidence, s.MatchType, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	c.Accept(r)
	return nil
}

// Reject removes a pair and reports whether it was selected.
func (c *Curation) Reject(pair domain.Pair) bool {
	if _, ok := c.selections[pair]; !ok {
		return false
	}
	delete(c.selections, pair)
	return true
}

// Len returns the number of accepted pairs.
func (c *Curation) Len() int { return len(c.selections) }

// Selections returns the accepted pairs by source, then confidence.
func (c *Curation) Selections() []domain.Selection {
	out := make([]domain.Selection, 0, len(c.selections))
	for _, s := range c.selections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return bySelection(out[i], out[j])
	})
	return out
}

func bySelection(a, b domain.Selection) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Target < b.Target
}

// Conflicts returns the sources accepted against several targets, by source.
func (c *Curation) Conflicts() []Conflict {
	bySource := make(map[string][]domain.Selection)
	for _, s := range c.selections {
		bySource[s.Source] = append(bySource[s.Source], s)
	}

	var out []Conflict
	for source, candidates := range bySource {
		if len(candidates) < 2 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool { return bySelection(candidates[i], candidates[j]) })
		out = append(out, Conflict{Source: source, Candidates: candidates})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Resolve keeps the mapping of source onto keepTarget and drops the other
// targets accepted for that source.
func (c *Curation) Resolve(source, keepTarget string) error {
	if _, ok := c.selections[domain.Pair{Source: source, Target: keepTarget}]; !ok {
		return fmt.Errorf("%w: %q is not selected for %q", domain.ErrInvalidRequest, keepTarget, source)
	}
	for pair := range c.selections {
		if pair.Source == source && pair.Target != keepTarget {
			delete(c.selections, pair)
		}
	}
	return nil
}

// Export returns the two-column report sorted by CDE then variable. It fails
// with a *domain.ConflictError while any source maps to more than one CDE.
func (c *Curation) Export() ([]domain.MappingRow, error) {
	if conflicts := c.Conflicts(); len(conflicts) > 0 {
		sources := make([]string, len(conflicts))
		for i, conflict := range conflicts {
			sources[i] = conflict.Source
		}
		return nil, &domain.ConflictError{Sources: sources}
	}

	rows := make([]domain.MappingRow, 0, len(c.selections))
	for _, s := range c.selections {
		rows = append(rows, domain.MappingRow{CDE: s.Target, Variable: s.Source})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CDE != rows[j].CDE {
			return rows[i].CDE < rows[j].CDE
		}
		return rows[i].Variable < rows[j].Variable
	})
	return rows, nil
}

// WriteMappingCSV writes rows as a CSV file with a CDE,Variable header.
func WriteMappingCSV(w io.Writer, rows []domain.MappingRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"CDE", "Variable"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.CDE, r.Variable}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MappingCSV renders rows with WriteMappingCSV.
func MappingCSV(rows []domain.MappingRow) (string, error) {
	var b strings.Builder
	if err := WriteMappingCSV(&b, rows); err != nil {
		return "", err
	}
	return b.String(), nil
}
