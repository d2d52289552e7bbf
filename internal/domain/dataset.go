package domain

import "strings"

// Dataset collections known to the dataset stores
const (
	CollectionClinicalData = "clinical_data"
	CollectionCDEs         = "cdes"
)

// Collections returns the dataset collections in display order.
func Collections() []string {
	return []string{CollectionClinicalData, CollectionCDEs}
}

// Table is a parsed tabular file: a header row and the data rows below it
type Table struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Column returns the index of the first header matching name after trimming
// both, or -1.
func (t *Table) Column(name string) int {
	name = strings.TrimSpace(name)
	if t == nil || name == "" {
		return -1
	}
	for i, h := range t.Header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// ExtractionMethod selects how variable names are read out of a table
type ExtractionMethod string

const (
	// ExtractColumns takes the header names (raw clinical data)
	ExtractColumns ExtractionMethod = "columns"
	// ExtractColumnValues takes the values of one column (data dictionaries)
	ExtractColumnValues ExtractionMethod = "column_values"
)

// VariableSource says how to extract the variable list from a table
type VariableSource struct {
	Method ExtractionMethod `json:"method"`
	Column string           `json:"column,omitempty"`
}

// DatasetRef points at a table inside a dataset store
type DatasetRef struct {
	Collection string         `json:"collection"`
	Name       string         `json:"name"`
	Extract    VariableSource `json:"extract"`
}

// MappingRow is one line of the exported two-column report
type MappingRow struct {
	CDE      string `json:"cde"`
	Variable string `json:"variable"`
}

// Selection is a curator's accepted mapping
type Selection struct {
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Confidence float64   `json:"confidence"`
	MatchType  MatchType `json:"match_type"`
}
