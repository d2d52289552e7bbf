package usecase

import (
	"fmt"
	"strings"

	"github.com/cdematcher/backend/internal/domain"
)

// unnamedPrefix marks index columns written by dataframe exports
const unnamedPrefix = "Unnamed:"

// ExtractVariables reads the variable list out of a table. With the columns
// method the header names are the variables; with column_values the distinct
// values of one column are. Entries are trimmed, blanks and "Unnamed:"
// columns are dropped, and the first-seen order is kept.
func ExtractVariables(table *domain.Table, source domain.VariableSource) ([]string, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: no table to extract from", domain.ErrInvalidRequest)
	}

	switch source.Method {
	case "", domain.ExtractColumns:
		return keepVariables(table.Header), nil

	case domain.ExtractColumnValues:
		column := strings.TrimSpace(source.Column)
		if column == "" {
			return nil, fmt.Errorf("%w: column_values extraction needs a column", domain.ErrInvalidRequest)
		}
		col := table.Column(column)
		if col < 0 {
			return nil, fmt.Errorf("%w: column %q not found in %s", domain.ErrInvalidRequest, column, table.Name)
		}
		values := make([]string, 0, len(table.Rows))
		for _, row := range table.Rows {
			if col < len(row) {
				values = append(values, row[col])
			}
		}
		return keepVariables(values), nil

	default:
		return nil, fmt.Errorf("%w: unknown extraction method %q", domain.ErrInvalidRequest, source.Method)
	}
}

func keepVariables(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range cleanList(values) {
		if strings.HasPrefix(v, unnamedPrefix) {
			continue
		}
		out = append(out, v)
	}
	return out
}
