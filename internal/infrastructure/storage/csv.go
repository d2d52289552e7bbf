// Package storage reads source datasets and CDE dictionaries as CSV tables,
// either from a local directory or from a storage bucket over HTTP.
package storage

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cdematcher/backend/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseTable reads a CSV file with a header row. A leading byte order mark is
// skipped, and rows shorter than the header are padded with empty cells.
func ParseTable(name string, r io.Reader) (*domain.Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s has no header row", domain.ErrInvalidRequest, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", name, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := &domain.Table{Name: name, Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if len(record) < len(header) {
			padded := make([]string, len(header))
			copy(padded, record)
			record = padded
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// isCSV reports whether a file or object name looks like a CSV table.
func isCSV(name string) bool {
	return strings.EqualFold(path.Ext(name), ".csv")
}

func knownCollection(collection string) bool {
	for _, c := range domain.Collections() {
		if c == collection {
			return true
		}
	}
	return false
}

// checkName rejects names that would escape the collection.
func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid dataset name %q", domain.ErrInvalidRequest, name)
	}
	return nil
}
