package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/cdematcher/backend/internal/domain"
)

// LocalRepository reads tables from <dir>/<collection>/*.csv
type LocalRepository struct {
	dir string
}

// NewLocalRepository creates a repository rooted at dir.
func NewLocalRepository(dir string) *LocalRepository {
	return &LocalRepository{dir: dir}
}

// List returns the CSV file names of a collection, sorted. A missing
// collection directory lists as empty.
func (r *LocalRepository) List(ctx context.Context, collection string) ([]string, error) {
	if !knownCollection(collection) {
		return nil, fmt.Errorf("%w: unknown collection %q", domain.ErrInvalidRequest, collection)
	}
	entries, err := os.ReadDir(filepath.Join(r.dir, collection))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isCSV(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Load parses one CSV file of a collection.
func (r *LocalRepository) Load(ctx context.Context, collection, name string) (*domain.Table, error) {
	if !knownCollection(collection) {
		return nil, fmt.Errorf("%w: unknown collection %q", domain.ErrInvalidRequest, collection)
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(r.dir, collection, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrDatasetNotFound, collection, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	defer f.Close()

	return ParseTable(name, f)
}
