package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are opaque bytes; callers own the encoding.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DatasetRepository defines the interface for reading source datasets and CDE
// dictionaries from local disk or a storage bucket
type DatasetRepository interface {
	List(ctx context.Context, collection string) ([]string, error)
	Load(ctx context.Context, collection, name string) (*Table, error)
}
