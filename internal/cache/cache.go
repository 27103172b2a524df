package cache

import (
	"context"
	"time"
)

// Cache is the key-value-with-TTL boundary injected into services. The redis
// implementation lives in internal/clients/redis; Memory below backs tests
// and single-node deploys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
