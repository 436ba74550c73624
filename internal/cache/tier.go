package cache

import "context"

// Tier is one storage level of the two-tier cache: a string-keyed store of
// JSON blobs. Get returns (nil, nil) on miss. Entry validity (TTL) is
// judged by the Store from the blob contents, not by the tier.
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Sample(ctx context.Context, n int) ([]string, error)
	Close() error
}
