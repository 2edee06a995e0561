package port

import (
	"context"
	"time"
)

// CatalogNotifier tells other processes that the status catalog changed
type CatalogNotifier interface {
	PublishInvalidation(ctx context.Context) error
}

// StoredResponse is a response captured for idempotent replay
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore remembers responses to requests carrying an idempotency key
type IdempotencyStore interface {
	// Reserve claims key. It returns false when the key is already claimed or completed.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Load returns the stored response, or nil while the first request is still running.
	Load(ctx context.Context, key string) (*StoredResponse, error)
	Save(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}
