package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garyjia/toolcrib/internal/application/port"
)

const idempotencyPrefix = "toolcrib:idemp:"

type idempEntry struct {
	InProgress  bool      `json:"in_progress"`
	Status      int       `json:"status,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IdempotencyStore keeps replayable responses in Redis. A key is first
// reserved with an in-progress marker and later overwritten by the final
// response.
type IdempotencyStore struct {
	rdb *redis.Client
}

// NewIdempotencyStore creates a Redis backed idempotency store
func NewIdempotencyStore(rdb *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb}
}

// Reserve claims key for ttl. False means another request owns or completed it.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(idempEntry{InProgress: true, CreatedAt: time.Now().UTC()})
	if err != nil {
		return false, err
	}
	ok, err := s.rdb.SetNX(ctx, idempotencyPrefix+key, payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Load returns the completed response for key, or nil when the key is
// unknown or still in progress
func (s *IdempotencyStore) Load(ctx context.Context, key string) (*port.StoredResponse, error) {
	raw, err := s.rdb.Get(ctx, idempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load idempotency key: %w", err)
	}

	var entry idempEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("corrupt idempotency entry: %w", err)
	}
	if entry.InProgress {
		return nil, nil
	}
	return &port.StoredResponse{
		Status:      entry.Status,
		ContentType: entry.ContentType,
		Body:        entry.Body,
	}, nil
}

// Save stores the final response for key
func (s *IdempotencyStore) Save(ctx context.Context, key string, resp port.StoredResponse, ttl time.Duration) error {
	payload, err := json.Marshal(idempEntry{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Body:        resp.Body,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, idempotencyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}

// Release drops a reservation so the client may retry
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, idempotencyPrefix+key).Err()
}

var _ port.IdempotencyStore = (*IdempotencyStore)(nil)
