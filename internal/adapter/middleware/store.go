package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// storedResponse is the redis value under a response key. While the handler
// runs it is a pending marker; afterwards it holds the response to replay.
type storedResponse struct {
	Pending    bool      `json:"pending"`
	Code       int       `json:"code,omitempty"`
	Body       []byte    `json:"body,omitempty"`
	BodySHA256 string    `json:"body_sha256"`
	RequestID  string    `json:"request_id"`
	RequestAt  time.Time `json:"request_at"`
	StoredAt   time.Time `json:"stored_at"`
}

func (s storedResponse) replayable() bool { return !s.Pending && s.Code != 0 && len(s.Body) > 0 }

type responseStore struct {
	rdb redis.UniversalClient
	// pendingTTL bounds how long a crashed handler blocks its request id.
	pendingTTL time.Duration
}

// reserve writes the pending marker; false means the key already exists.
func (s responseStore) reserve(ctx context.Context, key string, v storedResponse) (bool, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key, payload, s.pendingTTL).Result()
}

// load returns redis.Nil when the key vanished in the meantime.
func (s responseStore) load(ctx context.Context, key string) (storedResponse, error) {
	var v storedResponse
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errors.Join(errors.New("corrupt idempotency entry"), err)
	}
	return v, nil
}

func (s responseStore) finish(ctx context.Context, key string, v storedResponse, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, ttl).Err()
}

func (s responseStore) release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
