// Package idempotency replays the stored response of a mutating request when a
// client retries it with the same Idempotency-Key.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

// Record is what is kept per key. Done is false while the first request is in flight.
type Record struct {
	RequestHash string          `json:"requestHash"`
	Status      int             `json:"status,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	Done        bool            `json:"done"`
}

type Store interface {
	// Reserve claims key for a request with the given hash. When the key is
	// already taken it returns the existing record and false.
	Reserve(ctx context.Context, key, requestHash string) (*Record, bool, error)
	Complete(ctx context.Context, key string, rec Record) error
	Release(ctx context.Context, key string) error
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Reserve(ctx context.Context, key, requestHash string) (*Record, bool, error) {
	placeholder, err := json.Marshal(Record{RequestHash: requestHash})
	if err != nil {
		return nil, false, err
	}

	ok, err := s.client.SetNX(ctx, key, placeholder, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired or released between the two calls
		return &Record{RequestHash: requestHash}, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, err
	}
	return &rec, false, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, rec Record) error {
	rec.Done = true
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// MemoryStore keeps records in process. Used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, records: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Reserve(_ context.Context, key, requestHash string) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.records {
		if !now.Before(e.expiresAt) {
			delete(s.records, k)
		}
	}

	if e, ok := s.records[key]; ok {
		rec := e.rec
		return &rec, false, nil
	}
	s.records[key] = memoryEntry{rec: Record{RequestHash: requestHash}, expiresAt: now.Add(s.ttl)}
	return nil, true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Done = true
	s.records[key] = memoryEntry{rec: rec, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}
