package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ClareAI/astra-voice-tools/pkg/redis"
)

// RedisStore keeps the queue in a Redis list so entries survive restarts
type RedisStore struct {
	redis    redis.RedisServiceInterface
	queueKey string
	deadKey  string
}

// NewRedisStore creates a store whose keys are scoped by namespace
func NewRedisStore(svc redis.RedisServiceInterface, namespace string) *RedisStore {
	return &RedisStore{
		redis:    svc,
		queueKey: svc.GenerateKey(redis.OUTBOX, namespace),
		deadKey:  svc.GenerateKey(redis.OUTBOX_DEADLETTER, namespace),
	}
}

func (s *RedisStore) Push(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox entry: %w", err)
	}
	return s.redis.PushList(ctx, s.queueKey, string(data))
}

func (s *RedisStore) Pop(ctx context.Context) (*Entry, error) {
	raw, err := s.redis.PopList(ctx, s.queueKey)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outbox entry: %w", err)
	}
	return &entry, nil
}

func (s *RedisStore) Len(ctx context.Context) (int64, error) {
	return s.redis.ListLength(ctx, s.queueKey)
}

func (s *RedisStore) DeadLetter(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox entry: %w", err)
	}
	return s.redis.PushList(ctx, s.deadKey, string(data))
}

func (s *RedisStore) DeadLetters(ctx context.Context) ([]Entry, error) {
	raw, err := s.redis.ListRange(ctx, s.deadKey, 0, -1)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu      sync.Mutex
	pending []Entry
	dead    []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Push(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, entry)
	return nil
}

func (s *MemoryStore) Pop(ctx context.Context) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, nil
	}
	entry := s.pending[0]
	s.pending = s.pending[1:]
	return &entry, nil
}

func (s *MemoryStore) Len(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.pending)), nil
}

func (s *MemoryStore) DeadLetter(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = append(s.dead, entry)
	return nil
}

func (s *MemoryStore) DeadLetters(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.dead...), nil
}
