package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"mocktest_backend/internal/session"

	"github.com/go-redis/redis/v8"
)

// RedisSnapshotStore keeps session snapshots under
// "{candidate}:mockTestState_{testId}" with a sliding TTL.
type RedisSnapshotStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisSnapshotStore(rdb *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{Client: rdb, TTL: ttl}
}

func (s *RedisSnapshotStore) Save(ctx context.Context, candidateID, testID string, snap session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, session.ScopedKey(candidateID, testID), data, s.TTL).Err()
}

func (s *RedisSnapshotStore) Load(ctx context.Context, candidateID, testID string) (*session.Snapshot, error) {
	data, err := s.Client.Get(ctx, session.ScopedKey(candidateID, testID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *RedisSnapshotStore) Clear(ctx context.Context, candidateID, testID string) error {
	return s.Client.Del(ctx, session.ScopedKey(candidateID, testID)).Err()
}

// MemorySnapshotStore is a process-local snapshot store for single-node runs.
type MemorySnapshotStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{data: make(map[string][]byte)}
}

func (s *MemorySnapshotStore) Save(_ context.Context, candidateID, testID string, snap session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[session.ScopedKey(candidateID, testID)] = data
	return nil
}

func (s *MemorySnapshotStore) Load(_ context.Context, candidateID, testID string) (*session.Snapshot, error) {
	s.mu.Lock()
	data, ok := s.data[session.ScopedKey(candidateID, testID)]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *MemorySnapshotStore) Clear(_ context.Context, candidateID, testID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, session.ScopedKey(candidateID, testID))
	return nil
}

// RedisPinger reports redis connectivity for health checks.
type RedisPinger struct {
	Client *redis.Client
}

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
