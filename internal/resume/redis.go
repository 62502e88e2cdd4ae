// ==============================================================================
// REDIS RESUME STORE - internal/resume/redis.go
// ==============================================================================

package resume

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"kycflow/pkg/domain"
	"kycflow/pkg/errors"
)

const keyPrefix = "kyc:session:"

// RedisStore persists snapshots in Redis with a TTL, so an abandoned session
// expires on its own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "connect to redis")
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	if !snap.Subject.Valid() {
		return errors.ErrInvalidSubject
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	return s.client.Set(ctx, keyPrefix+snap.Subject.ID(), data, s.ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, subject domain.Subject) (*Snapshot, error) {
	if !subject.Valid() {
		return nil, errors.ErrInvalidSubject
	}
	data, err := s.client.Get(ctx, keyPrefix+subject.ID()).Result()
	if err == redis.Nil {
		return nil, errors.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load snapshot")
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot")
	}
	return &snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, subject domain.Subject) error {
	if !subject.Valid() {
		return errors.ErrInvalidSubject
	}
	return s.client.Del(ctx, keyPrefix+subject.ID()).Err()
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
