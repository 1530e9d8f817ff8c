package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/humanarch/internal/models"
)

// DefaultKeyPrefix namespaces session keys
const DefaultKeyPrefix = "humanarch:session:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisRepository implements Repository on Redis. Snapshots are JSON
// values written with SET ... EX, so Redis enforces the TTL itself.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository connects to Redis and verifies the connection
func NewRedisRepository(ctx context.Context, cfg RedisConfig) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	slog.Info("connected to redis", "address", cfg.Address, "db", cfg.DB, "prefix", prefix)

	return &RedisRepository{client: client, prefix: prefix}, nil
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + id
}

// SaveSession stores a snapshot with an expiry of ttl
func (r *RedisRepository) SaveSession(ctx context.Context, s *models.Session, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession loads a snapshot
func (r *RedisRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// DeleteSession removes a snapshot
func (r *RedisRepository) DeleteSession(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// GetExpiredSessions scans for snapshots whose ExpiresAt passed but whose
// key is still present, e.g. after a TTL was extended by a racing save.
func (r *RedisRepository) GetExpiredSessions(ctx context.Context, now time.Time) ([]*models.Session, error) {
	var (
		cursor  uint64
		expired []*models.Session
	)
	pattern := r.prefix + "*"

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan sessions: %w", err)
		}

		for _, key := range keys {
			data, err := r.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return nil, fmt.Errorf("failed to get session %s: %w", key, err)
			}
			var s models.Session
			if err := json.Unmarshal(data, &s); err != nil {
				slog.Warn("skipping unreadable session", "key", key, "error", err)
				continue
			}
			if s.IsExpired(now) {
				expired = append(expired, &s)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return expired, nil
}

// Ping verifies Redis connectivity
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
