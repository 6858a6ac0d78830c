package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-busticketing/internal/config"
	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
)

// SessionKeyPrefix namespaces session records in Redis.
const SessionKeyPrefix = "session:"

// InitializeRedis connects to Redis and checks the connection.
func InitializeRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	log.Info("REDIS", fmt.Sprintf("Connected to Redis at %s (DB: %d) for session storage", cfg.Addr, cfg.DB))
	return client, nil
}

// RedisSessionStore keeps sessions in Redis with a TTL equal to their remaining lifetime.
type RedisSessionStore struct {
	Client *redis.Client
	now    func() time.Time
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{Client: client, now: time.Now}
}

func redisKey(id string) string {
	return SessionKeyPrefix + id
}

func (c *RedisSessionStore) Save(ctx context.Context, s models.Session) error {
	ttl := s.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := c.Client.Set(ctx, redisKey(s.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return nil
}

func (c *RedisSessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	payload, err := c.Client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (c *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := c.Client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
