package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/zatca-service/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// processingLockPrefix namespaces the per-invoice submission locks.
const processingLockPrefix = "zatca:processing:"

// Redis wraps the Redis client used for the per-invoice processing locks.
type Redis struct {
	*redis.Client
}

// ConnectRedis opens the Redis connection and verifies it with a ping.
func ConnectRedis(cfg *config.Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return &Redis{client}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.Client.Close()
}

// HealthCheck verifies that Redis still answers commands.
func (r *Redis) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

// AcquireProcessingLock takes the submission lock for an invoice. It returns
// false when another run already holds the lock. The TTL bounds how long a
// crashed run can keep an invoice locked.
func (r *Redis) AcquireProcessingLock(ctx context.Context, invoiceID uuid.UUID, ttl time.Duration) (bool, error) {
	acquired, err := r.SetNX(ctx, processingLockKey(invoiceID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("error acquiring processing lock: %w", err)
	}

	return acquired, nil
}

// ReleaseProcessingLock releases the submission lock for an invoice.
func (r *Redis) ReleaseProcessingLock(ctx context.Context, invoiceID uuid.UUID) error {
	if err := r.Del(ctx, processingLockKey(invoiceID)).Err(); err != nil {
		return fmt.Errorf("error releasing processing lock: %w", err)
	}

	return nil
}

func processingLockKey(invoiceID uuid.UUID) string {
	return processingLockPrefix + invoiceID.String()
}

// GetStats returns Redis server statistics.
func (r *Redis) GetStats() map[string]interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := r.Info(ctx, "stats", "memory", "clients").Result()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	return map[string]interface{}{
		"info": info,
	}
}

// LogStats logs the current Redis statistics.
func (r *Redis) LogStats(logger *logrus.Logger) {
	logger.WithFields(logrus.Fields(r.GetStats())).Debug("Redis stats")
}
