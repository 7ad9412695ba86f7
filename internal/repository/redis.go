package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/config"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisRepository struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisClient builds a Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

// NewRedisRepository stores the collection under key. A zero ttl keeps it
// forever.
func NewRedisRepository(client *redis.Client, key string, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (r *RedisRepository) Load(ctx context.Context) ([]models.Reservation, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings from redis: %w", err)
	}
	return decodeBookings(val)
}

func (r *RedisRepository) Save(ctx context.Context, bookings []models.Reservation) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := encodeBookings(bookings)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set bookings in redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

