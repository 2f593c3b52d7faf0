package cache

import (
	"context"
	"encoding/json"
	"time"

	"shop-api/models"

	"github.com/redis/go-redis/v9"
)

const productTTL = 10 * time.Minute

// RedisStore is an implementation of ProductCache using Redis. Its client is
// shared with the rate limiter and pub/sub.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
}

// NewRedisStore initializes a new RedisStore instance.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	// Ping Redis to ensure connectivity.
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return &RedisStore{
		Client: rdb,
		Ctx:    ctx,
	}, nil
}

// Set stores a value in Redis for productTTL.
func (r *RedisStore) Set(key string, value models.ProductDetail) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Client.Set(r.Ctx, key, data, productTTL).Err()
}

// Get retrieves a value from Redis.
func (r *RedisStore) Get(key string) (models.ProductDetail, error) {
	var result models.ProductDetail
	data, err := r.Client.Get(r.Ctx, key).Result()
	if err != nil {
		return result, err
	}
	err = json.Unmarshal([]byte(data), &result)
	return result, err
}

// Delete removes a value from Redis.
func (r *RedisStore) Delete(key string) error {
	return r.Client.Del(r.Ctx, key).Err()
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.Client.Close()
}
