package database

import (
	"context"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient connects to Redis and verifies the connection. Redis is
// optional infrastructure (trending cache); callers treat a nil client as
// "cache disabled".
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	log.Println("Redis connected")
	return rdb, nil
}
