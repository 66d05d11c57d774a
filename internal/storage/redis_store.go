package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "newsapi:published:"

// redisStore keeps published records as expiring redis strings, shared between harvester
// replicas. Redis drops the key at expiry; the stored record is checked as well so both
// backends agree on what counts as live.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func openRedis(addr string, opts Options) (Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &redisStore{client: client, ttl: opts.TTL, now: opts.now}, nil
}

func (r *redisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *redisStore) Published(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil {
		return false, nil
	}
	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	rec, ok := decodeRecord(raw)
	return ok && rec.live(r.now()), nil
}

func (r *redisStore) MarkPublished(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return nil
	}
	rec := newRecord(r.now(), r.ttl)
	if err := r.client.Set(ctx, redisKeyPrefix+key, rec.encode(), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
