package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix   = "feed-warden:scrape"
	DefaultInFlightTTL = time.Hour

	popTimeout = 5 * time.Second
)

type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	InFlightTTL time.Duration
}

// Redis keeps the pending jobs in a list and one SET NX marker per item, so
// several processes can share a queue. The marker TTL bounds how long a
// crashed worker can block an item.
type Redis struct {
	client      *redis.Client
	listKey     string
	keyPrefix   string
	inFlightTTL time.Duration
}

func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  popTimeout + 3*time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return newRedisWithClient(client, opts), nil
}

func newRedisWithClient(client *redis.Client, opts RedisOptions) *Redis {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := opts.InFlightTTL
	if ttl <= 0 {
		ttl = DefaultInFlightTTL
	}

	return &Redis{
		client:      client,
		listKey:     prefix + ":jobs",
		keyPrefix:   prefix,
		inFlightTTL: ttl,
	}
}

func (q *Redis) inFlightKey(itemID string) string {
	return q.keyPrefix + ":inflight:" + itemID
}

func (q *Redis) Enqueue(ctx context.Context, job Job) (Outcome, error) {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	ok, err := q.client.SetNX(ctx, q.inFlightKey(job.ItemID), job.SourceID, q.inFlightTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to set in-flight marker: %w", err)
	}
	if !ok {
		return AlreadyEnqueued, nil
	}

	if err := q.client.LPush(ctx, q.listKey, data).Err(); err != nil {
		if delErr := q.client.Del(ctx, q.inFlightKey(job.ItemID)).Err(); delErr != nil {
			slog.Warn("Failed to release in-flight marker", "item_id", job.ItemID, "error", delErr)
		}
		return "", fmt.Errorf("failed to push job: %w", err)
	}

	return Enqueued, nil
}

func (q *Redis) Next(ctx context.Context) (Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}

		values, err := q.client.BRPop(ctx, popTimeout, q.listKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("failed to pop job: %w", err)
		}

		// BRPOP replies with [key, value]
		var job Job
		if err := json.Unmarshal([]byte(values[1]), &job); err != nil {
			slog.Warn("Dropping malformed scrape job", "error", err)
			continue
		}
		return job, nil
	}
}

func (q *Redis) Done(ctx context.Context, job Job) error {
	if err := q.client.Del(ctx, q.inFlightKey(job.ItemID)).Err(); err != nil {
		return fmt.Errorf("failed to release in-flight marker: %w", err)
	}
	return nil
}

func (q *Redis) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.listKey).Result()
}

func (q *Redis) Close() error {
	return q.client.Close()
}
