package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/shared"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "songmig:queue:"
	redisPopTimeout = 5 * time.Second
)

// redisClient is the subset of [redis.Client] the queue uses.
type redisClient interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisBus queues payloads on a Redis list per topic: LPUSH to publish, BRPOP to consume.
type RedisBus struct {
	client redisClient
	logger *log.Logger
}

// NewRedisBus connects to addr and verifies the connection with a ping.
func NewRedisBus(ctx context.Context, addr, password string, db int, logger *log.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	b := newRedisBus(client, logger)
	if err := b.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return b, nil
}

func newRedisBus(client redisClient, logger *log.Logger) *RedisBus {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisBus{client: client, logger: shared.WithLogger(logger, "component", "bus", "driver", "redis")}
}

func (b *RedisBus) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := b.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("%w: failed to connect to Redis: %v", shared.ErrServiceUnavailable, err)
	}
	return nil
}

func (b *RedisBus) Close() error { return b.client.Close() }

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.LPush(ctx, redisKeyPrefix+topic, payload).Err(); err != nil {
		return publishErr("redis", err)
	}
	b.logger.Debug("message published", "topic", topic, "bytes", len(payload))
	return nil
}

// Consume blocks on BRPOP in a loop. A pop timeout just starts the next wait.
func (b *RedisBus) Consume(ctx context.Context, topic string, h Handler) error {
	key := redisKeyPrefix + topic
	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := b.client.BRPop(ctx, redisPopTimeout, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: redis pop: %v", shared.ErrUpstream, err)
		}

		// BRPOP replies with [key, value].
		if len(res) != 2 {
			b.logger.Warn("unexpected BRPOP reply", "len", len(res))
			continue
		}
		deliver(ctx, b.logger, topic, []byte(res[1]), h)
	}
}
