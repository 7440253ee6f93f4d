package event

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures RedisPublisher.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Channel receives every published event.
	Channel string
}

// redisClient captures the subset of *redis.Client we exercise.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redisClient
	channel string
}

// NewRedisPublisher connects to cfg.Addr and verifies the connection.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Addr == "" || cfg.Channel == "" {
		return nil, ErrMissingDestination
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("event: redis ping: %w", err)
	}
	return newRedisPublisher(rdb, cfg.Channel), nil
}

func newRedisPublisher(client redisClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish encodes e and publishes it. Events published while no
// subscriber is listening are dropped by Redis.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := e.marshal()
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("event: redis publish: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
