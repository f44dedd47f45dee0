// Package cache keeps rendered questionnaire snapshots close to the public
// form endpoints. The database snapshot column stays the source of truth.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vnkhanh/tracer-study/logger"
	"go.uber.org/zap"
)

const snapshotKeyTemplate = "questionnaire:%d:snapshot"

// ErrMiss is returned by Get when nothing is cached for the key.
var ErrMiss = errors.New("cache miss")

type SnapshotCache interface {
	Get(ctx context.Context, questionnaireID uint) ([]byte, error)
	Set(ctx context.Context, questionnaireID uint, snapshot []byte) error
	Delete(ctx context.Context, questionnaireID uint) error
	IsHealthy() bool
	Close() error
}

func snapshotKey(id uint) string {
	return fmt.Sprintf(snapshotKeyTemplate, id)
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedis wraps a connected client. A zero ttl keeps entries until they are
// replaced or deleted.
func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if log == nil {
		log = logger.Nop()
	}
	return &Redis{client: client, ttl: ttl, logger: log}
}

// Dial parses a redis:// URL and pings the server.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *Redis) Get(ctx context.Context, id uint) ([]byte, error) {
	data, err := c.client.Get(ctx, snapshotKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		c.logger.Error("error get cached snapshot",
			zap.Uint("questionnaire_id", id),
			zap.Error(err))
		return nil, err
	}
	return data, nil
}

func (c *Redis) Set(ctx context.Context, id uint, snapshot []byte) error {
	if err := c.client.Set(ctx, snapshotKey(id), snapshot, c.ttl).Err(); err != nil {
		c.logger.Error("failed to cache snapshot",
			zap.Uint("questionnaire_id", id),
			zap.Error(err))
		return err
	}
	return nil
}

func (c *Redis) Delete(ctx context.Context, id uint) error {
	if err := c.client.Del(ctx, snapshotKey(id)).Err(); err != nil {
		c.logger.Error("error delete cached snapshot",
			zap.Uint("questionnaire_id", id),
			zap.Error(err))
		return err
	}
	return nil
}

func (c *Redis) IsHealthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err() == nil
}

func (c *Redis) Close() error {
	return c.client.Close()
}

// Noop is used when no redis URL is configured; every read misses.
type Noop struct{}

func (Noop) Get(context.Context, uint) ([]byte, error) { return nil, ErrMiss }
func (Noop) Set(context.Context, uint, []byte) error   { return nil }
func (Noop) Delete(context.Context, uint) error        { return nil }
func (Noop) IsHealthy() bool                           { return true }
func (Noop) Close() error                              { return nil }
