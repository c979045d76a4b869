// Package redis provides a Redis implementation of the relay.EventStore
// interface. It uses SET NX so the seen-check and the record are a single
// atomic operation, which keeps deduplication correct when several relay
// instances share one Redis and Stripe delivers the same event to more than
// one of them.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store implements relay.EventStore using Redis.
type Store struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis event store configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "payrelay:event:")
	KeyPrefix string

	// EventTTL is how long processed event ids are remembered
	// (default: 72h, matching Stripe's webhook retry window)
	EventTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "payrelay:event:",
		EventTTL:  72 * time.Hour,
	}
}

// New creates a new Redis event store.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "payrelay:event:"
	}
	if config.EventTTL == 0 {
		config.EventTTL = 72 * time.Hour
	}

	return &Store{
		client: client,
		config: config,
	}, nil
}

// MarkProcessed implements relay.EventStore. SET NX succeeds only for the
// first delivery of an event id; every later delivery sees the existing key
// and is reported as already processed.
func (s *Store) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	key := s.config.KeyPrefix + eventID

	set, err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.config.EventTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record event %s: %w", eventID, err)
	}

	return !set, nil
}
