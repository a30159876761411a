// Package redis keeps the violation journal in Redis so that several
// guarded processes can share one record.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/contract/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Journal implements ports.Journal using a Redis list, newest entry at the head.
type Journal struct {
	client   *backend.Client
	prefix   string
	capacity int64
	ttl      time.Duration
}

type Option func(*Journal)

// WithPrefix sets the key prefix for the journal.
func WithPrefix(prefix string) Option {
	return func(j *Journal) {
		j.prefix = prefix
	}
}

// WithCapacity bounds the number of entries kept.
func WithCapacity(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.capacity = int64(n)
		}
	}
}

// WithTTL expires the whole journal when no violation was recorded for ttl.
func WithTTL(ttl time.Duration) Option {
	return func(j *Journal) {
		j.ttl = ttl
	}
}

// New creates a new Redis journal with options.
func New(address, password string, db int, opts ...Option) *Journal {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis journal from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Journal {
	j := &Journal{
		client:   client,
		prefix:   "contract:",
		capacity: 1000,
		ttl:      0, // No expiration by default
	}

	for _, opt := range opts {
		opt(j)
	}

	return j
}

func (j *Journal) key() string {
	return j.prefix + "violations"
}

// Record pushes the entry and trims the list to the capacity.
func (j *Journal) Record(ctx context.Context, entry ports.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	pipe := j.client.TxPipeline()
	pipe.LPush(ctx, j.key(), data)
	pipe.LTrim(ctx, j.key(), 0, j.capacity-1)
	if j.ttl > 0 {
		pipe.Expire(ctx, j.key(), j.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record to redis: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]ports.Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	raw, err := j.client.LRange(ctx, j.key(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}

	entries := make([]ports.Entry, 0, len(raw))
	for _, item := range raw {
		var e ports.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Clear removes the journal key.
func (j *Journal) Clear(ctx context.Context) error {
	return j.client.Del(ctx, j.key()).Err()
}

// Ping checks the connection, so that a misconfigured address fails at startup.
func (j *Journal) Ping(ctx context.Context) error {
	return j.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (j *Journal) Close() error {
	return j.client.Close()
}
