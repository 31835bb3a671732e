// Package redis provides a Redis-backed ports.PlanStore.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces plan keys.
const DefaultPrefix = "waypoint:plan:"

// neverExpires is the index score base for plans saved without a TTL (2100-01-01).
const neverExpires = 4102444800

// Store implements ports.PlanStore using Redis.
// Each plan is a JSON string key; a ZSET index scored by expiry lists them.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Store)

// WithTTL sets the expiration for stored plans.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for plans.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// score orders the index by creation while letting List prune expired entries.
func (s *Store) score(created time.Time) float64 {
	ms := float64(created.UnixMilli()) / 1e3
	if s.ttl <= 0 {
		return neverExpires + ms
	}
	return ms + s.ttl.Seconds()
}

// Save persists the plan under a new ID.
func (s *Store) Save(ctx context.Context, plan domain.ActionPlan) (domain.StoredPlan, error) {
	stored := domain.StoredPlan{
		ID:        uuid.NewString(),
		Plan:      plan,
		CreatedAt: s.now().UTC(),
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to marshal plan: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(stored.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  s.score(stored.CreatedAt),
		Member: stored.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to save to redis: %w", err)
	}
	return stored, nil
}

// Load retrieves a plan from Redis.
func (s *Store) Load(ctx context.Context, id string) (domain.StoredPlan, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.StoredPlan{}, domain.ErrPlanNotFound
		}
		return domain.StoredPlan{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var stored domain.StoredPlan
	if err := json.Unmarshal(val, &stored); err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to unmarshal plan: %w", err)
	}
	return stored, nil
}

// Delete removes the plan and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns stored plan IDs, oldest first. Expired entries are pruned from
// the index lazily.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(s.now().UnixMilli()) / 1e3

	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("(%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired plans: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return ids, nil
}

// Ping checks connectivity, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
