package pricestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/widget-market/internal/config"
	"github.com/rickgao/widget-market/internal/model"
)

// ErrInvalidPrice is returned when a stored value cannot be parsed as a price.
var ErrInvalidPrice = errors.New("invalid stored price")

// Store reads and writes market prices in Redis.
type Store struct {
	client *redis.Client
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// NewClient builds a Redis client from configuration.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// Price returns the stored price of good. The boolean is false when no price
// has been written yet.
func (s *Store) Price(ctx context.Context, good model.Good) (float64, bool, error) {
	raw, err := s.client.Get(ctx, string(good)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get price %s: %w", good, err)
	}

	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s=%q", ErrInvalidPrice, good, raw)
	}
	return price, true, nil
}

// PriceOrDefault returns the stored price, or def when none exists. The
// default is not written back.
func (s *Store) PriceOrDefault(ctx context.Context, good model.Good, def float64) (float64, error) {
	price, ok, err := s.Price(ctx, good)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return price, nil
}

// SetPrice overwrites the price of good.
func (s *Store) SetPrice(ctx context.Context, good model.Good, price float64) error {
	if err := s.client.Set(ctx, string(good), formatPrice(price), 0).Err(); err != nil {
		return fmt.Errorf("set price %s: %w", good, err)
	}
	return nil
}

// Seed writes price only if good has no price yet. It reports whether the
// value was written.
func (s *Store) Seed(ctx context.Context, good model.Good, price float64) (bool, error) {
	ok, err := s.client.SetNX(ctx, string(good), formatPrice(price), 0).Result()
	if err != nil {
		return false, fmt.Errorf("seed price %s: %w", good, err)
	}
	return ok, nil
}

// Ping checks Redis connection health.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
