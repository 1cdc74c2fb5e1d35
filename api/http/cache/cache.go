package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rexbrahh/raydium-swaps/api/http/types"
	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
)

// ErrDisabled indicates the cache layer is disabled via configuration.
var ErrDisabled = errors.New("redis cache disabled")

// Config represents Redis client configuration options.
type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// LoadConfigFromEnv constructs a Config from environment variables.
//
// Recognized variables:
//   - API_REDIS_ADDR (required to enable the cache)
//   - API_REDIS_PASSWORD (optional)
//   - API_REDIS_DB (defaults to 0)
//   - API_REDIS_TTL (parseable duration, defaults to 5m)
func LoadConfigFromEnv() (Config, error) {
	addr := os.Getenv("API_REDIS_ADDR")
	if addr == "" {
		return Config{Enabled: false, TTL: 5 * time.Minute}, nil
	}

	password := os.Getenv("API_REDIS_PASSWORD")

	db := 0
	if rawDB := os.Getenv("API_REDIS_DB"); rawDB != "" {
		parsed, err := strconv.Atoi(rawDB)
		if err != nil {
			return Config{}, fmt.Errorf("invalid API_REDIS_DB: %w", err)
		}
		db = parsed
	}

	ttl := 5 * time.Minute
	if rawTTL := os.Getenv("API_REDIS_TTL"); rawTTL != "" {
		parsed, err := time.ParseDuration(rawTTL)
		if err != nil {
			return Config{}, fmt.Errorf("invalid API_REDIS_TTL: %w", err)
		}
		ttl = parsed
	}

	return Config{
		Enabled:  true,
		Addr:     addr,
		Password: password,
		DB:       db,
		TTL:      ttl,
	}, nil
}

// Cache wraps a Redis client to keep recently served slots hot.
type Cache struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Cache from the provided configuration.
func New(cfg Config) (*Cache, error) {
	if !cfg.Enabled {
		return &Cache{cfg: cfg}, nil
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := redis.NewClient(opts)

	return &Cache{
		client: client,
		cfg:    cfg,
	}, nil
}

func (c *Cache) key(slot uint64) string {
	return fmt.Sprintf("slot:%d:swaps", slot)
}

// GetSwaps retrieves cached swaps for a slot.
func (c *Cache) GetSwaps(ctx context.Context, slot uint64) ([]ray.Swap, error) {
	if c == nil || c.client == nil {
		return nil, ErrDisabled
	}

	payload, err := c.client.Get(ctx, c.key(slot)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var swaps []ray.Swap
	if err := json.Unmarshal([]byte(payload), &swaps); err != nil {
		return nil, err
	}

	return swaps, nil
}

// SetSwaps stores the swaps of a slot.
func (c *Cache) SetSwaps(ctx context.Context, slot uint64, swaps []ray.Swap) error {
	if c == nil || c.client == nil {
		return ErrDisabled
	}

	payload, err := json.Marshal(swaps)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.key(slot), payload, c.cfg.TTL).Err()
}
