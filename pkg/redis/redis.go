// Package redis is the expiring store of the reservation service. Seat
// holds, reserve and capture locks, carts and idempotency records all live
// here, so one Client is the coordination point across server instances.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Nil is returned by reads of a missing key.
const Nil = redis.Nil

// Config holds Redis connection configuration
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration

	// Startup ping retries
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultConfig sizes the pool for a burst of seat claims on one sale
func DefaultConfig() *Config {
	return &Config{
		Host:          "localhost",
		Port:          6379,
		PoolSize:      100,
		MinIdleConns:  10,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		PoolTimeout:   4 * time.Second,
		MaxRetries:    3,
		RetryInterval: time.Second,
	}
}

// Addr returns host:port
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Client is the narrow store surface the repositories and middleware use:
// plain key reads and writes plus named Lua scripts.
type Client struct {
	rdb *redis.Client
}

// NewClient connects and pings until the server answers or retries run out
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				rdb.Close()
				return nil, ctx.Err()
			case <-time.After(cfg.RetryInterval):
			}
		}
		if err = rdb.Ping(ctx).Err(); err == nil {
			return &Client{rdb: rdb}, nil
		}
	}

	rdb.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", cfg.MaxRetries+1, err)
}

// Wrap adopts an already configured go-redis client, as tests do with miniredis
func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck pings with a bounded timeout for the readiness probe
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) *redis.StringCmd {
	return c.rdb.Get(ctx, key)
}

func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return c.rdb.Set(ctx, key, value, expiration)
}

// SetNX backs every lock in the service: reserve, capture and idempotency
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	return c.rdb.SetNX(ctx, key, value, expiration)
}

func (c *Client) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return c.rdb.Del(ctx, keys...)
}

// Script is a compare-and-act Lua script. It runs by SHA and falls back to
// sending the source when the server has not cached it (NOSCRIPT).
type Script struct {
	Name string
	lua  *redis.Script
}

// NewScript wraps src under a name used in error messages
func NewScript(name, src string) *Script {
	return &Script{Name: name, lua: redis.NewScript(src)}
}

// Run executes s atomically against keys
func (c *Client) Run(ctx context.Context, s *Script, keys []string, args ...interface{}) *redis.Cmd {
	return s.lua.Run(ctx, c.rdb, keys, args...)
}

// LoadScripts caches scripts server-side so the first claim after a deploy
// does not pay for shipping the source
func (c *Client) LoadScripts(ctx context.Context, scripts ...*Script) error {
	for _, s := range scripts {
		if err := s.lua.Load(ctx, c.rdb).Err(); err != nil {
			return fmt.Errorf("failed to load script %s: %w", s.Name, err)
		}
	}
	return nil
}
