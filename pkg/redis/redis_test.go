package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "localhost" {
		t.Errorf("Expected host 'localhost', got '%s'", cfg.Host)
	}
	if cfg.Port != 6379 {
		t.Errorf("Expected port 6379, got %d", cfg.Port)
	}
	if cfg.PoolSize != 100 {
		t.Errorf("Expected pool size 100, got %d", cfg.PoolSize)
	}
	if cfg.PoolTimeout != 4*time.Second {
		t.Errorf("Expected pool timeout 4s, got %v", cfg.PoolTimeout)
	}
}

func TestConfig_Addr(t *testing.T) {
	cfg := &Config{Host: "redis.example.com", Port: 6380}

	if cfg.Addr() != "redis.example.com:6380" {
		t.Errorf("Unexpected addr '%s'", cfg.Addr())
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := &Config{
		Host:          "127.0.0.1",
		Port:          1,
		MaxRetries:    1,
		RetryInterval: 10 * time.Millisecond,
		DialTimeout:   200 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewClient(ctx, cfg); err == nil {
		t.Error("Expected error for unreachable server, got nil")
	}
}

func TestNewClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Host = mr.Host()
	fmt.Sscanf(mr.Port(), "%d", &cfg.Port)

	c, err := NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer c.Close()

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestScript_Run(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	echo := NewScript("echo", "return ARGV[1]")

	got, err := c.Run(ctx, echo, nil, "hello").Text()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("Expected 'hello', got '%s'", got)
	}
}

func TestScript_RunsAfterFlush(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	seven := NewScript("seven", "return 7")

	if err := c.LoadScripts(ctx, seven); err != nil {
		t.Fatalf("LoadScripts failed: %v", err)
	}
	if err := c.rdb.ScriptFlush(ctx).Err(); err != nil {
		t.Fatalf("script flush failed: %v", err)
	}

	got, err := c.Run(ctx, seven, nil).Int64()
	if err != nil {
		t.Fatalf("Run after flush failed: %v", err)
	}
	if got != 7 {
		t.Errorf("Expected 7, got %d", got)
	}
}

func TestSetNX_ExpiresWithTTL(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "a", time.Second).Result()
	if err != nil || !ok {
		t.Fatalf("first SetNX = %v, %v", ok, err)
	}
	ok, _ = c.SetNX(ctx, "lock", "b", time.Second).Result()
	if ok {
		t.Error("Second SetNX should fail while key is held")
	}

	mr.FastForward(2 * time.Second)

	ok, _ = c.SetNX(ctx, "lock", "b", time.Second).Result()
	if !ok {
		t.Error("SetNX should succeed after the key expired")
	}
}

func TestGet_MissingKeyReturnsNil(t *testing.T) {
	c, _ := newTestClient(t)

	if err := c.Get(context.Background(), "missing").Err(); err != Nil {
		t.Errorf("Expected Nil, got %v", err)
	}
}
