package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithPath_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_NAME=seat-rush-test\n"), 0o600))

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, "seat-rush-test", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "mock", cfg.Payment.Gateway)
	assert.Equal(t, 10, cfg.Reservation.MaxTicketsPerCart)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadWithPath_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("KAFKA_BROKERS=a:9092,b:9092\nRESERVATION_MAX_TICKETS_PER_CART=4\n"), 0o600))
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Reservation.MaxTicketsPerCart)
}

func TestLoadWithPath_MissingFile(t *testing.T) {
	_, err := LoadWithPath(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		App:         AppConfig{Name: "seat-rush", Environment: "development"},
		Server:      ServerConfig{Port: 8080},
		Database:    DatabaseConfig{Host: "localhost", DBName: "seat_rush"},
		Payment:     PaymentConfig{Gateway: "mock"},
		Reservation: ReservationConfig{MaxTicketsPerCart: 10},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing app name", func(c *Config) { c.App.Name = "" }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"stripe without key", func(c *Config) { c.Payment.Gateway = "stripe" }, true},
		{"stripe with key", func(c *Config) {
			c.Payment.Gateway = "stripe"
			c.Payment.StripeSecretKey = "sk_test_123"
		}, false},
		{"unknown gateway", func(c *Config) { c.Payment.Gateway = "paypal" }, true},
		{"mock in production", func(c *Config) { c.App.Environment = "production" }, true},
		{"zero cart limit", func(c *Config) { c.Reservation.MaxTicketsPerCart = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
