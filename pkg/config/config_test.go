package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.Client.PingInterval)
	assert.Equal(t, time.Second, cfg.Client.StatsInterval)
	assert.Equal(t, 30*time.Second, cfg.Relay.PeerFreshness)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty relay address", func(c *Config) { c.Relay.Address = "" }},
		{"zero read timeout", func(c *Config) { c.Relay.ReadTimeout = 0 }},
		{"zero peer freshness", func(c *Config) { c.Relay.PeerFreshness = 0 }},
		{"pong timeout not above ping interval", func(c *Config) { c.Relay.PongTimeout = c.Relay.PingInterval }},
		{"empty relay url", func(c *Config) { c.Client.RelayURL = "" }},
		{"zero poll interval", func(c *Config) { c.Client.PollInterval = 0 }},
		{"zero stats interval", func(c *Config) { c.Client.StatsInterval = 0 }},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }},
		{"redis enabled without address", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Address = ""
		}},
		{"auth enabled without secret", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.JWTSecret = ""
		}},
		{"tracing sample rate out of range", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRate = 1.5
		}},
		{"rate limiting without rps", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.RequestsPerSecond = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Relay.Address, cfg.Relay.Address)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
relay:
  address: ":9999"
client:
  poll_interval: 500ms
  ice_servers:
    - urls: ["stun:stun.example.org:3478"]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Relay.Address)
	assert.Equal(t, 500*time.Millisecond, cfg.Client.PollInterval)
	require.Len(t, cfg.Client.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, cfg.Client.ICEServers[0].URLs)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3*time.Second, cfg.Client.PingInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
relay:
  address: ""
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PEERLINK_RELAY_ADDRESS", ":7070")
	t.Setenv("PEERLINK_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Relay.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
