package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	c := &Config{}
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Storage.Mode = "local"
	c.Storage.TimeoutSeconds = 30
	c.Crypto.Iterations = 100_000
	c.Sync.MaxRetries = 5
	c.Allocator.MaxAttempts = 5
	return c
}

func TestInitializeConfigDefaults(t *testing.T) {
	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "local", config.Storage.Mode)
	assert.Equal(t, "/Apps/ReceiptVault", config.Storage.RemoteRoot)
	assert.Equal(t, 100_000, config.Crypto.Iterations)
	assert.Equal(t, 5, config.Sync.MaxRetries)
	assert.Equal(t, 5, config.Allocator.MaxAttempts)
	assert.False(t, config.AI.Enabled)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Valid", func(c *Config) {}, ""},
		{"BadLogLevel", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"BadLogFormat", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"BadStorageMode", func(c *Config) { c.Storage.Mode = "ftp" }, "invalid storage mode"},
		{"WebDAVWithoutEndpoint", func(c *Config) { c.Storage.Mode = "webdav" }, "storage.webdav.endpoint required"},
		{"VaultWithoutBaseURL", func(c *Config) { c.Storage.Mode = "vault" }, "storage.vault.base_url required"},
		{"WeakKDF", func(c *Config) { c.Crypto.Iterations = 100 }, "crypto.iterations"},
		{"NegativeRetries", func(c *Config) { c.Sync.MaxRetries = -1 }, "sync.max_retries"},
		{"ZeroAllocAttempts", func(c *Config) { c.Allocator.MaxAttempts = 0 }, "allocator.max_attempts"},
		{"AIEnabledWithoutKey", func(c *Config) { c.AI.Enabled = true; c.AI.TimeoutSeconds = 30 }, "GEMINI_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validTestConfig()
			tt.mutate(config)

			err := validateConfig(config)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfigureLoggingFromConfig(t *testing.T) {
	config := validTestConfig()
	config.Log.Level = "debug"
	config.Log.Format = "json"

	logger := ConfigureLoggingFromConfig(config)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	// Invalid level falls back to info instead of failing.
	config.Log.Level = "shout"
	logger = ConfigureLoggingFromConfig(config)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
