// Package config provides Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Data struct {
		Directory string `mapstructure:"directory" yaml:"directory"`
		DBPath    string `mapstructure:"db_path" yaml:"db_path"`
		DeviceID  string `mapstructure:"device_id" yaml:"device_id"`
	} `mapstructure:"data" yaml:"data"`

	Storage struct {
		Mode           string `mapstructure:"mode" yaml:"mode"`
		RemoteRoot     string `mapstructure:"remote_root" yaml:"remote_root"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`

		Dropbox struct {
			Namespace string `mapstructure:"namespace" yaml:"namespace"`
		} `mapstructure:"dropbox" yaml:"dropbox"`

		WebDAV struct {
			Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
			Username string `mapstructure:"username" yaml:"username"`
			Password string `mapstructure:"password" yaml:"-"` // Never serialize credentials
		} `mapstructure:"webdav" yaml:"webdav"`

		Vault struct {
			BaseURL string `mapstructure:"base_url" yaml:"base_url"`
		} `mapstructure:"vault" yaml:"vault"`
	} `mapstructure:"storage" yaml:"storage"`

	Crypto struct {
		Passphrase string `mapstructure:"passphrase" yaml:"-"` // Never serialize the passphrase
		Iterations int    `mapstructure:"iterations" yaml:"iterations"`
	} `mapstructure:"crypto" yaml:"crypto"`

	Sync struct {
		MaxRetries       int `mapstructure:"max_retries" yaml:"max_retries"`
		InitialBackoffMs int `mapstructure:"initial_backoff_ms" yaml:"initial_backoff_ms"`
		MaxBackoffMs     int `mapstructure:"max_backoff_ms" yaml:"max_backoff_ms"`
	} `mapstructure:"sync" yaml:"sync"`

	Allocator struct {
		MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	} `mapstructure:"allocator" yaml:"allocator"`

	AI struct {
		Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
		Model            string `mapstructure:"model" yaml:"model"`
		TimeoutSeconds   int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
		FallbackCategory string `mapstructure:"fallback_category" yaml:"fallback_category"`
		APIKey           string `mapstructure:"api_key" yaml:"-"` // Never serialize API key
	} `mapstructure:"ai" yaml:"ai"`
}

// StorageModes lists the valid values for storage.mode.
var StorageModes = []string{"drive", "dropbox", "webdav", "vault", "local"}

// InitializeConfig initializes Viper configuration with hierarchical loading
func InitializeConfig() (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.receiptvault")
	v.AddConfigPath(".receiptvault")
	v.AddConfigPath(".")

	// 3. Environment variables
	v.SetEnvPrefix("RECEIPTVAULT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Log the error but don't fail - continue with defaults and env vars
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	// 5. Secrets always come from unprefixed environment variables
	if err := v.BindEnv("crypto.passphrase", "RECEIPTVAULT_PASSPHRASE"); err != nil {
		fmt.Printf("Warning: failed to bind RECEIPTVAULT_PASSPHRASE environment variable: %v\n", err)
	}
	if err := v.BindEnv("ai.api_key", "GEMINI_API_KEY"); err != nil {
		fmt.Printf("Warning: failed to bind GEMINI_API_KEY environment variable: %v\n", err)
	}
	if err := v.BindEnv("storage.webdav.password", "RECEIPTVAULT_WEBDAV_PASSWORD"); err != nil {
		fmt.Printf("Warning: failed to bind RECEIPTVAULT_WEBDAV_PASSWORD environment variable: %v\n", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Data defaults
	v.SetDefault("data.directory", "")
	v.SetDefault("data.db_path", "")
	v.SetDefault("data.device_id", "")

	// Storage defaults
	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.remote_root", "/Apps/ReceiptVault")
	v.SetDefault("storage.timeout_seconds", 30)
	v.SetDefault("storage.dropbox.namespace", "")
	v.SetDefault("storage.webdav.endpoint", "")
	v.SetDefault("storage.webdav.username", "")
	v.SetDefault("storage.vault.base_url", "")

	// Crypto defaults
	v.SetDefault("crypto.iterations", 100_000)

	// Sync defaults
	v.SetDefault("sync.max_retries", 5)
	v.SetDefault("sync.initial_backoff_ms", 500)
	v.SetDefault("sync.max_backoff_ms", 30_000)

	// Allocator defaults
	v.SetDefault("allocator.max_attempts", 5)

	// AI defaults
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout_seconds", 30)
	v.SetDefault("ai.fallback_category", "Uncategorized")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	// Validate log level
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	// Validate log format
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	// Validate storage mode
	valid := false
	for _, mode := range StorageModes {
		if config.Storage.Mode == mode {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid storage mode: %s (must be one of %s)",
			config.Storage.Mode, strings.Join(StorageModes, ", "))
	}

	if config.Storage.Mode == "webdav" && config.Storage.WebDAV.Endpoint == "" {
		return fmt.Errorf("storage.webdav.endpoint required when storage mode is 'webdav'")
	}
	if config.Storage.Mode == "vault" && config.Storage.Vault.BaseURL == "" {
		return fmt.Errorf("storage.vault.base_url required when storage mode is 'vault'")
	}

	if config.Storage.TimeoutSeconds < 1 || config.Storage.TimeoutSeconds > 600 {
		return fmt.Errorf("storage.timeout_seconds must be between 1 and 600, got: %d", config.Storage.TimeoutSeconds)
	}

	// A low iteration count defeats the point of the KDF.
	if config.Crypto.Iterations < 10_000 {
		return fmt.Errorf("crypto.iterations must be at least 10000, got: %d", config.Crypto.Iterations)
	}

	if config.Sync.MaxRetries < 0 || config.Sync.MaxRetries > 20 {
		return fmt.Errorf("sync.max_retries must be between 0 and 20, got: %d", config.Sync.MaxRetries)
	}

	if config.Allocator.MaxAttempts < 1 || config.Allocator.MaxAttempts > 20 {
		return fmt.Errorf("allocator.max_attempts must be between 1 and 20, got: %d", config.Allocator.MaxAttempts)
	}

	// Validate AI configuration
	if config.AI.Enabled {
		if config.AI.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY required when AI is enabled")
		}
		if config.AI.TimeoutSeconds < 1 || config.AI.TimeoutSeconds > 300 {
			return fmt.Errorf("ai.timeout_seconds must be between 1 and 300, got: %d", config.AI.TimeoutSeconds)
		}
	}

	return nil
}

// ConfigureLoggingFromConfig builds a logrus logger from the Config struct.
func ConfigureLoggingFromConfig(config *Config) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.ToLower(config.Log.Level))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", config.Log.Level)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if config.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
