// Package container provides dependency injection for the application. It
// centralizes the creation and wiring of all dependencies, making them
// explicit and testable.
package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fjacquet/receiptvault/internal/allocator"
	"fjacquet/receiptvault/internal/capture"
	"fjacquet/receiptvault/internal/categorizer"
	"fjacquet/receiptvault/internal/config"
	"fjacquet/receiptvault/internal/factory"
	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/models"
	"fjacquet/receiptvault/internal/storage"
	"fjacquet/receiptvault/internal/store"
	"fjacquet/receiptvault/internal/syncengine"
)

// Container holds all application dependencies. It is immutable after
// creation; components are reached through getters only.
type Container struct {
	logger  logging.Logger
	config  *config.Config
	store   *store.Store
	backend storage.Backend
	capture *capture.Service
	engine  *syncengine.Engine
}

// Options tweak construction for special cases. The zero value is right for
// normal CLI use.
type Options struct {
	// Offline skips backend construction; the allocator and capture
	// service then run on local sources only.
	Offline bool
	// TokenProvider supplies bearer tokens for the backends that need
	// them. Defaults to the RECEIPTVAULT_ACCESS_TOKEN environment
	// variable.
	TokenProvider models.TokenProvider
}

// NewContainer creates and wires all application dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	logger := logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)

	dataDir, dbPath, err := dataPaths(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	var backend storage.Backend
	if !opts.Offline {
		provider := opts.TokenProvider
		if provider == nil {
			if token := os.Getenv("RECEIPTVAULT_ACCESS_TOKEN"); token != "" {
				provider = models.StaticTokenProvider(token)
			}
		}
		backend, err = factory.NewBackend(ctx, cfg, provider, logger)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	var aiClient categorizer.AIClient
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		aiClient = categorizer.NewGeminiClient(cfg.AI.APIKey, cfg.AI.Model,
			time.Duration(cfg.AI.TimeoutSeconds)*time.Second, logger)
		logger.Info("AI categorization enabled")
	}

	rules, err := categorizer.LoadRules(filepath.Join(dataDir, "categories.yaml"))
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	cat := categorizer.New(rules, aiClient, cfg.AI.FallbackCategory, logger)

	alloc := allocator.New(st, backend, dataDir, logger)
	captureService := capture.New(st, alloc, cat, dataDir,
		deviceID(cfg), cfg.Allocator.MaxAttempts, logger)

	policy := storage.RetryPolicy{
		MaxRetries:     cfg.Sync.MaxRetries,
		InitialBackoff: time.Duration(cfg.Sync.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Sync.MaxBackoffMs) * time.Millisecond,
	}
	var engine *syncengine.Engine
	if backend != nil {
		engine = syncengine.New(st, backend, dataDir, policy, logger)
	}

	return &Container{
		logger:  logger,
		config:  cfg,
		store:   st,
		backend: backend,
		capture: captureService,
		engine:  engine,
	}, nil
}

// Close releases held resources.
func (c *Container) Close() error {
	return c.store.Close()
}

// Logger returns the configured logger.
func (c *Container) Logger() logging.Logger {
	return c.logger
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Store returns the local relational store.
func (c *Container) Store() *store.Store {
	return c.store
}

// Backend returns the configured storage backend; nil in offline mode.
func (c *Container) Backend() storage.Backend {
	return c.backend
}

// Capture returns the capture service.
func (c *Container) Capture() *capture.Service {
	return c.capture
}

// Engine returns the sync engine; nil in offline mode.
func (c *Container) Engine() *syncengine.Engine {
	return c.engine
}

// dataPaths resolves the data directory and database path, creating the
// directory when missing.
func dataPaths(cfg *config.Config) (string, string, error) {
	dataDir := cfg.Data.Directory
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".receiptvault", "data")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create data directory: %w", err)
	}

	dbPath := cfg.Data.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "receiptvault.db")
	}
	return dataDir, dbPath, nil
}

// deviceID falls back to the hostname when none is configured.
func deviceID(cfg *config.Config) string {
	if cfg.Data.DeviceID != "" {
		return cfg.Data.DeviceID
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown-device"
	}
	return hostname
}
