// Package factory constructs the configured storage backend. It is the one
// place that knows every adapter; callers depend only on storage.Backend.
package factory

import (
	"context"
	"fmt"
	"time"

	"fjacquet/receiptvault/internal/config"
	"fjacquet/receiptvault/internal/cryptoutils"
	"fjacquet/receiptvault/internal/drivestorage"
	"fjacquet/receiptvault/internal/dropboxstorage"
	"fjacquet/receiptvault/internal/localstorage"
	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/models"
	"fjacquet/receiptvault/internal/pathutils"
	"fjacquet/receiptvault/internal/storage"
	"fjacquet/receiptvault/internal/vaultstorage"
	"fjacquet/receiptvault/internal/webdavstorage"
)

// StorageMode identifies a backend adapter.
type StorageMode string

const (
	Drive   StorageMode = "drive"
	Dropbox StorageMode = "dropbox"
	WebDAV  StorageMode = "webdav"
	Vault   StorageMode = "vault"
	Local   StorageMode = "local"
)

// NewBackend builds the backend selected by cfg.Storage.Mode. The token
// provider feeds the adapters that authenticate with bearer tokens; it may
// be nil for modes that do not need one.
func NewBackend(ctx context.Context, cfg *config.Config, provider models.TokenProvider, logger logging.Logger) (storage.Backend, error) {
	timeout := time.Duration(cfg.Storage.TimeoutSeconds) * time.Second

	switch StorageMode(cfg.Storage.Mode) {
	case Drive:
		if provider == nil {
			return nil, fmt.Errorf("storage mode 'drive' requires a token provider")
		}
		return drivestorage.New(ctx, provider, pathutils.Base(cfg.Storage.RemoteRoot), logger)

	case Dropbox:
		if provider == nil {
			return nil, fmt.Errorf("storage mode 'dropbox' requires a token provider")
		}
		return dropboxstorage.New(provider, cfg.Storage.Dropbox.Namespace, timeout, logger), nil

	case WebDAV:
		return webdavstorage.New(cfg.Storage.WebDAV.Endpoint,
			cfg.Storage.WebDAV.Username, cfg.Storage.WebDAV.Password, timeout, logger)

	case Vault:
		if provider == nil {
			return nil, fmt.Errorf("storage mode 'vault' requires a token provider")
		}
		return vaultstorage.New(cfg.Storage.Vault.BaseURL, provider, timeout, logger)

	case Local:
		return localstorage.New(cfg.Storage.RemoteRoot, localKey(cfg), logger)

	default:
		return nil, fmt.Errorf("unknown storage mode: %s", cfg.Storage.Mode)
	}
}

// localKey derives the at-rest encryption key for the local backend. No
// passphrase means no encryption. The salt is fixed so the same passphrase
// always yields the same key across runs.
func localKey(cfg *config.Config) []byte {
	if cfg.Crypto.Passphrase == "" {
		return nil
	}
	salt := make([]byte, cryptoutils.SaltSize)
	return cryptoutils.DeriveKey(cfg.Crypto.Passphrase, salt, cfg.Crypto.Iterations)
}
