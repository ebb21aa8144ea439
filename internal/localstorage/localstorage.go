// Package localstorage implements the storage backend on the local
// filesystem. It doubles as an offline target and as the reference
// implementation the other adapters are tested against. When a key is
// supplied, file contents are encrypted at rest with AES-GCM.
package localstorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fjacquet/receiptvault/internal/cryptoutils"
	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/pathutils"
	"fjacquet/receiptvault/internal/storage"
	"fjacquet/receiptvault/internal/storageerror"
)

const backendName = "local"

// LocalBackend stores files under a root directory, mirroring the logical
// path layout one-to-one.
type LocalBackend struct {
	root   string
	key    []byte
	logger logging.Logger
}

var _ storage.Backend = (*LocalBackend)(nil)

// New creates a backend rooted at dir. key enables at-rest encryption and
// must be nil or exactly 32 bytes.
func New(dir string, key []byte, logger logging.Logger) (*LocalBackend, error) {
	if len(key) != 0 && len(key) != cryptoutils.KeySize {
		return nil, &storageerror.EncryptionError{Msg: fmt.Sprintf("key must be %d bytes, got %d", cryptoutils.KeySize, len(key))}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: "init", Path: dir, Err: err}
	}
	return &LocalBackend{root: dir, key: key, logger: logger}, nil
}

func (b *LocalBackend) Name() string {
	return backendName
}

// Authenticate is a no-op; the filesystem needs no credentials.
func (b *LocalBackend) Authenticate(ctx context.Context) error {
	return nil
}

func (b *LocalBackend) IsAuthenticated() bool {
	return true
}

func (b *LocalBackend) Logout() error {
	return nil
}

func (b *LocalBackend) CreateFolder(ctx context.Context, logicalPath string) error {
	if err := os.MkdirAll(b.osPath(logicalPath), 0o755); err != nil {
		return &storageerror.StorageError{Backend: backendName, Op: "createFolder", Path: logicalPath, Err: err}
	}
	return nil
}

func (b *LocalBackend) UploadFile(ctx context.Context, data []byte, logicalPath string) error {
	payload := data
	if b.key != nil {
		encrypted, err := cryptoutils.EncryptWithKey(data, b.key)
		if err != nil {
			return err
		}
		payload = encrypted
	}

	osPath := b.osPath(logicalPath)
	if err := os.MkdirAll(filepath.Dir(osPath), 0o755); err != nil {
		return &storageerror.StorageError{Backend: backendName, Op: "uploadFile", Path: logicalPath, Err: err}
	}
	if err := os.WriteFile(osPath, payload, 0o644); err != nil {
		return &storageerror.StorageError{Backend: backendName, Op: "uploadFile", Path: logicalPath, Err: err}
	}
	b.logger.Debug("file stored",
		logging.F(logging.FieldBackend, backendName),
		logging.F(logging.FieldPath, logicalPath))
	return nil
}

func (b *LocalBackend) DownloadFile(ctx context.Context, logicalPath string) ([]byte, error) {
	data, err := os.ReadFile(b.osPath(logicalPath))
	if os.IsNotExist(err) {
		return nil, &storageerror.NotFoundError{Backend: backendName, Path: logicalPath}
	}
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: "downloadFile", Path: logicalPath, Err: err}
	}
	if b.key != nil {
		return cryptoutils.DecryptWithKey(data, b.key)
	}
	return data, nil
}

func (b *LocalBackend) ListFiles(ctx context.Context, logicalPath string) ([]string, error) {
	entries, err := os.ReadDir(b.osPath(logicalPath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: "listFiles", Path: logicalPath, Err: err}
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (b *LocalBackend) FileExists(ctx context.Context, logicalPath string) (bool, error) {
	info, err := os.Stat(b.osPath(logicalPath))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &storageerror.StorageError{Backend: backendName, Op: "fileExists", Path: logicalPath, Err: err}
	}
	return !info.IsDir(), nil
}

func (b *LocalBackend) ReadTextFile(ctx context.Context, logicalPath string) (storage.TextFileResult, error) {
	data, err := b.DownloadFile(ctx, logicalPath)
	if storageerror.IsNotFound(err) {
		return storage.NotFoundText(), nil
	}
	if err != nil {
		return storage.TextFileResult{}, err
	}
	return storage.FoundText(string(data)), nil
}

func (b *LocalBackend) WriteTextFile(ctx context.Context, logicalPath, text string) error {
	return b.UploadFile(ctx, []byte(text), logicalPath)
}

func (b *LocalBackend) MoveFile(ctx context.Context, fromPath, toPath string) error {
	from := b.osPath(fromPath)
	to := b.osPath(toPath)
	if _, err := os.Stat(from); os.IsNotExist(err) {
		return &storageerror.NotFoundError{Backend: backendName, Path: fromPath}
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return &storageerror.StorageError{Backend: backendName, Op: "moveFile", Path: toPath, Err: err}
	}
	if err := os.Rename(from, to); err != nil {
		return &storageerror.StorageError{Backend: backendName, Op: "moveFile", Path: fromPath, Err: err}
	}
	return nil
}

func (b *LocalBackend) osPath(logical string) string {
	return pathutils.OSPath(b.root, logical)
}
