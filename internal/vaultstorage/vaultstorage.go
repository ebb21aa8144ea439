// Package vaultstorage implements the storage backend against the
// first-party receipt vault service, a small REST API speaking JSON for
// metadata and raw bytes for file content.
package vaultstorage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/models"
	"fjacquet/receiptvault/internal/storage"
	"fjacquet/receiptvault/internal/storageerror"
)

const backendName = "vault"

// VaultBackend talks to one vault service instance.
type VaultBackend struct {
	baseURL       string
	provider      models.TokenProvider
	client        *http.Client
	authenticated bool
	logger        logging.Logger
}

var _ storage.Backend = (*VaultBackend)(nil)

// New creates a backend for the service at baseURL, e.g.
// "https://vault.example.com".
func New(baseURL string, provider models.TokenProvider, timeout time.Duration, logger logging.Logger) (*VaultBackend, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid vault base URL '%s'", baseURL)
	}
	return &VaultBackend{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		provider: provider,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

func (b *VaultBackend) Name() string {
	return backendName
}

// Authenticate pings the service with the current token.
func (b *VaultBackend) Authenticate(ctx context.Context) error {
	resp, err := b.do(ctx, http.MethodGet, "/api/v1/ping", nil, nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return storage.ErrorFromStatus(backendName, "authenticate", "/", resp.StatusCode, nil)
	}
	b.authenticated = true
	b.logger.Info("vault authenticated",
		logging.F(logging.FieldBackend, backendName))
	return nil
}

func (b *VaultBackend) IsAuthenticated() bool {
	return b.authenticated
}

func (b *VaultBackend) Logout() error {
	b.authenticated = false
	return nil
}

func (b *VaultBackend) CreateFolder(ctx context.Context, logicalPath string) error {
	body, _ := json.Marshal(map[string]string{"path": logicalPath})
	resp, err := b.do(ctx, http.MethodPost, "/api/v1/folders", bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return err
	}
	defer drain(resp)

	// 409 means the folder already exists.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusConflict {
		return storage.ErrorFromStatus(backendName, "createFolder", logicalPath, resp.StatusCode, nil)
	}
	return nil
}

func (b *VaultBackend) UploadFile(ctx context.Context, data []byte, logicalPath string) error {
	resp, err := b.do(ctx, http.MethodPut, fileEndpoint(logicalPath), bytes.NewReader(data), map[string]string{
		"Content-Type": "application/octet-stream",
	})
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode >= 400 {
		return storage.ErrorFromStatus(backendName, "uploadFile", logicalPath, resp.StatusCode, nil)
	}
	b.logger.Debug("file uploaded",
		logging.F(logging.FieldBackend, backendName),
		logging.F(logging.FieldPath, logicalPath))
	return nil
}

func (b *VaultBackend) DownloadFile(ctx context.Context, logicalPath string) ([]byte, error) {
	resp, err := b.do(ctx, http.MethodGet, fileEndpoint(logicalPath), nil, nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode >= 400 {
		return nil, storage.ErrorFromStatus(backendName, "downloadFile", logicalPath, resp.StatusCode, nil)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: "downloadFile", Path: logicalPath, Err: err}
	}
	return data, nil
}

func (b *VaultBackend) ListFiles(ctx context.Context, logicalPath string) ([]string, error) {
	resp, err := b.do(ctx, http.MethodGet, "/api/v1/list?path="+url.QueryEscape(logicalPath), nil, nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, storage.ErrorFromStatus(backendName, "listFiles", logicalPath, resp.StatusCode, nil)
	}

	var listing struct {
		Files []string `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: "listFiles", Path: logicalPath, Err: err}
	}
	return listing.Files, nil
}

func (b *VaultBackend) FileExists(ctx context.Context, logicalPath string) (bool, error) {
	resp, err := b.do(ctx, http.MethodHead, fileEndpoint(logicalPath), nil, nil)
	if err != nil {
		return false, err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 400 {
		return false, storage.ErrorFromStatus(backendName, "fileExists", logicalPath, resp.StatusCode, nil)
	}
	return true, nil
}

func (b *VaultBackend) ReadTextFile(ctx context.Context, logicalPath string) (storage.TextFileResult, error) {
	data, err := b.DownloadFile(ctx, logicalPath)
	if storageerror.IsNotFound(err) {
		return storage.NotFoundText(), nil
	}
	if err != nil {
		return storage.TextFileResult{}, err
	}
	return storage.FoundText(string(data)), nil
}

func (b *VaultBackend) WriteTextFile(ctx context.Context, logicalPath, text string) error {
	return b.UploadFile(ctx, []byte(text), logicalPath)
}

func (b *VaultBackend) MoveFile(ctx context.Context, fromPath, toPath string) error {
	body, _ := json.Marshal(map[string]string{"from": fromPath, "to": toPath})
	resp, err := b.do(ctx, http.MethodPost, "/api/v1/move", bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode >= 400 {
		return storage.ErrorFromStatus(backendName, "moveFile", fromPath, resp.StatusCode, nil)
	}
	return nil
}

func (b *VaultBackend) do(ctx context.Context, method, endpoint string, body io.Reader, headers map[string]string) (*http.Response, error) {
	token, err := b.provider.GetValidAccessToken(ctx)
	if err != nil {
		return nil, &storageerror.AuthError{Backend: backendName, Msg: "no valid access token", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+endpoint, body)
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: method, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &storageerror.RetryableError{Backend: backendName, Err: err}
	}
	return resp, nil
}

func fileEndpoint(logicalPath string) string {
	return "/api/v1/files?path=" + url.QueryEscape(logicalPath)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
