// Package dropboxstorage implements the storage backend on the Dropbox HTTP
// API v2: JSON RPC calls against api.dropboxapi.com and content transfers
// against content.dropboxapi.com.
package dropboxstorage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/models"
	"fjacquet/receiptvault/internal/storage"
	"fjacquet/receiptvault/internal/storageerror"
)

const (
	backendName        = "dropbox"
	defaultAPIBase     = "https://api.dropboxapi.com"
	defaultContentBase = "https://content.dropboxapi.com"
)

// DropboxBackend talks to one Dropbox account. An optional namespace folder
// prefixes every logical path, keeping the app's files in their own subtree.
type DropboxBackend struct {
	provider      models.TokenProvider
	namespace     string
	apiBase       string
	contentBase   string
	client        *http.Client
	authenticated bool
	logger        logging.Logger
}

var _ storage.Backend = (*DropboxBackend)(nil)

// New creates a Dropbox backend. namespace may be empty.
func New(provider models.TokenProvider, namespace string, timeout time.Duration, logger logging.Logger) *DropboxBackend {
	return &DropboxBackend{
		provider:    provider,
		namespace:   strings.Trim(namespace, "/"),
		apiBase:     defaultAPIBase,
		contentBase: defaultContentBase,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// NewWithEndpoints overrides the API hosts. Used by tests.
func NewWithEndpoints(provider models.TokenProvider, namespace, apiBase, contentBase string, logger logging.Logger) *DropboxBackend {
	b := New(provider, namespace, 30*time.Second, logger)
	b.apiBase = apiBase
	b.contentBase = contentBase
	return b
}

func (b *DropboxBackend) Name() string {
	return backendName
}

// Authenticate verifies the token against the current account endpoint.
func (b *DropboxBackend) Authenticate(ctx context.Context) error {
	resp, err := b.rpc(ctx, "/2/users/get_current_account", nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return b.classify("authenticate", "/", resp)
	}
	b.authenticated = true
	b.logger.Info("dropbox authenticated",
		logging.F(logging.FieldBackend, backendName))
	return nil
}

func (b *DropboxBackend) IsAuthenticated() bool {
	return b.authenticated
}

func (b *DropboxBackend) Logout() error {
	b.authenticated = false
	return nil
}

func (b *DropboxBackend) CreateFolder(ctx context.Context, logicalPath string) error {
	resp, err := b.rpc(ctx, "/2/files/create_folder_v2", map[string]any{
		"path":       b.nativePath(logicalPath),
		"autorename": false,
	})
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	// An existing folder answers 409 path/conflict/folder; that is success
	// here. A file squatting on the path is path/conflict/file and stays an
	// error.
	if resp.StatusCode == http.StatusConflict {
		body := readBody(resp)
		if strings.Contains(body, "conflict/folder") {
			return nil
		}
		return b.classifyBody("createFolder", logicalPath, resp.StatusCode, body)
	}
	return b.classify("createFolder", logicalPath, resp)
}

func (b *DropboxBackend) UploadFile(ctx context.Context, data []byte, logicalPath string) error {
	arg, err := json.Marshal(map[string]any{
		"path": b.nativePath(logicalPath),
		"mode": "overwrite",
		"mute": true,
	})
	if err != nil {
		return &storageerror.StorageError{Backend: backendName, Op: "uploadFile", Path: logicalPath, Err: err}
	}

	resp, err := b.content(ctx, "/2/files/upload", string(arg), bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return b.classify("uploadFile", logicalPath, resp)
	}
	b.logger.Debug("file uploaded",
		logging.F(logging.FieldBackend, backendName),
		logging.F(logging.FieldPath, logicalPath))
	return nil
}

func (b *DropboxBackend) DownloadFile(ctx context.Context, logicalPath string) ([]byte, error) {
	arg, err := json.Marshal(map[string]any{"path": b.nativePath(logicalPath)})
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: "downloadFile", Path: logicalPath, Err: err}
	}

	resp, err := b.content(ctx, "/2/files/download", string(arg), nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, b.classify("downloadFile", logicalPath, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: "downloadFile", Path: logicalPath, Err: err}
	}
	return data, nil
}

func (b *DropboxBackend) ListFiles(ctx context.Context, logicalPath string) ([]string, error) {
	var names []string
	cursor := ""
	for {
		endpoint := "/2/files/list_folder"
		body := map[string]any{"path": b.nativePath(logicalPath)}
		if cursor != "" {
			endpoint = "/2/files/list_folder/continue"
			body = map[string]any{"cursor": cursor}
		}

		resp, err := b.rpc(ctx, endpoint, body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			err := b.classify("listFiles", logicalPath, resp)
			drain(resp)
			if storageerror.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}

		var page struct {
			Entries []struct {
				Tag  string `json:".tag"`
				Name string `json:"name"`
			} `json:"entries"`
			Cursor  string `json:"cursor"`
			HasMore bool   `json:"has_more"`
		}
		err = json.NewDecoder(resp.Body).Decode(&page)
		drain(resp)
		if err != nil {
			return nil, &storageerror.StorageError{Backend: backendName, Op: "listFiles", Path: logicalPath, Err: err}
		}

		for _, entry := range page.Entries {
			if entry.Tag == "file" {
				names = append(names, entry.Name)
			}
		}
		if !page.HasMore {
			return names, nil
		}
		cursor = page.Cursor
	}
}

func (b *DropboxBackend) FileExists(ctx context.Context, logicalPath string) (bool, error) {
	resp, err := b.rpc(ctx, "/2/files/get_metadata", map[string]any{
		"path": b.nativePath(logicalPath),
	})
	if err != nil {
		return false, err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusOK {
		var meta struct {
			Tag string `json:".tag"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
			return false, &storageerror.StorageError{Backend: backendName, Op: "fileExists", Path: logicalPath, Err: err}
		}
		return meta.Tag == "file", nil
	}

	classified := b.classify("fileExists", logicalPath, resp)
	if storageerror.IsNotFound(classified) {
		return false, nil
	}
	return false, classified
}

func (b *DropboxBackend) ReadTextFile(ctx context.Context, logicalPath string) (storage.TextFileResult, error) {
	data, err := b.DownloadFile(ctx, logicalPath)
	if storageerror.IsNotFound(err) {
		return storage.NotFoundText(), nil
	}
	if err != nil {
		return storage.TextFileResult{}, err
	}
	return storage.FoundText(string(data)), nil
}

func (b *DropboxBackend) WriteTextFile(ctx context.Context, logicalPath, text string) error {
	return b.UploadFile(ctx, []byte(text), logicalPath)
}

func (b *DropboxBackend) MoveFile(ctx context.Context, fromPath, toPath string) error {
	resp, err := b.rpc(ctx, "/2/files/move_v2", map[string]any{
		"from_path":  b.nativePath(fromPath),
		"to_path":    b.nativePath(toPath),
		"autorename": false,
	})
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return b.classify("moveFile", fromPath, resp)
	}
	return nil
}

// rpc posts a JSON body to an api.dropboxapi.com endpoint.
func (b *DropboxBackend) rpc(ctx context.Context, endpoint string, body map[string]any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &storageerror.StorageError{Backend: backendName, Op: endpoint, Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiBase+endpoint, reader)
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: endpoint, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return b.send(req)
}

// content posts to a content.dropboxapi.com endpoint with the JSON argument
// in the Dropbox-API-Arg header.
func (b *DropboxBackend) content(ctx context.Context, endpoint, arg string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.contentBase+endpoint, body)
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: endpoint, Err: err}
	}
	req.Header.Set("Dropbox-API-Arg", arg)
	req.Header.Set("Content-Type", "application/octet-stream")
	return b.send(req)
}

func (b *DropboxBackend) send(req *http.Request) (*http.Response, error) {
	token, err := b.provider.GetValidAccessToken(req.Context())
	if err != nil {
		return nil, &storageerror.AuthError{Backend: backendName, Msg: "no valid access token", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &storageerror.RetryableError{Backend: backendName, Err: err}
	}
	return resp, nil
}

// classify reads the error body and maps the response onto the shared
// taxonomy. Dropbox signals domain errors as 409 with a descriptive
// error_summary.
func (b *DropboxBackend) classify(op, logicalPath string, resp *http.Response) error {
	return b.classifyBody(op, logicalPath, resp.StatusCode, readBody(resp))
}

func (b *DropboxBackend) classifyBody(op, logicalPath string, status int, body string) error {
	switch {
	case status == http.StatusConflict && strings.Contains(body, "not_found"):
		return &storageerror.NotFoundError{Backend: backendName, Path: logicalPath}
	case strings.Contains(body, "insufficient_space"):
		return &storageerror.QuotaError{Backend: backendName, Err: fmt.Errorf("%s", strings.TrimSpace(body))}
	default:
		return storage.ErrorFromStatus(backendName, op, logicalPath, status, fmt.Errorf("%s", strings.TrimSpace(body)))
	}
}

// nativePath prefixes the namespace folder. Dropbox rejects trailing slashes
// and expects the root as the empty string.
func (b *DropboxBackend) nativePath(logicalPath string) string {
	p := path.Clean("/" + strings.TrimPrefix(logicalPath, "/"))
	if b.namespace != "" {
		p = "/" + b.namespace + p
	}
	if p == "/" {
		return ""
	}
	return p
}

func readBody(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return string(data)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
