// Package webdavstorage implements the storage backend against a WebDAV
// server using PROPFIND, MKCOL, PUT, GET and MOVE. Directory listings come
// from multistatus documents parsed with xmlutils.
package webdavstorage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/pathutils"
	"fjacquet/receiptvault/internal/storage"
	"fjacquet/receiptvault/internal/storageerror"
	"fjacquet/receiptvault/internal/xmlutils"
)

const backendName = "webdav"

// propfindBody requests only the resource type, which is all the listing
// code needs.
const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:"><D:prop><D:resourcetype/></D:prop></D:propfind>`

// WebDAVBackend talks to one WebDAV endpoint with basic auth.
type WebDAVBackend struct {
	endpoint      *url.URL
	username      string
	password      string
	client        *http.Client
	authenticated bool
	logger        logging.Logger
}

var _ storage.Backend = (*WebDAVBackend)(nil)

// New creates a backend for the given endpoint URL, e.g.
// "https://dav.example.com/remote.php/dav/files/user".
func New(endpoint, username, password string, timeout time.Duration, logger logging.Logger) (*WebDAVBackend, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid webdav endpoint '%s'", endpoint)
	}
	return &WebDAVBackend{
		endpoint: parsed,
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

func (b *WebDAVBackend) Name() string {
	return backendName
}

// Authenticate probes the endpoint root with a depth-0 PROPFIND.
func (b *WebDAVBackend) Authenticate(ctx context.Context) error {
	resp, err := b.do(ctx, "PROPFIND", "/", strings.NewReader(propfindBody), map[string]string{
		"Depth":        "0",
		"Content-Type": "application/xml",
	})
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode >= 400 {
		return storage.ErrorFromStatus(backendName, "authenticate", "/", resp.StatusCode, nil)
	}
	b.authenticated = true
	b.logger.Info("webdav authenticated",
		logging.F(logging.FieldBackend, backendName))
	return nil
}

func (b *WebDAVBackend) IsAuthenticated() bool {
	return b.authenticated
}

func (b *WebDAVBackend) Logout() error {
	b.authenticated = false
	return nil
}

// CreateFolder issues MKCOL per missing path segment. An existing collection
// answers 405 and is not an error.
func (b *WebDAVBackend) CreateFolder(ctx context.Context, logicalPath string) error {
	segments := pathutils.Split(logicalPath)
	for i := range segments {
		partial := pathutils.Join(segments[:i+1]...)
		resp, err := b.do(ctx, "MKCOL", partial+"/", nil, nil)
		if err != nil {
			return err
		}
		drain(resp)

		if resp.StatusCode >= 400 && resp.StatusCode != http.StatusMethodNotAllowed {
			return storage.ErrorFromStatus(backendName, "createFolder", partial, resp.StatusCode, nil)
		}
	}
	return nil
}

func (b *WebDAVBackend) UploadFile(ctx context.Context, data []byte, logicalPath string) error {
	resp, err := b.do(ctx, http.MethodPut, logicalPath, bytes.NewReader(data), map[string]string{
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

func (b *WebDAVBackend) DownloadFile(ctx context.Context, logicalPath string) ([]byte, error) {
	resp, err := b.do(ctx, http.MethodGet, logicalPath, nil, nil)
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

// ListFiles runs a depth-1 PROPFIND and keeps the non-collection children.
func (b *WebDAVBackend) ListFiles(ctx context.Context, logicalPath string) ([]string, error) {
	resp, err := b.do(ctx, "PROPFIND", logicalPath+"/", strings.NewReader(propfindBody), map[string]string{
		"Depth":        "1",
		"Content-Type": "application/xml",
	})
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

	root, err := xmlutils.Parse(resp.Body)
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: "listFiles", Path: logicalPath, Err: err}
	}

	responses, err := xmlutils.Nodes(root, xmlutils.DAV.Response)
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: "listFiles", Path: logicalPath, Err: err}
	}

	var names []string
	for _, response := range responses {
		isCollection, err := xmlutils.Exists(response, xmlutils.DAV.Collection)
		if err != nil {
			return nil, &storageerror.StorageError{Backend: backendName, Op: "listFiles", Path: logicalPath, Err: err}
		}
		if isCollection {
			continue
		}
		href, err := xmlutils.ExtractOne(response, xmlutils.DAV.Href)
		if err != nil {
			return nil, &storageerror.StorageError{Backend: backendName, Op: "listFiles", Path: logicalPath, Err: err}
		}
		if href == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(href); err == nil {
			href = unescaped
		}
		names = append(names, path.Base(strings.TrimSuffix(href, "/")))
	}
	return names, nil
}

func (b *WebDAVBackend) FileExists(ctx context.Context, logicalPath string) (bool, error) {
	resp, err := b.do(ctx, "PROPFIND", logicalPath, strings.NewReader(propfindBody), map[string]string{
		"Depth":        "0",
		"Content-Type": "application/xml",
	})
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

func (b *WebDAVBackend) ReadTextFile(ctx context.Context, logicalPath string) (storage.TextFileResult, error) {
	data, err := b.DownloadFile(ctx, logicalPath)
	if storageerror.IsNotFound(err) {
		return storage.NotFoundText(), nil
	}
	if err != nil {
		return storage.TextFileResult{}, err
	}
	return storage.FoundText(string(data)), nil
}

func (b *WebDAVBackend) WriteTextFile(ctx context.Context, logicalPath, text string) error {
	return b.UploadFile(ctx, []byte(text), logicalPath)
}

func (b *WebDAVBackend) MoveFile(ctx context.Context, fromPath, toPath string) error {
	resp, err := b.do(ctx, "MOVE", fromPath, nil, map[string]string{
		"Destination": b.absoluteURL(toPath),
		"Overwrite":   "F",
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

// do issues one HTTP request against the endpoint. Transport-level failures
// are classified retryable: the server might just be unreachable right now.
func (b *WebDAVBackend) do(ctx context.Context, method, logicalPath string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.absoluteURL(logicalPath), body)
	if err != nil {
		return nil, &storageerror.StorageError{Backend: backendName, Op: method, Path: logicalPath, Err: err}
	}
	req.SetBasicAuth(b.username, b.password)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &storageerror.RetryableError{Backend: backendName, Err: err}
	}
	return resp, nil
}

func (b *WebDAVBackend) absoluteURL(logicalPath string) string {
	u := *b.endpoint
	trailing := strings.HasSuffix(logicalPath, "/")
	u.Path = path.Join(u.Path, strings.TrimPrefix(logicalPath, "/"))
	if trailing && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
