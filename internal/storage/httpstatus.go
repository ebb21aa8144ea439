package storage

import (
	"fmt"
	"net/http"

	"fjacquet/receiptvault/internal/storageerror"
)

// ErrorFromStatus maps an HTTP status code from a backend response to the
// shared error taxonomy. 429 and every 5xx are retryable; 401/403 are auth
// failures; 404 is not-found; 507 (and provider-specific quota statuses
// handled by the adapters themselves) is quota.
func ErrorFromStatus(backend, op, logicalPath string, status int, cause error) error {
	if cause == nil {
		cause = fmt.Errorf("http status %d", status)
	}

	switch {
	case status == http.StatusNotFound:
		return &storageerror.NotFoundError{Backend: backend, Path: logicalPath}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &storageerror.AuthError{Backend: backend, Msg: fmt.Sprintf("status %d from %s", status, op), Err: cause}
	case status == http.StatusInsufficientStorage:
		return &storageerror.QuotaError{Backend: backend, Err: cause}
	case status == http.StatusTooManyRequests || status >= 500:
		return &storageerror.RetryableError{Backend: backend, StatusCode: status, Err: cause}
	default:
		return &storageerror.StorageError{Backend: backend, Op: op, Path: logicalPath, Err: cause}
	}
}
