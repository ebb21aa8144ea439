package storageerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Backend: "dropbox", Path: "/receipts/2025/06/14/index.json"}
	assert.Contains(t, err.Error(), "dropbox")
	assert.Contains(t, err.Error(), "not found")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsRetryable(err))
}

func TestRetryableError(t *testing.T) {
	cause := errors.New("service unavailable")
	err := &RetryableError{Backend: "drive", StatusCode: 503, Err: cause}

	assert.Contains(t, err.Error(), "503")
	assert.True(t, IsRetryable(err))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestRetryableErrorWithoutStatus(t *testing.T) {
	err := &RetryableError{Backend: "webdav", Err: errors.New("timeout")}
	assert.NotContains(t, err.Error(), "status")
	assert.True(t, IsRetryable(err))
}

func TestClassificationThroughWrapping(t *testing.T) {
	inner := &RetryableError{Backend: "vault", StatusCode: 429, Err: errors.New("slow down")}
	wrapped := fmt.Errorf("uploading image: %w", inner)

	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.False(t, IsAuth(wrapped))
}

func TestAuthError(t *testing.T) {
	err := &AuthError{Backend: "drive", Msg: "token expired"}
	assert.True(t, IsAuth(err))
	assert.Contains(t, err.Error(), "token expired")
}

func TestQuotaError(t *testing.T) {
	err := &QuotaError{Backend: "dropbox", Err: errors.New("insufficient_space")}
	assert.True(t, IsQuota(err))
	assert.False(t, IsRetryable(err))
}

func TestStorageError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &StorageError{Backend: "vault", Op: "uploadFile", Path: "/receipts/a.jpg", Err: cause}

	assert.Contains(t, err.Error(), "uploadFile")
	assert.Contains(t, err.Error(), "/receipts/a.jpg")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestInvalidFilenameError(t *testing.T) {
	err := &InvalidFilenameError{Filename: "2025-06-14_01.jpg", Reason: "leading zero in suffix"}
	assert.Contains(t, err.Error(), "2025-06-14_01.jpg")
	assert.Contains(t, err.Error(), "leading zero")
}

func TestAllocationExhaustedError(t *testing.T) {
	err := &AllocationExhaustedError{Date: "2025-06-14", Attempts: 5}
	assert.Contains(t, err.Error(), "2025-06-14")
	assert.Contains(t, err.Error(), "5 attempts")
}
