// Package storageerror defines the typed error taxonomy shared by the
// storage backends, the filename allocator and the sync engine.
package storageerror

import (
	"errors"
	"fmt"
)

// NotFoundError reports that a file or folder does not exist at the given
// logical path. Callers must never treat this as empty content.
type NotFoundError struct {
	Backend string
	Path    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: not found: %s", e.Backend, e.Path)
}

// AuthError reports an authentication or authorization failure against a
// backend. It is never retried.
type AuthError struct {
	Backend string
	Msg     string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: authentication failed: %s: %v", e.Backend, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: authentication failed: %s", e.Backend, e.Msg)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// QuotaError reports that the remote account is out of storage space.
type QuotaError struct {
	Backend string
	Err     error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: storage quota exceeded", e.Backend)
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

// RetryableError reports a transient backend failure (HTTP 429 or 5xx,
// network timeouts). Only these errors participate in the retry policy.
type RetryableError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transient failure (status %d): %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Backend, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// StorageError is the catch-all for backend failures that fit no other
// category.
type StorageError struct {
	Backend string
	Op      string
	Path    string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s failed for '%s': %v", e.Backend, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// EncryptionError reports a malformed payload, a short ciphertext or a key
// of the wrong length.
type EncryptionError struct {
	Msg string
	Err error
}

func (e *EncryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encryption error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("encryption error: %s", e.Msg)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// InvalidFilenameError reports a receipt filename that does not match the
// YYYY-MM-DD_N.jpg pattern.
type InvalidFilenameError struct {
	Filename string
	Reason   string
}

func (e *InvalidFilenameError) Error() string {
	return fmt.Sprintf("invalid receipt filename '%s': %s", e.Filename, e.Reason)
}

// AllocationExhaustedError reports that the allocate-write-collide loop hit
// its attempt bound without finding a free suffix.
type AllocationExhaustedError struct {
	Date     string
	Attempts int
}

func (e *AllocationExhaustedError) Error() string {
	return fmt.Sprintf("filename allocation for %s exhausted after %d attempts", e.Date, e.Attempts)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRetryable reports whether err is, or wraps, a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsAuth reports whether err is, or wraps, an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsQuota reports whether err is, or wraps, a QuotaError.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}
