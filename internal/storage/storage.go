// Package storage defines the common contract every remote or local storage
// backend implements, plus the shared plumbing they all rely on: the
// path-to-identifier cache, HTTP failure classification and the retry policy.
package storage

import (
	"context"
)

// TextFileResult is the outcome of reading a text file. Absence is an
// explicit state, never empty content: callers must check Found before
// using Text.
type TextFileResult struct {
	Found bool
	Text  string
}

// FoundText wraps text in a present result.
func FoundText(text string) TextFileResult {
	return TextFileResult{Found: true, Text: text}
}

// NotFoundText is the absent result.
func NotFoundText() TextFileResult {
	return TextFileResult{}
}

// ResolveMode controls whether path resolution may create missing folders.
type ResolveMode int

const (
	// ModeResolve never mutates remote state; missing segments surface as
	// not-found. Used by all read paths.
	ModeResolve ResolveMode = iota
	// ModeEnsure creates missing folders while walking. Used by write paths.
	ModeEnsure
)

// Backend is the uniform storage interface. All paths are logical
// POSIX-style paths relative to the app-owned root; each implementation
// maps them to its native addressing scheme.
//
// Upload and write operations have overwrite semantics and are idempotent
// from the caller's perspective. Download and read operations on a missing
// resource return a NotFoundError (or an absent TextFileResult), never
// empty content.
//
// A Backend instance is not safe for concurrent use without external
// synchronization; its path cache is private mutable state.
type Backend interface {
	// Name identifies the backend in logs and errors, e.g. "dropbox".
	Name() string

	// Authenticate verifies that the backend can reach its remote account.
	Authenticate(ctx context.Context) error

	// IsAuthenticated reports whether the backend holds usable credentials.
	IsAuthenticated() bool

	// Logout drops credentials and invalidates all cached path mappings.
	Logout() error

	// CreateFolder ensures the folder at the logical path exists, creating
	// intermediate folders as needed. Creating an existing folder is not an
	// error.
	CreateFolder(ctx context.Context, logicalPath string) error

	// UploadFile writes data to the logical path, overwriting any existing
	// content.
	UploadFile(ctx context.Context, data []byte, logicalPath string) error

	// DownloadFile fetches the content at the logical path.
	DownloadFile(ctx context.Context, logicalPath string) ([]byte, error)

	// ListFiles returns the names (not paths) of files directly inside the
	// folder at the logical path. A missing folder yields an empty list.
	ListFiles(ctx context.Context, logicalPath string) ([]string, error)

	// FileExists reports whether a file exists at the logical path.
	FileExists(ctx context.Context, logicalPath string) (bool, error)

	// ReadTextFile reads a UTF-8 text file, distinguishing absence from
	// emptiness.
	ReadTextFile(ctx context.Context, logicalPath string) (TextFileResult, error)

	// WriteTextFile writes text to the logical path, overwriting.
	WriteTextFile(ctx context.Context, logicalPath, text string) error

	// MoveFile renames or moves a file between logical paths.
	MoveFile(ctx context.Context, fromPath, toPath string) error
}
