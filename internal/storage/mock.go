package storage

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"

	"fjacquet/receiptvault/internal/pathutils"
	"fjacquet/receiptvault/internal/storageerror"
)

// MockBackend is an in-memory Backend for tests. It records the operations
// performed on it and supports per-operation error injection plus a
// transient-failure counter for exercising the retry path.
type MockBackend struct {
	BackendName   string
	Authenticated bool

	Files   map[string][]byte
	Folders map[string]bool

	// Ops records operation names in call order.
	Ops []string

	// ErrOn returns the mapped error whenever the named operation runs.
	ErrOn map[string]error

	// TransientFailures makes the next N mutating calls fail with a 503
	// RetryableError before succeeding.
	TransientFailures int
}

// NewMockBackend creates an authenticated empty mock.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		BackendName:   "mock",
		Authenticated: true,
		Files:         make(map[string][]byte),
		Folders:       make(map[string]bool),
		ErrOn:         make(map[string]error),
	}
}

func (m *MockBackend) Name() string {
	if m.BackendName == "" {
		return "mock"
	}
	return m.BackendName
}

func (m *MockBackend) fail(op string, mutating bool) error {
	m.Ops = append(m.Ops, op)
	if err, ok := m.ErrOn[op]; ok {
		return err
	}
	if mutating && m.TransientFailures > 0 {
		m.TransientFailures--
		return &storageerror.RetryableError{
			Backend:    m.Name(),
			StatusCode: 503,
			Err:        errors.New("injected transient failure"),
		}
	}
	return nil
}

func (m *MockBackend) Authenticate(ctx context.Context) error {
	if err := m.fail("authenticate", false); err != nil {
		return err
	}
	m.Authenticated = true
	return nil
}

func (m *MockBackend) IsAuthenticated() bool {
	return m.Authenticated
}

func (m *MockBackend) Logout() error {
	m.Ops = append(m.Ops, "logout")
	m.Authenticated = false
	return nil
}

func (m *MockBackend) CreateFolder(ctx context.Context, logicalPath string) error {
	if err := m.fail("createFolder", true); err != nil {
		return err
	}
	segments := pathutils.Split(logicalPath)
	for i := range segments {
		m.Folders[pathutils.Join(segments[:i+1]...)] = true
	}
	return nil
}

func (m *MockBackend) UploadFile(ctx context.Context, data []byte, logicalPath string) error {
	if err := m.fail("uploadFile", true); err != nil {
		return err
	}
	m.storeFile(logicalPath, data)
	return nil
}

func (m *MockBackend) DownloadFile(ctx context.Context, logicalPath string) ([]byte, error) {
	if err := m.fail("downloadFile", false); err != nil {
		return nil, err
	}
	data, ok := m.Files[clean(logicalPath)]
	if !ok {
		return nil, &storageerror.NotFoundError{Backend: m.Name(), Path: logicalPath}
	}
	return append([]byte(nil), data...), nil
}

func (m *MockBackend) ListFiles(ctx context.Context, logicalPath string) ([]string, error) {
	if err := m.fail("listFiles", false); err != nil {
		return nil, err
	}
	dir := clean(logicalPath)
	var names []string
	for p := range m.Files {
		if path.Dir(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockBackend) FileExists(ctx context.Context, logicalPath string) (bool, error) {
	if err := m.fail("fileExists", false); err != nil {
		return false, err
	}
	_, ok := m.Files[clean(logicalPath)]
	return ok, nil
}

func (m *MockBackend) ReadTextFile(ctx context.Context, logicalPath string) (TextFileResult, error) {
	if err := m.fail("readTextFile", false); err != nil {
		return TextFileResult{}, err
	}
	data, ok := m.Files[clean(logicalPath)]
	if !ok {
		return NotFoundText(), nil
	}
	return FoundText(string(data)), nil
}

func (m *MockBackend) WriteTextFile(ctx context.Context, logicalPath, text string) error {
	if err := m.fail("writeTextFile", true); err != nil {
		return err
	}
	m.storeFile(logicalPath, []byte(text))
	return nil
}

func (m *MockBackend) MoveFile(ctx context.Context, fromPath, toPath string) error {
	if err := m.fail("moveFile", true); err != nil {
		return err
	}
	from := clean(fromPath)
	data, ok := m.Files[from]
	if !ok {
		return &storageerror.NotFoundError{Backend: m.Name(), Path: fromPath}
	}
	m.storeFile(toPath, data)
	delete(m.Files, from)
	return nil
}

// OpCount returns how many times the named operation ran.
func (m *MockBackend) OpCount(op string) int {
	count := 0
	for _, o := range m.Ops {
		if o == op {
			count++
		}
	}
	return count
}

func (m *MockBackend) storeFile(logicalPath string, data []byte) {
	p := clean(logicalPath)
	m.Files[p] = append([]byte(nil), data...)
	segments := pathutils.Split(path.Dir(p))
	for i := range segments {
		m.Folders[pathutils.Join(segments[:i+1]...)] = true
	}
}

func clean(logicalPath string) string {
	return path.Clean("/" + strings.TrimPrefix(logicalPath, "/"))
}
