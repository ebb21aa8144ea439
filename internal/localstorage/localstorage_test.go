package localstorage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/storageerror"
)

func newBackend(t *testing.T, key []byte) (*LocalBackend, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := New(dir, key, &logging.MockLogger{})
	require.NoError(t, err)
	return b, dir
}

func TestNewRejectsBadKey(t *testing.T) {
	_, err := New(t.TempDir(), []byte("short"), &logging.MockLogger{})
	var encErr *storageerror.EncryptionError
	assert.ErrorAs(t, err, &encErr)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, dir := newBackend(t, nil)

	require.NoError(t, b.UploadFile(ctx, []byte("jpeg bytes"), "/receipts/2025/06/14/2025-06-14_1.jpg"))

	data, err := b.DownloadFile(ctx, "/receipts/2025/06/14/2025-06-14_1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)

	// Plaintext on disk when no key is configured.
	raw, err := os.ReadFile(filepath.Join(dir, "receipts", "2025", "06", "14", "2025-06-14_1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), raw)
}

func TestEncryptionAtRest(t *testing.T) {
	ctx := context.Background()
	key := bytes.Repeat([]byte{7}, 32)
	b, dir := newBackend(t, key)

	require.NoError(t, b.UploadFile(ctx, []byte("secret image"), "/receipts/2025/06/14/2025-06-14_1.jpg"))

	// Bytes on disk must not contain the plaintext.
	raw, err := os.ReadFile(filepath.Join(dir, "receipts", "2025", "06", "14", "2025-06-14_1.jpg"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret image")

	data, err := b.DownloadFile(ctx, "/receipts/2025/06/14/2025-06-14_1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret image"), data)
}

func TestDownloadMissing(t *testing.T) {
	b, _ := newBackend(t, nil)
	_, err := b.DownloadFile(context.Background(), "/receipts/2025/06/14/ghost.jpg")
	assert.True(t, storageerror.IsNotFound(err))
}

func TestListFiles(t *testing.T) {
	ctx := context.Background()
	b, _ := newBackend(t, nil)

	require.NoError(t, b.UploadFile(ctx, []byte("a"), "/receipts/2025/06/14/2025-06-14_1.jpg"))
	require.NoError(t, b.UploadFile(ctx, []byte("b"), "/receipts/2025/06/14/2025-06-14_2.jpg"))
	require.NoError(t, b.CreateFolder(ctx, "/receipts/2025/06/14/sub"))

	names, err := b.ListFiles(ctx, "/receipts/2025/06/14")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2025-06-14_1.jpg", "2025-06-14_2.jpg"}, names)
}

func TestListFilesMissingFolder(t *testing.T) {
	b, _ := newBackend(t, nil)

	names, err := b.ListFiles(context.Background(), "/receipts/1999/01/01")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFileExists(t *testing.T) {
	ctx := context.Background()
	b, _ := newBackend(t, nil)

	exists, err := b.FileExists(ctx, "/receipts/2025/06/14/2025-06-14_1.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, b.UploadFile(ctx, []byte("a"), "/receipts/2025/06/14/2025-06-14_1.jpg"))
	exists, err = b.FileExists(ctx, "/receipts/2025/06/14/2025-06-14_1.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	// Folders are not files.
	require.NoError(t, b.CreateFolder(ctx, "/receipts/2025/06/15"))
	exists, err = b.FileExists(ctx, "/receipts/2025/06/15")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReadWriteTextFile(t *testing.T) {
	ctx := context.Background()
	b, _ := newBackend(t, nil)

	result, err := b.ReadTextFile(ctx, "/receipts/2025/06/14/index.json")
	require.NoError(t, err)
	assert.False(t, result.Found)

	require.NoError(t, b.WriteTextFile(ctx, "/receipts/2025/06/14/index.json", `{"date":"2025-06-14"}`))

	result, err = b.ReadTextFile(ctx, "/receipts/2025/06/14/index.json")
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, `{"date":"2025-06-14"}`, result.Text)
}

func TestReadTextFileEncrypted(t *testing.T) {
	ctx := context.Background()
	key := bytes.Repeat([]byte{9}, 32)
	b, _ := newBackend(t, key)

	require.NoError(t, b.WriteTextFile(ctx, "/receipts/2025/06/14/index.json", "manifest"))
	result, err := b.ReadTextFile(ctx, "/receipts/2025/06/14/index.json")
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "manifest", result.Text)
}

func TestMoveFile(t *testing.T) {
	ctx := context.Background()
	b, _ := newBackend(t, nil)

	require.NoError(t, b.UploadFile(ctx, []byte("img"), "/receipts/2025/06/14/2025-06-14_1.jpg"))
	require.NoError(t, b.MoveFile(ctx,
		"/receipts/2025/06/14/2025-06-14_1.jpg",
		"/receipts/2025/06/15/2025-06-15_1.jpg"))

	exists, err := b.FileExists(ctx, "/receipts/2025/06/14/2025-06-14_1.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	data, err := b.DownloadFile(ctx, "/receipts/2025/06/15/2025-06-15_1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	err = b.MoveFile(ctx, "/receipts/2025/06/14/ghost.jpg", "/receipts/2025/06/14/other.jpg")
	assert.True(t, storageerror.IsNotFound(err))
}
