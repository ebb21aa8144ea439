package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/receiptvault/internal/allocator"
	"fjacquet/receiptvault/internal/hashutils"
	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/models"
	"fjacquet/receiptvault/internal/pathutils"
	"fjacquet/receiptvault/internal/storageerror"
	"fjacquet/receiptvault/internal/store"
)

const testDate = "2025-06-14"

type stubCategorizer struct {
	category string
	err      error
	calls    int
}

func (c *stubCategorizer) Categorize(ctx context.Context, text string) (string, error) {
	c.calls++
	return c.category, c.err
}

// stubAllocator always hands out the same filename, regardless of what is
// already taken.
type stubAllocator struct {
	filename string
}

func (a *stubAllocator) NextFilename(ctx context.Context, date string) (string, []allocator.SourceError, error) {
	return a.filename, nil, nil
}

func newTestService(t *testing.T, categorizer Categorizer) (*Service, *store.Store, string) {
	t.Helper()
	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dataDir := t.TempDir()
	alloc := allocator.New(st, nil, dataDir, &logging.MockLogger{})
	svc := New(st, alloc, categorizer, dataDir, "device-a", 5, &logging.MockLogger{})
	return svc, st, dataDir
}

func sampleRequest(t *testing.T, imagePath string) Request {
	t.Helper()
	captured, err := models.ParseLocalTime(testDate + "T09:30:00")
	require.NoError(t, err)
	amount, err := models.NewMoneyFromString("12.50", "CHF")
	require.NoError(t, err)
	return Request{
		ImagePath:  imagePath,
		CapturedAt: captured,
		Timezone:   "Europe/Zurich",
		Amount:     amount,
		Country:    "CH",
		Region:     "VD",
		Category:   "Groceries",
		Source:     "camera",
	}
}

func writeImage(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestCapture(t *testing.T) {
	ctx := context.Background()
	svc, st, dataDir := newTestService(t, nil)

	image := writeImage(t, "jpeg bytes")
	receipt, err := svc.Capture(ctx, sampleRequest(t, image))
	require.NoError(t, err)

	assert.Equal(t, "2025-06-14_1.jpg", receipt.Filename)
	assert.NotEmpty(t, receipt.ID)
	assert.NotEmpty(t, receipt.CaptureSessionID)
	assert.Equal(t, hashutils.SHA256Bytes([]byte("jpeg bytes")), receipt.ChecksumSHA256)
	assert.Equal(t, "device-a", receipt.DeviceID)

	// Image landed in the date tree under the allocated name.
	logical, err := pathutils.ReceiptPath(testDate, receipt.Filename)
	require.NoError(t, err)
	stored, err := os.ReadFile(pathutils.OSPath(dataDir, logical))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), stored)

	// Day manifest carries the new entry.
	indexPath, err := pathutils.DayIndexPath(testDate)
	require.NoError(t, err)
	data, err := os.ReadFile(pathutils.OSPath(dataDir, indexPath))
	require.NoError(t, err)
	index, err := models.DecodeDayIndex(data)
	require.NoError(t, err)
	require.Len(t, index.Receipts, 1)
	assert.Equal(t, receipt.ID, index.Receipts[0].ReceiptID)

	// Both upload actions are queued, image first.
	pending, err := st.PendingItems(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, models.ActionUploadImage, pending[0].Action)
	assert.Equal(t, models.ActionUploadIndex, pending[1].Action)
	assert.Equal(t, receipt.ID, pending[0].ReceiptID)
}

func TestCaptureSequentialSuffixes(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, nil)

	first, err := svc.Capture(ctx, sampleRequest(t, writeImage(t, "first")))
	require.NoError(t, err)
	second, err := svc.Capture(ctx, sampleRequest(t, writeImage(t, "second")))
	require.NoError(t, err)

	assert.Equal(t, "2025-06-14_1.jpg", first.Filename)
	assert.Equal(t, "2025-06-14_2.jpg", second.Filename)
}

func TestCaptureMissingImage(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.Capture(context.Background(), sampleRequest(t, "/nonexistent/photo.jpg"))
	assert.Error(t, err)
}

func TestCaptureAllocationExhausted(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	// An allocator stuck on a taken filename must exhaust the bounded loop.
	svc := New(st, &stubAllocator{filename: "2025-06-14_1.jpg"}, nil,
		t.TempDir(), "device-a", 3, &logging.MockLogger{})

	first, err := svc.Capture(ctx, sampleRequest(t, writeImage(t, "first")))
	require.NoError(t, err)
	assert.Equal(t, "2025-06-14_1.jpg", first.Filename)

	_, err = svc.Capture(ctx, sampleRequest(t, writeImage(t, "second")))
	var exhausted *storageerror.AllocationExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, testDate, exhausted.Date)
}

func TestCaptureUsesCategorizer(t *testing.T) {
	ctx := context.Background()
	categorizer := &stubCategorizer{category: "Dining"}
	svc, _, _ := newTestService(t, categorizer)

	req := sampleRequest(t, writeImage(t, "img"))
	req.Category = ""
	req.Notes = "pizzeria da mario"

	receipt, err := svc.Capture(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Dining", receipt.Category)
	assert.Equal(t, 1, categorizer.calls)
}

func TestCaptureExplicitCategorySkipsCategorizer(t *testing.T) {
	ctx := context.Background()
	categorizer := &stubCategorizer{category: "Dining"}
	svc, _, _ := newTestService(t, categorizer)

	receipt, err := svc.Capture(ctx, sampleRequest(t, writeImage(t, "img")))
	require.NoError(t, err)
	assert.Equal(t, "Groceries", receipt.Category)
	assert.Equal(t, 0, categorizer.calls)
}

func TestCaptureCategorizerFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	categorizer := &stubCategorizer{err: errors.New("model unavailable")}
	svc, _, _ := newTestService(t, categorizer)

	req := sampleRequest(t, writeImage(t, "img"))
	req.Category = ""

	receipt, err := svc.Capture(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, receipt.Category)
}
