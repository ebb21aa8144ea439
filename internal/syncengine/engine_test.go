package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/receiptvault/internal/hashutils"
	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/models"
	"fjacquet/receiptvault/internal/pathutils"
	"fjacquet/receiptvault/internal/storage"
	"fjacquet/receiptvault/internal/storageerror"
	"fjacquet/receiptvault/internal/store"
)

const testDate = "2025-06-14"

func testPolicy() storage.RetryPolicy {
	return storage.RetryPolicy{
		MaxRetries:     5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

type fixture struct {
	engine  *Engine
	store   *store.Store
	backend *storage.MockBackend
	dataDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	backend := storage.NewMockBackend()
	dataDir := t.TempDir()
	return &fixture{
		engine:  New(st, backend, dataDir, testPolicy(), &logging.MockLogger{}),
		store:   st,
		backend: backend,
		dataDir: dataDir,
	}
}

// addReceipt stores a receipt and writes its image to the local tree.
func (f *fixture) addReceipt(t *testing.T, id, filename string, image []byte) *models.Receipt {
	t.Helper()
	captured, err := models.ParseLocalTime(testDate + "T09:30:00")
	require.NoError(t, err)
	amount, err := models.NewMoneyFromString("12.50", "CHF")
	require.NoError(t, err)

	now := time.Date(2025, 6, 14, 9, 31, 0, 0, time.UTC)
	receipt := &models.Receipt{
		ID:             id,
		CapturedAt:     captured,
		Timezone:       "Europe/Zurich",
		Filename:       filename,
		Amount:         amount,
		Country:        "CH",
		Category:       "Groceries",
		ChecksumSHA256: hashutils.SHA256Bytes(image),
		DeviceID:       "device-a",
		Source:         "camera",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.store.SaveReceipt(context.Background(), receipt))

	logical, err := pathutils.ReceiptPath(testDate, filename)
	require.NoError(t, err)
	osPath := pathutils.OSPath(f.dataDir, logical)
	require.NoError(t, os.MkdirAll(filepath.Dir(osPath), 0o755))
	require.NoError(t, os.WriteFile(osPath, image, 0o644))
	return receipt
}

func TestProcessQueueUploadImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addReceipt(t, "r1", "2025-06-14_1.jpg", []byte("jpeg bytes"))

	item, err := f.store.Enqueue(ctx, "r1", models.ActionUploadImage)
	require.NoError(t, err)

	summary, err := f.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Completed: 1}, summary)

	final, err := f.store.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Equal(t, 0, final.RetryCount)

	logical, err := pathutils.ReceiptPath(testDate, "2025-06-14_1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), f.backend.Files[logical])
}

func TestProcessQueueCountsRetries(t *testing.T) {
	// Three 503s before success: the item completes with the consumed
	// attempts charged to its retry counter.
	ctx := context.Background()
	f := newFixture(t)
	f.addReceipt(t, "r1", "2025-06-14_1.jpg", []byte("jpeg bytes"))
	f.backend.TransientFailures = 3

	item, err := f.store.Enqueue(ctx, "r1", models.ActionUploadImage)
	require.NoError(t, err)

	summary, err := f.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Completed: 1}, summary)

	final, err := f.store.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Equal(t, 3, final.RetryCount)
}

func TestProcessQueuePermanentFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addReceipt(t, "r1", "2025-06-14_1.jpg", []byte("jpeg bytes"))
	f.backend.ErrOn["uploadFile"] = &storageerror.AuthError{Backend: "mock", Msg: "token expired"}

	item, err := f.store.Enqueue(ctx, "r1", models.ActionUploadImage)
	require.NoError(t, err)

	summary, err := f.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Failed: 1}, summary)

	final, err := f.store.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Equal(t, 0, final.RetryCount)
	assert.NotEmpty(t, final.ErrorMessage)
	assert.Equal(t, 1, f.backend.OpCount("uploadFile"))
}

func TestProcessQueueExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addReceipt(t, "r1", "2025-06-14_1.jpg", []byte("jpeg bytes"))
	f.backend.TransientFailures = 100

	policy := testPolicy()
	policy.MaxRetries = 2
	f.engine = New(f.store, f.backend, f.dataDir, policy, &logging.MockLogger{})

	item, err := f.store.Enqueue(ctx, "r1", models.ActionUploadImage)
	require.NoError(t, err)

	summary, err := f.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Failed: 1}, summary)

	final, err := f.store.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Equal(t, 3, final.RetryCount)
}

func TestProcessQueueChecksumMismatchFailsUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	receipt := f.addReceipt(t, "r1", "2025-06-14_1.jpg", []byte("jpeg bytes"))

	// Corrupt the image on disk after capture.
	logical, err := pathutils.ReceiptPath(testDate, receipt.Filename)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pathutils.OSPath(f.dataDir, logical), []byte("tampered"), 0o644))

	item, err := f.store.Enqueue(ctx, "r1", models.ActionUploadImage)
	require.NoError(t, err)

	summary, err := f.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Failed: 1}, summary)

	final, err := f.store.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Contains(t, final.ErrorMessage, "checksum")
	assert.Equal(t, 0, f.backend.OpCount("uploadFile"))
}

func TestProcessQueueUploadIndexMergesRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	local := f.addReceipt(t, "r-local", "2025-06-14_1.jpg", []byte("local image"))

	// Remote holds a diverging copy of the local receipt with a later
	// update, plus a receipt this device has never seen.
	remoteCopy := local.IndexEntry()
	remoteCopy.Category = "Travel"
	remoteCopy.UpdatedAt = local.UpdatedAt.Add(time.Minute)

	remoteImage := []byte("remote image")
	capturedRemote, err := models.ParseLocalTime(testDate + "T10:00:00")
	require.NoError(t, err)
	remoteOnly := models.ReceiptIndexEntry{
		ReceiptID:      "r-remote",
		Filename:       "2025-06-14_2.jpg",
		CurrencyCode:   "CHF",
		Category:       "Dining",
		ChecksumSHA256: hashutils.SHA256Bytes(remoteImage),
		CapturedAt:     capturedRemote,
		UpdatedAt:      local.UpdatedAt,
		Timezone:       "Europe/Zurich",
		DeviceID:       "device-b",
		Source:         "camera",
		CreatedAt:      local.UpdatedAt,
	}

	remoteIndex := models.NewDayIndex(testDate)
	remoteIndex.Upsert(remoteCopy, remoteCopy.UpdatedAt)
	remoteIndex.Upsert(remoteOnly, remoteCopy.UpdatedAt)
	encoded, err := models.EncodeDayIndex(remoteIndex)
	require.NoError(t, err)

	indexPath, err := pathutils.DayIndexPath(testDate)
	require.NoError(t, err)
	require.NoError(t, f.backend.WriteTextFile(ctx, indexPath, string(encoded)))

	remotePath, err := pathutils.ReceiptPath(testDate, "2025-06-14_2.jpg")
	require.NoError(t, err)
	require.NoError(t, f.backend.UploadFile(ctx, remoteImage, remotePath))

	_, err = f.store.Enqueue(ctx, "r-local", models.ActionUploadIndex)
	require.NoError(t, err)

	// The drain also picks up the download the merge enqueues.
	summary, err := f.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 2, Completed: 2}, summary)

	// Remote won the diverging copy: category updated, conflict flagged.
	reloaded, err := f.store.GetReceipt(ctx, "r-local")
	require.NoError(t, err)
	assert.Equal(t, "Travel", reloaded.Category)
	assert.True(t, reloaded.Conflict)
	assert.Equal(t, "CH", reloaded.Country)

	// The unseen receipt was adopted and its image downloaded.
	adopted, err := f.store.GetReceipt(ctx, "r-remote")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-14_2.jpg", adopted.Filename)

	downloaded, err := os.ReadFile(pathutils.OSPath(f.dataDir, remotePath))
	require.NoError(t, err)
	assert.Equal(t, remoteImage, downloaded)

	// The merged manifest landed on both sides with every receipt.
	merged, err := models.DecodeDayIndex(f.backend.Files[indexPath])
	require.NoError(t, err)
	require.Len(t, merged.Receipts, 2)

	mirrored, err := os.ReadFile(pathutils.OSPath(f.dataDir, indexPath))
	require.NoError(t, err)
	localMerged, err := models.DecodeDayIndex(mirrored)
	require.NoError(t, err)
	assert.Len(t, localMerged.Receipts, 2)
}

func TestProcessQueueUploadIndexFirstWriter(t *testing.T) {
	// No remote manifest yet: the local view is written as-is.
	ctx := context.Background()
	f := newFixture(t)
	f.addReceipt(t, "r1", "2025-06-14_1.jpg", []byte("jpeg bytes"))

	_, err := f.store.Enqueue(ctx, "r1", models.ActionUploadIndex)
	require.NoError(t, err)

	summary, err := f.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Completed: 1}, summary)

	indexPath, err := pathutils.DayIndexPath(testDate)
	require.NoError(t, err)
	written, err := models.DecodeDayIndex(f.backend.Files[indexPath])
	require.NoError(t, err)
	require.Len(t, written.Receipts, 1)
	assert.Equal(t, "r1", written.Receipts[0].ReceiptID)
	assert.False(t, written.Receipts[0].Conflict)
}

func TestProcessQueueDownloadChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	receipt := f.addReceipt(t, "r1", "2025-06-14_1.jpg", []byte("jpeg bytes"))

	logical, err := pathutils.ReceiptPath(testDate, receipt.Filename)
	require.NoError(t, err)
	require.NoError(t, f.backend.UploadFile(ctx, []byte("different bytes"), logical))

	item, err := f.store.Enqueue(ctx, "r1", models.ActionDownload)
	require.NoError(t, err)

	summary, err := f.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Failed: 1}, summary)

	final, err := f.store.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Contains(t, final.ErrorMessage, "checksum")
}

func TestProcessQueueEmpty(t *testing.T) {
	f := newFixture(t)
	summary, err := f.engine.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
}

func TestProcessQueueStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.addReceipt(t, "r1", "2025-06-14_1.jpg", []byte("jpeg bytes"))
	_, err := f.store.Enqueue(context.Background(), "r1", models.ActionUploadImage)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.engine.ProcessQueue(ctx)
	assert.Error(t, err)
}
