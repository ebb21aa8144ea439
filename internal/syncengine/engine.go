// Package syncengine drains the sync queue against a remote backend. The
// drain loop is single threaded and is the only writer of queue item status,
// so concurrent captures can keep appending while a drain is in flight.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fjacquet/receiptvault/internal/dayindex"
	"fjacquet/receiptvault/internal/hashutils"
	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/models"
	"fjacquet/receiptvault/internal/pathutils"
	"fjacquet/receiptvault/internal/storage"
	"fjacquet/receiptvault/internal/storageerror"
	"fjacquet/receiptvault/internal/store"
)

// batchSize bounds how many pending items are loaded per drain iteration.
const batchSize = 50

// Engine executes queued sync actions against one backend.
type Engine struct {
	store   *store.Store
	backend storage.Backend
	dataDir string
	retry   storage.RetryPolicy
	logger  logging.Logger
}

// New wires an engine over the local store, a backend and the on-disk data
// directory.
func New(st *store.Store, backend storage.Backend, dataDir string, policy storage.RetryPolicy, logger logging.Logger) *Engine {
	return &Engine{
		store:   st,
		backend: backend,
		dataDir: dataDir,
		retry:   policy,
		logger:  logger,
	}
}

// Summary reports the outcome of one drain run.
type Summary struct {
	Processed int
	Completed int
	Failed    int
}

// ProcessQueue drains pending items in FIFO order until the queue is empty
// or the context is cancelled. Items that exhaust their retries or hit a
// permanent error are parked as failed; the drain moves on to the next item.
func (e *Engine) ProcessQueue(ctx context.Context) (Summary, error) {
	var summary Summary
	for {
		items, err := e.store.PendingItems(ctx, batchSize)
		if err != nil {
			return summary, fmt.Errorf("load pending queue items: %w", err)
		}
		if len(items) == 0 {
			return summary, nil
		}

		for _, item := range items {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Processed++
			if e.processItem(ctx, item) {
				summary.Completed++
			} else {
				summary.Failed++
			}
		}
	}
}

// processItem runs one queue item through its full lifecycle and reports
// whether it completed.
func (e *Engine) processItem(ctx context.Context, item models.SyncQueueItem) bool {
	itemLogger := e.logger.WithFields(
		logging.F(logging.FieldQueueID, item.ID),
		logging.F(logging.FieldReceiptID, item.ReceiptID),
		logging.F(logging.FieldAction, string(item.Action)))

	if err := e.store.MarkInProgress(ctx, item.ID); err != nil {
		itemLogger.Error("failed to claim queue item", logging.F("error", err.Error()))
		return false
	}

	var err error
	switch item.Action {
	case models.ActionUploadImage:
		err = e.uploadImage(ctx, item)
	case models.ActionUploadIndex:
		err = e.uploadIndex(ctx, item)
	case models.ActionDownload:
		err = e.download(ctx, item)
	default:
		err = fmt.Errorf("unknown sync action '%s'", item.Action)
	}

	if err != nil {
		itemLogger.Error("sync action failed", logging.F("error", err.Error()))
		if markErr := e.store.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
			itemLogger.Error("failed to park queue item", logging.F("error", markErr.Error()))
		}
		return false
	}

	if err := e.store.MarkCompleted(ctx, item.ID); err != nil {
		itemLogger.Error("failed to complete queue item", logging.F("error", err.Error()))
		return false
	}
	itemLogger.Info("sync action completed")
	return true
}

// withRetry runs fn under the retry policy, charging each consumed retryable
// attempt to the queue item so operators can see how hard an item fought.
func (e *Engine) withRetry(ctx context.Context, itemID int64, op string, fn func() error) error {
	return e.retry.Do(ctx, e.logger, op, func() error {
		err := fn()
		if err != nil && (storageerror.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)) {
			if incErr := e.store.IncrementRetry(ctx, itemID); incErr != nil {
				e.logger.Warn("failed to record retry attempt",
					logging.F(logging.FieldQueueID, itemID),
					logging.F("error", incErr.Error()))
			}
		}
		return err
	})
}

// uploadImage pushes the receipt image to its remote date folder. The image
// is verified against the stored checksum before any bytes leave the device.
func (e *Engine) uploadImage(ctx context.Context, item models.SyncQueueItem) error {
	receipt, err := e.store.GetReceipt(ctx, item.ReceiptID)
	if err != nil {
		return err
	}
	date := receipt.CapturedAt.Date()

	logical, err := pathutils.ReceiptPath(date, receipt.Filename)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(pathutils.OSPath(e.dataDir, logical))
	if err != nil {
		return fmt.Errorf("read local image for %s: %w", receipt.Filename, err)
	}
	if receipt.ChecksumSHA256 != "" && !hashutils.Equal(hashutils.SHA256Bytes(data), receipt.ChecksumSHA256) {
		return fmt.Errorf("local image %s does not match recorded checksum", receipt.Filename)
	}

	dir, err := pathutils.ReceiptDir(date)
	if err != nil {
		return err
	}
	return e.withRetry(ctx, item.ID, "uploadFile", func() error {
		if err := e.backend.CreateFolder(ctx, dir); err != nil {
			return err
		}
		return e.backend.UploadFile(ctx, data, logical)
	})
}

// uploadIndex reconciles the local view of a day with whatever manifest the
// remote currently holds, then writes the merged manifest both remotely and
// locally. The read-merge-write runs as one retryable unit so a transient
// failure always restarts from a fresh remote read.
func (e *Engine) uploadIndex(ctx context.Context, item models.SyncQueueItem) error {
	receipt, err := e.store.GetReceipt(ctx, item.ReceiptID)
	if err != nil {
		return err
	}
	date := receipt.CapturedAt.Date()

	local, err := e.localIndex(ctx, date)
	if err != nil {
		return err
	}
	logical, err := pathutils.DayIndexPath(date)
	if err != nil {
		return err
	}

	var merged *models.DayIndex
	err = e.withRetry(ctx, item.ID, "uploadIndex", func() error {
		remote := models.NewDayIndex(date)
		result, err := e.backend.ReadTextFile(ctx, logical)
		if err != nil {
			return err
		}
		if result.Found {
			remote, err = models.DecodeDayIndex([]byte(result.Text))
			if err != nil {
				return err
			}
		}

		merged = dayindex.Merge(local, remote)
		encoded, err := models.EncodeDayIndex(merged)
		if err != nil {
			return err
		}
		if err := e.backend.CreateFolder(ctx, pathutils.Parent(logical)); err != nil {
			return err
		}
		return e.backend.WriteTextFile(ctx, logical, string(encoded))
	})
	if err != nil {
		return err
	}

	if err := e.applyMerged(ctx, merged); err != nil {
		return err
	}
	return e.writeLocalIndex(merged, logical)
}

// download pulls a receipt image from the remote into the local tree,
// verifying its checksum when one is known.
func (e *Engine) download(ctx context.Context, item models.SyncQueueItem) error {
	receipt, err := e.store.GetReceipt(ctx, item.ReceiptID)
	if err != nil {
		return err
	}
	date := receipt.CapturedAt.Date()

	logical, err := pathutils.ReceiptPath(date, receipt.Filename)
	if err != nil {
		return err
	}

	var data []byte
	err = e.withRetry(ctx, item.ID, "downloadFile", func() error {
		data, err = e.backend.DownloadFile(ctx, logical)
		return err
	})
	if err != nil {
		return err
	}

	if receipt.ChecksumSHA256 != "" && !hashutils.Equal(hashutils.SHA256Bytes(data), receipt.ChecksumSHA256) {
		return fmt.Errorf("downloaded image %s does not match recorded checksum", receipt.Filename)
	}

	osPath := pathutils.OSPath(e.dataDir, logical)
	if err := os.MkdirAll(filepath.Dir(osPath), 0o755); err != nil {
		return fmt.Errorf("create local date folder: %w", err)
	}
	if err := os.WriteFile(osPath, data, 0o644); err != nil {
		return fmt.Errorf("write local image %s: %w", receipt.Filename, err)
	}
	return nil
}

// localIndex builds the day manifest from the local database.
func (e *Engine) localIndex(ctx context.Context, date string) (*models.DayIndex, error) {
	receipts, err := e.store.ReceiptsByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	index := models.NewDayIndex(date)
	for _, receipt := range receipts {
		index.Upsert(receipt.IndexEntry(), receipt.UpdatedAt)
	}
	return index, nil
}

// applyMerged folds merge results back into the local database. Entries the
// remote side won overwrite local metadata; entries unknown locally are
// inserted and their images queued for download.
func (e *Engine) applyMerged(ctx context.Context, merged *models.DayIndex) error {
	for _, entry := range merged.Receipts {
		existing, err := e.store.GetReceipt(ctx, entry.ReceiptID)
		if errors.Is(err, store.ErrReceiptNotFound) {
			if err := e.store.UpsertReceipt(ctx, models.FromIndexEntry(entry)); err != nil {
				return err
			}
			if _, err := e.store.Enqueue(ctx, entry.ReceiptID, models.ActionDownload); err != nil {
				return err
			}
			e.logger.Info("adopted remote receipt",
				logging.F(logging.FieldReceiptID, entry.ReceiptID),
				logging.F(logging.FieldFilename, entry.Filename))
			continue
		}
		if err != nil {
			return err
		}

		current := existing.IndexEntry()
		if current.MetadataEquals(entry) && current.Conflict == entry.Conflict {
			continue
		}
		updated := models.FromIndexEntry(entry)
		updated.Country = existing.Country // not carried in the index
		if err := e.store.UpsertReceipt(ctx, updated); err != nil {
			return err
		}
	}
	return nil
}

// writeLocalIndex mirrors the merged manifest onto local disk.
func (e *Engine) writeLocalIndex(index *models.DayIndex, logical string) error {
	encoded, err := models.EncodeDayIndex(index)
	if err != nil {
		return err
	}
	osPath := pathutils.OSPath(e.dataDir, logical)
	if err := os.MkdirAll(filepath.Dir(osPath), 0o755); err != nil {
		return fmt.Errorf("create local date folder: %w", err)
	}
	if err := os.WriteFile(osPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write local day index: %w", err)
	}
	return nil
}
