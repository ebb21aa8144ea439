package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fjacquet/receiptvault/internal/models"
)

// ErrQueueItemNotFound is returned when a queue item id is unknown.
var ErrQueueItemNotFound = errors.New("sync queue item not found")

// Enqueue appends a pending item for the given receipt and action.
func (s *Store) Enqueue(ctx context.Context, receiptID string, action models.SyncAction) (models.SyncQueueItem, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_queue (receipt_id, action, status, created_at)
		VALUES (?, ?, ?, ?)`,
		receiptID, string(action), string(models.StatusPending), now.Format(time.RFC3339))
	if err != nil {
		return models.SyncQueueItem{}, fmt.Errorf("enqueue %s for %s: %w", action, receiptID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.SyncQueueItem{}, fmt.Errorf("enqueue %s for %s: %w", action, receiptID, err)
	}
	return models.SyncQueueItem{
		ID:        id,
		ReceiptID: receiptID,
		Action:    action,
		Status:    models.StatusPending,
		CreatedAt: now,
	}, nil
}

// PendingItems returns pending items in FIFO creation order, up to limit.
func (s *Store) PendingItems(ctx context.Context, limit int) ([]models.SyncQueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_id, action, status, retry_count, last_attempt, error_message, created_at
		FROM sync_queue WHERE status = ? ORDER BY id LIMIT ?`,
		string(models.StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending queue items: %w", err)
	}
	defer rows.Close()
	return scanQueueItems(rows)
}

// ItemsByStatus returns items with the given status, newest last. An empty
// status returns everything.
func (s *Store) ItemsByStatus(ctx context.Context, status models.SyncStatus) ([]models.SyncQueueItem, error) {
	query := `SELECT id, receipt_id, action, status, retry_count, last_attempt, error_message, created_at
		FROM sync_queue`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue items: %w", err)
	}
	defer rows.Close()
	return scanQueueItems(rows)
}

// MarkInProgress moves an item into in_progress and stamps the attempt time.
func (s *Store) MarkInProgress(ctx context.Context, id int64) error {
	return s.updateItem(ctx, id, `
		UPDATE sync_queue SET status = ?, last_attempt = ? WHERE id = ?`,
		string(models.StatusInProgress), time.Now().UTC().Format(time.RFC3339), id)
}

// IncrementRetry bumps the retry counter after a consumed retryable attempt.
// The counter only ever grows.
func (s *Store) IncrementRetry(ctx context.Context, id int64) error {
	return s.updateItem(ctx, id, `
		UPDATE sync_queue SET retry_count = retry_count + 1, last_attempt = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
}

// MarkCompleted moves an item into its terminal state.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	return s.updateItem(ctx, id, `
		UPDATE sync_queue SET status = ?, error_message = '' WHERE id = ?`,
		string(models.StatusCompleted), id)
}

// MarkFailed records the error text and parks the item as failed. Failed
// items stay queryable.
func (s *Store) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	return s.updateItem(ctx, id, `
		UPDATE sync_queue SET status = ?, error_message = ? WHERE id = ?`,
		string(models.StatusFailed), errorMessage, id)
}

// RetryFailed moves one failed item back to pending.
func (s *Store) RetryFailed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ? WHERE id = ? AND status = ?`,
		string(models.StatusPending), id, string(models.StatusFailed))
	if err != nil {
		return fmt.Errorf("retry queue item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retry queue item %d: %w", id, err)
	}
	if affected == 0 {
		return ErrQueueItemNotFound
	}
	return nil
}

// RetryAllFailed moves every failed item back to pending and returns how
// many were requeued.
func (s *Store) RetryAllFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ? WHERE status = ?`,
		string(models.StatusPending), string(models.StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("retry failed queue items: %w", err)
	}
	return res.RowsAffected()
}

// PruneCompleted deletes completed items and returns how many were removed.
func (s *Store) PruneCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_queue WHERE status = ?`, string(models.StatusCompleted))
	if err != nil {
		return 0, fmt.Errorf("prune completed queue items: %w", err)
	}
	return res.RowsAffected()
}

// GetQueueItem fetches one item by id.
func (s *Store) GetQueueItem(ctx context.Context, id int64) (models.SyncQueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_id, action, status, retry_count, last_attempt, error_message, created_at
		FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return models.SyncQueueItem{}, fmt.Errorf("query queue item %d: %w", id, err)
	}
	defer rows.Close()

	items, err := scanQueueItems(rows)
	if err != nil {
		return models.SyncQueueItem{}, err
	}
	if len(items) == 0 {
		return models.SyncQueueItem{}, ErrQueueItemNotFound
	}
	return items[0], nil
}

func (s *Store) updateItem(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update queue item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update queue item %d: %w", id, err)
	}
	if affected == 0 {
		return ErrQueueItemNotFound
	}
	return nil
}

func scanQueueItems(rows *sql.Rows) ([]models.SyncQueueItem, error) {
	var items []models.SyncQueueItem
	for rows.Next() {
		var (
			item        models.SyncQueueItem
			action      string
			status      string
			lastAttempt sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&item.ID, &item.ReceiptID, &action, &status,
			&item.RetryCount, &lastAttempt, &item.ErrorMessage, &createdAt); err != nil {
			return nil, err
		}
		item.Action = models.SyncAction(action)
		item.Status = models.SyncStatus(status)
		if lastAttempt.Valid {
			t, err := time.Parse(time.RFC3339, lastAttempt.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt last_attempt for item %d: %w", item.ID, err)
			}
			item.LastAttempt = &t
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("corrupt created_at for item %d: %w", item.ID, err)
		}
		item.CreatedAt = t
		items = append(items, item)
	}
	return items, rows.Err()
}
