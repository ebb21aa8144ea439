package models

import "time"

// SyncAction identifies what a queue item should do when drained.
type SyncAction string

const (
	ActionUploadImage SyncAction = "upload_image"
	ActionUploadIndex SyncAction = "upload_index"
	ActionDownload    SyncAction = "download"
)

// SyncStatus is the lifecycle state of a queue item.
type SyncStatus string

const (
	StatusPending    SyncStatus = "pending"
	StatusInProgress SyncStatus = "in_progress"
	StatusFailed     SyncStatus = "failed"
	StatusCompleted  SyncStatus = "completed"
)

// SyncQueueItem is one persisted unit of pending propagation work. The drain
// loop is the only writer of Status; retry_count increases monotonically.
// The csv tags feed the queue diagnostics export.
type SyncQueueItem struct {
	ID           int64      `json:"id" csv:"id"`
	ReceiptID    string     `json:"receipt_id" csv:"receipt_id"`
	Action       SyncAction `json:"action" csv:"action"`
	Status       SyncStatus `json:"status" csv:"status"`
	RetryCount   int        `json:"retry_count" csv:"retry_count"`
	LastAttempt  *time.Time `json:"last_attempt,omitempty" csv:"last_attempt"`
	ErrorMessage string     `json:"error_message,omitempty" csv:"error_message"`
	CreatedAt    time.Time  `json:"created_at" csv:"created_at"`
}

// Terminal reports whether the item has reached its final state.
func (i SyncQueueItem) Terminal() bool {
	return i.Status == StatusCompleted
}

// ValidSyncAction reports whether s is a known action kind.
func ValidSyncAction(s string) bool {
	switch SyncAction(s) {
	case ActionUploadImage, ActionUploadIndex, ActionDownload:
		return true
	}
	return false
}
