// Package models defines the core data structures shared across the
// application: receipts, day indexes, sync queue items and the contracts
// consumed from external collaborators.
package models

import (
	"time"
)

// Receipt is the full local record of a captured receipt. The filename is
// immutable once assigned; the checksum is computed once after capture.
type Receipt struct {
	ID               string    `json:"id"`
	CapturedAt       LocalTime `json:"captured_at"`
	Timezone         string    `json:"timezone"`
	Filename         string    `json:"filename"`
	Amount           Money     `json:"amount"`
	Country          string    `json:"country"`
	Region           string    `json:"region"`
	Category         string    `json:"category"`
	Notes            string    `json:"notes,omitempty"`
	TaxApplicable    *bool     `json:"tax_applicable,omitempty"`
	ChecksumSHA256   string    `json:"checksum_sha256"`
	DeviceID         string    `json:"device_id"`
	CaptureSessionID string    `json:"capture_session_id"`
	Source           string    `json:"source"`
	Conflict         bool      `json:"conflict"`
	Supersedes       string    `json:"supersedes_filename,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FromIndexEntry reconstructs a receipt record from its day-index
// projection. The country is not carried in the index and stays empty until
// the full record syncs down.
func FromIndexEntry(e ReceiptIndexEntry) *Receipt {
	return &Receipt{
		ID:               e.ReceiptID,
		CapturedAt:       e.CapturedAt,
		Timezone:         e.Timezone,
		Filename:         e.Filename,
		Amount:           NewMoney(e.AmountTracked, e.CurrencyCode),
		Region:           e.Region,
		Category:         e.Category,
		Notes:            e.Notes,
		TaxApplicable:    e.TaxApplicable,
		ChecksumSHA256:   e.ChecksumSHA256,
		DeviceID:         e.DeviceID,
		CaptureSessionID: e.CaptureSessionID,
		Source:           e.Source,
		Conflict:         e.Conflict,
		Supersedes:       e.Supersedes,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

// IndexEntry projects the receipt into its day-index representation.
func (r *Receipt) IndexEntry() ReceiptIndexEntry {
	return ReceiptIndexEntry{
		ReceiptID:        r.ID,
		Filename:         r.Filename,
		AmountTracked:    r.Amount.Amount,
		CurrencyCode:     r.Amount.Currency,
		Category:         r.Category,
		ChecksumSHA256:   r.ChecksumSHA256,
		CapturedAt:       r.CapturedAt,
		UpdatedAt:        r.UpdatedAt,
		Conflict:         r.Conflict,
		Supersedes:       r.Supersedes,
		Timezone:         r.Timezone,
		Region:           r.Region,
		Notes:            r.Notes,
		TaxApplicable:    r.TaxApplicable,
		DeviceID:         r.DeviceID,
		CaptureSessionID: r.CaptureSessionID,
		Source:           r.Source,
		CreatedAt:        r.CreatedAt,
	}
}
