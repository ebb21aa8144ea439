package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DayIndexSchemaVersion is the manifest schema written by this build.
const DayIndexSchemaVersion = 1

// ReceiptIndexEntry is the projection of a Receipt stored inside a day
// manifest. Entries exist only as part of a DayIndex.
type ReceiptIndexEntry struct {
	ReceiptID        string          `json:"receipt_id"`
	Filename         string          `json:"filename"`
	AmountTracked    decimal.Decimal `json:"amount_tracked"`
	CurrencyCode     string          `json:"currency_code"`
	Category         string          `json:"category"`
	ChecksumSHA256   string          `json:"checksum_sha256"`
	CapturedAt       LocalTime       `json:"captured_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Conflict         bool            `json:"conflict"`
	Supersedes       string          `json:"supersedes_filename,omitempty"`
	Timezone         string          `json:"timezone"`
	Region           string          `json:"region"`
	Notes            string          `json:"notes,omitempty"`
	TaxApplicable    *bool           `json:"tax_applicable,omitempty"`
	DeviceID         string          `json:"device_id"`
	CaptureSessionID string          `json:"capture_session_id"`
	Source           string          `json:"source"`
	CreatedAt        time.Time       `json:"created_at"`
}

// MetadataEquals reports field-wise equality excluding the conflict flag.
// Two entries that differ only in their conflict marker are considered the
// same for merge purposes.
func (e ReceiptIndexEntry) MetadataEquals(other ReceiptIndexEntry) bool {
	taxEqual := (e.TaxApplicable == nil) == (other.TaxApplicable == nil) &&
		(e.TaxApplicable == nil || *e.TaxApplicable == *other.TaxApplicable)

	return e.ReceiptID == other.ReceiptID &&
		e.Filename == other.Filename &&
		e.AmountTracked.Equal(other.AmountTracked) &&
		e.CurrencyCode == other.CurrencyCode &&
		e.Category == other.Category &&
		e.ChecksumSHA256 == other.ChecksumSHA256 &&
		e.CapturedAt.Equal(other.CapturedAt.Time) &&
		e.UpdatedAt.Equal(other.UpdatedAt) &&
		e.Supersedes == other.Supersedes &&
		e.Timezone == other.Timezone &&
		e.Region == other.Region &&
		e.Notes == other.Notes &&
		taxEqual &&
		e.DeviceID == other.DeviceID &&
		e.CaptureSessionID == other.CaptureSessionID &&
		e.Source == other.Source &&
		e.CreatedAt.Equal(other.CreatedAt)
}

// DayIndex is the per-date manifest of all receipts captured that day.
// Receipt identifiers are unique within an index; entries are kept sorted by
// capture time ascending.
type DayIndex struct {
	Date          string              `json:"date"`
	SchemaVersion int                 `json:"schema_version"`
	LastUpdated   time.Time           `json:"last_updated"`
	Receipts      []ReceiptIndexEntry `json:"receipts"`
}

// NewDayIndex creates an empty manifest for the given calendar date.
func NewDayIndex(date string) *DayIndex {
	return &DayIndex{
		Date:          date,
		SchemaVersion: DayIndexSchemaVersion,
		Receipts:      []ReceiptIndexEntry{},
	}
}

// Find returns the entry with the given receipt identifier, if present.
func (d *DayIndex) Find(receiptID string) (ReceiptIndexEntry, bool) {
	for _, entry := range d.Receipts {
		if entry.ReceiptID == receiptID {
			return entry, true
		}
	}
	return ReceiptIndexEntry{}, false
}

// Upsert inserts or replaces the entry with the same receipt identifier and
// re-sorts the index. LastUpdated advances to now.
func (d *DayIndex) Upsert(entry ReceiptIndexEntry, now time.Time) {
	replaced := false
	for i, existing := range d.Receipts {
		if existing.ReceiptID == entry.ReceiptID {
			d.Receipts[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		d.Receipts = append(d.Receipts, entry)
	}
	d.Sort()
	if now.After(d.LastUpdated) {
		d.LastUpdated = now
	}
}

// Sort orders entries by capture time ascending, breaking ties by receipt
// identifier so the ordering is independent of insertion order.
func (d *DayIndex) Sort() {
	sort.SliceStable(d.Receipts, func(i, j int) bool {
		if !d.Receipts[i].CapturedAt.Equal(d.Receipts[j].CapturedAt.Time) {
			return d.Receipts[i].CapturedAt.Before(d.Receipts[j].CapturedAt.Time)
		}
		return d.Receipts[i].ReceiptID < d.Receipts[j].ReceiptID
	})
}

// UsedSuffixes extracts the set of filename suffixes present in the index.
// Malformed filenames are skipped.
func (d *DayIndex) UsedSuffixes() map[int]bool {
	suffixes := make(map[int]bool)
	for _, entry := range d.Receipts {
		if n, ok := SuffixOf(entry.Filename); ok {
			suffixes[n] = true
		}
	}
	return suffixes
}

// EncodeDayIndex serializes the manifest to its index.json representation.
func EncodeDayIndex(index *DayIndex) ([]byte, error) {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode day index for %s: %w", index.Date, err)
	}
	return data, nil
}

// DecodeDayIndex parses an index.json document. Missing fields get explicit
// defaults rather than implicit zero values leaking through: an absent
// receipts list becomes an empty slice and an absent schema version is
// treated as version 1.
func DecodeDayIndex(data []byte) (*DayIndex, error) {
	var index DayIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to decode day index: %w", err)
	}
	if index.SchemaVersion == 0 {
		index.SchemaVersion = 1
	}
	if index.SchemaVersion > DayIndexSchemaVersion {
		return nil, fmt.Errorf("unsupported day index schema version %d", index.SchemaVersion)
	}
	if index.Receipts == nil {
		index.Receipts = []ReceiptIndexEntry{}
	}
	return &index, nil
}
