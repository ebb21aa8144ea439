package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fjacquet/receiptvault/internal/models"
)

// ErrReceiptNotFound is returned when a receipt identifier is unknown.
var ErrReceiptNotFound = errors.New("receipt not found")

const receiptColumns = `id, capture_date, captured_at, timezone, filename, amount, currency,
	country, region, category, notes, tax_applicable, checksum_sha256,
	device_id, capture_session_id, source, conflict, supersedes, created_at, updated_at`

// SaveReceipt inserts a new receipt row. The filename UNIQUE constraint is
// the durable serialization point for suffix allocation on this device.
func (s *Store) SaveReceipt(ctx context.Context, r *models.Receipt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO receipts (`+receiptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CapturedAt.Date(), r.CapturedAt.Format("2006-01-02T15:04:05"), r.Timezone,
		r.Filename, r.Amount.Amount.String(), r.Amount.Currency,
		r.Country, r.Region, r.Category, r.Notes, taxToDB(r.TaxApplicable), r.ChecksumSHA256,
		r.DeviceID, r.CaptureSessionID, r.Source, boolToInt(r.Conflict), r.Supersedes,
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert receipt %s: %w", r.ID, err)
	}
	return nil
}

// UpsertReceipt inserts or replaces a receipt row, used when merged remote
// state lands locally.
func (s *Store) UpsertReceipt(ctx context.Context, r *models.Receipt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO receipts (`+receiptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CapturedAt.Date(), r.CapturedAt.Format("2006-01-02T15:04:05"), r.Timezone,
		r.Filename, r.Amount.Amount.String(), r.Amount.Currency,
		r.Country, r.Region, r.Category, r.Notes, taxToDB(r.TaxApplicable), r.ChecksumSHA256,
		r.DeviceID, r.CaptureSessionID, r.Source, boolToInt(r.Conflict), r.Supersedes,
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert receipt %s: %w", r.ID, err)
	}
	return nil
}

// GetReceipt fetches one receipt by identifier.
func (s *Store) GetReceipt(ctx context.Context, id string) (*models.Receipt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	return r, err
}

// ReceiptsByDate returns all receipts captured on a calendar date, ordered
// by capture time.
func (s *Store) ReceiptsByDate(ctx context.Context, date string) ([]*models.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+receiptColumns+` FROM receipts
		WHERE capture_date = ? ORDER BY captured_at, id`, date)
	if err != nil {
		return nil, fmt.Errorf("query receipts for %s: %w", date, err)
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// UsedSuffixes extracts the filename suffixes already recorded for a date.
func (s *Store) UsedSuffixes(ctx context.Context, date string) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename FROM receipts WHERE capture_date = ?`, date)
	if err != nil {
		return nil, fmt.Errorf("query filenames for %s: %w", date, err)
	}
	defer rows.Close()

	suffixes := make(map[int]bool)
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, err
		}
		if n, ok := models.SuffixOf(filename); ok {
			suffixes[n] = true
		}
	}
	return suffixes, rows.Err()
}

// FilenameExists reports whether a filename is already taken locally.
func (s *Store) FilenameExists(ctx context.Context, filename string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM receipts WHERE filename = ?`, filename).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check filename %s: %w", filename, err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*models.Receipt, error) {
	var (
		r           models.Receipt
		captureDate string
		capturedAt  string
		amount      string
		currency    string
		tax         sql.NullInt64
		conflict    int
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&r.ID, &captureDate, &capturedAt, &r.Timezone, &r.Filename,
		&amount, &currency, &r.Country, &r.Region, &r.Category, &r.Notes,
		&tax, &r.ChecksumSHA256, &r.DeviceID, &r.CaptureSessionID, &r.Source,
		&conflict, &r.Supersedes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.CapturedAt, err = models.ParseLocalTime(capturedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt captured_at for %s: %w", r.ID, err)
	}
	r.Amount, err = models.NewMoneyFromString(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount for %s: %w", r.ID, err)
	}
	if tax.Valid {
		v := tax.Int64 != 0
		r.TaxApplicable = &v
	}
	r.Conflict = conflict != 0
	r.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at for %s: %w", r.ID, err)
	}
	r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt updated_at for %s: %w", r.ID, err)
	}
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func taxToDB(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}
