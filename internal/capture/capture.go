// Package capture turns a photographed receipt into a durable local record:
// a collision-free filename, a checksummed image in the date tree, a day
// manifest entry and the queue items that will push everything remote.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"fjacquet/receiptvault/internal/allocator"
	"fjacquet/receiptvault/internal/hashutils"
	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/models"
	"fjacquet/receiptvault/internal/pathutils"
	"fjacquet/receiptvault/internal/storageerror"
	"fjacquet/receiptvault/internal/store"
)

// FilenameAllocator yields the next free receipt filename for a date.
type FilenameAllocator interface {
	NextFilename(ctx context.Context, date string) (string, []allocator.SourceError, error)
}

// Categorizer assigns a spending category from free-form receipt text.
// Implementations must be safe to skip: a categorization failure never
// fails a capture.
type Categorizer interface {
	Categorize(ctx context.Context, text string) (string, error)
}

// Request carries everything the user supplies for one receipt.
type Request struct {
	ImagePath     string
	CapturedAt    models.LocalTime
	Timezone      string
	Amount        models.Money
	Country       string
	Region        string
	Category      string
	Notes         string
	TaxApplicable *bool
	Source        string
	SessionID     string
}

// Service performs captures against the local store and data directory.
type Service struct {
	store       *store.Store
	allocator   FilenameAllocator
	categorizer Categorizer
	dataDir     string
	deviceID    string
	maxAttempts int
	logger      logging.Logger
	now         func() time.Time
}

// New wires a capture service. The categorizer may be nil; maxAttempts
// bounds the allocate-save-collide loop.
func New(st *store.Store, alloc FilenameAllocator, categorizer Categorizer,
	dataDir, deviceID string, maxAttempts int, logger logging.Logger) *Service {
	return &Service{
		store:       st,
		allocator:   alloc,
		categorizer: categorizer,
		dataDir:     dataDir,
		deviceID:    deviceID,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Capture records one receipt. On success the image sits in the local date
// tree under its allocated name, the record and day manifest are written and
// the upload actions are queued.
func (s *Service) Capture(ctx context.Context, req Request) (*models.Receipt, error) {
	image, err := os.ReadFile(req.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("read capture image: %w", err)
	}
	checksum := hashutils.SHA256Bytes(image)
	date := req.CapturedAt.Date()

	category := req.Category
	if category == "" && s.categorizer != nil {
		category = s.categorize(ctx, req)
	}

	receipt, err := s.allocateAndSave(ctx, req, date, category, checksum)
	if err != nil {
		return nil, err
	}

	if err := s.writeImage(date, receipt.Filename, image); err != nil {
		return nil, err
	}
	if err := s.updateDayIndex(receipt, date); err != nil {
		return nil, err
	}

	if _, err := s.store.Enqueue(ctx, receipt.ID, models.ActionUploadImage); err != nil {
		return nil, err
	}
	if _, err := s.store.Enqueue(ctx, receipt.ID, models.ActionUploadIndex); err != nil {
		return nil, err
	}

	s.logger.Info("receipt captured",
		logging.F(logging.FieldReceiptID, receipt.ID),
		logging.F(logging.FieldFilename, receipt.Filename),
		logging.F(logging.FieldDate, date))
	return receipt, nil
}

// categorize is best effort. Failures are logged and leave the category
// empty for the user to fill later.
func (s *Service) categorize(ctx context.Context, req Request) string {
	text := req.Notes
	if text == "" {
		text = req.Amount.String()
	}
	category, err := s.categorizer.Categorize(ctx, text)
	if err != nil {
		s.logger.Warn("categorization failed",
			logging.F("error", err.Error()))
		return ""
	}
	return category
}

// allocateAndSave runs the bounded allocate-save-collide loop. A filename
// that turns out to be taken by the time we write is reallocated with the
// fresh observation included.
func (s *Service) allocateAndSave(ctx context.Context, req Request, date, category, checksum string) (*models.Receipt, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		filename, sourceErrs, err := s.allocator.NextFilename(ctx, date)
		if err != nil {
			return nil, err
		}
		if len(sourceErrs) > 0 {
			s.logger.Warn("allocation ran on partial information",
				logging.F(logging.FieldDate, date),
				logging.F(logging.FieldCount, len(sourceErrs)))
		}

		taken, err := s.filenameTaken(ctx, date, filename)
		if err != nil {
			return nil, err
		}
		if taken {
			s.logger.Warn("allocated filename already taken",
				logging.F(logging.FieldFilename, filename),
				logging.F(logging.FieldAttempt, attempt))
			continue
		}

		now := s.now()
		receipt := &models.Receipt{
			ID:               uuid.NewString(),
			CapturedAt:       req.CapturedAt,
			Timezone:         req.Timezone,
			Filename:         filename,
			Amount:           req.Amount,
			Country:          req.Country,
			Region:           req.Region,
			Category:         category,
			Notes:            req.Notes,
			TaxApplicable:    req.TaxApplicable,
			ChecksumSHA256:   checksum,
			DeviceID:         s.deviceID,
			CaptureSessionID: sessionID,
			Source:           req.Source,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.store.SaveReceipt(ctx, receipt); err != nil {
			// A concurrent writer may have claimed the filename between
			// the check and the insert.
			taken, checkErr := s.store.FilenameExists(ctx, filename)
			if checkErr == nil && taken {
				s.logger.Warn("lost filename race, reallocating",
					logging.F(logging.FieldFilename, filename),
					logging.F(logging.FieldAttempt, attempt))
				continue
			}
			return nil, err
		}
		return receipt, nil
	}
	return nil, &storageerror.AllocationExhaustedError{Date: date, Attempts: s.maxAttempts}
}

// filenameTaken checks the two authorities a save must not contradict: the
// local database and the on-disk date folder.
func (s *Service) filenameTaken(ctx context.Context, date, filename string) (bool, error) {
	exists, err := s.store.FilenameExists(ctx, filename)
	if err != nil || exists {
		return exists, err
	}
	logical, err := pathutils.ReceiptPath(date, filename)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(pathutils.OSPath(s.dataDir, logical)); err == nil {
		return true, nil
	}
	return false, nil
}

func (s *Service) writeImage(date, filename string, image []byte) error {
	logical, err := pathutils.ReceiptPath(date, filename)
	if err != nil {
		return err
	}
	osPath := pathutils.OSPath(s.dataDir, logical)
	if err := os.MkdirAll(filepath.Dir(osPath), 0o755); err != nil {
		return fmt.Errorf("create local date folder: %w", err)
	}
	if err := os.WriteFile(osPath, image, 0o644); err != nil {
		return fmt.Errorf("write captured image: %w", err)
	}
	return nil
}

// updateDayIndex upserts the receipt into the local day manifest, creating
// it on first capture of the day.
func (s *Service) updateDayIndex(receipt *models.Receipt, date string) error {
	logical, err := pathutils.DayIndexPath(date)
	if err != nil {
		return err
	}
	osPath := pathutils.OSPath(s.dataDir, logical)

	index := models.NewDayIndex(date)
	if data, err := os.ReadFile(osPath); err == nil {
		index, err = models.DecodeDayIndex(data)
		if err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	index.Upsert(receipt.IndexEntry(), receipt.UpdatedAt)
	encoded, err := models.EncodeDayIndex(index)
	if err != nil {
		return err
	}
	if err := os.WriteFile(osPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write local day index: %w", err)
	}
	return nil
}
