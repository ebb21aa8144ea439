// Package allocator computes the next collision-free receipt filename for a
// date. It scans up to five independent sources for suffixes already in use
// and picks max+1. The scan is advisory: sources may be stale or disagree,
// so callers must re-invoke allocation when the subsequent write collides.
package allocator

import (
	"context"
	"fmt"
	"os"

	"fjacquet/receiptvault/internal/logging"
	"fjacquet/receiptvault/internal/models"
	"fjacquet/receiptvault/internal/pathutils"
	"fjacquet/receiptvault/internal/storage"
	"fjacquet/receiptvault/internal/store"
)

// SourceError records a suffix source that could not be consulted.
// Allocation proceeds on partial information; the caller decides whether to
// surface these for diagnostics.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("suffix source %s: %v", e.Source, e.Err)
}

// Allocator gathers used suffixes per date. The backend is optional; when
// nil only local sources are consulted (offline capture).
type Allocator struct {
	store   *store.Store
	backend storage.Backend
	dataDir string
	logger  logging.Logger
}

// New creates an allocator over the local store, the on-disk data directory
// and an optional remote backend.
func New(st *store.Store, backend storage.Backend, dataDir string, logger logging.Logger) *Allocator {
	return &Allocator{store: st, backend: backend, dataDir: dataDir, logger: logger}
}

// NextFilename returns the next free filename for a date, along with any
// source failures encountered. Only a malformed date fails the call itself.
func (a *Allocator) NextFilename(ctx context.Context, date string) (string, []SourceError, error) {
	if _, err := pathutils.ReceiptDir(date); err != nil {
		return "", nil, err
	}

	used, sourceErrs := a.usedSuffixes(ctx, date)

	next := 1
	for suffix := range used {
		if suffix >= next {
			next = suffix + 1
		}
	}

	filename := models.BuildReceiptFilename(date, next)
	a.logger.Debug("allocated receipt filename",
		logging.F(logging.FieldDate, date),
		logging.F(logging.FieldFilename, filename),
		logging.F(logging.FieldCount, len(used)))
	return filename, sourceErrs, nil
}

// usedSuffixes aggregates every reachable source. Each source failure is
// logged and collected but never aborts the scan.
func (a *Allocator) usedSuffixes(ctx context.Context, date string) (map[int]bool, []SourceError) {
	used := make(map[int]bool)
	var sourceErrs []SourceError

	collect := func(source string, suffixes map[int]bool, err error) {
		if err != nil {
			a.logger.Warn("suffix source unavailable",
				logging.F(logging.FieldSource, source),
				logging.F(logging.FieldDate, date),
				logging.F("error", err.Error()))
			sourceErrs = append(sourceErrs, SourceError{Source: source, Err: err})
			return
		}
		for suffix := range suffixes {
			used[suffix] = true
		}
	}

	suffixes, err := a.localManifestSuffixes(date)
	collect("local_manifest", suffixes, err)

	suffixes, err = a.store.UsedSuffixes(ctx, date)
	collect("local_db", suffixes, err)

	suffixes, err = a.localFolderSuffixes(date)
	collect("local_folder", suffixes, err)

	if a.backend != nil {
		suffixes, err = a.remoteManifestSuffixes(ctx, date)
		collect("remote_manifest", suffixes, err)

		suffixes, err = a.remoteListingSuffixes(ctx, date)
		collect("remote_listing", suffixes, err)
	}

	return used, sourceErrs
}

// localManifestSuffixes reads the day manifest mirrored on local disk.
// A missing manifest means no receipts yet, not an error.
func (a *Allocator) localManifestSuffixes(date string) (map[int]bool, error) {
	logical, err := pathutils.DayIndexPath(date)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(pathutils.OSPath(a.dataDir, logical))
	if os.IsNotExist(err) {
		return map[int]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	index, err := models.DecodeDayIndex(data)
	if err != nil {
		return nil, err
	}
	return index.UsedSuffixes(), nil
}

// localFolderSuffixes is the defensive scan of the on-disk date folder for
// image files not yet indexed anywhere.
func (a *Allocator) localFolderSuffixes(date string) (map[int]bool, error) {
	logical, err := pathutils.ReceiptDir(date)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(pathutils.OSPath(a.dataDir, logical))
	if os.IsNotExist(err) {
		return map[int]bool{}, nil
	}
	if err != nil {
		return nil, err
	}

	suffixes := make(map[int]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if n, ok := models.SuffixOf(entry.Name()); ok {
			suffixes[n] = true
		}
	}
	return suffixes, nil
}

// remoteManifestSuffixes reads the remote day manifest, best effort.
func (a *Allocator) remoteManifestSuffixes(ctx context.Context, date string) (map[int]bool, error) {
	logical, err := pathutils.DayIndexPath(date)
	if err != nil {
		return nil, err
	}
	result, err := a.backend.ReadTextFile(ctx, logical)
	if err != nil {
		return nil, err
	}
	if !result.Found {
		return map[int]bool{}, nil
	}
	index, err := models.DecodeDayIndex([]byte(result.Text))
	if err != nil {
		return nil, err
	}
	return index.UsedSuffixes(), nil
}

// remoteListingSuffixes lists the remote date folder, best effort.
func (a *Allocator) remoteListingSuffixes(ctx context.Context, date string) (map[int]bool, error) {
	logical, err := pathutils.ReceiptDir(date)
	if err != nil {
		return nil, err
	}
	names, err := a.backend.ListFiles(ctx, logical)
	if err != nil {
		return nil, err
	}
	suffixes := make(map[int]bool)
	for _, name := range names {
		if n, ok := models.SuffixOf(name); ok {
			suffixes[n] = true
		}
	}
	return suffixes, nil
}
