// Package dayindex reconciles two versions of a day manifest. The merge is
// a two-way last-writer-wins with conflict flagging: nothing is ever
// deleted, diverging entries are resolved by recency and marked, and the
// result is deterministically ordered.
package dayindex

import (
	"fjacquet/receiptvault/internal/models"
)

// Merge reconciles the local and remote versions of one day's manifest and
// returns a new index; neither input is mutated.
//
// Rules, per receipt identifier:
//   - present on one side only: kept unconditionally
//   - present on both with equal metadata: kept, preserving any conflict
//     flag either side already carries
//   - present on both with differing metadata: the entry with the strictly
//     later updated_at wins and its conflict flag is forced true; on an
//     exact updated_at tie the local side wins, also flagged
//
// The result is sorted by capture time, carries the max schema version of
// both inputs and the later last_updated. Merge is commutative up to the
// documented tie-break and idempotent: Merge(a, a) introduces no conflicts.
func Merge(local, remote *models.DayIndex) *models.DayIndex {
	merged := models.NewDayIndex(local.Date)
	merged.SchemaVersion = maxInt(local.SchemaVersion, remote.SchemaVersion)
	merged.LastUpdated = local.LastUpdated
	if remote.LastUpdated.After(merged.LastUpdated) {
		merged.LastUpdated = remote.LastUpdated
	}

	remoteByID := make(map[string]models.ReceiptIndexEntry, len(remote.Receipts))
	for _, entry := range remote.Receipts {
		remoteByID[entry.ReceiptID] = entry
	}

	seen := make(map[string]bool, len(local.Receipts))
	for _, localEntry := range local.Receipts {
		seen[localEntry.ReceiptID] = true

		remoteEntry, onBothSides := remoteByID[localEntry.ReceiptID]
		if !onBothSides {
			merged.Receipts = append(merged.Receipts, localEntry)
			continue
		}
		merged.Receipts = append(merged.Receipts, resolve(localEntry, remoteEntry))
	}

	// Remote-only entries are kept unconditionally; a merge never deletes.
	for _, remoteEntry := range remote.Receipts {
		if !seen[remoteEntry.ReceiptID] {
			merged.Receipts = append(merged.Receipts, remoteEntry)
		}
	}

	merged.Sort()
	return merged
}

// resolve picks the winner for a receipt present on both sides.
func resolve(local, remote models.ReceiptIndexEntry) models.ReceiptIndexEntry {
	if local.MetadataEquals(remote) {
		// Identical metadata: keep as-is, preserving an existing conflict
		// marker from either side.
		local.Conflict = local.Conflict || remote.Conflict
		return local
	}

	winner := local
	if remote.UpdatedAt.After(local.UpdatedAt) {
		winner = remote
	}
	// Divergence resolved by recency, not agreement: always flag it.
	winner.Conflict = true
	return winner
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
