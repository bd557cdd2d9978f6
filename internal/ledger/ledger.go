// Package ledger is the sole legal write path for checkpoint progress.
//
// Every progress mutation flows through Apply, which clamps the candidate
// value so progress never decreases, appends one audit row per change, and
// flips the completion flag exactly when progress reaches 100. The three
// writes happen in a single transaction on the planner store: a failure at
// any point leaves the prior state intact.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"questlog/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sentinel errors surfaced by ledger operations.
var (
	ErrNotFound     = errors.New("ledger: checkpoint not found")
	ErrInvalidRange = errors.New("ledger: progress out of range")
	ErrStorage      = errors.New("ledger: storage failure")
)

// maxReasonLen bounds the change-reason text stored on a history row.
const maxReasonLen = 500

// Source attributes a progress change to the commit and reasoning that
// caused it. Both fields are optional.
type Source struct {
	CommitID string
	Reason   string
}

// ApplyResult reports what a single Apply call did.
type ApplyResult struct {
	CheckpointID string
	Previous     int
	Final        int
	Changed      bool // false when the clamp made the call a no-op
	Completed    bool // true when this call pushed progress to 100
}

// Apply records a candidate progress value for a checkpoint.
//
// The candidate is clamped to max(current, min(100, raw)) before any write,
// so progress is monotonically non-decreasing regardless of what the caller
// asked for. When the clamp leaves progress unchanged the call is a no-op:
// no history row, no state change, Changed=false.
//
// Otherwise the checkpoint update, the history insert and (at 100) the
// completion stamp commit or roll back together. The row is read under an
// update lock so concurrent Apply calls on the same checkpoint serialize;
// SQLite serializes writers regardless, the lock matters on MySQL.
func Apply(db *gorm.DB, checkpointID string, rawProgress int, src Source) (*ApplyResult, error) {
	if rawProgress < 0 || rawProgress > 100 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRange, rawProgress)
	}

	res := &ApplyResult{CheckpointID: checkpointID}

	err := db.Transaction(func(tx *gorm.DB) error {
		var cp models.Checkpoint
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", checkpointID).First(&cp).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("read checkpoint: %w", err)
		}

		final := rawProgress
		if final < cp.Progress {
			final = cp.Progress
		}
		res.Previous = cp.Progress
		res.Final = final

		if final == cp.Progress {
			return nil
		}

		updates := map[string]interface{}{
			"progress": final,
		}
		if final == 100 {
			now := time.Now()
			updates["is_completed"] = true
			updates["completed_at"] = now
			res.Completed = true
		}
		if err := tx.Model(&models.Checkpoint{}).
			Where("id = ?", checkpointID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update checkpoint: %w", err)
		}

		entry := models.ProgressHistoryEntry{
			CheckpointID:     checkpointID,
			PreviousProgress: cp.Progress,
			NewProgress:      final,
			ChangeReason:     truncate(src.Reason, maxReasonLen),
		}
		if src.CommitID != "" {
			entry.CommitID = &src.CommitID
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		res.Changed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, checkpointID)
		}
		return nil, fmt.Errorf("%w: apply %s: %v", ErrStorage, checkpointID, err)
	}
	return res, nil
}

// Progress returns the current progress of a checkpoint.
func Progress(db *gorm.DB, checkpointID string) (int, error) {
	var cp models.Checkpoint
	if err := db.Select("progress").Where("id = ?", checkpointID).First(&cp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, checkpointID)
		}
		return 0, fmt.Errorf("%w: read %s: %v", ErrStorage, checkpointID, err)
	}
	return cp.Progress, nil
}

// History returns the checkpoint's progress transitions in the order they
// were recorded.
func History(db *gorm.DB, checkpointID string) ([]models.ProgressHistoryEntry, error) {
	var entries []models.ProgressHistoryEntry
	if err := db.Where("checkpoint_id = ?", checkpointID).
		Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("%w: history %s: %v", ErrStorage, checkpointID, err)
	}
	return entries, nil
}

// ReplayProgress folds an ordered history into the progress it produces:
// start at 0, take each entry's NewProgress in turn. The result must equal
// the checkpoint's stored progress.
func ReplayProgress(entries []models.ProgressHistoryEntry) int {
	p := 0
	for _, e := range entries {
		p = e.NewProgress
	}
	return p
}

// truncate clips s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(string(runes)) > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}
