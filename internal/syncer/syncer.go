// Package syncer keeps a schedule block's status and its linked task's
// completion record mutually consistent across two independent stores.
//
// The block lives in the schedule store and the task plus its completion
// record in the tasks store, with no shared transaction between them. The
// protocol is a compensating-transaction saga: write the block status
// first, then mutate the completion side, and on failure write the old
// status back. When that compensating write also fails the two stores have
// genuinely drifted, which is surfaced as an InconsistencyError rather
// than swallowed, so operators can alert instead of retrying blindly.
package syncer

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"questlog/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors surfaced by status updates.
var (
	ErrNotFound      = errors.New("syncer: schedule block not found")
	ErrTaskNotFound  = errors.New("syncer: linked task not found")
	ErrInvalidStatus = errors.New("syncer: invalid block status")

	// ErrSyncInconsistent matches any InconsistencyError via errors.Is.
	ErrSyncInconsistent = errors.New("syncer: stores inconsistent")
)

// InconsistencyError reports that the completion-side mutation failed AND
// the compensating status write failed, leaving the schedule store claiming
// a status the tasks store does not reflect. Not safe to blindly retry.
type InconsistencyError struct {
	BlockID       string
	PrevStatus    string
	NewStatus     string
	ApplyErr      error // why the completion-side mutation failed
	CompensateErr error // why the status rollback failed
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("syncer: block %s left at status %q (wanted rollback to %q): completion side: %v; compensation: %v",
		e.BlockID, e.NewStatus, e.PrevStatus, e.ApplyErr, e.CompensateErr)
}

// Is lets errors.Is(err, ErrSyncInconsistent) match.
func (e *InconsistencyError) Is(target error) bool {
	return target == ErrSyncInconsistent
}

// Syncer applies schedule-block status updates with cross-store
// bookkeeping. Updates to the same block serialize on a striped mutex;
// unrelated blocks proceed concurrently.
type Syncer struct {
	sched *gorm.DB
	tasks *gorm.DB
	locks [32]sync.Mutex
}

// New creates a Syncer over the schedule and tasks stores.
func New(sched, tasks *gorm.DB) *Syncer {
	return &Syncer{sched: sched, tasks: tasks}
}

func (s *Syncer) lockFor(blockID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(blockID))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

// SetStatus transitions a schedule block to newStatus.
//
// Transitions among the five statuses are unrestricted at the block level.
// When the block links a task, crossing the completed boundary mutates the
// tasks store: entering completed creates the task's completion record
// (idempotent if one exists), leaving completed removes it. A completion-
// side failure rolls the block status back to its previous value; if the
// rollback itself fails the returned error matches ErrSyncInconsistent.
func (s *Syncer) SetStatus(blockID, newStatus string) (*models.ScheduleBlock, error) {
	if !models.ValidBlockStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	mu := s.lockFor(blockID)
	mu.Lock()
	defer mu.Unlock()

	var block models.ScheduleBlock
	if err := s.sched.Where("id = ?", blockID).First(&block).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, blockID)
		}
		return nil, fmt.Errorf("syncer: load block %s: %w", blockID, err)
	}

	prev := block.Status
	if prev == newStatus {
		return &block, nil
	}

	// Step 1: the schedule store commits first. A failure here leaves
	// both stores untouched.
	if err := s.writeStatus(blockID, newStatus); err != nil {
		return nil, fmt.Errorf("syncer: update block %s: %w", blockID, err)
	}
	block.Status = newStatus

	// Step 2: the completion side, only at the completed boundary and
	// only for blocks that link a task.
	var sideErr error
	switch {
	case block.TaskID == "":
	case newStatus == models.BlockCompleted:
		sideErr = s.recordCompletion(&block)
	case prev == models.BlockCompleted:
		sideErr = s.clearCompletion(block.TaskID)
	}
	if sideErr == nil {
		return &block, nil
	}

	// Step 3: compensate by restoring the previous status.
	if compErr := s.writeStatus(blockID, prev); compErr != nil {
		// Step 4: both writes failed. Surface the drift.
		return nil, &InconsistencyError{
			BlockID:       blockID,
			PrevStatus:    prev,
			NewStatus:     newStatus,
			ApplyErr:      sideErr,
			CompensateErr: compErr,
		}
	}
	block.Status = prev
	return nil, sideErr
}

// writeStatus persists a block status in the schedule store.
func (s *Syncer) writeStatus(blockID, status string) error {
	result := s.sched.Model(&models.ScheduleBlock{}).
		Where("id = ?", blockID).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("block %s vanished", blockID)
	}
	return nil
}

// recordCompletion creates the completion record for the block's task and
// marks the task completed. Idempotent: an existing record is left alone.
func (s *Syncer) recordCompletion(block *models.ScheduleBlock) error {
	return s.tasks.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.Where("id = ?", block.TaskID).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrTaskNotFound, block.TaskID)
			}
			return fmt.Errorf("load task %s: %w", block.TaskID, err)
		}

		var existing models.CompletionRecord
		err := tx.Where("task_id = ?", task.ID).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check completion record for %s: %w", task.ID, err)
		}

		main, grandparent, err := resolveLineage(tx, &task)
		if err != nil {
			return err
		}

		record := models.CompletionRecord{
			TaskID:      task.ID,
			TaskType:    task.Type,
			Title:       task.Title,
			Level:       task.Level,
			Comment:     completionComment(block),
			CompletedAt: time.Now(),
		}
		if main != nil {
			record.MainTaskID = main.ID
			record.MainTaskTitle = main.Title
		}
		if grandparent != nil {
			record.GrandparentID = grandparent.ID
			record.GrandparentName = grandparent.Title
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("create completion record for %s: %w", task.ID, err)
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).
			Update("is_completed", true).Error; err != nil {
			return fmt.Errorf("mark task %s completed: %w", task.ID, err)
		}
		return nil
	})
}

// clearCompletion removes the task's completion record and resets the
// completed flag. A task with no record is a no-op.
func (s *Syncer) clearCompletion(taskID string) error {
	return s.tasks.Transaction(func(tx *gorm.DB) error {
		var record models.CompletionRecord
		err := tx.Where("task_id = ?", taskID).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find completion record for %s: %w", taskID, err)
		}
		if err := tx.Delete(&record).Error; err != nil {
			return fmt.Errorf("delete completion record for %s: %w", taskID, err)
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", taskID).
			Update("is_completed", false).Error; err != nil {
			return fmt.Errorf("mark task %s not completed: %w", taskID, err)
		}
		return nil
	})
}

// resolveLineage walks the parent chain to the top-level ("main") task.
// For a grandchild task the top-level ancestor is also recorded as the
// grandparent.
func resolveLineage(tx *gorm.DB, task *models.Task) (main, grandparent *models.Task, err error) {
	current := task
	for current.ParentID != nil {
		var parent models.Task
		if err := tx.Where("id = ?", *current.ParentID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, fmt.Errorf("%w: ancestor %s of %s", ErrTaskNotFound, *current.ParentID, task.ID)
			}
			return nil, nil, fmt.Errorf("load ancestor %s: %w", *current.ParentID, err)
		}
		current = &parent
	}
	if current.ID == task.ID {
		return nil, nil, nil
	}
	main = current
	if task.Level == models.LevelGrandchild {
		grandparent = current
	}
	return main, grandparent, nil
}

func completionComment(block *models.ScheduleBlock) string {
	return fmt.Sprintf("completed via schedule block %s on %s %s-%s",
		block.ID, block.Date, block.StartTime, block.EndTime)
}
