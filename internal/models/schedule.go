package models

import "time"

// ScheduleBlock statuses.
const (
	BlockScheduled          = "scheduled"
	BlockInProgress         = "in_progress"
	BlockPartiallyCompleted = "partially_completed"
	BlockCompleted          = "completed"
	BlockCancelled          = "cancelled"
)

// BlockStatuses lists every valid schedule-block status. Transitions among
// them are unrestricted at the block level; only the completed boundary has
// cross-store side effects, handled by the syncer.
var BlockStatuses = []string{
	BlockScheduled,
	BlockInProgress,
	BlockPartiallyCompleted,
	BlockCompleted,
	BlockCancelled,
}

// ValidBlockStatus reports whether s is a known schedule-block status.
func ValidBlockStatus(s string) bool {
	for _, v := range BlockStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ScheduleBlock is a time-boxed calendar entry, optionally linked to a task
// that lives in a different store. TaskID is a plain string reference, not a
// foreign key: the tasks store is a separate database.
type ScheduleBlock struct {
	ID        string `gorm:"primaryKey;size:32"`
	Date      string `gorm:"size:10;not null;index"` // YYYY-MM-DD
	StartTime string `gorm:"size:5;not null"`        // HH:MM
	EndTime   string `gorm:"size:5;not null"`        // HH:MM
	Status    string `gorm:"size:24;default:scheduled;index"`
	TaskID    string `gorm:"size:32;index"`

	// Denormalized titles for display; the schedule store cannot join
	// against the tasks store.
	TaskTitle        string `gorm:"size:255"`
	ParentTitle      string `gorm:"size:255"`
	GrandparentTitle string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
