package models

import "time"

// Quest is a top-level goal container for milestones.
type Quest struct {
	ID          string `gorm:"primaryKey;size:32"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:16;default:active;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Milestones []Milestone `gorm:"foreignKey:QuestID"`
}

// Milestone is a goal within a quest that groups checkpoints.
// Status is one of: current, next, future, completed.
type Milestone struct {
	ID          string `gorm:"primaryKey;size:32"`
	QuestID     string `gorm:"size:32;not null;index"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:16;default:future;index"`
	Ordinal     int    `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Quest       *Quest       `gorm:"foreignKey:QuestID"`
	Checkpoints []Checkpoint `gorm:"foreignKey:MilestoneID"`
}

// Checkpoint is the smallest trackable unit of progress within a milestone.
// Progress is only ever written through the ledger, which guarantees it
// never decreases and that IsCompleted == (Progress == 100).
type Checkpoint struct {
	ID          string `gorm:"primaryKey;size:32"`
	MilestoneID string `gorm:"size:32;not null;index"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Progress    int    `gorm:"default:0"`
	IsCompleted bool   `gorm:"default:false;index"`
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Milestone *Milestone            `gorm:"foreignKey:MilestoneID"`
	History   []ProgressHistoryEntry `gorm:"foreignKey:CheckpointID"`
}

// Commit is a user's free-text daily progress submission. Date and quest
// linkage are immutable after creation; only content and attachments may
// be updated.
type Commit struct {
	ID          string  `gorm:"primaryKey;size:32"`
	QuestID     string  `gorm:"size:32;not null;index"`
	MilestoneID *string `gorm:"size:32;index"`
	CommitDate  string  `gorm:"size:10;not null;index"` // YYYY-MM-DD
	Content     string  `gorm:"type:text;not null"`
	Attachments string  `gorm:"type:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Quest *Quest `gorm:"foreignKey:QuestID"`
}

// ProgressHistoryEntry records one progress transition for a checkpoint.
// Rows are append-only: never updated, never deleted. Replaying NewProgress
// in creation order reconstructs the checkpoint's current progress.
type ProgressHistoryEntry struct {
	ID               uint    `gorm:"primaryKey;autoIncrement"`
	CheckpointID     string  `gorm:"size:32;not null;index"`
	CommitID         *string `gorm:"size:32;index"`
	PreviousProgress int
	NewProgress      int
	ChangeReason     string `gorm:"type:text"`
	CreatedAt        time.Time

	Checkpoint *Checkpoint `gorm:"foreignKey:CheckpointID"`
}

// Assessment stores the external service's raw suggestion for one
// checkpoint given one commit, verbatim and unclamped, for audit.
type Assessment struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	CommitID         string `gorm:"size:32;not null;index"`
	CheckpointID     string `gorm:"size:32;not null;index"`
	AssessedProgress int
	Reasoning        string   `gorm:"type:text;not null"`
	Confidence       *float64 // 0..1 when the service reports one
	Model            string   `gorm:"size:64"`
	CreatedAt        time.Time
}
