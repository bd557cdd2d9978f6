package models

import "time"

// Task hierarchy levels.
const (
	LevelMain       = 0
	LevelChild      = 1
	LevelGrandchild = 2
)

// Task is a unit of planned work. Tasks form a hierarchy at most three
// levels deep: main task, child, grandchild. A task's completed state is
// defined exactly by the presence of its CompletionRecord; IsCompleted is
// kept in step with that record by the syncer.
type Task struct {
	ID          string  `gorm:"primaryKey;size:32"`
	Type        string  `gorm:"size:16;default:task"`
	Title       string  `gorm:"not null"`
	Level       int     `gorm:"default:0"`
	ParentID    *string `gorm:"size:32;index"`
	IsCompleted bool    `gorm:"default:false;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Parent   *Task  `gorm:"foreignKey:ParentID"`
	Children []Task `gorm:"foreignKey:ParentID"`
}

// CompletionRecord is the audit entry representing "this task is done".
// At most one record exists per task at a time; deleting it un-completes
// the task.
type CompletionRecord struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	TaskID          string `gorm:"size:32;not null;uniqueIndex"`
	TaskType        string `gorm:"size:16"`
	Title           string `gorm:"not null"`
	Level           int    `gorm:"default:0"`
	MainTaskID      string `gorm:"size:32;index"`
	MainTaskTitle   string `gorm:"size:255"`
	GrandparentID   string `gorm:"size:32"`
	GrandparentName string `gorm:"size:255"`
	Comment         string `gorm:"type:text"`
	CompletedAt     time.Time
}
