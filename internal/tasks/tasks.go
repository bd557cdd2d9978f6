// Package tasks provides minimal task lifecycle operations on the tasks
// store. Completion state is owned by the syncer; nothing here writes
// IsCompleted or completion records.
package tasks

import (
	"errors"
	"fmt"

	"questlog/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound marks lookups of tasks that do not exist.
var ErrNotFound = errors.New("tasks: not found")

// CreateOpts holds parameters for creating a task.
type CreateOpts struct {
	Title    string
	Type     string // default "task"
	ParentID string // optional; level is derived from the parent
}

// Create creates a new task. Level is the parent's level plus one, capped
// at grandchild depth.
func Create(db *gorm.DB, opts CreateOpts) (*models.Task, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("tasks: title is required")
	}
	if opts.Type == "" {
		opts.Type = "task"
	}

	level := models.LevelMain
	if opts.ParentID != "" {
		parent, err := Get(db, opts.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Level >= models.LevelGrandchild {
			return nil, fmt.Errorf("tasks: parent %s is already at grandchild depth", opts.ParentID)
		}
		level = parent.Level + 1
	}

	id, err := models.NewID("tk")
	if err != nil {
		return nil, err
	}
	task := models.Task{
		ID:    id,
		Type:  opts.Type,
		Title: opts.Title,
		Level: level,
	}
	if opts.ParentID != "" {
		task.ParentID = &opts.ParentID
	}
	if err := db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("tasks: create: %w", err)
	}
	return &task, nil
}

// Get retrieves a task by ID.
func Get(db *gorm.DB, id string) (*models.Task, error) {
	var task models.Task
	if err := db.Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("tasks: get %s: %w", id, err)
	}
	return &task, nil
}

// List returns all tasks ordered by creation time.
func List(db *gorm.DB) ([]models.Task, error) {
	var out []models.Task
	if err := db.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("tasks: list: %w", err)
	}
	return out, nil
}

// CompletionRecordFor returns the task's completion record, or ErrNotFound
// when the task has none.
func CompletionRecordFor(db *gorm.DB, taskID string) (*models.CompletionRecord, error) {
	var record models.CompletionRecord
	if err := db.Where("task_id = ?", taskID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: completion record for %s", ErrNotFound, taskID)
		}
		return nil, fmt.Errorf("tasks: completion record for %s: %w", taskID, err)
	}
	return &record, nil
}
