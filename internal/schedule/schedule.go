// Package schedule provides schedule-block lifecycle operations on the
// schedule store. Status changes are not handled here: they route through
// the syncer, which owns the cross-store completion bookkeeping.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"questlog/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound marks lookups of blocks that do not exist.
var ErrNotFound = errors.New("schedule: block not found")

// BlockOpts holds parameters for creating a schedule block.
type BlockOpts struct {
	Date      string // YYYY-MM-DD
	StartTime string // HH:MM
	EndTime   string // HH:MM
	TaskID    string // optional link into the tasks store

	// Denormalized titles for display.
	TaskTitle        string
	ParentTitle      string
	GrandparentTitle string
}

// CreateBlock creates a new schedule block in status "scheduled".
func CreateBlock(db *gorm.DB, opts BlockOpts) (*models.ScheduleBlock, error) {
	if _, err := time.Parse("2006-01-02", opts.Date); err != nil {
		return nil, fmt.Errorf("schedule: invalid date %q: %w", opts.Date, err)
	}
	for _, v := range []string{opts.StartTime, opts.EndTime} {
		if _, err := time.Parse("15:04", v); err != nil {
			return nil, fmt.Errorf("schedule: invalid time %q: %w", v, err)
		}
	}
	id, err := models.NewID("sb")
	if err != nil {
		return nil, err
	}
	block := models.ScheduleBlock{
		ID:               id,
		Date:             opts.Date,
		StartTime:        opts.StartTime,
		EndTime:          opts.EndTime,
		Status:           models.BlockScheduled,
		TaskID:           opts.TaskID,
		TaskTitle:        opts.TaskTitle,
		ParentTitle:      opts.ParentTitle,
		GrandparentTitle: opts.GrandparentTitle,
	}
	if err := db.Create(&block).Error; err != nil {
		return nil, fmt.Errorf("schedule: create block: %w", err)
	}
	return &block, nil
}

// GetBlock retrieves a schedule block by ID.
func GetBlock(db *gorm.DB, id string) (*models.ScheduleBlock, error) {
	var block models.ScheduleBlock
	if err := db.Where("id = ?", id).First(&block).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("schedule: get block %s: %w", id, err)
	}
	return &block, nil
}

// ListBlocks returns blocks for a date, ordered by start time. An empty
// date lists everything.
func ListBlocks(db *gorm.DB, date string) ([]models.ScheduleBlock, error) {
	q := db.Model(&models.ScheduleBlock{})
	if date != "" {
		q = q.Where("date = ?", date)
	}
	var blocks []models.ScheduleBlock
	if err := q.Order("date ASC, start_time ASC").Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("schedule: list blocks: %w", err)
	}
	return blocks, nil
}

// UpdateTimes moves a block to a new time box without touching its status.
func UpdateTimes(db *gorm.DB, id, date, startTime, endTime string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("schedule: invalid date %q: %w", date, err)
	}
	for _, v := range []string{startTime, endTime} {
		if _, err := time.Parse("15:04", v); err != nil {
			return fmt.Errorf("schedule: invalid time %q: %w", v, err)
		}
	}
	result := db.Model(&models.ScheduleBlock{}).Where("id = ?", id).Updates(map[string]interface{}{
		"date":       date,
		"start_time": startTime,
		"end_time":   endTime,
	})
	if result.Error != nil {
		return fmt.Errorf("schedule: update block %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteBlock removes a block unconditionally. Deletion never cascades
// into the tasks store: a completion record created through this block
// stays put.
func DeleteBlock(db *gorm.DB, id string) error {
	result := db.Where("id = ?", id).Delete(&models.ScheduleBlock{})
	if result.Error != nil {
		return fmt.Errorf("schedule: delete block %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CompletedSince returns blocks whose status is completed and whose last
// update falls after the cutoff. Used by the daily digest.
func CompletedSince(db *gorm.DB, since time.Time) ([]models.ScheduleBlock, error) {
	var blocks []models.ScheduleBlock
	err := db.Where("status = ? AND updated_at >= ?", models.BlockCompleted, since).
		Order("updated_at ASC").Find(&blocks).Error
	if err != nil {
		return nil, fmt.Errorf("schedule: completed since %s: %w", since.Format(time.RFC3339), err)
	}
	return blocks, nil
}
