package db

import (
	"fmt"

	"questlog/internal/models"
	"gorm.io/gorm"
)

// PlannerModels returns the GORM models that live in the planner store.
func PlannerModels() []interface{} {
	return []interface{}{
		&models.Quest{},
		&models.Milestone{},
		&models.Checkpoint{},
		&models.Commit{},
		&models.ProgressHistoryEntry{},
		&models.Assessment{},
	}
}

// ScheduleModels returns the GORM models that live in the schedule store.
func ScheduleModels() []interface{} {
	return []interface{}{
		&models.ScheduleBlock{},
	}
}

// TaskModels returns the GORM models that live in the tasks store.
func TaskModels() []interface{} {
	return []interface{}{
		&models.Task{},
		&models.CompletionRecord{},
	}
}

// AutoMigrate creates or updates the tables of all three stores.
func AutoMigrate(s *Stores) error {
	if err := s.Planner.AutoMigrate(PlannerModels()...); err != nil {
		return fmt.Errorf("db: migrate planner store: %w", err)
	}
	if err := s.Schedule.AutoMigrate(ScheduleModels()...); err != nil {
		return fmt.Errorf("db: migrate schedule store: %w", err)
	}
	if err := s.Tasks.AutoMigrate(TaskModels()...); err != nil {
		return fmt.Errorf("db: migrate tasks store: %w", err)
	}
	return nil
}

// Reset drops and recreates every table in all three stores.
func Reset(s *Stores) error {
	pairs := []struct {
		db     *gorm.DB
		models []interface{}
		name   string
	}{
		{s.Planner, PlannerModels(), "planner"},
		{s.Schedule, ScheduleModels(), "schedule"},
		{s.Tasks, TaskModels(), "tasks"},
	}
	for _, p := range pairs {
		if err := p.db.Migrator().DropTable(p.models...); err != nil {
			return fmt.Errorf("db: drop %s tables: %w", p.name, err)
		}
	}
	return AutoMigrate(s)
}
