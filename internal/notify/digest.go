package notify

import (
	"fmt"
	"strings"
	"time"

	"questlog/internal/db"
	"questlog/internal/models"
	"questlog/internal/planner"
	"questlog/internal/schedule"
)

// DailyReport holds computed activity for a 24-hour period.
type DailyReport struct {
	PeriodStart          time.Time
	PeriodEnd            time.Time
	CommitsSubmitted     int
	CheckpointsAdvanced  int
	CheckpointsCompleted int
	BlocksCompleted      int
}

// Empty reports whether the period had no activity at all.
func (r *DailyReport) Empty() bool {
	return r.CommitsSubmitted == 0 && r.CheckpointsAdvanced == 0 && r.BlocksCompleted == 0
}

// BuildDailyReport queries the stores for the last 24 hours of activity.
func BuildDailyReport(stores *db.Stores, now time.Time) (*DailyReport, error) {
	since := now.Add(-24 * time.Hour)
	report := &DailyReport{PeriodStart: since, PeriodEnd: now}

	commits, err := planner.CommitsSince(stores.Planner, since)
	if err != nil {
		return nil, fmt.Errorf("notify: daily report: %w", err)
	}
	report.CommitsSubmitted = len(commits)

	var entries []models.ProgressHistoryEntry
	if err := stores.Planner.Where("created_at >= ?", since).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("notify: daily report: history: %w", err)
	}
	report.CheckpointsAdvanced = len(entries)
	for _, e := range entries {
		if e.NewProgress == 100 {
			report.CheckpointsCompleted++
		}
	}

	blocks, err := schedule.CompletedSince(stores.Schedule, since)
	if err != nil {
		return nil, fmt.Errorf("notify: daily report: %w", err)
	}
	report.BlocksCompleted = len(blocks)

	return report, nil
}

// DigestEvent formats a daily report as a notification. Returns nil when
// the period had no activity.
func DigestEvent(report *DailyReport) *Event {
	if report.Empty() {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Activity for %s to %s\n",
		report.PeriodStart.Format("Jan 2 15:04"),
		report.PeriodEnd.Format("Jan 2 15:04"))
	fmt.Fprintf(&b, "Commits submitted: %d\n", report.CommitsSubmitted)
	fmt.Fprintf(&b, "Checkpoints advanced: %d (completed: %d)\n",
		report.CheckpointsAdvanced, report.CheckpointsCompleted)
	fmt.Fprintf(&b, "Schedule blocks completed: %d", report.BlocksCompleted)

	return &Event{
		Type:     EventDailyDigest,
		Title:    "Questlog daily digest",
		Body:     b.String(),
		Severity: "info",
	}
}
