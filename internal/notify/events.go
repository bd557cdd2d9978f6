package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"questlog/internal/db"
	"questlog/internal/ledger"
	"questlog/internal/syncer"
	"github.com/robfig/cron/v3"
)

// CheckpointCompletedEvent formats the moment a checkpoint reaches 100.
func CheckpointCompletedEvent(res ledger.ApplyResult) Event {
	return Event{
		Type:     EventCheckpointCompleted,
		Title:    "Checkpoint completed",
		Body:     fmt.Sprintf("Checkpoint %s reached 100%% (was %d%%).", res.CheckpointID, res.Previous),
		Severity: "success",
		Fields: []Field{
			{Name: "Checkpoint", Value: res.CheckpointID},
		},
	}
}

// SyncInconsistentEvent formats a cross-store drift alert. This is the one
// event whose loss actually hurts: it is the operator's only signal that
// the schedule and tasks stores disagree.
func SyncInconsistentEvent(incErr *syncer.InconsistencyError) Event {
	return Event{
		Type:     EventSyncInconsistent,
		Title:    "Schedule/tasks stores inconsistent",
		Body:     incErr.Error(),
		Severity: "error",
		Fields: []Field{
			{Name: "Block", Value: incErr.BlockID},
			{Name: "Stuck at", Value: incErr.NewStatus},
			{Name: "Wanted", Value: incErr.PrevStatus},
		},
	}
}

// StartDigestCron schedules the daily digest on a 5-field cron expression
// and returns the running scheduler. The caller stops it on shutdown.
func StartDigestCron(expr string, stores *db.Stores, notifier *Notifier) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		report, err := BuildDailyReport(stores, time.Now())
		if err != nil {
			log.Printf("notify: build daily digest: %v", err)
			return
		}
		ev := DigestEvent(report)
		if ev == nil {
			return
		}
		notifier.Send(context.Background(), *ev)
	})
	if err != nil {
		return nil, fmt.Errorf("notify: digest cron %q: %w", expr, err)
	}
	c.Start()
	return c, nil
}
