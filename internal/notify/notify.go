// Package notify pushes Questlog events to chat platforms (Slack, Discord).
//
// Delivery is outbound-only and best-effort everywhere except the
// sync-inconsistency alert, which exists precisely so that a cross-store
// drift is seen by a human; failures to deliver it are still logged loudly
// rather than returned, because the caller already holds a more important
// error.
package notify

import (
	"context"
	"log"
)

// Event types.
const (
	EventCheckpointCompleted = "checkpoint_completed"
	EventSyncInconsistent    = "sync_inconsistent"
	EventDailyDigest         = "daily_digest"
)

// Event is a formatted notification.
type Event struct {
	Type     string
	Title    string
	Body     string
	Severity string // "info", "success", "error"
	Fields   []Field
}

// Field is a key-value pair displayed alongside the event.
type Field struct {
	Name  string
	Value string
}

// Adapter is the interface platform-specific implementations satisfy.
type Adapter interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// Notifier fans an event out to every configured adapter.
type Notifier struct {
	adapters []Adapter
}

// New creates a Notifier over the given adapters. Zero adapters is fine;
// Send becomes a no-op.
func New(adapters ...Adapter) *Notifier {
	return &Notifier{adapters: adapters}
}

// Send delivers the event to all adapters. Best-effort: delivery errors
// are logged, not returned.
func (n *Notifier) Send(ctx context.Context, ev Event) {
	for _, a := range n.adapters {
		if err := a.Send(ctx, ev); err != nil {
			log.Printf("notify: send %s event: %v", ev.Type, err)
		}
	}
}

// Close shuts down all adapters.
func (n *Notifier) Close() {
	for _, a := range n.adapters {
		if err := a.Close(); err != nil {
			log.Printf("notify: close adapter: %v", err)
		}
	}
}

// severityColor maps a severity to a sidebar color hint.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return "#36a64f"
	case "error":
		return "#d00000"
	default:
		return "#439fe0"
	}
}
