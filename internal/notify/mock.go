package notify

import (
	"context"
	"sync"
)

// MockAdapter records every event it is asked to send. Safe for concurrent
// use in tests.
type MockAdapter struct {
	mu     sync.Mutex
	Events []Event
	Err    error // returned from Send when set
	closed bool
}

// NewMockAdapter creates an empty MockAdapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// Send records the event.
func (m *MockAdapter) Send(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return m.Err
}

// Close marks the adapter closed.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of the recorded events.
func (m *MockAdapter) Sent() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.Events))
	copy(out, m.Events)
	return out
}

// Closed reports whether Close was called.
func (m *MockAdapter) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
