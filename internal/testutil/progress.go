package testutil

import (
	"slices"
	"sync"
)

// ProgressReport is a single OnProgress call recorded by MockProgressListener.
type ProgressReport struct {
	Completed int
	Total     int
	Active    []string
}

// MockProgressListener records progress callbacks. Safe for concurrent use.
type MockProgressListener struct {
	mu            sync.Mutex
	reports       []ProgressReport
	completeCalls int
	completeTotal int
}

// OnProgress records a progress report.
func (m *MockProgressListener) OnProgress(completed, total int, active []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, ProgressReport{
		Completed: completed,
		Total:     total,
		Active:    slices.Clone(active),
	})
}

// OnComplete records the completion callback.
func (m *MockProgressListener) OnComplete(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeCalls++
	m.completeTotal = total
}

// Reports returns a copy of the recorded reports.
func (m *MockProgressListener) Reports() []ProgressReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.reports)
}

// CompleteCalls returns how many times OnComplete was called and the last total.
func (m *MockProgressListener) CompleteCalls() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeCalls, m.completeTotal
}

// MockTracker records Start/Done calls made by the orchestrator.
type MockTracker struct {
	mu      sync.Mutex
	started []string
	done    []string
}

// Start records a started name.
func (m *MockTracker) Start(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, name)
}

// Done records a finished name.
func (m *MockTracker) Done(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = append(m.done, name)
}

// Started returns the started names in call order.
func (m *MockTracker) Started() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.started)
}

// Finished returns the finished names in call order.
func (m *MockTracker) Finished() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.done)
}
