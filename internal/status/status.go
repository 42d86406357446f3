package status

import (
	"sync"
	"time"
)

// RunStatus is the coarse application state.
type RunStatus string

const (
	Idle    RunStatus = "idle"
	Running RunStatus = "running"
	Error   RunStatus = "error"
	Stopped RunStatus = "stopped"
)

// String returns the human label shown by the CLI.
func (s RunStatus) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running…"
	case Error:
		return "Error"
	case Stopped:
		return "Stopped"
	default:
		return string(s)
	}
}

// Snapshot is an immutable copy of the store's state. Pointer fields are
// freshly allocated on every Get.
type Snapshot struct {
	Status            RunStatus  `json:"status"`
	LastRunAt         *time.Time `json:"last_run_at,omitempty"`
	LastResultPreview *string    `json:"last_result_preview,omitempty"`
	ErrorCount        int        `json:"error_count"`
	SuccessCount      int        `json:"success_count"`
	LastError         string     `json:"last_error,omitempty"`
	LastRunID         string     `json:"last_run_id,omitempty"`
}

// Store is the single source of truth for application status.
// Every method is safe for concurrent use and none of them fail.
type Store struct {
	mu           sync.RWMutex
	status       RunStatus
	lastRunAt    time.Time
	hasRun       bool
	preview      string
	hasPreview   bool
	errorCount   int
	successCount int
	lastError    string
	lastRunID    string
}

// NewStore returns a store in the idle state with no recorded runs.
func NewStore() *Store {
	return &Store{status: Idle}
}

// Get returns a consistent copy of the current state.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Status:       s.status,
		ErrorCount:   s.errorCount,
		SuccessCount: s.successCount,
		LastError:    s.lastError,
		LastRunID:    s.lastRunID,
	}
	if s.hasRun {
		at := s.lastRunAt
		snap.LastRunAt = &at
	}
	if s.hasPreview {
		preview := s.preview
		snap.LastResultPreview = &preview
	}
	return snap
}

// Set replaces the status without touching counters.
func (s *Store) Set(status RunStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// MarkRunning sets the running status and remembers the run identifier.
func (s *Store) MarkRunning(runID string) {
	s.mu.Lock()
	s.status = Running
	s.lastRunID = runID
	s.mu.Unlock()
}

// RecordSuccess stores the preview, the completion time, and returns to idle.
func (s *Store) RecordSuccess(preview string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Idle
	s.preview = preview
	s.hasPreview = true
	s.lastRunAt = at
	s.hasRun = true
	s.successCount++
}

// RecordFailure increments the error count and enters the error status.
// The previous preview is kept.
func (s *Store) RecordFailure(err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Error
	s.errorCount++
	s.lastRunAt = at
	s.hasRun = true
	if err != nil {
		s.lastError = err.Error()
	}
}
