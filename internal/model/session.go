package model

import "time"

// SessionType records how a scraping run was triggered.
type SessionType string

const (
	SessionManual    SessionType = "manual"
	SessionAutomatic SessionType = "automatic"
	SessionTest      SessionType = "test"
)

// SessionStatus is the run state of a scraping session. Transitions are
// running -> completed or running -> failed, never reversed.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// Session is the record of one end-to-end scraper run.
type Session struct {
	ID              int64         `json:"id"`
	UUID            string        `json:"uuid"`
	Type            SessionType   `json:"type"`
	Status          SessionStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	DurationSeconds float64       `json:"duration_seconds"`
	FinalStats      []byte        `json:"final_stats,omitempty"` // JSON blob, opaque to the store
	ErrorMessage    string        `json:"error_message,omitempty"`

	// Degraded marks an in-memory stand-in created while the store was
	// unavailable; it is never written back.
	Degraded bool `json:"-"`
}

// SessionStats holds running totals recomputed at startup by aggregating
// over completed sessions.
type SessionStats struct {
	TotalSessions int        `json:"total_sessions"`
	TotalLeads    int        `json:"total_leads"`
	LastRun       *time.Time `json:"last_run,omitempty"`
}
