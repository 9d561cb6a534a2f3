// Package store persists leads and scraping sessions.
package store

import (
	"context"
	"time"

	"github.com/sells-group/leadgen-mx/internal/model"
)

// Store defines the persistence interface for the scraping pipeline.
type Store interface {
	// Leads
	SaveLead(ctx context.Context, lead *model.Lead) error
	LeadExists(ctx context.Context, companyName, phone string, source model.Source) (bool, error)
	ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error)
	CountLeads(ctx context.Context) (int, error)

	// Sessions
	CreateSession(ctx context.Context, session *model.Session) error
	CloseSession(ctx context.Context, uuid string, status model.SessionStatus, completedAt time.Time, durationSeconds float64, finalStats []byte, errorMessage string) error
	GetSession(ctx context.Context, uuid string) (*model.Session, error)
	ListSessions(ctx context.Context, limit int) ([]model.Session, error)
	SessionStats(ctx context.Context) (*model.SessionStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
