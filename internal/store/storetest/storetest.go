// Package storetest provides an in-memory Store implementation for tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/store"
)

// Fake is an in-memory store.Store. The zero value is ready to use.
// Error fields, when set, are returned by the corresponding methods so
// tests can exercise failure paths.
type Fake struct {
	mu       sync.Mutex
	leads    []model.Lead
	sessions map[string]*model.Session
	nextID   int64

	SaveLeadErr      error
	LeadExistsErr    error
	CreateSessionErr error
	CloseSessionErr  error
}

var _ store.Store = (*Fake)(nil)

// New returns an empty fake store.
func New() *Fake {
	return &Fake{sessions: make(map[string]*model.Session)}
}

func (f *Fake) SaveLead(_ context.Context, lead *model.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveLeadErr != nil {
		return f.SaveLeadErr
	}
	for _, existing := range f.leads {
		if existing.CompanyName == lead.CompanyName && existing.Phone == lead.Phone && existing.Source == lead.Source {
			return store.ErrDuplicateLead
		}
	}
	f.nextID++
	lead.ID = f.nextID
	lead.CreatedAt = time.Now()
	lead.UpdatedAt = lead.CreatedAt
	f.leads = append(f.leads, *lead)
	return nil
}

func (f *Fake) LeadExists(_ context.Context, companyName, phone string, source model.Source) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LeadExistsErr != nil {
		return false, f.LeadExistsErr
	}
	for _, lead := range f.leads {
		if lead.CompanyName == companyName && lead.Phone == phone && lead.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fake) ListLeads(_ context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Lead
	for _, lead := range f.leads {
		if filter.Source != "" && lead.Source != filter.Source {
			continue
		}
		if filter.SessionID != "" && lead.SessionID != filter.SessionID {
			continue
		}
		out = append(out, lead)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *Fake) CountLeads(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.leads), nil
}

func (f *Fake) CreateSession(_ context.Context, session *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateSessionErr != nil {
		return f.CreateSessionErr
	}
	f.nextID++
	session.ID = f.nextID
	clone := *session
	f.sessions[session.UUID] = &clone
	return nil
}

func (f *Fake) CloseSession(_ context.Context, uuid string, status model.SessionStatus, completedAt time.Time, durationSeconds float64, finalStats []byte, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CloseSessionErr != nil {
		return f.CloseSessionErr
	}
	if !status.Terminal() {
		return eris.Errorf("storetest: non-terminal close status %q", status)
	}
	session, ok := f.sessions[uuid]
	if !ok || session.Status != model.SessionRunning {
		return store.ErrSessionNotRunning
	}
	session.Status = status
	session.CompletedAt = &completedAt
	session.DurationSeconds = durationSeconds
	session.FinalStats = finalStats
	session.ErrorMessage = errorMessage
	return nil
}

func (f *Fake) GetSession(_ context.Context, uuid string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[uuid]
	if !ok {
		return nil, eris.Errorf("storetest: session %s not found", uuid)
	}
	clone := *session
	return &clone, nil
}

func (f *Fake) ListSessions(_ context.Context, limit int) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Session
	for _, session := range f.sessions {
		out = append(out, *session)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *Fake) SessionStats(_ context.Context) (*model.SessionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &model.SessionStats{}
	for _, session := range f.sessions {
		if session.Status != model.SessionCompleted {
			continue
		}
		stats.TotalSessions++
		if session.CompletedAt != nil && (stats.LastRun == nil || session.CompletedAt.After(*stats.LastRun)) {
			stats.LastRun = session.CompletedAt
		}
	}
	stats.TotalLeads = len(f.leads)
	return stats, nil
}

// Leads returns a snapshot of all saved leads.
func (f *Fake) Leads() []model.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Lead, len(f.leads))
	copy(out, f.leads)
	return out
}

// Session returns the stored session by uuid, or nil.
func (f *Fake) Session(uuid string) *model.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[uuid]; ok {
		clone := *s
		return &clone
	}
	return nil
}

func (f *Fake) Migrate(context.Context) error { return nil }
func (f *Fake) Ping(context.Context) error    { return nil }
func (f *Fake) Close() error                  { return nil }
