// Package session tracks the lifecycle of scraper runs: a session opens
// when a run starts, records its outcome exactly once, and leaves an
// aggregate trail the status endpoint reports.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-mx/internal/cache"
	"github.com/sells-group/leadgen-mx/internal/metrics"
	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/resilience"
	"github.com/sells-group/leadgen-mx/internal/store"
)

// snapshotKey holds the latest session summary in the cache for quick
// status reads without a store round trip.
const snapshotKey = "session:latest"

const snapshotTTL = time.Hour

// Tracker opens and closes scraping sessions against the store, with a
// best-effort cache snapshot of the latest result.
type Tracker struct {
	store   store.Store
	cache   cache.Cache
	metrics metrics.Recorder
}

// NewTracker builds a tracker. cache may be nil; metrics may be nil.
func NewTracker(s store.Store, c cache.Cache, m metrics.Recorder) *Tracker {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Tracker{store: s, cache: c, metrics: m}
}

// Open creates a running session. When the store write fails the run
// proceeds anyway with an in-memory stand-in marked Degraded, so a
// database outage degrades persistence without blocking scraping.
func (t *Tracker) Open(ctx context.Context, sessionType model.SessionType) *model.Session {
	session := &model.Session{
		UUID:      uuid.New().String(),
		Type:      sessionType,
		Status:    model.SessionRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := t.store.CreateSession(ctx, session); err != nil {
		zap.L().Warn("session: create failed, continuing degraded",
			zap.String("uuid", session.UUID), zap.Error(err))
		session.Degraded = true
	}
	return session
}

// Close finalizes the session exactly once. finalStats is marshaled to
// JSON and stored alongside the terminal status; a second Close on the
// same session returns store.ErrSessionNotRunning.
func (t *Tracker) Close(ctx context.Context, session *model.Session, status model.SessionStatus, finalStats any, errorMessage string) error {
	if !status.Terminal() {
		return eris.Errorf("session: close with non-terminal status %q", status)
	}

	completedAt := time.Now().UTC()
	duration := completedAt.Sub(session.StartedAt)

	statsJSON, err := json.Marshal(finalStats)
	if err != nil {
		return eris.Wrap(err, "session: marshal final stats")
	}

	session.Status = status
	session.CompletedAt = &completedAt
	session.DurationSeconds = duration.Seconds()
	session.FinalStats = statsJSON
	session.ErrorMessage = errorMessage

	t.metrics.RecordSession(string(status), duration)
	t.snapshot(ctx, session)

	if session.Degraded {
		zap.L().Warn("session: degraded session not persisted",
			zap.String("uuid", session.UUID), zap.String("status", string(status)))
		return nil
	}

	// The close is the one write whose loss silently orphans a session as
	// "running", so transient store failures get a few retries.
	retryCfg := resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		OnRetry:        resilience.RetryLogger("store", "close_session"),
	}
	err = resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		return t.store.CloseSession(ctx, session.UUID, status, completedAt, duration.Seconds(), statsJSON, errorMessage)
	})
	if err != nil {
		return eris.Wrapf(err, "session: close %s", session.UUID)
	}
	return nil
}

// LoadStats aggregates completed-session totals from the store.
func (t *Tracker) LoadStats(ctx context.Context) (*model.SessionStats, error) {
	stats, err := t.store.SessionStats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "session: load stats")
	}
	return stats, nil
}

// snapshot writes the closed session to the cache, best effort.
func (t *Tracker) snapshot(ctx context.Context, session *model.Session) {
	if t.cache == nil {
		return
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return
	}
	if err := t.cache.Set(ctx, snapshotKey, string(payload), snapshotTTL); err != nil {
		zap.L().Debug("session: snapshot write failed", zap.Error(err))
	}
}

// Latest returns the cached snapshot of the most recently closed session,
// or nil when the cache has none.
func (t *Tracker) Latest(ctx context.Context) *model.Session {
	if t.cache == nil {
		return nil
	}
	raw, ok, err := t.cache.Get(ctx, snapshotKey)
	if err != nil || !ok {
		return nil
	}
	var session model.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil
	}
	return &session
}
