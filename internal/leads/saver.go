// Package leads validates, scores, and persists candidate leads.
package leads

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-mx/internal/dedup"
	"github.com/sells-group/leadgen-mx/internal/metrics"
	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/store"
)

// Saver runs candidates through the persistence gate, duplicate check,
// and scoring before writing them to the store.
type Saver struct {
	store   store.Store
	checker *dedup.Checker
	metrics metrics.Recorder
}

// NewSaver builds a saver. metrics may be nil.
func NewSaver(s store.Store, checker *dedup.Checker, m metrics.Recorder) *Saver {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Saver{store: s, checker: checker, metrics: m}
}

// Result reports what happened to one candidate.
type Result struct {
	// IsNew is true when the candidate was persisted as a fresh lead.
	IsNew bool
	// Invalid is true when the candidate failed the persistence gate.
	Invalid bool
	// Lead is the persisted record when IsNew is true.
	Lead *model.Lead
}

// Save processes a single candidate. Invalid candidates are dropped
// silently (Result.Invalid); duplicates are skipped (IsNew false); a
// unique-index race on insert is treated as a duplicate, not an error.
func (s *Saver) Save(ctx context.Context, source model.Source, sessionID string, candidate *model.CandidateLead) (Result, error) {
	if !candidate.IsSavable() {
		s.metrics.RecordLeadProcessed(source.String(), "invalid")
		return Result{Invalid: true}, nil
	}

	dup, err := s.checker.IsDuplicate(ctx, source, candidate)
	if err != nil {
		return Result{}, eris.Wrap(err, "leads: duplicate check")
	}
	if dup {
		s.metrics.RecordLeadProcessed(source.String(), "duplicate")
		return Result{}, nil
	}

	lead := &model.Lead{
		UUID:             uuid.New().String(),
		CompanyName:      candidate.CompanyName,
		Phone:            candidate.Phone,
		Email:            candidate.Email,
		Website:          candidate.Website,
		Address:          candidate.Address,
		Category:         candidate.Category,
		Source:           source,
		SourceURL:        candidate.SourceURL,
		ConfidenceScore:  Score(candidate),
		ValidationStatus: model.ValidationPending,
		Status:           model.LeadStatusNew,
		SessionID:        sessionID,
	}

	if err := s.store.SaveLead(ctx, lead); err != nil {
		if eris.Is(err, store.ErrDuplicateLead) {
			// Lost the race against a concurrent insert of the same pair.
			s.metrics.RecordLeadProcessed(source.String(), "duplicate")
			s.checker.MarkSeen(ctx, source, candidate)
			return Result{}, nil
		}
		return Result{}, eris.Wrap(err, "leads: save")
	}

	s.checker.MarkSeen(ctx, source, candidate)
	s.metrics.RecordLeadProcessed(source.String(), "saved")
	zap.L().Debug("lead saved",
		zap.String("company", lead.CompanyName),
		zap.String("source", source.String()),
		zap.Float64("confidence", lead.ConfidenceScore))
	return Result{IsNew: true, Lead: lead}, nil
}
