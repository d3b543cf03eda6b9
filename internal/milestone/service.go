// Package milestone manages purchase-order milestone schedules and the
// weighted progress rollup derived from them.
package milestone

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
	"github.com/InfradynAB/infradyn1-sub007/internal/store"
)

// Validation sentinels for schedule establishment.
var (
	ErrInvalidPaymentPct = eris.New("milestone: payment percent must be between 0 and 100")
	ErrMissingField      = eris.New("milestone: missing required field")
	ErrEmptySchedule     = eris.New("milestone: schedule has no entries")
)

// Service manages milestone schedules.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a milestone service.
func NewService(st store.Store) *Service {
	return &Service{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithNow sets a fixed clock for testing.
func (s *Service) WithNow(fn func() time.Time) *Service {
	s.now = fn
	return s
}

// ScheduleEntry is one milestone in an establishment request.
type ScheduleEntry struct {
	Title        string    `json:"title"`
	ExpectedDate time.Time `json:"expected_date"`
	PaymentPct   float64   `json:"payment_pct"`
}

// EstablishSchedule creates the milestone schedule for a purchase order.
// Every entry is validated before any row is written.
func (s *Service) EstablishSchedule(ctx context.Context, scope model.Scope, poID string, entries []ScheduleEntry) ([]model.Milestone, error) {
	if poID == "" {
		return nil, eris.Wrap(ErrMissingField, "po_id")
	}
	if len(entries) == 0 {
		return nil, ErrEmptySchedule
	}

	now := s.now()
	milestones := make([]model.Milestone, 0, len(entries))
	for _, e := range entries {
		if e.Title == "" {
			return nil, eris.Wrap(ErrMissingField, "title")
		}
		if e.ExpectedDate.IsZero() {
			return nil, eris.Wrap(ErrMissingField, "expected_date")
		}
		if e.PaymentPct < 0 || e.PaymentPct > 100 {
			return nil, ErrInvalidPaymentPct
		}
		milestones = append(milestones, model.Milestone{
			ID:           uuid.NewString(),
			OrgID:        scope.OrgID,
			ProjectID:    scope.ProjectID,
			POID:         poID,
			Title:        e.Title,
			ExpectedDate: e.ExpectedDate,
			PaymentPct:   e.PaymentPct,
			Status:       model.MilestoneStatusOpen,
			CreatedAt:    now,
		})
	}

	inserted, err := s.store.BulkInsertMilestones(ctx, milestones)
	if err != nil {
		return nil, eris.Wrap(err, "milestone: insert schedule")
	}
	zap.L().Info("milestone: schedule established",
		zap.String("po", poID),
		zap.Int64("count", inserted),
	)
	return milestones, nil
}

// Rollup is the weighted physical-progress summary for a scope.
type Rollup struct {
	Milestones      int     `json:"milestones"`
	WeightedPercent float64 `json:"weighted_percent"`
	ForecastCount   int     `json:"forecast_count"`
	TotalWeight     float64 `json:"total_weight"`
}

// ProgressRollup computes the payment-weighted physical progress across the
// scope's open milestones. Milestones without a payment weight fall back to
// equal weighting so a partially weighted schedule still rolls up.
func (s *Service) ProgressRollup(ctx context.Context, scope model.Scope) (*Rollup, error) {
	milestones, err := s.store.ListOpenMilestones(ctx, scope)
	if err != nil {
		return nil, eris.Wrap(err, "milestone: list for rollup")
	}
	states, err := s.store.ListMilestoneStates(ctx, scope)
	if err != nil {
		return nil, eris.Wrap(err, "milestone: list states for rollup")
	}

	byID := make(map[string]model.MilestoneState, len(states))
	for _, st := range states {
		byID[st.MilestoneID] = st
	}

	r := &Rollup{Milestones: len(milestones)}
	var weightedSum float64
	for _, m := range milestones {
		weight := m.PaymentPct
		if weight <= 0 {
			weight = 1
		}
		r.TotalWeight += weight

		st, ok := byID[m.ID]
		if !ok || st.IsForecast {
			r.ForecastCount++
		}
		weightedSum += st.Percent * weight
	}
	if r.TotalWeight > 0 {
		r.WeightedPercent = weightedSum / r.TotalWeight
	}
	return r, nil
}
