// Package aggregate merges the append-only report log into each
// milestone's current-state view. The state is a pure projection of the
// log: replaying the same reports always reproduces the same state.
package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
	"github.com/InfradynAB/infradyn1-sub007/internal/staleness"
	"github.com/InfradynAB/infradyn1-sub007/internal/store"
)

// Aggregator recomputes milestone current-state projections.
type Aggregator struct {
	store   store.Store
	windows staleness.Windows
	locks   *KeyMutex
	now     func() time.Time
}

// New creates an Aggregator.
func New(st store.Store, windows staleness.Windows) *Aggregator {
	return &Aggregator{
		store:   st,
		windows: windows,
		locks:   NewKeyMutex(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithNow sets a fixed clock for testing.
func (a *Aggregator) WithNow(fn func() time.Time) *Aggregator {
	a.now = fn
	return a
}

// Replay computes the current state from a milestone's full report log.
// Precedence: highest trust tier wins; within a tier the most recent
// submission wins. A later-arriving but lower-trust report never displaces
// a higher-trust state. Out-of-order arrival is irrelevant because only
// submission timestamps participate.
func Replay(milestone model.Milestone, reports []model.ProgressReport, windows staleness.Windows, now time.Time) model.MilestoneState {
	st := model.MilestoneState{
		MilestoneID: milestone.ID,
		TrustTier:   model.TierForecast,
		IsForecast:  true,
		UpdatedAt:   now,
	}
	if len(reports) == 0 {
		return st
	}

	best := reports[0]
	lastSeen := reports[0].SubmittedAt
	for _, r := range reports[1:] {
		if r.SubmittedAt.After(lastSeen) {
			lastSeen = r.SubmittedAt
		}
		if betterThan(r, best) {
			best = r
		}
	}

	st.Percent = best.Percent
	st.TrustTier = best.TrustTier
	st.ReportID = best.ID
	st.AsOf = best.SubmittedAt
	st.LastSeenAt = lastSeen
	// An old report is better than nothing but must be visibly flagged,
	// not silently treated as current truth.
	st.IsForecast = windows.IsStale(lastSeen, milestone.ExpectedDate, now)
	return st
}

func betterThan(a, b model.ProgressReport) bool {
	if a.TrustTier.Rank() != b.TrustTier.Rank() {
		return a.TrustTier.Rank() > b.TrustTier.Rank()
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.After(b.SubmittedAt)
	}
	// Stable tie-break on arrival order for identical submission times.
	return a.CreatedAt.After(b.CreatedAt)
}

// Recompute replays the milestone's report log and stores the resulting
// projection. It is idempotent: recomputing over an unchanged log yields
// an identical state. Updates for the same milestone are serialized.
func (a *Aggregator) Recompute(ctx context.Context, scope model.Scope, milestoneID string) (*model.MilestoneState, error) {
	unlock := a.locks.Lock(milestoneID)
	defer unlock()

	milestone, err := a.store.GetMilestone(ctx, scope, milestoneID)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: load milestone")
	}

	reports, err := a.store.ListReports(ctx, milestoneID)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: load reports")
	}

	st := Replay(*milestone, reports, a.windows, a.now())
	if err := a.store.UpsertMilestoneState(ctx, st); err != nil {
		return nil, eris.Wrap(err, "aggregate: store state")
	}

	zap.L().Debug("aggregate: state recomputed",
		zap.String("milestone", milestoneID),
		zap.Float64("percent", st.Percent),
		zap.String("tier", string(st.TrustTier)),
		zap.Bool("forecast", st.IsForecast),
	)
	return &st, nil
}

// CurrentState returns the stored projection, recomputing it when absent
// or when the staleness flag needs refreshing against the current clock.
func (a *Aggregator) CurrentState(ctx context.Context, scope model.Scope, milestoneID string) (*model.MilestoneState, error) {
	st, err := a.store.GetMilestoneState(ctx, milestoneID)
	if errors.Is(err, store.ErrNotFound) {
		return a.Recompute(ctx, scope, milestoneID)
	}
	if err != nil {
		return nil, err
	}

	// The forecast flag decays with time even without new reports; refresh
	// it when the stored projection has gone stale since it was written.
	// The decay check runs against the newest report of any tier, the same
	// timestamp Replay computed the flag from; AsOf can be older when a
	// lower-trust report sits behind the winning one.
	milestone, err := a.store.GetMilestone(ctx, scope, milestoneID)
	if err != nil {
		return nil, err
	}
	stale := a.windows.IsStale(st.LastSeenAt, milestone.ExpectedDate, a.now())
	if stale != st.IsForecast {
		return a.Recompute(ctx, scope, milestoneID)
	}
	return st, nil
}
