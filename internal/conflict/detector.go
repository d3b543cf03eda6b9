// Package conflict detects disagreement between progress facts and queues
// it for human adjudication. Conflicts are the designed-for outcome of
// untrusted sources, not an error condition; the detector never silently
// picks a winner.
package conflict

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
	"github.com/InfradynAB/infradyn1-sub007/internal/store"
)

// Thresholds holds the variance tolerances. These come from configuration;
// the policy owner for the exact values sits outside this codebase.
type Thresholds struct {
	// ProgressPts is the percent-complete variance (percentage points)
	// above which a supplier/internal disagreement opens a conflict.
	ProgressPts float64
	// ScheduleDays is how far a carrier ETA may slip past the milestone's
	// required date before a schedule conflict opens.
	ScheduleDays int
}

// DefaultThresholds returns the standard 5-point / 3-day tolerances.
func DefaultThresholds() Thresholds {
	return Thresholds{ProgressPts: 5.0, ScheduleDays: 3}
}

// Detector inspects milestone report logs for cross-source disagreement.
type Detector struct {
	store      store.Store
	thresholds Thresholds
}

// NewDetector creates a Detector.
func NewDetector(st store.Store, thresholds Thresholds) *Detector {
	if thresholds.ProgressPts <= 0 {
		thresholds.ProgressPts = 5.0
	}
	if thresholds.ScheduleDays <= 0 {
		thresholds.ScheduleDays = 3
	}
	return &Detector{store: st, thresholds: thresholds}
}

// CheckConflict compares the milestone's reports across sources and opens
// or updates conflict records as needed. Progress and schedule variance
// are independent disagreements; both checks run on every call so one
// kind persisting never masks the other. It returns the first record it
// acted on, or nil when the sources agree within tolerance. An existing
// OPEN record for the same kind is updated in place, never duplicated.
func (d *Detector) CheckConflict(ctx context.Context, scope model.Scope, milestoneID string) (*model.ConflictRecord, error) {
	milestone, err := d.store.GetMilestone(ctx, scope, milestoneID)
	if err != nil {
		return nil, eris.Wrap(err, "conflict: load milestone")
	}
	reports, err := d.store.ListReports(ctx, milestoneID)
	if err != nil {
		return nil, eris.Wrap(err, "conflict: load reports")
	}

	progress, err := d.checkProgressVariance(ctx, *milestone, reports)
	if err != nil {
		return nil, err
	}
	schedule, err := d.checkScheduleVariance(ctx, *milestone, reports)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		return progress, nil
	}
	return schedule, nil
}

// checkProgressVariance compares the latest supplier and internal percent
// reports.
func (d *Detector) checkProgressVariance(ctx context.Context, m model.Milestone, reports []model.ProgressReport) (*model.ConflictRecord, error) {
	supplier := latestByTier(reports, model.TierSupplier)
	internal := latestByTier(reports, model.TierInternal)
	if supplier == nil || internal == nil {
		return nil, nil
	}

	variance := math.Abs(supplier.Percent - internal.Percent)
	if variance <= d.thresholds.ProgressPts {
		return nil, nil
	}

	return d.openOrUpdate(ctx, model.ConflictRecord{
		MilestoneID: m.ID,
		OrgID:       m.OrgID,
		Kind:        model.ConflictProgressVariance,
		Variance:    variance,
		ReportAID:   supplier.ID,
		ReportBID:   internal.ID,
	})
}

// checkScheduleVariance compares a carrier-verified arrival estimate
// against the milestone's required-on-site date.
func (d *Detector) checkScheduleVariance(ctx context.Context, m model.Milestone, reports []model.ProgressReport) (*model.ConflictRecord, error) {
	carrier := latestWithTracking(reports)
	if carrier == nil {
		return nil, nil
	}

	event, err := d.store.LatestShipmentEvent(ctx, carrier.TrackingRef)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "conflict: load shipment event")
	}
	if event.EstimatedETA == nil {
		return nil, nil
	}

	slip := event.EstimatedETA.Sub(m.ExpectedDate)
	tolerance := time.Duration(d.thresholds.ScheduleDays) * 24 * time.Hour
	if slip <= tolerance {
		return nil, nil
	}

	return d.openOrUpdate(ctx, model.ConflictRecord{
		MilestoneID: m.ID,
		OrgID:       m.OrgID,
		Kind:        model.ConflictScheduleVariance,
		Variance:    slip.Hours() / 24,
		ReportAID:   event.ID,
		ReportBID:   carrier.ID,
	})
}

// openOrUpdate keeps at most one OPEN conflict per (milestone, kind):
// an existing record absorbs the new variance magnitude instead of
// duplicating.
func (d *Detector) openOrUpdate(ctx context.Context, c model.ConflictRecord) (*model.ConflictRecord, error) {
	existing, err := d.store.FindOpenConflict(ctx, c.MilestoneID, c.Kind)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrap(err, "conflict: find open")
	}

	if existing != nil {
		if err := d.store.UpdateConflictVariance(ctx, existing.ID, c.Variance, c.ReportAID, c.ReportBID); err != nil {
			return nil, eris.Wrap(err, "conflict: update variance")
		}
		existing.Variance = c.Variance
		existing.ReportAID = c.ReportAID
		existing.ReportBID = c.ReportBID
		return existing, nil
	}

	created, err := d.store.CreateConflict(ctx, c)
	if err != nil {
		return nil, eris.Wrap(err, "conflict: create")
	}
	zap.L().Info("conflict opened",
		zap.String("milestone", c.MilestoneID),
		zap.String("kind", string(c.Kind)),
		zap.Float64("variance", c.Variance),
	)
	return created, nil
}

// Adjudicate records a human decision selecting which report becomes
// authoritative. The selection is recorded on the conflict; the immutable
// report log is never rewritten.
func (d *Detector) Adjudicate(ctx context.Context, conflictID, winningReportID, decidedBy, note string) error {
	if winningReportID == "" {
		return eris.New("conflict: adjudication requires a winning report")
	}
	return d.store.ResolveConflict(ctx, conflictID, model.ConflictAdjudicated, winningReportID, decidedBy, note)
}

// Dismiss records that the variance was deemed acceptable.
func (d *Detector) Dismiss(ctx context.Context, conflictID, decidedBy, note string) error {
	return d.store.ResolveConflict(ctx, conflictID, model.ConflictDismissed, "", decidedBy, note)
}

// Digest returns the open conflicts for a scope, for the adjudication
// queue and the scheduled digest trigger.
func (d *Detector) Digest(ctx context.Context, scope model.Scope, limit int) ([]model.ConflictRecord, error) {
	return d.store.ListConflicts(ctx, scope, store.ConflictFilter{
		Status: model.ConflictOpen,
		Limit:  limit,
	})
}

func latestByTier(reports []model.ProgressReport, tier model.TrustTier) *model.ProgressReport {
	var best *model.ProgressReport
	for i := range reports {
		r := &reports[i]
		if r.TrustTier != tier {
			continue
		}
		if best == nil || r.SubmittedAt.After(best.SubmittedAt) {
			best = r
		}
	}
	return best
}

func latestWithTracking(reports []model.ProgressReport) *model.ProgressReport {
	var best *model.ProgressReport
	for i := range reports {
		r := &reports[i]
		if r.TrackingRef == "" {
			continue
		}
		if best == nil || r.SubmittedAt.After(best.SubmittedAt) {
			best = r
		}
	}
	return best
}
