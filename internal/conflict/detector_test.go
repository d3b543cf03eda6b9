package conflict

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
	"github.com/InfradynAB/infradyn1-sub007/internal/store"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedMilestone(t *testing.T, st store.Store) *model.Milestone {
	t.Helper()
	m, err := st.CreateMilestone(context.Background(), model.Milestone{
		ID:           "ms-1",
		OrgID:        "org-1",
		POID:         "po-1",
		Title:        "Shipment ready",
		ExpectedDate: testNow.Add(14 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return m
}

func seedReport(t *testing.T, st store.Store, id string, tier model.TrustTier, percent float64, trackingRef string) {
	t.Helper()
	_, err := st.AppendReport(context.Background(), model.ProgressReport{
		ID:          id,
		MilestoneID: "ms-1",
		OrgID:       "org-1",
		Channel:     model.ChannelSupplier,
		Percent:     percent,
		ReporterID:  "tester",
		TrackingRef: trackingRef,
		TrustTier:   tier,
		SubmittedAt: testNow.Add(-time.Hour),
	})
	require.NoError(t, err)
}

func TestCheckConflict_WithinToleranceNoConflict(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st)
	seedReport(t, st, "r-sup", model.TierSupplier, 50, "")
	seedReport(t, st, "r-int", model.TierInternal, 54, "")

	d := NewDetector(st, DefaultThresholds())
	rec, err := d.CheckConflict(context.Background(), model.Scope{OrgID: "org-1"}, "ms-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCheckConflict_ProgressVarianceOpensConflict(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st)
	seedReport(t, st, "r-sup", model.TierSupplier, 50, "")
	seedReport(t, st, "r-int", model.TierInternal, 60, "")

	d := NewDetector(st, DefaultThresholds())
	rec, err := d.CheckConflict(context.Background(), model.Scope{OrgID: "org-1"}, "ms-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.ConflictProgressVariance, rec.Kind)
	assert.Equal(t, model.ConflictOpen, rec.Status)
	assert.InDelta(t, 10.0, rec.Variance, 0.001)
}

func TestCheckConflict_NoDuplicateOpenConflicts(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st)
	seedReport(t, st, "r-sup", model.TierSupplier, 50, "")
	seedReport(t, st, "r-int", model.TierInternal, 60, "")

	d := NewDetector(st, DefaultThresholds())
	ctx := context.Background()
	scope := model.Scope{OrgID: "org-1"}

	first, err := d.CheckConflict(ctx, scope, "ms-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	// The variance widened; the same record is updated, not duplicated.
	seedReport(t, st, "r-int2", model.TierInternal, 70, "")
	second, err := d.CheckConflict(ctx, scope, "ms-1")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.InDelta(t, 20.0, second.Variance, 0.001)

	open, err := st.ListConflicts(ctx, scope, store.ConflictFilter{Status: model.ConflictOpen})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestCheckConflict_MissingSourceSideNoConflict(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st)
	seedReport(t, st, "r-sup", model.TierSupplier, 10, "")

	d := NewDetector(st, DefaultThresholds())
	rec, err := d.CheckConflict(context.Background(), model.Scope{OrgID: "org-1"}, "ms-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCheckConflict_ScheduleVariance(t *testing.T) {
	st := newTestStore(t)
	m := seedMilestone(t, st)
	seedReport(t, st, "r-track", model.TierCarrierVerified, 80, "MSCU1234566")

	// Carrier ETA five days past the required date with a 3-day tolerance.
	eta := m.ExpectedDate.Add(5 * 24 * time.Hour)
	inserted, err := st.InsertShipmentEvent(context.Background(), model.ShipmentEvent{
		ID:             "ev-1",
		SubscriptionID: "sub-1",
		ContainerID:    "MSCU1234566",
		OrgID:          "org-1",
		Status:         model.ShipmentInTransit,
		EventType:      model.EventDeparture,
		CarrierCode:    "DEPA",
		EventTime:      testNow,
		EstimatedETA:   &eta,
	})
	require.NoError(t, err)
	require.True(t, inserted)

	d := NewDetector(st, DefaultThresholds())
	rec, err := d.CheckConflict(context.Background(), model.Scope{OrgID: "org-1"}, "ms-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.ConflictScheduleVariance, rec.Kind)
	assert.InDelta(t, 5.0, rec.Variance, 0.001)
}

func TestCheckConflict_BothKindsOpenIndependently(t *testing.T) {
	st := newTestStore(t)
	m := seedMilestone(t, st)

	// Progress disagreement and a slipped carrier ETA at the same time.
	seedReport(t, st, "r-sup", model.TierSupplier, 50, "")
	seedReport(t, st, "r-int", model.TierInternal, 62, "")
	seedReport(t, st, "r-track", model.TierCarrierVerified, 80, "MSCU1234566")

	eta := m.ExpectedDate.Add(5 * 24 * time.Hour)
	inserted, err := st.InsertShipmentEvent(context.Background(), model.ShipmentEvent{
		ID:             "ev-1",
		SubscriptionID: "sub-1",
		ContainerID:    "MSCU1234566",
		OrgID:          "org-1",
		Status:         model.ShipmentInTransit,
		EventType:      model.EventDeparture,
		CarrierCode:    "DEPA",
		EventTime:      testNow,
		EstimatedETA:   &eta,
	})
	require.NoError(t, err)
	require.True(t, inserted)

	d := NewDetector(st, DefaultThresholds())
	ctx := context.Background()
	scope := model.Scope{OrgID: "org-1"}

	// One call opens both: the persisting progress variance must not mask
	// the schedule slip.
	rec, err := d.CheckConflict(ctx, scope, "ms-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.ConflictProgressVariance, rec.Kind)

	open, err := st.ListConflicts(ctx, scope, store.ConflictFilter{Status: model.ConflictOpen})
	require.NoError(t, err)
	require.Len(t, open, 2)
	kinds := map[model.ConflictKind]bool{}
	for _, c := range open {
		kinds[c.Kind] = true
	}
	assert.True(t, kinds[model.ConflictProgressVariance])
	assert.True(t, kinds[model.ConflictScheduleVariance])

	// Repeat calls update the same two records.
	_, err = d.CheckConflict(ctx, scope, "ms-1")
	require.NoError(t, err)
	open, err = st.ListConflicts(ctx, scope, store.ConflictFilter{Status: model.ConflictOpen})
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestCheckConflict_ScheduleWithinToleranceNoConflict(t *testing.T) {
	st := newTestStore(t)
	m := seedMilestone(t, st)
	seedReport(t, st, "r-track", model.TierCarrierVerified, 80, "MSCU1234566")

	eta := m.ExpectedDate.Add(2 * 24 * time.Hour)
	_, err := st.InsertShipmentEvent(context.Background(), model.ShipmentEvent{
		ID:             "ev-1",
		SubscriptionID: "sub-1",
		ContainerID:    "MSCU1234566",
		OrgID:          "org-1",
		Status:         model.ShipmentInTransit,
		EventType:      model.EventDeparture,
		CarrierCode:    "DEPA",
		EventTime:      testNow,
		EstimatedETA:   &eta,
	})
	require.NoError(t, err)

	d := NewDetector(st, DefaultThresholds())
	rec, err := d.CheckConflict(context.Background(), model.Scope{OrgID: "org-1"}, "ms-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAdjudicate(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st)
	seedReport(t, st, "r-sup", model.TierSupplier, 50, "")
	seedReport(t, st, "r-int", model.TierInternal, 60, "")

	d := NewDetector(st, DefaultThresholds())
	ctx := context.Background()
	scope := model.Scope{OrgID: "org-1"}

	rec, err := d.CheckConflict(ctx, scope, "ms-1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.NoError(t, d.Adjudicate(ctx, rec.ID, "r-int", "pm@example.com", "site walk confirmed"))

	resolved, err := st.GetConflict(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictAdjudicated, resolved.Status)
	assert.Equal(t, "r-int", resolved.WinningReportID)
	assert.True(t, resolved.Terminal())

	// Terminal records cannot be re-resolved.
	err = d.Dismiss(ctx, rec.ID, "pm@example.com", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdjudicate_RequiresWinningReport(t *testing.T) {
	st := newTestStore(t)
	d := NewDetector(st, DefaultThresholds())
	err := d.Adjudicate(context.Background(), "c-1", "", "pm@example.com", "")
	require.Error(t, err)
}

func TestDismiss(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st)
	seedReport(t, st, "r-sup", model.TierSupplier, 50, "")
	seedReport(t, st, "r-int", model.TierInternal, 60, "")

	d := NewDetector(st, DefaultThresholds())
	ctx := context.Background()

	rec, err := d.CheckConflict(ctx, model.Scope{OrgID: "org-1"}, "ms-1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.NoError(t, d.Dismiss(ctx, rec.ID, "pm@example.com", "within tolerance for this PO"))

	resolved, err := st.GetConflict(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictDismissed, resolved.Status)
}

func TestDigest_ListsOnlyOpen(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st)
	seedReport(t, st, "r-sup", model.TierSupplier, 50, "")
	seedReport(t, st, "r-int", model.TierInternal, 60, "")

	d := NewDetector(st, DefaultThresholds())
	ctx := context.Background()
	scope := model.Scope{OrgID: "org-1"}

	rec, err := d.CheckConflict(ctx, scope, "ms-1")
	require.NoError(t, err)

	open, err := d.Digest(ctx, scope, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, d.Dismiss(ctx, rec.ID, "pm@example.com", ""))
	open, err = d.Digest(ctx, scope, 10)
	require.NoError(t, err)
	assert.Empty(t, open)
}
