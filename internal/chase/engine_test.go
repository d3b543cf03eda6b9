package chase

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InfradynAB/infradyn1-sub007/internal/aggregate"
	"github.com/InfradynAB/infradyn1-sub007/internal/model"
	"github.com/InfradynAB/infradyn1-sub007/internal/staleness"
	"github.com/InfradynAB/infradyn1-sub007/internal/store"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type captureNotifier struct {
	mu      sync.Mutex
	intents []model.ReminderIntent
}

func (n *captureNotifier) Send(_ context.Context, intent model.ReminderIntent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, intent)
	return nil
}

func (n *captureNotifier) sent() []model.ReminderIntent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.ReminderIntent(nil), n.intents...)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestEngine(t *testing.T, st store.Store, notifier Notifier, clock *time.Time) (*Engine, *aggregate.Aggregator) {
	t.Helper()
	now := func() time.Time { return *clock }
	agg := aggregate.New(st, staleness.DefaultWindows()).WithNow(now)
	return NewEngine(st, agg, notifier, Config{}, nil).WithNow(now), agg
}

func seedMilestone(t *testing.T, st store.Store, id string, due time.Time) {
	t.Helper()
	_, err := st.CreateMilestone(context.Background(), model.Milestone{
		ID:           id,
		OrgID:        "org-1",
		POID:         "po-1",
		Title:        "Delivery to site",
		ExpectedDate: due,
	})
	require.NoError(t, err)
}

func TestScan_RemindsStaleMilestone(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st, "ms-1", testNow.Add(20*24*time.Hour))

	notifier := &captureNotifier{}
	clock := testNow
	e, _ := newTestEngine(t, st, notifier, &clock)

	result, err := e.Scan(context.Background(), model.Scope{OrgID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Reminded)
	assert.Zero(t, result.Failed)

	intents := notifier.sent()
	require.Len(t, intents, 1)
	assert.Equal(t, "ms-1", intents[0].MilestoneID)
	assert.Equal(t, model.EscalateReporter, intents[0].Escalation)
	assert.Equal(t, "reporter", intents[0].Recipient)
	assert.True(t, intents[0].IsForecast)
}

func TestScan_IdempotentWithinCadenceWindow(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st, "ms-1", testNow.Add(20*24*time.Hour))

	notifier := &captureNotifier{}
	clock := testNow
	e, _ := newTestEngine(t, st, notifier, &clock)
	ctx := context.Background()
	scope := model.Scope{OrgID: "org-1"}

	first, err := e.Scan(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Reminded)

	// A second scan an hour later is inside the cadence window.
	clock = testNow.Add(time.Hour)
	second, err := e.Scan(ctx, scope)
	require.NoError(t, err)
	assert.Zero(t, second.Reminded)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, notifier.sent(), 1)
}

// slowNotifier widens the window between the eligibility check and the
// schedule write so overlapping scans can race.
type slowNotifier struct {
	captureNotifier
	delay time.Duration
}

func (n *slowNotifier) Send(ctx context.Context, intent model.ReminderIntent) error {
	time.Sleep(n.delay)
	return n.captureNotifier.Send(ctx, intent)
}

func TestScan_OverlappingScansSendOneReminder(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st, "ms-1", testNow.Add(20*24*time.Hour))

	notifier := &slowNotifier{delay: 300 * time.Millisecond}
	clock := testNow
	e, _ := newTestEngine(t, st, notifier, &clock)
	ctx := context.Background()
	scope := model.Scope{OrgID: "org-1"}

	// Both scans start before the first reminder is recorded. Without the
	// per-milestone lock both would observe an eligible milestone and send.
	results := make([]*ScanResult, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := e.Scan(ctx, scope)
			assert.NoError(t, err)
			results[i] = r
		}()
	}
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.Len(t, notifier.sent(), 1)
	assert.Equal(t, 1, results[0].Reminded+results[1].Reminded)

	entry, err := st.GetChaseEntry(ctx, "ms-1")
	require.NoError(t, err)
	assert.Zero(t, entry.MissedCount)
}

func TestScan_FreshMilestoneNotChased(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st, "ms-1", testNow.Add(20*24*time.Hour))
	_, err := st.AppendReport(context.Background(), model.ProgressReport{
		ID:          "r1",
		MilestoneID: "ms-1",
		OrgID:       "org-1",
		Channel:     model.ChannelInternal,
		Percent:     50,
		ReporterID:  "pm",
		TrustTier:   model.TierInternal,
		SubmittedAt: testNow.Add(-time.Hour),
	})
	require.NoError(t, err)

	notifier := &captureNotifier{}
	clock := testNow
	e, _ := newTestEngine(t, st, notifier, &clock)

	result, err := e.Scan(context.Background(), model.Scope{OrgID: "org-1"})
	require.NoError(t, err)
	assert.Zero(t, result.Reminded)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, notifier.sent())
}

func TestScan_EscalatesAfterConsecutiveMisses(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st, "ms-1", testNow.Add(60*24*time.Hour))

	notifier := &captureNotifier{}
	clock := testNow
	e, _ := newTestEngine(t, st, notifier, &clock)
	ctx := context.Background()
	scope := model.Scope{OrgID: "org-1"}

	// Reminders a week apart with no report in between. With two misses
	// per level, the third and fourth reminders go to the project manager,
	// the fifth and sixth to the executive chain.
	wantLevels := []model.EscalationLevel{
		model.EscalateReporter, model.EscalateReporter,
		model.EscalateProjectManager, model.EscalateProjectManager,
		model.EscalateExecutive, model.EscalateExecutive,
		model.EscalateExecutive,
	}
	for i := range wantLevels {
		result, err := e.Scan(ctx, scope)
		require.NoError(t, err)
		require.Equal(t, 1, result.Reminded, "scan %d", i)
		clock = clock.Add(8 * 24 * time.Hour)
	}

	intents := notifier.sent()
	require.Len(t, intents, len(wantLevels))
	for i, want := range wantLevels {
		assert.Equal(t, want, intents[i].Escalation, "reminder %d", i)
	}
	assert.Equal(t, "project-manager", intents[2].Recipient)
	assert.Equal(t, "executive", intents[4].Recipient)
}

func TestScan_NewReportResetsEscalation(t *testing.T) {
	st := newTestStore(t)
	seedMilestone(t, st, "ms-1", testNow.Add(60*24*time.Hour))

	notifier := &captureNotifier{}
	clock := testNow
	e, agg := newTestEngine(t, st, notifier, &clock)
	ctx := context.Background()
	scope := model.Scope{OrgID: "org-1"}

	// Three unanswered reminders escalate to the project manager.
	for i := 0; i < 3; i++ {
		_, err := e.Scan(ctx, scope)
		require.NoError(t, err)
		clock = clock.Add(8 * 24 * time.Hour)
	}
	require.Equal(t, model.EscalateProjectManager, notifier.sent()[2].Escalation)

	// A report arrives; the chase state resets.
	_, err := st.AppendReport(ctx, model.ProgressReport{
		ID:          "r1",
		MilestoneID: "ms-1",
		OrgID:       "org-1",
		Channel:     model.ChannelSupplier,
		Percent:     40,
		ReporterID:  "supplier",
		TrustTier:   model.TierSupplier,
		SubmittedAt: clock,
	})
	require.NoError(t, err)
	_, err = agg.Recompute(ctx, scope, "ms-1")
	require.NoError(t, err)

	result, err := e.Scan(ctx, scope)
	require.NoError(t, err)
	assert.Zero(t, result.Reminded)

	entry, err := st.GetChaseEntry(ctx, "ms-1")
	require.NoError(t, err)
	assert.Zero(t, entry.MissedCount)
	assert.Equal(t, model.EscalateReporter, entry.Escalation)
}

func TestRiskTier(t *testing.T) {
	tests := []struct {
		name          string
		daysUntilDue  int
		daysSinceSeen int
		isStale       bool
		want          model.RiskTier
	}{
		{"overdue", -1, 2, true, model.RiskCritical},
		{"due soon and stale", 2, 10, true, model.RiskCritical},
		{"due this week", 5, 1, false, model.RiskHigh},
		{"long report drought", 30, 20, true, model.RiskHigh},
		{"due in two weeks", 10, 2, false, model.RiskMedium},
		{"stale but far out", 30, 8, true, model.RiskMedium},
		{"healthy", 30, 1, false, model.RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, riskTier(tt.daysUntilDue, tt.daysSinceSeen, tt.isStale))
		})
	}
}
