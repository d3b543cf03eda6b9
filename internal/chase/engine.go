// Package chase drives the risk-based reminder/escalation schedule that
// gets stale milestones chased before they become late.
package chase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/InfradynAB/infradyn1-sub007/internal/aggregate"
	"github.com/InfradynAB/infradyn1-sub007/internal/model"
	"github.com/InfradynAB/infradyn1-sub007/internal/store"
)

// Config holds cadence and escalation tuning for the engine.
type Config struct {
	// Reminder cadence per risk tier. Frequency tightens from weekly to
	// daily as the due date approaches.
	LowCadence      time.Duration
	MediumCadence   time.Duration
	HighCadence     time.Duration
	CriticalCadence time.Duration

	// MissesPerEscalation is how many consecutive unanswered reminders
	// advance the recipient chain one level.
	MissesPerEscalation int

	// ScanBudget bounds the wall-clock time of one scan so a slow
	// milestone cannot starve the rest of the batch.
	ScanBudget time.Duration

	// MaxConcurrent bounds parallelism across independent milestones.
	MaxConcurrent int
}

// DefaultConfig returns the weekly-to-daily cadence defaults.
func DefaultConfig() Config {
	return Config{
		LowCadence:          7 * 24 * time.Hour,
		MediumCadence:       3 * 24 * time.Hour,
		HighCadence:         24 * time.Hour,
		CriticalCadence:     24 * time.Hour,
		MissesPerEscalation: 2,
		ScanBudget:          10 * time.Minute,
		MaxConcurrent:       8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LowCadence <= 0 {
		c.LowCadence = d.LowCadence
	}
	if c.MediumCadence <= 0 {
		c.MediumCadence = d.MediumCadence
	}
	if c.HighCadence <= 0 {
		c.HighCadence = d.HighCadence
	}
	if c.CriticalCadence <= 0 {
		c.CriticalCadence = d.CriticalCadence
	}
	if c.MissesPerEscalation <= 0 {
		c.MissesPerEscalation = d.MissesPerEscalation
	}
	if c.ScanBudget <= 0 {
		c.ScanBudget = d.ScanBudget
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	return c
}

// ScanResult reports what one chase scan did, for the batch trigger's
// structured response.
type ScanResult struct {
	Processed int `json:"processed"`
	Reminded  int `json:"reminded"`
	Escalated int `json:"escalated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Engine scans open milestones and emits reminder intents.
type Engine struct {
	store    store.Store
	agg      *aggregate.Aggregator
	notifier Notifier
	cfg      Config
	policy   *Policy
	locks    *aggregate.KeyMutex
	now      func() time.Time
}

// NewEngine creates a chase engine.
func NewEngine(st store.Store, agg *aggregate.Aggregator, notifier Notifier, cfg Config, policy *Policy) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Engine{
		store:    st,
		agg:      agg,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		policy:   policy,
		locks:    aggregate.NewKeyMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNow sets a fixed clock for testing.
func (e *Engine) WithNow(fn func() time.Time) *Engine {
	e.now = fn
	return e
}

// Scan chases every open milestone in the scope once. Runs are idempotent
// per milestone: a second scan inside the cadence window observes
// nextEligibleReminderAt and skips. Per-milestone failures are counted,
// never fatal to the batch.
func (e *Engine) Scan(ctx context.Context, scope model.Scope) (*ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ScanBudget)
	defer cancel()

	milestones, err := e.store.ListOpenMilestones(ctx, scope)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		result ScanResult
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)

	for _, m := range milestones {
		g.Go(func() error {
			outcome, err := e.process(gCtx, scope, m)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			switch {
			case err != nil:
				result.Failed++
				zap.L().Warn("chase: milestone failed",
					zap.String("milestone", m.ID),
					zap.Error(err),
				)
			case outcome.reminded:
				result.Reminded++
				if outcome.escalated {
					result.Escalated++
				}
			default:
				result.Skipped++
			}
			// Failures are recorded, not propagated: one bad milestone
			// must not cancel the rest of the batch.
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return &result, err
	}

	zap.L().Info("chase: scan complete",
		zap.String("org", scope.OrgID),
		zap.Int("processed", result.Processed),
		zap.Int("reminded", result.Reminded),
		zap.Int("escalated", result.Escalated),
		zap.Int("failed", result.Failed),
	)
	return &result, nil
}

type outcome struct {
	reminded  bool
	escalated bool
}

func (e *Engine) process(ctx context.Context, scope model.Scope, m model.Milestone) (outcome, error) {
	// The check-then-send-then-record sequence below must be atomic per
	// milestone: two overlapping scans that both read an elapsed
	// nextEligibleReminderAt would otherwise both send. The engine keeps
	// its own lock set; nesting inside the aggregator's would deadlock
	// with CurrentState.
	unlock := e.locks.Lock(m.ID)
	defer unlock()

	now := e.now()

	state, err := e.agg.CurrentState(ctx, scope, m.ID)
	if err != nil {
		return outcome{}, err
	}

	entry, err := e.store.GetChaseEntry(ctx, m.ID)
	if errors.Is(err, store.ErrNotFound) {
		entry = nil
	} else if err != nil {
		return outcome{}, err
	}

	daysUntilDue := int(m.ExpectedDate.Sub(now).Hours() / 24)
	daysSinceSeen := daysSince(state.LastSeenAt, now)
	risk := riskTier(daysUntilDue, daysSinceSeen, state.IsForecast)

	// A fresh, verified state needs no chasing; record the risk tier and
	// clear the missed counter so the next staleness starts from level 0.
	if !state.IsForecast {
		if entry != nil && entry.MissedCount > 0 {
			entry.MissedCount = 0
			entry.Escalation = model.EscalateReporter
			entry.RiskTier = risk
			entry.UpdatedAt = now
			if err := e.store.UpsertChaseEntry(ctx, *entry); err != nil {
				return outcome{}, err
			}
		}
		return outcome{}, nil
	}

	// Idempotence: skip milestones not yet due for another reminder.
	if entry != nil && now.Before(entry.NextEligibleAt) {
		return outcome{}, nil
	}

	if entry == nil {
		entry = &model.ChaseScheduleEntry{
			MilestoneID: m.ID,
			OrgID:       m.OrgID,
		}
	}

	// A reminder counts as missed when the previous one drew no report.
	prevLevel := entry.Escalation
	if entry.LastReminderAt != nil && !state.LastSeenAt.After(*entry.LastReminderAt) {
		entry.MissedCount++
	} else {
		entry.MissedCount = 0
	}

	level := model.EscalationLevel(entry.MissedCount / e.cfg.MissesPerEscalation)
	if level > model.EscalateExecutive {
		level = model.EscalateExecutive
	}

	intent := model.ReminderIntent{
		MilestoneID:   m.ID,
		OrgID:         m.OrgID,
		POID:          m.POID,
		Title:         m.Title,
		RiskTier:      risk,
		Escalation:    level,
		Recipient:     e.policy.Recipient(level),
		DaysUntilDue:  daysUntilDue,
		DaysSinceSeen: daysSinceSeen,
		IsForecast:    state.IsForecast,
		IssuedAt:      now,
	}
	if err := e.notifier.Send(ctx, intent); err != nil {
		return outcome{}, err
	}

	entry.RiskTier = risk
	entry.Escalation = level
	entry.LastReminderAt = &now
	entry.NextEligibleAt = now.Add(e.cadence(risk))
	entry.UpdatedAt = now
	if err := e.store.UpsertChaseEntry(ctx, *entry); err != nil {
		return outcome{}, err
	}

	return outcome{reminded: true, escalated: level > prevLevel}, nil
}

// riskTier classifies urgency from deadline proximity and report drought.
func riskTier(daysUntilDue, daysSinceSeen int, isStale bool) model.RiskTier {
	switch {
	case daysUntilDue < 0:
		return model.RiskCritical
	case daysUntilDue <= 3 && isStale:
		return model.RiskCritical
	case daysUntilDue <= 7 || daysSinceSeen > 14:
		return model.RiskHigh
	case daysUntilDue <= 14 || isStale:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func (e *Engine) cadence(risk model.RiskTier) time.Duration {
	switch risk {
	case model.RiskCritical:
		return e.cfg.CriticalCadence
	case model.RiskHigh:
		return e.cfg.HighCadence
	case model.RiskMedium:
		return e.cfg.MediumCadence
	default:
		return e.cfg.LowCadence
	}
}

func daysSince(t, now time.Time) int {
	if t.IsZero() {
		// Never reported: treat as an arbitrarily long drought.
		return 1 << 16
	}
	return int(now.Sub(t).Hours() / 24)
}
