package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/InfradynAB/infradyn1-sub007/internal/aggregate"
	"github.com/InfradynAB/infradyn1-sub007/internal/carrier"
	"github.com/InfradynAB/infradyn1-sub007/internal/chase"
	"github.com/InfradynAB/infradyn1-sub007/internal/conflict"
	"github.com/InfradynAB/infradyn1-sub007/internal/ingest"
	"github.com/InfradynAB/infradyn1-sub007/internal/milestone"
	"github.com/InfradynAB/infradyn1-sub007/internal/staleness"
	"github.com/InfradynAB/infradyn1-sub007/internal/store"
	"github.com/InfradynAB/infradyn1-sub007/internal/trust"
)

// env holds the wired service graph shared by the commands.
type env struct {
	Store      store.Store
	Aggregator *aggregate.Aggregator
	Detector   *conflict.Detector
	Ingest     *ingest.Service
	Milestones *milestone.Service
	Chase      *chase.Engine
}

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	windows := staleness.FromDays(
		cfg.Staleness.DefaultWindowDays,
		cfg.Staleness.NearDueWindowDays,
		cfg.Staleness.NearDueProximityDays,
	)
	agg := aggregate.New(st, windows)
	detector := conflict.NewDetector(st, conflict.Thresholds{
		ProgressPts:  cfg.Conflict.ProgressThresholdPts,
		ScheduleDays: cfg.Conflict.ScheduleToleranceDays,
	})

	var lookup *carrier.Lookup
	if len(cfg.Carrier.Endpoints) > 0 {
		lookup = carrier.NewLookup(carrier.LookupOptions{
			Endpoints:      cfg.Carrier.Endpoints,
			APIKey:         cfg.Carrier.APIKey,
			Timeout:        cfg.Carrier.Timeout,
			MaxRetries:     cfg.Carrier.MaxRetries,
			RequestsPerSec: cfg.Carrier.RequestsPerSec,
		})
	}

	policy := chase.DefaultPolicy()
	if cfg.Chase.PolicyPath != "" {
		policy, err = chase.LoadPolicy(cfg.Chase.PolicyPath)
		if err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
	}
	notifier := chase.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	engine := chase.NewEngine(st, agg, notifier, chase.Config{
		LowCadence:          cfg.Chase.LowCadence,
		MediumCadence:       cfg.Chase.MediumCadence,
		HighCadence:         cfg.Chase.HighCadence,
		CriticalCadence:     cfg.Chase.CriticalCadence,
		MissesPerEscalation: cfg.Chase.MissesPerEscalation,
		ScanBudget:          cfg.Chase.ScanBudget,
		MaxConcurrent:       cfg.Chase.MaxConcurrent,
	}, policy)

	return &env{
		Store:      st,
		Aggregator: agg,
		Detector:   detector,
		Ingest:     ingest.NewService(st, trust.NewScorer(st), agg, detector, lookup),
		Milestones: milestone.NewService(st),
		Chase:      engine,
	}, nil
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close", zap.Error(err))
	}
}
