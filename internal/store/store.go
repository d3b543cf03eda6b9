// Package store persists the reconciliation core's entities: the
// append-only report and event logs, the derived milestone-state
// projection, conflicts, and the chase schedule.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = eris.New("store: not found")

// ConflictFilter specifies criteria for listing conflicts.
type ConflictFilter struct {
	Status model.ConflictStatus `json:"status,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
}

// Store defines the persistence interface for the reconciliation core.
// Report and event tables are append-only; the state projection and chase
// schedule are the only mutable tables.
type Store interface {
	// Milestones
	CreateMilestone(ctx context.Context, m model.Milestone) (*model.Milestone, error)
	BulkInsertMilestones(ctx context.Context, ms []model.Milestone) (int64, error)
	GetMilestone(ctx context.Context, scope model.Scope, id string) (*model.Milestone, error)
	ListOpenMilestones(ctx context.Context, scope model.Scope) ([]model.Milestone, error)
	UpdateMilestoneStatus(ctx context.Context, id string, status model.MilestoneStatus) error

	// Progress reports (append-only)
	AppendReport(ctx context.Context, r model.ProgressReport) (*model.ProgressReport, error)
	ListReports(ctx context.Context, milestoneID string) ([]model.ProgressReport, error)

	// Shipment events (append-only, idempotent on the dedupe key)
	InsertShipmentEvent(ctx context.Context, e model.ShipmentEvent) (bool, error)
	LatestShipmentEvent(ctx context.Context, containerID string) (*model.ShipmentEvent, error)

	// Current-state projection
	UpsertMilestoneState(ctx context.Context, st model.MilestoneState) error
	GetMilestoneState(ctx context.Context, milestoneID string) (*model.MilestoneState, error)
	ListMilestoneStates(ctx context.Context, scope model.Scope) ([]model.MilestoneState, error)

	// Conflicts
	CreateConflict(ctx context.Context, c model.ConflictRecord) (*model.ConflictRecord, error)
	GetConflict(ctx context.Context, id string) (*model.ConflictRecord, error)
	FindOpenConflict(ctx context.Context, milestoneID string, kind model.ConflictKind) (*model.ConflictRecord, error)
	UpdateConflictVariance(ctx context.Context, id string, variance float64, reportAID, reportBID string) error
	ResolveConflict(ctx context.Context, id string, status model.ConflictStatus, winningReportID, decidedBy, note string) error
	ListConflicts(ctx context.Context, scope model.Scope, filter ConflictFilter) ([]model.ConflictRecord, error)

	// Chase schedule
	GetChaseEntry(ctx context.Context, milestoneID string) (*model.ChaseScheduleEntry, error)
	UpsertChaseEntry(ctx context.Context, e model.ChaseScheduleEntry) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
