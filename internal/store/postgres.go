package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/InfradynAB/infradyn1-sub007/internal/db"
	"github.com/InfradynAB/infradyn1-sub007/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hottest ingestion-path operations.
var preparedStatements = map[string]string{
	"append_report":   `INSERT INTO progress_reports (id, milestone_id, org_id, channel, percent, note, reporter_id, tracking_ref, trust_tier, submitted_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"get_state":       `SELECT milestone_id, percent, trust_tier, report_id, as_of, last_seen_at, is_forecast, updated_at FROM milestone_states WHERE milestone_id = $1`,
	"upsert_state":    `INSERT INTO milestone_states (milestone_id, percent, trust_tier, report_id, as_of, last_seen_at, is_forecast, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (milestone_id) DO UPDATE SET percent = EXCLUDED.percent, trust_tier = EXCLUDED.trust_tier, report_id = EXCLUDED.report_id, as_of = EXCLUDED.as_of, last_seen_at = EXCLUDED.last_seen_at, is_forecast = EXCLUDED.is_forecast, updated_at = EXCLUDED.updated_at`,
	"insert_shipment": `INSERT INTO shipment_events (id, subscription_id, container_id, milestone_id, org_id, status, event_type, carrier_code, event_time, location, vessel, estimated_eta, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) ON CONFLICT (subscription_id, container_id, event_time) DO NOTHING`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS milestones (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	org_id        TEXT NOT NULL,
	project_id    TEXT NOT NULL DEFAULT '',
	po_id         TEXT NOT NULL,
	title         TEXT NOT NULL,
	expected_date TIMESTAMPTZ NOT NULL,
	payment_pct   DOUBLE PRECISION NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'open',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS progress_reports (
	id           TEXT PRIMARY KEY,
	milestone_id TEXT NOT NULL REFERENCES milestones(id),
	org_id       TEXT NOT NULL,
	channel      TEXT NOT NULL,
	percent      DOUBLE PRECISION NOT NULL,
	note         TEXT NOT NULL DEFAULT '',
	reporter_id  TEXT NOT NULL,
	tracking_ref TEXT NOT NULL DEFAULT '',
	trust_tier   TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS shipment_events (
	id              TEXT PRIMARY KEY,
	subscription_id TEXT NOT NULL,
	container_id    TEXT NOT NULL,
	milestone_id    TEXT NOT NULL DEFAULT '',
	org_id          TEXT NOT NULL,
	status          TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	carrier_code    TEXT NOT NULL,
	event_time      TIMESTAMPTZ NOT NULL,
	location        TEXT NOT NULL DEFAULT '',
	vessel          TEXT NOT NULL DEFAULT '',
	estimated_eta   TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (subscription_id, container_id, event_time)
);

CREATE TABLE IF NOT EXISTS milestone_states (
	milestone_id TEXT PRIMARY KEY REFERENCES milestones(id),
	percent      DOUBLE PRECISION NOT NULL,
	trust_tier   TEXT NOT NULL,
	report_id    TEXT NOT NULL DEFAULT '',
	as_of        TIMESTAMPTZ NOT NULL,
	last_seen_at TIMESTAMPTZ NOT NULL,
	is_forecast  BOOLEAN NOT NULL DEFAULT false,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS conflicts (
	id                TEXT PRIMARY KEY,
	milestone_id      TEXT NOT NULL REFERENCES milestones(id),
	org_id            TEXT NOT NULL,
	kind              TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'OPEN',
	variance          DOUBLE PRECISION NOT NULL,
	report_a_id       TEXT NOT NULL,
	report_b_id       TEXT NOT NULL,
	winning_report_id TEXT NOT NULL DEFAULT '',
	decided_by        TEXT NOT NULL DEFAULT '',
	decision_note     TEXT NOT NULL DEFAULT '',
	decided_at        TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chase_schedule (
	milestone_id     TEXT PRIMARY KEY REFERENCES milestones(id),
	org_id           TEXT NOT NULL,
	risk_tier        TEXT NOT NULL,
	escalation       INTEGER NOT NULL DEFAULT 0,
	missed_count     INTEGER NOT NULL DEFAULT 0,
	last_reminder_at TIMESTAMPTZ,
	next_eligible_at TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_milestones_org_status ON milestones(org_id, status);
CREATE INDEX IF NOT EXISTS idx_reports_milestone_submitted ON progress_reports(milestone_id, submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_shipment_events_container ON shipment_events(container_id, event_time DESC);
CREATE INDEX IF NOT EXISTS idx_conflicts_milestone_status ON conflicts(milestone_id, status);
CREATE INDEX IF NOT EXISTS idx_chase_next_eligible ON chase_schedule(next_eligible_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateMilestone(ctx context.Context, m model.Milestone) (*model.Milestone, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = model.MilestoneStatusOpen
	}
	m.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO milestones (id, org_id, project_id, po_id, title, expected_date, payment_pct, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.OrgID, m.ProjectID, m.POID, m.Title, m.ExpectedDate, m.PaymentPct, string(m.Status), m.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert milestone")
	}
	return &m, nil
}

// milestoneColumns is the COPY column list for bulk schedule imports.
var milestoneColumns = []string{"id", "org_id", "project_id", "po_id", "title", "expected_date", "payment_pct", "status", "created_at"}

func (s *PostgresStore) BulkInsertMilestones(ctx context.Context, ms []model.Milestone) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(ms))
	for _, m := range ms {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.Status == "" {
			m.Status = model.MilestoneStatusOpen
		}
		rows = append(rows, []any{m.ID, m.OrgID, m.ProjectID, m.POID, m.Title, m.ExpectedDate, m.PaymentPct, string(m.Status), now})
	}
	n, err := db.CopyFrom(ctx, s.pool, "milestones", milestoneColumns, rows)
	return n, eris.Wrap(err, "postgres: bulk insert milestones")
}

func (s *PostgresStore) GetMilestone(ctx context.Context, scope model.Scope, id string) (*model.Milestone, error) {
	var m model.Milestone
	err := s.pool.QueryRow(ctx,
		`SELECT id, org_id, project_id, po_id, title, expected_date, payment_pct, status, created_at FROM milestones WHERE id = $1 AND org_id = $2`,
		id, scope.OrgID,
	).Scan(&m.ID, &m.OrgID, &m.ProjectID, &m.POID, &m.Title, &m.ExpectedDate, &m.PaymentPct, &m.Status, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "milestone %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get milestone %s", id)
	}
	return &m, nil
}

func (s *PostgresStore) ListOpenMilestones(ctx context.Context, scope model.Scope) ([]model.Milestone, error) {
	query := `SELECT id, org_id, project_id, po_id, title, expected_date, payment_pct, status, created_at FROM milestones WHERE org_id = $1 AND status = $2`
	args := []any{scope.OrgID, string(model.MilestoneStatusOpen)}
	if scope.ProjectID != "" {
		query += ` AND project_id = $3`
		args = append(args, scope.ProjectID)
	}
	query += ` ORDER BY expected_date ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list open milestones")
	}
	defer rows.Close()

	var out []model.Milestone
	for rows.Next() {
		var m model.Milestone
		if err := rows.Scan(&m.ID, &m.OrgID, &m.ProjectID, &m.POID, &m.Title, &m.ExpectedDate, &m.PaymentPct, &m.Status, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan milestone")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list open milestones iterate")
}

func (s *PostgresStore) UpdateMilestoneStatus(ctx context.Context, id string, status model.MilestoneStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE milestones SET status = $1 WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update milestone status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "milestone %s", id)
	}
	return nil
}

func (s *PostgresStore) AppendReport(ctx context.Context, r model.ProgressReport) (*model.ProgressReport, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO progress_reports (id, milestone_id, org_id, channel, percent, note, reporter_id, tracking_ref, trust_tier, submitted_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.MilestoneID, r.OrgID, string(r.Channel), r.Percent, r.Note, r.ReporterID, r.TrackingRef, string(r.TrustTier), r.SubmittedAt, r.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: append report")
	}
	return &r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, milestoneID string) ([]model.ProgressReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, milestone_id, org_id, channel, percent, note, reporter_id, tracking_ref, trust_tier, submitted_at, created_at FROM progress_reports WHERE milestone_id = $1 ORDER BY submitted_at ASC, created_at ASC`,
		milestoneID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var out []model.ProgressReport
	for rows.Next() {
		var r model.ProgressReport
		if err := rows.Scan(&r.ID, &r.MilestoneID, &r.OrgID, &r.Channel, &r.Percent, &r.Note, &r.ReporterID, &r.TrackingRef, &r.TrustTier, &r.SubmittedAt, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list reports iterate")
}

func (s *PostgresStore) InsertShipmentEvent(ctx context.Context, e model.ShipmentEvent) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO shipment_events (id, subscription_id, container_id, milestone_id, org_id, status, event_type, carrier_code, event_time, location, vessel, estimated_eta, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) ON CONFLICT (subscription_id, container_id, event_time) DO NOTHING`,
		e.ID, e.SubscriptionID, e.ContainerID, e.MilestoneID, e.OrgID, string(e.Status), string(e.EventType), e.CarrierCode, e.EventTime, e.Location, e.Vessel, e.EstimatedETA, e.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: insert shipment event")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) LatestShipmentEvent(ctx context.Context, containerID string) (*model.ShipmentEvent, error) {
	var e model.ShipmentEvent
	err := s.pool.QueryRow(ctx,
		`SELECT id, subscription_id, container_id, milestone_id, org_id, status, event_type, carrier_code, event_time, location, vessel, estimated_eta, created_at FROM shipment_events WHERE container_id = $1 ORDER BY event_time DESC LIMIT 1`,
		containerID,
	).Scan(&e.ID, &e.SubscriptionID, &e.ContainerID, &e.MilestoneID, &e.OrgID, &e.Status, &e.EventType, &e.CarrierCode, &e.EventTime, &e.Location, &e.Vessel, &e.EstimatedETA, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "shipment event for %s", containerID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest shipment event %s", containerID)
	}
	return &e, nil
}

func (s *PostgresStore) UpsertMilestoneState(ctx context.Context, st model.MilestoneState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO milestone_states (milestone_id, percent, trust_tier, report_id, as_of, last_seen_at, is_forecast, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (milestone_id) DO UPDATE SET percent = EXCLUDED.percent, trust_tier = EXCLUDED.trust_tier, report_id = EXCLUDED.report_id, as_of = EXCLUDED.as_of, last_seen_at = EXCLUDED.last_seen_at, is_forecast = EXCLUDED.is_forecast, updated_at = EXCLUDED.updated_at`,
		st.MilestoneID, st.Percent, string(st.TrustTier), st.ReportID, st.AsOf, st.LastSeenAt, st.IsForecast, st.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert milestone state")
}

func (s *PostgresStore) GetMilestoneState(ctx context.Context, milestoneID string) (*model.MilestoneState, error) {
	var st model.MilestoneState
	err := s.pool.QueryRow(ctx,
		`SELECT milestone_id, percent, trust_tier, report_id, as_of, last_seen_at, is_forecast, updated_at FROM milestone_states WHERE milestone_id = $1`,
		milestoneID,
	).Scan(&st.MilestoneID, &st.Percent, &st.TrustTier, &st.ReportID, &st.AsOf, &st.LastSeenAt, &st.IsForecast, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "state for milestone %s", milestoneID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get milestone state %s", milestoneID)
	}
	return &st, nil
}

func (s *PostgresStore) ListMilestoneStates(ctx context.Context, scope model.Scope) ([]model.MilestoneState, error) {
	query := `SELECT s.milestone_id, s.percent, s.trust_tier, s.report_id, s.as_of, s.last_seen_at, s.is_forecast, s.updated_at FROM milestone_states s JOIN milestones m ON m.id = s.milestone_id WHERE m.org_id = $1`
	args := []any{scope.OrgID}
	if scope.ProjectID != "" {
		query += ` AND m.project_id = $2`
		args = append(args, scope.ProjectID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list milestone states")
	}
	defer rows.Close()

	var out []model.MilestoneState
	for rows.Next() {
		var st model.MilestoneState
		if err := rows.Scan(&st.MilestoneID, &st.Percent, &st.TrustTier, &st.ReportID, &st.AsOf, &st.LastSeenAt, &st.IsForecast, &st.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan milestone state")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list milestone states iterate")
}

func (s *PostgresStore) CreateConflict(ctx context.Context, c model.ConflictRecord) (*model.ConflictRecord, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.Status = model.ConflictOpen
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conflicts (id, milestone_id, org_id, kind, status, variance, report_a_id, report_b_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.MilestoneID, c.OrgID, string(c.Kind), string(c.Status), c.Variance, c.ReportAID, c.ReportBID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert conflict")
	}
	return &c, nil
}

const conflictColumns = `id, milestone_id, org_id, kind, status, variance, report_a_id, report_b_id, winning_report_id, decided_by, decision_note, decided_at, created_at, updated_at`

func scanConflict(row pgx.Row) (*model.ConflictRecord, error) {
	var c model.ConflictRecord
	err := row.Scan(&c.ID, &c.MilestoneID, &c.OrgID, &c.Kind, &c.Status, &c.Variance, &c.ReportAID, &c.ReportBID, &c.WinningReportID, &c.DecidedBy, &c.DecisionNote, &c.DecidedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) GetConflict(ctx context.Context, id string) (*model.ConflictRecord, error) {
	c, err := scanConflict(s.pool.QueryRow(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "conflict %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get conflict %s", id)
	}
	return c, nil
}

func (s *PostgresStore) FindOpenConflict(ctx context.Context, milestoneID string, kind model.ConflictKind) (*model.ConflictRecord, error) {
	c, err := scanConflict(s.pool.QueryRow(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE milestone_id = $1 AND kind = $2 AND status = $3 ORDER BY created_at DESC LIMIT 1`,
		milestoneID, string(kind), string(model.ConflictOpen)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "open conflict for milestone %s", milestoneID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find open conflict %s", milestoneID)
	}
	return c, nil
}

func (s *PostgresStore) UpdateConflictVariance(ctx context.Context, id string, variance float64, reportAID, reportBID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conflicts SET variance = $1, report_a_id = $2, report_b_id = $3, updated_at = $4 WHERE id = $5 AND status = $6`,
		variance, reportAID, reportBID, time.Now().UTC(), id, string(model.ConflictOpen),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update conflict variance %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "open conflict %s", id)
	}
	return nil
}

func (s *PostgresStore) ResolveConflict(ctx context.Context, id string, status model.ConflictStatus, winningReportID, decidedBy, note string) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE conflicts SET status = $1, winning_report_id = $2, decided_by = $3, decision_note = $4, decided_at = $5, updated_at = $5 WHERE id = $6 AND status = $7`,
		string(status), winningReportID, decidedBy, note, now, id, string(model.ConflictOpen),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve conflict %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "open conflict %s", id)
	}
	return nil
}

func (s *PostgresStore) ListConflicts(ctx context.Context, scope model.Scope, filter ConflictFilter) ([]model.ConflictRecord, error) {
	query := `SELECT ` + conflictColumns + ` FROM conflicts WHERE org_id = $1`
	args := []any{scope.OrgID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list conflicts")
	}
	defer rows.Close()

	var out []model.ConflictRecord
	for rows.Next() {
		var c model.ConflictRecord
		if err := rows.Scan(&c.ID, &c.MilestoneID, &c.OrgID, &c.Kind, &c.Status, &c.Variance, &c.ReportAID, &c.ReportBID, &c.WinningReportID, &c.DecidedBy, &c.DecisionNote, &c.DecidedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan conflict")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list conflicts iterate")
}

func (s *PostgresStore) GetChaseEntry(ctx context.Context, milestoneID string) (*model.ChaseScheduleEntry, error) {
	var e model.ChaseScheduleEntry
	err := s.pool.QueryRow(ctx,
		`SELECT milestone_id, org_id, risk_tier, escalation, missed_count, last_reminder_at, next_eligible_at, updated_at FROM chase_schedule WHERE milestone_id = $1`,
		milestoneID,
	).Scan(&e.MilestoneID, &e.OrgID, &e.RiskTier, &e.Escalation, &e.MissedCount, &e.LastReminderAt, &e.NextEligibleAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "chase entry for milestone %s", milestoneID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get chase entry %s", milestoneID)
	}
	return &e, nil
}

func (s *PostgresStore) UpsertChaseEntry(ctx context.Context, e model.ChaseScheduleEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chase_schedule (milestone_id, org_id, risk_tier, escalation, missed_count, last_reminder_at, next_eligible_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (milestone_id) DO UPDATE SET risk_tier = EXCLUDED.risk_tier, escalation = EXCLUDED.escalation, missed_count = EXCLUDED.missed_count, last_reminder_at = EXCLUDED.last_reminder_at, next_eligible_at = EXCLUDED.next_eligible_at, updated_at = EXCLUDED.updated_at`,
		e.MilestoneID, e.OrgID, string(e.RiskTier), int(e.Escalation), e.MissedCount, e.LastReminderAt, e.NextEligibleAt, e.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert chase entry")
}
