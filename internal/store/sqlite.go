package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for
// local development and integration tests; production runs on Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS milestones (
	id            TEXT PRIMARY KEY,
	org_id        TEXT NOT NULL,
	project_id    TEXT NOT NULL DEFAULT '',
	po_id         TEXT NOT NULL,
	title         TEXT NOT NULL,
	expected_date DATETIME NOT NULL,
	payment_pct   REAL NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'open',
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS progress_reports (
	id           TEXT PRIMARY KEY,
	milestone_id TEXT NOT NULL REFERENCES milestones(id),
	org_id       TEXT NOT NULL,
	channel      TEXT NOT NULL,
	percent      REAL NOT NULL,
	note         TEXT NOT NULL DEFAULT '',
	reporter_id  TEXT NOT NULL,
	tracking_ref TEXT NOT NULL DEFAULT '',
	trust_tier   TEXT NOT NULL,
	submitted_at DATETIME NOT NULL,
	created_at   DATETIME NOT NULL
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
	event_time      DATETIME NOT NULL,
	location        TEXT NOT NULL DEFAULT '',
	vessel          TEXT NOT NULL DEFAULT '',
	estimated_eta   DATETIME,
	created_at      DATETIME NOT NULL,
	UNIQUE (subscription_id, container_id, event_time)
);

CREATE TABLE IF NOT EXISTS milestone_states (
	milestone_id TEXT PRIMARY KEY REFERENCES milestones(id),
	percent      REAL NOT NULL,
	trust_tier   TEXT NOT NULL,
	report_id    TEXT NOT NULL DEFAULT '',
	as_of        DATETIME NOT NULL,
	last_seen_at DATETIME NOT NULL,
	is_forecast  INTEGER NOT NULL DEFAULT 0,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS conflicts (
	id                TEXT PRIMARY KEY,
	milestone_id      TEXT NOT NULL REFERENCES milestones(id),
	org_id            TEXT NOT NULL,
	kind              TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'OPEN',
	variance          REAL NOT NULL,
	report_a_id       TEXT NOT NULL,
	report_b_id       TEXT NOT NULL,
	winning_report_id TEXT NOT NULL DEFAULT '',
	decided_by        TEXT NOT NULL DEFAULT '',
	decision_note     TEXT NOT NULL DEFAULT '',
	decided_at        DATETIME,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS chase_schedule (
	milestone_id     TEXT PRIMARY KEY REFERENCES milestones(id),
	org_id           TEXT NOT NULL,
	risk_tier        TEXT NOT NULL,
	escalation       INTEGER NOT NULL DEFAULT 0,
	missed_count     INTEGER NOT NULL DEFAULT 0,
	last_reminder_at DATETIME,
	next_eligible_at DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_milestones_org_status ON milestones(org_id, status);
CREATE INDEX IF NOT EXISTS idx_reports_milestone_submitted ON progress_reports(milestone_id, submitted_at);
CREATE INDEX IF NOT EXISTS idx_shipment_events_container ON shipment_events(container_id, event_time);
CREATE INDEX IF NOT EXISTS idx_conflicts_milestone_status ON conflicts(milestone_id, status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func (s *SQLiteStore) CreateMilestone(ctx context.Context, m model.Milestone) (*model.Milestone, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = model.MilestoneStatusOpen
	}
	m.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO milestones (id, org_id, project_id, po_id, title, expected_date, payment_pct, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OrgID, m.ProjectID, m.POID, m.Title, m.ExpectedDate, m.PaymentPct, string(m.Status), m.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert milestone")
	}
	return &m, nil
}

func (s *SQLiteStore) BulkInsertMilestones(ctx context.Context, ms []model.Milestone) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin bulk insert")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, m := range ms {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.Status == "" {
			m.Status = model.MilestoneStatusOpen
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO milestones (id, org_id, project_id, po_id, title, expected_date, payment_pct, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.OrgID, m.ProjectID, m.POID, m.Title, m.ExpectedDate, m.PaymentPct, string(m.Status), now,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: bulk insert milestone")
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit bulk insert")
	}
	return n, nil
}

func (s *SQLiteStore) GetMilestone(ctx context.Context, scope model.Scope, id string) (*model.Milestone, error) {
	var m model.Milestone
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, project_id, po_id, title, expected_date, payment_pct, status, created_at FROM milestones WHERE id = ? AND org_id = ?`,
		id, scope.OrgID,
	).Scan(&m.ID, &m.OrgID, &m.ProjectID, &m.POID, &m.Title, &m.ExpectedDate, &m.PaymentPct, &m.Status, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "milestone %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get milestone %s", id)
	}
	return &m, nil
}

func (s *SQLiteStore) ListOpenMilestones(ctx context.Context, scope model.Scope) ([]model.Milestone, error) {
	query := `SELECT id, org_id, project_id, po_id, title, expected_date, payment_pct, status, created_at FROM milestones WHERE org_id = ? AND status = ?`
	args := []any{scope.OrgID, string(model.MilestoneStatusOpen)}
	if scope.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, scope.ProjectID)
	}
	query += ` ORDER BY expected_date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list open milestones")
	}
	defer rows.Close()

	var out []model.Milestone
	for rows.Next() {
		var m model.Milestone
		if err := rows.Scan(&m.ID, &m.OrgID, &m.ProjectID, &m.POID, &m.Title, &m.ExpectedDate, &m.PaymentPct, &m.Status, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan milestone")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list open milestones iterate")
}

func (s *SQLiteStore) UpdateMilestoneStatus(ctx context.Context, id string, status model.MilestoneStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE milestones SET status = ? WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update milestone status %s", id)
	}
	return checkRowsAffected(res, "milestone", id)
}

func (s *SQLiteStore) AppendReport(ctx context.Context, r model.ProgressReport) (*model.ProgressReport, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress_reports (id, milestone_id, org_id, channel, percent, note, reporter_id, tracking_ref, trust_tier, submitted_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.MilestoneID, r.OrgID, string(r.Channel), r.Percent, r.Note, r.ReporterID, r.TrackingRef, string(r.TrustTier), r.SubmittedAt, r.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: append report")
	}
	return &r, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context, milestoneID string) ([]model.ProgressReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, milestone_id, org_id, channel, percent, note, reporter_id, tracking_ref, trust_tier, submitted_at, created_at FROM progress_reports WHERE milestone_id = ? ORDER BY submitted_at ASC, created_at ASC`,
		milestoneID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var out []model.ProgressReport
	for rows.Next() {
		var r model.ProgressReport
		if err := rows.Scan(&r.ID, &r.MilestoneID, &r.OrgID, &r.Channel, &r.Percent, &r.Note, &r.ReporterID, &r.TrackingRef, &r.TrustTier, &r.SubmittedAt, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) InsertShipmentEvent(ctx context.Context, e model.ShipmentEvent) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO shipment_events (id, subscription_id, container_id, milestone_id, org_id, status, event_type, carrier_code, event_time, location, vessel, estimated_eta, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SubscriptionID, e.ContainerID, e.MilestoneID, e.OrgID, string(e.Status), string(e.EventType), e.CarrierCode, e.EventTime, e.Location, e.Vessel, e.EstimatedETA, e.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert shipment event")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) LatestShipmentEvent(ctx context.Context, containerID string) (*model.ShipmentEvent, error) {
	var e model.ShipmentEvent
	var eta sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, subscription_id, container_id, milestone_id, org_id, status, event_type, carrier_code, event_time, location, vessel, estimated_eta, created_at FROM shipment_events WHERE container_id = ? ORDER BY event_time DESC LIMIT 1`,
		containerID,
	).Scan(&e.ID, &e.SubscriptionID, &e.ContainerID, &e.MilestoneID, &e.OrgID, &e.Status, &e.EventType, &e.CarrierCode, &e.EventTime, &e.Location, &e.Vessel, &eta, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "shipment event for %s", containerID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest shipment event %s", containerID)
	}
	if eta.Valid {
		e.EstimatedETA = &eta.Time
	}
	return &e, nil
}

func (s *SQLiteStore) UpsertMilestoneState(ctx context.Context, st model.MilestoneState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO milestone_states (milestone_id, percent, trust_tier, report_id, as_of, last_seen_at, is_forecast, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (milestone_id) DO UPDATE SET percent = excluded.percent, trust_tier = excluded.trust_tier, report_id = excluded.report_id, as_of = excluded.as_of, last_seen_at = excluded.last_seen_at, is_forecast = excluded.is_forecast, updated_at = excluded.updated_at`,
		st.MilestoneID, st.Percent, string(st.TrustTier), st.ReportID, st.AsOf, st.LastSeenAt, st.IsForecast, st.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert milestone state")
}

func (s *SQLiteStore) GetMilestoneState(ctx context.Context, milestoneID string) (*model.MilestoneState, error) {
	var st model.MilestoneState
	err := s.db.QueryRowContext(ctx,
		`SELECT milestone_id, percent, trust_tier, report_id, as_of, last_seen_at, is_forecast, updated_at FROM milestone_states WHERE milestone_id = ?`,
		milestoneID,
	).Scan(&st.MilestoneID, &st.Percent, &st.TrustTier, &st.ReportID, &st.AsOf, &st.LastSeenAt, &st.IsForecast, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "state for milestone %s", milestoneID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get milestone state %s", milestoneID)
	}
	return &st, nil
}

func (s *SQLiteStore) ListMilestoneStates(ctx context.Context, scope model.Scope) ([]model.MilestoneState, error) {
	query := `SELECT s.milestone_id, s.percent, s.trust_tier, s.report_id, s.as_of, s.last_seen_at, s.is_forecast, s.updated_at FROM milestone_states s JOIN milestones m ON m.id = s.milestone_id WHERE m.org_id = ?`
	args := []any{scope.OrgID}
	if scope.ProjectID != "" {
		query += ` AND m.project_id = ?`
		args = append(args, scope.ProjectID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list milestone states")
	}
	defer rows.Close()

	var out []model.MilestoneState
	for rows.Next() {
		var st model.MilestoneState
		if err := rows.Scan(&st.MilestoneID, &st.Percent, &st.TrustTier, &st.ReportID, &st.AsOf, &st.LastSeenAt, &st.IsForecast, &st.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan milestone state")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list milestone states iterate")
}

func (s *SQLiteStore) CreateConflict(ctx context.Context, c model.ConflictRecord) (*model.ConflictRecord, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.Status = model.ConflictOpen
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conflicts (id, milestone_id, org_id, kind, status, variance, report_a_id, report_b_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MilestoneID, c.OrgID, string(c.Kind), string(c.Status), c.Variance, c.ReportAID, c.ReportBID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert conflict")
	}
	return &c, nil
}

func (s *SQLiteStore) scanConflictRow(row *sql.Row) (*model.ConflictRecord, error) {
	var c model.ConflictRecord
	var decidedAt sql.NullTime
	err := row.Scan(&c.ID, &c.MilestoneID, &c.OrgID, &c.Kind, &c.Status, &c.Variance, &c.ReportAID, &c.ReportBID, &c.WinningReportID, &c.DecidedBy, &c.DecisionNote, &decidedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		c.DecidedAt = &decidedAt.Time
	}
	return &c, nil
}

const sqliteConflictColumns = `id, milestone_id, org_id, kind, status, variance, report_a_id, report_b_id, winning_report_id, decided_by, decision_note, decided_at, created_at, updated_at`

func (s *SQLiteStore) GetConflict(ctx context.Context, id string) (*model.ConflictRecord, error) {
	c, err := s.scanConflictRow(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteConflictColumns+` FROM conflicts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "conflict %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get conflict %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) FindOpenConflict(ctx context.Context, milestoneID string, kind model.ConflictKind) (*model.ConflictRecord, error) {
	c, err := s.scanConflictRow(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteConflictColumns+` FROM conflicts WHERE milestone_id = ? AND kind = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		milestoneID, string(kind), string(model.ConflictOpen)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "open conflict for milestone %s", milestoneID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find open conflict %s", milestoneID)
	}
	return c, nil
}

func (s *SQLiteStore) UpdateConflictVariance(ctx context.Context, id string, variance float64, reportAID, reportBID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conflicts SET variance = ?, report_a_id = ?, report_b_id = ?, updated_at = ? WHERE id = ? AND status = ?`,
		variance, reportAID, reportBID, time.Now().UTC(), id, string(model.ConflictOpen),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update conflict variance %s", id)
	}
	return checkRowsAffected(res, "open conflict", id)
}

func (s *SQLiteStore) ResolveConflict(ctx context.Context, id string, status model.ConflictStatus, winningReportID, decidedBy, note string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE conflicts SET status = ?, winning_report_id = ?, decided_by = ?, decision_note = ?, decided_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(status), winningReportID, decidedBy, note, now, now, id, string(model.ConflictOpen),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve conflict %s", id)
	}
	return checkRowsAffected(res, "open conflict", id)
}

func (s *SQLiteStore) ListConflicts(ctx context.Context, scope model.Scope, filter ConflictFilter) ([]model.ConflictRecord, error) {
	query := `SELECT ` + sqliteConflictColumns + ` FROM conflicts WHERE org_id = ?`
	args := []any{scope.OrgID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list conflicts")
	}
	defer rows.Close()

	var out []model.ConflictRecord
	for rows.Next() {
		var c model.ConflictRecord
		var decidedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.MilestoneID, &c.OrgID, &c.Kind, &c.Status, &c.Variance, &c.ReportAID, &c.ReportBID, &c.WinningReportID, &c.DecidedBy, &c.DecisionNote, &decidedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan conflict")
		}
		if decidedAt.Valid {
			c.DecidedAt = &decidedAt.Time
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list conflicts iterate")
}

func (s *SQLiteStore) GetChaseEntry(ctx context.Context, milestoneID string) (*model.ChaseScheduleEntry, error) {
	var e model.ChaseScheduleEntry
	var lastReminder sql.NullTime
	var escalation int
	err := s.db.QueryRowContext(ctx,
		`SELECT milestone_id, org_id, risk_tier, escalation, missed_count, last_reminder_at, next_eligible_at, updated_at FROM chase_schedule WHERE milestone_id = ?`,
		milestoneID,
	).Scan(&e.MilestoneID, &e.OrgID, &e.RiskTier, &escalation, &e.MissedCount, &lastReminder, &e.NextEligibleAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "chase entry for milestone %s", milestoneID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get chase entry %s", milestoneID)
	}
	e.Escalation = model.EscalationLevel(escalation)
	if lastReminder.Valid {
		e.LastReminderAt = &lastReminder.Time
	}
	return &e, nil
}

func (s *SQLiteStore) UpsertChaseEntry(ctx context.Context, e model.ChaseScheduleEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chase_schedule (milestone_id, org_id, risk_tier, escalation, missed_count, last_reminder_at, next_eligible_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (milestone_id) DO UPDATE SET risk_tier = excluded.risk_tier, escalation = excluded.escalation, missed_count = excluded.missed_count, last_reminder_at = excluded.last_reminder_at, next_eligible_at = excluded.next_eligible_at, updated_at = excluded.updated_at`,
		e.MilestoneID, e.OrgID, string(e.RiskTier), int(e.Escalation), e.MissedCount, e.LastReminderAt, e.NextEligibleAt, e.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert chase entry")
}
