package model

import "time"

// ConflictKind distinguishes what kind of disagreement was detected.
type ConflictKind string

const (
	// ConflictProgressVariance: supplier and internal reports disagree on
	// percent complete beyond the configured threshold.
	ConflictProgressVariance ConflictKind = "progress_variance"
	// ConflictScheduleVariance: a carrier-verified arrival estimate
	// contradicts the milestone's required-on-site date beyond tolerance.
	ConflictScheduleVariance ConflictKind = "schedule_variance"
)

// ConflictStatus is the adjudication lifecycle of a conflict record.
// ADJUDICATED and DISMISSED are terminal.
type ConflictStatus string

const (
	ConflictOpen        ConflictStatus = "OPEN"
	ConflictAdjudicated ConflictStatus = "ADJUDICATED"
	ConflictDismissed   ConflictStatus = "DISMISSED"
)

// ConflictRecord links a milestone to two disagreeing facts. The detector
// creates and updates OPEN records; only a human adjudication action moves
// a record to a terminal state. The detector never silently picks a winner.
type ConflictRecord struct {
	ID          string         `json:"id"`
	MilestoneID string         `json:"milestone_id"`
	OrgID       string         `json:"org_id"`
	Kind        ConflictKind   `json:"kind"`
	Status      ConflictStatus `json:"status"`
	Variance    float64        `json:"variance"`
	ReportAID   string         `json:"report_a_id"`
	ReportBID   string         `json:"report_b_id"`

	// Adjudication outcome. The winning report becomes authoritative for
	// humans; the immutable report log is never rewritten.
	WinningReportID string     `json:"winning_report_id,omitempty"`
	DecidedBy       string     `json:"decided_by,omitempty"`
	DecisionNote    string     `json:"decision_note,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the conflict has been resolved by a human.
func (c ConflictRecord) Terminal() bool {
	return c.Status == ConflictAdjudicated || c.Status == ConflictDismissed
}
