// Package model defines the core domain entities for milestone progress
// reconciliation: milestones, progress reports, shipment events, conflicts,
// and chase schedule entries.
package model

import "time"

// Scope identifies the tenant boundary for every core operation. It is
// passed explicitly; there is no ambient "active organization" state.
type Scope struct {
	OrgID     string `json:"org_id"`
	ProjectID string `json:"project_id,omitempty"`
}

// MilestoneStatus represents the lifecycle state of a milestone.
type MilestoneStatus string

const (
	MilestoneStatusOpen      MilestoneStatus = "open"
	MilestoneStatusCompleted MilestoneStatus = "completed"
	MilestoneStatusCancelled MilestoneStatus = "cancelled"
)

// Milestone is a scheduled, payment-weighted deliverable within a purchase
// order. Milestones are created when a PO's schedule is established and are
// never deleted, only superseded.
type Milestone struct {
	ID           string          `json:"id"`
	OrgID        string          `json:"org_id"`
	ProjectID    string          `json:"project_id,omitempty"`
	POID         string          `json:"po_id"`
	Title        string          `json:"title"`
	ExpectedDate time.Time       `json:"expected_date"`
	PaymentPct   float64         `json:"payment_pct"`
	Status       MilestoneStatus `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// MilestoneState is the current-state projection for a milestone. It is
// always derivable by replaying the milestone's progress reports in
// trust-tier-then-recency order; it is never edited independently.
type MilestoneState struct {
	MilestoneID string    `json:"milestone_id"`
	Percent     float64   `json:"percent"`
	TrustTier   TrustTier `json:"trust_tier"`
	ReportID    string    `json:"report_id,omitempty"`
	AsOf        time.Time `json:"as_of"`
	// LastSeenAt is the submission time of the newest report of any tier,
	// which may be later than AsOf when a lower-trust report arrives behind
	// the winning one. Staleness decays against this, not AsOf.
	LastSeenAt time.Time `json:"last_seen_at"`
	IsForecast bool      `json:"is_forecast"`
	UpdatedAt  time.Time `json:"updated_at"`
}
