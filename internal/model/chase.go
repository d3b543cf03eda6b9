package model

import "time"

// RiskTier classifies how urgently a milestone needs chasing, computed from
// days-until-due and days-since-last-report.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// EscalationLevel selects the recipient chain for a reminder. Levels only
// advance after consecutive missed reminders, never arbitrarily.
type EscalationLevel int

const (
	EscalateReporter EscalationLevel = iota
	EscalateProjectManager
	EscalateExecutive
)

// String returns the recipient-chain name for the level.
func (l EscalationLevel) String() string {
	switch l {
	case EscalateProjectManager:
		return "project_manager"
	case EscalateExecutive:
		return "executive"
	default:
		return "reporter"
	}
}

// ChaseScheduleEntry tracks per-milestone reminder state. It is created on
// first staleness detection and mutated by every chase run; it effectively
// expires when the milestone closes.
type ChaseScheduleEntry struct {
	MilestoneID    string          `json:"milestone_id"`
	OrgID          string          `json:"org_id"`
	RiskTier       RiskTier        `json:"risk_tier"`
	Escalation     EscalationLevel `json:"escalation"`
	MissedCount    int             `json:"missed_count"`
	LastReminderAt *time.Time      `json:"last_reminder_at,omitempty"`
	NextEligibleAt time.Time       `json:"next_eligible_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ReminderIntent is the side-effecting output of a chase run, handed to an
// external notification collaborator. The engine does not format or
// deliver messages itself.
type ReminderIntent struct {
	MilestoneID   string          `json:"milestone_id"`
	OrgID         string          `json:"org_id"`
	POID          string          `json:"po_id"`
	Title         string          `json:"title"`
	RiskTier      RiskTier        `json:"risk_tier"`
	Escalation    EscalationLevel `json:"escalation"`
	Recipient     string          `json:"recipient"`
	DaysUntilDue  int             `json:"days_until_due"`
	DaysSinceSeen int             `json:"days_since_seen"`
	IsForecast    bool            `json:"is_forecast"`
	IssuedAt      time.Time       `json:"issued_at"`
}
