package model

import "time"

// SourceChannel identifies which inbound channel a progress report arrived
// through. It is the discriminant for the report's tagged-union shape and
// feeds trust scoring.
type SourceChannel string

const (
	ChannelSupplier        SourceChannel = "SUPPLIER"
	ChannelInternal        SourceChannel = "INTERNAL"
	ChannelCarrierVerified SourceChannel = "CARRIER_VERIFIED"
)

// Valid reports whether the channel is one of the known inbound channels.
func (c SourceChannel) Valid() bool {
	switch c {
	case ChannelSupplier, ChannelInternal, ChannelCarrierVerified:
		return true
	}
	return false
}

// TrustTier is the precedence rank assigned to a progress fact based on its
// originating channel. Higher tiers dominate lower ones in aggregation
// regardless of recency.
type TrustTier string

const (
	TierCarrierVerified TrustTier = "CARRIER_VERIFIED"
	TierInternal        TrustTier = "INTERNAL"
	TierSupplier        TrustTier = "SUPPLIER"
	TierForecast        TrustTier = "FORECAST"
)

// tierRank is the single source of truth for trust-tier precedence.
// Tie-breaking anywhere in the system must go through Rank, never a
// duplicated ordering.
var tierRank = map[TrustTier]int{
	TierCarrierVerified: 3,
	TierInternal:        2,
	TierSupplier:        1,
	TierForecast:        0,
}

// Rank returns the numeric precedence of the tier; higher wins.
func (t TrustTier) Rank() int {
	return tierRank[t]
}

// ProgressReport is an immutable fact about a milestone's progress. Reports
// are append-only: they are created once per submission and never mutated,
// so the milestone state can always be recomputed from the full log.
type ProgressReport struct {
	ID          string        `json:"id"`
	MilestoneID string        `json:"milestone_id"`
	OrgID       string        `json:"org_id"`
	Channel     SourceChannel `json:"channel"`
	Percent     float64       `json:"percent"`
	Note        string        `json:"note,omitempty"`
	ReporterID  string        `json:"reporter_id"`
	TrackingRef string        `json:"tracking_ref,omitempty"`
	TrustTier   TrustTier     `json:"trust_tier"`
	SubmittedAt time.Time     `json:"submitted_at"`
	CreatedAt   time.Time     `json:"created_at"`
}
