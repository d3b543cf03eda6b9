// Package trust assigns a trust tier to every incoming progress report
// based on its source channel and metadata. The tier ordering itself lives
// on model.TrustTier; this package only decides which tier a report earns.
package trust

import (
	"context"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
)

// EventFinder looks up whether a verifiable shipment event exists for a
// tracking reference. Satisfied by the store.
type EventFinder interface {
	LatestShipmentEvent(ctx context.Context, containerID string) (*model.ShipmentEvent, error)
}

// Scorer derives trust tiers for progress reports.
type Scorer struct {
	events EventFinder
}

// NewScorer creates a Scorer backed by the given event finder.
func NewScorer(events EventFinder) *Scorer {
	return &Scorer{events: events}
}

// ScoreReport returns the trust tier for a report:
//
//   - CARRIER_VERIFIED when the report carries a tracking reference with a
//     matching shipment event on record;
//   - INTERNAL for reports logged by staff (site visits, calls, emails);
//   - SUPPLIER for reports submitted through the external portal.
//
// The top tier is earned by corroboration only. A report claiming the
// carrier channel without a matching shipment event scores as SUPPLIER;
// the channel field alone never raises the tier. FORECAST is never
// assigned here: it is a synthetic tier applied by the staleness flagger
// when no fresh report exists, not by an actual report.
func (s *Scorer) ScoreReport(ctx context.Context, report model.ProgressReport) model.TrustTier {
	if report.TrackingRef != "" && s.events != nil {
		if ev, err := s.events.LatestShipmentEvent(ctx, report.TrackingRef); err == nil && ev != nil {
			return model.TierCarrierVerified
		}
	}
	if report.Channel == model.ChannelInternal {
		return model.TierInternal
	}
	return model.TierSupplier
}
