// Package ingest is the write path for progress facts. It validates and
// shapes inbound supplier/internal reports and carrier webhook events,
// appends them to the immutable logs, and triggers the downstream
// recompute and conflict check for the affected milestone.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/InfradynAB/infradyn1-sub007/internal/aggregate"
	"github.com/InfradynAB/infradyn1-sub007/internal/carrier"
	"github.com/InfradynAB/infradyn1-sub007/internal/conflict"
	"github.com/InfradynAB/infradyn1-sub007/internal/model"
	"github.com/InfradynAB/infradyn1-sub007/internal/store"
)

// Validation sentinels. Handlers map these to 422 responses; anything else
// out of the service is a 404 (ErrNotFound) or a 500.
var (
	ErrInvalidPercent = eris.New("ingest: percent must be between 0 and 100")
	ErrInvalidChannel = eris.New("ingest: unknown source channel")
	ErrMissingField   = eris.New("ingest: missing required field")
)

// Service handles inbound report and webhook traffic.
type Service struct {
	store    store.Store
	scorer   TrustScorer
	agg      *aggregate.Aggregator
	detector *conflict.Detector
	lookup   *carrier.Lookup
	now      func() time.Time
}

// TrustScorer assigns a trust tier to an incoming report.
type TrustScorer interface {
	ScoreReport(ctx context.Context, report model.ProgressReport) model.TrustTier
}

// NewService creates the ingest service. The carrier lookup is optional;
// when nil, webhook events are stored with whatever detail the carrier
// pushed and never enriched.
func NewService(st store.Store, scorer TrustScorer, agg *aggregate.Aggregator, det *conflict.Detector, lookup *carrier.Lookup) *Service {
	return &Service{
		store:    st,
		scorer:   scorer,
		agg:      agg,
		detector: det,
		lookup:   lookup,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNow sets a fixed clock for testing.
func (s *Service) WithNow(fn func() time.Time) *Service {
	s.now = fn
	return s
}

// SubmitReportInput is a supplier or internal progress submission.
type SubmitReportInput struct {
	MilestoneID string              `json:"milestone_id"`
	Percent     float64             `json:"percent_complete"`
	Channel     model.SourceChannel `json:"source_channel"`
	Note        string              `json:"note,omitempty"`
	ReporterID  string              `json:"reporter_id"`
	TrackingRef string              `json:"tracking_ref,omitempty"`
	SubmittedAt time.Time           `json:"submitted_at,omitempty"`
}

// SubmitReport validates and appends a progress report, then recomputes
// the milestone state and runs the conflict check. Validation failures are
// rejected synchronously; nothing is coerced.
func (s *Service) SubmitReport(ctx context.Context, scope model.Scope, in SubmitReportInput) (*model.ProgressReport, *model.MilestoneState, error) {
	if in.MilestoneID == "" {
		return nil, nil, eris.Wrap(ErrMissingField, "milestone_id")
	}
	if in.ReporterID == "" {
		return nil, nil, eris.Wrap(ErrMissingField, "reporter_id")
	}
	// CARRIER_VERIFIED is earned via webhook corroboration, never claimed
	// on a submission.
	if !in.Channel.Valid() || in.Channel == model.ChannelCarrierVerified {
		return nil, nil, ErrInvalidChannel
	}
	if in.Percent < 0 || in.Percent > 100 {
		return nil, nil, ErrInvalidPercent
	}
	if in.TrackingRef != "" {
		normalized, err := carrier.ValidateContainerID(in.TrackingRef)
		if err != nil {
			return nil, nil, err
		}
		in.TrackingRef = normalized
	}

	// Unknown milestone surfaces as store.ErrNotFound for the 404 mapping.
	milestone, err := s.store.GetMilestone(ctx, scope, in.MilestoneID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	submittedAt := in.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = now
	}

	report := model.ProgressReport{
		ID:          uuid.NewString(),
		MilestoneID: milestone.ID,
		OrgID:       milestone.OrgID,
		Channel:     in.Channel,
		Percent:     in.Percent,
		Note:        in.Note,
		ReporterID:  in.ReporterID,
		TrackingRef: in.TrackingRef,
		SubmittedAt: submittedAt,
		CreatedAt:   now,
	}
	report.TrustTier = s.scorer.ScoreReport(ctx, report)

	stored, err := s.store.AppendReport(ctx, report)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: append report")
	}

	state, err := s.agg.Recompute(ctx, scope, milestone.ID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: recompute state")
	}

	// Conflict detection is advisory: a detector failure must not fail the
	// submission, the report is already durable.
	if _, err := s.detector.CheckConflict(ctx, scope, milestone.ID); err != nil {
		zap.L().Warn("ingest: conflict check failed",
			zap.String("milestone", milestone.ID),
			zap.Error(err),
		)
	}

	return stored, state, nil
}

// WebhookInput is the carrier tracking webhook payload.
type WebhookInput struct {
	SubscriptionID  string `json:"subscription_id"`
	ContainerNumber string `json:"container_number"`
	MilestoneID     string `json:"milestone_id,omitempty"`
	Event           struct {
		EventTypeCode string     `json:"event_type_code"`
		EventDateTime time.Time  `json:"event_date_time"`
		Location      string     `json:"location,omitempty"`
		Vessel        string     `json:"vessel,omitempty"`
		EstimatedETA  *time.Time `json:"estimated_eta,omitempty"`
	} `json:"event"`
}

// WebhookResult reports what a carrier webhook delivery did.
type WebhookResult struct {
	Event     *model.ShipmentEvent `json:"event"`
	Duplicate bool                 `json:"duplicate"`
}

// HandleCarrierWebhook validates, normalizes, and persists a carrier
// event. Duplicate deliveries are detected on the idempotency key and
// treated as a successful no-op. Unknown event codes are accepted with
// the default mapping. When the event is linked to a milestone, a
// delivered container produces a carrier-verified report at 100% and the
// schedule conflict check runs against the fresh event.
func (s *Service) HandleCarrierWebhook(ctx context.Context, scope model.Scope, in WebhookInput) (*WebhookResult, error) {
	if in.SubscriptionID == "" {
		return nil, eris.Wrap(ErrMissingField, "subscription_id")
	}
	if in.Event.EventDateTime.IsZero() {
		return nil, eris.Wrap(ErrMissingField, "event.event_date_time")
	}

	containerID, err := carrier.ValidateContainerID(in.ContainerNumber)
	if err != nil {
		return nil, err
	}

	status, eventType := carrier.NormalizeEvent(in.Event.EventTypeCode)

	event := model.ShipmentEvent{
		ID:             uuid.NewString(),
		SubscriptionID: in.SubscriptionID,
		ContainerID:    containerID,
		MilestoneID:    in.MilestoneID,
		OrgID:          scope.OrgID,
		Status:         status,
		EventType:      eventType,
		CarrierCode:    in.Event.EventTypeCode,
		EventTime:      in.Event.EventDateTime,
		Location:       in.Event.Location,
		Vessel:         in.Event.Vessel,
		EstimatedETA:   in.Event.EstimatedETA,
		CreatedAt:      s.now(),
	}

	// Best-effort enrichment: the push payload rarely carries an ETA, the
	// lookup API usually does. Failures leave the event as pushed.
	if event.EstimatedETA == nil && s.lookup != nil {
		if detail, err := s.lookup.Track(ctx, containerID); err == nil && detail.EstimatedETA != nil {
			event.EstimatedETA = detail.EstimatedETA
			if event.Vessel == "" {
				event.Vessel = detail.Vessel
			}
			if event.Location == "" {
				event.Location = detail.Location
			}
		} else if err != nil {
			zap.L().Debug("ingest: carrier lookup enrichment failed",
				zap.String("container", containerID),
				zap.Error(err),
			)
		}
	}

	inserted, err := s.store.InsertShipmentEvent(ctx, event)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: insert shipment event")
	}
	if !inserted {
		zap.L().Debug("ingest: duplicate webhook delivery suppressed",
			zap.String("dedupe_key", event.DedupeKey()),
		)
		return &WebhookResult{Event: &event, Duplicate: true}, nil
	}

	if in.MilestoneID != "" {
		s.applyCarrierEvent(ctx, scope, event)
	}

	return &WebhookResult{Event: &event, Duplicate: false}, nil
}

// applyCarrierEvent folds a milestone-linked event into the report log.
// Downstream failures are logged, not returned: the event itself is
// already durable and a retry of the webhook would be deduplicated.
func (s *Service) applyCarrierEvent(ctx context.Context, scope model.Scope, event model.ShipmentEvent) {
	if event.Status == model.ShipmentDelivered {
		report := model.ProgressReport{
			ID:          uuid.NewString(),
			MilestoneID: event.MilestoneID,
			OrgID:       event.OrgID,
			Channel:     model.ChannelCarrierVerified,
			Percent:     100,
			Note:        "container delivered",
			ReporterID:  "carrier:" + event.SubscriptionID,
			TrackingRef: event.ContainerID,
			TrustTier:   model.TierCarrierVerified,
			SubmittedAt: event.EventTime,
			CreatedAt:   s.now(),
		}
		if _, err := s.store.AppendReport(ctx, report); err != nil {
			zap.L().Warn("ingest: carrier report append failed",
				zap.String("milestone", event.MilestoneID),
				zap.Error(err),
			)
			return
		}
		if _, err := s.agg.Recompute(ctx, scope, event.MilestoneID); err != nil {
			zap.L().Warn("ingest: recompute after carrier event failed",
				zap.String("milestone", event.MilestoneID),
				zap.Error(err),
			)
		}
	}

	if _, err := s.detector.CheckConflict(ctx, scope, event.MilestoneID); err != nil {
		zap.L().Warn("ingest: conflict check after carrier event failed",
			zap.String("milestone", event.MilestoneID),
			zap.Error(err),
		)
	}
}
