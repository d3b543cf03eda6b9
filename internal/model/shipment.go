package model

import (
	"fmt"
	"time"
)

// ShipmentStatus is the internal status vocabulary for carrier tracking.
type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "PENDING"
	ShipmentInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentDelivered ShipmentStatus = "DELIVERED"
	ShipmentException ShipmentStatus = "EXCEPTION"
)

// ShipmentEventType is the internal event vocabulary carrier codes are
// normalized into.
type ShipmentEventType string

const (
	EventReceived      ShipmentEventType = "RECEIVED"
	EventLoaded        ShipmentEventType = "LOADED"
	EventDischarged    ShipmentEventType = "DISCHARGED"
	EventGateIn        ShipmentEventType = "GATE_IN"
	EventGateOut       ShipmentEventType = "GATE_OUT"
	EventArrival       ShipmentEventType = "ARRIVAL"
	EventDeparture     ShipmentEventType = "DEPARTURE"
	EventTransshipment ShipmentEventType = "TRANSSHIPMENT"
	EventDelivered     ShipmentEventType = "DELIVERED"
	EventVesselDelay   ShipmentEventType = "VESSEL_DELAY"
	EventOther         ShipmentEventType = "OTHER"
)

// ShipmentEvent is a normalized carrier-tracking fact. Events are immutable
// and deduplicated on (subscription id, container id, event time) so
// repeated webhook deliveries are no-ops.
type ShipmentEvent struct {
	ID             string            `json:"id"`
	SubscriptionID string            `json:"subscription_id"`
	ContainerID    string            `json:"container_id"`
	MilestoneID    string            `json:"milestone_id,omitempty"`
	OrgID          string            `json:"org_id"`
	Status         ShipmentStatus    `json:"status"`
	EventType      ShipmentEventType `json:"event_type"`
	CarrierCode    string            `json:"carrier_code"`
	EventTime      time.Time         `json:"event_time"`
	Location       string            `json:"location,omitempty"`
	Vessel         string            `json:"vessel,omitempty"`
	EstimatedETA   *time.Time        `json:"estimated_eta,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// DedupeKey returns the idempotency key that suppresses duplicate webhook
// deliveries of the same event.
func (e ShipmentEvent) DedupeKey() string {
	return fmt.Sprintf("%s:%s:%d", e.SubscriptionID, e.ContainerID, e.EventTime.UTC().Unix())
}
