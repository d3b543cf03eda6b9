package carrier

import (
	"strings"

	"go.uber.org/zap"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
)

// normalized is one row of the carrier-code translation table.
type normalized struct {
	Status    model.ShipmentStatus
	EventType model.ShipmentEventType
}

// eventTable translates DCSA-style carrier event codes into the internal
// (status, event type) vocabulary. Carriers add codes over time; anything
// not listed here maps to the safe default rather than failing ingestion.
var eventTable = map[string]normalized{
	// Shipment received by carrier, not yet moving.
	"RECE": {model.ShipmentPending, model.EventReceived},

	// Equipment and transport movements.
	"LOAD": {model.ShipmentInTransit, model.EventLoaded},
	"DISC": {model.ShipmentInTransit, model.EventDischarged},
	"GTIN": {model.ShipmentInTransit, model.EventGateIn},
	"GTOT": {model.ShipmentInTransit, model.EventGateOut},
	"ARRI": {model.ShipmentInTransit, model.EventArrival},
	"DEPA": {model.ShipmentInTransit, model.EventDeparture},
	"TRSP": {model.ShipmentInTransit, model.EventTransshipment},

	// Final delivery.
	"DLVR": {model.ShipmentDelivered, model.EventDelivered},

	// Disruptions.
	"VDLY": {model.ShipmentException, model.EventVesselDelay},
	"OMIT": {model.ShipmentException, model.EventVesselDelay},
}

// NormalizeEvent translates a carrier event code into the internal status
// and event type. Unknown codes are not an error: they map to
// (PENDING, OTHER) and are logged for later taxonomy expansion, because
// failing ingestion on a new carrier code would lose real tracking data.
func NormalizeEvent(carrierCode string) (model.ShipmentStatus, model.ShipmentEventType) {
	code := strings.ToUpper(strings.TrimSpace(carrierCode))
	if n, ok := eventTable[code]; ok {
		return n.Status, n.EventType
	}
	zap.L().Info("carrier: unknown event code, using default",
		zap.String("code", carrierCode),
	)
	return model.ShipmentPending, model.EventOther
}
