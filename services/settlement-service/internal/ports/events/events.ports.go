package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher matches shared/kafka.Publisher so the service depends on the port, not on kafka.
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// Notifier hands notifications to the email collaborator (RabbitMQ in production).
type Notifier interface {
	Notify(ctx context.Context, payload interface{}) error
}

const (
	ShipmentCreated       = "shipment.created"
	ShipmentPhaseChanged  = "shipment.phase_changed"
	ShipmentDocumentAdded = "shipment.document_uploaded"
	ShipmentDocumentRated = "shipment.document_evaluated"
	ShipmentEvaluated     = "shipment.evaluated"
	ShipmentFundsLocked   = "shipment.funds_locked"
	ShipmentFundsReleased = "shipment.funds_released"
)

// Event is the envelope written to the event stream.
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Event      string      `json:"event"`
	ShipmentID uint64      `json:"shipment_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func NewEvent(name string, shipmentID uint64, now time.Time, payload interface{}) Event {
	return Event{
		ID:         uuid.New(),
		Event:      name,
		ShipmentID: shipmentID,
		OccurredAt: now.UTC(),
		Payload:    payload,
	}
}
