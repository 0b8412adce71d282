package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Domain event types published after a committed mutation
const (
	EventOrderCreated          = "order.created"
	EventOrderUpdated          = "order.updated"
	EventShipmentCreated       = "shipment.created"
	EventShipmentStatusChanged = "shipment.status_changed"
	EventProductRestocked      = "product.restocked"
	EventEmployeeBound         = "employee.bound"
	EventTruckReleased         = "truck.released"
	EventOrdersAllocated       = "orders.allocated"
)

// Event is the envelope of every domain event
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// NewEvent stamps a new event envelope
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
