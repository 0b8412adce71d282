package models

import "fmt"

// ProductStatus is derived from the demand aggregates and never set by clients
type ProductStatus string

const (
	ProductSufficient ProductStatus = "sufficient"
	ProductOnDemand   ProductStatus = "on_demand"
)

// DeriveProductStatus returns on_demand iff required exceeds available
func DeriveProductStatus(totalRequired, available int64) ProductStatus {
	if totalRequired > available {
		return ProductOnDemand
	}
	return ProductSufficient
}

// OrderStatus is the closed set of order states
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderAllocated OrderStatus = "allocated"
	OrderCancelled OrderStatus = "cancelled"
	// OrderDelivered is only reachable through a shipment delivery
	OrderDelivered OrderStatus = "delivered"
)

// ParseOrderStatus validates a client supplied status
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(s); status {
	case OrderPending, OrderAllocated, OrderCancelled, OrderDelivered:
		return status, nil
	}
	return "", fmt.Errorf("invalid order status %q", s)
}

// Active reports whether the order counts towards its product's required quantity
func (s OrderStatus) Active() bool {
	return s == OrderPending || s == OrderAllocated
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderAllocated, OrderCancelled},
	OrderAllocated: {OrderPending, OrderCancelled, OrderDelivered},
	OrderCancelled: {OrderPending},
}

// CanTransitionTo reports whether moving from s to next is legal.
// Re-saving the same status is legal only while the order is active,
// since that is how required quantity edits are expressed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return s.Active()
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderState is the persisted (status, quantity) pair the cascade diffs against
type OrderState struct {
	Status      OrderStatus
	RequiredQty int64
}

// RequiredDelta returns the change an order write makes to its product's
// total_required_quantity. A nil old state means the order is being created.
func RequiredDelta(old *OrderState, next OrderState) int64 {
	if old == nil {
		if next.Status.Active() {
			return next.RequiredQty
		}
		return 0
	}

	switch {
	case old.Status.Active() && next.Status.Active():
		return next.RequiredQty - old.RequiredQty
	case old.Status.Active():
		return -old.RequiredQty
	case next.Status.Active():
		return next.RequiredQty
	default:
		return 0
	}
}

// ShipmentStatus is the closed set of shipment states
type ShipmentStatus string

const (
	ShipmentInTransit ShipmentStatus = "in_transit"
	ShipmentDelivered ShipmentStatus = "delivered"
	ShipmentFailed    ShipmentStatus = "failed"
)

// ParseShipmentStatus validates a client supplied status
func ParseShipmentStatus(s string) (ShipmentStatus, error) {
	switch status := ShipmentStatus(s); status {
	case ShipmentInTransit, ShipmentDelivered, ShipmentFailed:
		return status, nil
	}
	return "", fmt.Errorf("invalid shipment status %q", s)
}

// Terminal reports whether no further transition is possible
func (s ShipmentStatus) Terminal() bool {
	return s == ShipmentDelivered || s == ShipmentFailed
}

// CanTransitionTo reports whether moving from s to next is legal.
// Re-saving the current status is accepted and has no effect.
func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	if s == next {
		return true
	}
	return s == ShipmentInTransit && (next == ShipmentDelivered || next == ShipmentFailed)
}
