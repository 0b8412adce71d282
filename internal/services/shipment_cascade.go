package services

import (
	"context"
	"fmt"
	"time"

	"example.com/backstage/services/warehouse/internal/messaging"
	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// shipmentNotFound is reported both for missing shipments and for shipments
// owned by another employee
const shipmentNotFound = "Shipment not found or unauthorized"

// createShipment dispatches a pending order on the employee's bound truck.
// The order moves to allocated and the truck becomes unavailable.
func createShipment(ctx context.Context, repos *repositories.Repositories, orderID, employeeID uint, now time.Time, fx *effects) (*models.Shipment, error) {
	employee, err := repos.Employees.GetForUpdate(ctx, employeeID)
	if err != nil {
		return nil, classify(err, "employee")
	}
	if !employee.Bound() {
		return nil, kindErrorf(ErrNoTruckAvailable, "employee %d has no truck assigned", employeeID)
	}

	order, err := repos.Orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, classify(err, "order")
	}
	if order.Status != models.OrderPending {
		return nil, transitionErrorf("order %d is %s, only pending orders can be shipped", order.ID, order.Status)
	}

	if existing, err := repos.Shipments.GetByOrder(ctx, order.ID); err == nil {
		return nil, conflictErrorf("order %d already has shipment %d, create a new order to ship again", order.ID, existing.ID)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	allocated := models.OrderAllocated
	if _, err := transitionOrder(ctx, repos, order.ID, OrderChange{Status: &allocated}, cascadeShipment, fx); err != nil {
		return nil, err
	}

	shipment := &models.Shipment{
		OrderID:      order.ID,
		EmployeeID:   employee.ID,
		TruckID:      *employee.TruckID,
		Status:       models.ShipmentInTransit,
		ShipmentDate: now,
	}
	if err := repos.Shipments.Create(ctx, shipment); err != nil {
		return nil, classify(err, "shipment")
	}

	if err := repos.Trucks.SetAvailable(ctx, shipment.TruckID, false); err != nil {
		return nil, classify(err, "truck")
	}

	fx.indexShipment(shipment.ID)
	fx.emit(messaging.EventShipmentCreated, map[string]interface{}{
		"shipment_id": shipment.ID,
		"order_id":    shipment.OrderID,
		"employee_id": shipment.EmployeeID,
		"truck_id":    shipment.TruckID,
		"status":      shipment.Status,
	})
	log.Info().
		Uint("shipment_id", shipment.ID).
		Uint("order_id", shipment.OrderID).
		Uint("truck_id", shipment.TruckID).
		Msg("Shipment created")
	return shipment, nil
}

// transitionShipment moves an employee's shipment to next. Effects fire only
// on a real transition; re-saving the current status changes nothing.
func transitionShipment(ctx context.Context, repos *repositories.Repositories, shipmentID, employeeID uint, next models.ShipmentStatus, now time.Time, fx *effects) (*models.Shipment, error) {
	shipment, err := repos.Shipments.GetOwnedForUpdate(ctx, shipmentID, employeeID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFoundErrorf(shipmentNotFound)
	}
	if err != nil {
		return nil, err
	}

	old := shipment.Status
	if old == next {
		return shipment, nil
	}
	if !old.CanTransitionTo(next) {
		return nil, transitionErrorf("shipment %d cannot move from %s to %s", shipment.ID, old, next)
	}

	if err := repos.Shipments.TransitionStatus(ctx, shipment.ID, old, next, now); err != nil {
		return nil, classify(err, "shipment")
	}
	shipment.Status = next

	if next == models.ShipmentDelivered {
		shipment.DeliveredAt = &now
		if err := deliver(ctx, repos, shipment, fx); err != nil {
			return nil, err
		}
	}

	fx.indexShipment(shipment.ID)
	fx.emit(messaging.EventShipmentStatusChanged, map[string]interface{}{
		"shipment_id": shipment.ID,
		"order_id":    shipment.OrderID,
		"old_status":  old,
		"status":      next,
	})
	log.Info().
		Uint("shipment_id", shipment.ID).
		Str("old_status", string(old)).
		Str("status", string(next)).
		Msg("Shipment status updated")
	return shipment, nil
}

// deliver applies a delivery exactly once: the order leaves the active set,
// the product records the shipped quantity, and the truck is freed when it
// carries nothing else in transit. The truck may have been rebound to
// another employee since the shipment left.
func deliver(ctx context.Context, repos *repositories.Repositories, shipment *models.Shipment, fx *effects) error {
	order, err := repos.Orders.GetForUpdate(ctx, shipment.OrderID)
	if err != nil {
		return classify(err, "order")
	}
	if order.Status != models.OrderAllocated {
		return conflictErrorf("order %d is %s, only allocated orders can be delivered", order.ID, order.Status)
	}

	delivered := models.OrderDelivered
	if _, err := transitionOrder(ctx, repos, order.ID, OrderChange{Status: &delivered}, cascadeShipment, fx); err != nil {
		return err
	}

	if err := repos.Products.RecordShipped(ctx, order.ProductID, order.RequiredQty); err != nil {
		return classify(err, "product")
	}
	fx.indexProduct(order.ProductID)

	err = repos.Movements.Append(ctx, &models.InventoryMovement{
		ProductID: order.ProductID,
		Kind:      models.MovementShipped,
		Quantity:  order.RequiredQty,
		Reference: fmt.Sprintf("shipment:%d", shipment.ID),
	})
	if err != nil {
		return err
	}

	busy, err := repos.Shipments.TruckInTransit(ctx, shipment.TruckID, shipment.ID)
	if err != nil {
		return err
	}
	if busy {
		return nil
	}

	if err := repos.Trucks.SetAvailable(ctx, shipment.TruckID, true); err != nil {
		return classify(err, "truck")
	}
	fx.emit(messaging.EventTruckReleased, map[string]uint{
		"employee_id": shipment.EmployeeID,
		"truck_id":    shipment.TruckID,
	})
	return nil
}
