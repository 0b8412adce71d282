package services

import (
	"context"

	"example.com/backstage/services/warehouse/internal/messaging"
	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Cascade labels used for metrics
const (
	cascadeOrder    = "order"
	cascadeShipment = "shipment"
)

// OrderChange is a partial update of an order. Nil fields keep their value.
type OrderChange struct {
	Status      *models.OrderStatus
	RequiredQty *int64
}

// applyRequiredDelta moves the product's demand aggregate in one atomic write
func applyRequiredDelta(ctx context.Context, repos *repositories.Repositories, productID uint, delta int64, cascade string, fx *effects) error {
	if delta == 0 {
		return nil
	}
	if err := repos.Products.ApplyRequiredDelta(ctx, productID, delta); err != nil {
		return classify(err, "product")
	}
	fx.recordDelta(cascade, delta)
	fx.indexProduct(productID)
	return nil
}

// createOrder inserts an order and adds its demand to the product
func createOrder(ctx context.Context, repos *repositories.Repositories, order *models.Order, fx *effects) error {
	if order.RequiredQty <= 0 {
		return validationErrorf("required_qty must be a positive integer")
	}
	if order.Status == "" {
		order.Status = models.OrderPending
	}
	if order.Status == models.OrderDelivered {
		return transitionErrorf("orders can only be delivered through their shipment")
	}

	if _, err := repos.Products.GetByID(ctx, order.ProductID); err != nil {
		return classify(err, "product")
	}

	if err := repos.Orders.Create(ctx, order); err != nil {
		return classify(err, "order")
	}

	delta := models.RequiredDelta(nil, models.OrderState{Status: order.Status, RequiredQty: order.RequiredQty})
	if err := applyRequiredDelta(ctx, repos, order.ProductID, delta, cascadeOrder, fx); err != nil {
		return err
	}

	fx.emit(messaging.EventOrderCreated, map[string]interface{}{
		"order_id":     order.ID,
		"product_id":   order.ProductID,
		"required_qty": order.RequiredQty,
		"status":       order.Status,
	})
	log.Info().
		Uint("order_id", order.ID).
		Uint("product_id", order.ProductID).
		Int64("delta", delta).
		Msg("Order created")
	return nil
}

// transitionOrder applies change to a persisted order. The prior state is
// read under a row lock, the transition is checked against the order state
// machine, and exactly one delta is applied to the product aggregate.
// An unchanged write is a no-op.
func transitionOrder(ctx context.Context, repos *repositories.Repositories, orderID uint, change OrderChange, cascade string, fx *effects) (*models.Order, error) {
	order, err := repos.Orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, classify(err, "order")
	}

	old := models.OrderState{Status: order.Status, RequiredQty: order.RequiredQty}
	next := old
	if change.Status != nil {
		next.Status = *change.Status
	}
	if change.RequiredQty != nil {
		next.RequiredQty = *change.RequiredQty
	}

	if next.RequiredQty <= 0 {
		return nil, validationErrorf("required_qty must be a positive integer")
	}
	if next == old {
		return order, nil
	}
	if !old.Status.CanTransitionTo(next.Status) {
		if old.Status == next.Status {
			return nil, transitionErrorf("order %d is %s and can no longer be edited", order.ID, old.Status)
		}
		return nil, transitionErrorf("order %d cannot move from %s to %s", order.ID, old.Status, next.Status)
	}
	if cascade == cascadeOrder {
		if err := checkDispatched(ctx, repos, order, next); err != nil {
			return nil, err
		}
	}

	if err := repos.Orders.UpdateState(ctx, order.ID, next); err != nil {
		return nil, classify(err, "order")
	}

	delta := models.RequiredDelta(&old, next)
	if err := applyRequiredDelta(ctx, repos, order.ProductID, delta, cascade, fx); err != nil {
		return nil, err
	}

	if next.Status != old.Status {
		if err := repos.Orders.SyncRetailerStatus(ctx, order.ID, next.Status); err != nil {
			return nil, err
		}
	}

	order.Status = next.Status
	order.RequiredQty = next.RequiredQty

	fx.emit(messaging.EventOrderUpdated, map[string]interface{}{
		"order_id":     order.ID,
		"product_id":   order.ProductID,
		"old_status":   old.Status,
		"status":       next.Status,
		"required_qty": next.RequiredQty,
		"delta":        delta,
	})
	log.Info().
		Uint("order_id", order.ID).
		Str("old_status", string(old.Status)).
		Str("status", string(next.Status)).
		Int64("delta", delta).
		Msg("Order updated")
	return order, nil
}

// checkDispatched guards client edits of an order that already has its
// shipment. While the shipment is in transit the order is frozen so the
// delivery can still land. After a failed shipment the order may only be
// cancelled; a retry is a new order.
func checkDispatched(ctx context.Context, repos *repositories.Repositories, order *models.Order, next models.OrderState) error {
	shipment, err := repos.Shipments.GetByOrder(ctx, order.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case shipment.Status == models.ShipmentInTransit:
		return transitionErrorf("order %d has shipment %d in transit and cannot be changed", order.ID, shipment.ID)
	case next.Status != models.OrderCancelled || next.RequiredQty != order.RequiredQty:
		return transitionErrorf("order %d was already shipped (shipment %d is %s), cancel it and create a new order", order.ID, shipment.ID, shipment.Status)
	}
	return nil
}
