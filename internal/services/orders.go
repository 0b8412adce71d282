package services

import (
	"context"
	"time"

	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"
)

// CreateOrderInput is the payload for a new order
type CreateOrderInput struct {
	ProductID   uint       `json:"product_id" binding:"required"`
	RequiredQty int64      `json:"required_qty" binding:"required,gt=0"`
	Status      string     `json:"status" binding:"omitempty,oneof=pending allocated cancelled"`
	RetailerID  *uint      `json:"retailer_id"`
	OrderDate   *time.Time `json:"order_date"`
}

// CreateOrder records demand for a product and links the ordering retailer
func (s *WarehouseService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	status := models.OrderPending
	if in.Status != "" {
		parsed, err := models.ParseOrderStatus(in.Status)
		if err != nil {
			return nil, validationErrorf("%s", err.Error())
		}
		status = parsed
	}

	orderDate := s.now()
	if in.OrderDate != nil {
		orderDate = *in.OrderDate
	}

	order := &models.Order{
		ProductID:   in.ProductID,
		RequiredQty: in.RequiredQty,
		Status:      status,
		OrderDate:   orderDate,
	}
	err := s.inTx(ctx, "create-order", func(repos *repositories.Repositories, fx *effects) error {
		if in.RetailerID != nil {
			if _, err := repos.Retailers.GetByID(ctx, *in.RetailerID); err != nil {
				return classify(err, "retailer")
			}
		}

		if err := createOrder(ctx, repos, order, fx); err != nil {
			return err
		}

		if in.RetailerID != nil {
			link := &models.RetailerOrder{
				RetailerID: *in.RetailerID,
				OrderID:    order.ID,
				Status:     order.Status,
				OrderDate:  order.OrderDate,
			}
			if err := repos.Orders.LinkRetailer(ctx, link); err != nil {
				return classify(err, "retailer order")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderInput is a partial order update
type UpdateOrderInput struct {
	Status      *string `json:"status"`
	RequiredQty *int64  `json:"required_qty"`
}

// UpdateOrder changes an order's status and/or quantity. Delivery is not a
// client transition; orders become delivered through their shipment.
func (s *WarehouseService) UpdateOrder(ctx context.Context, id uint, in UpdateOrderInput) (*models.Order, error) {
	if in.Status == nil && in.RequiredQty == nil {
		return nil, validationErrorf("nothing to update, provide status or required_qty")
	}

	var change OrderChange
	if in.Status != nil {
		status, err := models.ParseOrderStatus(*in.Status)
		if err != nil {
			return nil, validationErrorf("%s", err.Error())
		}
		if status == models.OrderDelivered {
			return nil, transitionErrorf("orders can only be delivered through their shipment")
		}
		change.Status = &status
	}
	if in.RequiredQty != nil {
		if *in.RequiredQty <= 0 {
			return nil, validationErrorf("required_qty must be a positive integer")
		}
		change.RequiredQty = in.RequiredQty
	}

	var order *models.Order
	err := s.inTx(ctx, "update-order", func(repos *repositories.Repositories, fx *effects) error {
		var err error
		order, err = transitionOrder(ctx, repos, id, change, cascadeOrder, fx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns orders newest first, optionally filtered by status
func (s *WarehouseService) ListOrders(ctx context.Context, status string, page repositories.Page) ([]models.Order, int64, error) {
	filter := repositories.OrderFilter{}
	if status != "" {
		parsed, err := models.ParseOrderStatus(status)
		if err != nil {
			return nil, 0, validationErrorf("%s", err.Error())
		}
		filter.Status = parsed
	}
	return s.listOrders(ctx, "list-orders", filter, page)
}

// EmployeeOrders returns the orders an employee has shipments for
func (s *WarehouseService) EmployeeOrders(ctx context.Context, employeeID uint, page repositories.Page) ([]models.Order, int64, error) {
	return s.listOrders(ctx, "employee-orders", repositories.OrderFilter{EmployeeID: employeeID}, page)
}

func (s *WarehouseService) listOrders(ctx context.Context, op string, filter repositories.OrderFilter, page repositories.Page) ([]models.Order, int64, error) {
	var (
		orders []models.Order
		total  int64
	)
	err := s.read(ctx, op, func(ctx context.Context) error {
		var err error
		orders, total, err = s.repos.Orders.List(ctx, filter, page)
		return err
	})
	return orders, total, err
}

// CreateShipmentInput is the admin payload for dispatching an order
type CreateShipmentInput struct {
	OrderID    uint `json:"order_id" binding:"required"`
	EmployeeID uint `json:"employee_id" binding:"required"`
}

// CreateShipment dispatches a pending order on the employee's truck
func (s *WarehouseService) CreateShipment(ctx context.Context, in CreateShipmentInput) (*models.Shipment, error) {
	var shipment *models.Shipment
	err := s.inTx(ctx, "create-shipment", func(repos *repositories.Repositories, fx *effects) error {
		var err error
		shipment, err = createShipment(ctx, repos, in.OrderID, in.EmployeeID, s.now(), fx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return shipment, nil
}

// UpdateShipmentStatusInput is the employee payload for a status change
type UpdateShipmentStatusInput struct {
	ShipmentID uint   `json:"shipment_id" binding:"required"`
	Status     string `json:"status" binding:"required"`
}

// UpdateShipmentStatus moves one of the employee's shipments to a new status
func (s *WarehouseService) UpdateShipmentStatus(ctx context.Context, employeeID uint, in UpdateShipmentStatusInput) (*models.Shipment, error) {
	status, err := models.ParseShipmentStatus(in.Status)
	if err != nil {
		return nil, validationErrorf("Invalid status")
	}

	var shipment *models.Shipment
	err = s.inTx(ctx, "update-shipment-status", func(repos *repositories.Repositories, fx *effects) error {
		var err error
		shipment, err = transitionShipment(ctx, repos, in.ShipmentID, employeeID, status, s.now(), fx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return shipment, nil
}

// ListShipments returns shipments newest first. A non-zero employeeID
// restricts the list to that employee.
func (s *WarehouseService) ListShipments(ctx context.Context, employeeID uint, page repositories.Page) ([]models.Shipment, int64, error) {
	var (
		shipments []models.Shipment
		total     int64
	)
	err := s.read(ctx, "list-shipments", func(ctx context.Context) error {
		var err error
		shipments, total, err = s.repos.Shipments.List(ctx, employeeID, page)
		return err
	})
	return shipments, total, err
}

// SearchShipments runs a full-text search over indexed shipments
func (s *WarehouseService) SearchShipments(ctx context.Context, text string, size int) ([]map[string]interface{}, error) {
	var docs []map[string]interface{}
	err := s.read(ctx, "search-shipments", func(ctx context.Context) error {
		var err error
		docs, err = s.search.SearchShipments(ctx, text, size)
		return err
	})
	return docs, err
}

// AllocateOrders dispatches pending orders to free employees in one
// transaction. Nothing is written if any shipment fails.
func (s *WarehouseService) AllocateOrders(ctx context.Context) (*AllocationResult, error) {
	var result *AllocationResult
	err := s.inTx(ctx, "allocate-orders", func(repos *repositories.Repositories, fx *effects) error {
		var err error
		result, err = s.allocate(ctx, repos, fx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
