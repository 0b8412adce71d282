package repositories

import (
	"context"

	"example.com/backstage/services/warehouse/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// OrderFilter narrows order listings
type OrderFilter struct {
	Status     models.OrderStatus
	EmployeeID uint
}

// OrderRepository provides access to orders
type OrderRepository struct {
	base
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db, readOnlyDB *gorm.DB) *OrderRepository {
	return &OrderRepository{base: newBase(db, readOnlyDB)}
}

// WithTx binds the repository to tx
func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{base: r.withTx(tx)}
}

// Create inserts an order
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Omit("Product").Create(order).Error, "failed to create order")
}

// GetByID gets an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Take(&order, id).Error; err != nil {
		return nil, translate(err, "failed to get order")
	}
	return &order, nil
}

// GetForUpdate reads the persisted order and locks it, so the snapshot a
// cascade diffs against cannot change before the write commits
func (r *OrderRepository) GetForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := forUpdate(r.db.WithContext(ctx)).Take(&order, id).Error; err != nil {
		return nil, translate(err, "failed to lock order")
	}
	return &order, nil
}

// UpdateState writes status and required quantity
func (r *OrderRepository) UpdateState(ctx context.Context, id uint, state models.OrderState) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       state.Status,
			"required_qty": state.RequiredQty,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update order")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns orders newest first
func (r *OrderRepository) List(ctx context.Context, filter OrderFilter, page Page) ([]models.Order, int64, error) {
	var (
		orders []models.Order
		total  int64
	)
	q := r.readOnlyDB.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		q = q.Where("orders.status = ?", filter.Status)
	}
	if filter.EmployeeID != 0 {
		q = q.Where("EXISTS (SELECT 1 FROM shipments WHERE shipments.order_id = orders.id AND shipments.employee_id = ?)",
			filter.EmployeeID)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count orders")
	}
	if err := page.apply(q.Preload("Product").Order("order_date DESC, id DESC")).Find(&orders).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to list orders")
	}
	return orders, total, nil
}

// ListPendingForAllocation returns pending orders oldest first and locks them
func (r *OrderRepository) ListPendingForAllocation(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := forUpdate(r.db.WithContext(ctx)).
		Where("status = ?", models.OrderPending).
		Order("order_date, id").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pending orders")
	}
	return orders, nil
}

// Count returns the number of orders, optionally restricted to one status
func (r *OrderRepository) Count(ctx context.Context, status models.OrderStatus) (int64, error) {
	var n int64
	q := r.readOnlyDB.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&n).Error
	return n, errors.Wrap(err, "failed to count orders")
}

// LinkRetailer records which retailer placed the order
func (r *OrderRepository) LinkRetailer(ctx context.Context, link *models.RetailerOrder) error {
	return translate(r.db.WithContext(ctx).Omit("Retailer", "Order").Create(link).Error, "failed to link retailer order")
}

// SyncRetailerStatus mirrors the order status onto its retailer link
func (r *OrderRepository) SyncRetailerStatus(ctx context.Context, orderID uint, status models.OrderStatus) error {
	err := r.db.WithContext(ctx).
		Model(&models.RetailerOrder{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error
	return errors.Wrap(err, "failed to sync retailer order status")
}
