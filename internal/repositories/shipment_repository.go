package repositories

import (
	"context"
	"time"

	"example.com/backstage/services/warehouse/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ShipmentRepository provides access to shipments
type ShipmentRepository struct {
	base
}

// NewShipmentRepository creates a new shipment repository
func NewShipmentRepository(db, readOnlyDB *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{base: newBase(db, readOnlyDB)}
}

// WithTx binds the repository to tx
func (r *ShipmentRepository) WithTx(tx *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{base: r.withTx(tx)}
}

// Create inserts a shipment
func (r *ShipmentRepository) Create(ctx context.Context, shipment *models.Shipment) error {
	err := r.db.WithContext(ctx).Omit("Order", "Employee", "Truck").Create(shipment).Error
	return translate(err, "failed to create shipment")
}

// GetByID gets a shipment with its order and product
func (r *ShipmentRepository) GetByID(ctx context.Context, id uint) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Preload("Order.Product.Category").
		Preload("Employee").
		Preload("Truck").
		Take(&shipment, id).Error
	if err != nil {
		return nil, translate(err, "failed to get shipment")
	}
	return &shipment, nil
}

// GetOwnedForUpdate locks a shipment that belongs to employeeID.
// Shipments owned by someone else are reported as not found.
func (r *ShipmentRepository) GetOwnedForUpdate(ctx context.Context, id, employeeID uint) (*models.Shipment, error) {
	var shipment models.Shipment
	err := forUpdate(r.db.WithContext(ctx)).
		Where("id = ? AND employee_id = ?", id, employeeID).
		Take(&shipment).Error
	if err != nil {
		return nil, translate(err, "failed to lock shipment")
	}
	return &shipment, nil
}

// TransitionStatus moves a shipment from one status to another. The write is
// conditional on the old status so a concurrent transition cannot apply twice.
func (r *ShipmentRepository) TransitionStatus(ctx context.Context, id uint, from, to models.ShipmentStatus, at time.Time) error {
	updates := map[string]interface{}{"status": to}
	if to == models.ShipmentDelivered {
		updates["delivered_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update shipment status")
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	return nil
}

// GetByOrder returns the shipment dispatched for an order
func (r *ShipmentRepository) GetByOrder(ctx context.Context, orderID uint) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&shipment).Error; err != nil {
		return nil, translate(err, "failed to get shipment for order")
	}
	return &shipment, nil
}

// TruckInTransit reports whether the truck carries an in-transit shipment other than excludeID
func (r *ShipmentRepository) TruckInTransit(ctx context.Context, truckID, excludeID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("truck_id = ? AND status = ? AND id <> ?", truckID, models.ShipmentInTransit, excludeID).
		Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check in-transit shipments")
	}
	return n > 0, nil
}

// List returns shipments newest first, optionally for one employee
func (r *ShipmentRepository) List(ctx context.Context, employeeID uint, page Page) ([]models.Shipment, int64, error) {
	var (
		shipments []models.Shipment
		total     int64
	)
	q := r.readOnlyDB.WithContext(ctx).Model(&models.Shipment{})
	if employeeID != 0 {
		q = q.Where("employee_id = ?", employeeID)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count shipments")
	}
	err := page.apply(q.Preload("Order.Product").Preload("Truck").Order("shipment_date DESC, id DESC")).
		Find(&shipments).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list shipments")
	}
	return shipments, total, nil
}
