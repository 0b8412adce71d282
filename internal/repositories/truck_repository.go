package repositories

import (
	"context"

	"example.com/backstage/services/warehouse/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const claimAttempts = 3

// TruckRepository provides access to trucks
type TruckRepository struct {
	base
}

// NewTruckRepository creates a new truck repository
func NewTruckRepository(db, readOnlyDB *gorm.DB) *TruckRepository {
	return &TruckRepository{base: newBase(db, readOnlyDB)}
}

// WithTx binds the repository to tx
func (r *TruckRepository) WithTx(tx *gorm.DB) *TruckRepository {
	return &TruckRepository{base: r.withTx(tx)}
}

// Create inserts a truck
func (r *TruckRepository) Create(ctx context.Context, truck *models.Truck) error {
	return translate(r.db.WithContext(ctx).Create(truck).Error, "failed to create truck")
}

// GetByID gets a truck by ID
func (r *TruckRepository) GetByID(ctx context.Context, id uint) (*models.Truck, error) {
	var truck models.Truck
	if err := r.db.WithContext(ctx).Take(&truck, id).Error; err != nil {
		return nil, translate(err, "failed to get truck")
	}
	return &truck, nil
}

// List returns trucks ordered by ID
func (r *TruckRepository) List(ctx context.Context, page Page) ([]models.Truck, int64, error) {
	var (
		trucks []models.Truck
		total  int64
	)
	q := r.readOnlyDB.WithContext(ctx).Model(&models.Truck{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count trucks")
	}
	if err := page.apply(q.Order("id")).Find(&trucks).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to list trucks")
	}
	return trucks, total, nil
}

// ClaimFree marks the lowest-ID truck that is available and not bound to any
// employee as unavailable and returns it. The candidate row is locked with
// SKIP LOCKED so racing claimers move on to the next truck, and the flip is a
// conditional write so a lost race is retried rather than double-claimed.
// It returns ErrNotFound when no truck is free.
func (r *TruckRepository) ClaimFree(ctx context.Context) (*models.Truck, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		var truck models.Truck
		err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("is_available = ?", true).
			Where("NOT EXISTS (SELECT 1 FROM employees WHERE employees.truck_id = trucks.id)").
			Order("id").
			Take(&truck).Error
		if err != nil {
			return nil, translate(err, "failed to find free truck")
		}

		res := r.db.WithContext(ctx).
			Model(&models.Truck{}).
			Where("id = ? AND is_available = ?", truck.ID, true).
			Update("is_available", false)
		if res.Error != nil {
			return nil, errors.Wrap(res.Error, "failed to claim truck")
		}
		if res.RowsAffected == 1 {
			truck.IsAvailable = false
			return &truck, nil
		}
	}
	return nil, errors.Wrap(ErrStaleWrite, "truck claim kept losing races")
}

// SetAvailable sets the dispatch availability flag
func (r *TruckRepository) SetAvailable(ctx context.Context, id uint, available bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.Truck{}).
		Where("id = ?", id).
		Update("is_available", available)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update truck availability")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of trucks
func (r *TruckRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.readOnlyDB.WithContext(ctx).Model(&models.Truck{}).Count(&n).Error
	return n, errors.Wrap(err, "failed to count trucks")
}
