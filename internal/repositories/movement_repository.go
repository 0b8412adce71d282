package repositories

import (
	"context"

	"example.com/backstage/services/warehouse/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// MovementRepository appends to the inventory ledger
type MovementRepository struct {
	base
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db, readOnlyDB *gorm.DB) *MovementRepository {
	return &MovementRepository{base: newBase(db, readOnlyDB)}
}

// WithTx binds the repository to tx
func (r *MovementRepository) WithTx(tx *gorm.DB) *MovementRepository {
	return &MovementRepository{base: r.withTx(tx)}
}

// Append records one stock movement
func (r *MovementRepository) Append(ctx context.Context, movement *models.InventoryMovement) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(movement).Error, "failed to append inventory movement")
}

// ListByProduct returns a product's movements, newest first
func (r *MovementRepository) ListByProduct(ctx context.Context, productID uint, limit int) ([]models.InventoryMovement, error) {
	var movements []models.InventoryMovement
	err := r.readOnlyDB.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id DESC").
		Limit(limit).
		Find(&movements).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list inventory movements")
	}
	return movements, nil
}
