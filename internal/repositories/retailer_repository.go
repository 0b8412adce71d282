package repositories

import (
	"context"

	"example.com/backstage/services/warehouse/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// RetailerRepository provides access to retailers
type RetailerRepository struct {
	base
}

// NewRetailerRepository creates a new retailer repository
func NewRetailerRepository(db, readOnlyDB *gorm.DB) *RetailerRepository {
	return &RetailerRepository{base: newBase(db, readOnlyDB)}
}

// WithTx binds the repository to tx
func (r *RetailerRepository) WithTx(tx *gorm.DB) *RetailerRepository {
	return &RetailerRepository{base: r.withTx(tx)}
}

// Create inserts a retailer
func (r *RetailerRepository) Create(ctx context.Context, retailer *models.Retailer) error {
	return translate(r.db.WithContext(ctx).Create(retailer).Error, "failed to create retailer")
}

// GetByID gets a retailer by ID
func (r *RetailerRepository) GetByID(ctx context.Context, id uint) (*models.Retailer, error) {
	var retailer models.Retailer
	if err := r.db.WithContext(ctx).Take(&retailer, id).Error; err != nil {
		return nil, translate(err, "failed to get retailer")
	}
	return &retailer, nil
}

// List returns retailers ordered by name
func (r *RetailerRepository) List(ctx context.Context, page Page) ([]models.Retailer, int64, error) {
	var (
		retailers []models.Retailer
		total     int64
	)
	q := r.readOnlyDB.WithContext(ctx).Model(&models.Retailer{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count retailers")
	}
	if err := page.apply(q.Order("name, id")).Find(&retailers).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to list retailers")
	}
	return retailers, total, nil
}

// Count returns the number of retailers
func (r *RetailerRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.readOnlyDB.WithContext(ctx).Model(&models.Retailer{}).Count(&n).Error
	return n, errors.Wrap(err, "failed to count retailers")
}
