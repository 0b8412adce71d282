package repositories

import (
	"context"
	"time"

	"example.com/backstage/services/warehouse/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// APIKeyRepository provides access to API keys
type APIKeyRepository struct {
	base
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db, readOnlyDB *gorm.DB) *APIKeyRepository {
	return &APIKeyRepository{base: newBase(db, readOnlyDB)}
}

// Create inserts an API key
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	return translate(r.db.WithContext(ctx).Create(key).Error, "failed to create API key")
}

// GetByKey looks up a key by the hash of its secret
func (r *APIKeyRepository) GetByKey(ctx context.Context, hash string) (*models.APIKey, error) {
	var key models.APIKey
	if err := r.readOnlyDB.WithContext(ctx).Where("key_hash = ?", hash).Take(&key).Error; err != nil {
		return nil, translate(err, "failed to get API key")
	}
	return &key, nil
}

// Touch records the last time a key was used
func (r *APIKeyRepository) Touch(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error
	return errors.Wrap(err, "failed to touch API key")
}

// List returns all keys
func (r *APIKeyRepository) List(ctx context.Context) ([]models.APIKey, error) {
	var keys []models.APIKey
	if err := r.readOnlyDB.WithContext(ctx).Order("id").Find(&keys).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list API keys")
	}
	return keys, nil
}

// Delete removes a key
func (r *APIKeyRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.APIKey{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete API key")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteForEmployee removes every key that acts for employeeID
func (r *APIKeyRepository) DeleteForEmployee(ctx context.Context, employeeID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("employee_id = ?", employeeID).Delete(&models.APIKey{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to delete employee API keys")
	}
	return res.RowsAffected, nil
}
