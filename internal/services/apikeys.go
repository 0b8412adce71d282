package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"example.com/backstage/services/warehouse/internal/models"
	"example.com/backstage/services/warehouse/internal/repositories"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrUnauthorized is returned for unknown or expired API keys
var ErrUnauthorized = errors.New("invalid or expired API key")

// HashKey returns the stored form of an API key secret
func HashKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// CreateAPIKeyInput describes a new API key
type CreateAPIKeyInput struct {
	Name       string
	Role       models.Role
	EmployeeID *uint
	TTL        time.Duration
}

// CreateAPIKey issues a key and returns it with its secret. The secret is
// only available here; the store keeps its hash.
func (s *WarehouseService) CreateAPIKey(ctx context.Context, in CreateAPIKeyInput) (*models.APIKey, string, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, "", validationErrorf("key name is required")
	}
	if !in.Role.Valid() {
		return nil, "", validationErrorf("role must be admin or employee")
	}
	if in.Role == models.RoleEmployee && in.EmployeeID == nil {
		return nil, "", validationErrorf("employee keys need an employee")
	}

	secret := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	key := &models.APIKey{
		Name:       strings.TrimSpace(in.Name),
		Key:        HashKey(secret),
		Role:       in.Role,
		EmployeeID: in.EmployeeID,
	}
	if in.TTL > 0 {
		expires := s.now().Add(in.TTL)
		key.ExpiresAt = &expires
	}

	err := s.inTx(ctx, "create-api-key", func(repos *repositories.Repositories, fx *effects) error {
		if key.EmployeeID != nil {
			if _, err := repos.Employees.GetByID(ctx, *key.EmployeeID); err != nil {
				return classify(err, "employee")
			}
		}
		return classify(repos.APIKeys.Create(ctx, key), "API key")
	})
	if err != nil {
		return nil, "", err
	}
	return key, secret, nil
}

// Authenticate resolves a presented secret to its API key
func (s *WarehouseService) Authenticate(ctx context.Context, secret string) (*models.APIKey, error) {
	if secret == "" {
		return nil, ErrUnauthorized
	}

	key, err := s.repos.APIKeys.GetByKey(ctx, HashKey(secret))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if key.Expired(now) {
		return nil, ErrUnauthorized
	}
	if key.EmployeeID != nil {
		// soft-deleted employees are invisible here
		if _, err := s.repos.Employees.GetByID(ctx, *key.EmployeeID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrUnauthorized
			}
			return nil, err
		}
	}

	if err := s.repos.APIKeys.Touch(ctx, key.ID, now); err != nil {
		log.Warn().Err(err).Uint("api_key_id", key.ID).Msg("Failed to record API key use")
	}
	return key, nil
}

// ListAPIKeys returns every issued key without secrets
func (s *WarehouseService) ListAPIKeys(ctx context.Context) ([]models.APIKey, error) {
	return s.repos.APIKeys.List(ctx)
}

// RevokeAPIKey deletes a key
func (s *WarehouseService) RevokeAPIKey(ctx context.Context, id uint) error {
	return classify(s.repos.APIKeys.Delete(ctx, id), "API key")
}
