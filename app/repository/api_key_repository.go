package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/ClipPass/app/models"
)

type apiKeyRepository struct {
	db *gorm.DB
}

// NewAPIKeyRepository creates a new API key repository instance
func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) GetByUserID(ctx context.Context, userID uint) (*models.APIKey, error) {
	var key models.APIKey
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

// GetActiveByHash resolves a non-revoked key hash.
func (r *apiKeyRepository) GetActiveByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, ErrNotFound
	}
	var key models.APIKey
	err := r.db.WithContext(ctx).
		Where("hash = ? AND hash <> '' AND revoked_at IS NULL", trimmed).
		First(&key).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *apiKeyRepository) Save(ctx context.Context, key *models.APIKey) error {
	return r.db.WithContext(ctx).Save(key).Error
}

func (r *apiKeyRepository) TouchUsage(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.APIKey{}).Where("id = ?", id).
		Update("last_used_at", at).Error
}
