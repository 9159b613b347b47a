package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/ClipPass/app/models"
)

type licenseRepository struct {
	db *gorm.DB
}

// NewLicenseRepository creates a new license repository instance
func NewLicenseRepository(db *gorm.DB) LicenseRepository {
	return &licenseRepository{db: db}
}

func (r *licenseRepository) Create(ctx context.Context, license *models.License) error {
	return r.db.WithContext(ctx).Create(license).Error
}

// GetByID loads the license with its publisher account and user.
func (r *licenseRepository) GetByID(ctx context.Context, id uint) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).Preload("Account.User").First(&license, id).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *licenseRepository) Update(ctx context.Context, license *models.License) error {
	return r.db.WithContext(ctx).Omit("Account").Save(license).Error
}

func (r *licenseRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.License{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *licenseRepository) ListByAccount(ctx context.Context, accountID uint) ([]models.License, error) {
	var licenses []models.License
	err := r.db.WithContext(ctx).Preload("Account.User").
		Where("account_id = ?", accountID).Order("id ASC").Find(&licenses).Error
	return licenses, err
}

func (r *licenseRepository) ListExcludingAccount(ctx context.Context, accountID uint) ([]models.License, error) {
	var licenses []models.License
	err := r.db.WithContext(ctx).Preload("Account.User").
		Where("account_id <> ?", accountID).Order("id ASC").Find(&licenses).Error
	return licenses, err
}
