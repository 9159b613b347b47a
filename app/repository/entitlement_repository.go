package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/ClipPass/app/models"
)

type entitlementRepository struct {
	db *gorm.DB
}

// NewEntitlementRepository creates a new entitlement repository instance
func NewEntitlementRepository(db *gorm.DB) EntitlementRepository {
	return &entitlementRepository{db: db}
}

func (r *entitlementRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("License.Account.User").Preload("Account.User")
}

// Create inserts e; the BeforeSave hook derives the end date.
func (r *entitlementRepository) Create(ctx context.Context, e *models.Entitlement) error {
	return r.db.WithContext(ctx).Omit("Account", "License").Create(e).Error
}

func (r *entitlementRepository) Save(ctx context.Context, e *models.Entitlement) error {
	return r.db.WithContext(ctx).Omit("Account", "License").Save(e).Error
}

func (r *entitlementRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Entitlement{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *entitlementRepository) DeleteMany(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Entitlement{}).Error
}

func (r *entitlementRepository) GetByIDForAccount(ctx context.Context, id, accountID uint) (*models.Entitlement, error) {
	var e models.Entitlement
	err := r.preloaded(ctx).Where("id = ? AND account_id = ?", id, accountID).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *entitlementRepository) ListByAccount(ctx context.Context, accountID uint) ([]models.Entitlement, error) {
	var list []models.Entitlement
	err := r.preloaded(ctx).Where("account_id = ?", accountID).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *entitlementRepository) ListByAccountAndPublisher(ctx context.Context, accountID, publisherID uint) ([]models.Entitlement, error) {
	var list []models.Entitlement
	err := r.preloaded(ctx).
		Joins("JOIN licenses ON licenses.id = subscriptions.license_id").
		Where("subscriptions.account_id = ? AND licenses.account_id = ?", accountID, publisherID).
		Order("subscriptions.id ASC").
		Find(&list).Error
	return list, err
}

func (r *entitlementRepository) ListBuyerIDsByLicense(ctx context.Context, licenseID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("license_id = ?", licenseID).
		Distinct().Order("account_id ASC").
		Pluck("account_id", &ids).Error
	return ids, err
}

func (r *entitlementRepository) ListBuyerIDsByPublisher(ctx context.Context, publisherID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Entitlement{}).
		Joins("JOIN licenses ON licenses.id = subscriptions.license_id").
		Where("licenses.account_id = ?", publisherID).
		Distinct().Order("subscriptions.account_id ASC").
		Pluck("subscriptions.account_id", &ids).Error
	return ids, err
}
