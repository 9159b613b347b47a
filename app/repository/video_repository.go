package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/ClipPass/app/models"
)

type videoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a new video repository instance
func NewVideoRepository(db *gorm.DB) VideoRepository {
	return &videoRepository{db: db}
}

func (r *videoRepository) Create(ctx context.Context, video *models.Video) error {
	return r.db.WithContext(ctx).Omit("Account").Create(video).Error
}

func (r *videoRepository) GetByID(ctx context.Context, id uint) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Preload("Account.User").First(&video, id).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *videoRepository) Update(ctx context.Context, video *models.Video) error {
	return r.db.WithContext(ctx).Omit("Account").Save(video).Error
}

func (r *videoRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Video{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *videoRepository) ListByAccount(ctx context.Context, accountID uint) ([]models.Video, error) {
	var videos []models.Video
	err := r.db.WithContext(ctx).Preload("Account.User").
		Where("account_id = ?", accountID).Order("id ASC").Find(&videos).Error
	return videos, err
}

func (r *videoRepository) ListVisible(ctx context.Context, publisherIDs []uint, filter VideoFilter) ([]models.Video, error) {
	var videos []models.Video
	if len(publisherIDs) == 0 {
		return videos, nil
	}
	q := r.db.WithContext(ctx).Preload("Account.User").
		Where("account_id IN ? AND hidden = ?", publisherIDs, false)
	if c := strings.TrimSpace(filter.Category); c != "" {
		q = q.Where("category = ?", c)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", pattern, pattern)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Order("id ASC").Find(&videos).Error
	return videos, err
}
