package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ManuelReschke/ClipPass/app/models"
)

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new activity repository instance
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) CreateWatchEvent(ctx context.Context, ev *models.WatchEvent) error {
	return r.db.WithContext(ctx).Omit("Account", "Video").Create(ev).Error
}

func (r *activityRepository) CountWatchEvents(ctx context.Context, videoID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WatchEvent{}).Where("video_id = ?", videoID).Count(&count).Error
	return count, err
}

func (r *activityRepository) ListWatchEventsByAccount(ctx context.Context, accountID uint) ([]models.WatchEvent, error) {
	var events []models.WatchEvent
	err := r.db.WithContext(ctx).Preload("Video").
		Where("account_id = ?", accountID).Order("id ASC").Find(&events).Error
	return events, err
}

func (r *activityRepository) CreateComment(ctx context.Context, c *models.Comment) error {
	return r.db.WithContext(ctx).Omit("Account", "Video").Create(c).Error
}

func (r *activityRepository) ListComments(ctx context.Context, videoID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).Preload("Account.User").
		Where("video_id = ?", videoID).Order("id ASC").Find(&comments).Error
	return comments, err
}

func (r *activityRepository) CreateRating(ctx context.Context, rating *models.Rating) error {
	err := r.db.WithContext(ctx).Omit("Account", "Video").Create(rating).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *activityRepository) ListRatings(ctx context.Context, videoID uint) ([]models.Rating, error) {
	var ratings []models.Rating
	err := r.db.WithContext(ctx).Preload("Account.User").
		Where("video_id = ?", videoID).Order("id ASC").Find(&ratings).Error
	return ratings, err
}
