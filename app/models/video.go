package models

import "time"

// Video is referenced by URL only; FileURL may also be an s3://bucket/key
// reference that is signed on retrieval.
type Video struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AccountID   uint      `gorm:"index;not null" json:"account_id"`
	Account     Account   `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title" validate:"required,max=255"`
	Description string    `gorm:"type:text;not null" json:"description" validate:"required"`
	FileURL     string    `gorm:"type:varchar(2048);default:''" json:"file_url" validate:"omitempty,url,max=2048"`
	Category    string    `gorm:"type:varchar(255);not null;index" json:"category" validate:"required,max=255"`
	Hidden      bool      `gorm:"default:false;index" json:"is_hide"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OwnedBy reports whether accountID published the video.
func (v *Video) OwnedBy(accountID uint) bool {
	return v.AccountID == accountID
}
