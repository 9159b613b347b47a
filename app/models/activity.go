package models

import "time"

const (
	MinRating = 0
	MaxRating = 5
)

// WatchEvent records one retrieval of a video by a viewer. Append-only.
type WatchEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"user"`
	Account   Account   `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	VideoID   uint      `gorm:"index;not null" json:"video"`
	Video     Video     `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"-"`
	WatchedAt time.Time `gorm:"autoCreateTime" json:"watched_at"`
}

func (WatchEvent) TableName() string {
	return "watch_history"
}

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"user"`
	Account   Account   `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	VideoID   uint      `gorm:"index;not null" json:"video"`
	Video     Video     `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"-"`
	Text      string    `gorm:"type:text;not null" json:"text" validate:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Rating is unique per (account, video); a second rating is rejected, not
// overwritten.
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;uniqueIndex:ux_ratings_account_video,priority:1" json:"user"`
	Account   Account   `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	VideoID   uint      `gorm:"not null;index;uniqueIndex:ux_ratings_account_video,priority:2" json:"video"`
	Video     Video     `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"-"`
	Score     int       `gorm:"column:rate;not null" json:"rate" validate:"gte=0,lte=5"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ValidScore reports whether score is inside the allowed rating range.
func ValidScore(score int) bool {
	return score >= MinRating && score <= MaxRating
}
