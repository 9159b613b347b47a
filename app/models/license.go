package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// License is a publisher-defined access-grant template: pay Price to unlock
// the publisher's catalog for Duration days.
type License struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	AccountID uint            `gorm:"index;not null" json:"account_id"`
	Account   Account         `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	Title     string          `gorm:"type:varchar(255);not null" json:"title" validate:"required,max=255"`
	Duration  int             `gorm:"not null" json:"duration" validate:"gt=0"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublisherID returns the account that owns the license.
func (l *License) PublisherID() uint {
	return l.AccountID
}
