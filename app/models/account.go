package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the balance-holding profile wrapping a User 1:1. It is also the
// publisher identity that owns licenses and videos.
type Account struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	User      User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Phone     string          `gorm:"type:varchar(15)" json:"phone" validate:"max=15"`
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	Licenses  []License       `gorm:"foreignKey:AccountID" json:"licenses,omitempty"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// CanAfford reports whether the balance covers amount.
func (a *Account) CanAfford(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// MoneyPlaces is the number of fractional digits stored for balances and prices.
const MoneyPlaces = 2

// IsMoney reports whether d is non-negative and has at most two fractional digits.
func IsMoney(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(MoneyPlaces))
}

// FormatMoney renders d with exactly two fractional digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}
