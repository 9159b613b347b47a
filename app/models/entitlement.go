package models

import (
	"time"

	"gorm.io/gorm"
)

// Entitlement is a buyer's time-boxed access to one publisher's catalog,
// created by purchasing a License. Stored as "subscriptions".
//
// EndDate is always StartDate + Duration days; it is recomputed on every save
// and never set on its own.
type Entitlement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"account_id"`
	Account   Account   `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	LicenseID uint      `gorm:"index;not null" json:"license_id"`
	License   License   `gorm:"foreignKey:LicenseID;constraint:OnDelete:CASCADE" json:"-"`
	Duration  int       `gorm:"not null" json:"duration"`
	StartDate time.Time `gorm:"type:date;not null" json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null" json:"end_date"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Entitlement) TableName() string {
	return "subscriptions"
}

// BeforeSave keeps EndDate derived from StartDate and Duration.
func (e *Entitlement) BeforeSave(tx *gorm.DB) error {
	e.Recompute()
	return nil
}

// Recompute normalizes StartDate to a calendar date and derives EndDate.
func (e *Entitlement) Recompute() {
	if e.StartDate.IsZero() {
		e.StartDate = time.Now()
	}
	e.StartDate = DateOf(e.StartDate)
	e.EndDate = e.StartDate.AddDate(0, 0, e.Duration)
}

// Extend adds days to the duration. The start date is kept, so the new end
// date counts from the original start.
func (e *Entitlement) Extend(days int) {
	e.Duration += days
	e.Recompute()
}

// IsActiveOn reports whether today is on or before the end date.
func (e *Entitlement) IsActiveOn(today time.Time) bool {
	return !DateOf(today).After(DateOf(e.EndDate))
}

// PublisherID is the owner of the entitlement's license. The License
// association must be loaded.
func (e *Entitlement) PublisherID() uint {
	return e.License.AccountID
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
