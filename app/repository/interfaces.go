package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ClipPass/app/models"
)

var (
	// ErrNotFound is returned by every repository when a row does not exist.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = gorm.ErrDuplicatedKey
	// ErrForeignKey is returned when a write references a deleted row.
	ErrForeignKey = gorm.ErrForeignKeyViolated
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsUsername(ctx context.Context, username string, excludeID uint) (bool, error)
	ExistsEmail(ctx context.Context, email string, excludeID uint) (bool, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	TouchLogin(ctx context.Context, id uint, at time.Time) error
}

// APIKeyRepository stores the single hashed API key each user may hold.
type APIKeyRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.APIKey, error)
	GetActiveByHash(ctx context.Context, hash string) (*models.APIKey, error)
	Save(ctx context.Context, key *models.APIKey) error
	TouchUsage(ctx context.Context, id uint, at time.Time) error
}

// AccountRepository defines balance-holding account operations. Balance is
// only ever changed through Debit and Credit.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	GetByUserID(ctx context.Context, userID uint) (*models.Account, error)
	// LockByID reads the account with a row lock held until the surrounding
	// transaction ends.
	LockByID(ctx context.Context, id uint) (*models.Account, error)
	UpdatePhone(ctx context.Context, id uint, phone string) error
	// Debit subtracts amount only if the balance covers it. applied is false
	// when no row matched.
	Debit(ctx context.Context, id uint, amount decimal.Decimal) (applied bool, err error)
	Credit(ctx context.Context, id uint, amount decimal.Decimal) (applied bool, err error)
	// ListOthers returns every account except excludeID, with user and
	// licenses loaded.
	ListOthers(ctx context.Context, excludeID uint) ([]models.Account, error)
}

// LicenseRepository defines license catalog operations
type LicenseRepository interface {
	Create(ctx context.Context, license *models.License) error
	GetByID(ctx context.Context, id uint) (*models.License, error)
	Update(ctx context.Context, license *models.License) error
	Delete(ctx context.Context, id uint) error
	ListByAccount(ctx context.Context, accountID uint) ([]models.License, error)
	ListExcludingAccount(ctx context.Context, accountID uint) ([]models.License, error)
}

// EntitlementRepository defines operations on purchased licenses. Reads load
// License (with its publisher) and the buyer Account.
type EntitlementRepository interface {
	Create(ctx context.Context, e *models.Entitlement) error
	Save(ctx context.Context, e *models.Entitlement) error
	Delete(ctx context.Context, id uint) error
	DeleteMany(ctx context.Context, ids []uint) error
	GetByIDForAccount(ctx context.Context, id, accountID uint) (*models.Entitlement, error)
	ListByAccount(ctx context.Context, accountID uint) ([]models.Entitlement, error)
	// ListByAccountAndPublisher returns the buyer's entitlements on any
	// license owned by publisherID.
	ListByAccountAndPublisher(ctx context.Context, accountID, publisherID uint) ([]models.Entitlement, error)
	// ListBuyerIDsByLicense returns the distinct buyers holding licenseID.
	ListBuyerIDsByLicense(ctx context.Context, licenseID uint) ([]uint, error)
	// ListBuyerIDsByPublisher returns the distinct buyers holding any
	// license of publisherID.
	ListBuyerIDsByPublisher(ctx context.Context, publisherID uint) ([]uint, error)
}

// VideoFilter narrows visible video listings.
type VideoFilter struct {
	Category string
	Search   string
	Offset   int
	Limit    int
}

// VideoRepository defines video catalog operations
type VideoRepository interface {
	Create(ctx context.Context, video *models.Video) error
	GetByID(ctx context.Context, id uint) (*models.Video, error)
	Update(ctx context.Context, video *models.Video) error
	Delete(ctx context.Context, id uint) error
	ListByAccount(ctx context.Context, accountID uint) ([]models.Video, error)
	// ListVisible returns non-hidden videos published by any of publisherIDs.
	ListVisible(ctx context.Context, publisherIDs []uint, filter VideoFilter) ([]models.Video, error)
}

// ActivityRepository covers watch history, comments and ratings.
type ActivityRepository interface {
	CreateWatchEvent(ctx context.Context, ev *models.WatchEvent) error
	CountWatchEvents(ctx context.Context, videoID uint) (int64, error)
	ListWatchEventsByAccount(ctx context.Context, accountID uint) ([]models.WatchEvent, error)
	CreateComment(ctx context.Context, c *models.Comment) error
	ListComments(ctx context.Context, videoID uint) ([]models.Comment, error)
	// CreateRating returns ErrDuplicate when the account already rated the video.
	CreateRating(ctx context.Context, r *models.Rating) error
	ListRatings(ctx context.Context, videoID uint) ([]models.Rating, error)
}

// Transactor runs fn with repositories bound to a single transaction.
// Returning an error from fn rolls every write back.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *Repositories) error) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User        UserRepository
	APIKey      APIKeyRepository
	Account     AccountRepository
	License     LicenseRepository
	Entitlement EntitlementRepository
	Video       VideoRepository
	Activity    ActivityRepository
	Tx          Transactor
}

// Transaction runs fn inside a store transaction.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.Tx.Transaction(ctx, fn)
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		APIKey:      NewAPIKeyRepository(db),
		Account:     NewAccountRepository(db),
		License:     NewLicenseRepository(db),
		Entitlement: NewEntitlementRepository(db),
		Video:       NewVideoRepository(db),
		Activity:    NewActivityRepository(db),
		Tx:          &gormTransactor{db: db},
	}
}

type gormTransactor struct {
	db *gorm.DB
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
