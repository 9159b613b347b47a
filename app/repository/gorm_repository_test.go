package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/ClipPass/app/models"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newTestDB connects to the MySQL named by DB_* (database DB_TEST_NAME) and
// skips when no server answers.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		getenv("DB_USER", "clippass"), getenv("DB_PASSWORD", ""),
		getenv("DB_HOST", "127.0.0.1"), getenv("DB_PORT", "3306"),
		getenv("DB_TEST_NAME", "clippass_test"))
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping MySQL-dependent test: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		t.Skipf("Skipping MySQL-dependent test: no reachable MySQL endpoint (%v)", err)
	}

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.APIKey{}, &models.Account{}, &models.License{},
		&models.Entitlement{}, &models.Video{}, &models.WatchEvent{},
		&models.Comment{}, &models.Rating{},
	))
	// users cascade to everything else
	require.NoError(t, db.Exec("DELETE FROM users").Error)
	t.Cleanup(func() {
		_ = db.Exec("DELETE FROM users").Error
		_ = sqlDB.Close()
	})
	return db
}

func seedAccount(t *testing.T, repos *Repositories, name string, balance string) *models.Account {
	t.Helper()
	ctx := context.Background()
	user := &models.User{Username: name, Email: name + "@example.com", Password: "x", Role: models.ROLE_USER}
	require.NoError(t, repos.User.Create(ctx, user))
	account := &models.Account{UserID: user.ID, Balance: decimal.RequireFromString(balance)}
	require.NoError(t, repos.Account.Create(ctx, account))
	return account
}

func TestGorm_DebitIsConditional(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	ctx := context.Background()
	acc := seedAccount(t, repos, "buyer", "50.00")

	applied, err := repos.Account.Debit(ctx, acc.ID, decimal.RequireFromString("30.00"))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repos.Account.Debit(ctx, acc.ID, decimal.RequireFromString("30.00"))
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := repos.Account.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "20.00", got.Balance.StringFixed(2))
}

func TestGorm_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	ctx := context.Background()
	acc := seedAccount(t, repos, "racer", "100.00")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repos.Account.Debit(ctx, acc.ID, decimal.RequireFromString("30.00"))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, applied)
	got, err := repos.Account.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.Balance.StringFixed(2))
}

func TestGorm_RatingUniqueness(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	ctx := context.Background()
	pub := seedAccount(t, repos, "publisher", "0")
	viewer := seedAccount(t, repos, "viewer", "0")

	video := &models.Video{AccountID: pub.ID, Title: "t", Description: "d", Category: "c"}
	require.NoError(t, repos.Video.Create(ctx, video))

	require.NoError(t, repos.Activity.CreateRating(ctx, &models.Rating{AccountID: viewer.ID, VideoID: video.ID, Score: 3}))
	err := repos.Activity.CreateRating(ctx, &models.Rating{AccountID: viewer.ID, VideoID: video.ID, Score: 5})
	assert.ErrorIs(t, err, ErrDuplicate)

	ratings, err := repos.Activity.ListRatings(ctx, video.ID)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, 3, ratings[0].Score)
}

func TestGorm_TransactionRollsBack(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	ctx := context.Background()
	acc := seedAccount(t, repos, "txbuyer", "40.00")

	errBoom := fmt.Errorf("boom")
	err := repos.Transaction(ctx, func(tx *Repositories) error {
		if _, err := tx.Account.LockByID(ctx, acc.ID); err != nil {
			return err
		}
		if _, err := tx.Account.Debit(ctx, acc.ID, decimal.RequireFromString("40.00")); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	got, err := repos.Account.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", got.Balance.StringFixed(2))
}

func TestGorm_EntitlementEndDateAndPublisherScope(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	ctx := context.Background()
	pub := seedAccount(t, repos, "pub2", "0")
	buyer := seedAccount(t, repos, "buyer2", "0")

	lic := &models.License{AccountID: pub.ID, Title: "monthly", Duration: 10, Price: decimal.RequireFromString("30.00")}
	require.NoError(t, repos.License.Create(ctx, lic))

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ent := &models.Entitlement{AccountID: buyer.ID, LicenseID: lic.ID, Duration: lic.Duration, StartDate: start}
	require.NoError(t, repos.Entitlement.Create(ctx, ent))

	list, err := repos.Entitlement.ListByAccountAndPublisher(ctx, buyer.ID, pub.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2024-03-11", list[0].EndDate.Format("2006-01-02"))

	list, err = repos.Entitlement.ListByAccountAndPublisher(ctx, buyer.ID, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	buyers, err := repos.Entitlement.ListBuyerIDsByLicense(ctx, lic.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{buyer.ID}, buyers)
	buyers, err = repos.Entitlement.ListBuyerIDsByPublisher(ctx, pub.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{buyer.ID}, buyers)
}
