package entitlements

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ClipPass/app/models"
	"github.com/ManuelReschke/ClipPass/app/repository"
	"github.com/ManuelReschke/ClipPass/app/repository/memory"
	"github.com/ManuelReschke/ClipPass/internal/pkg/apperror"
	"github.com/ManuelReschke/ClipPass/internal/pkg/ledger"
)

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []uint
}

func (r *recordingInvalidator) Invalidate(_ context.Context, id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

type fixture struct {
	repos  *repository.Repositories
	engine *Engine
	now    time.Time
	inv    *recordingInvalidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repos: memory.New(),
		now:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		inv:   &recordingInvalidator{},
	}
	f.engine = NewEngine(f.repos, ledger.New(zerolog.Nop()), zerolog.Nop(),
		WithClock(func() time.Time { return f.now }),
		WithInvalidator(f.inv),
	)
	return f
}

func (f *fixture) account(t *testing.T, name, balance string) uint {
	t.Helper()
	ctx := context.Background()
	user := &models.User{Username: name, Email: name + "@example.com"}
	require.NoError(t, f.repos.User.Create(ctx, user))
	acc := &models.Account{UserID: user.ID, Balance: decimal.RequireFromString(balance)}
	require.NoError(t, f.repos.Account.Create(ctx, acc))
	return acc.ID
}

func (f *fixture) license(t *testing.T, publisher uint, price string, days int) uint {
	t.Helper()
	l := &models.License{AccountID: publisher, Title: "plan", Duration: days, Price: decimal.RequireFromString(price)}
	require.NoError(t, f.repos.License.Create(context.Background(), l))
	return l.ID
}

func (f *fixture) balance(t *testing.T, id uint) string {
	t.Helper()
	acc, err := f.repos.Account.GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance.StringFixed(2)
}

func (f *fixture) count(t *testing.T, buyer uint) int {
	t.Helper()
	list, err := f.engine.List(context.Background(), buyer)
	require.NoError(t, err)
	return len(list)
}

func TestPurchaseAndRenew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.account(t, "buyer", "100.00")
	publisher := f.account(t, "publisher", "0")
	lic := f.license(t, publisher, "30.00", 10)

	ent, err := f.engine.Purchase(ctx, buyer, lic)
	require.NoError(t, err)
	assert.Equal(t, "70.00", f.balance(t, buyer))
	assert.Equal(t, 10, ent.Duration)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), ent.StartDate)
	assert.Equal(t, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), ent.EndDate)
	assert.Equal(t, "publisher", ent.License.Account.User.Username)
	assert.True(t, IsActive(ent, f.engine.Today()))

	renewed, err := f.engine.Renew(ctx, buyer, ent.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", f.balance(t, buyer))
	assert.Equal(t, 20, renewed.Duration)
	assert.Equal(t, ent.StartDate, renewed.StartDate)
	assert.Equal(t, time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC), renewed.EndDate)

	// publisher balance is untouched: purchases are not transfers to the seller
	assert.Equal(t, "0.00", f.balance(t, publisher))
	assert.Equal(t, []uint{buyer, buyer}, f.inv.ids)
}

func TestPurchaseSelfRejectedRegardlessOfBalance(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner", "1000.00")
	lic := f.license(t, owner, "1.00", 5)

	_, err := f.engine.Purchase(context.Background(), owner, lic)
	assert.ErrorIs(t, err, apperror.ErrSelfPurchase)
	assert.Equal(t, "1000.00", f.balance(t, owner))
	assert.Zero(t, f.count(t, owner))
}

func TestPurchaseUnknownLicense(t *testing.T) {
	f := newFixture(t)
	buyer := f.account(t, "buyer", "10.00")
	_, err := f.engine.Purchase(context.Background(), buyer, 42)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// vanishingLicenses deletes a license right after it has been read, as a
// publisher deleting it concurrently would.
type vanishingLicenses struct {
	repository.LicenseRepository
}

func (v vanishingLicenses) GetByID(ctx context.Context, id uint) (*models.License, error) {
	l, err := v.LicenseRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.LicenseRepository.Delete(ctx, id); err != nil {
		return nil, err
	}
	return l, nil
}

func TestPurchaseLicenseDeletedMidway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.account(t, "buyer", "10.00")
	publisher := f.account(t, "publisher", "0")
	lic := f.license(t, publisher, "5.00", 7)
	f.repos.License = vanishingLicenses{f.repos.License}

	_, err := f.engine.Purchase(ctx, buyer, lic)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, "10.00", f.balance(t, buyer))
	assert.Zero(t, f.count(t, buyer))
	assert.Empty(t, f.inv.ids)
}

func TestPurchaseRejectsActiveConflictAcrossLicenses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.account(t, "buyer", "100.00")
	publisher := f.account(t, "publisher", "0")
	weekly := f.license(t, publisher, "5.00", 7)
	monthly := f.license(t, publisher, "15.00", 30)

	_, err := f.engine.Purchase(ctx, buyer, weekly)
	require.NoError(t, err)

	_, err = f.engine.Purchase(ctx, buyer, monthly)
	assert.ErrorIs(t, err, apperror.ErrDuplicateActiveEntitlement)
	assert.Equal(t, map[string]string{"license": "You already have an active license for this user."}, err.(*apperror.Error).Fields)
	assert.Equal(t, "95.00", f.balance(t, buyer))
	assert.Equal(t, 1, f.count(t, buyer))
}

func TestPurchasePurgesExpiredConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.account(t, "buyer", "100.00")
	publisher := f.account(t, "publisher", "0")
	lic := f.license(t, publisher, "10.00", 3)

	first, err := f.engine.Purchase(ctx, buyer, lic)
	require.NoError(t, err)

	// end date day is still active
	f.now = f.now.AddDate(0, 0, 3)
	_, err = f.engine.Purchase(ctx, buyer, lic)
	assert.ErrorIs(t, err, apperror.ErrDuplicateActiveEntitlement)

	f.now = f.now.AddDate(0, 0, 1)
	second, err := f.engine.Purchase(ctx, buyer, lic)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, f.count(t, buyer))
	assert.Equal(t, "80.00", f.balance(t, buyer))
}

func TestPurchaseInsufficientFundsRollsBackPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.account(t, "buyer", "10.00")
	publisher := f.account(t, "publisher", "0")
	cheap := f.license(t, publisher, "10.00", 1)
	pricey := f.license(t, publisher, "50.00", 30)

	_, err := f.engine.Purchase(ctx, buyer, cheap)
	require.NoError(t, err)
	f.now = f.now.AddDate(0, 0, 5)

	_, err = f.engine.Purchase(ctx, buyer, pricey)
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)
	assert.Equal(t, 1, f.count(t, buyer), "expired entitlement must survive a failed purchase")
	assert.Equal(t, "0.00", f.balance(t, buyer))
}

func TestPurchaseOtherPublisherIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.account(t, "buyer", "100.00")
	p1 := f.account(t, "p1", "0")
	p2 := f.account(t, "p2", "0")

	_, err := f.engine.Purchase(ctx, buyer, f.license(t, p1, "1.00", 5))
	require.NoError(t, err)
	_, err = f.engine.Purchase(ctx, buyer, f.license(t, p2, "1.00", 5))
	require.NoError(t, err)

	ids, err := f.engine.ActivePublishers(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, []uint{p1, p2}, ids)
}

func TestConcurrentPurchasesAdmitOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.account(t, "buyer", "100.00")
	publisher := f.account(t, "publisher", "0")
	licenses := []uint{
		f.license(t, publisher, "10.00", 5),
		f.license(t, publisher, "10.00", 10),
	}

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(lic uint) {
			defer wg.Done()
			if _, err := f.engine.Purchase(ctx, buyer, lic); err == nil {
				ok.Add(1)
			}
		}(licenses[i%2])
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, 1, f.count(t, buyer))
	assert.Equal(t, "90.00", f.balance(t, buyer))
}

func TestRenewEdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.account(t, "buyer", "10.00")
	other := f.account(t, "other", "100.00")
	publisher := f.account(t, "publisher", "0")
	lic := f.license(t, publisher, "10.00", 7)

	ent, err := f.engine.Purchase(ctx, buyer, lic)
	require.NoError(t, err)

	_, err = f.engine.Renew(ctx, other, ent.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.engine.Renew(ctx, buyer, ent.ID)
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)

	got, err := f.engine.Get(ctx, buyer, ent.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Duration)
	assert.Equal(t, ent.EndDate, got.EndDate)
}

func TestRenewUsesCurrentLicenseTerms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.account(t, "buyer", "100.00")
	publisher := f.account(t, "publisher", "0")
	licID := f.license(t, publisher, "10.00", 7)

	ent, err := f.engine.Purchase(ctx, buyer, licID)
	require.NoError(t, err)

	lic, err := f.repos.License.GetByID(ctx, licID)
	require.NoError(t, err)
	lic.Price = decimal.RequireFromString("25.00")
	lic.Duration = 3
	require.NoError(t, f.repos.License.Update(ctx, lic))

	renewed, err := f.engine.Renew(ctx, buyer, ent.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, renewed.Duration)
	assert.Equal(t, "65.00", f.balance(t, buyer))
}

func TestDeleteAndPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.account(t, "buyer", "10.00")
	other := f.account(t, "other", "0")
	publisher := f.account(t, "publisher", "0")
	ent, err := f.engine.Purchase(ctx, buyer, f.license(t, publisher, "4.00", 7))
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.Patch(ctx, buyer, ent.ID), apperror.ErrForbidden)
	assert.ErrorIs(t, f.engine.Delete(ctx, other, ent.ID), apperror.ErrNotFound)

	require.NoError(t, f.engine.Delete(ctx, buyer, ent.ID))
	assert.Zero(t, f.count(t, buyer))
	assert.Equal(t, "6.00", f.balance(t, buyer), "delete does not refund")

	_, err = f.engine.Get(ctx, buyer, ent.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPlanPurchase(t *testing.T) {
	today := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	expired := models.Entitlement{ID: 1, Duration: 1, StartDate: today.AddDate(0, 0, -5)}
	expired.Recompute()
	active := models.Entitlement{ID: 2, Duration: 30, StartDate: today.AddDate(0, 0, -5)}
	active.Recompute()

	purge, err := planPurchase([]models.Entitlement{expired}, today)
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, purge)

	_, err = planPurchase([]models.Entitlement{expired, active}, today)
	assert.ErrorIs(t, err, apperror.ErrDuplicateActiveEntitlement)

	purge, err = planPurchase(nil, today)
	require.NoError(t, err)
	assert.Empty(t, purge)
}

func TestAtMostOneEntitlementPerPublisherProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("purchases and day jumps never leave two entitlements for one publisher", prop.ForAll(
		func(steps []int) bool {
			f := newFixture(t)
			ctx := context.Background()
			buyer := f.account(t, "buyer", "1000.00")
			publisher := f.account(t, "publisher", "0")
			lics := []uint{f.license(t, publisher, "1.00", 2), f.license(t, publisher, "2.00", 5)}
			for _, step := range steps {
				f.now = f.now.AddDate(0, 0, step%4)
				_, _ = f.engine.Purchase(ctx, buyer, lics[step%2])
				list, err := f.repos.Entitlement.ListByAccountAndPublisher(ctx, buyer, publisher)
				if err != nil || len(list) > 1 {
					return false
				}
				bal := f.balance(t, buyer)
				if decimal.RequireFromString(bal).IsNegative() {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 20)),
	))

	properties.TestingRun(t)
}
