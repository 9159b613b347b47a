package accessgate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ClipPass/app/models"
	"github.com/ManuelReschke/ClipPass/app/repository"
	"github.com/ManuelReschke/ClipPass/app/repository/memory"
	"github.com/ManuelReschke/ClipPass/internal/pkg/apperror"
	"github.com/ManuelReschke/ClipPass/internal/pkg/catalog"
	"github.com/ManuelReschke/ClipPass/internal/pkg/entitlements"
	"github.com/ManuelReschke/ClipPass/internal/pkg/identity"
	"github.com/ManuelReschke/ClipPass/internal/pkg/ledger"
)

type cachedSet struct {
	day time.Time
	ids []uint
}

// mapCache never expires entries on its own, so only invalidation and the
// day stamp keep it correct.
type mapCache struct {
	mu   sync.Mutex
	sets map[uint]cachedSet
	hits int
}

func newMapCache() *mapCache { return &mapCache{sets: map[uint]cachedSet{}} }

func (m *mapCache) Get(_ context.Context, id uint, day time.Time) ([]uint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sets[id]
	if !ok || !entry.day.Equal(day) {
		return nil, false
	}
	m.hits++
	return entry.ids, true
}

func (m *mapCache) Set(_ context.Context, id uint, day time.Time, ids []uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[id] = cachedSet{day: day, ids: ids}
}

func (m *mapCache) Invalidate(_ context.Context, id uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets, id)
}

type upperResolver struct{ err error }

func (u upperResolver) Resolve(_ context.Context, ref string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	return "signed:" + ref, nil
}

type world struct {
	repos     *repository.Repositories
	engine    *entitlements.Engine
	gate      *Gate
	cache     *mapCache
	now       time.Time
	viewer    uint
	publisher uint
	license   uint
	public    *models.Video
	hidden    *models.Video
}

func newWorld(t *testing.T, opts ...Option) *world {
	t.Helper()
	ctx := context.Background()
	w := &world{repos: memory.New(), cache: newMapCache(), now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	w.engine = entitlements.NewEngine(w.repos, ledger.New(zerolog.Nop()), zerolog.Nop(),
		entitlements.WithClock(func() time.Time { return w.now }),
		entitlements.WithInvalidator(w.cache),
	)
	w.gate = New(w.engine, w.repos.Video, w.repos.Activity, zerolog.Nop(), append([]Option{WithCache(w.cache)}, opts...)...)

	mk := func(name string, balance string) uint {
		u := &models.User{Username: name, Email: name + "@example.com"}
		require.NoError(t, w.repos.User.Create(ctx, u))
		a := &models.Account{UserID: u.ID, Balance: decimal.RequireFromString(balance)}
		require.NoError(t, w.repos.Account.Create(ctx, a))
		return a.ID
	}
	w.viewer = mk("viewer", "50.00")
	w.publisher = mk("publisher", "0")

	lic := &models.License{AccountID: w.publisher, Title: "week", Duration: 7, Price: decimal.RequireFromString("5.00")}
	require.NoError(t, w.repos.License.Create(ctx, lic))
	w.license = lic.ID

	w.public = &models.Video{AccountID: w.publisher, Title: "open", Description: "d", Category: "c", FileURL: "s3://bucket/open.mp4"}
	w.hidden = &models.Video{AccountID: w.publisher, Title: "hidden", Description: "d", Category: "c", Hidden: true}
	require.NoError(t, w.repos.Video.Create(ctx, w.public))
	require.NoError(t, w.repos.Video.Create(ctx, w.hidden))
	return w
}

func (w *world) views(t *testing.T, videoID uint) int64 {
	n, err := w.repos.Activity.CountWatchEvents(context.Background(), videoID)
	require.NoError(t, err)
	return n
}

func TestUnlicensedViewerSeesNothing(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	list, err := w.gate.ListVisible(ctx, w.viewer, repository.VideoFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = w.gate.Retrieve(ctx, w.viewer, w.public.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Zero(t, w.views(t, w.public.ID))
}

func TestLicensedViewerSeesNonHiddenOnly(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	_, err := w.engine.Purchase(ctx, w.viewer, w.license)
	require.NoError(t, err)

	list, err := w.gate.ListVisible(ctx, w.viewer, repository.VideoFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, w.public.ID, list[0].ID)

	_, err = w.gate.Retrieve(ctx, w.viewer, w.hidden.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	v, err := w.gate.Retrieve(ctx, w.viewer, w.public.ID)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/open.mp4", v.FileURL)
	_, err = w.gate.Retrieve(ctx, w.viewer, w.public.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.views(t, w.public.ID))

	history, err := w.repos.Activity.ListWatchEventsByAccount(ctx, w.viewer)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestAccessEndsAfterExpiry(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	_, err := w.engine.Purchase(ctx, w.viewer, w.license)
	require.NoError(t, err)
	_, err = w.gate.Retrieve(ctx, w.viewer, w.public.ID)
	require.NoError(t, err)

	w.now = w.now.AddDate(0, 0, 7)
	ok, err := w.gate.CanView(ctx, w.viewer, w.public)
	require.NoError(t, err)
	assert.True(t, ok, "end date is inclusive")

	w.now = w.now.AddDate(0, 0, 1)
	ok, err = w.gate.CanView(ctx, w.viewer, w.public)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = w.gate.Retrieve(ctx, w.viewer, w.public.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	list, err := w.gate.ListVisible(ctx, w.viewer, repository.VideoFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCachedSetServesOnlyItsDay(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	_, err := w.engine.Purchase(ctx, w.viewer, w.license)
	require.NoError(t, err)

	_, _ = w.gate.LicensedPublishers(ctx, w.viewer)
	_, _ = w.gate.LicensedPublishers(ctx, w.viewer)
	assert.Equal(t, 1, w.cache.hits)

	w.now = w.now.Add(24 * time.Hour)
	_, _ = w.gate.LicensedPublishers(ctx, w.viewer)
	assert.Equal(t, 1, w.cache.hits)
}

func TestLicenseDeleteRevokesCachedAccess(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	svc := catalog.NewService(w.repos.License, w.repos.Video, zerolog.Nop(),
		catalog.WithBuyerInvalidation(w.repos.Entitlement, w.gate))

	_, err := w.engine.Purchase(ctx, w.viewer, w.license)
	require.NoError(t, err)
	_, err = w.gate.Retrieve(ctx, w.viewer, w.public.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLicense(ctx, w.publisher, w.license))

	ents, err := w.engine.List(ctx, w.viewer)
	require.NoError(t, err)
	assert.Empty(t, ents)
	_, err = w.gate.Retrieve(ctx, w.viewer, w.public.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	ids, err := w.gate.LicensedPublishers(ctx, w.viewer)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPublisherDeleteRevokesCachedAccess(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	ident := identity.NewService(w.repos, ledger.New(zerolog.Nop()), []byte("gate-test-secret-0123456789"), time.Hour, zerolog.Nop(),
		identity.WithInvalidator(w.gate))

	_, err := w.engine.Purchase(ctx, w.viewer, w.license)
	require.NoError(t, err)
	ids, err := w.gate.LicensedPublishers(ctx, w.viewer)
	require.NoError(t, err)
	require.Equal(t, []uint{w.publisher}, ids)

	pub, err := w.repos.Account.GetByID(ctx, w.publisher)
	require.NoError(t, err)
	require.NoError(t, ident.DeleteProfile(ctx, identity.Principal{UserID: pub.UserID, AccountID: pub.ID}))

	ids, err = w.gate.LicensedPublishers(ctx, w.viewer)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPurchaseInvalidatesCachedSet(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	ids, err := w.gate.LicensedPublishers(ctx, w.viewer)
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, _ = w.gate.LicensedPublishers(ctx, w.viewer)
	assert.Equal(t, 1, w.cache.hits)

	_, err = w.engine.Purchase(ctx, w.viewer, w.license)
	require.NoError(t, err)

	ids, err = w.gate.LicensedPublishers(ctx, w.viewer)
	require.NoError(t, err)
	assert.Equal(t, []uint{w.publisher}, ids)
}

func TestOwnerReachesOwnVideoButCannotRetrieve(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	v, err := w.gate.Reachable(ctx, w.publisher, w.hidden.ID)
	require.NoError(t, err)
	assert.Equal(t, w.hidden.ID, v.ID)

	_, err = w.gate.Retrieve(ctx, w.publisher, w.public.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = w.gate.Reachable(ctx, w.viewer, w.public.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = w.gate.Reachable(ctx, w.viewer, 9999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRetrieveResolvesMediaURL(t *testing.T) {
	w := newWorld(t, WithResolver(upperResolver{}))
	ctx := context.Background()
	_, err := w.engine.Purchase(ctx, w.viewer, w.license)
	require.NoError(t, err)

	v, err := w.gate.Retrieve(ctx, w.viewer, w.public.ID)
	require.NoError(t, err)
	assert.Equal(t, "signed:s3://bucket/open.mp4", v.FileURL)

	stored, err := w.repos.Video.GetByID(ctx, w.public.ID)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/open.mp4", stored.FileURL)
}

func TestRetrieveResolverFailure(t *testing.T) {
	w := newWorld(t, WithResolver(upperResolver{err: errors.New("s3 down")}))
	ctx := context.Background()
	_, err := w.engine.Purchase(ctx, w.viewer, w.license)
	require.NoError(t, err)

	_, err = w.gate.Retrieve(ctx, w.viewer, w.public.ID)
	assert.Error(t, err)
	assert.Zero(t, w.views(t, w.public.ID))
}
