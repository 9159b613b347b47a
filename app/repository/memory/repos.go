package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/ClipPass/app/models"
	"github.com/ManuelReschke/ClipPass/app/repository"
)

type userRepo struct{ *session }

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	defer r.guard()()
	for _, u := range r.st.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = r.st.next("users")
	stamp(&user.CreatedAt, &user.UpdatedAt)
	r.st.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	defer r.guard()()
	u, ok := r.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) find(match func(models.User) bool) (*models.User, error) {
	for _, u := range rows(r.st.users, nil) {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.guard()()
	email = strings.TrimSpace(email)
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	defer r.guard()()
	username = strings.TrimSpace(username)
	return r.find(func(u models.User) bool { return u.Username == username })
}

func (r *userRepo) ExistsUsername(ctx context.Context, username string, excludeID uint) (bool, error) {
	defer r.guard()()
	_, err := r.find(func(u models.User) bool { return u.Username == username && u.ID != excludeID })
	return err == nil, nil
}

func (r *userRepo) ExistsEmail(ctx context.Context, email string, excludeID uint) (bool, error) {
	defer r.guard()()
	_, err := r.find(func(u models.User) bool { return u.Email == email && u.ID != excludeID })
	return err == nil, nil
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	defer r.guard()()
	if _, ok := r.st.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	for _, u := range r.st.users {
		if u.ID != user.ID && (u.Username == user.Username || u.Email == user.Email) {
			return repository.ErrDuplicate
		}
	}
	stamp(nil, &user.UpdatedAt)
	r.st.users[user.ID] = *user
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id uint) error {
	defer r.guard()()
	if _, ok := r.st.users[id]; !ok {
		return repository.ErrNotFound
	}
	r.st.deleteUser(id)
	return nil
}

func (r *userRepo) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	defer r.guard()()
	u, ok := r.st.users[id]
	if !ok {
		return nil
	}
	u.LastLoginAt = &at
	r.st.users[id] = u
	return nil
}

type apiKeyRepo struct{ *session }

func (r *apiKeyRepo) GetByUserID(ctx context.Context, userID uint) (*models.APIKey, error) {
	defer r.guard()()
	for _, k := range r.st.apiKeys {
		if k.UserID == userID {
			return &k, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *apiKeyRepo) GetActiveByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	defer r.guard()()
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, repository.ErrNotFound
	}
	for _, k := range r.st.apiKeys {
		if k.Hash == hash && k.RevokedAt == nil {
			return &k, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *apiKeyRepo) Save(ctx context.Context, key *models.APIKey) error {
	defer r.guard()()
	for _, k := range r.st.apiKeys {
		if k.UserID == key.UserID && k.ID != key.ID {
			return repository.ErrDuplicate
		}
	}
	if key.ID == 0 {
		key.ID = r.st.next("api_keys")
		if key.CreatedAt == nil {
			now := time.Now()
			key.CreatedAt = &now
		}
	}
	stored := *key
	stored.User = models.User{}
	r.st.apiKeys[key.ID] = stored
	return nil
}

func (r *apiKeyRepo) TouchUsage(ctx context.Context, id uint, at time.Time) error {
	defer r.guard()()
	if k, ok := r.st.apiKeys[id]; ok {
		k.LastUsedAt = &at
		r.st.apiKeys[id] = k
	}
	return nil
}

type accountRepo struct{ *session }

func (r *accountRepo) Create(ctx context.Context, account *models.Account) error {
	defer r.guard()()
	for _, a := range r.st.accounts {
		if a.UserID == account.UserID {
			return repository.ErrDuplicate
		}
	}
	account.ID = r.st.next("accounts")
	stamp(&account.CreatedAt, &account.UpdatedAt)
	stored := *account
	stored.User = models.User{}
	stored.Licenses = nil
	r.st.accounts[account.ID] = stored
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	defer r.guard()()
	if _, ok := r.st.accounts[id]; !ok {
		return nil, repository.ErrNotFound
	}
	a := r.st.account(id)
	return &a, nil
}

func (r *accountRepo) GetByUserID(ctx context.Context, userID uint) (*models.Account, error) {
	defer r.guard()()
	for id, a := range r.st.accounts {
		if a.UserID == userID {
			acc := r.st.account(id)
			return &acc, nil
		}
	}
	return nil, repository.ErrNotFound
}

// LockByID needs no extra locking: transactions already hold the store lock.
func (r *accountRepo) LockByID(ctx context.Context, id uint) (*models.Account, error) {
	defer r.guard()()
	a, ok := r.st.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *accountRepo) UpdatePhone(ctx context.Context, id uint, phone string) error {
	defer r.guard()()
	a, ok := r.st.accounts[id]
	if !ok {
		return nil
	}
	a.Phone = phone
	stamp(nil, &a.UpdatedAt)
	r.st.accounts[id] = a
	return nil
}

func (r *accountRepo) Debit(ctx context.Context, id uint, amount decimal.Decimal) (bool, error) {
	defer r.guard()()
	a, ok := r.st.accounts[id]
	if !ok || a.Balance.LessThan(amount) {
		return false, nil
	}
	a.Balance = a.Balance.Sub(amount)
	r.st.accounts[id] = a
	return true, nil
}

func (r *accountRepo) Credit(ctx context.Context, id uint, amount decimal.Decimal) (bool, error) {
	defer r.guard()()
	a, ok := r.st.accounts[id]
	if !ok {
		return false, nil
	}
	a.Balance = a.Balance.Add(amount)
	r.st.accounts[id] = a
	return true, nil
}

func (r *accountRepo) ListOthers(ctx context.Context, excludeID uint) ([]models.Account, error) {
	defer r.guard()()
	list := rows(r.st.accounts, func(a *models.Account) bool { return a.ID != excludeID })
	for i := range list {
		list[i] = r.st.account(list[i].ID)
		list[i].Licenses = rows(r.st.licenses, func(l *models.License) bool { return l.AccountID == list[i].ID })
	}
	return list, nil
}

type licenseRepo struct{ *session }

func (r *licenseRepo) Create(ctx context.Context, license *models.License) error {
	defer r.guard()()
	if _, ok := r.st.accounts[license.AccountID]; !ok {
		return repository.ErrNotFound
	}
	license.ID = r.st.next("licenses")
	stamp(&license.CreatedAt, &license.UpdatedAt)
	stored := *license
	stored.Account = models.Account{}
	r.st.licenses[license.ID] = stored
	return nil
}

func (r *licenseRepo) GetByID(ctx context.Context, id uint) (*models.License, error) {
	defer r.guard()()
	if _, ok := r.st.licenses[id]; !ok {
		return nil, repository.ErrNotFound
	}
	l := r.st.license(id)
	return &l, nil
}

func (r *licenseRepo) Update(ctx context.Context, license *models.License) error {
	defer r.guard()()
	if _, ok := r.st.licenses[license.ID]; !ok {
		return repository.ErrNotFound
	}
	stamp(nil, &license.UpdatedAt)
	stored := *license
	stored.Account = models.Account{}
	r.st.licenses[license.ID] = stored
	return nil
}

func (r *licenseRepo) Delete(ctx context.Context, id uint) error {
	defer r.guard()()
	if _, ok := r.st.licenses[id]; !ok {
		return repository.ErrNotFound
	}
	r.st.deleteLicense(id)
	return nil
}

func (r *licenseRepo) list(keep func(*models.License) bool) []models.License {
	list := rows(r.st.licenses, keep)
	for i := range list {
		list[i] = r.st.license(list[i].ID)
	}
	return list
}

func (r *licenseRepo) ListByAccount(ctx context.Context, accountID uint) ([]models.License, error) {
	defer r.guard()()
	return r.list(func(l *models.License) bool { return l.AccountID == accountID }), nil
}

func (r *licenseRepo) ListExcludingAccount(ctx context.Context, accountID uint) ([]models.License, error) {
	defer r.guard()()
	return r.list(func(l *models.License) bool { return l.AccountID != accountID }), nil
}

type entitlementRepo struct{ *session }

func (r *entitlementRepo) store(e *models.Entitlement) {
	e.Recompute()
	stored := *e
	stored.Account = models.Account{}
	stored.License = models.License{}
	r.st.entitlements[e.ID] = stored
}

func (r *entitlementRepo) Create(ctx context.Context, e *models.Entitlement) error {
	defer r.guard()()
	if _, ok := r.st.licenses[e.LicenseID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.st.accounts[e.AccountID]; !ok {
		return repository.ErrNotFound
	}
	e.ID = r.st.next("subscriptions")
	stamp(&e.CreatedAt, &e.UpdatedAt)
	r.store(e)
	return nil
}

func (r *entitlementRepo) Save(ctx context.Context, e *models.Entitlement) error {
	defer r.guard()()
	if e.ID == 0 {
		e.ID = r.st.next("subscriptions")
		stamp(&e.CreatedAt, nil)
	}
	stamp(nil, &e.UpdatedAt)
	r.store(e)
	return nil
}

func (r *entitlementRepo) Delete(ctx context.Context, id uint) error {
	defer r.guard()()
	if _, ok := r.st.entitlements[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.st.entitlements, id)
	return nil
}

func (r *entitlementRepo) DeleteMany(ctx context.Context, ids []uint) error {
	defer r.guard()()
	for _, id := range ids {
		delete(r.st.entitlements, id)
	}
	return nil
}

func (r *entitlementRepo) GetByIDForAccount(ctx context.Context, id, accountID uint) (*models.Entitlement, error) {
	defer r.guard()()
	e, ok := r.st.entitlements[id]
	if !ok || e.AccountID != accountID {
		return nil, repository.ErrNotFound
	}
	e = r.st.entitlement(id)
	return &e, nil
}

func (r *entitlementRepo) list(keep func(*models.Entitlement) bool) []models.Entitlement {
	list := rows(r.st.entitlements, keep)
	for i := range list {
		list[i] = r.st.entitlement(list[i].ID)
	}
	return list
}

func (r *entitlementRepo) ListByAccount(ctx context.Context, accountID uint) ([]models.Entitlement, error) {
	defer r.guard()()
	return r.list(func(e *models.Entitlement) bool { return e.AccountID == accountID }), nil
}

func (r *entitlementRepo) ListByAccountAndPublisher(ctx context.Context, accountID, publisherID uint) ([]models.Entitlement, error) {
	defer r.guard()()
	return r.list(func(e *models.Entitlement) bool {
		return e.AccountID == accountID && r.st.licenses[e.LicenseID].AccountID == publisherID
	}), nil
}

func (r *entitlementRepo) buyers(keep func(*models.Entitlement) bool) []uint {
	ids := []uint{}
	for _, e := range rows(r.st.entitlements, keep) {
		ids = append(ids, e.AccountID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func (r *entitlementRepo) ListBuyerIDsByLicense(ctx context.Context, licenseID uint) ([]uint, error) {
	defer r.guard()()
	return r.buyers(func(e *models.Entitlement) bool { return e.LicenseID == licenseID }), nil
}

func (r *entitlementRepo) ListBuyerIDsByPublisher(ctx context.Context, publisherID uint) ([]uint, error) {
	defer r.guard()()
	return r.buyers(func(e *models.Entitlement) bool {
		return r.st.licenses[e.LicenseID].AccountID == publisherID
	}), nil
}

type videoRepo struct{ *session }

func (r *videoRepo) Create(ctx context.Context, video *models.Video) error {
	defer r.guard()()
	if _, ok := r.st.accounts[video.AccountID]; !ok {
		return repository.ErrNotFound
	}
	video.ID = r.st.next("videos")
	stamp(&video.CreatedAt, &video.UpdatedAt)
	stored := *video
	stored.Account = models.Account{}
	r.st.videos[video.ID] = stored
	return nil
}

func (r *videoRepo) GetByID(ctx context.Context, id uint) (*models.Video, error) {
	defer r.guard()()
	if _, ok := r.st.videos[id]; !ok {
		return nil, repository.ErrNotFound
	}
	v := r.st.video(id)
	return &v, nil
}

func (r *videoRepo) Update(ctx context.Context, video *models.Video) error {
	defer r.guard()()
	if _, ok := r.st.videos[video.ID]; !ok {
		return repository.ErrNotFound
	}
	stamp(nil, &video.UpdatedAt)
	stored := *video
	stored.Account = models.Account{}
	r.st.videos[video.ID] = stored
	return nil
}

func (r *videoRepo) Delete(ctx context.Context, id uint) error {
	defer r.guard()()
	if _, ok := r.st.videos[id]; !ok {
		return repository.ErrNotFound
	}
	r.st.deleteVideo(id)
	return nil
}

func (r *videoRepo) list(keep func(*models.Video) bool) []models.Video {
	list := rows(r.st.videos, keep)
	for i := range list {
		list[i] = r.st.video(list[i].ID)
	}
	return list
}

func (r *videoRepo) ListByAccount(ctx context.Context, accountID uint) ([]models.Video, error) {
	defer r.guard()()
	return r.list(func(v *models.Video) bool { return v.AccountID == accountID }), nil
}

func (r *videoRepo) ListVisible(ctx context.Context, publisherIDs []uint, filter repository.VideoFilter) ([]models.Video, error) {
	defer r.guard()()
	allowed := make(map[uint]bool, len(publisherIDs))
	for _, id := range publisherIDs {
		allowed[id] = true
	}
	category := strings.TrimSpace(filter.Category)
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	list := r.list(func(v *models.Video) bool {
		if !allowed[v.AccountID] || v.Hidden {
			return false
		}
		if category != "" && v.Category != category {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(v.Title), search) &&
			!strings.Contains(strings.ToLower(v.Description), search) {
			return false
		}
		return true
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(list) {
			return []models.Video{}, nil
		}
		list = list[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(list) {
		list = list[:filter.Limit]
	}
	return list, nil
}

type activityRepo struct{ *session }

func (r *activityRepo) CreateWatchEvent(ctx context.Context, ev *models.WatchEvent) error {
	defer r.guard()()
	ev.ID = r.st.next("watch_history")
	stamp(&ev.WatchedAt, nil)
	stored := *ev
	stored.Account = models.Account{}
	stored.Video = models.Video{}
	r.st.watch[ev.ID] = stored
	return nil
}

func (r *activityRepo) CountWatchEvents(ctx context.Context, videoID uint) (int64, error) {
	defer r.guard()()
	var n int64
	for _, w := range r.st.watch {
		if w.VideoID == videoID {
			n++
		}
	}
	return n, nil
}

func (r *activityRepo) ListWatchEventsByAccount(ctx context.Context, accountID uint) ([]models.WatchEvent, error) {
	defer r.guard()()
	list := rows(r.st.watch, func(w *models.WatchEvent) bool { return w.AccountID == accountID })
	for i := range list {
		list[i].Video = r.st.videos[list[i].VideoID]
	}
	return list, nil
}

func (r *activityRepo) CreateComment(ctx context.Context, c *models.Comment) error {
	defer r.guard()()
	c.ID = r.st.next("comments")
	stamp(&c.CreatedAt, nil)
	stored := *c
	stored.Account = models.Account{}
	stored.Video = models.Video{}
	r.st.comments[c.ID] = stored
	return nil
}

func (r *activityRepo) ListComments(ctx context.Context, videoID uint) ([]models.Comment, error) {
	defer r.guard()()
	list := rows(r.st.comments, func(c *models.Comment) bool { return c.VideoID == videoID })
	for i := range list {
		list[i].Account = r.st.account(list[i].AccountID)
	}
	return list, nil
}

func (r *activityRepo) CreateRating(ctx context.Context, rating *models.Rating) error {
	defer r.guard()()
	for _, existing := range r.st.ratings {
		if existing.AccountID == rating.AccountID && existing.VideoID == rating.VideoID {
			return repository.ErrDuplicate
		}
	}
	rating.ID = r.st.next("ratings")
	stamp(&rating.CreatedAt, nil)
	stored := *rating
	stored.Account = models.Account{}
	stored.Video = models.Video{}
	r.st.ratings[rating.ID] = stored
	return nil
}

func (r *activityRepo) ListRatings(ctx context.Context, videoID uint) ([]models.Rating, error) {
	defer r.guard()()
	list := rows(r.st.ratings, func(x *models.Rating) bool { return x.VideoID == videoID })
	for i := range list {
		list[i].Account = r.st.account(list[i].AccountID)
	}
	return list, nil
}
