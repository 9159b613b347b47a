// Package memory is an in-process implementation of the repositories used by
// tests and by APP_STORE=memory. One mutex guards all tables; a transaction
// holds it for its whole duration and restores a snapshot on rollback.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ManuelReschke/ClipPass/app/models"
	"github.com/ManuelReschke/ClipPass/app/repository"
)

type state struct {
	mu sync.Mutex

	users        map[uint]models.User
	apiKeys      map[uint]models.APIKey
	accounts     map[uint]models.Account
	licenses     map[uint]models.License
	entitlements map[uint]models.Entitlement
	videos       map[uint]models.Video
	watch        map[uint]models.WatchEvent
	comments     map[uint]models.Comment
	ratings      map[uint]models.Rating
	seq          map[string]uint
}

func newState() *state {
	return &state{
		users:        map[uint]models.User{},
		apiKeys:      map[uint]models.APIKey{},
		accounts:     map[uint]models.Account{},
		licenses:     map[uint]models.License{},
		entitlements: map[uint]models.Entitlement{},
		videos:       map[uint]models.Video{},
		watch:        map[uint]models.WatchEvent{},
		comments:     map[uint]models.Comment{},
		ratings:      map[uint]models.Rating{},
		seq:          map[string]uint{},
	}
}

// snapshot copies every table. Stored rows never carry associations, so a
// shallow copy of each map is enough.
func (s *state) snapshot() *state {
	return &state{
		users:        maps.Clone(s.users),
		apiKeys:      maps.Clone(s.apiKeys),
		accounts:     maps.Clone(s.accounts),
		licenses:     maps.Clone(s.licenses),
		entitlements: maps.Clone(s.entitlements),
		videos:       maps.Clone(s.videos),
		watch:        maps.Clone(s.watch),
		comments:     maps.Clone(s.comments),
		ratings:      maps.Clone(s.ratings),
		seq:          maps.Clone(s.seq),
	}
}

func (s *state) restore(snap *state) {
	s.users = snap.users
	s.apiKeys = snap.apiKeys
	s.accounts = snap.accounts
	s.licenses = snap.licenses
	s.entitlements = snap.entitlements
	s.videos = snap.videos
	s.watch = snap.watch
	s.comments = snap.comments
	s.ratings = snap.ratings
	s.seq = snap.seq
}

func (s *state) next(table string) uint {
	s.seq[table]++
	return s.seq[table]
}

// session binds repositories to the state, either standalone (each call takes
// the lock) or inside a transaction that already holds it.
type session struct {
	st   *state
	inTx bool
}

func (s *session) guard() func() {
	if s.inTx {
		return func() {}
	}
	s.st.mu.Lock()
	return s.st.mu.Unlock
}

// Transaction runs fn with the lock held. Nested calls reuse the lock and
// roll back only their own writes.
func (s *session) Transaction(ctx context.Context, fn func(tx *repository.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.guard()()

	snap := s.st.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.st.restore(snap)
			panic(p)
		}
		if err != nil {
			s.st.restore(snap)
		}
	}()
	return fn(bind(s.st, true))
}

// New returns an empty store.
func New() *repository.Repositories {
	return bind(newState(), false)
}

func bind(st *state, inTx bool) *repository.Repositories {
	s := &session{st: st, inTx: inTx}
	return &repository.Repositories{
		User:        &userRepo{s},
		APIKey:      &apiKeyRepo{s},
		Account:     &accountRepo{s},
		License:     &licenseRepo{s},
		Entitlement: &entitlementRepo{s},
		Video:       &videoRepo{s},
		Activity:    &activityRepo{s},
		Tx:          s,
	}
}

// rows returns the values of m ordered by id, filtered by keep.
func rows[T any](m map[uint]T, keep func(*T) bool) []T {
	ids := slices.Sorted(maps.Keys(m))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v := m[id]
		if keep == nil || keep(&v) {
			out = append(out, v)
		}
	}
	return out
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

// Hydration mirrors the preloads of the gorm repositories.

func (s *state) account(id uint) models.Account {
	a := s.accounts[id]
	a.User = s.users[a.UserID]
	return a
}

func (s *state) license(id uint) models.License {
	l := s.licenses[id]
	l.Account = s.account(l.AccountID)
	return l
}

func (s *state) entitlement(id uint) models.Entitlement {
	e := s.entitlements[id]
	e.License = s.license(e.LicenseID)
	e.Account = s.account(e.AccountID)
	return e
}

func (s *state) video(id uint) models.Video {
	v := s.videos[id]
	v.Account = s.account(v.AccountID)
	return v
}

// Cascades follow the ON DELETE CASCADE foreign keys of the schema.

func (s *state) deleteUser(id uint) {
	delete(s.users, id)
	for kid, k := range s.apiKeys {
		if k.UserID == id {
			delete(s.apiKeys, kid)
		}
	}
	for aid, a := range s.accounts {
		if a.UserID == id {
			s.deleteAccount(aid)
		}
	}
}

func (s *state) deleteAccount(id uint) {
	delete(s.accounts, id)
	for lid, l := range s.licenses {
		if l.AccountID == id {
			s.deleteLicense(lid)
		}
	}
	for vid, v := range s.videos {
		if v.AccountID == id {
			s.deleteVideo(vid)
		}
	}
	for eid, e := range s.entitlements {
		if e.AccountID == id {
			delete(s.entitlements, eid)
		}
	}
	for wid, w := range s.watch {
		if w.AccountID == id {
			delete(s.watch, wid)
		}
	}
	for cid, c := range s.comments {
		if c.AccountID == id {
			delete(s.comments, cid)
		}
	}
	for rid, r := range s.ratings {
		if r.AccountID == id {
			delete(s.ratings, rid)
		}
	}
}

func (s *state) deleteLicense(id uint) {
	delete(s.licenses, id)
	for eid, e := range s.entitlements {
		if e.LicenseID == id {
			delete(s.entitlements, eid)
		}
	}
}

func (s *state) deleteVideo(id uint) {
	delete(s.videos, id)
	for wid, w := range s.watch {
		if w.VideoID == id {
			delete(s.watch, wid)
		}
	}
	for cid, c := range s.comments {
		if c.VideoID == id {
			delete(s.comments, cid)
		}
	}
	for rid, r := range s.ratings {
		if r.VideoID == id {
			delete(s.ratings, rid)
		}
	}
}
