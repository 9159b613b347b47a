// Package entitlements implements the license purchase lifecycle: buying,
// renewing and deleting time-boxed access to a publisher's catalog.
package entitlements

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuelReschke/ClipPass/app/models"
	"github.com/ManuelReschke/ClipPass/app/repository"
	"github.com/ManuelReschke/ClipPass/internal/pkg/apperror"
	"github.com/ManuelReschke/ClipPass/internal/pkg/ledger"
)

const (
	msgLicenseNotFound      = "License not found"
	msgSubscriptionNotFound = "Subscription not found"
	msgPatchForbidden       = "Partial updates of subscriptions are not allowed."
)

// Invalidator is told whenever a viewer's set of entitlements changes.
type Invalidator interface {
	Invalidate(ctx context.Context, accountID uint)
}

type Option func(*Engine)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithInvalidator(inv Invalidator) Option {
	return func(e *Engine) { e.invalidator = inv }
}

// Engine owns every entitlement mutation.
type Engine struct {
	repos       *repository.Repositories
	ledger      *ledger.Ledger
	now         func() time.Time
	invalidator Invalidator
	log         zerolog.Logger
}

func NewEngine(repos *repository.Repositories, l *ledger.Ledger, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repos:  repos,
		ledger: l,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today is the current UTC calendar date.
func (e *Engine) Today() time.Time {
	return models.DateOf(e.now().UTC())
}

// IsActive reports whether ent still grants access on today.
func IsActive(ent *models.Entitlement, today time.Time) bool {
	return ent.IsActiveOn(today)
}

// Purchase buys licenseID for the buyer. The buyer's account row is locked
// for the whole check-purge-debit-create sequence, so two purchases by the
// same buyer can never both pass the conflict check.
func (e *Engine) Purchase(ctx context.Context, buyerID, licenseID uint) (*models.Entitlement, error) {
	license, err := e.repos.License.GetByID(ctx, licenseID)
	if err != nil {
		return nil, notFound(err, msgLicenseNotFound)
	}
	if license.AccountID == buyerID {
		return nil, apperror.SelfPurchase()
	}

	today := e.Today()
	var created *models.Entitlement
	err = e.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Account.LockByID(ctx, buyerID); err != nil {
			return notFound(err, "Account not found")
		}
		// the publisher may have deleted the license since the first read
		license, err := tx.License.GetByID(ctx, licenseID)
		if err != nil {
			return notFound(err, msgLicenseNotFound)
		}

		existing, err := tx.Entitlement.ListByAccountAndPublisher(ctx, buyerID, license.AccountID)
		if err != nil {
			return fmt.Errorf("list conflicting entitlements: %w", err)
		}
		purge, err := planPurchase(existing, today)
		if err != nil {
			return err
		}
		if err := tx.Entitlement.DeleteMany(ctx, purge); err != nil {
			return fmt.Errorf("purge expired entitlements: %w", err)
		}

		if err := e.ledger.Debit(ctx, tx.Account, buyerID, license.Price, "license"); err != nil {
			return err
		}

		ent := &models.Entitlement{
			AccountID: buyerID,
			LicenseID: license.ID,
			Duration:  license.Duration,
			StartDate: today,
		}
		if err := tx.Entitlement.Create(ctx, ent); err != nil {
			if errors.Is(err, repository.ErrForeignKey) || errors.Is(err, repository.ErrNotFound) {
				return apperror.NotFound(msgLicenseNotFound)
			}
			return fmt.Errorf("create entitlement: %w", err)
		}
		created, err = tx.Entitlement.GetByIDForAccount(ctx, ent.ID, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(ctx, buyerID)
	e.log.Info().
		Uint("account_id", buyerID).
		Uint("license_id", license.ID).
		Uint("publisher_id", license.AccountID).
		Str("price", models.FormatMoney(license.Price)).
		Msg("license purchased")
	return created, nil
}

// planPurchase decides what a purchase must do with the buyer's existing
// entitlements on the same publisher: any active one rejects the purchase,
// otherwise all of them are purged.
func planPurchase(existing []models.Entitlement, today time.Time) ([]uint, error) {
	purge := make([]uint, 0, len(existing))
	for i := range existing {
		if existing[i].IsActiveOn(today) {
			return nil, apperror.DuplicateActiveEntitlement()
		}
		purge = append(purge, existing[i].ID)
	}
	return purge, nil
}

// Renew charges the license price again and adds its duration. Price and
// duration always come from the stored license.
func (e *Engine) Renew(ctx context.Context, requesterID, entitlementID uint) (*models.Entitlement, error) {
	var renewed *models.Entitlement
	err := e.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Account.LockByID(ctx, requesterID); err != nil {
			return notFound(err, "Account not found")
		}
		ent, err := tx.Entitlement.GetByIDForAccount(ctx, entitlementID, requesterID)
		if err != nil {
			return notFound(err, msgSubscriptionNotFound)
		}
		license, err := tx.License.GetByID(ctx, ent.LicenseID)
		if err != nil {
			return notFound(err, msgLicenseNotFound)
		}

		if err := e.ledger.Debit(ctx, tx.Account, requesterID, license.Price, "license"); err != nil {
			return err
		}

		ent.Extend(license.Duration)
		if err := tx.Entitlement.Save(ctx, ent); err != nil {
			return fmt.Errorf("save entitlement: %w", err)
		}
		renewed, err = tx.Entitlement.GetByIDForAccount(ctx, ent.ID, requesterID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(ctx, requesterID)
	e.log.Info().
		Uint("account_id", requesterID).
		Uint("subscription_id", renewed.ID).
		Int("duration", renewed.Duration).
		Msg("subscription renewed")
	return renewed, nil
}

// Delete removes an entitlement owned by the requester. Nothing is refunded.
func (e *Engine) Delete(ctx context.Context, requesterID, entitlementID uint) error {
	if _, err := e.repos.Entitlement.GetByIDForAccount(ctx, entitlementID, requesterID); err != nil {
		return notFound(err, msgSubscriptionNotFound)
	}
	if err := e.repos.Entitlement.Delete(ctx, entitlementID); err != nil {
		return notFound(err, msgSubscriptionNotFound)
	}
	e.invalidate(ctx, requesterID)
	e.log.Info().Uint("account_id", requesterID).Uint("subscription_id", entitlementID).Msg("subscription deleted")
	return nil
}

// Patch is never allowed; renewals go through Renew.
func (e *Engine) Patch(ctx context.Context, requesterID, entitlementID uint) error {
	return apperror.Forbidden(msgPatchForbidden)
}

func (e *Engine) List(ctx context.Context, buyerID uint) ([]models.Entitlement, error) {
	return e.repos.Entitlement.ListByAccount(ctx, buyerID)
}

func (e *Engine) Get(ctx context.Context, buyerID, entitlementID uint) (*models.Entitlement, error) {
	ent, err := e.repos.Entitlement.GetByIDForAccount(ctx, entitlementID, buyerID)
	if err != nil {
		return nil, notFound(err, msgSubscriptionNotFound)
	}
	return ent, nil
}

// ActivePublishers returns the sorted ids of publishers the viewer holds an
// active entitlement for.
func (e *Engine) ActivePublishers(ctx context.Context, viewerID uint) ([]uint, error) {
	list, err := e.repos.Entitlement.ListByAccount(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	today := e.Today()
	ids := make([]uint, 0, len(list))
	for i := range list {
		if list[i].IsActiveOn(today) {
			ids = append(ids, list[i].PublisherID())
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func (e *Engine) invalidate(ctx context.Context, accountID uint) {
	if e.invalidator != nil {
		e.invalidator.Invalidate(ctx, accountID)
	}
}

func notFound(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(msg)
	}
	return err
}
