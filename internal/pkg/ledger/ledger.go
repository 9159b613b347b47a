// Package ledger is the only code path that changes an account balance.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/ClipPass/app/models"
	"github.com/ManuelReschke/ClipPass/app/repository"
	"github.com/ManuelReschke/ClipPass/internal/pkg/apperror"
)

// Ledger debits and credits account balances. Callers pass the account
// repository of their own transaction so the balance change commits or rolls
// back together with the rest of their writes.
type Ledger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Ledger {
	return &Ledger{log: log}
}

// Debit subtracts amount from the account if the balance covers it. field
// names the request field an insufficient-funds error is reported under.
func (l *Ledger) Debit(ctx context.Context, accounts repository.AccountRepository, accountID uint, amount decimal.Decimal, field string) error {
	if amount.IsNegative() {
		return apperror.Validation("amount", "Ensure this value is greater than or equal to 0.")
	}
	if amount.IsZero() {
		// MySQL reports zero affected rows for a no-op update.
		if _, err := accounts.GetByID(ctx, accountID); err != nil {
			return l.missing(err, accountID)
		}
		return nil
	}

	applied, err := accounts.Debit(ctx, accountID, amount)
	if err != nil {
		return fmt.Errorf("debit account %d: %w", accountID, err)
	}
	if !applied {
		if _, err := accounts.GetByID(ctx, accountID); err != nil {
			return l.missing(err, accountID)
		}
		l.log.Debug().Uint("account_id", accountID).Str("amount", models.FormatMoney(amount)).Msg("debit rejected")
		return apperror.InsufficientFunds(field)
	}

	l.log.Debug().Uint("account_id", accountID).Str("amount", models.FormatMoney(amount)).Msg("debited")
	return nil
}

// Credit adds a positive amount to the account.
func (l *Ledger) Credit(ctx context.Context, accounts repository.AccountRepository, accountID uint, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.Validation("amount", "Ensure this value is greater than 0.")
	}
	if !models.IsMoney(amount) {
		return apperror.Validation("amount", "Ensure that there are no more than 2 decimal places.")
	}
	applied, err := accounts.Credit(ctx, accountID, amount)
	if err != nil {
		return fmt.Errorf("credit account %d: %w", accountID, err)
	}
	if !applied {
		return apperror.NotFound("Account not found")
	}
	l.log.Info().Uint("account_id", accountID).Str("amount", models.FormatMoney(amount)).Msg("credited")
	return nil
}

func (l *Ledger) missing(err error, accountID uint) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Account not found")
	}
	return fmt.Errorf("load account %d: %w", accountID, err)
}
