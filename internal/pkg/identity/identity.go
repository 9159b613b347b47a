// Package identity covers sign up, login, API keys and the profile of the
// calling user.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/ClipPass/app/models"
	"github.com/ManuelReschke/ClipPass/app/repository"
	"github.com/ManuelReschke/ClipPass/internal/pkg/apperror"
	"github.com/ManuelReschke/ClipPass/internal/pkg/auth"
	"github.com/ManuelReschke/ClipPass/internal/pkg/ledger"
	"github.com/ManuelReschke/ClipPass/internal/pkg/validation"
)

const (
	msgUsernameTaken    = "Username already taken."
	msgEmailTaken       = "Email already taken."
	msgBadCredentials   = "Unable to log in with provided credentials."
	msgInvalidAPIKey    = "Invalid API key"
	msgInvalidToken     = "Invalid token"
	msgAccountNotFound  = "Account not found"
	msgLoginFieldNeeded = "please fill username field."
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    uint   `json:"user_id"`
	AccountID uint   `json:"account_id"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
}

type SignupInput struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	Email     string `json:"email" validate:"required,email,max=200"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Phone     string `json:"phone" validate:"max=15"`
}

type SignupResult struct {
	Account *models.Account
	APIKey  string
}

// LoginInput accepts either username or email.
type LoginInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileUpdate changes only the fields that are set. Balance is not
// updatable here.
type ProfileUpdate struct {
	Username  *string `json:"username" validate:"omitempty,min=3,max=150"`
	Email     *string `json:"email" validate:"omitempty,email,max=200"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=128"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Phone     *string `json:"phone" validate:"omitempty,max=15"`
}

// Invalidator drops the cached access decisions of one viewer.
type Invalidator interface {
	Invalidate(ctx context.Context, accountID uint)
}

type Option func(*Service)

// WithInvalidator is told about every buyer that loses entitlements when
// a publisher deletes its profile.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

type Service struct {
	repos       *repository.Repositories
	ledger      *ledger.Ledger
	secret      []byte
	tokenTTL    time.Duration
	now         func() time.Time
	invalidator Invalidator
	log         zerolog.Logger
}

func NewService(repos *repository.Repositories, l *ledger.Ledger, secret []byte, tokenTTL time.Duration, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repos:    repos,
		ledger:   l,
		secret:   secret,
		tokenTTL: tokenTTL,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates the user, its account with a zero balance and a first API
// key in one transaction. The raw key is returned only here.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, in.Username, in.Email, 0); err != nil {
		return nil, err
	}

	user, err := models.NewUser(in.Username, in.Email, in.Password, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var result SignupResult
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.User.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.Validation("username", msgUsernameTaken)
			}
			return fmt.Errorf("create user: %w", err)
		}
		account := &models.Account{UserID: user.ID, Phone: in.Phone, Balance: decimal.Zero}
		if err := tx.Account.Create(ctx, account); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		key := &models.APIKey{UserID: user.ID}
		raw, err := key.Issue(s.now())
		if err != nil {
			return fmt.Errorf("issue api key: %w", err)
		}
		if err := tx.APIKey.Save(ctx, key); err != nil {
			return fmt.Errorf("save api key: %w", err)
		}
		account.User = *user
		result = SignupResult{Account: account, APIKey: raw}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("user signed up")
	return &result, nil
}

func (s *Service) checkUnique(ctx context.Context, username, email string, excludeID uint) error {
	fields := map[string]string{}
	if username != "" {
		taken, err := s.repos.User.ExistsUsername(ctx, username, excludeID)
		if err != nil {
			return err
		}
		if taken {
			fields["username"] = msgUsernameTaken
		}
	}
	if email != "" {
		taken, err := s.repos.User.ExistsEmail(ctx, email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			fields["email"] = msgEmailTaken
		}
	}
	if len(fields) > 0 {
		return apperror.ValidationFields(fields)
	}
	return nil
}

// Login checks the password and returns a signed token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	var (
		user *models.User
		err  error
	)
	switch {
	case strings.TrimSpace(in.Username) != "":
		user, err = s.repos.User.GetByUsername(ctx, in.Username)
	case strings.TrimSpace(in.Email) != "":
		user, err = s.repos.User.GetByEmail(ctx, strings.ToLower(in.Email))
	default:
		return nil, apperror.Validation("username", msgLoginFieldNeeded)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Unauthorized(msgBadCredentials)
		}
		return nil, err
	}
	if !user.CheckPassword(in.Password) {
		return nil, apperror.Unauthorized(msgBadCredentials)
	}

	token, expires, err := auth.GenerateToken(user.ID, s.secret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if err := s.repos.User.TouchLogin(ctx, user.ID, s.now()); err != nil {
		s.log.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to update last login")
	}
	return &LoginResult{Token: token, ExpiresAt: expires}, nil
}

// AuthenticateAPIKey resolves a raw API key to its principal.
func (s *Service) AuthenticateAPIKey(ctx context.Context, raw string) (Principal, error) {
	key, err := s.repos.APIKey.GetActiveByHash(ctx, models.HashAPIKey(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, apperror.Unauthorized(msgInvalidAPIKey)
		}
		return Principal{}, err
	}
	if err := s.repos.APIKey.TouchUsage(ctx, key.ID, s.now()); err != nil {
		s.log.Warn().Err(err).Uint("user_id", key.UserID).Msg("failed to update api key usage timestamp")
	}
	return s.principalFor(ctx, key.UserID, msgInvalidAPIKey)
}

// AuthenticateToken resolves a login token to its principal.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (Principal, error) {
	userID, err := auth.ParseToken(token, s.secret)
	if err != nil {
		return Principal{}, apperror.Unauthorized(msgInvalidToken)
	}
	return s.principalFor(ctx, userID, msgInvalidToken)
}

func (s *Service) principalFor(ctx context.Context, userID uint, msg string) (Principal, error) {
	account, err := s.repos.Account.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, apperror.Unauthorized(msg)
		}
		return Principal{}, err
	}
	return Principal{
		UserID:    userID,
		AccountID: account.ID,
		Username:  account.User.Username,
		IsAdmin:   account.User.IsAdmin(),
	}, nil
}

// Profile returns the caller's account with its user loaded.
func (s *Service) Profile(ctx context.Context, p Principal) (*models.Account, error) {
	account, err := s.repos.Account.GetByID(ctx, p.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound(msgAccountNotFound)
		}
		return nil, err
	}
	return account, nil
}

func (s *Service) UpdateProfile(ctx context.Context, p Principal, in ProfileUpdate) (*models.Account, error) {
	trim(in.Username)
	trim(in.Phone)
	if in.Email != nil {
		*in.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	account, err := s.Profile(ctx, p)
	if err != nil {
		return nil, err
	}
	user := account.User

	var username, email string
	if in.Username != nil && *in.Username != user.Username {
		username = *in.Username
	}
	if in.Email != nil && *in.Email != user.Email {
		email = *in.Email
	}
	if err := s.checkUnique(ctx, username, email, user.ID); err != nil {
		return nil, err
	}

	if username != "" {
		user.Username = username
	}
	if email != "" {
		user.Email = email
	}
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Password != nil {
		if err := user.SetPassword(*in.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.User.Update(ctx, &user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.Validation("username", msgUsernameTaken)
			}
			return fmt.Errorf("update user: %w", err)
		}
		if in.Phone != nil {
			if err := tx.Account.UpdatePhone(ctx, account.ID, *in.Phone); err != nil {
				return fmt.Errorf("update phone: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Profile(ctx, p)
}

func trim(v *string) {
	if v != nil {
		*v = strings.TrimSpace(*v)
	}
}

// DeleteProfile removes the user and everything the account owns.
func (s *Service) DeleteProfile(ctx context.Context, p Principal) error {
	var buyers []uint
	if s.invalidator != nil {
		var err error
		if buyers, err = s.repos.Entitlement.ListBuyerIDsByPublisher(ctx, p.AccountID); err != nil {
			return fmt.Errorf("list buyers of account %d: %w", p.AccountID, err)
		}
	}
	if err := s.repos.User.Delete(ctx, p.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound(msgAccountNotFound)
		}
		return err
	}
	for _, buyerID := range buyers {
		s.invalidator.Invalidate(ctx, buyerID)
	}
	s.log.Info().Uint("user_id", p.UserID).Int("buyers", len(buyers)).Msg("user deleted")
	return nil
}

// IssueAPIKey rotates the caller's API key and returns the new raw key.
func (s *Service) IssueAPIKey(ctx context.Context, p Principal) (string, *models.APIKey, error) {
	key, err := s.repos.APIKey.GetByUserID(ctx, p.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return "", nil, err
		}
		key = &models.APIKey{UserID: p.UserID}
	}
	raw, err := key.Issue(s.now())
	if err != nil {
		return "", nil, fmt.Errorf("issue api key: %w", err)
	}
	if err := s.repos.APIKey.Save(ctx, key); err != nil {
		return "", nil, fmt.Errorf("save api key: %w", err)
	}
	return raw, key, nil
}

func (s *Service) RevokeAPIKey(ctx context.Context, p Principal) error {
	key, err := s.repos.APIKey.GetByUserID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	key.Revoke(s.now())
	return s.repos.APIKey.Save(ctx, key)
}

// TopUp credits the caller's balance.
func (s *Service) TopUp(ctx context.Context, p Principal, amount decimal.Decimal) (*models.Account, error) {
	if err := s.ledger.Credit(ctx, s.repos.Account, p.AccountID, amount); err != nil {
		return nil, err
	}
	return s.Profile(ctx, p)
}

// ListUsers returns every other account together with its licenses.
func (s *Service) ListUsers(ctx context.Context, p Principal) ([]models.Account, error) {
	return s.repos.Account.ListOthers(ctx, p.AccountID)
}
