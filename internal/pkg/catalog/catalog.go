// Package catalog is the publisher side of the platform: owner-scoped
// management of licenses and videos, and the public license listing.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/ClipPass/app/models"
	"github.com/ManuelReschke/ClipPass/app/repository"
	"github.com/ManuelReschke/ClipPass/internal/pkg/apperror"
	"github.com/ManuelReschke/ClipPass/internal/pkg/validation"
)

const (
	msgLicenseNotFound = "License not found"
	msgVideoNotFound   = "Video not found"
)

// maxPrice is the first value that no longer fits DECIMAL(12,2).
var maxPrice = decimal.New(1, 10)

type LicenseInput struct {
	Title    string          `json:"title" validate:"required,max=255"`
	Duration int             `json:"duration" validate:"required,gt=0"`
	Price    decimal.Decimal `json:"price"`
}

type VideoInput struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	FileURL     string `json:"file_url" validate:"omitempty,max=2048"`
	Category    string `json:"category" validate:"required,max=255"`
	Hidden      bool   `json:"is_hide"`
}

// Invalidator drops the cached access decisions of one viewer.
type Invalidator interface {
	Invalidate(ctx context.Context, accountID uint)
}

type Option func(*Service)

// WithBuyerInvalidation makes DeleteLicense invalidate every buyer of the
// deleted license.
func WithBuyerInvalidation(entitlements repository.EntitlementRepository, inv Invalidator) Option {
	return func(s *Service) {
		s.entitlements = entitlements
		s.invalidator = inv
	}
}

type Service struct {
	licenses     repository.LicenseRepository
	videos       repository.VideoRepository
	entitlements repository.EntitlementRepository
	invalidator  Invalidator
	log          zerolog.Logger
}

func NewService(licenses repository.LicenseRepository, videos repository.VideoRepository, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{licenses: licenses, videos: videos, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (in *LicenseInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(in); err != nil {
		return err
	}
	switch {
	case in.Price.IsNegative():
		return apperror.Validation("price", "Ensure this value is greater than or equal to 0.")
	case !models.IsMoney(in.Price):
		return apperror.Validation("price", "Ensure that there are no more than 2 decimal places.")
	case in.Price.GreaterThanOrEqual(maxPrice):
		return apperror.Validation("price", "Ensure that there are no more than 12 digits in total.")
	}
	return nil
}

func (in *VideoInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.FileURL = strings.TrimSpace(in.FileURL)
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.FileURL != "" && !validFileURL(in.FileURL) {
		return apperror.Validation("file_url", "Enter a valid URL.")
	}
	return nil
}

// validFileURL accepts http(s) URLs and s3://bucket/key references.
func validFileURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return true
	case "s3":
		return strings.TrimPrefix(u.Path, "/") != ""
	default:
		return false
	}
}

func (s *Service) CreateLicense(ctx context.Context, ownerID uint, in LicenseInput) (*models.License, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	l := &models.License{AccountID: ownerID, Title: in.Title, Duration: in.Duration, Price: in.Price}
	if err := s.licenses.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create license: %w", err)
	}
	s.log.Info().Uint("account_id", ownerID).Uint("license_id", l.ID).Msg("license created")
	return l, nil
}

func (s *Service) GetOwnLicense(ctx context.Context, ownerID, id uint) (*models.License, error) {
	l, err := s.licenses.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, msgLicenseNotFound)
	}
	if l.AccountID != ownerID {
		return nil, apperror.NotFound(msgLicenseNotFound)
	}
	return l, nil
}

func (s *Service) ListOwnLicenses(ctx context.Context, ownerID uint) ([]models.License, error) {
	return s.licenses.ListByAccount(ctx, ownerID)
}

// UpdateLicense changes the terms for future purchases and renewals;
// existing entitlements keep their dates.
func (s *Service) UpdateLicense(ctx context.Context, ownerID, id uint, in LicenseInput) (*models.License, error) {
	l, err := s.GetOwnLicense(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	l.Title, l.Duration, l.Price = in.Title, in.Duration, in.Price
	if err := s.licenses.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("update license: %w", err)
	}
	return l, nil
}

// DeleteLicense removes the license and, by cascade, every entitlement
// bought from it.
func (s *Service) DeleteLicense(ctx context.Context, ownerID, id uint) error {
	if _, err := s.GetOwnLicense(ctx, ownerID, id); err != nil {
		return err
	}
	var buyers []uint
	if s.invalidator != nil {
		var err error
		if buyers, err = s.entitlements.ListBuyerIDsByLicense(ctx, id); err != nil {
			return fmt.Errorf("list buyers of license %d: %w", id, err)
		}
	}
	if err := s.licenses.Delete(ctx, id); err != nil {
		return notFound(err, msgLicenseNotFound)
	}
	for _, buyerID := range buyers {
		s.invalidator.Invalidate(ctx, buyerID)
	}
	s.log.Info().Uint("account_id", ownerID).Uint("license_id", id).Int("buyers", len(buyers)).Msg("license deleted")
	return nil
}

// ListPurchasable lists every license the viewer could buy, i.e. all
// licenses of other publishers.
func (s *Service) ListPurchasable(ctx context.Context, viewerID uint) ([]models.License, error) {
	return s.licenses.ListExcludingAccount(ctx, viewerID)
}

func (s *Service) GetPurchasable(ctx context.Context, viewerID, id uint) (*models.License, error) {
	l, err := s.licenses.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, msgLicenseNotFound)
	}
	if l.AccountID == viewerID {
		return nil, apperror.NotFound(msgLicenseNotFound)
	}
	return l, nil
}

func (s *Service) CreateVideo(ctx context.Context, ownerID uint, in VideoInput) (*models.Video, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	v := &models.Video{
		AccountID:   ownerID,
		Title:       in.Title,
		Description: in.Description,
		FileURL:     in.FileURL,
		Category:    in.Category,
		Hidden:      in.Hidden,
	}
	if err := s.videos.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}
	s.log.Info().Uint("account_id", ownerID).Uint("video_id", v.ID).Msg("video created")
	return v, nil
}

func (s *Service) GetOwnVideo(ctx context.Context, ownerID, id uint) (*models.Video, error) {
	v, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, msgVideoNotFound)
	}
	if !v.OwnedBy(ownerID) {
		return nil, apperror.NotFound(msgVideoNotFound)
	}
	return v, nil
}

func (s *Service) ListOwnVideos(ctx context.Context, ownerID uint) ([]models.Video, error) {
	return s.videos.ListByAccount(ctx, ownerID)
}

func (s *Service) UpdateVideo(ctx context.Context, ownerID, id uint, in VideoInput) (*models.Video, error) {
	v, err := s.GetOwnVideo(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	v.Title, v.Description, v.FileURL, v.Category, v.Hidden = in.Title, in.Description, in.FileURL, in.Category, in.Hidden
	if err := s.videos.Update(ctx, v); err != nil {
		return nil, fmt.Errorf("update video: %w", err)
	}
	return v, nil
}

func (s *Service) DeleteVideo(ctx context.Context, ownerID, id uint) error {
	if _, err := s.GetOwnVideo(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.videos.Delete(ctx, id); err != nil {
		return notFound(err, msgVideoNotFound)
	}
	return nil
}

func notFound(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(msg)
	}
	return err
}
