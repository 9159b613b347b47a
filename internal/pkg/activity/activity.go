// Package activity records what viewers do with videos: watch history,
// comments and ratings.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuelReschke/ClipPass/app/models"
	"github.com/ManuelReschke/ClipPass/app/repository"
	"github.com/ManuelReschke/ClipPass/internal/pkg/apperror"
)

const (
	msgEnterInteger = "Enter Integer."
	msgRateRange    = "The rate must be between 0 and 5."
	msgTextRequired = "please fill text field."
	msgRateRequired = "please fill rate field."
)

// VideoAccess resolves a video the actor may interact with, or a not-found
// error.
type VideoAccess interface {
	Reachable(ctx context.Context, actorID, videoID uint) (*models.Video, error)
}

type Service struct {
	repo   repository.ActivityRepository
	access VideoAccess
	log    zerolog.Logger
}

func NewService(repo repository.ActivityRepository, access VideoAccess, log zerolog.Logger) *Service {
	return &Service{repo: repo, access: access, log: log}
}

func (s *Service) AddComment(ctx context.Context, authorID, videoID uint, text string) (*models.Comment, error) {
	video, err := s.access.Reachable(ctx, authorID, videoID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.Validation("text", msgTextRequired)
	}

	c := &models.Comment{AccountID: authorID, VideoID: video.ID, Text: text}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

// ParseScore accepts a JSON number or a numeric string holding an integer.
func ParseScore(raw any) (int, error) {
	switch v := raw.(type) {
	case nil:
		return 0, apperror.Validation("rate", msgRateRequired)
	case int:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, apperror.Validation("rate", msgEnterInteger)
		}
		return int(v), nil
	case json.Number:
		return parseScoreString(v.String())
	case string:
		return parseScoreString(v)
	default:
		return 0, apperror.Validation("rate", msgEnterInteger)
	}
}

func parseScoreString(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, apperror.Validation("rate", msgEnterInteger)
	}
	return n, nil
}

// AddRating stores the first rating of rater on a video. Later attempts are
// rejected and leave the first one untouched.
func (s *Service) AddRating(ctx context.Context, raterID, videoID uint, score int) (*models.Rating, error) {
	video, err := s.access.Reachable(ctx, raterID, videoID)
	if err != nil {
		return nil, err
	}
	if !models.ValidScore(score) {
		return nil, apperror.Validation("rate", msgRateRange)
	}

	r := &models.Rating{AccountID: raterID, VideoID: video.ID, Score: score}
	if err := s.repo.CreateRating(ctx, r); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.DuplicateRating()
		}
		return nil, fmt.Errorf("create rating: %w", err)
	}
	s.log.Debug().Uint("account_id", raterID).Uint("video_id", video.ID).Int("rate", score).Msg("video rated")
	return r, nil
}

func (s *Service) CountViews(ctx context.Context, actorID, videoID uint) (int64, error) {
	video, err := s.access.Reachable(ctx, actorID, videoID)
	if err != nil {
		return 0, err
	}
	return s.repo.CountWatchEvents(ctx, video.ID)
}

func (s *Service) ListComments(ctx context.Context, actorID, videoID uint) ([]models.Comment, error) {
	video, err := s.access.Reachable(ctx, actorID, videoID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, video.ID)
}

func (s *Service) ListRatings(ctx context.Context, actorID, videoID uint) ([]models.Rating, error) {
	video, err := s.access.Reachable(ctx, actorID, videoID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRatings(ctx, video.ID)
}

// History lists the viewer's own watch events, oldest first.
func (s *Service) History(ctx context.Context, viewerID uint) ([]models.WatchEvent, error) {
	return s.repo.ListWatchEventsByAccount(ctx, viewerID)
}
