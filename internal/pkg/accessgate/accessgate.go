// Package accessgate decides which videos a viewer may see. A video is
// visible when it is not hidden and the viewer holds an active entitlement
// on its publisher. Anything not visible is reported as not found.
package accessgate

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
	"github.com/ManuelReschke/ClipPass/internal/pkg/mediaurl"
)

const msgVideoNotFound = "Video not found"

// PublisherSource computes the live set of licensed publishers.
type PublisherSource interface {
	ActivePublishers(ctx context.Context, viewerID uint) ([]uint, error)
	Today() time.Time
}

// PublisherCache holds recently computed publisher sets. A set is only
// valid for the day it was computed on.
type PublisherCache interface {
	Get(ctx context.Context, viewerID uint, day time.Time) ([]uint, bool)
	Set(ctx context.Context, viewerID uint, day time.Time, ids []uint)
	Invalidate(ctx context.Context, viewerID uint)
}

type noCache struct{}

func (noCache) Get(context.Context, uint, time.Time) ([]uint, bool) { return nil, false }
func (noCache) Set(context.Context, uint, time.Time, []uint)        {}
func (noCache) Invalidate(context.Context, uint)                    {}

type Option func(*Gate)

func WithCache(c PublisherCache) Option {
	return func(g *Gate) { g.cache = c }
}

func WithResolver(r mediaurl.Resolver) Option {
	return func(g *Gate) { g.media = r }
}

type Gate struct {
	source   PublisherSource
	videos   repository.VideoRepository
	activity repository.ActivityRepository
	cache    PublisherCache
	media    mediaurl.Resolver
	log      zerolog.Logger
}

func New(source PublisherSource, videos repository.VideoRepository, activity repository.ActivityRepository, log zerolog.Logger, opts ...Option) *Gate {
	g := &Gate{
		source:   source,
		videos:   videos,
		activity: activity,
		cache:    noCache{},
		media:    mediaurl.Passthrough{},
		log:      log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Invalidate drops the cached publisher set of a viewer. It runs after
// every purchase, renewal and delete, and for every buyer of a deleted
// license or publisher account.
func (g *Gate) Invalidate(ctx context.Context, viewerID uint) {
	g.cache.Invalidate(ctx, viewerID)
}

// LicensedPublishers returns the publishers whose catalog viewerID may see.
func (g *Gate) LicensedPublishers(ctx context.Context, viewerID uint) ([]uint, error) {
	day := g.source.Today()
	if ids, ok := g.cache.Get(ctx, viewerID, day); ok {
		return ids, nil
	}
	ids, err := g.source.ActivePublishers(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("licensed publishers of %d: %w", viewerID, err)
	}
	g.cache.Set(ctx, viewerID, day, ids)
	return ids, nil
}

// CanView reports whether viewerID may see video.
func (g *Gate) CanView(ctx context.Context, viewerID uint, video *models.Video) (bool, error) {
	if video.Hidden {
		return false, nil
	}
	ids, err := g.LicensedPublishers(ctx, viewerID)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, video.AccountID), nil
}

func (g *Gate) ListVisible(ctx context.Context, viewerID uint, filter repository.VideoFilter) ([]models.Video, error) {
	ids, err := g.LicensedPublishers(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return g.videos.ListVisible(ctx, ids, filter)
}

// Retrieve returns a visible video, records a watch event and resolves its
// file URL. The owner's own videos go through the manage endpoints and are
// not retrievable here.
func (g *Gate) Retrieve(ctx context.Context, viewerID, videoID uint) (*models.Video, error) {
	video, err := g.visible(ctx, viewerID, videoID)
	if err != nil {
		return nil, err
	}

	if video.FileURL != "" {
		resolved, err := g.media.Resolve(ctx, video.FileURL)
		if err != nil {
			g.log.Error().Err(err).Uint("video_id", video.ID).Msg("resolve file url")
			return nil, err
		}
		video.FileURL = resolved
	}

	if err := g.activity.CreateWatchEvent(ctx, &models.WatchEvent{AccountID: viewerID, VideoID: video.ID}); err != nil {
		return nil, fmt.Errorf("record watch event: %w", err)
	}
	return video, nil
}

// Reachable loads a video the actor owns or may view. It backs the
// comment, rating and view-count sub-resources.
func (g *Gate) Reachable(ctx context.Context, actorID, videoID uint) (*models.Video, error) {
	video, err := g.load(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video.OwnedBy(actorID) {
		return video, nil
	}
	ok, err := g.CanView(ctx, actorID, video)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NotFound(msgVideoNotFound)
	}
	return video, nil
}

func (g *Gate) visible(ctx context.Context, viewerID, videoID uint) (*models.Video, error) {
	video, err := g.load(ctx, videoID)
	if err != nil {
		return nil, err
	}
	ok, err := g.CanView(ctx, viewerID, video)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NotFound(msgVideoNotFound)
	}
	return video, nil
}

func (g *Gate) load(ctx context.Context, videoID uint) (*models.Video, error) {
	video, err := g.videos.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound(msgVideoNotFound)
		}
		return nil, err
	}
	return video, nil
}
