package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	publisherKeyFormat = "gate:licensed:%d"
	dayLayout          = "2006-01-02"
)

// PublisherSet caches, per viewer, the ids of publishers the viewer holds an
// active entitlement for on one UTC day. Entries are stored as
// "<day>|<ids>" and only answer lookups for that same day, since
// entitlements expire at day granularity.
type PublisherSet struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewPublisherSet(client *redis.Client, ttl time.Duration, log zerolog.Logger) *PublisherSet {
	return &PublisherSet{client: client, ttl: ttl, log: log}
}

func publisherKey(viewerID uint) string {
	return fmt.Sprintf(publisherKeyFormat, viewerID)
}

// Get returns the ids cached for day. Any Redis failure, or an entry
// computed for another day, is reported as a miss.
func (p *PublisherSet) Get(ctx context.Context, viewerID uint, day time.Time) ([]uint, bool) {
	val, err := p.client.Get(ctx, publisherKey(viewerID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.log.Warn().Err(err).Uint("account_id", viewerID).Msg("publisher cache read failed")
		}
		return nil, false
	}
	stamp, encoded, found := strings.Cut(val, "|")
	if !found {
		p.log.Warn().Uint("account_id", viewerID).Msg("publisher cache entry corrupt")
		return nil, false
	}
	if stamp != day.Format(dayLayout) {
		return nil, false
	}
	ids, err := decodeIDs(encoded)
	if err != nil {
		p.log.Warn().Err(err).Uint("account_id", viewerID).Msg("publisher cache entry corrupt")
		return nil, false
	}
	return ids, true
}

func (p *PublisherSet) Set(ctx context.Context, viewerID uint, day time.Time, ids []uint) {
	if p.ttl <= 0 {
		return
	}
	ttl := p.ttl
	if untilNextDay := time.Until(day.AddDate(0, 0, 1)); untilNextDay > 0 && untilNextDay < ttl {
		ttl = untilNextDay
	}
	val := day.Format(dayLayout) + "|" + encodeIDs(ids)
	if err := p.client.Set(ctx, publisherKey(viewerID), val, ttl).Err(); err != nil {
		p.log.Warn().Err(err).Uint("account_id", viewerID).Msg("publisher cache write failed")
	}
}

func (p *PublisherSet) Invalidate(ctx context.Context, viewerID uint) {
	if err := p.client.Del(ctx, publisherKey(viewerID)).Err(); err != nil {
		p.log.Warn().Err(err).Uint("account_id", viewerID).Msg("publisher cache invalidate failed")
	}
}

func encodeIDs(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

func decodeIDs(val string) ([]uint, error) {
	if val == "" {
		return []uint{}, nil
	}
	parts := strings.Split(val, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(n))
	}
	return ids, nil
}
