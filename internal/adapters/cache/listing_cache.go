package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"autolot-auction-engine/internal/domain/listing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ListingCache is a redis-backed TTL cache for listing snapshots. It only
// serves read paths; the bid processor and lifecycle service invalidate it
// on every mutation and never read through it for correctness decisions.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

type ListingCacheParams struct {
	RedisClient *redis.Client
	TTL         time.Duration
	Logger      zerolog.Logger
}

// NewListingCache creates a new listing cache
func NewListingCache(params ListingCacheParams) *ListingCache {
	return &ListingCache{
		client: params.RedisClient,
		ttl:    params.TTL,
		logger: params.Logger.With().Str("component", "listing_cache").Logger(),
	}
}

func cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("listing:cache:%s", id.String())
}

// Get returns a cached snapshot, or false on miss. Errors degrade to a miss.
func (c *ListingCache) Get(ctx context.Context, id uuid.UUID) (*listing.Listing, bool) {
	payload, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("listing_id", id.String()).Msg("Cache read failed")
		}
		return nil, false
	}

	var l listing.Listing
	if err := json.Unmarshal(payload, &l); err != nil {
		c.logger.Warn().Err(err).Str("listing_id", id.String()).Msg("Cache entry corrupt, dropping")
		c.client.Del(ctx, cacheKey(id))
		return nil, false
	}

	return &l, true
}

// Set stores a snapshot for the configured TTL
func (c *ListingCache) Set(ctx context.Context, l *listing.Listing) {
	payload, err := json.Marshal(l)
	if err != nil {
		c.logger.Warn().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to marshal listing for cache")
		return
	}

	if err := c.client.Set(ctx, cacheKey(l.ID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("listing_id", l.ID.String()).Msg("Cache write failed")
	}
}

// Invalidate drops the cached snapshot for a listing
func (c *ListingCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("listing_id", id.String()).Msg("Cache invalidation failed")
	}
}
