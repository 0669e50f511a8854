package app

import (
	"context"

	"autolot-auction-engine/internal/domain/bid"
	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QueryService serves read-only listing lookups through the TTL cache.
// Stale reads are acceptable here; anything that decides whether a bid is
// valid reads the repository directly.
type QueryService struct {
	listingRepo outbound.ListingRepository
	bidRepo     outbound.BidRepository
	cache       outbound.ListingCache
	logger      zerolog.Logger
}

type QueryServiceParams struct {
	ListingRepo outbound.ListingRepository
	BidRepo     outbound.BidRepository
	Cache       outbound.ListingCache
	Logger      zerolog.Logger
}

// NewQueryService creates a new query service
func NewQueryService(params QueryServiceParams) *QueryService {
	return &QueryService{
		listingRepo: params.ListingRepo,
		bidRepo:     params.BidRepo,
		cache:       params.Cache,
		logger:      params.Logger.With().Str("component", "query_service").Logger(),
	}
}

// GetListing returns a listing snapshot, cache-first
func (s *QueryService) GetListing(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, id); ok {
			return cached, nil
		}
	}

	l, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, l)
	}
	return l, nil
}

// GetBidHistory returns the listing's bids, highest amount first
func (s *QueryService) GetBidHistory(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	return s.bidRepo.GetByListingID(ctx, listingID)
}
