package inbound

import (
	"context"

	"autolot-auction-engine/internal/domain/bid"
	"autolot-auction-engine/internal/domain/listing"

	"github.com/google/uuid"
)

// BidService defines the bid processor operations
type BidService interface {
	// PlaceBid validates and commits a single bid against a listing
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*bid.Bid, error)

	// GetBids retrieves the bids for a listing, highest first
	GetBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error)
}

// ListingQueryService serves listing snapshots to read paths (gateway state
// refresh). Reads may come from the TTL cache.
type ListingQueryService interface {
	// GetListing retrieves a listing snapshot by ID
	GetListing(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error)
}

// ListingEvents receives engine-external listing lifecycle signals
type ListingEvents interface {
	// ListingCreated announces a newly created listing to matching saved
	// searches. Fire-and-forget.
	ListingCreated(l *listing.Listing)
}

// request to place a bid
type PlaceBidRequest struct {
	ListingID uuid.UUID `json:"listing_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    float64   `json:"amount"`
}
