package outbound

import (
	"context"

	"autolot-auction-engine/internal/domain/listing"

	"github.com/google/uuid"
)

// ListingCache is a TTL read cache for listing snapshots. It is a
// performance optimization only: mutating paths invalidate it and
// correctness-sensitive reads always go to the repository.
type ListingCache interface {
	// Get returns a cached snapshot, or false on miss
	Get(ctx context.Context, id uuid.UUID) (*listing.Listing, bool)

	// Set stores a snapshot for the configured TTL
	Set(ctx context.Context, l *listing.Listing)

	// Invalidate drops the cached snapshot for a listing
	Invalidate(ctx context.Context, id uuid.UUID)
}
