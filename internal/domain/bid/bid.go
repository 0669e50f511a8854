package bid

import (
	"time"

	"github.com/google/uuid"
)

// Bid represents an accepted offer on a listing. Bids are append-only: they
// are never mutated, and only a full auction restart removes them.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	ListingID uuid.UUID `json:"listing_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
