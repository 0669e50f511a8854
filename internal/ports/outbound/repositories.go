package outbound

import (
	"context"
	"time"

	"autolot-auction-engine/internal/domain/bid"
	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/domain/notification"
	"autolot-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// ListingRepository defines the listing data operations the engine needs.
// The listing's current-bid/status pair is the only shared resource that
// requires mutual exclusion; every write here is atomic in the store.
type ListingRepository interface {
	// GetByID retrieves a listing by ID
	GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error)

	// GetActivePastEndTime retrieves active listings whose auction end time
	// has elapsed
	GetActivePastEndTime(ctx context.Context, now time.Time) ([]*listing.Listing, error)

	// CompareAndSetCurrentBid appends newBid and advances current_bid in one
	// atomic step, guarded by the expected previous current-bid value.
	// newEndTime, when non-nil, moves the auction end time in the same step
	// (anti-snipe extension). Returns shared.ErrBidConflict when another bid
	// committed first.
	CompareAndSetCurrentBid(ctx context.Context, listingID uuid.UUID, expected *float64, newBid *bid.Bid, newEndTime *time.Time) error

	// PurgeBidsAndRestart deletes all bids for the listing, clears the
	// current bid, stamps a fresh auction window and lot number, and keeps
	// the listing active -- all in one atomic step.
	PurgeBidsAndRestart(ctx context.Context, listingID uuid.UUID, lotNumber string, startTime, endTime time.Time) (*listing.Listing, error)

	// EndWithWinner marks the listing ended and writes the winner record.
	// Returns shared.ErrAlreadyEnded when a winner record already exists,
	// making the operation an idempotent no-op across overlapping sweeps.
	EndWithWinner(ctx context.Context, listingID, winnerID uuid.UUID, amount float64) (*listing.Winner, error)
}

// BidRepository defines read access to the append-only bid log
type BidRepository interface {
	// GetByListingID retrieves all bids for a listing, highest amount first
	GetByListingID(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error)

	// GetHighestBid retrieves the highest bid for a listing, or
	// shared.ErrNoBidsFound
	GetHighestBid(ctx context.Context, listingID uuid.UUID) (*bid.Bid, error)

	// GetDisplacedBidder returns the bidder holding the highest bid on the
	// listing other than excludeBidder, or shared.ErrNoBidsFound. This is
	// the one user a new bid directly displaces.
	GetDisplacedBidder(ctx context.Context, listingID, excludeBidder uuid.UUID) (uuid.UUID, error)
}

// NotificationRepository defines the fanout-facing data operations
type NotificationRepository interface {
	// CreateNotification persists a notification record
	CreateNotification(ctx context.Context, n *notification.Notification) error

	// GetMatchingAlerts returns the active saved searches satisfied by the
	// listing
	GetMatchingAlerts(ctx context.Context, l *listing.Listing) ([]*notification.CarAlert, error)

	// HasAlertBeenAnnounced reports whether a car_found notification was
	// already created for this (user, alert, listing) triple
	HasAlertBeenAnnounced(ctx context.Context, userID, alertID, listingID uuid.UUID) (bool, error)

	// MarkAlertAnnounced records the idempotency marker for the triple
	MarkAlertAnnounced(ctx context.Context, userID, alertID, listingID uuid.UUID) error

	// CreateAlertNotification writes the notification and its idempotency
	// marker atomically. n.AlertID must be set.
	CreateAlertNotification(ctx context.Context, n *notification.Notification) error

	// GetFavoritedUserIDs returns the users who favorited the listing
	GetFavoritedUserIDs(ctx context.Context, listingID uuid.UUID) ([]uuid.UUID, error)
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*shared.User, error)
}
