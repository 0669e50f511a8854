package outbound

import (
	"context"

	"github.com/google/uuid"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeBidPlaced        EventType = "bid.placed"
	EventTypeAuctionEnded     EventType = "auction.ended"
	EventTypeAuctionRestarted EventType = "auction.restarted"
)

// Event represents a broadcast event scoped to one listing's auction room
type Event struct {
	Type      EventType              `json:"type"`
	ListingID uuid.UUID              `json:"listing_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Broadcaster delivers events to the subscribers of a listing's room. It
// holds no authoritative state: a reconnecting client re-fetches the
// listing via the repository rather than relying on replay.
type Broadcaster interface {
	// Subscribe routes the listing's events to eventChan until Unsubscribe.
	// One subscription per listing per process; the gateway fans out to its
	// connected clients itself.
	Subscribe(ctx context.Context, listingID uuid.UUID, eventChan chan Event) error

	// Unsubscribe stops routing the listing's events
	Unsubscribe(ctx context.Context, listingID uuid.UUID) error

	// Publish publishes an event to all subscribers of the listing
	Publish(ctx context.Context, listingID uuid.UUID, event Event) error

	// Close tears down all subscriptions
	Close() error
}
