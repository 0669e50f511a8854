package notification

import (
	"time"

	"autolot-auction-engine/internal/domain/listing"

	"github.com/google/uuid"
)

// Type classifies a notification
type Type string

const (
	TypeBidOutbid        Type = "bid_outbid"
	TypeCarFound         Type = "car_found"
	TypeAuctionWon       Type = "auction_won"
	TypeAuctionRestarted Type = "auction_restarted"
)

// Notification is a one-shot message to a user about listing activity
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Type      Type       `json:"type"`
	ListingID uuid.UUID  `json:"listing_id"`
	AlertID   *uuid.UUID `json:"alert_id,omitempty"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
}

// CarAlert is a saved search matched against every newly created listing
type CarAlert struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Make      string    `json:"make"`
	Model     *string   `json:"model,omitempty"`
	MinPrice  *float64  `json:"min_price,omitempty"`
	MaxPrice  *float64  `json:"max_price,omitempty"`
	MinYear   *int      `json:"min_year,omitempty"`
	MaxYear   *int      `json:"max_year,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Matches reports whether a newly created listing satisfies this alert.
// Price bounds apply to the starting price: a new listing has no bids yet.
func (a *CarAlert) Matches(l *listing.Listing) bool {
	if !a.IsActive {
		return false
	}
	if a.Make != "" && a.Make != l.Make {
		return false
	}
	if a.Model != nil && *a.Model != l.Model {
		return false
	}
	if a.MinPrice != nil && l.StartingPrice < *a.MinPrice {
		return false
	}
	if a.MaxPrice != nil && l.StartingPrice > *a.MaxPrice {
		return false
	}
	if a.MinYear != nil && l.Year < *a.MinYear {
		return false
	}
	if a.MaxYear != nil && l.Year > *a.MaxYear {
		return false
	}
	return true
}
