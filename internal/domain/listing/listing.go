package listing

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current status of a listing's auction
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusEnded    Status = "ended"
	StatusRejected Status = "rejected"
)

// Listing represents one auctioned vehicle
type Listing struct {
	ID               uuid.UUID     `json:"id"`
	SellerID         uuid.UUID     `json:"seller_id"`
	LotNumber        string        `json:"lot_number"`
	Make             string        `json:"make"`
	Model            string        `json:"model"`
	Year             int           `json:"year"`
	Mileage          int           `json:"mileage"`
	Description      string        `json:"description"`
	StartingPrice    float64       `json:"starting_price"`
	ReservePrice     *float64      `json:"reserve_price,omitempty"`
	CurrentBid       *float64      `json:"current_bid,omitempty"`
	AuctionDuration  time.Duration `json:"auction_duration"`
	Status           Status        `json:"status"`
	AuctionStartTime *time.Time    `json:"auction_start_time,omitempty"`
	AuctionEndTime   *time.Time    `json:"auction_end_time,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// IsActive returns true if the listing's auction is currently active
func (l *Listing) IsActive() bool {
	return l.Status == StatusActive
}

// HasEnded returns true if the auction window has elapsed
func (l *Listing) HasEnded(now time.Time) bool {
	return l.AuctionEndTime != nil && !now.Before(*l.AuctionEndTime)
}

// CanBid returns true if a bid can be placed on this listing right now
func (l *Listing) CanBid(now time.Time) bool {
	return l.IsActive() && l.AuctionEndTime != nil && now.Before(*l.AuctionEndTime)
}

// CurrentAmount returns the highest accepted bid, or the starting price when
// no bid has been accepted yet.
func (l *Listing) CurrentAmount() float64 {
	if l.CurrentBid != nil {
		return *l.CurrentBid
	}
	return l.StartingPrice
}

// MinAcceptableBid returns the smallest amount a new bid must reach.
func (l *Listing) MinAcceptableBid() float64 {
	return l.CurrentAmount() + 1
}

// ReserveMet reports whether the seller's reserve price is satisfied. A
// listing without a reserve is always satisfied.
func (l *Listing) ReserveMet() bool {
	if l.ReservePrice == nil {
		return true
	}
	return l.CurrentBid != nil && *l.CurrentBid >= *l.ReservePrice
}

// InAntiSnipeWindow returns true when the auction is inside the trailing
// window where an accepted bid extends the end time.
func (l *Listing) InAntiSnipeWindow(now time.Time, window time.Duration) bool {
	if l.AuctionEndTime == nil || window <= 0 {
		return false
	}
	return now.Before(*l.AuctionEndTime) && !now.Before(l.AuctionEndTime.Add(-window))
}

// Activate stamps the auction window. Called when a moderator approves a
// pending listing.
func (l *Listing) Activate(now time.Time) {
	end := now.Add(l.AuctionDuration)
	l.Status = StatusActive
	l.AuctionStartTime = &now
	l.AuctionEndTime = &end
}

// Winner is the record of a won auction: at most one exists per listing.
type Winner struct {
	ID        uuid.UUID `json:"id"`
	ListingID uuid.UUID `json:"listing_id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
