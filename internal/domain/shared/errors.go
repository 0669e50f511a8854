package shared

import (
	"errors"
	"fmt"
)

// Domain-specific errors
var (
	// Listing errors
	ErrListingNotFound = errors.New("listing not found")
	ErrAuctionClosed   = errors.New("auction is not accepting bids")
	ErrAlreadyEnded    = errors.New("auction already ended")

	// Bid errors
	ErrSelfBid          = errors.New("sellers cannot bid on their own listing")
	ErrBidderIneligible = errors.New("bidder account is not eligible to bid")
	ErrBidTooLow        = errors.New("bid amount is below the minimum acceptable bid")
	ErrBusy             = errors.New("listing is contended, retry the bid")
	ErrBidConflict      = errors.New("concurrent bid commit conflict")
	ErrNoBidsFound      = errors.New("no bids found")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Database errors
	ErrDatabaseConnection  = errors.New("database connection failed")
	ErrDatabaseTransaction = errors.New("database transaction failed")

	// WebSocket message validation errors
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrListingIDRequired   = errors.New("listing_id is required")
	ErrInvalidAmount       = errors.New("valid amount is required")
	ErrUnknownMessageType  = errors.New("unknown message type")
)

// BidTooLowError rejects a bid and carries the minimum acceptable amount so
// the client can correct and retry. Matches ErrBidTooLow under errors.Is.
type BidTooLowError struct {
	Minimum float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid amount must be at least %.2f", e.Minimum)
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}
