package app

import (
	"context"
	"errors"
	"time"

	"autolot-auction-engine/internal/domain/bid"
	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/domain/shared"
	"autolot-auction-engine/internal/ports/inbound"
	"autolot-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BidService validates and commits bids. Concurrent bids on the same
// listing are serialized by the repository's compare-and-set write; this
// service retries on conflict with the preconditions re-checked against
// the refreshed listing, so only one of two equal bids ever commits.
type BidService struct {
	listingRepo     outbound.ListingRepository
	bidRepo         outbound.BidRepository
	userRepo        outbound.UserRepository
	cache           outbound.ListingCache
	fanout          *FanoutService
	antiSnipeWindow time.Duration
	commitTimeout   time.Duration
	logger          zerolog.Logger
}

type BidServiceParams struct {
	ListingRepo     outbound.ListingRepository
	BidRepo         outbound.BidRepository
	UserRepo        outbound.UserRepository
	Cache           outbound.ListingCache
	Fanout          *FanoutService
	AntiSnipeWindow time.Duration
	CommitTimeout   time.Duration
	Logger          zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	return &BidService{
		listingRepo:     params.ListingRepo,
		bidRepo:         params.BidRepo,
		userRepo:        params.UserRepo,
		cache:           params.Cache,
		fanout:          params.Fanout,
		antiSnipeWindow: params.AntiSnipeWindow,
		commitTimeout:   params.CommitTimeout,
		logger:          params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// PlaceBid validates the request against the live listing state and commits
// the bid atomically. Validation order is fixed: listing existence, auction
// open, self-bid, bidder eligibility, then amount. A bid landing inside the
// anti-snipe window extends the auction end time in the same commit.
func (s *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*bid.Bid, error) {
	l, err := s.listingRepo.GetByID(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(l, req, time.Now()); err != nil {
		return nil, err
	}
	// Eligibility holds for the whole commit attempt; no need to re-check
	// it on conflict retries.
	if err := s.checkBidder(ctx, req.BidderID); err != nil {
		return nil, err
	}
	if err := s.checkAmount(l, req); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.commitTimeout)
	for {
		now := time.Now()
		var newEndTime *time.Time
		if l.InAntiSnipeWindow(now, s.antiSnipeWindow) {
			extended := l.AuctionEndTime.Add(s.antiSnipeWindow)
			newEndTime = &extended
		}

		b := &bid.Bid{
			ID:        uuid.New(),
			ListingID: req.ListingID,
			BidderID:  req.BidderID,
			Amount:    req.Amount,
			CreatedAt: now,
		}

		err = s.listingRepo.CompareAndSetCurrentBid(ctx, req.ListingID, l.CurrentBid, b, newEndTime)
		if err == nil {
			s.onCommitted(ctx, l, b, newEndTime)
			return b, nil
		}
		if !errors.Is(err, shared.ErrBidConflict) {
			return nil, err
		}

		// Lost the race to another bid. Re-read and re-validate so the
		// caller sees the post-conflict minimum, not a stale one.
		if time.Now().After(deadline) {
			s.logger.Warn().
				Str("listing_id", req.ListingID.String()).
				Str("bidder_id", req.BidderID.String()).
				Msg("Bid commit retries exhausted")
			return nil, shared.ErrBusy
		}
		l, err = s.listingRepo.GetByID(ctx, req.ListingID)
		if err != nil {
			return nil, err
		}
		if err := s.validate(l, req, time.Now()); err != nil {
			return nil, err
		}
		if err := s.checkAmount(l, req); err != nil {
			return nil, err
		}
	}
}

// GetBids returns the listing's bids, highest amount first
func (s *BidService) GetBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	if _, err := s.listingRepo.GetByID(ctx, listingID); err != nil {
		return nil, err
	}
	return s.bidRepo.GetByListingID(ctx, listingID)
}

func (s *BidService) checkBidder(ctx context.Context, bidderID uuid.UUID) error {
	u, err := s.userRepo.GetByID(ctx, bidderID)
	if err != nil {
		if errors.Is(err, shared.ErrUserNotFound) {
			return shared.ErrBidderIneligible
		}
		return err
	}
	if !u.IsActive {
		return shared.ErrBidderIneligible
	}
	return nil
}

func (s *BidService) validate(l *listing.Listing, req inbound.PlaceBidRequest, now time.Time) error {
	if !l.CanBid(now) {
		return shared.ErrAuctionClosed
	}
	if req.BidderID == l.SellerID {
		return shared.ErrSelfBid
	}
	return nil
}

func (s *BidService) checkAmount(l *listing.Listing, req inbound.PlaceBidRequest) error {
	if req.Amount <= 0 {
		return shared.ErrInvalidAmount
	}
	if min := l.MinAcceptableBid(); req.Amount < min {
		return &shared.BidTooLowError{Minimum: min}
	}
	return nil
}

func (s *BidService) onCommitted(ctx context.Context, l *listing.Listing, b *bid.Bid, newEndTime *time.Time) {
	// The committed snapshot: what the repository now holds.
	committed := *l
	committed.CurrentBid = &b.Amount
	if newEndTime != nil {
		committed.AuctionEndTime = newEndTime
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, l.ID)
	}
	if s.fanout != nil {
		s.fanout.BidCommitted(&committed, b)
	}

	s.logger.Info().
		Str("listing_id", l.ID.String()).
		Str("bidder_id", b.BidderID.String()).
		Float64("amount", b.Amount).
		Bool("extended", newEndTime != nil).
		Msg("Bid committed")
}
