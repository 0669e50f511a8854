package app

import (
	"context"
	"errors"
	"time"

	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/domain/shared"
	"autolot-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LifecycleService disposes of expired auctions. Each sweep loads every
// active listing whose end time has elapsed and settles it: relist when no
// bid met the terms, otherwise end it and record the winner. Listings are
// settled independently so one bad row never stalls the rest of the sweep.
type LifecycleService struct {
	listingRepo        outbound.ListingRepository
	bidRepo            outbound.BidRepository
	cache              outbound.ListingCache
	fanout             *FanoutService
	dispositionTimeout time.Duration
	logger             zerolog.Logger
}

type LifecycleServiceParams struct {
	ListingRepo        outbound.ListingRepository
	BidRepo            outbound.BidRepository
	Cache              outbound.ListingCache
	Fanout             *FanoutService
	DispositionTimeout time.Duration
	Logger             zerolog.Logger
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(params LifecycleServiceParams) *LifecycleService {
	return &LifecycleService{
		listingRepo:        params.ListingRepo,
		bidRepo:            params.BidRepo,
		cache:              params.Cache,
		fanout:             params.Fanout,
		dispositionTimeout: params.DispositionTimeout,
		logger:             params.Logger.With().Str("component", "lifecycle_service").Logger(),
	}
}

// SweepExpired settles every expired active listing and returns how many
// were settled. An error from loading the candidate set aborts the sweep;
// per-listing failures are logged and skipped, to be retried next sweep.
func (s *LifecycleService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.listingRepo.GetActivePastEndTime(ctx, now)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, l := range expired {
		result, err := s.dispose(ctx, l, now)
		if err != nil {
			s.logger.Error().Err(err).
				Str("listing_id", l.ID.String()).
				Msg("Failed to settle expired listing")
			continue
		}
		settled++
		s.logger.Info().
			Str("listing_id", l.ID.String()).
			Str("outcome", string(result.Outcome)).
			Msg("Expired listing settled")
	}
	return settled, nil
}

// dispose settles one expired listing under its own timeout
func (s *LifecycleService) dispose(ctx context.Context, l *listing.Listing, now time.Time) (*shared.DispositionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.dispositionTimeout)
	defer cancel()

	highest, err := s.bidRepo.GetHighestBid(ctx, l.ID)
	if err != nil && !errors.Is(err, shared.ErrNoBidsFound) {
		return nil, err
	}

	noBids := errors.Is(err, shared.ErrNoBidsFound)
	if noBids || !l.ReserveMet() {
		return s.restart(ctx, l, now)
	}
	return s.end(ctx, l, highest.BidderID, highest.Amount)
}

// restart relists the auction under a fresh lot number with a clean bid
// history and a full new auction window
func (s *LifecycleService) restart(ctx context.Context, l *listing.Listing, now time.Time) (*shared.DispositionResult, error) {
	lotNumber := listing.NewLotNumber()
	endTime := now.Add(l.AuctionDuration)

	restarted, err := s.listingRepo.PurgeBidsAndRestart(ctx, l.ID, lotNumber, now, endTime)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, l.ID)
	}
	if s.fanout != nil {
		s.fanout.AuctionRestarted(restarted)
	}

	return &shared.DispositionResult{
		ListingID:  l.ID,
		Outcome:    shared.OutcomeRestarted,
		NewEndTime: restarted.AuctionEndTime,
	}, nil
}

// end closes the auction and records the winner. A concurrent sweep that
// already settled the listing surfaces as ErrAlreadyEnded and is treated
// as settled here, keeping disposition idempotent.
func (s *LifecycleService) end(ctx context.Context, l *listing.Listing, winnerID uuid.UUID, amount float64) (*shared.DispositionResult, error) {
	winner, err := s.listingRepo.EndWithWinner(ctx, l.ID, winnerID, amount)
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyEnded) {
			s.logger.Debug().
				Str("listing_id", l.ID.String()).
				Msg("Listing already settled by an earlier sweep")
			return &shared.DispositionResult{ListingID: l.ID, Outcome: shared.OutcomeEnded}, nil
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, l.ID)
	}
	if s.fanout != nil {
		ended := *l
		ended.Status = listing.StatusEnded
		ended.CurrentBid = &winner.Amount
		s.fanout.AuctionEnded(&ended, winner)
	}

	return &shared.DispositionResult{
		ListingID:   l.ID,
		Outcome:     shared.OutcomeEnded,
		WinnerID:    &winner.UserID,
		FinalAmount: &winner.Amount,
	}, nil
}
