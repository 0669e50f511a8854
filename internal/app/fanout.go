package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autolot-auction-engine/internal/config"
	"autolot-auction-engine/internal/domain/bid"
	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/domain/notification"
	"autolot-auction-engine/internal/domain/shared"
	"autolot-auction-engine/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const fanoutTaskTimeout = 5 * time.Second

// FanoutService turns committed bids and lifecycle transitions into
// per-recipient notifications and room broadcasts. All work runs on a
// bounded worker pool: callers never block and failures here are logged,
// never propagated. A dropped notification is degraded service, not a
// failed bid.
type FanoutService struct {
	bidRepo     outbound.BidRepository
	notifRepo   outbound.NotificationRepository
	userRepo    outbound.UserRepository
	broadcaster outbound.Broadcaster
	pool        *pond.WorkerPool
	logger      zerolog.Logger
}

type FanoutServiceParams struct {
	BidRepo     outbound.BidRepository
	NotifRepo   outbound.NotificationRepository
	UserRepo    outbound.UserRepository
	Broadcaster outbound.Broadcaster
	Logger      zerolog.Logger
}

// NewFanoutService creates a new fanout service
func NewFanoutService(params FanoutServiceParams) *FanoutService {
	return &FanoutService{
		bidRepo:     params.BidRepo,
		notifRepo:   params.NotifRepo,
		userRepo:    params.UserRepo,
		broadcaster: params.Broadcaster,
		pool:        pond.New(config.FanoutMaxWorkers, config.FanoutMaxCapacity),
		logger:      params.Logger.With().Str("component", "fanout_service").Logger(),
	}
}

// Stop drains the worker pool
func (s *FanoutService) Stop() {
	s.pool.StopAndWait()
}

// BidCommitted fans out one committed bid: an outbid notice to the
// directly displaced bidder and a bid_update broadcast to the listing room.
// l must be the post-commit snapshot.
func (s *FanoutService) BidCommitted(l *listing.Listing, b *bid.Bid) {
	snapshot := *l
	committed := *b

	s.pool.Submit(func() {
		s.notifyDisplacedBidder(&snapshot, &committed)
	})
	s.pool.Submit(func() {
		s.broadcastBid(&snapshot, &committed)
	})
}

// ListingCreated announces a newly created listing to every matching saved
// search, once per (user, alert, listing) triple.
func (s *FanoutService) ListingCreated(l *listing.Listing) {
	snapshot := *l

	s.pool.Submit(func() {
		s.announceListing(&snapshot)
	})
}

// AuctionEnded notifies the winner and broadcasts the final state
func (s *FanoutService) AuctionEnded(l *listing.Listing, winner *listing.Winner) {
	snapshot := *l
	won := *winner

	s.pool.Submit(func() {
		s.notifyWinner(&snapshot, &won)
	})
	s.pool.Submit(func() {
		s.broadcastEnded(&snapshot, &won)
	})
}

// AuctionRestarted notifies the seller and everyone who favorited the
// listing, and broadcasts the fresh auction window to the room
func (s *FanoutService) AuctionRestarted(l *listing.Listing) {
	snapshot := *l

	s.pool.Submit(func() {
		s.notifyRestart(&snapshot)
	})
	s.pool.Submit(func() {
		s.broadcastRestarted(&snapshot)
	})
}

func (s *FanoutService) notifyDisplacedBidder(l *listing.Listing, b *bid.Bid) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTaskTimeout)
	defer cancel()

	displaced, err := s.bidRepo.GetDisplacedBidder(ctx, l.ID, b.BidderID)
	if err != nil {
		if !errors.Is(err, shared.ErrNoBidsFound) {
			s.logger.Error().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to find displaced bidder")
		}
		return
	}

	n := &notification.Notification{
		ID:        uuid.New(),
		UserID:    displaced,
		Type:      notification.TypeBidOutbid,
		ListingID: l.ID,
		Message:   fmt.Sprintf("Your bid on %s %s %d was outbid. The new highest bid is %.0f.", l.Make, l.Model, l.Year, b.Amount),
		CreatedAt: time.Now(),
	}
	if err := s.notifRepo.CreateNotification(ctx, n); err != nil {
		s.logger.Error().Err(err).
			Str("listing_id", l.ID.String()).
			Str("user_id", displaced.String()).
			Msg("Failed to create outbid notification")
		return
	}

	s.logger.Info().
		Str("listing_id", l.ID.String()).
		Str("displaced_bidder", displaced.String()).
		Float64("new_amount", b.Amount).
		Msg("Outbid notification created")
}

func (s *FanoutService) broadcastBid(l *listing.Listing, b *bid.Bid) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTaskTimeout)
	defer cancel()

	event := outbound.Event{
		Type:      outbound.EventTypeBidPlaced,
		ListingID: l.ID,
		Data: map[string]interface{}{
			"current_bid":   b.Amount,
			"bidder_handle": s.anonymizedHandle(ctx, b.BidderID),
			"minimum_bid":   b.Amount + 1,
		},
		Timestamp: b.CreatedAt.Unix(),
	}
	if l.AuctionEndTime != nil {
		event.Data["end_time"] = l.AuctionEndTime.Format(time.RFC3339)
	}

	if err := s.broadcaster.Publish(ctx, l.ID, event); err != nil {
		s.logger.Error().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to broadcast bid event")
	}
}

func (s *FanoutService) announceListing(l *listing.Listing) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTaskTimeout)
	defer cancel()

	alerts, err := s.notifRepo.GetMatchingAlerts(ctx, l)
	if err != nil {
		s.logger.Error().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to query matching alerts")
		return
	}

	for _, alert := range alerts {
		announced, err := s.notifRepo.HasAlertBeenAnnounced(ctx, alert.UserID, alert.ID, l.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("alert_id", alert.ID.String()).Msg("Failed to check alert announcement")
			continue
		}
		if announced {
			continue
		}

		alertID := alert.ID
		n := &notification.Notification{
			ID:        uuid.New(),
			UserID:    alert.UserID,
			Type:      notification.TypeCarFound,
			ListingID: l.ID,
			AlertID:   &alertID,
			Message:   fmt.Sprintf("A %s %s %d matching your saved search was listed as lot %s, starting at %.0f.", l.Make, l.Model, l.Year, l.LotNumber, l.StartingPrice),
			CreatedAt: time.Now(),
		}
		if err := s.notifRepo.CreateAlertNotification(ctx, n); err != nil {
			s.logger.Error().Err(err).
				Str("alert_id", alert.ID.String()).
				Str("listing_id", l.ID.String()).
				Msg("Failed to create alert notification")
			continue
		}

		s.logger.Info().
			Str("alert_id", alert.ID.String()).
			Str("user_id", alert.UserID.String()).
			Str("listing_id", l.ID.String()).
			Msg("Alert match announced")
	}
}

func (s *FanoutService) notifyWinner(l *listing.Listing, w *listing.Winner) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTaskTimeout)
	defer cancel()

	n := &notification.Notification{
		ID:        uuid.New(),
		UserID:    w.UserID,
		Type:      notification.TypeAuctionWon,
		ListingID: l.ID,
		Message:   fmt.Sprintf("Congratulations! You won the auction for %s %s %d at %.0f.", l.Make, l.Model, l.Year, w.Amount),
		CreatedAt: time.Now(),
	}
	if err := s.notifRepo.CreateNotification(ctx, n); err != nil {
		s.logger.Error().Err(err).
			Str("listing_id", l.ID.String()).
			Str("winner_id", w.UserID.String()).
			Msg("Failed to create winner notification")
	}
}

func (s *FanoutService) broadcastEnded(l *listing.Listing, w *listing.Winner) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTaskTimeout)
	defer cancel()

	event := outbound.Event{
		Type:      outbound.EventTypeAuctionEnded,
		ListingID: l.ID,
		Data: map[string]interface{}{
			"final_bid":     w.Amount,
			"winner_handle": s.anonymizedHandle(ctx, w.UserID),
		},
		Timestamp: time.Now().Unix(),
	}

	if err := s.broadcaster.Publish(ctx, l.ID, event); err != nil {
		s.logger.Error().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to broadcast auction end event")
	}
}

func (s *FanoutService) notifyRestart(l *listing.Listing) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTaskTimeout)
	defer cancel()

	recipients := []uuid.UUID{l.SellerID}
	favoriters, err := s.notifRepo.GetFavoritedUserIDs(ctx, l.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to load favoriters for restart notice")
	} else {
		recipients = append(recipients, favoriters...)
	}

	message := fmt.Sprintf("The auction for %s %s %d was relisted as lot %s.", l.Make, l.Model, l.Year, l.LotNumber)
	for _, userID := range recipients {
		n := &notification.Notification{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      notification.TypeAuctionRestarted,
			ListingID: l.ID,
			Message:   message,
			CreatedAt: time.Now(),
		}
		if err := s.notifRepo.CreateNotification(ctx, n); err != nil {
			s.logger.Error().Err(err).
				Str("listing_id", l.ID.String()).
				Str("user_id", userID.String()).
				Msg("Failed to create restart notification")
		}
	}
}

func (s *FanoutService) broadcastRestarted(l *listing.Listing) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTaskTimeout)
	defer cancel()

	event := outbound.Event{
		Type:      outbound.EventTypeAuctionRestarted,
		ListingID: l.ID,
		Data: map[string]interface{}{
			"lot_number":     l.LotNumber,
			"starting_price": l.StartingPrice,
		},
		Timestamp: time.Now().Unix(),
	}
	if l.AuctionEndTime != nil {
		event.Data["end_time"] = l.AuctionEndTime.Format(time.RFC3339)
	}

	if err := s.broadcaster.Publish(ctx, l.ID, event); err != nil {
		s.logger.Error().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to broadcast restart event")
	}
}

func (s *FanoutService) anonymizedHandle(ctx context.Context, userID uuid.UUID) string {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "bidder-" + userID.String()[:4]
	}
	return u.AnonymousHandle()
}
