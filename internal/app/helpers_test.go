package app

import (
	"context"
	"sync"
	"time"

	"autolot-auction-engine/internal/adapters/memdb"
	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/domain/shared"
	"autolot-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// captureBroadcaster records published events for assertions
type captureBroadcaster struct {
	mu     sync.Mutex
	events []outbound.Event
}

func (b *captureBroadcaster) Subscribe(ctx context.Context, listingID uuid.UUID, eventChan chan outbound.Event) error {
	return nil
}

func (b *captureBroadcaster) Unsubscribe(ctx context.Context, listingID uuid.UUID) error {
	return nil
}

func (b *captureBroadcaster) Publish(ctx context.Context, listingID uuid.UUID, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *captureBroadcaster) Close() error { return nil }

func (b *captureBroadcaster) Events() []outbound.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]outbound.Event, len(b.events))
	copy(out, b.events)
	return out
}

func newTestFanout(store *memdb.Store, bc outbound.Broadcaster) *FanoutService {
	return NewFanoutService(FanoutServiceParams{
		BidRepo:     store,
		NotifRepo:   store,
		UserRepo:    store.Users(),
		Broadcaster: bc,
		Logger:      zerolog.Nop(),
	})
}

func newActiveListing(sellerID uuid.UUID, startingPrice float64, endsIn time.Duration) *listing.Listing {
	now := time.Now()
	end := now.Add(endsIn)
	return &listing.Listing{
		ID:               uuid.New(),
		SellerID:         sellerID,
		LotNumber:        "482019",
		Make:             "Toyota",
		Model:            "Camry",
		Year:             2020,
		Mileage:          45000,
		StartingPrice:    startingPrice,
		AuctionDuration:  24 * time.Hour,
		Status:           listing.StatusActive,
		AuctionStartTime: &now,
		AuctionEndTime:   &end,
		CreatedAt:        now,
	}
}

func newActiveUser(store *memdb.Store, handle string) uuid.UUID {
	id := uuid.New()
	store.PutUser(&shared.User{ID: id, Handle: handle, IsActive: true})
	return id
}
