package app

import (
	"context"
	"testing"
	"time"

	"autolot-auction-engine/internal/adapters/memdb"
	"autolot-auction-engine/internal/domain/bid"
	"autolot-auction-engine/internal/domain/notification"
	"autolot-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBidCommittedNotifiesDisplacedBidderOnce(t *testing.T) {
	store := memdb.NewStore()
	bc := &captureBroadcaster{}
	fanout := newTestFanout(store, bc)
	seller := newActiveUser(store, "seller01")
	maria := newActiveUser(store, "maria")
	james := newActiveUser(store, "james")

	l := newActiveListing(seller, 1000, time.Hour)
	store.PutListing(l)
	placeRawBid(t, store, l, maria, 1100)
	placeRawBid(t, store, l, james, 1300)

	b := &bid.Bid{ID: uuid.New(), ListingID: l.ID, BidderID: james, Amount: 1300, CreatedAt: time.Now()}
	fanout.BidCommitted(l, b)
	fanout.Stop()

	notes := store.Notifications()
	require.Len(t, notes, 1)
	require.Equal(t, notification.TypeBidOutbid, notes[0].Type)
	require.Equal(t, maria, notes[0].UserID)
	require.Equal(t, l.ID, notes[0].ListingID)

	events := bc.Events()
	require.Len(t, events, 1)
	require.Equal(t, outbound.EventTypeBidPlaced, events[0].Type)
	require.Equal(t, 1300.0, events[0].Data["current_bid"])
	// Bidder identity is anonymized on the wire
	require.Equal(t, "ja***", events[0].Data["bidder_handle"])
}

func TestBidCommittedFirstBidHasNoDisplacedBidder(t *testing.T) {
	store := memdb.NewStore()
	bc := &captureBroadcaster{}
	fanout := newTestFanout(store, bc)
	seller := newActiveUser(store, "seller01")
	maria := newActiveUser(store, "maria")

	l := newActiveListing(seller, 1000, time.Hour)
	store.PutListing(l)
	placeRawBid(t, store, l, maria, 1100)

	b := &bid.Bid{ID: uuid.New(), ListingID: l.ID, BidderID: maria, Amount: 1100, CreatedAt: time.Now()}
	fanout.BidCommitted(l, b)
	fanout.Stop()

	require.Empty(t, store.Notifications())
	require.Len(t, bc.Events(), 1)
}

func TestBidCommittedSelfRaiseNotifiesPreviousBidder(t *testing.T) {
	store := memdb.NewStore()
	bc := &captureBroadcaster{}
	fanout := newTestFanout(store, bc)
	seller := newActiveUser(store, "seller01")
	maria := newActiveUser(store, "maria")
	james := newActiveUser(store, "james")

	l := newActiveListing(seller, 1000, time.Hour)
	store.PutListing(l)
	placeRawBid(t, store, l, maria, 1100)
	placeRawBid(t, store, l, james, 1200)
	placeRawBid(t, store, l, james, 1400)

	// James raised his own bid; maria is still the displaced party
	b := &bid.Bid{ID: uuid.New(), ListingID: l.ID, BidderID: james, Amount: 1400, CreatedAt: time.Now()}
	fanout.BidCommitted(l, b)
	fanout.Stop()

	notes := store.Notifications()
	require.Len(t, notes, 1)
	require.Equal(t, maria, notes[0].UserID)
}

func TestListingCreatedAnnouncesMatchingAlertsOnce(t *testing.T) {
	store := memdb.NewStore()
	bc := &captureBroadcaster{}
	seller := newActiveUser(store, "seller01")
	watcher := newActiveUser(store, "watcher")
	other := newActiveUser(store, "someone")

	l := newActiveListing(seller, 1000, time.Hour)
	store.PutListing(l)

	model := "Camry"
	maxPrice := 5000.0
	matching := &notification.CarAlert{
		ID:       uuid.New(),
		UserID:   watcher,
		Make:     "Toyota",
		Model:    &model,
		MaxPrice: &maxPrice,
		IsActive: true,
	}
	store.PutAlert(matching)

	lowCap := 500.0
	store.PutAlert(&notification.CarAlert{
		ID:       uuid.New(),
		UserID:   other,
		Make:     "Toyota",
		MaxPrice: &lowCap,
		IsActive: true,
	})

	fanout := newTestFanout(store, bc)
	fanout.ListingCreated(l)
	fanout.Stop()

	notes := store.Notifications()
	require.Len(t, notes, 1)
	require.Equal(t, notification.TypeCarFound, notes[0].Type)
	require.Equal(t, watcher, notes[0].UserID)
	require.NotNil(t, notes[0].AlertID)
	require.Equal(t, matching.ID, *notes[0].AlertID)

	// A second announcement of the same listing is a no-op
	fanout = newTestFanout(store, bc)
	fanout.ListingCreated(l)
	fanout.Stop()

	require.Len(t, store.Notifications(), 1)
}

func TestAuctionEndedNotifiesWinner(t *testing.T) {
	store := memdb.NewStore()
	bc := &captureBroadcaster{}
	fanout := newTestFanout(store, bc)
	seller := newActiveUser(store, "seller01")
	maria := newActiveUser(store, "maria")

	l := newActiveListing(seller, 1000, -time.Minute)
	store.PutListing(l)

	w, err := store.EndWithWinner(context.Background(), l.ID, maria, 1500)
	require.NoError(t, err)

	fanout.AuctionEnded(l, w)
	fanout.Stop()

	notes := store.Notifications()
	require.Len(t, notes, 1)
	require.Equal(t, notification.TypeAuctionWon, notes[0].Type)
	require.Equal(t, maria, notes[0].UserID)

	events := bc.Events()
	require.Len(t, events, 1)
	require.Equal(t, outbound.EventTypeAuctionEnded, events[0].Type)
	require.Equal(t, "ma***", events[0].Data["winner_handle"])
}
