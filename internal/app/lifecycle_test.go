package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"autolot-auction-engine/internal/adapters/memdb"
	"autolot-auction-engine/internal/domain/bid"
	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/domain/notification"
	"autolot-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestLifecycle(store *memdb.Store, fanout *FanoutService) *LifecycleService {
	return NewLifecycleService(LifecycleServiceParams{
		ListingRepo:        store,
		BidRepo:            store,
		Fanout:             fanout,
		DispositionTimeout: 5 * time.Second,
		Logger:             zerolog.Nop(),
	})
}

func placeRawBid(t *testing.T, store *memdb.Store, l *listing.Listing, bidder uuid.UUID, amount float64) {
	t.Helper()
	expected := l.CurrentBid
	b := &bid.Bid{ID: uuid.New(), ListingID: l.ID, BidderID: bidder, Amount: amount, CreatedAt: time.Now()}
	require.NoError(t, store.CompareAndSetCurrentBid(context.Background(), l.ID, expected, b, nil))
	l.CurrentBid = &amount
}

func TestSweepRestartsListingWithNoBids(t *testing.T) {
	store := memdb.NewStore()
	bc := &captureBroadcaster{}
	fanout := newTestFanout(store, bc)
	seller := newActiveUser(store, "seller01")
	favoriter := newActiveUser(store, "watcher")

	l := newActiveListing(seller, 1000, -time.Minute)
	store.PutListing(l)
	store.PutFavorite(favoriter, l.ID)

	svc := newTestLifecycle(store, fanout)

	settled, err := svc.SweepExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, settled)
	fanout.Stop()

	restarted, err := store.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, listing.StatusActive, restarted.Status)
	require.Nil(t, restarted.CurrentBid)
	require.NotEqual(t, l.LotNumber, restarted.LotNumber)
	require.Len(t, restarted.LotNumber, 6)
	require.True(t, restarted.AuctionEndTime.After(time.Now()))
	require.Nil(t, store.WinnerFor(l.ID))

	// Seller and favoriter each get a restart notice
	recipients := map[uuid.UUID]bool{}
	for _, n := range store.Notifications() {
		require.Equal(t, notification.TypeAuctionRestarted, n.Type)
		recipients[n.UserID] = true
	}
	require.True(t, recipients[seller])
	require.True(t, recipients[favoriter])

	events := bc.Events()
	require.Len(t, events, 1)
	require.Equal(t, outbound.EventTypeAuctionRestarted, events[0].Type)
}

func TestSweepRestartsListingWithReserveUnmet(t *testing.T) {
	store := memdb.NewStore()
	bc := &captureBroadcaster{}
	fanout := newTestFanout(store, bc)
	seller := newActiveUser(store, "seller01")
	bidder := newActiveUser(store, "maria")

	l := newActiveListing(seller, 1000, time.Hour)
	reserve := 2000.0
	l.ReservePrice = &reserve
	store.PutListing(l)
	placeRawBid(t, store, l, bidder, 1500)

	// Expire it after the bid landed
	expired := *l
	end := time.Now().Add(-time.Minute)
	expired.AuctionEndTime = &end
	store.PutListing(&expired)

	svc := newTestLifecycle(store, fanout)

	settled, err := svc.SweepExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, settled)
	fanout.Stop()

	restarted, err := store.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, listing.StatusActive, restarted.Status)
	require.Nil(t, restarted.CurrentBid)
	require.Nil(t, store.WinnerFor(l.ID))

	// The bid history was purged with the restart
	bids, err := store.GetByListingID(context.Background(), l.ID)
	require.NoError(t, err)
	require.Empty(t, bids)
}

func TestSweepEndsListingWithWinner(t *testing.T) {
	store := memdb.NewStore()
	bc := &captureBroadcaster{}
	fanout := newTestFanout(store, bc)
	seller := newActiveUser(store, "seller01")
	maria := newActiveUser(store, "maria")
	james := newActiveUser(store, "james")

	l := newActiveListing(seller, 1000, time.Hour)
	reserve := 1200.0
	l.ReservePrice = &reserve
	store.PutListing(l)
	placeRawBid(t, store, l, maria, 1100)
	placeRawBid(t, store, l, james, 1300)

	expired := *l
	end := time.Now().Add(-time.Minute)
	expired.AuctionEndTime = &end
	store.PutListing(&expired)

	svc := newTestLifecycle(store, fanout)

	settled, err := svc.SweepExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, settled)
	fanout.Stop()

	final, err := store.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, listing.StatusEnded, final.Status)

	winner := store.WinnerFor(l.ID)
	require.NotNil(t, winner)
	require.Equal(t, james, winner.UserID)
	require.Equal(t, 1300.0, winner.Amount)

	notes := store.Notifications()
	require.Len(t, notes, 1)
	require.Equal(t, notification.TypeAuctionWon, notes[0].Type)
	require.Equal(t, james, notes[0].UserID)

	events := bc.Events()
	require.Len(t, events, 1)
	require.Equal(t, outbound.EventTypeAuctionEnded, events[0].Type)
	require.Equal(t, 1300.0, events[0].Data["final_bid"])
}

func TestSweepEndIsIdempotent(t *testing.T) {
	store := memdb.NewStore()
	seller := newActiveUser(store, "seller01")
	maria := newActiveUser(store, "maria")

	l := newActiveListing(seller, 1000, time.Hour)
	store.PutListing(l)
	placeRawBid(t, store, l, maria, 1100)

	expired := *l
	end := time.Now().Add(-time.Minute)
	expired.AuctionEndTime = &end
	store.PutListing(&expired)

	svc := newTestLifecycle(store, nil)

	settled, err := svc.SweepExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, settled)
	first := store.WinnerFor(l.ID)
	require.NotNil(t, first)

	// Force the listing back into the sweep's candidate set, as if a stale
	// replica raced this one. The existing winner record makes the second
	// disposition a no-op.
	stale, err := store.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	stale.Status = listing.StatusActive
	store.PutListing(stale)

	settled, err = svc.SweepExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, settled)

	second := store.WinnerFor(l.ID)
	require.NotNil(t, second)
	require.Equal(t, first.ID, second.ID)
}

// failingBidRepo fails GetHighestBid for one listing and delegates the rest
type failingBidRepo struct {
	outbound.BidRepository
	failFor uuid.UUID
}

func (r *failingBidRepo) GetHighestBid(ctx context.Context, listingID uuid.UUID) (*bid.Bid, error) {
	if listingID == r.failFor {
		return nil, fmt.Errorf("connection reset")
	}
	return r.BidRepository.GetHighestBid(ctx, listingID)
}

func TestSweepIsolatesPerListingFailures(t *testing.T) {
	store := memdb.NewStore()
	seller := newActiveUser(store, "seller01")

	bad := newActiveListing(seller, 1000, -time.Minute)
	store.PutListing(bad)
	good := newActiveListing(seller, 1000, -time.Minute)
	store.PutListing(good)

	svc := NewLifecycleService(LifecycleServiceParams{
		ListingRepo:        store,
		BidRepo:            &failingBidRepo{BidRepository: store, failFor: bad.ID},
		DispositionTimeout: 5 * time.Second,
		Logger:             zerolog.Nop(),
	})

	settled, err := svc.SweepExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, settled)

	// The healthy listing was still restarted
	restarted, err := store.GetByID(context.Background(), good.ID)
	require.NoError(t, err)
	require.NotEqual(t, good.LotNumber, restarted.LotNumber)
}
