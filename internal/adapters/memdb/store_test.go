package memdb

import (
	"context"
	"testing"
	"time"

	"autolot-auction-engine/internal/domain/bid"
	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func activeListing(endsIn time.Duration) *listing.Listing {
	now := time.Now()
	end := now.Add(endsIn)
	return &listing.Listing{
		ID:             uuid.New(),
		SellerID:       uuid.New(),
		LotNumber:      "123456",
		StartingPrice:  1000,
		Status:         listing.StatusActive,
		AuctionEndTime: &end,
	}
}

func newBid(listingID uuid.UUID, amount float64) *bid.Bid {
	return &bid.Bid{
		ID:        uuid.New(),
		ListingID: listingID,
		BidderID:  uuid.New(),
		Amount:    amount,
		CreatedAt: time.Now(),
	}
}

func TestCompareAndSetRejectsStaleExpected(t *testing.T) {
	store := NewStore()
	l := activeListing(time.Hour)
	store.PutListing(l)
	ctx := context.Background()

	require.NoError(t, store.CompareAndSetCurrentBid(ctx, l.ID, nil, newBid(l.ID, 1100), nil))

	// A second write still expecting no current bid loses
	err := store.CompareAndSetCurrentBid(ctx, l.ID, nil, newBid(l.ID, 1100), nil)
	require.ErrorIs(t, err, shared.ErrBidConflict)

	current := 1100.0
	require.NoError(t, store.CompareAndSetCurrentBid(ctx, l.ID, &current, newBid(l.ID, 1200), nil))

	stored, err := store.GetByID(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, 1200.0, *stored.CurrentBid)

	bids, err := store.GetByListingID(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
}

func TestCompareAndSetRejectsClosedAuction(t *testing.T) {
	store := NewStore()
	l := activeListing(-time.Minute)
	store.PutListing(l)

	err := store.CompareAndSetCurrentBid(context.Background(), l.ID, nil, newBid(l.ID, 1100), nil)
	require.ErrorIs(t, err, shared.ErrAuctionClosed)
}

func TestCompareAndSetMovesEndTime(t *testing.T) {
	store := NewStore()
	l := activeListing(5 * time.Second)
	store.PutListing(l)

	extended := l.AuctionEndTime.Add(10 * time.Second)
	require.NoError(t, store.CompareAndSetCurrentBid(context.Background(), l.ID, nil, newBid(l.ID, 1100), &extended))

	stored, err := store.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	require.True(t, stored.AuctionEndTime.Equal(extended))
}

func TestPurgeBidsAndRestart(t *testing.T) {
	store := NewStore()
	l := activeListing(time.Hour)
	store.PutListing(l)
	ctx := context.Background()

	require.NoError(t, store.CompareAndSetCurrentBid(ctx, l.ID, nil, newBid(l.ID, 1100), nil))

	start := time.Now()
	end := start.Add(24 * time.Hour)
	restarted, err := store.PurgeBidsAndRestart(ctx, l.ID, "654321", start, end)
	require.NoError(t, err)
	require.Equal(t, "654321", restarted.LotNumber)
	require.Nil(t, restarted.CurrentBid)
	require.Equal(t, listing.StatusActive, restarted.Status)
	require.True(t, restarted.AuctionEndTime.Equal(end))

	bids, err := store.GetByListingID(ctx, l.ID)
	require.NoError(t, err)
	require.Empty(t, bids)
}

func TestEndWithWinnerIsIdempotent(t *testing.T) {
	store := NewStore()
	l := activeListing(-time.Minute)
	store.PutListing(l)
	winnerID := uuid.New()
	ctx := context.Background()

	w, err := store.EndWithWinner(ctx, l.ID, winnerID, 1500)
	require.NoError(t, err)
	require.Equal(t, winnerID, w.UserID)

	_, err = store.EndWithWinner(ctx, l.ID, winnerID, 1500)
	require.ErrorIs(t, err, shared.ErrAlreadyEnded)

	stored, err := store.GetByID(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, listing.StatusEnded, stored.Status)
}

func TestGetDisplacedBidderSkipsExcluded(t *testing.T) {
	store := NewStore()
	l := activeListing(time.Hour)
	store.PutListing(l)
	ctx := context.Background()

	first := newBid(l.ID, 1100)
	require.NoError(t, store.CompareAndSetCurrentBid(ctx, l.ID, nil, first, nil))
	amount := 1100.0
	second := newBid(l.ID, 1300)
	require.NoError(t, store.CompareAndSetCurrentBid(ctx, l.ID, &amount, second, nil))

	displaced, err := store.GetDisplacedBidder(ctx, l.ID, second.BidderID)
	require.NoError(t, err)
	require.Equal(t, first.BidderID, displaced)

	_, err = store.GetDisplacedBidder(ctx, l.ID, first.BidderID)
	require.NoError(t, err)

	empty := activeListing(time.Hour)
	store.PutListing(empty)
	_, err = store.GetDisplacedBidder(ctx, empty.ID, uuid.New())
	require.ErrorIs(t, err, shared.ErrNoBidsFound)
}

func TestGetActivePastEndTime(t *testing.T) {
	store := NewStore()
	expired := activeListing(-time.Minute)
	store.PutListing(expired)
	live := activeListing(time.Hour)
	store.PutListing(live)
	ended := activeListing(-time.Minute)
	ended.Status = listing.StatusEnded
	store.PutListing(ended)

	out, err := store.GetActivePastEndTime(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, expired.ID, out[0].ID)
}
