package db

import (
	"context"
	"database/sql"
	"fmt"

	"autolot-auction-engine/internal/domain/bid"
	"autolot-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// BidRepository implements the bid repository interface on postgres. Bids
// are written only through ListingRepository.CompareAndSetCurrentBid; this
// repository is the read side of the append-only log.
type BidRepository struct {
	conn *Connection
}

// NewBidRepository creates a new bid repository
func NewBidRepository(conn *Connection) *BidRepository {
	return &BidRepository{conn: conn}
}

// GetByListingID retrieves all bids for a listing, highest amount first
func (r *BidRepository) GetByListingID(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	query := `
		SELECT id, listing_id, bidder_id, amount, created_at
		FROM bids
		WHERE listing_id = $1
		ORDER BY amount DESC, created_at ASC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	var bids []*bid.Bid
	for rows.Next() {
		var b bid.Bid
		err := rows.Scan(
			&b.ID,
			&b.ListingID,
			&b.BidderID,
			&b.Amount,
			&b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, &b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

// GetHighestBid retrieves the highest bid for a listing
func (r *BidRepository) GetHighestBid(ctx context.Context, listingID uuid.UUID) (*bid.Bid, error) {
	query := `
		SELECT id, listing_id, bidder_id, amount, created_at
		FROM bids
		WHERE listing_id = $1
		ORDER BY amount DESC, created_at ASC
		LIMIT 1
	`

	var b bid.Bid
	err := r.conn.GetDB().QueryRowContext(ctx, query, listingID).Scan(
		&b.ID,
		&b.ListingID,
		&b.BidderID,
		&b.Amount,
		&b.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrNoBidsFound
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}

	return &b, nil
}

// GetDisplacedBidder returns the bidder holding the highest bid other than
// excludeBidder: the one user the new bid directly displaced.
func (r *BidRepository) GetDisplacedBidder(ctx context.Context, listingID, excludeBidder uuid.UUID) (uuid.UUID, error) {
	query := `
		SELECT bidder_id
		FROM bids
		WHERE listing_id = $1 AND bidder_id != $2
		ORDER BY amount DESC, created_at ASC
		LIMIT 1
	`

	var bidderID uuid.UUID
	err := r.conn.GetDB().QueryRowContext(ctx, query, listingID, excludeBidder).Scan(&bidderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, shared.ErrNoBidsFound
		}
		return uuid.Nil, fmt.Errorf("failed to get displaced bidder: %w", err)
	}

	return bidderID, nil
}
