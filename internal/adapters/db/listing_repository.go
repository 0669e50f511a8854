package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"autolot-auction-engine/internal/domain/bid"
	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

const listingColumns = `
	id, seller_id, lot_number, make, model, year, mileage, description,
	starting_price, reserve_price, current_bid, auction_duration_hours,
	status, auction_start_time, auction_end_time, created_at
`

// ListingRepository implements the listing repository interface on postgres
type ListingRepository struct {
	conn *Connection
}

// NewListingRepository creates a new listing repository
func NewListingRepository(conn *Connection) *ListingRepository {
	return &ListingRepository{conn: conn}
}

// GetByID retrieves a listing by ID
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM car_listings WHERE id = $1`

	row := r.conn.GetDB().QueryRowContext(ctx, query, id)
	l, err := scanListing(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return l, nil
}

// GetActivePastEndTime retrieves active listings whose end time has elapsed
func (r *ListingRepository) GetActivePastEndTime(ctx context.Context, now time.Time) ([]*listing.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM car_listings
		WHERE status = 'active' AND auction_end_time <= $1
		ORDER BY auction_end_time ASC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired listings: %w", err)
	}
	defer rows.Close()

	var listings []*listing.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return listings, nil
}

/*
CompareAndSetCurrentBid commits a bid with optimistic concurrency control:
 1. Re-reads the listing state inside the transaction
 2. Rejects if the auction is no longer accepting bids
 3. Inserts the bid and advances current_bid only if current_bid still
    equals the expected value (guarded UPDATE)
 4. Fails with ErrBidConflict if another transaction won the race
*/
func (r *ListingRepository) CompareAndSetCurrentBid(ctx context.Context, listingID uuid.UUID, expected *float64, newBid *bid.Bid, newEndTime *time.Time) error {
	return r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		var status string
		var currentBid sql.NullFloat64
		var endTime sql.NullTime
		stateQuery := `
			SELECT status, current_bid, auction_end_time
			FROM car_listings
			WHERE id = $1
		`
		err := tx.QueryRowContext(ctx, stateQuery, listingID).Scan(&status, &currentBid, &endTime)
		if err != nil {
			if err == sql.ErrNoRows {
				return shared.ErrListingNotFound
			}
			return fmt.Errorf("failed to read listing state: %w", err)
		}

		if status != string(listing.StatusActive) || !endTime.Valid || !newBid.CreatedAt.Before(endTime.Time) {
			return shared.ErrAuctionClosed
		}

		bidQuery := `
			INSERT INTO bids (id, listing_id, bidder_id, amount, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		_, err = tx.ExecContext(ctx, bidQuery,
			newBid.ID,
			newBid.ListingID,
			newBid.BidderID,
			newBid.Amount,
			newBid.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bid: %w", err)
		}

		// The expected previous value in the WHERE clause is the
		// serialization point: a racing commit changes current_bid and this
		// update then touches zero rows, rolling back the bid insert.
		updateQuery := `
			UPDATE car_listings
			SET current_bid = $2,
			    auction_end_time = COALESCE($3, auction_end_time)
			WHERE id = $1 AND current_bid IS NOT DISTINCT FROM $4
		`
		result, err := tx.ExecContext(ctx, updateQuery,
			listingID,
			newBid.Amount,
			newEndTime,
			expected,
		)
		if err != nil {
			return fmt.Errorf("failed to update current bid: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return shared.ErrBidConflict
		}

		return nil
	})
}

// PurgeBidsAndRestart deletes all bids and resets the auction window in one
// transaction, so no new bid can land between the purge and the reset.
func (r *ListingRepository) PurgeBidsAndRestart(ctx context.Context, listingID uuid.UUID, lotNumber string, startTime, endTime time.Time) (*listing.Listing, error) {
	err := r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bids WHERE listing_id = $1`, listingID); err != nil {
			return fmt.Errorf("failed to purge bids: %w", err)
		}

		updateQuery := `
			UPDATE car_listings
			SET current_bid = NULL,
			    lot_number = $2,
			    auction_start_time = $3,
			    auction_end_time = $4,
			    status = 'active'
			WHERE id = $1
		`
		result, err := tx.ExecContext(ctx, updateQuery, listingID, lotNumber, startTime, endTime)
		if err != nil {
			return fmt.Errorf("failed to restart listing: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return shared.ErrListingNotFound
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, listingID)
}

// EndWithWinner marks the listing ended and records the winner, guarded by
// an idempotency check on the winner record.
func (r *ListingRepository) EndWithWinner(ctx context.Context, listingID, winnerID uuid.UUID, amount float64) (*listing.Winner, error) {
	winner := &listing.Winner{
		ID:        uuid.New(),
		ListingID: listingID,
		UserID:    winnerID,
		Amount:    amount,
		CreatedAt: time.Now(),
	}

	err := r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		var existing int
		checkQuery := `SELECT COUNT(*) FROM user_wins WHERE listing_id = $1`
		if err := tx.QueryRowContext(ctx, checkQuery, listingID).Scan(&existing); err != nil {
			return fmt.Errorf("failed to check winner record: %w", err)
		}
		if existing > 0 {
			return shared.ErrAlreadyEnded
		}

		updateQuery := `UPDATE car_listings SET status = 'ended' WHERE id = $1`
		result, err := tx.ExecContext(ctx, updateQuery, listingID)
		if err != nil {
			return fmt.Errorf("failed to end listing: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return shared.ErrListingNotFound
		}

		winQuery := `
			INSERT INTO user_wins (id, listing_id, user_id, winning_bid, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.ExecContext(ctx, winQuery,
			winner.ID,
			winner.ListingID,
			winner.UserID,
			winner.Amount,
			winner.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert winner record: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return winner, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*listing.Listing, error) {
	var l listing.Listing
	var reservePrice, currentBid sql.NullFloat64
	var durationHours int
	var startTime, endTime sql.NullTime

	err := row.Scan(
		&l.ID,
		&l.SellerID,
		&l.LotNumber,
		&l.Make,
		&l.Model,
		&l.Year,
		&l.Mileage,
		&l.Description,
		&l.StartingPrice,
		&reservePrice,
		&currentBid,
		&durationHours,
		&l.Status,
		&startTime,
		&endTime,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reservePrice.Valid {
		l.ReservePrice = &reservePrice.Float64
	}
	if currentBid.Valid {
		l.CurrentBid = &currentBid.Float64
	}
	if startTime.Valid {
		l.AuctionStartTime = &startTime.Time
	}
	if endTime.Valid {
		l.AuctionEndTime = &endTime.Time
	}
	l.AuctionDuration = time.Duration(durationHours) * time.Hour

	return &l, nil
}
