package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/domain/notification"

	"github.com/google/uuid"
)

// NotificationRepository implements the notification repository interface
// on postgres, covering notifications, saved-search alerts, the alert-view
// idempotency markers and favorites.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// CreateNotification persists a notification record
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, listing_id, alert_id, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.ListingID,
		n.AlertID,
		n.Message,
		n.IsRead,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// GetMatchingAlerts returns the active saved searches satisfied by the
// listing. Bounds are matched against the starting price: a new listing has
// no bids yet.
func (r *NotificationRepository) GetMatchingAlerts(ctx context.Context, l *listing.Listing) ([]*notification.CarAlert, error) {
	query := `
		SELECT id, user_id, make, model, min_price, max_price, min_year, max_year, is_active, created_at
		FROM car_alerts
		WHERE is_active = TRUE
		  AND make = $1
		  AND (model IS NULL OR model = $2)
		  AND (min_price IS NULL OR min_price <= $3)
		  AND (max_price IS NULL OR max_price >= $3)
		  AND (min_year IS NULL OR min_year <= $4)
		  AND (max_year IS NULL OR max_year >= $4)
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, l.Make, l.Model, l.StartingPrice, l.Year)
	if err != nil {
		return nil, fmt.Errorf("failed to query matching alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*notification.CarAlert
	for rows.Next() {
		var a notification.CarAlert
		var model sql.NullString
		var minPrice, maxPrice sql.NullFloat64
		var minYear, maxYear sql.NullInt64
		err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Make,
			&model,
			&minPrice,
			&maxPrice,
			&minYear,
			&maxYear,
			&a.IsActive,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if model.Valid {
			a.Model = &model.String
		}
		if minPrice.Valid {
			a.MinPrice = &minPrice.Float64
		}
		if maxPrice.Valid {
			a.MaxPrice = &maxPrice.Float64
		}
		if minYear.Valid {
			y := int(minYear.Int64)
			a.MinYear = &y
		}
		if maxYear.Valid {
			y := int(maxYear.Int64)
			a.MaxYear = &y
		}
		alerts = append(alerts, &a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

// HasAlertBeenAnnounced reports whether the (user, alert, listing) triple
// was already announced
func (r *NotificationRepository) HasAlertBeenAnnounced(ctx context.Context, userID, alertID, listingID uuid.UUID) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM alert_views
		WHERE user_id = $1 AND alert_id = $2 AND listing_id = $3
	`

	var count int
	if err := r.conn.GetDB().QueryRowContext(ctx, query, userID, alertID, listingID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check alert view: %w", err)
	}

	return count > 0, nil
}

// MarkAlertAnnounced records the idempotency marker for the triple
func (r *NotificationRepository) MarkAlertAnnounced(ctx context.Context, userID, alertID, listingID uuid.UUID) error {
	query := `
		INSERT INTO alert_views (id, user_id, alert_id, listing_id, viewed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query, uuid.New(), userID, alertID, listingID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark alert announced: %w", err)
	}

	return nil
}

// CreateAlertNotification writes the car_found notification and its
// idempotency marker in one transaction, so a listing is never re-announced
// to the same alert even if the fanout is retried.
func (r *NotificationRepository) CreateAlertNotification(ctx context.Context, n *notification.Notification) error {
	if n.AlertID == nil {
		return fmt.Errorf("alert notification requires an alert id")
	}

	return r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		notifQuery := `
			INSERT INTO notifications (id, user_id, type, listing_id, alert_id, message, is_read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := tx.ExecContext(ctx, notifQuery,
			n.ID,
			n.UserID,
			n.Type,
			n.ListingID,
			n.AlertID,
			n.Message,
			n.IsRead,
			n.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert alert notification: %w", err)
		}

		viewQuery := `
			INSERT INTO alert_views (id, user_id, alert_id, listing_id, viewed_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.ExecContext(ctx, viewQuery, uuid.New(), n.UserID, *n.AlertID, n.ListingID, n.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert alert view: %w", err)
		}

		return nil
	})
}

// GetFavoritedUserIDs returns the users who favorited the listing
func (r *NotificationRepository) GetFavoritedUserIDs(ctx context.Context, listingID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM favorites WHERE listing_id = $1`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var userIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		userIDs = append(userIDs, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorites: %w", err)
	}

	return userIDs, nil
}
