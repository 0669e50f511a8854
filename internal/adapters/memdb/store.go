package memdb

import (
	"context"
	"sync"
	"time"

	"autolot-auction-engine/internal/domain/bid"
	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/domain/notification"
	"autolot-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

type alertViewKey struct {
	userID    uuid.UUID
	alertID   uuid.UUID
	listingID uuid.UUID
}

// Store is an in-memory implementation of the repository ports with the
// same atomicity guarantees as the postgres adapter: every mutating call
// runs under one lock, so the compare-and-set, purge-and-restart and
// end-with-winner semantics hold under concurrent callers. Used by tests
// and local development.
type Store struct {
	mu            sync.Mutex
	listings      map[uuid.UUID]*listing.Listing
	bids          map[uuid.UUID][]*bid.Bid
	users         map[uuid.UUID]*shared.User
	wins          map[uuid.UUID]*listing.Winner
	notifications []*notification.Notification
	alerts        []*notification.CarAlert
	alertViews    map[alertViewKey]bool
	favorites     map[uuid.UUID][]uuid.UUID
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		listings:   make(map[uuid.UUID]*listing.Listing),
		bids:       make(map[uuid.UUID][]*bid.Bid),
		users:      make(map[uuid.UUID]*shared.User),
		wins:       make(map[uuid.UUID]*listing.Winner),
		alertViews: make(map[alertViewKey]bool),
		favorites:  make(map[uuid.UUID][]uuid.UUID),
	}
}

// PutListing stores a listing (replacing any previous version)
func (s *Store) PutListing(l *listing.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.listings[l.ID] = &cp
}

// PutUser stores a user
func (s *Store) PutUser(u *shared.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

// PutAlert stores a car alert
func (s *Store) PutAlert(a *notification.CarAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.alerts = append(s.alerts, &cp)
}

// PutFavorite records that a user favorited a listing
func (s *Store) PutFavorite(userID, listingID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites[listingID] = append(s.favorites[listingID], userID)
}

// Notifications returns a snapshot of all created notifications
func (s *Store) Notifications() []*notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*notification.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		cp := *n
		out = append(out, &cp)
	}
	return out
}

// WinnerFor returns the winner record for a listing, if any
func (s *Store) WinnerFor(listingID uuid.UUID) *listing.Winner {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wins[listingID]; ok {
		cp := *w
		return &cp
	}
	return nil
}

// GetByID retrieves a listing by ID
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, shared.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

// GetActivePastEndTime retrieves active listings whose end time has elapsed
func (s *Store) GetActivePastEndTime(ctx context.Context, now time.Time) ([]*listing.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*listing.Listing
	for _, l := range s.listings {
		if l.IsActive() && l.HasEnded(now) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CompareAndSetCurrentBid appends the bid and advances current_bid under
// the store lock, failing with ErrBidConflict when the expected value is
// stale.
func (s *Store) CompareAndSetCurrentBid(ctx context.Context, listingID uuid.UUID, expected *float64, newBid *bid.Bid, newEndTime *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[listingID]
	if !ok {
		return shared.ErrListingNotFound
	}
	if !l.CanBid(newBid.CreatedAt) {
		return shared.ErrAuctionClosed
	}
	if !floatPtrEqual(l.CurrentBid, expected) {
		return shared.ErrBidConflict
	}

	cp := *newBid
	s.bids[listingID] = append(s.bids[listingID], &cp)
	amount := newBid.Amount
	l.CurrentBid = &amount
	if newEndTime != nil {
		end := *newEndTime
		l.AuctionEndTime = &end
	}
	return nil
}

// PurgeBidsAndRestart clears bids and resets the auction window atomically
func (s *Store) PurgeBidsAndRestart(ctx context.Context, listingID uuid.UUID, lotNumber string, startTime, endTime time.Time) (*listing.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[listingID]
	if !ok {
		return nil, shared.ErrListingNotFound
	}

	delete(s.bids, listingID)
	l.CurrentBid = nil
	l.LotNumber = lotNumber
	start, end := startTime, endTime
	l.AuctionStartTime = &start
	l.AuctionEndTime = &end
	l.Status = listing.StatusActive

	cp := *l
	return &cp, nil
}

// EndWithWinner ends the listing and records the winner, idempotently
func (s *Store) EndWithWinner(ctx context.Context, listingID, winnerID uuid.UUID, amount float64) (*listing.Winner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[listingID]
	if !ok {
		return nil, shared.ErrListingNotFound
	}
	if _, exists := s.wins[listingID]; exists {
		return nil, shared.ErrAlreadyEnded
	}

	l.Status = listing.StatusEnded
	w := &listing.Winner{
		ID:        uuid.New(),
		ListingID: listingID,
		UserID:    winnerID,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	s.wins[listingID] = w

	cp := *w
	return &cp, nil
}

// GetByListingID retrieves all bids for a listing, highest amount first
func (s *Store) GetByListingID(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedBids(listingID), nil
}

// GetHighestBid retrieves the highest bid for a listing
func (s *Store) GetHighestBid(ctx context.Context, listingID uuid.UUID) (*bid.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bids := s.sortedBids(listingID)
	if len(bids) == 0 {
		return nil, shared.ErrNoBidsFound
	}
	return bids[0], nil
}

// GetDisplacedBidder returns the highest bidder other than excludeBidder
func (s *Store) GetDisplacedBidder(ctx context.Context, listingID, excludeBidder uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.sortedBids(listingID) {
		if b.BidderID != excludeBidder {
			return b.BidderID, nil
		}
	}
	return uuid.Nil, shared.ErrNoBidsFound
}

// CreateNotification persists a notification record
func (s *Store) CreateNotification(ctx context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

// GetMatchingAlerts returns the active alerts satisfied by the listing
func (s *Store) GetMatchingAlerts(ctx context.Context, l *listing.Listing) ([]*notification.CarAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*notification.CarAlert
	for _, a := range s.alerts {
		if a.Matches(l) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// HasAlertBeenAnnounced reports whether the triple was already announced
func (s *Store) HasAlertBeenAnnounced(ctx context.Context, userID, alertID, listingID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alertViews[alertViewKey{userID, alertID, listingID}], nil
}

// MarkAlertAnnounced records the idempotency marker for the triple
func (s *Store) MarkAlertAnnounced(ctx context.Context, userID, alertID, listingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertViews[alertViewKey{userID, alertID, listingID}] = true
	return nil
}

// CreateAlertNotification writes the notification and its idempotency
// marker under one lock acquisition
func (s *Store) CreateAlertNotification(ctx context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications = append(s.notifications, &cp)
	s.alertViews[alertViewKey{n.UserID, *n.AlertID, n.ListingID}] = true
	return nil
}

// GetFavoritedUserIDs returns the users who favorited the listing
func (s *Store) GetFavoritedUserIDs(ctx context.Context, listingID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, len(s.favorites[listingID]))
	copy(out, s.favorites[listingID])
	return out, nil
}

// UserStore is the user-repository view of a Store. A separate type only
// because GetByID would otherwise collide with the listing lookup.
type UserStore struct {
	s *Store
}

// Users returns the store's UserRepository view
func (s *Store) Users() *UserStore {
	return &UserStore{s: s}
}

// GetByID retrieves a user by ID
func (u *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	usr, ok := u.s.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	cp := *usr
	return &cp, nil
}

// sortedBids returns copies of the listing's bids, highest amount first.
// Caller must hold s.mu.
func (s *Store) sortedBids(listingID uuid.UUID) []*bid.Bid {
	src := s.bids[listingID]
	out := make([]*bid.Bid, 0, len(src))
	for _, b := range src {
		cp := *b
		out = append(out, &cp)
	}
	// Insertion sort: bid lists are short and mostly ordered already.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && higher(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func higher(a, b *bid.Bid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
