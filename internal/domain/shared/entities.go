package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// User represents an account known to the engine. Only the fields the
// bidding path needs are carried; the full profile lives with the
// authentication service.
type User struct {
	ID       uuid.UUID `json:"id"`
	Handle   string    `json:"handle"`
	IsActive bool      `json:"is_active"`
}

// AnonymousHandle returns a masked handle safe to broadcast to other
// auction participants.
func (u *User) AnonymousHandle() string {
	if len(u.Handle) < 3 {
		return fmt.Sprintf("bidder-%s", u.ID.String()[:4])
	}
	return u.Handle[:2] + "***"
}
