package shared

import (
	"time"

	"github.com/google/uuid"
)

// DispositionOutcome is the Lifecycle Scheduler's decision for one expired
// listing.
type DispositionOutcome string

const (
	OutcomeRestarted DispositionOutcome = "restarted"
	OutcomeEnded     DispositionOutcome = "ended"
)

// DispositionResult describes what happened to one expired listing during a
// sweep pass.
type DispositionResult struct {
	ListingID   uuid.UUID
	Outcome     DispositionOutcome
	WinnerID    *uuid.UUID
	FinalAmount *float64
	NewEndTime  *time.Time
}
