package listing

import (
	"fmt"
	"math/rand"
)

// NewLotNumber generates a 6-digit display code for a lot. Restarted
// auctions get a fresh code so the lot reappears as a new entry.
func NewLotNumber() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
}
