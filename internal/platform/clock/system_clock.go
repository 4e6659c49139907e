package clock

import (
	"time"

	portclock "github.com/palm-beach-pass/pass-api/internal/ports/out/clock"
)

// SystemClock reads the wall clock in UTC. Cache entries, sessions and receipts are all stamped with it.
type SystemClock struct{}

var _ portclock.Clock = SystemClock{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }
