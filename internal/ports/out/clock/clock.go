package clock

import "time"

// Clock stamps cache entries, sessions and purchase receipts.
// Tests drive it with adapters/memory/clock.ManualClock.
type Clock interface {
	Now() time.Time
}
