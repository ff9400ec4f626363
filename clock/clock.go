// Package clock abstracts time so that phase transitions and attempt
// deadlines can be driven by a fake clock in tests.
package clock

import "time"

// Clock is the time source used by the engine and its scheduler.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a ticker that fires every d.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers ticks on C until stopped.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No more ticks are sent after Stop returns.
func (t *Ticker) Stop() { t.stopFunc() }
