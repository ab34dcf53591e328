// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code
// injects Real(); tests inject Fake() and advance time explicitly.
//
// Any alcheme code that would call time.Now, time.After, or
// time.NewTicker takes a Clock instead. Timestamps on documents,
// session-token expiry checks, and transaction retry backoff all flow
// through this interface so tests are deterministic.
package clock

import "time"

// Clock provides the time operations alcheme needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker delivering ticks at the given
	// interval. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker wraps a periodic timer. Read ticks from C; call Stop to
// release resources. Stop does not close C.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No ticks are delivered after Stop returns.
func (t *Ticker) Stop() { t.stopFunc() }
