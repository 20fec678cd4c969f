// Package system provides the wall clock used by the cache and limiter.
package system

import "time"

// Clock implements search.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since reports the elapsed time from t using the same clock.
func (c Clock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
