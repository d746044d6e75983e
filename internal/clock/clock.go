// Package clock provides an injectable time source.
package clock

import "time"

// Clock returns the current time. Components take a Clock instead of
// calling time.Now directly so tests can control time.
type Clock func() time.Time

// System is the wall clock.
var System Clock = time.Now

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}
