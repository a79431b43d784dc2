package services

import "time"

// Clock returns the current time. Services store UTC timestamps.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}
