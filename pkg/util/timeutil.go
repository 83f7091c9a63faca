package util

import "time"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Clock abstracts wall-clock reads so expiry logic can be tested without sleeping.
type Clock func() time.Time
