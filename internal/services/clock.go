package services

import "time"

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// hours converts a duration to fractional hours at millisecond precision
func hours(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 3_600_000
}
