package connection

import "time"

// ReconnectDelay returns the wait before retry number attempt (0-based):
// min(base * 2^attempt, max) + jitter.
func ReconnectDelay(attempt int, base, max, jitter time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d + jitter
}
