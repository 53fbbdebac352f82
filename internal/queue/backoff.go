package queue

import "time"

// Backoff returns the delay before redelivering a stage after its attempt'th
// try failed. The schedule doubles per attempt starting at base and is capped
// at ceiling. Pure function of its inputs so retry timing stays testable.
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if ceiling > 0 && delay >= ceiling {
			return ceiling
		}
	}
	if ceiling > 0 && delay > ceiling {
		return ceiling
	}
	return delay
}
