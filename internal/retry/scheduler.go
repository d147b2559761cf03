// Package retry computes backoff and terminal-state decisions for failed
// delivery attempts. Pure arithmetic over a fixed schedule; the sweep loop
// and executor apply the decisions.
package retry

import "time"

// Scheduler holds the backoff schedule and the retry budget. Attempts are
// zero-based: a failure at attempt n schedules delays[min(n, len-1)] unless
// n has reached MaxRetries.
type Scheduler struct {
	Delays     []time.Duration
	MaxRetries int
}

// Decision is the scheduler's verdict for one failed attempt.
type Decision struct {
	Exhausted   bool
	NextRetryAt time.Time
}

func NewScheduler(delays []time.Duration, maxRetries int) Scheduler {
	return Scheduler{Delays: delays, MaxRetries: maxRetries}
}

// Delay returns the backoff for a failure at the given attempt number,
// clamping past the end of the schedule.
func (s Scheduler) Delay(attempt int) time.Duration {
	if len(s.Delays) == 0 {
		return 0
	}
	idx := attempt
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.Delays) {
		idx = len(s.Delays) - 1
	}
	return s.Delays[idx]
}

// Decide resolves a failure at the given attempt number: schedule another
// try or declare the entry exhausted.
func (s Scheduler) Decide(attempt int, now time.Time) Decision {
	if attempt >= s.MaxRetries {
		return Decision{Exhausted: true}
	}
	return Decision{NextRetryAt: now.Add(s.Delay(attempt))}
}
