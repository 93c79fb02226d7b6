package delivery

import (
	"time"

	"github.com/xraph/beacon/queue"
)

// Retrier classifies attempts and schedules retries from a backoff table.
// Classification is queue.OutcomeFor, the rule the callback side applies to
// numeric statuses, so a report derived from the attempt always carries the
// outcome the engine acted on.
type Retrier struct {
	schedule []time.Duration
	now      func() time.Time
}

// NewRetrier creates a retrier with the given backoff schedule. An empty
// schedule retries after one minute.
func NewRetrier(schedule []time.Duration) *Retrier {
	if len(schedule) == 0 {
		schedule = []time.Duration{time.Minute}
	}
	return &Retrier{schedule: schedule, now: time.Now}
}

// Outcome classifies the latest attempt of d, whose AttemptCount already
// includes it.
func (r *Retrier) Outcome(res Result, d *Delivery) queue.Outcome {
	retried, budget := retryCounters(d)
	return queue.OutcomeFor(res.StatusCode, retried, budget)
}

// NextAttempt returns when the attempt after the given one is due. Attempts
// beyond the schedule reuse its last step.
func (r *Retrier) NextAttempt(attempt int) time.Time {
	idx := min(max(attempt-1, 0), len(r.schedule)-1)
	return r.now().UTC().Add(r.schedule[idx])
}

// retryCounters converts attempt counters into the retried/maxRetries pair
// carried by outcome reports.
func retryCounters(d *Delivery) (retried, maxRetries int) {
	return max(d.AttemptCount-1, 0), max(d.MaxAttempts-1, 0)
}
