package worker

import (
	"math/rand"
	"sync"
	"time"
)

// retrySchedule is the delay before retry n (1-based), capped at the last tier.
var retrySchedule = []time.Duration{
	30 * time.Second,
	120 * time.Second,
	600 * time.Second,
	3600 * time.Second,
	14400 * time.Second,
}

const (
	maxPollBackoff = 30 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

var (
	jitterMu     sync.Mutex
	jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// BackoffDelay returns how long a job waits before its retry-th attempt.
// Provider throttling moves the job one tier further out.
func BackoffDelay(retry int, rateLimited bool) time.Duration {
	idx := retry - 1
	if idx < 0 {
		idx = 0
	}
	if rateLimited {
		idx++
	}
	if idx >= len(retrySchedule) {
		idx = len(retrySchedule) - 1
	}
	return retrySchedule[idx]
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitterMu.Lock()
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	jitterMu.Unlock()
	return d + jitter
}
