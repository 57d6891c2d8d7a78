package throttle

import (
	"sync"
	"time"
)

const (
	DefaultLimit  = 4
	DefaultWindow = time.Hour
)

// Decision is the outcome of TryAccept. Wait is only set on rejection.
type Decision struct {
	Accepted bool
	Wait     time.Duration
}

// WaitMinutes returns the estimated wait rounded down to whole minutes.
func (d Decision) WaitMinutes() int {
	if d.Accepted || d.Wait <= 0 {
		return 0
	}
	return int(d.Wait / time.Minute)
}

// Throttle limits accepted requests per user within a rolling window.
// State lives in memory only and starts empty on every process start.
type Throttle struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	clicks map[int64][]time.Time
}

// New creates a throttle; non-positive arguments fall back to the defaults.
func New(limit int, window time.Duration) *Throttle {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Throttle{
		limit:  limit,
		window: window,
		clicks: make(map[int64][]time.Time),
	}
}

// Limit returns the configured number of requests per window.
func (t *Throttle) Limit() int {
	return t.limit
}

// TryAccept records a request from userID at now if the user is below the limit.
func (t *Throttle) TryAccept(userID int64, now time.Time) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.prune(t.clicks[userID], now)

	if len(recent) >= t.limit {
		t.clicks[userID] = recent
		return Decision{
			Accepted: false,
			Wait:     t.window - now.Sub(oldest(recent)),
		}
	}

	t.clicks[userID] = append(recent, now)
	return Decision{Accepted: true}
}

// Sweep drops users with no requests left in the window and returns how many were evicted.
func (t *Throttle) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for userID, stamps := range t.clicks {
		recent := t.prune(stamps, now)
		if len(recent) == 0 {
			delete(t.clicks, userID)
			evicted++
			continue
		}
		t.clicks[userID] = recent
	}
	return evicted
}

// Users returns the number of users currently tracked.
func (t *Throttle) Users() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clicks)
}

// prune keeps timestamps younger than the window.
func (t *Throttle) prune(stamps []time.Time, now time.Time) []time.Time {
	recent := stamps[:0]
	for _, ts := range stamps {
		if now.Sub(ts) < t.window {
			recent = append(recent, ts)
		}
	}
	return recent
}

func oldest(stamps []time.Time) time.Time {
	first := stamps[0]
	for _, ts := range stamps[1:] {
		if ts.Before(first) {
			first = ts
		}
	}
	return first
}
