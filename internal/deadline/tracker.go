package deadline

import (
	"time"

	"sjsage522/bidsniper/internal/model"
)

// DefaultReloadThreshold is how many consecutive lock failures are tolerated
// before the page should be reloaded
const DefaultReloadThreshold = 10

// Tracker turns a snapshot's remaining time into an absolute deadline.
// It is owned by a single monitor loop and is not safe for concurrent use.
type Tracker struct {
	now       func() time.Time
	threshold int

	deadline time.Time
	locked   bool
	failures int
}

// NewTracker creates a tracker reading the clock through now
func NewTracker(now func() time.Time, threshold int) *Tracker {
	if now == nil {
		now = time.Now
	}
	if threshold <= 0 {
		threshold = DefaultReloadThreshold
	}
	return &Tracker{now: now, threshold: threshold}
}

// usable reports whether a remaining-time reading can anchor the deadline.
// A zero countdown is what the page shows before its timer starts, so it
// never locks.
func usable(s model.Snapshot) (time.Duration, bool) {
	if s.Remaining == nil || *s.Remaining <= 0 {
		return 0, false
	}
	return *s.Remaining, true
}

// Lock sets the deadline from the first usable snapshot and returns true.
// Once locked, further calls return true without moving the deadline.
// A snapshot without a usable remaining time counts as a failure.
func (t *Tracker) Lock(s model.Snapshot) bool {
	if t.locked {
		return true
	}
	remaining, ok := usable(s)
	if !ok {
		t.failures++
		return false
	}
	t.deadline = t.now().Add(remaining)
	t.locked = true
	t.failures = 0
	return true
}

// Resync overwrites the deadline with a fresh estimate. Snapshots without a
// usable remaining time are ignored and the current deadline is kept.
func (t *Tracker) Resync(s model.Snapshot) (time.Duration, bool) {
	remaining, ok := usable(s)
	if !ok || !t.locked {
		return 0, false
	}
	next := t.now().Add(remaining)
	drift := next.Sub(t.deadline)
	t.deadline = next
	return drift, true
}

// ShouldReload reports whether lock failures passed the threshold, and
// resets the failure count when they did
func (t *Tracker) ShouldReload() bool {
	if t.failures > t.threshold {
		t.failures = 0
		return true
	}
	return false
}

// Failures returns the current count of consecutive lock failures
func (t *Tracker) Failures() int {
	return t.failures
}

// Locked reports whether a deadline is set
func (t *Tracker) Locked() bool {
	return t.locked
}

// Deadline returns the locked deadline
func (t *Tracker) Deadline() (time.Time, bool) {
	return t.deadline, t.locked
}

// Remaining returns the time left until the deadline; negative once it has passed
func (t *Tracker) Remaining() time.Duration {
	return t.deadline.Sub(t.now())
}
