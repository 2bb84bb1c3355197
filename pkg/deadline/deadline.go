// Package deadline provides an absolute, monotonic wait deadline.
//
// It stands in for the "assumed present" timeout-time helper in the
// original design: a monotonic absolute time rather than a duration, so
// that a wait retried after a spurious wake-up does not silently extend.
package deadline

import "time"

// Deadline is an absolute point in monotonic time, or the distinguished
// "never" value returned by Infinite.
type Deadline struct {
	at      time.Time
	forever bool
}

// Infinite returns a Deadline that never elapses.
func Infinite() Deadline {
	return Deadline{forever: true}
}

// FromMillis returns a Deadline ms milliseconds from now. A non-positive ms
// returns a Deadline that has already elapsed.
func FromMillis(ms int64) Deadline {
	if ms <= 0 {
		return Deadline{at: time.Now()}
	}
	return Deadline{at: time.Now().Add(time.Duration(ms) * time.Millisecond)}
}

// FromDuration returns a Deadline d from now.
func FromDuration(d time.Duration) Deadline {
	if d <= 0 {
		return Deadline{at: time.Now()}
	}
	return Deadline{at: time.Now().Add(d)}
}

// IsElapsed reports whether the deadline has already passed. An infinite
// deadline is never elapsed.
func (d Deadline) IsElapsed() bool {
	if d.forever {
		return false
	}
	return !time.Now().Before(d.at)
}

// Remaining returns the time left until the deadline, or the largest
// representable duration for an infinite deadline. Never negative.
func (d Deadline) Remaining() time.Duration {
	if d.forever {
		return time.Duration(1<<63 - 1)
	}
	r := time.Until(d.at)
	if r < 0 {
		return 0
	}
	return r
}

// IsInfinite reports whether this Deadline never elapses.
func (d Deadline) IsInfinite() bool {
	return d.forever
}
