// Package signalable implements the "Signalable" wait primitive the rest of
// this module assumes is present on the host platform: a manual-reset
// event with Set/Reset and a bounded Wait, plus a WaitAny that blocks on
// several events at once.
package signalable

import (
	"sync"
	"time"

	"github.com/ldi/taskpool/pkg/deadline"
)

// Result is the outcome of a bounded wait.
type Result int

const (
	// Signaled means the event (or, for WaitAny, one of the events) was set
	// before the deadline elapsed.
	Signaled Result = iota
	// Timeout means the deadline elapsed before any watched event fired.
	Timeout
)

func (r Result) String() string {
	if r == Signaled {
		return "signaled"
	}
	return "timeout"
}

// Event is a manual-reset Signalable: Set latches it open until Reset
// closes it again. Zero value is a usable, unset event.
type Event struct {
	mu   sync.Mutex
	set  bool
	ch   chan struct{}
	once sync.Once
}

// New returns a fresh, unset Event.
func New() *Event {
	return &Event{ch: make(chan struct{})}
}

func (e *Event) init() {
	e.once.Do(func() {
		if e.ch == nil {
			e.ch = make(chan struct{})
		}
	})
}

// Set latches the event open, waking every current and future waiter until
// Reset is called. Idempotent.
func (e *Event) Set() {
	e.init()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		return
	}
	e.set = true
	close(e.ch)
}

// Reset closes the event again. A no-op if already unset.
func (e *Event) Reset() {
	e.init()
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		return
	}
	e.set = false
	e.ch = make(chan struct{})
}

// IsSet reports whether the event is currently signaled.
func (e *Event) IsSet() bool {
	e.init()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// chanSnapshot returns the channel that is closed by the Set in effect at
// the time of the call; used so Wait/WaitAny don't hold the lock while
// blocking.
func (e *Event) chanSnapshot() chan struct{} {
	e.init()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch
}

// Wait blocks until the event is set or d elapses.
func (e *Event) Wait(d deadline.Deadline) Result {
	if e.IsSet() {
		return Signaled
	}
	if d.IsElapsed() {
		return Timeout
	}
	ch := e.chanSnapshot()
	if d.IsInfinite() {
		<-ch
		return Signaled
	}
	t := time.NewTimer(d.Remaining())
	defer t.Stop()
	select {
	case <-ch:
		return Signaled
	case <-t.C:
		return Timeout
	}
}

// WaitAny blocks until one of handles is set or d elapses, returning the
// index of the handle that fired or Timeout with index -1. If several are
// already set on entry, the lowest index wins; if several fire during the
// wait, whichever is observed first wins.
func WaitAny(handles []*Event, d deadline.Deadline) (int, Result) {
	for i, h := range handles {
		if h.IsSet() {
			return i, Signaled
		}
	}
	if d.IsElapsed() {
		return -1, Timeout
	}

	cases := make([]chan struct{}, len(handles))
	for i, h := range handles {
		cases[i] = h.chanSnapshot()
	}

	// sync.Cond-free fan-in: one goroutine per handle signals a shared done
	// channel with its index; first writer wins, deadline timer races it.
	type fired struct{ idx int }
	done := make(chan fired, len(handles))
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i, ch := range cases {
		wg.Add(1)
		go func(i int, ch chan struct{}) {
			defer wg.Done()
			select {
			case <-ch:
				select {
				case done <- fired{i}:
				default:
				}
			case <-stop:
			}
		}(i, ch)
	}

	var result int = -1
	var res Result = Timeout
	if d.IsInfinite() {
		f := <-done
		result, res = f.idx, Signaled
	} else {
		t := time.NewTimer(d.Remaining())
		defer t.Stop()
		select {
		case f := <-done:
			result, res = f.idx, Signaled
		case <-t.C:
			result, res = -1, Timeout
		}
	}
	close(stop)
	wg.Wait()
	return result, res
}
