// Package canceltoken implements the thread-safe, one-shot cancellation
// flag shared across tasks and application code.
package canceltoken

import (
	"sync/atomic"
	"time"

	"github.com/ldi/taskpool/pkg/signalable"
)

// Canceler is the interface a Task's cancel field is held as: either its
// own embedded *Token, or an explicit one supplied by the caller — or,
// less commonly, a *Timer.
type Canceler interface {
	Cancel()
	IsCancelled() bool
	WaitHandle() *signalable.Event
}

// Token is a thread-safe, monotone false→true cancellation flag. The zero
// value is a usable, uncancelled token.
type Token struct {
	cancelled atomic.Bool
	signal    atomic.Pointer[signalable.Event]
}

// New returns a fresh, uncancelled Token.
func New() *Token {
	return &Token{}
}

// Cancel idempotently flips the token to cancelled and, if a waiter has
// already materialised the wait handle, signals it.
func (t *Token) Cancel() {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	if sig := t.signal.Load(); sig != nil {
		sig.Set()
	}
}

// IsCancelled reports whether Cancel has been called.
func (t *Token) IsCancelled() bool {
	return t.cancelled.Load()
}

// WaitHandle returns the Signalable view of this token, materialising it on
// first call. Two goroutines racing to materialise agree on a single
// instance; if the token was already cancelled, the handle is pre-set
// before being returned, no matter which goroutine created it.
func (t *Token) WaitHandle() *signalable.Event {
	if sig := t.signal.Load(); sig != nil {
		return sig
	}
	candidate := signalable.New()
	var actual *signalable.Event
	if t.signal.CompareAndSwap(nil, candidate) {
		actual = candidate
	} else {
		actual = t.signal.Load()
	}
	// Re-check after publication: whichever of Cancel/WaitHandle observes
	// the other's write last is responsible for setting the handle.
	if t.cancelled.Load() {
		actual.Set()
	}
	return actual
}

// Timer is a cancel token backed by a platform one-shot timer: Cancel
// re-arms the timer to fire immediately rather than flipping a bool.
type Timer struct {
	sig   *signalable.Event
	timer *time.Timer
}

// NewTimer returns a Token-compatible Canceler that becomes cancelled on
// its own after d elapses, or immediately if Cancel is called first.
func NewTimer(d time.Duration) *Timer {
	sig := signalable.New()
	tm := &Timer{sig: sig}
	tm.timer = time.AfterFunc(d, sig.Set)
	return tm
}

// Cancel re-arms the underlying timer to fire now.
func (t *Timer) Cancel() {
	t.timer.Reset(0)
}

// IsCancelled reports whether the timer has fired, by expiry or Cancel.
func (t *Timer) IsCancelled() bool {
	return t.sig.IsSet()
}

// WaitHandle returns the timer's Signalable view directly; there is
// nothing to materialise lazily since the handle always exists.
func (t *Timer) WaitHandle() *signalable.Event {
	return t.sig
}
