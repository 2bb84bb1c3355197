// Package task implements the lifecycle of one unit of work submitted to a
// pool: its terminal-state machine, its failure capture, and its
// completion signal.
package task

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ldi/taskpool/pkg/canceltoken"
	"github.com/ldi/taskpool/pkg/deadline"
	"github.com/ldi/taskpool/pkg/signalable"
)

// ErrAbort is a sentinel an Action returns to signal voluntary,
// cooperative completion rather than failure. A task whose action returns
// ErrAbort ends Completed, not Failed.
var ErrAbort = errors.New("task: aborted")

// ErrTaskFailed is raised by Wait(throwOnError=true) for a task that ended
// Failed; it carries the captured failure text but not the original
// concrete error, which cannot be reconstructed across the pool boundary.
type ErrTaskFailed struct {
	Message string
}

func (e *ErrTaskFailed) Error() string {
	return fmt.Sprintf("task failed: %s", e.Message)
}

// Action is the callable a Task wraps. It should poll its cancel token
// cooperatively; the pool never forces a running action to stop.
type Action func() error

// State is the task's terminal-state machine. It is monotone: it only ever
// transitions out of Pending, and only once.
type State int32

const (
	Pending State = iota
	Completed
	Failed
	Discarded
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Headless marks the process as having no UI thread, so Wait never
// delegates to a UI dispatcher's modal wait even if one happens to be
// installed (e.g. a CLI batch-submit run sharing a binary with the
// dashboard command).
var Headless atomic.Bool

// uiHook is how a UiDispatcher opts Wait into modal-wait delegation
// without task importing uidispatch (see the Design Notes on abstracting
// platform hooks behind a small interface).
type uiHook interface {
	IsUIThread() bool
	ModalWait(handles []*signalable.Event, d deadline.Deadline) (int, error)
}

var hook atomic.Pointer[uiHook]

// RegisterUIHook is called by uidispatch.Install so that Wait can route
// UI-thread callers through the dispatcher's modal wait. Passing nil
// uninstalls the hook.
func RegisterUIHook(h uiHook) {
	if h == nil {
		hook.Store(nil)
		return
	}
	hook.Store(&h)
}

// Task is one submitted unit of work and its observable result.
type Task struct {
	mu       sync.Mutex
	action   Action
	ownToken *canceltoken.Token
	cancel   canceltoken.Canceler // effective: explicit-or-own

	state   atomic.Int32
	failure atomic.Pointer[string]

	completeSignal atomic.Pointer[signalable.Event]

	next *Task // intrusive queue link; not part of the public contract
}

// New creates a Pending task wrapping action. If cancel is nil, the task
// uses its own embedded cancel token.
func New(action Action, cancel canceltoken.Canceler) *Task {
	t := &Task{action: action}
	if cancel != nil {
		t.cancel = cancel
	} else {
		t.ownToken = canceltoken.New()
		t.cancel = t.ownToken
	}
	return t
}

// State returns a snapshot of the task's terminal-state machine.
func (t *Task) State() State {
	return State(t.state.Load())
}

// CancelToken returns the effective cancel token: the one explicitly
// supplied at submission, or the task's own embedded token.
func (t *Task) CancelToken() canceltoken.Canceler {
	return t.cancel
}

// Failure returns the captured failure text and true iff State() == Failed.
func (t *Task) Failure() (string, bool) {
	p := t.failure.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// CompleteHandle returns the Signalable that fires when the task leaves
// Pending, materialising it on first call using the same race-free
// idiom as canceltoken.Token.WaitHandle. Pre-set if the task already
// finished.
func (t *Task) CompleteHandle() *signalable.Event {
	if sig := t.completeSignal.Load(); sig != nil {
		return sig
	}
	candidate := signalable.New()
	var actual *signalable.Event
	if t.completeSignal.CompareAndSwap(nil, candidate) {
		actual = candidate
	} else {
		actual = t.completeSignal.Load()
	}
	if t.State() != Pending {
		actual.Set()
	}
	return actual
}

// Wait blocks until the task leaves Pending or d elapses, and returns
// whether it finished (as opposed to timing out). If the calling goroutine
// is the installed UI thread and the process is not headless, the wait is
// delegated to the UI dispatcher's modal wait so paint/timer messages keep
// flowing. If throwOnError and the task ended Failed, Wait returns an
// *ErrTaskFailed carrying the captured message.
func (t *Task) Wait(throwOnError bool, d deadline.Deadline) (bool, error) {
	if t.State() != Pending {
		return t.finish(throwOnError)
	}

	h := t.CompleteHandle()

	if p := hook.Load(); p != nil && !Headless.Load() {
		ui := *p
		if ui.IsUIThread() {
			_, err := ui.ModalWait([]*signalable.Event{h}, d)
			if err != nil {
				return false, err
			}
			if t.State() == Pending {
				return false, nil
			}
			return t.finish(throwOnError)
		}
	}

	if h.Wait(d) == signalable.Timeout {
		return false, nil
	}
	return t.finish(throwOnError)
}

func (t *Task) finish(throwOnError bool) (bool, error) {
	if throwOnError {
		if msg, failed := t.Failure(); failed {
			return true, &ErrTaskFailed{Message: msg}
		}
	}
	return true, nil
}

// Execute runs the task's action on a worker goroutine. Precondition:
// State() == Pending. It never lets the action's failure propagate out of
// the worker; everything is captured into the task's terminal state.
func (t *Task) Execute() {
	t.mu.Lock()
	action := t.action
	t.action = nil
	t.mu.Unlock()

	if action == nil {
		return
	}

	err := runCaptured(action)

	switch {
	case err == nil, errors.Is(err, ErrAbort):
		t.publish(Completed, "")
	default:
		t.publish(Failed, err.Error())
	}
}

// runCaptured invokes action, converting a panic into a failure so a
// misbehaving action can never take down the worker goroutine.
func runCaptured(action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return action()
}

// Discard marks the task Discarded without ever running its action.
// Precondition: State() == Pending.
func (t *Task) Discard() {
	t.mu.Lock()
	t.action = nil
	t.mu.Unlock()
	t.publish(Discarded, "")
}

func (t *Task) publish(s State, failureMsg string) {
	if s == Failed {
		msg := failureMsg
		t.failure.Store(&msg)
	}
	t.state.Store(int32(s))
	if sig := t.completeSignal.Load(); sig != nil {
		sig.Set()
	}
}
