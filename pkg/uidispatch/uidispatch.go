// Package uidispatch installs the goroutine that owns the UI as the one
// true "UI thread" and lets any other goroutine marshal a call onto it,
// mirroring a native UiDispatcher built on a platform message loop. Since
// Go has no thread-affine UI toolkit, the "message loop" here is whatever
// already pumps messages for the caller: a Bubble Tea program via
// tea.Program.Send, or a bare channel-based MessagePump for non-TUI users.
package uidispatch

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ldi/taskpool/pkg/canceltoken"
	"github.com/ldi/taskpool/pkg/deadline"
	"github.com/ldi/taskpool/pkg/signalable"
	"github.com/ldi/taskpool/pkg/task"
)

// ErrNotInstalled is returned by Perform/ModalWait when no Dispatcher has
// been installed for the process.
var ErrNotInstalled = errors.New("uidispatch: not installed")

// MessagePump is the abstraction a Dispatcher uses to keep UI messages
// flowing while the UI thread is blocked in a modal wait. ChanPump is the
// channel-backed implementation in this package; a hand-rolled event loop
// can implement it directly.
type MessagePump interface {
	// Pump processes at most one pending UI message without blocking, and
	// reports whether it found one to process.
	Pump() bool
}

// UiCall is one call marshaled onto the UI thread.
type UiCall struct {
	action func()
	cancel canceltoken.Canceler

	// claimed is set exactly once, by whichever of Perform's cancellation
	// race or DrainPending's normal sweep gets to this call first. It only
	// says the call has been spoken for, not that action ran: a claim made
	// by the cancellation-retraction path never calls action.
	claimed atomicBool
	// ran is set only by the path that actually invokes action. Perform's
	// return value reflects this, not claimed, so a retracted call reports
	// false even though it was "claimed" in the bookkeeping sense.
	ran  atomicBool
	done *signalable.Event
}

type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (b *atomicBool) trySet() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.v {
		return false
	}
	b.v = true
	return true
}

func (b *atomicBool) set(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.v = v
}

func (b *atomicBool) get() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}

// Dispatcher marshals calls onto one designated UI goroutine and lets that
// goroutine modal-wait on other work without starving its own message
// pump.
type Dispatcher struct {
	uiGoroutineID string

	mu    sync.Mutex
	queue []*UiCall

	pump  MessagePump
	post  func() // wakes the UI thread's loop to drain queued calls

	waitingDepth int
}

var installed atomic.Pointer[Dispatcher]

// Install designates the calling goroutine as the UI thread and records
// pump (how pending UI messages are processed during ModalWait) and post
// (how Perform wakes the UI loop after queueing a call). It must be called from the goroutine that will own
// the UI loop. Installing registers the dispatcher as task's UI hook so
// Task.Wait on the UI thread delegates to ModalWait automatically.
func Install(pump MessagePump, post func()) *Dispatcher {
	d := &Dispatcher{
		uiGoroutineID: currentGoroutineID(),
		pump:          pump,
		post:          post,
	}
	installed.Store(d)
	task.RegisterUIHook(d)
	return d
}

// Uninstall clears the process-wide dispatcher. Mainly for tests.
func Uninstall() {
	installed.Store(nil)
	task.RegisterUIHook(nil)
}

// Current returns the installed Dispatcher, or nil.
func Current() *Dispatcher {
	return installed.Load()
}

// IsUIThread reports whether the calling goroutine is the one that called
// Install.
func (d *Dispatcher) IsUIThread() bool {
	return currentGoroutineID() == d.uiGoroutineID
}

// currentGoroutineID parses the running goroutine's id out of a runtime
// stack trace. Go deliberately exposes no public goroutine-identity API;
// this is the documented, if inelegant, escape hatch for the rare case
// (like this one) where a component legitimately needs to know "is this
// the same goroutine that called X".
func currentGoroutineID() string {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	// Stack trace begins "goroutine <id> [state]:"
	fields := bytes.Fields(buf)
	if len(fields) < 2 {
		return ""
	}
	if _, err := strconv.ParseUint(string(fields[1]), 10, 64); err != nil {
		return ""
	}
	return string(fields[1])
}

// Perform runs action on the UI thread and blocks the caller until it has
// run (or been retracted because cancel fired before it started). If the
// calling goroutine already is the UI thread, action runs inline,
// synchronously, with no queueing. Returns false if the call was retracted
// instead of run.
func (d *Dispatcher) Perform(action func(), cancel canceltoken.Canceler) (bool, error) {
	if d == nil {
		return false, ErrNotInstalled
	}
	if d.IsUIThread() {
		action()
		return true, nil
	}

	call := &UiCall{action: action, cancel: cancel, done: signalable.New()}

	d.mu.Lock()
	d.queue = append(d.queue, call)
	d.mu.Unlock()
	if d.post != nil {
		d.post()
	}

	var cancelHandle *signalable.Event
	waitSet := []*signalable.Event{call.done}
	if cancel != nil {
		cancelHandle = cancel.WaitHandle()
		waitSet = append(waitSet, cancelHandle)
	}

	idx, _ := signalable.WaitAny(waitSet, deadline.Infinite())
	if idx == 1 { // cancelled before DrainPending claimed it (or while it's running; claimed flag decides)
		if call.claimed.trySet() {
			// We won the race to claim it as retracted: DrainPending will
			// see it already claimed and skip it, so action never runs.
			return false, nil
		}
		// Lost the race: DrainPending already claimed it and is running
		// it, or has finished. Wait for the real completion instead.
		call.done.Wait(deadline.Infinite())
	}
	return call.ran.get(), nil
}

// DrainPending runs every UiCall queued since the last DrainPending call
// that has not been retracted by a cancellation race. It must be called
// from the UI thread: ModalWait calls it on every poll iteration, and a UI
// loop that is not inside ModalWait calls it from its own loop body.
// WaitCmd does not call it.
func (d *Dispatcher) DrainPending() {
	d.mu.Lock()
	pending := d.queue
	d.queue = nil
	d.mu.Unlock()

	for _, call := range pending {
		if call.cancel != nil && call.cancel.IsCancelled() {
			if !call.claimed.trySet() {
				continue // retracted by Perform's own race already
			}
			call.done.Set()
			continue
		}
		if !call.claimed.trySet() {
			continue
		}
		call.action()
		call.ran.set(true)
		call.done.Set()
	}
}

// ModalWait blocks the UI thread on handles while still draining any
// MessagePump-reported UI messages and any queued Perform calls, so paint
// and timer traffic never stalls just because the UI thread is "busy"
// waiting. Returns the index of the handle that fired, or -1 on timeout.
func (d *Dispatcher) ModalWait(handles []*signalable.Event, dl deadline.Deadline) (int, error) {
	if d == nil {
		return -1, ErrNotInstalled
	}
	if !d.IsUIThread() {
		return -1, fmt.Errorf("uidispatch: ModalWait called from non-UI goroutine")
	}

	d.mu.Lock()
	d.waitingDepth++
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.waitingDepth--
		d.mu.Unlock()
	}()

	for {
		d.DrainPending()
		if d.pump != nil {
			for d.pump.Pump() {
			}
		}

		idx, res := signalable.WaitAny(handles, deadline.FromDuration(pollInterval))
		if res == signalable.Signaled {
			return idx, nil
		}
		if dl.IsElapsed() {
			return -1, nil
		}
	}
}

// pollInterval bounds how long ModalWait can go between pump-drains while
// none of its handles have fired yet.
const pollInterval = 20 * time.Millisecond
