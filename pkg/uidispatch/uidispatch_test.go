package uidispatch

import (
	"testing"
	"time"

	"github.com/ldi/taskpool/pkg/canceltoken"
	"github.com/ldi/taskpool/pkg/deadline"
	"github.com/ldi/taskpool/pkg/signalable"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := Install(nil, nil)
	t.Cleanup(Uninstall)
	return d
}

func TestPerformInlineOnUIThread(t *testing.T) {
	d := newTestDispatcher(t)
	ran := false
	ok, err := d.Perform(func() { ran = true }, nil)
	if err != nil || !ok || !ran {
		t.Fatalf("got ok=%v err=%v ran=%v, want true/nil/true", ok, err, ran)
	}
}

func TestPerformFromOtherGoroutineQueuesAndRuns(t *testing.T) {
	d := newTestDispatcher(t)

	ran := make(chan bool, 1)
	go func() {
		ok, err := d.Perform(func() { ran <- true }, nil)
		if err != nil || !ok {
			t.Errorf("got ok=%v err=%v, want true/nil", ok, err)
		}
	}()

	// Give the other goroutine time to enqueue, then drain from "the UI
	// thread" (this goroutine, which is the one that called Install).
	time.Sleep(10 * time.Millisecond)
	d.DrainPending()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued action never ran")
	}
}

func TestPerformRetractedByCancelBeforeDrain(t *testing.T) {
	d := newTestDispatcher(t)
	tok := canceltoken.New()

	ran := false
	resultCh := make(chan bool, 1)
	go func() {
		ok, _ := d.Perform(func() { ran = true }, tok)
		resultCh <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	tok.Cancel()

	select {
	case ok := <-resultCh:
		if ok {
			t.Fatal("expected Perform to report retraction (false)")
		}
	case <-time.After(time.Second):
		t.Fatal("Perform never returned after cancel")
	}

	d.DrainPending()
	if ran {
		t.Fatal("retracted action must never run")
	}
}

func TestModalWaitReturnsIndexOfFiredHandle(t *testing.T) {
	d := newTestDispatcher(t)
	h := signalable.New()
	go func() {
		time.Sleep(15 * time.Millisecond)
		h.Set()
	}()

	idx, err := d.ModalWait([]*signalable.Event{h}, deadline.FromMillis(500))
	if err != nil || idx != 0 {
		t.Fatalf("got idx=%d err=%v, want 0/nil", idx, err)
	}
}

func TestModalWaitDrainsQueuedCallsWhileBlocked(t *testing.T) {
	d := newTestDispatcher(t)
	h := signalable.New()

	ran := make(chan bool, 1)
	go func() {
		ok, _ := d.Perform(func() { ran <- true }, nil)
		if !ok {
			t.Error("expected queued Perform to run")
		}
	}()

	go func() {
		time.Sleep(40 * time.Millisecond)
		h.Set()
	}()

	idx, err := d.ModalWait([]*signalable.Event{h}, deadline.FromMillis(500))
	if err != nil || idx != 0 {
		t.Fatalf("got idx=%d err=%v, want 0/nil", idx, err)
	}
	select {
	case <-ran:
	default:
		t.Fatal("queued Perform should have drained during ModalWait")
	}
}

// TestPerformRetractedConcurrentWithDrain exercises the interleaving where
// DrainPending is already sweeping the queue at the exact moment a call's
// token is cancelled, rather than cancelling well before DrainPending ever
// runs. Whichever side of the race claims the call first, Perform's result
// must agree with what happened: true only if action ran, false only if it
// never did.
func TestPerformRetractedConcurrentWithDrain(t *testing.T) {
	d := newTestDispatcher(t)

	for i := 0; i < 200; i++ {
		tok := canceltoken.New()
		ran := false
		resultCh := make(chan bool, 1)

		go func() {
			ok, _ := d.Perform(func() { ran = true }, tok)
			resultCh <- ok
		}()

		// Give Perform a moment to enqueue the call and start its
		// WaitAny, then race the cancellation against a concurrent
		// DrainPending sweep instead of serializing them.
		time.Sleep(time.Millisecond)
		go tok.Cancel()
		d.DrainPending()

		ok := <-resultCh
		if ok && !ran {
			t.Fatalf("iteration %d: Perform reported true for a retracted call", i)
		}
		if !ok && ran {
			t.Fatalf("iteration %d: retracted action ran", i)
		}
	}
}

func TestModalWaitFromNonUIGoroutineErrors(t *testing.T) {
	d := newTestDispatcher(t)
	errCh := make(chan error, 1)
	go func() {
		_, err := d.ModalWait([]*signalable.Event{signalable.New()}, deadline.FromMillis(10))
		errCh <- err
	}()
	if err := <-errCh; err == nil {
		t.Fatal("expected error calling ModalWait off the UI thread")
	}
}
