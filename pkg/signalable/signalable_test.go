package signalable

import (
	"testing"
	"time"

	"github.com/ldi/taskpool/pkg/deadline"
)

func TestSetThenWaitReturnsImmediately(t *testing.T) {
	e := New()
	e.Set()
	if got := e.Wait(deadline.FromMillis(10)); got != Signaled {
		t.Fatalf("got %v, want Signaled", got)
	}
}

func TestWaitTimesOutWhenUnset(t *testing.T) {
	e := New()
	if got := e.Wait(deadline.FromMillis(20)); got != Timeout {
		t.Fatalf("got %v, want Timeout", got)
	}
}

func TestSetWakesBlockedWaiter(t *testing.T) {
	e := New()
	done := make(chan Result, 1)
	go func() {
		done <- e.Wait(deadline.Infinite())
	}()
	time.Sleep(10 * time.Millisecond)
	e.Set()
	select {
	case got := <-done:
		if got != Signaled {
			t.Fatalf("got %v, want Signaled", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Set")
	}
}

func TestResetThenIsSetFalse(t *testing.T) {
	e := New()
	e.Set()
	if !e.IsSet() {
		t.Fatal("expected set")
	}
	e.Reset()
	if e.IsSet() {
		t.Fatal("expected unset after reset")
	}
}

func TestWaitAnyReturnsIndexOfSignaled(t *testing.T) {
	a, b := New(), New()
	b.Set()
	idx, res := WaitAny([]*Event{a, b}, deadline.FromMillis(50))
	if res != Signaled || idx != 1 {
		t.Fatalf("got idx=%d res=%v, want idx=1 res=Signaled", idx, res)
	}
}

func TestWaitAnyTimesOut(t *testing.T) {
	a, b := New(), New()
	idx, res := WaitAny([]*Event{a, b}, deadline.FromMillis(20))
	if res != Timeout || idx != -1 {
		t.Fatalf("got idx=%d res=%v, want idx=-1 res=Timeout", idx, res)
	}
}

func TestWaitAnyWakesOnLateSignal(t *testing.T) {
	a, b := New(), New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		a.Set()
	}()
	idx, res := WaitAny([]*Event{a, b}, deadline.FromMillis(500))
	if res != Signaled || idx != 0 {
		t.Fatalf("got idx=%d res=%v, want idx=0 res=Signaled", idx, res)
	}
}
