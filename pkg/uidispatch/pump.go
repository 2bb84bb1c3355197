package uidispatch

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldi/taskpool/pkg/deadline"
	"github.com/ldi/taskpool/pkg/signalable"
)

// ChanPump is a MessagePump for a caller that isn't using Bubble Tea: it
// drains a single supplied channel of pending "messages" (however the
// caller defines one) one at a time, never blocking.
type ChanPump struct {
	C <-chan func()
}

// Pump runs at most one queued message handler and reports whether it did.
func (p ChanPump) Pump() bool {
	select {
	case fn := <-p.C:
		fn()
		return true
	default:
		return false
	}
}

// WaitFiredMsg is delivered back into a Bubble Tea Update loop when
// WaitCmd's watched handle fires (or times out). Index is -1 on timeout.
// Exported so a consumer package can type-switch on it directly, or wrap
// it in its own message type to carry additional context (see
// dashboard.waitCancelAckCmd for an example of the latter).
type WaitFiredMsg struct {
	Index int
	Err   error
}

// WaitCmd returns a tea.Cmd that blocks on handles in a background
// goroutine and reports the result as a WaitFiredMsg, without ever
// blocking the Bubble Tea Update loop itself. This is the TUI-native
// alternative to calling ModalWait directly: Bubble Tea's own Cmd
// machinery already guarantees the message pump keeps running while a Cmd
// is in flight, so no extra draining step is needed here the way
// ModalWait needs one for a bare MessagePump.
func WaitCmd(handles []*signalable.Event, d deadline.Deadline) tea.Cmd {
	return func() tea.Msg {
		idx, res := signalable.WaitAny(handles, d)
		if res == signalable.Timeout {
			return WaitFiredMsg{Index: -1}
		}
		return WaitFiredMsg{Index: idx}
	}
}
