// Package dashboard is the operator-facing Bubble Tea program: it lists
// in-flight and recently-finished pool tasks, lets the operator submit demo
// shell-command tasks and cancel the selected one, and shows live pool
// stats in the header. It owns the UI goroutine: Run installs that
// goroutine as the uidispatch UI thread before handing control to Bubble
// Tea's event loop.
package dashboard

import (
	"bufio"
	"fmt"
	"os/exec"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/ldi/taskpool/internal/dashboard/components"
	"github.com/ldi/taskpool/pkg/canceltoken"
	"github.com/ldi/taskpool/pkg/deadline"
	"github.com/ldi/taskpool/pkg/pool"
	"github.com/ldi/taskpool/pkg/signalable"
	"github.com/ldi/taskpool/pkg/task"
	"github.com/ldi/taskpool/pkg/uidispatch"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	sidebarBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), false, true, false, false).
				BorderForeground(lipgloss.Color("240"))

	listItemStyle         = lipgloss.NewStyle().PaddingLeft(1)
	listSelectedItemStyle = lipgloss.NewStyle().PaddingLeft(1).Foreground(lipgloss.Color("39")).Bold(true)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// taskEntry is one submitted task's dashboard-side bookkeeping: the handle
// returned by Submit, its scrollback, and its last-known state for the
// sidebar icon.
type taskEntry struct {
	id      string
	cmdLine string
	handle  *pool.Handle
	output  *components.TaskOutput
	state   task.State
}

type taskLineMsg struct {
	id   string
	line string
}

type taskOutcomeMsg struct {
	outcome pool.Outcome
}

// cancelAckMsg reports that a task's cancel token has actually flipped,
// wrapping uidispatch.WaitFiredMsg with the entry id the wait was started
// for (WaitFiredMsg on its own only carries a handle index, meaningless
// once there's more than one in-flight task).
type cancelAckMsg struct {
	id   string
	fire uidispatch.WaitFiredMsg
}

// waitCancelAckCmd returns a tea.Cmd that confirms id's cancel token has
// actually fired, via uidispatch.WaitCmd — the Bubble-Tea-flavored
// translation of a modal wait: it blocks in its own goroutine and reports
// back through the message loop, never the Update call itself. This gives
// the operator an immediate acknowledgement line distinct from the task's
// eventual Completed/Failed outcome, which only arrives once the task's
// own action has unwound.
func waitCancelAckCmd(id string, cancel canceltoken.Canceler) tea.Cmd {
	inner := uidispatch.WaitCmd([]*signalable.Event{cancel.WaitHandle()}, deadline.Infinite())
	return func() tea.Msg {
		fire, _ := inner().(uidispatch.WaitFiredMsg)
		return cancelAckMsg{id: id, fire: fire}
	}
}

// Model is the dashboard's Bubble Tea model.
type Model struct {
	pool    *pool.Pool
	program *tea.Program

	entries       map[string]*taskEntry
	poolIDToEntry map[string]string // pool.Handle.ID -> entry id, filled once Submit returns
	order         []string
	cursor        int

	completed *components.CompletedTasks

	picker     *picker
	showPicker bool

	width, height int
	ready         bool
	quitting      bool
	err           error
}

// NewModel builds a dashboard bound to p. Call SetProgram before starting
// p.Run so the model can stream task output and outcomes back into the
// Bubble Tea loop from worker goroutines.
func NewModel(p *pool.Pool) *Model {
	comp := components.NewCompletedTasks(0)
	comp.Title = "Completed"
	return &Model{
		pool:          p,
		entries:       make(map[string]*taskEntry),
		poolIDToEntry: make(map[string]string),
		completed:     comp,
	}
}

// SetProgram wires the *tea.Program the model will use to send messages
// from goroutines outside Bubble Tea's own loop (task output streaming,
// pool.Subscribe outcomes).
func (m *Model) SetProgram(p *tea.Program) {
	m.program = p
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case taskLineMsg:
		if e, ok := m.entries[msg.id]; ok {
			e.output.Append(msg.line + "\n")
		}
		return m, nil

	case taskOutcomeMsg:
		m.applyOutcome(msg.outcome)
		return m, nil

	case cancelAckMsg:
		if e, ok := m.entries[msg.id]; ok && msg.fire.Err == nil && msg.fire.Index == 0 {
			e.output.AppendStatus("cancellation acknowledged")
		}
		return m, nil

	case error:
		m.err = msg
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showPicker {
		selected, closed := m.picker.update(msg)
		if selected != nil {
			m.submit(*selected)
		}
		if closed {
			m.showPicker = false
			m.picker = nil
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "n":
		m.showPicker = true
		m.picker = newPicker(DefaultTemplates)
		return m, nil

	case "x":
		if e := m.selectedEntry(); e != nil && e.state == task.Pending {
			tok := e.handle.CancelToken()
			tok.Cancel()
			return m, waitCancelAckCmd(e.id, tok)
		}
		return m, nil

	case "tab":
		if len(m.order) > 0 {
			m.cursor = (m.cursor + 1) % len(m.order)
		}
		return m, nil

	case "shift+tab":
		if len(m.order) > 0 {
			m.cursor--
			if m.cursor < 0 {
				m.cursor = len(m.order) - 1
			}
		}
		return m, nil

	case "G":
		if e := m.selectedEntry(); e != nil {
			e.output.GotoBottom()
		}
		return m, nil
	}

	if e := m.selectedEntry(); e != nil {
		cmd := e.output.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) selectedEntry() *taskEntry {
	if m.cursor < 0 || m.cursor >= len(m.order) {
		return nil
	}
	return m.entries[m.order[m.cursor]]
}

// submit runs t as a new pool task, wiring its own cancel token (so "x" can
// cancel it) and streaming its combined stdout/stderr back into the
// dashboard as taskLineMsg values.
//
// The streaming closure needs a stable id to tag each line with before
// Submit has a chance to return pool.Handle.ID (a worker can dequeue and
// start running the task concurrently with Submit's own return), so the
// dashboard mints its own entry id up front and links it to the pool's
// Handle.ID afterwards for outcome correlation.
func (m *Model) submit(t Template) {
	id := uuid.NewString()
	cancel := canceltoken.New()
	cmdLine := t.Command + " " + strings.Join(t.Args, " ")

	h := m.pool.Submit(func() error {
		return runCommand(t.Command, t.Args, cancel, func(line string) {
			if m.program != nil {
				m.program.Send(taskLineMsg{id: id, line: line})
			}
		})
	}, cancel)

	entry := &taskEntry{
		id:      id,
		cmdLine: cmdLine,
		handle:  h,
		output:  components.NewTaskOutput(m.outputWidth(), m.outputHeight()),
		state:   task.Pending,
	}
	entry.output.SetSize(m.outputWidth(), m.outputHeight())
	entry.output.SetState(task.Pending)
	entry.output.AppendStatus("submitted: " + cmdLine)
	m.entries[id] = entry
	m.poolIDToEntry[h.ID] = id
	m.order = append(m.order, id)
	m.cursor = len(m.order) - 1
}

func (m *Model) applyOutcome(o pool.Outcome) {
	id, ok := m.poolIDToEntry[o.ID]
	if !ok {
		return
	}
	e, ok := m.entries[id]
	if !ok {
		return
	}
	e.state = o.State
	e.output.SetState(o.State)
	e.output.AppendStatus(fmt.Sprintf("%s (%s)", o.State, o.Duration.Round(time.Millisecond)))

	success := o.State == task.Completed
	label := e.cmdLine
	m.completed.Add(components.TaskResult{ID: label, Success: success}, 100)
}

func (m *Model) outputWidth() int {
	w := m.width - m.sidebarWidth() - 4
	if w < 10 {
		w = 10
	}
	return w
}

func (m *Model) outputHeight() int {
	h := m.height - 4
	if h < 5 {
		h = 5
	}
	return h
}

func (m *Model) sidebarWidth() int {
	w := m.width / 3
	if w < 24 {
		w = 24
	}
	return w
}

func (m *Model) layout() {
	for _, e := range m.entries {
		e.output.SetSize(m.outputWidth(), m.outputHeight())
	}
	m.completed.Width = m.sidebarWidth() - 2
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting dashboard...\n"
	}

	stats := m.pool.Stats()
	header := headerStyle.Render("taskpool dashboard") + "  " +
		statsStyle.Render(fmt.Sprintf("workers %d (idle %d) | queue %d | tasks %d",
			stats.TotalWorkers, stats.IdleWorkers, stats.QueueLen, len(m.order)))

	sidebar := m.renderSidebar()
	main := m.renderMain()

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
	help := helpStyle.Render("[n]ew  [x]cancel  [tab] next task  [G] follow tail  [q]uit")

	view := header + "\n" + body + "\n" + help
	if m.showPicker {
		return view + "\n\n" + m.picker.view()
	}
	return view
}

func (m *Model) renderSidebar() string {
	var b strings.Builder
	for i, id := range m.order {
		e := m.entries[id]
		icon := stateIcon(e.state)
		line := fmt.Sprintf("%s %s", icon, truncate(e.cmdLine, m.sidebarWidth()-6))
		if i == m.cursor {
			b.WriteString(listSelectedItemStyle.Render("> " + line))
		} else {
			b.WriteString(listItemStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}
	if len(m.order) == 0 {
		b.WriteString(helpStyle.Render("  no tasks yet, press n"))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.completed.View())

	return sidebarBorderStyle.Width(m.sidebarWidth()).Height(m.outputHeight()).Render(b.String())
}

func (m *Model) renderMain() string {
	e := m.selectedEntry()
	if e == nil {
		return lipgloss.NewStyle().Width(m.outputWidth()).Render("select or submit a task to see its output")
	}
	return e.output.View()
}

func stateIcon(s task.State) string {
	switch s {
	case task.Pending:
		return "…"
	case task.Completed:
		return "✓"
	case task.Failed:
		return "✗"
	case task.Discarded:
		return "⊘"
	default:
		return "?"
	}
}

func truncate(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	if width <= 1 {
		return s[:width]
	}
	return s[:width-1] + "…"
}

// runCommand runs name with args to completion, reporting each output line
// through onLine as it is produced, and racing the process's own
// completion against cancel's wait handle so an "x" keypress actually
// interrupts a running demo task instead of only marking it cancelled in
// name.
func runCommand(name string, args []string, cancel canceltoken.Canceler, onLine func(string)) error {
	cmd := exec.Command(name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return err
	}

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			onLine(scanner.Text())
		}
	}()

	waitDone := signalable.New()
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		<-scanDone
		waitDone.Set()
	}()

	idx, _ := signalable.WaitAny([]*signalable.Event{waitDone, cancel.WaitHandle()}, deadline.Infinite())
	if idx == 1 {
		_ = cmd.Process.Kill()
		waitDone.Wait(deadline.Infinite())
		return task.ErrAbort
	}
	return waitErr
}

// Run installs the calling goroutine as the uidispatch UI thread and runs
// the dashboard to completion. The pump has nothing of its own to drain
// (the dashboard streams task state through tea.Program.Send, Bubble Tea's
// own cross-goroutine message path) but installing still lets Task.Wait
// calls made from this goroutine, and IsUIThread checks made from anywhere
// in the process, resolve correctly while the dashboard owns the terminal.
func Run(p *pool.Pool) error {
	m := NewModel(p)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	m.SetProgram(prog)

	d := uidispatch.Install(uidispatch.ChanPump{}, func() {})
	defer uidispatch.Uninstall()
	_ = d

	p.Subscribe(func(o pool.Outcome) {
		prog.Send(taskOutcomeMsg{outcome: o})
	})

	_, err := prog.Run()
	return err
}
