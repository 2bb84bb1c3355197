// Package components holds the Bubble Tea widgets the dashboard composes:
// a scrollable task-output viewport and a completed-task summary list.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/taskpool/pkg/task"
)

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	scrollbarTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	scrollbarHandleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	followTailStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241")).
				Italic(true)

	// stateScrollbarColor picks the scrollbar's handle color off the
	// task's current state, so a glance at a background task's output
	// says whether it's still running or how it ended without reading
	// the sidebar icon.
	stateScrollbarColor = map[task.State]lipgloss.Color{
		task.Pending:   lipgloss.Color("241"), // still running
		task.Completed: lipgloss.Color("42"),  // green
		task.Failed:    lipgloss.Color("196"), // red
		task.Discarded: lipgloss.Color("240"), // dim, never ran
	}
)

// TaskOutput renders the scrollback of one pool task: its combined
// stdout/stderr lines plus the status markers the dashboard appends at
// state transitions (submitted/completed/failed/cancelled).
type TaskOutput struct {
	viewport viewport.Model
	output   strings.Builder
	ready    bool
	width    int
	height   int

	state task.State

	// following is true while new Appends should auto-scroll the
	// viewport to the tail, mirroring a log-tail view. It's cleared the
	// moment the operator scrolls away from the bottom (via Update) and
	// restored by GotoBottom, so reading scrollback on a task that's
	// still producing output doesn't get yanked back to the tail mid-read.
	following bool
}

// NewTaskOutput creates a new TaskOutput sized to width x height.
func NewTaskOutput(width, height int) *TaskOutput {
	return &TaskOutput{
		viewport:  viewport.New(width, height),
		width:     width,
		height:    height,
		following: true,
	}
}

func (o *TaskOutput) SetSize(width, height int) {
	o.width = width
	o.height = height
	vpWidth := width
	if width > 0 {
		vpWidth = width - 1
	}
	if !o.ready {
		o.viewport = viewport.New(vpWidth, height)
		o.viewport.HighPerformanceRendering = false
		o.ready = true
	} else {
		o.viewport.Width = vpWidth
		o.viewport.Height = height
	}
	o.updateContent()
}

// SetState records the task's current state, which colors the scrollbar
// handle so a running/completed/failed/discarded task reads at a glance.
func (o *TaskOutput) SetState(s task.State) {
	o.state = s
}

// Append adds content to the end of the log without clearing it. The
// viewport only auto-scrolls to the new content if the operator hasn't
// scrolled away from the tail since the last append.
func (o *TaskOutput) Append(content string) {
	o.output.WriteString(content)
	o.updateContent()
}

// AppendStatus appends a visually distinct status line, used for
// submitted/completed/failed/cancelled transitions. Status lines always
// pull the view back to the tail, since they mark the point the operator
// most likely wants to see next.
func (o *TaskOutput) AppendStatus(status string) {
	o.output.WriteString(statusStyle.Render(fmt.Sprintf("\n--- %s ---\n", status)))
	o.following = true
	o.updateContent()
}

// SetContent replaces the log wholesale.
func (o *TaskOutput) SetContent(content string) {
	o.output.Reset()
	o.output.WriteString(content)
	o.following = true
	o.updateContent()
}

// Reset clears the log.
func (o *TaskOutput) Reset() {
	o.output.Reset()
	o.following = true
	o.updateContent()
}

func (o *TaskOutput) updateContent() {
	width := o.viewport.Width
	content := o.output.String()
	if width > 0 {
		content = outputStyle.Width(width).Render(content)
	} else {
		content = outputStyle.Render(content)
	}
	o.viewport.SetContent(content)
	if o.following {
		o.viewport.GotoBottom()
	}
}

// Update forwards msg to the underlying viewport (scrolling keys, mouse
// wheel) and drops the follow-tail flag the moment that scrolling leaves
// the operator short of the bottom, so a subsequent Append doesn't yank
// the view away from what they're reading.
func (o *TaskOutput) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	o.viewport, cmd = o.viewport.Update(msg)
	o.following = o.viewport.AtBottom()
	return cmd
}

func (o *TaskOutput) View() string {
	if !o.ready {
		return ""
	}

	if o.viewport.TotalLineCount() <= o.viewport.Height {
		return o.viewport.View()
	}

	h := o.viewport.Height
	percent := o.viewport.ScrollPercent()
	handlePos := int(float64(h-1) * percent)

	handleStyle := scrollbarHandleStyle
	if color, ok := stateScrollbarColor[o.state]; ok {
		handleStyle = lipgloss.NewStyle().Foreground(color)
	}

	var sb strings.Builder
	for i := 0; i < h; i++ {
		if i == handlePos {
			sb.WriteString(handleStyle.Render("┃"))
		} else {
			sb.WriteString(scrollbarTrackStyle.Render("│"))
		}
		if i < h-1 {
			sb.WriteString("\n")
		}
	}

	view := lipgloss.JoinHorizontal(lipgloss.Top, o.viewport.View(), sb.String())
	if !o.following {
		view += "\n" + followTailStyle.Render("(scrolled — press G to follow tail)")
	}
	return view
}

// GotoBottom scrolls to the tail and resumes auto-following future Appends.
// The dashboard calls this when the operator presses "G" on the selected
// task; switching tasks does not call it.
func (o *TaskOutput) GotoBottom() {
	o.following = true
	o.viewport.GotoBottom()
}

func (o *TaskOutput) Height() int {
	return o.viewport.Height
}

func (o *TaskOutput) SetHeight(height int) {
	o.viewport.Height = height
}
