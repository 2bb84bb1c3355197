package dashboard

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	pickerItemStyle = lipgloss.NewStyle().PaddingLeft(2)

	pickerSelectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(lipgloss.Color("42")).
				Bold(true)

	pickerHintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	pickerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(1, 2)
)

// Template is a canned shell command the operator can submit with one
// keystroke instead of typing a command line by hand.
type Template struct {
	Label   string
	Command string
	Args    []string
}

// DefaultTemplates ships a handful of demo tasks covering the outcomes the
// dashboard needs to show off: quick success, a longer-running task worth
// watching stream output, and a guaranteed failure.
var DefaultTemplates = []Template{
	{Label: "List working directory (ls -la)", Command: "ls", Args: []string{"-la"}},
	{Label: "Sleep 3 seconds", Command: "sleep", Args: []string{"3"}},
	{Label: "Echo a greeting", Command: "echo", Args: []string{"hello from taskpool"}},
	{Label: "Guaranteed failure (exit 1)", Command: "sh", Args: []string{"-c", "echo about to fail; exit 1"}},
}

// picker is a small embedded list, in the same cursor/choices shape as the
// teacher's menu selection screen, but rendered inline as an overlay rather
// than as its own nested program.
type picker struct {
	templates []Template
	cursor    int
}

func newPicker(templates []Template) *picker {
	return &picker{templates: templates}
}

// update handles one key press. It returns a non-nil template when the
// operator confirms a selection, and closed=true when the picker should be
// dismissed (either because a selection was made or the operator backed out).
func (p *picker) update(msg tea.KeyMsg) (selected *Template, closed bool) {
	switch msg.String() {
	case "esc", "q":
		return nil, true
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.templates)-1 {
			p.cursor++
		}
	case "enter":
		if p.cursor >= 0 && p.cursor < len(p.templates) {
			t := p.templates[p.cursor]
			return &t, true
		}
	}
	return nil, false
}

func (p *picker) view() string {
	var s strings.Builder
	s.WriteString(pickerTitleStyle.Render("Submit a task"))
	s.WriteString("\n\n")

	for i, t := range p.templates {
		line := fmt.Sprintf("%s %s", t.Command, strings.Join(t.Args, " "))
		label := fmt.Sprintf("%-34s %s", t.Label, pickerHintStyle.Render(line))
		if i == p.cursor {
			s.WriteString(pickerSelectedItemStyle.Render("> " + label))
		} else {
			s.WriteString(pickerItemStyle.Render("  " + label))
		}
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(pickerHintStyle.Render("j/k to move, enter to submit, esc to cancel"))
	return pickerBoxStyle.Render(s.String())
}
