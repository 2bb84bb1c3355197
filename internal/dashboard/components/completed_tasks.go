package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	completedTaskStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42")).
				Border(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("42")).
				Padding(0, 1)

	failedTaskStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	completedHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Padding(0, 1)

	subTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)
)

// TaskResult is one finished task's id and whether it completed or failed
// (a discarded task counts as failed for display purposes).
type TaskResult struct {
	ID      string
	Success bool
}

// CompletedTasks renders a rolling window of recently-finished tasks,
// split into succeeded/failed boxes.
type CompletedTasks struct {
	Succeeded []TaskResult
	Failed    []TaskResult
	Width     int
	Title     string
}

// NewCompletedTasks creates a new CompletedTasks component.
func NewCompletedTasks(width int) *CompletedTasks {
	return &CompletedTasks{
		Width: width,
		Title: "Completed Tasks",
	}
}

// Add records res, keeping only the last limit entries per outcome list.
func (c *CompletedTasks) Add(res TaskResult, limit int) {
	if res.Success {
		c.Succeeded = append(c.Succeeded, res)
		if limit > 0 && len(c.Succeeded) > limit {
			c.Succeeded = c.Succeeded[len(c.Succeeded)-limit:]
		}
		return
	}
	c.Failed = append(c.Failed, res)
	if limit > 0 && len(c.Failed) > limit {
		c.Failed = c.Failed[len(c.Failed)-limit:]
	}
}

// View renders the completed tasks.
func (c *CompletedTasks) View() string {
	var boxes []string

	if len(c.Succeeded) > 0 {
		boxes = append(boxes, c.renderBox("Succeeded", c.Succeeded, completedTaskStyle, "✓"))
	}
	if len(c.Failed) > 0 {
		boxes = append(boxes, c.renderBox("Failed", c.Failed, failedTaskStyle, "✗"))
	}

	var content string
	if len(boxes) == 0 {
		content = placeholderStyle.Render("No completed tasks yet")
	} else {
		content = strings.Join(boxes, "\n")
	}

	if c.Title != "" {
		return completedHeaderStyle.Render(c.Title) + "\n" + content
	}
	return content
}

func (c *CompletedTasks) renderBox(title string, tasks []TaskResult, style lipgloss.Style, icon string) string {
	boxWidth := c.Width
	subTitle := subTitleStyle.Foreground(style.GetForeground()).Render(title)

	innerWidth := boxWidth - 4
	if innerWidth < 0 {
		innerWidth = 0
	}
	nameWidth := innerWidth - 2
	if nameWidth < 0 {
		nameWidth = 0
	}

	var lines []string
	for _, t := range tasks {
		wrapped := lipgloss.NewStyle().Width(nameWidth).Render(t.ID)
		for i, line := range strings.Split(wrapped, "\n") {
			if i == 0 {
				lines = append(lines, fmt.Sprintf("%s %s", icon, line))
			} else {
				lines = append(lines, fmt.Sprintf("  %s", line))
			}
		}
	}

	body := strings.Join(lines, "\n")
	return style.Width(boxWidth - 2).Render(subTitle + "\n" + body)
}
