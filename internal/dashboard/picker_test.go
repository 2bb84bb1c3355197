package dashboard

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestPickerNavigationClamps(t *testing.T) {
	p := newPicker(DefaultTemplates)

	if sel, closed := p.update(key('k')); sel != nil || closed {
		t.Fatalf("up at top should neither select nor close")
	}
	if p.cursor != 0 {
		t.Errorf("expected cursor to stay at 0, got %d", p.cursor)
	}

	for i := 0; i < len(DefaultTemplates)-1; i++ {
		p.update(key('j'))
	}
	if p.cursor != len(DefaultTemplates)-1 {
		t.Errorf("expected cursor at last template, got %d", p.cursor)
	}

	// one more down should NOT wrap past the end
	p.update(key('j'))
	if p.cursor != len(DefaultTemplates)-1 {
		t.Errorf("expected cursor to clamp at the end, got %d", p.cursor)
	}
}

func TestPickerEnterSelectsHighlighted(t *testing.T) {
	p := newPicker(DefaultTemplates)
	p.update(key('j'))

	sel, closed := p.update(tea.KeyMsg{Type: tea.KeyEnter})
	if !closed {
		t.Fatalf("expected enter to close the picker")
	}
	if sel == nil || *sel != DefaultTemplates[1] {
		t.Fatalf("expected selection of templates[1], got %+v", sel)
	}
}

func TestPickerEscClosesWithoutSelecting(t *testing.T) {
	p := newPicker(DefaultTemplates)
	sel, closed := p.update(tea.KeyMsg{Type: tea.KeyEsc})
	if !closed || sel != nil {
		t.Fatalf("expected esc to close without a selection")
	}
}

func TestPickerViewListsAllTemplates(t *testing.T) {
	p := newPicker(DefaultTemplates)
	view := p.view()
	for _, tmpl := range DefaultTemplates {
		if !strings.Contains(view, tmpl.Label) {
			t.Errorf("expected view to contain template label %q", tmpl.Label)
		}
	}
}
