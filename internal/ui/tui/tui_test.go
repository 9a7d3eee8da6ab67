package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func ready(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestModel_AskAndReply(t *testing.T) {
	var asked string
	m := ready(NewModel("Canvas Coach", 30, func(ctx context.Context, q string) (string, error) {
		asked = q
		return "Narrow it down.", nil
	}))

	m.Input.SetValue("Value Proposition: too broad?")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if !m.Busy || cmd == nil {
		t.Fatal("expected a pending question")
	}
	if m.Input.Value() != "" {
		t.Errorf("expected input to be cleared, got %q", m.Input.Value())
	}

	reply := cmd()
	if asked != "Value Proposition: too broad?" {
		t.Errorf("unexpected question %q", asked)
	}

	next, _ = m.Update(reply)
	m = next.(Model)
	if m.Busy || m.Status != "Ready" {
		t.Errorf("expected idle model, got busy=%v status=%q", m.Busy, m.Status)
	}
	if last := m.Log[len(m.Log)-1]; !strings.Contains(last, "Narrow it down.") {
		t.Errorf("expected reply in log, got %q", last)
	}
}

func TestModel_IgnoresEnterWhileBusy(t *testing.T) {
	m := ready(NewModel("Canvas Coach", 30, nil))
	m.Busy = true
	m.Input.SetValue("again")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("expected no command while a question is pending")
	}
}

func TestModel_ProgressAndErrors(t *testing.T) {
	m := ready(NewModel("Canvas Coach", 30, nil))
	m.Busy = true

	next, _ := m.Update(ProgressMsg{Attempt: 4, Max: 30})
	m = next.(Model)
	if m.Attempt != 4 || m.Max != 30 {
		t.Errorf("unexpected progress %d/%d", m.Attempt, m.Max)
	}
	if !strings.Contains(m.View(), "Status:") {
		t.Error("expected status line in view")
	}

	next, _ = m.Update(ReplyMsg{Err: errors.New("assistant run timed out")})
	m = next.(Model)
	if m.Status != "Failed" || !strings.Contains(m.Log[len(m.Log)-1], "timed out") {
		t.Errorf("expected failure in log, got %q", m.Log)
	}
}

func TestModel_Quit(t *testing.T) {
	m := ready(NewModel("Canvas Coach", 30, nil))
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !next.(Model).Quitting || cmd == nil {
		t.Error("expected quit on esc")
	}
}
