package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI forwards UI updates into a running bubbletea program.
type TUI struct {
	program *tea.Program
}

func NewTUI(p *tea.Program) *TUI {
	return &TUI{program: p}
}

func (t *TUI) UpdateStatus(status string) {
	t.program.Send(StatusMsg(status))
}

func (t *TUI) UpdateProgress(attempt, max int) {
	t.program.Send(ProgressMsg{Attempt: attempt, Max: max})
}

func (t *TUI) Log(msg string) {
	t.program.Send(LogMsg(msg))
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))
)

// AskFunc sends one question to the coach and returns the answer.
type AskFunc func(ctx context.Context, question string) (string, error)

type Model struct {
	Title    string
	Status   string
	Attempt  int
	Max      int
	Log      []string
	Busy     bool
	Input    textinput.Model
	Progress progress.Model
	Viewport viewport.Model
	Quitting bool
	Ready    bool
	Width    int
	Height   int

	ask AskFunc
}

type LogMsg string
type StatusMsg string

// ProgressMsg reports how many polls a pending run has taken.
type ProgressMsg struct {
	Attempt int
	Max     int
}

// ReplyMsg carries the answer to the question in flight.
type ReplyMsg struct {
	Text string
	Err  error
}

func NewModel(title string, maxAttempts int, ask AskFunc) Model {
	in := textinput.New()
	in.Placeholder = "Ask about your canvas, e.g. \"Value Proposition: is this sharp enough?\""
	in.CharLimit = 2000
	in.Focus()

	return Model{
		Title:    title,
		Status:   "Ready",
		Max:      maxAttempts,
		Input:    in,
		Progress: progress.New(progress.WithDefaultGradient()),
		ask:      ask,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			question := strings.TrimSpace(m.Input.Value())
			if question == "" || m.Busy {
				return m, nil
			}
			m.Input.SetValue("")
			m.Busy = true
			m.Attempt = 0
			m.Status = "Waiting for the coach..."
			m = m.appendLog(userStyle.Render("You: ") + question)
			return m, m.askCmd(question)
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		if !m.Ready {
			m.Viewport = viewport.New(msg.Width, msg.Height-8)
			m.Ready = true
		} else {
			m.Viewport.Width = msg.Width
			m.Viewport.Height = msg.Height - 8
		}
		m.Viewport.SetContent(strings.Join(m.Log, "\n\n"))

	case LogMsg:
		m = m.appendLog(infoStyle.Render(string(msg)))

	case StatusMsg:
		m.Status = string(msg)

	case ProgressMsg:
		m.Attempt = msg.Attempt
		if msg.Max > 0 {
			m.Max = msg.Max
		}

	case ReplyMsg:
		m.Busy = false
		m.Attempt = 0
		if msg.Err != nil {
			m.Status = "Failed"
			m = m.appendLog(errorStyle.Render("Error: " + msg.Err.Error()))
		} else {
			m.Status = "Ready"
			m = m.appendLog("Coach: " + msg.Text)
		}
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) askCmd(question string) tea.Cmd {
	ask := m.ask
	return func() tea.Msg {
		text, err := ask(context.Background(), question)
		return ReplyMsg{Text: text, Err: err}
	}
}

func (m Model) appendLog(line string) Model {
	m.Log = append(m.Log, line)
	if m.Ready {
		m.Viewport.SetContent(strings.Join(m.Log, "\n\n"))
		m.Viewport.GotoBottom()
	}
	return m
}

func (m Model) View() string {
	if !m.Ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render(" " + m.Title + " ")
	status := infoStyle.Render(fmt.Sprintf(" Status: %s ", m.Status))

	ratio := 0.0
	if m.Busy && m.Max > 0 {
		ratio = float64(m.Attempt) / float64(m.Max)
	}
	prog := m.Progress.ViewAs(ratio)

	view := fmt.Sprintf("%s%s\n\n%s\n\n%s\n%s",
		header, status,
		m.Viewport.View(),
		prog,
		m.Input.View())

	if m.Quitting {
		return view + "\n  Quitting...\n"
	}

	return view
}
