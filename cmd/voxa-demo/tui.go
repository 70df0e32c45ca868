//go:build cgo

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	engine "github.com/voxa-labs/voxa-core/core"
	"github.com/voxa-labs/voxa-core/core/events"
	"github.com/voxa-labs/voxa-core/core/llms"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	agentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	interimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
)

type messageMsg struct {
	role    llms.Role
	content string
	interim bool
	speaker *int
}

type errorMsg struct{ err error }

type eventMsg struct{ event events.Event }

type chatLine struct {
	role    llms.Role
	content string
	interim bool
}

type model struct {
	voice   *engine.Engine
	updates chan tea.Msg

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	lines   []chatLine
	state   string
	lastErr error
	muted   bool
	width   int
	ready   bool
}

func newModel(voice *engine.Engine, updates chan tea.Msg) model {
	input := textinput.New()
	input.Placeholder = "type instead of speaking..."
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		voice:   voice,
		updates: updates,
		input:   input,
		spin:    spin,
		state:   string(voice.State()),
	}
}

func waitForUpdate(updates chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-updates }
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, textinput.Blink, waitForUpdate(m.updates))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := msg.Height - 5
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.voice.Disconnect()
			return m, tea.Quit
		case "ctrl+t":
			if m.muted {
				m.voice.UnmuteMicrophone()
			} else {
				m.voice.MuteMicrophone()
			}
			m.muted = !m.muted
			return m, nil
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.voice.SendText(text)
				m.input.Reset()
			}
			return m, nil
		}

	case messageMsg:
		m.recordMessage(msg)
		m.refreshTranscript()
		return m, waitForUpdate(m.updates)

	case errorMsg:
		m.lastErr = msg.err
		return m, waitForUpdate(m.updates)

	case eventMsg:
		if changed, ok := msg.event.(events.TurnStateChanged); ok {
			m.state = changed.To
			m.lastErr = nil
		}
		return m, waitForUpdate(m.updates)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var inputCmd, viewportCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewportCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewportCmd)
}

// recordMessage appends the message to the transcript, replacing the trailing
// interim line when the update supersedes it.
func (m *model) recordMessage(msg messageMsg) {
	line := chatLine{role: msg.role, content: msg.content, interim: msg.interim}
	if n := len(m.lines); n > 0 && m.lines[n-1].interim && m.lines[n-1].role == msg.role {
		m.lines[n-1] = line
		return
	}
	m.lines = append(m.lines, line)
}

func (m *model) refreshTranscript() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for _, line := range m.lines {
		label := userStyle.Render("you")
		if line.role == llms.RoleAgent {
			label = agentStyle.Render("voxa")
		}
		content := line.content
		if line.interim {
			content = interimStyle.Render(content)
		}
		b.WriteString(wordwrap.String(fmt.Sprintf("%s  %s", label, content), m.viewport.Width))
		b.WriteString("\n\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	status := statusStyle.Render(m.state)
	if m.state == string(engine.StateProcessing) || m.state == string(engine.StateGenerating) {
		status = m.spin.View() + status
	}
	if m.muted {
		status += "  " + mutedStyle.Render("mic muted")
	}
	if m.lastErr != nil {
		status += "  " + errorStyle.Render(m.lastErr.Error())
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		titleStyle.Render("voxa"),
		m.viewport.View(),
		status,
		m.input.View(),
		statusStyle.Render("enter send · ctrl+t mute · esc quit"),
	)
}
