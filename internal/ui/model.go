package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/csvchat/csvchat/internal/qa"
)

const (
	inputHeight  = 3
	statusHeight = 1
)

// ModelConfig holds the configuration for creating a chat model
type ModelConfig struct {
	Engine *qa.Engine

	// TableName addresses one loaded table; empty means the default table
	TableName string

	// Tables lists the loaded table names for cycling with Ctrl+T
	Tables []string

	// Mode selects the starting answer pipeline
	Mode qa.Mode

	// ShowSources appends provenance to each answer in the transcript
	ShowSources bool
}

// chatEntry is one question/answer exchange in the transcript
type chatEntry struct {
	Question string
	Answer   *qa.Answer
	Err      error
}

// Model is the root chat session model
type Model struct {
	config ModelConfig
	engine *qa.Engine
	styles Styles

	input    textinput.Model
	viewport viewport.Model

	entries   []chatEntry
	mode      qa.Mode
	tableName string

	width   int
	height  int
	busy    bool
	pending string
}

// NewModel creates the chat session model
func NewModel(config ModelConfig) Model {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Ask a question... (Enter to send, Tab switches mode, Ctrl+T switches table, Esc quits)"
	ti.CharLimit = 500
	ti.Focus()

	vp := viewport.New(80, 20)

	mode := config.Mode
	if mode == "" {
		mode = qa.ModeGenerate
	}

	tableName := config.TableName
	if tableName == "" && len(config.Tables) > 0 {
		tableName = config.Tables[0]
	}

	return Model{
		config:    config,
		engine:    config.Engine,
		styles:    styles,
		input:     ti,
		viewport:  vp,
		mode:      mode,
		tableName: tableName,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - inputHeight - statusHeight
		m.input.Width = msg.Width - 4
		m.refreshTranscript()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyTab:
			if m.mode == qa.ModeGenerate {
				m.mode = qa.ModeRetrieve
			} else {
				m.mode = qa.ModeGenerate
			}
			return m, nil

		case tea.KeyCtrlT:
			m.cycleTable()
			return m, nil

		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			m.pending = question
			m.refreshTranscript()
			return m, askCmd(m.engine, m.mode, question, m.tableName)
		}

	case answerMsg:
		m.entries = append(m.entries, chatEntry{Question: m.pending, Answer: msg.answer})
		m.busy = false
		m.pending = ""
		m.refreshTranscript()

	case answerErrMsg:
		m.entries = append(m.entries, chatEntry{Question: m.pending, Err: msg.err})
		m.busy = false
		m.pending = ""
		m.refreshTranscript()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the chat session
func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.statusView(),
		m.styles.InputStyle.Width(m.width-2).Render(m.input.View()),
	)
}

// statusView renders the mode and activity line
func (m Model) statusView() string {
	mode := m.styles.StatusMode.Render(strings.ToUpper(string(m.mode)))

	state := "ready"
	style := m.styles.StatusBar
	if m.busy {
		state = "thinking..."
		style = m.styles.StatusBusy
	}

	table := m.tableName
	if table == "" {
		table = "default table"
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		mode,
		style.Render(fmt.Sprintf("%s | %s", table, state)),
	)
}

// cycleTable advances to the next loaded table
func (m *Model) cycleTable() {
	if len(m.config.Tables) < 2 {
		return
	}

	next := 0
	for i, name := range m.config.Tables {
		if name == m.tableName {
			next = (i + 1) % len(m.config.Tables)
			break
		}
	}
	m.tableName = m.config.Tables[next]
}

// refreshTranscript re-renders the transcript into the viewport
func (m *Model) refreshTranscript() {
	var b strings.Builder

	for _, entry := range m.entries {
		b.WriteString(m.renderEntry(entry))
		b.WriteString("\n")
	}

	if m.busy {
		b.WriteString(m.styles.UserLabel.Render("You: "))
		b.WriteString(m.pending)
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("thinking..."))
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// renderEntry renders one exchange
func (m *Model) renderEntry(entry chatEntry) string {
	var b strings.Builder

	b.WriteString(m.styles.UserLabel.Render("You: "))
	b.WriteString(entry.Question)
	b.WriteString("\n")

	b.WriteString(m.styles.AssistantLabel.Render("csvchat: "))

	switch {
	case entry.Err != nil:
		b.WriteString(m.styles.FailureText.Render(entry.Err.Error()))
		b.WriteString("\n")

	case entry.Answer != nil:
		answer := entry.Answer
		if answer.State == qa.StatePlanningFailed || answer.State == qa.StateExecutionFailed {
			b.WriteString(m.styles.FailureText.Render(answer.Text))
		} else {
			b.WriteString(m.styles.AnswerText.Render(answer.Text))
		}
		b.WriteString("\n")

		if m.config.ShowSources {
			b.WriteString(m.renderProvenance(answer))
		}
	}

	return b.String()
}

// renderProvenance renders the expression or retrieved rows under an answer
func (m *Model) renderProvenance(answer *qa.Answer) string {
	var b strings.Builder

	switch answer.Mode {
	case qa.ModeGenerate:
		if answer.Expr != nil {
			b.WriteString(m.styles.Provenance.Render(fmt.Sprintf("  query: %s (%s)", answer.Expr.String(), answer.Elapsed)))
			b.WriteString("\n")
		}

	case qa.ModeRetrieve:
		for _, r := range answer.Retrieved {
			b.WriteString(m.styles.Provenance.Render(fmt.Sprintf("  %.2f %s", r.Score, r.Record.DocID)))
			b.WriteString("\n")
		}
	}

	return b.String()
}
