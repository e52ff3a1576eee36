package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/llmservice"
	"docchat/internal/models"
)

// Chatter is the TUI-facing subset of the RAG service.
type Chatter interface {
	Query(ctx context.Context, query string) (*models.PromptResponse, error)
}

var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true}

const statusHint = `Type a question, or "exit" to leave.`

// answerMsg carries the outcome of one RAG query back into the update loop.
type answerMsg struct {
	resp *models.PromptResponse
	err  error
}

// Model is the Bubble Tea model for the chat loop.
type Model struct {
	service    Chatter
	input      textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	transcript []string
	status     string
	busy       bool
	ready      bool
}

// New creates a new chat model instance.
func New(service Chatter) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		service:  service,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   statusHint,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + ih + ch // header + status + frames
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.String() == "enter" {
			query := strings.TrimSpace(m.input.Value())
			if exitWords[strings.ToLower(query)] {
				return m, tea.Quit
			}
			if query == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Thinking..."
			m.input.SetValue("")
			m.transcript = append(m.transcript, youStyle.Render("You: ")+query)
			m.viewport.SetContent(m.renderTranscript())
			m.viewport.GotoBottom()
			return m, tea.Batch(m.spinner.Tick, ask(m.service, query))
		}

	case answerMsg:
		m.busy = false
		switch {
		case errors.Is(msg.err, llmservice.ErrUnavailable):
			m.status = "The language model is unreachable. Is Ollama running?"
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		default:
			m.status = statusHint
			m.transcript = append(m.transcript, botStyle.Render("Assistant: ")+msg.resp.Content)
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the chat transcript, the input box and the status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("docchat")
	chat := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + chat + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No messages yet."
	}
	return strings.Join(m.transcript, "\n\n")
}

// ask runs the query off the update loop so typing stays responsive while the
// language model works.
func ask(service Chatter, query string) tea.Cmd {
	return func() tea.Msg {
		resp, err := service.Query(context.Background(), query)
		return answerMsg{resp: resp, err: err}
	}
}

var (
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	youStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
