package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"supplychain-rag/internal/models"
	"supplychain-rag/internal/parser"
	"supplychain-rag/internal/rag"
)

// RAGPort is the TUI-facing subset of the RAG pipeline.
type RAGPort interface {
	Ingest(filename string, data []byte) (*rag.Session, error)
	Query(ctx context.Context, session *rag.Session, query string) (*models.PromptResponse, error)
}

type stage int

const (
	stageFile stage = iota
	stageQuery
)

type ingestedMsg struct {
	session *rag.Session
	err     error
}

type answerMsg struct {
	resp *models.PromptResponse
	err  error
}

// Model is the Bubble Tea model: a path prompt acting as the upload control,
// then a question prompt over the loaded document.
type Model struct {
	port     RAGPort
	ctx      context.Context
	stage    stage
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	session  *rag.Session
	answer   *models.PromptResponse
	status   string
	busy     bool
	ready    bool
}

// New creates the model. A non-empty path is loaded on start.
func New(ctx context.Context, port RAGPort, path string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		port:     port,
		ctx:      ctx,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
	}
	m.toFileStage()
	if path != "" {
		m.input.SetValue(path)
		m.busy = true
		m.status = "Extracting and chunking document..."
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.busy && m.stage == stageFile {
		return tea.Batch(textinput.Blink, m.spinner.Tick, ingestCmd(m.port, strings.TrimSpace(m.input.Value())))
	}
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ah := answerBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header+hint, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-ah)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case ingestedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.session = msg.session
		m.answer = nil
		m.stage = stageQuery
		m.input.SetValue("")
		m.input.Placeholder = "Ask a supply chain risk question"
		m.status = fmt.Sprintf("Document uploaded successfully. Document processed into %d chunks!", len(msg.session.Chunks))
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.answer = msg.resp
		m.status = fmt.Sprintf("Answered %q from %d chunks", msg.resp.Query, len(msg.resp.Source))
		m.viewport.SetContent(m.renderAnswer())
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlO:
			if !m.busy {
				m.toFileStage()
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" || m.busy {
		return m, nil
	}
	m.busy = true
	switch m.stage {
	case stageFile:
		m.status = "Extracting and chunking document..."
		return m, tea.Batch(m.spinner.Tick, ingestCmd(m.port, value))
	default:
		m.status = "Asking the model..."
		return m, tea.Batch(m.spinner.Tick, queryCmd(m.ctx, m.port, m.session, value))
	}
}

// toFileStage drops the current document so the next one replaces it.
func (m *Model) toFileStage() {
	m.stage = stageFile
	m.session = nil
	m.answer = nil
	m.input.SetValue("")
	m.input.Placeholder = "Path to supplier/tariff document (" + strings.Join(parser.SupportedExtensions, ", ") + ")"
	m.status = "Load a document to start."
	m.viewport.SetContent(m.renderAnswer())
}

func ingestCmd(port RAGPort, path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return ingestedMsg{err: err}
		}
		session, err := port.Ingest(filepath.Base(path), data)
		return ingestedMsg{session: session, err: err}
	}
}

func queryCmd(ctx context.Context, port RAGPort, session *rag.Session, query string) tea.Cmd {
	return func() tea.Msg {
		resp, err := port.Query(ctx, session, query)
		return answerMsg{resp: resp, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Supply Chain Risk Analysis Chatbot")
	hint := "enter: submit  ctrl+o: new document  ↑/↓: scroll  esc: quit"
	if m.session != nil {
		hint = fmt.Sprintf("%s (%d chunks) | %s", m.session.Filename, len(m.session.Chunks), hint)
	}
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	statusStyle := okStyle
	if strings.HasPrefix(m.status, "Error: ") {
		statusStyle = errStyle
	}
	return header + "\n" +
		hintStyle.Render(hint) + "\n" +
		answerBoxStyle.Render(m.viewport.View()) + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		if m.session == nil {
			return "No document loaded."
		}
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(answerTitleStyle.Render("Answer:"))
	b.WriteString("\n\n")
	b.WriteString(m.answer.Content)
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("Sources:"))
	for _, c := range m.answer.Source {
		b.WriteString("\n")
		b.WriteString(hintStyle.Render(fmt.Sprintf("#%d score=%d  %s", c.Index, c.Score, preview(c.Content, 80))))
	}
	return b.String()
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

var (
	headerStyle      = lipgloss.NewStyle().Bold(true)
	hintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	answerTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
