// Package form is the terminal version of the export form.
package form

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dtnitsch/vincenzo/models"
	"github.com/dtnitsch/vincenzo/pkg/pipeline"
)

var (
	brandPrimary = lipgloss.Color("#7C3AED")
	brandAccent  = lipgloss.Color("#10B981")
	brandError   = lipgloss.Color("#EF4444")
	textMuted    = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Foreground(brandPrimary).
			Bold(true).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Foreground(brandAccent).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(brandError).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(textMuted)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(16)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(brandPrimary).
			Padding(0, 1)
)

// Runner is the pipeline the form submits to.
type Runner interface {
	Run(ctx context.Context, rawURL string) (*pipeline.Outcome, error)
}

// exportDoneMsg carries the pipeline outcome back to the event loop.
type exportDoneMsg struct {
	outcome *pipeline.Outcome
	err     error
}

type Model struct {
	ctx     context.Context
	runner  Runner
	input   textinput.Model
	spinner spinner.Model

	running bool
	outcome *pipeline.Outcome
	err     error
	width   int
}

func NewModel(ctx context.Context, runner Runner) *Model {
	ti := textinput.New()
	ti.Placeholder = "https://civitai.com/models/12345"
	ti.Prompt = "URL: "
	ti.CharLimit = 2048
	ti.Width = 60
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(brandPrimary)

	return &Model{ctx: ctx, runner: runner, input: ti, spinner: s}
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}
		if m.running {
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 12; w > 20 {
			m.input.Width = w
		}
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case exportDoneMsg:
		m.running = false
		m.outcome = msg.outcome
		m.err = msg.err
		m.input.Focus()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts one export off the event loop; a second Enter while running is ignored.
func (m *Model) submit() (tea.Model, tea.Cmd) {
	rawURL := strings.TrimSpace(m.input.Value())
	if m.running || rawURL == "" {
		return m, nil
	}
	m.running = true
	m.outcome = nil
	m.err = nil
	m.input.Blur()
	return m, tea.Batch(m.spinner.Tick, m.export(rawURL))
}

func (m *Model) export(rawURL string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.runner.Run(m.ctx, rawURL)
		return exportDoneMsg{outcome: out, err: err}
	}
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Civitai model export"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch {
	case m.running:
		b.WriteString(fmt.Sprintf("%s Exporting...\n", m.spinner.View()))
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	case m.outcome != nil:
		b.WriteString(successStyle.Render("done~!"))
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(renderOutcome(m.outcome)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter: export • esc: quit"))
	b.WriteString("\n")
	return b.String()
}

func renderOutcome(out *pipeline.Outcome) string {
	var lines []string
	if out.Record != nil {
		lines = append(lines, labelStyle.Render("Name")+out.Record.Name)
		for _, f := range out.Record.Fields() {
			lines = append(lines, labelStyle.Render(f.Label)+f.Value)
		}
		if out.Record.UsageTips != "" {
			lines = append(lines, labelStyle.Render("Usage tips")+out.Record.UsageTips)
		}
	}
	if r := out.Result; r != nil && r.Status == models.StatusSuccess {
		image := r.ImagePath
		if r.UsedDefaultImage {
			image += dimStyle.Render(" (default image)")
		}
		lines = append(lines, "", labelStyle.Render("Image")+image, labelStyle.Render("Text")+r.TextPath)
	}
	return strings.Join(lines, "\n")
}
