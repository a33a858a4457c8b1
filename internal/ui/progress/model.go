package progress

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/evermod/everctl/internal/ui/styles"
)

// row is one transfer being displayed
type row struct {
	name        string
	total       int64
	transferred int64
	state       State
	err         error
}

// Model is the bubbletea model for a batch of concurrent downloads
type Model struct {
	// Interrupt is called once when the user cancels with ctrl+c
	Interrupt func()

	title       string
	rows        []*row
	index       map[string]int
	spinner     spinner.Model
	progressBar progress.Model
	summary     string
	done        bool
	interrupted bool
	width       int
}

// NewModel creates a progress model with one row per transfer name
func NewModel(title string, names []string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)

	rows := make([]*row, len(names))
	index := make(map[string]int, len(names))
	for i, name := range names {
		rows[i] = &row{name: name, state: StatePending}
		index[name] = i
	}

	return Model{
		title:       title,
		rows:        rows,
		index:       index,
		spinner:     s,
		progressBar: p,
		width:       80,
	}
}

// Progress messages for updating state
type (
	// EventMsg updates one transfer row
	EventMsg struct {
		Name        string
		Total       int64
		Transferred int64
		Done        bool
		Skipped     bool
		Err         error
	}

	// DoneMsg signals the entire batch is finished
	DoneMsg struct{ Summary string }
)

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if !m.interrupted && m.Interrupt != nil {
				m.Interrupt()
			}
			m.interrupted = true
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = minInt(msg.Width-30, 40)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		i, ok := m.index[msg.Name]
		if !ok {
			return m, nil
		}
		r := m.rows[i]
		switch {
		case msg.Err != nil && msg.Skipped:
			r.state = StateSkipped
		case msg.Err != nil:
			r.state = StateError
			r.err = msg.Err
		case msg.Done:
			r.state = StateComplete
		default:
			r.state = StateActive
			r.total = msg.Total
			r.transferred = msg.Transferred
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.summary = msg.Summary
		return m, tea.Quit
	}

	return m, nil
}

// View renders the batch display
func (m Model) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Text).
		Bold(true).
		MarginBottom(1)
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	indent := "  "
	for _, r := range m.rows {
		icon := StyledIcon(r.state)
		if r.state == StateActive {
			icon = m.spinner.View()
		}
		b.WriteString(fmt.Sprintf("%s%s %s", indent, icon, RowStyle(r.state).Render(r.name)))

		if r.state == StateActive && r.total > 0 {
			percent := float64(r.transferred) / float64(r.total)
			bytes := styles.MutedText.Render(
				styles.FormatBytes(r.transferred) + " / " + styles.FormatBytes(r.total))
			b.WriteString("  " + m.progressBar.ViewAs(percent) + " " + bytes)
		}
		if r.state == StateError && r.err != nil {
			b.WriteString(styles.ErrorText.Render(" - " + r.err.Error()))
		}
		b.WriteString("\n")
	}

	if m.interrupted && !m.done {
		b.WriteString("\n" + styles.WarningText.Render("  Cancelling, waiting for transfers to stop...") + "\n")
	}
	if m.summary != "" {
		b.WriteString("\n" + styles.MutedText.Render("  "+m.summary) + "\n")
	}

	return b.String()
}

// Interrupted reports whether the user cancelled the batch
func (m Model) Interrupted() bool {
	return m.interrupted
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
