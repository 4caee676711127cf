package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"anonlab/internal/domain"
	"anonlab/internal/report"
)

// Model is the Bubble Tea report viewer. Up and down walk the test
// categories of the current report, tab switches reports and the input
// box highlights findings containing the typed text.
type Model struct {
	reports  []*report.Report
	current  int
	cursor   int
	input    textinput.Model
	viewport viewport.Model
	status   string
	filter   string
	ready    bool
}

// New creates a viewer over one or more reports.
func New(reports ...*report.Report) Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "Type text to highlight in findings and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	status := "up/down: category  tab: next report  ctrl+c: quit"
	if len(reports) == 0 {
		status = "No reports."
	}
	return Model{reports: reports, input: ti, viewport: vp, status: status}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + score line, status, input, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, max(3, msg.Height-reserved)-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if len(m.reports) == 0 {
			break
		}
		switch msg.String() {
		case "enter":
			m.filter = strings.TrimSpace(m.input.Value())
			if m.filter == "" {
				m.status = "Highlight cleared"
			} else {
				m.status = fmt.Sprintf("%d findings match %q", m.countMatches(), m.filter)
			}
			m.viewport.SetContent(m.renderCurrent())
			return m, nil
		case "down":
			if n := len(m.report().Tests); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if n := len(m.report().Tests); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "tab":
			m.current = (m.current + 1) % len(m.reports)
			m.cursor = 0
			m.status = fmt.Sprintf("Report %d/%d", m.current+1, len(m.reports))
			m.viewport.SetContent(m.renderCurrent())
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("anonlab report")
	scores := ""
	if r := m.report(); r != nil {
		header = lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("anonlab report: %s (%s)", r.Document.Source, r.Strategy.Title))
		scores = fmt.Sprintf("%s  overall %.2f  resistance %.2f  strategic value %.2f",
			tierStyle(r.Score.Tier).Render(string(r.Score.Tier)), r.Score.Overall, r.Score.Resistance, r.Score.StrategicValue)
		if r.Degraded() {
			scores += "  " + riskStyle(domain.RiskHigh).Render("DEGRADED")
		}
	}
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + scores + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) report() *report.Report {
	if len(m.reports) == 0 {
		return nil
	}
	return m.reports[m.current]
}

func (m Model) renderCurrent() string {
	r := m.report()
	if r == nil || len(r.Tests) == 0 {
		return "No test results."
	}
	t := r.Tests[m.cursor]
	var b strings.Builder
	title := fmt.Sprintf("Category %d/%d  %s  score=%.2f  risk=%s", m.cursor+1, len(r.Tests), t.Category, t.Score, t.Risk)
	b.WriteString(riskStyle(t.Risk).Render(title))
	if t.Failed {
		b.WriteString("  " + riskStyle(domain.RiskHigh).Render("did not complete"))
	}
	b.WriteString("\n\n")
	if len(t.Findings) == 0 {
		b.WriteString("No findings.\n")
	}
	for _, f := range t.Findings {
		line := fmt.Sprintf("[%s] %s", f.Severity, f.Description)
		if m.filter != "" && strings.Contains(strings.ToLower(f.Description), strings.ToLower(m.filter)) {
			line = highlightStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			b.WriteString("- " + rec + "\n")
		}
	}
	if n := r.Anonymization.ChunksFailed; n > 0 {
		fmt.Fprintf(&b, "\n%d of %d chunks failed: %v\n", n, r.Anonymization.ChunksTotal, r.Anonymization.FailedChunks)
	}
	return b.String()
}

func (m Model) countMatches() int {
	needle := strings.ToLower(m.filter)
	n := 0
	for _, t := range m.report().Tests {
		for _, f := range t.Findings {
			if strings.Contains(strings.ToLower(f.Description), needle) {
				n++
			}
		}
	}
	return n
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func riskStyle(r domain.RiskTier) lipgloss.Style {
	switch r {
	case domain.RiskHigh:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	case domain.RiskMedium:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	}
}

func tierStyle(t domain.QualityTier) lipgloss.Style {
	switch t {
	case domain.TierExcellent, domain.TierGood:
		return riskStyle(domain.RiskLow).Bold(true)
	case domain.TierAcceptable:
		return riskStyle(domain.RiskMedium).Bold(true)
	default:
		return riskStyle(domain.RiskHigh)
	}
}
