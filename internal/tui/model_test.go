package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonlab/internal/domain"
	"anonlab/internal/report"
)

func sampleReport(source string) *report.Report {
	return &report.Report{
		Document: report.DocumentInfo{Source: source},
		Strategy: report.StrategyInfo{Title: "Literal Redaction"},
		Score:    domain.CompositeScore{Resistance: 82, StrategicValue: 40, Overall: 65.2, Tier: domain.TierPoor},
		Tests: []domain.TestResult{
			{Category: domain.CategoryDirectIdentifier, Score: 60, Risk: domain.RiskMedium, Findings: []domain.Finding{
				{Description: "person survived: John Smith", Severity: domain.SeverityHigh},
			}},
			{Category: domain.CategoryPatternMatching, Score: 90, Risk: domain.RiskLow},
		},
		Recommendations: []string{"Remove names"},
	}
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func TestModel(t *testing.T) {
	t.Run("Should show a loading screen until sized", func(t *testing.T) {
		assert.Equal(t, "Loading...", New(sampleReport("a.txt")).View())
	})

	t.Run("Should render the first category with the score header", func(t *testing.T) {
		m := send(t, New(sampleReport("a.txt")), tea.WindowSizeMsg{Width: 100, Height: 30})
		view := m.View()
		assert.Contains(t, view, "anonlab report: a.txt (Literal Redaction)")
		assert.Contains(t, view, "overall 65.20")
		assert.Contains(t, view, "Category 1/2")
		assert.Contains(t, view, "person survived: John Smith")
	})

	t.Run("Should walk categories with up and down", func(t *testing.T) {
		m := send(t, New(sampleReport("a.txt")), tea.WindowSizeMsg{Width: 100, Height: 30})
		m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
		assert.Equal(t, 1, m.cursor)
		assert.Contains(t, m.renderCurrent(), "pattern-matching")
		m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
		assert.Equal(t, 0, m.cursor)
		m = send(t, m, tea.KeyMsg{Type: tea.KeyUp})
		assert.Equal(t, 1, m.cursor)
	})

	t.Run("Should switch reports with tab", func(t *testing.T) {
		m := send(t, New(sampleReport("a.txt"), sampleReport("b.txt")), tea.WindowSizeMsg{Width: 100, Height: 30})
		m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
		m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
		assert.Equal(t, 1, m.current)
		assert.Equal(t, 0, m.cursor)
		assert.Contains(t, m.View(), "b.txt")
	})

	t.Run("Should count findings matching the typed text", func(t *testing.T) {
		m := send(t, New(sampleReport("a.txt")), tea.WindowSizeMsg{Width: 100, Height: 30})
		m.input.SetValue("smith")
		m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		assert.Equal(t, "smith", m.filter)
		assert.Equal(t, `1 findings match "smith"`, m.status)
	})

	t.Run("Should quit on ctrl+c", func(t *testing.T) {
		_, cmd := New(sampleReport("a.txt")).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	})

	t.Run("Should cope with no reports", func(t *testing.T) {
		m := send(t, New(), tea.WindowSizeMsg{Width: 80, Height: 20})
		m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
		assert.Contains(t, m.View(), "No test results.")
	})
}
