package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/modsentry/orchestrator/types"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_chain_run":
		content = m.renderInspectChainRun()
	case "inspect_module":
		content = m.renderInspectModule()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectChainRun() string {
	run, ok := m.data.(*types.ChainRun)
	if !ok {
		return "Invalid data type for inspect_chain_run"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Chain Run Details"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Chain Run ID", run.ChainRunID},
		{"Chain", run.ChainSnapshot.Name},
		{"Fingerprint", run.Fingerprint},
		{"State", string(run.State)},
		{"Cursor", fmt.Sprintf("%d/%d", run.Cursor, len(run.ChainSnapshot.Steps))},
		{"Started At", run.StartedAt.Format("2006-01-02 15:04:05")},
	}
	if run.FinishedAt != nil {
		rows = append(rows, []string{"Finished At", run.FinishedAt.Format("2006-01-02 15:04:05")})
	}
	if run.FailureReason != "" {
		rows = append(rows, []string{"Failure Reason", run.FailureReason})
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := row[1]
		if row[0] == "State" {
			value = StateStyle(string(run.State)).Render(value)
		} else {
			value = ValueStyle.Render(value)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	if len(run.StepOutcomes) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Step Outcomes"))
		b.WriteString("\n")
		for _, outcome := range run.StepOutcomes {
			line := fmt.Sprintf("  [%d] %s: %s", outcome.StepIndex, outcome.ModuleID, outcome.Status)
			b.WriteString(StateStyle(string(outcome.Status)).Render(line))
			b.WriteString("\n")
			if outcome.ErrorMessage != "" {
				b.WriteString(fmt.Sprintf("      %s\n", ErrorStyle.Render(outcome.ErrorMessage)))
			}
		}
	}

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderInspectModule() string {
	mod, ok := m.data.(*types.ModuleDescriptor)
	if !ok {
		return "Invalid data type for inspect_module"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Module Details"))
	b.WriteString("\n\n")

	health := "unhealthy"
	if mod.Healthy {
		health = "healthy"
	}

	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("ID:"), ValueStyle.Render(mod.ID)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Name:"), ValueStyle.Render(mod.Name)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Kind:"), ValueStyle.Render(string(mod.Kind))))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Health:"), StateStyle(health).Render(health)))
	if mod.Kind == types.ModuleKindInternal {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Container:"), StateStyle(string(mod.ContainerState)).Render(string(mod.ContainerState))))
	}
	if len(mod.InputFormats) > 0 {
		formats := make([]string, 0, len(mod.InputFormats))
		for _, f := range mod.InputFormats {
			formats = append(formats, string(f))
		}
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Inputs:"), ValueStyle.Render(strings.Join(formats, ", "))))
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
