package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/tether/types"
)

// keyMap defines key bindings.
type keyMap struct {
	Quit   key.Binding
	Detail key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Detail: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "toggle detail"),
	),
}

// RuntimesModel is a Bubble Tea model browsing the account's runtimes.
type RuntimesModel struct {
	runtimes []types.RuntimeInfo
	table    table.Model
	detail   bool
	width    int
	height   int
	quitting bool
}

// NewRuntimesModel creates the browser model over a runtime listing.
func NewRuntimesModel(runtimes []types.RuntimeInfo) RuntimesModel {
	columns := []table.Column{
		{Title: "ID", Width: 16},
		{Title: "Label", Width: 20},
		{Title: "Variant", Width: 8},
		{Title: "Phase", Width: 16},
	}

	rows := make([]table.Row, 0, len(runtimes))
	for _, rt := range runtimes {
		rows = append(rows, table.Row{rt.ID, rt.Label, string(rt.Variant), string(rt.Phase)})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 12)),
	)

	return RuntimesModel{runtimes: runtimes, table: t}
}

// Init implements tea.Model.
func (m RuntimesModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m RuntimesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Detail):
			m.detail = !m.detail
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m RuntimesModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Runtimes"))
	b.WriteString("\n")

	if len(m.runtimes) == 0 {
		b.WriteString(ValueStyle.Render("(no runtimes)"))
	} else {
		b.WriteString(m.table.View())
	}

	if m.detail {
		if rt := m.selected(); rt != nil {
			b.WriteString("\n")
			b.WriteString(m.renderDetail(rt))
		}
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("↑/↓ select · enter detail · q quit"))
	return b.String()
}

func (m RuntimesModel) selected() *types.RuntimeInfo {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.runtimes) {
		return nil
	}
	return &m.runtimes[idx]
}

func (m RuntimesModel) renderDetail(rt *types.RuntimeInfo) string {
	var b strings.Builder

	rows := [][]string{
		{"ID", rt.ID},
		{"Label", rt.Label},
		{"Variant", string(rt.Variant)},
		{"Phase", string(rt.Phase)},
	}
	if rt.Proxy.URL != "" {
		rows = append(rows, []string{"Proxy", rt.Proxy.URL})
	}
	rows = append(rows, []string{"Connectable", fmt.Sprintf("%v", rt.Connectable())})

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := row[1]
		if row[0] == "Phase" {
			value = PhaseStyle(string(rt.Phase)).Render(value)
		} else {
			value = ValueStyle.Render(value)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	return BoxStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}

// RunRuntimesTUI runs the runtimes browser.
func RunRuntimesTUI(runtimes []types.RuntimeInfo) error {
	p := tea.NewProgram(NewRuntimesModel(runtimes), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
