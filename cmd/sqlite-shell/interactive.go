package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/sqlite-runtime/sqlite"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#1E5AA8")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historyLimit = 20

type shellModel struct {
	err     error
	rt      *sqlite.Runtime
	conn    *sqlite.Conn
	engine  string
	path    string
	ro      bool
	input   textinput.Model
	history []entry
	recall  []string
	recallI int
}

type entry struct {
	stmt   string
	output string
	err    error
}

type openedMsg struct {
	err  error
	rt   *sqlite.Runtime
	conn *sqlite.Conn
}

type ranMsg struct {
	stmt   string
	output string
	err    error
}

func newShellModel(engineFile, dbPath string, readOnly bool) *shellModel {
	ti := textinput.New()
	ti.Placeholder = "SELECT ..."
	ti.Prompt = "sql> "
	ti.Width = 70
	ti.Focus()
	return &shellModel{
		engine: engineFile,
		path:   dbPath,
		ro:     readOnly,
		input:  ti,
	}
}

func (m *shellModel) Init() tea.Cmd {
	return m.openDatabase
}

func (m *shellModel) openDatabase() tea.Msg {
	rt, conn, err := openConn(context.Background(), m.engine, m.path, m.ro)
	if err != nil {
		return openedMsg{err: err}
	}
	return openedMsg{rt: rt, conn: conn}
}

func (m *shellModel) runStatement(stmt string) tea.Cmd {
	return func() tea.Msg {
		var b strings.Builder
		if err := runStatement(m.conn, stmt, &b); err != nil {
			return ranMsg{stmt: stmt, err: err}
		}
		return ranMsg{stmt: stmt, output: strings.TrimRight(b.String(), "\n")}
	}
}

func (m *shellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.conn != nil {
				m.conn.Close()
			}
			if m.rt != nil {
				m.rt.Close(context.Background())
			}
			return m, tea.Quit

		case "enter":
			stmt := strings.TrimSpace(m.input.Value())
			if stmt == "" || m.conn == nil {
				return m, nil
			}
			m.recall = append(m.recall, stmt)
			m.recallI = len(m.recall)
			m.input.SetValue("")
			return m, m.runStatement(stmt)

		case "up":
			if m.recallI > 0 {
				m.recallI--
				m.input.SetValue(m.recall[m.recallI])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.recallI < len(m.recall)-1 {
				m.recallI++
				m.input.SetValue(m.recall[m.recallI])
				m.input.CursorEnd()
			} else {
				m.recallI = len(m.recall)
				m.input.SetValue("")
			}
			return m, nil
		}

	case openedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.conn = msg.conn

	case ranMsg:
		m.history = append(m.history, entry{stmt: msg.stmt, output: msg.output, err: msg.err})
		if len(m.history) > historyLimit {
			m.history = m.history[len(m.history)-historyLimit:]
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *shellModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
	}
	if m.conn == nil {
		return "Opening " + m.path + "..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("SQLite Shell"))
	b.WriteString(" ")
	b.WriteString(m.path)
	if m.ro {
		b.WriteString(" (read-only)")
	}
	b.WriteString("\n\n")

	for _, e := range m.history {
		b.WriteString(headerStyle.Render("sql> " + e.stmt))
		b.WriteString("\n")
		if e.err != nil {
			b.WriteString(errorStyle.Render(e.err.Error()))
		} else {
			b.WriteString(resultStyle.Render(e.output))
		}
		b.WriteString("\n\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter run • ↑/↓ history • esc quit"))
	return b.String()
}

func runInteractive(engineFile, dbPath string, readOnly bool) error {
	p := tea.NewProgram(newShellModel(engineFile, dbPath, readOnly), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
