// Package ui is a thin bubbletea consumer of scanner snapshots. It holds no
// scan logic: it supplies parameters and renders whatever the core streams.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fenilsonani/diskscope/internal/scanner"
	"github.com/fenilsonani/diskscope/pkg/utils"
)

// maxVisibleResults caps how many ranked rows render at once.
const maxVisibleResults = 20

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7C3AED")).
			Bold(true)

	sizeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))
)

// SnapshotMsg carries one published snapshot into the program.
type SnapshotMsg scanner.Snapshot

// ScanDoneMsg signals that the final snapshot has been published.
type ScanDoneMsg struct {
	Final scanner.Snapshot
	Err   error
}

// DeleteDoneMsg carries a deletion outcome.
type DeleteDoneMsg scanner.DeleteOutcome

// ScanModel renders streamed snapshots and drives deletion of selected rows.
type ScanModel struct {
	scn     *scanner.Scanner
	spinner spinner.Model

	scanning bool
	deleting bool
	snap     scanner.Snapshot
	cursor   int
	marked   map[string]struct{}
	status   string
	err      error
}

// NewScanModel builds the scan view around an already configured scanner.
func NewScanModel(scn *scanner.Scanner) *ScanModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = selectedStyle
	return &ScanModel{
		scn:      scn,
		spinner:  s,
		scanning: true,
		marked:   make(map[string]struct{}),
	}
}

// Init starts spinner ticks; the scan itself is launched by Run so its
// snapshots can be forwarded with program.Send.
func (m *ScanModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m *ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SnapshotMsg:
		m.snap = scanner.Snapshot(msg)
		m.clampCursor()
		return m, nil

	case ScanDoneMsg:
		m.scanning = false
		m.snap = msg.Final
		m.err = msg.Err
		m.clampCursor()
		return m, nil

	case DeleteDoneMsg:
		m.deleting = false
		m.marked = make(map[string]struct{})
		m.status = scanner.DeleteOutcome(msg).Describe()
		m.snap.Results = m.scn.Results()
		m.snap.TotalSize = m.scn.TotalSize()
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *ScanModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.scn.Stop()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.snap.Results)-1 && m.cursor < maxVisibleResults-1 {
			m.cursor++
		}
	case " ":
		if m.cursor < len(m.snap.Results) {
			id := m.snap.Results[m.cursor].ID
			if _, ok := m.marked[id]; ok {
				delete(m.marked, id)
			} else {
				m.marked[id] = struct{}{}
			}
		}
	case "d":
		if m.scanning || m.deleting || len(m.marked) == 0 {
			break
		}
		m.deleting = true
		ids := make([]string, 0, len(m.marked))
		for id := range m.marked {
			ids = append(ids, id)
		}
		return m, func() tea.Msg {
			return DeleteDoneMsg(m.scn.DeleteItems(context.Background(), ids))
		}
	case "s":
		if m.scanning {
			m.scn.Stop()
			m.status = "stopping after in-flight work finishes"
		}
	}
	return m, nil
}

// View renders the scan view
func (m *ScanModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("diskscope"))
	b.WriteString("\n")

	switch {
	case m.scanning:
		b.WriteString(fmt.Sprintf("%s scanning... %d entries visited, %s found\n\n",
			m.spinner.View(), m.snap.ProcessedCount, utils.FormatBytes(m.snap.TotalSize)))
	case m.deleting:
		b.WriteString(fmt.Sprintf("%s deleting %d item(s)...\n\n", m.spinner.View(), len(m.marked)))
	default:
		b.WriteString(fmt.Sprintf("scan complete: %d results, %s in %s\n\n",
			len(m.snap.Results), utils.FormatBytes(m.snap.TotalSize), m.snap.Elapsed.Round(10*time.Millisecond)))
	}

	for i, r := range m.snap.Results {
		if i >= maxVisibleResults {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  ... and %d more\n", len(m.snap.Results)-maxVisibleResults)))
			break
		}
		mark := " "
		if _, ok := m.marked[r.ID]; ok {
			mark = "*"
		}
		line := fmt.Sprintf("%s [%s] %-8s %s  %s",
			mark, r.ID[:8], r.Kind, sizeStyle.Render(utils.FormatBytes(r.Size)), r.Path)
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n" + dimStyle.Render(m.status) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString(dimStyle.Render("\n↑/↓ move · space mark · d delete marked · s stop scan · q quit\n"))
	return b.String()
}

func (m *ScanModel) clampCursor() {
	if n := len(m.snap.Results); m.cursor >= n && n > 0 {
		m.cursor = n - 1
	} else if len(m.snap.Results) == 0 {
		m.cursor = 0
	}
}

// Run wires the scanner's snapshot stream into a bubbletea program and
// blocks until the user quits.
func Run(ctx context.Context, scn *scanner.Scanner) error {
	model := NewScanModel(scn)
	program := tea.NewProgram(model, tea.WithAltScreen())

	scn.SetSnapshotFunc(func(snap scanner.Snapshot) {
		program.Send(SnapshotMsg(snap))
	})
	go func() {
		final, err := scn.Scan(ctx)
		program.Send(ScanDoneMsg{Final: final, Err: err})
	}()

	_, err := program.Run()
	return err
}
