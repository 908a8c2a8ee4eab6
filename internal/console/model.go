// Package console is the interactive terminal front end for the capture
// controller.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zombor/walkingpad-tracker/internal/controller"
	"github.com/zombor/walkingpad-tracker/internal/imaging"
	"github.com/zombor/walkingpad-tracker/internal/reading"
	"github.com/zombor/walkingpad-tracker/internal/status"
)

// historyRows is how many entries the history pane shows
const historyRows = 10

// Controller is the part of the capture controller the console drives
type Controller interface {
	StartCamera(ctx context.Context) error
	StopCamera()
	ToggleAutoCapture(ctx context.Context) (bool, error)
	CaptureFrame(ctx context.Context) error
	HandleManualUpload(ctx context.Context, data []byte, contentType string) error
	ClearHistory() error
	Session() controller.Session
}

// History is the read side of the history store
type History interface {
	Entries() []reading.CapturedReading
}

type mode int

const (
	modeNormal mode = iota
	modeConfirmClear
	modeUploadPath
)

// snapshotMsg carries a reporter change into the update loop
type snapshotMsg status.Snapshot

// actionDoneMsg is sent when a controller call returns. Outcomes reach the
// screen through the reporter.
type actionDoneMsg struct {
	err error
}

// Model is the Bubble Tea model for the capture console
type Model struct {
	ctx     context.Context
	ctrl    Controller
	history History

	snap    status.Snapshot
	session controller.Session
	entries []reading.CapturedReading

	mode  mode
	input string
	width int
}

// NewModel creates a console model seeded with the reporter's current state
func NewModel(ctx context.Context, ctrl Controller, history History, snap status.Snapshot) Model {
	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		history: history,
		snap:    snap,
		session: ctrl.Session(),
		entries: history.Entries(),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case snapshotMsg:
		if msg.Seq < m.snap.Seq {
			return m, nil
		}
		m.snap = status.Snapshot(msg)
		m.refresh()
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			slog.Debug("Console action returned an error", "error", msg.err)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeConfirmClear:
			return m.updateConfirm(msg)
		case modeUploadPath:
			return m.updateUploadPath(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m *Model) refresh() {
	m.session = m.ctrl.Session()
	m.entries = m.history.Entries()
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "s":
		return m, m.run(func(ctx context.Context) error {
			return m.ctrl.StartCamera(ctx)
		})
	case "x":
		return m, m.run(func(context.Context) error {
			m.ctrl.StopCamera()
			return nil
		})
	case "a":
		return m, m.run(func(ctx context.Context) error {
			_, err := m.ctrl.ToggleAutoCapture(ctx)
			return err
		})
	case "c", " ":
		return m, m.run(func(ctx context.Context) error {
			return m.ctrl.CaptureFrame(ctx)
		})
	case "u":
		m.mode = modeUploadPath
		m.input = ""
		return m, nil
	case "C":
		m.mode = modeConfirmClear
		return m, nil
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = modeNormal
	switch msg.String() {
	case "y", "Y":
		return m, m.run(func(context.Context) error {
			return m.ctrl.ClearHistory()
		})
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateUploadPath(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input = ""
		return m, nil
	case tea.KeyEnter:
		path := strings.TrimSpace(m.input)
		m.mode = modeNormal
		m.input = ""
		if path == "" {
			return m, nil
		}
		return m, m.run(func(ctx context.Context) error {
			return uploadFile(ctx, m.ctrl, path)
		})
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeyRunes, tea.KeySpace:
		m.input += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

// run turns a controller call into a command that reports completion
func (m Model) run(action func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{err: action(ctx)}
	}
}

// uploadFile reads path and hands it to the controller as a manual upload
func uploadFile(ctx context.Context, ctrl Controller, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}
	return ctrl.HandleManualUpload(ctx, data, imaging.ContentTypeForExt(filepath.Ext(path)))
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Walking Pad Tracker"))
	b.WriteString("\n\n")
	b.WriteString(m.viewSession())
	b.WriteString("\n")
	b.WriteString(statusStyle(m.snap.Status.Kind).Render(m.snap.Status.Message))
	b.WriteString("\n\n")
	b.WriteString(paneStyle.Render(m.viewHistory()))
	b.WriteString("\n")

	switch m.mode {
	case modeConfirmClear:
		b.WriteString(hotStyle.Render("Clear all history? (y/n)"))
	case modeUploadPath:
		b.WriteString("Upload file: " + m.input + "█")
	default:
		b.WriteString(mutedStyle.Render("s start · x stop · a auto · c capture · u upload · C clear · q quit"))
	}

	return appStyle.Render(b.String())
}

func (m Model) viewSession() string {
	onOff := func(v bool) string {
		if v {
			return "on"
		}
		return "off"
	}

	stats := m.snap.Stats
	parts := []string{
		fmt.Sprintf("Camera: %s", onOff(m.session.Active)),
		fmt.Sprintf("Auto: %s", onOff(m.session.AutoCapture)),
		fmt.Sprintf("Captures: %d", stats.TotalCaptures),
		fmt.Sprintf("Success: %d%%", stats.Rate()),
	}
	line := strings.Join(parts, "  ")

	if m.snap.Last != nil {
		line += "\n" + mutedStyle.Render("Last: "+m.snap.Last.Summary())
	}
	return line
}

func (m Model) viewHistory() string {
	if len(m.entries) == 0 {
		return mutedStyle.Render("No readings yet.")
	}

	row := func(cols ...string) string {
		cells := make([]string, len(cols))
		widths := []int{19, 8, 8, 7, 8, 7}
		for i, c := range cols {
			cells[i] = lipgloss.NewStyle().Width(widths[i]).Render(c)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
	}

	lines := []string{headerStyle.Render(row("Captured", "Time", "Cal", "Speed", "Steps", "Dist"))}
	for i, e := range m.entries {
		if i == historyRows {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("… %d more", len(m.entries)-historyRows)))
			break
		}
		lines = append(lines, row(
			e.CapturedAt.Local().Format("2006-01-02 15:04:05"),
			e.Time, e.Calories, e.Speed, e.Steps, e.Distance,
		))
	}
	return strings.Join(lines, "\n")
}
