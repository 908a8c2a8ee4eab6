package console

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zombor/walkingpad-tracker/internal/status"
)

// Run shows the console until the user quits or ctx is cancelled
func Run(ctx context.Context, ctrl Controller, history History, reporter *status.Reporter) error {
	model := NewModel(ctx, ctrl, history, reporter.Snapshot())
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := subscribe(program, reporter)
	defer unsubscribe()

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// subscribe forwards reporter changes into the program's update loop
func subscribe(program *tea.Program, reporter *status.Reporter) func() {
	return reporter.Subscribe(func(s status.Snapshot) {
		program.Send(snapshotMsg(s))
	})
}
