package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the board and blocks until the user quits or deps.Ctx is done.
func Run(deps Deps) error {
	m := New(deps)
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.deps.Ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && errors.Is(m.deps.Ctx.Err(), context.Canceled) {
		return nil
	}
	return err
}
