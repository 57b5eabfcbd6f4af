package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/docport/pkg/app/components"
	"github.com/kerbaras/docport/pkg/app/screens"
	"github.com/kerbaras/docport/pkg/events"
)

// Subscriber hands out bus subscriptions.
type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

type App struct {
	controls screens.Controls
	bus      Subscriber
	opts     []tea.ProgramOption
}

func NewApp(controls screens.Controls, bus Subscriber, opts ...tea.ProgramOption) *App {
	return &App{controls: controls, bus: bus, opts: opts}
}

// Result is what the export screen saw when the program exited.
type Result struct {
	Tracker   *components.ProgressTracker
	Cancelled bool
}

// Run subscribes to the bus, calls start, then shows the export progress
// screen until the job completes, the user quits, or ctx is done. Quitting
// does not stop the job.
func (a *App) Run(ctx context.Context, start func(context.Context) error) (*Result, error) {
	sub, unsubscribe := a.bus.Subscribe(256)
	defer unsubscribe()

	if start != nil {
		if err := start(ctx); err != nil {
			return nil, err
		}
	}

	model := screens.NewExportScreen(ctx, a.controls, sub)
	opts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, a.opts...)
	p := tea.NewProgram(model, opts...)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	return &Result{Tracker: model.Tracker(), Cancelled: model.Cancelled()}, err
}
