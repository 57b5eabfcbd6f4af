package screens

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/docport/pkg/app/components"
	"github.com/kerbaras/docport/pkg/app/styles"
	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/events"
)

// Controls is the part of the orchestrator the export screen drives.
type Controls interface {
	TogglePause(ctx context.Context, paused bool) error
	Cancel(ctx context.Context) error
	State() *data.JobState
}

// EventMsg carries one bus event into the update loop.
type EventMsg events.Event

// closedMsg is sent once the subscription channel is closed.
type closedMsg struct{}

type actionErrMsg struct{ err error }

type ExportScreen struct {
	ctx      context.Context
	controls Controls
	events   <-chan events.Event
	tracker  *components.ProgressTracker

	cancelled bool
	width     int
	height    int
}

func NewExportScreen(ctx context.Context, controls Controls, sub <-chan events.Event) *ExportScreen {
	tracker := components.NewProgressTracker(80)
	if st := controls.State(); st != nil {
		tracker.Seed(st)
	}
	return &ExportScreen{
		ctx:      ctx,
		controls: controls,
		events:   sub,
		tracker:  tracker,
	}
}

// Tracker exposes the folded progress for callers that print a summary after the program exits.
func (s *ExportScreen) Tracker() *components.ProgressTracker {
	return s.tracker
}

func (s *ExportScreen) Cancelled() bool {
	return s.cancelled
}

func (s *ExportScreen) Init() tea.Cmd {
	return s.waitForEvent()
}

func (s *ExportScreen) waitForEvent() tea.Cmd {
	ch := s.events
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return EventMsg(e)
	}
}

func (s *ExportScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.tracker.SetWidth(msg.Width)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return s, tea.Quit
		case "p", " ":
			if s.tracker.Done {
				return s, nil
			}
			paused := !s.tracker.Paused
			return s, s.act(func(ctx context.Context) error {
				return s.controls.TogglePause(ctx, paused)
			})
		case "c":
			if s.tracker.Done {
				return s, nil
			}
			s.cancelled = true
			return s, s.cancel()
		}

	case EventMsg:
		e := events.Event(msg)
		s.tracker.Apply(e)
		if e.Type == events.TypeComplete {
			return s, tea.Quit
		}
		return s, s.waitForEvent()

	case closedMsg:
		return s, tea.Quit

	case actionErrMsg:
		s.tracker.LastErr = msg.err.Error()
	}

	return s, nil
}

func (s *ExportScreen) act(fn func(ctx context.Context) error) tea.Cmd {
	ctx := s.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

func (s *ExportScreen) cancel() tea.Cmd {
	ctx, controls := s.ctx, s.controls
	return func() tea.Msg {
		_ = controls.Cancel(ctx)
		return tea.QuitMsg{}
	}
}

func (s *ExportScreen) View() string {
	help := "p: pause/resume • c: cancel • q: quit"
	if s.tracker.Paused {
		help = "p: resume • c: cancel • q: quit"
	}
	if s.tracker.Done {
		help = "q: quit"
	}

	body := s.tracker.View()
	if s.cancelled {
		body += styles.MutedStyle.Render("Cancelled") + "\n"
	}
	return fmt.Sprintf("%s\n%s", lipgloss.NewStyle().Padding(0, 1).Render(body), styles.HelpStyle.Render(help))
}
