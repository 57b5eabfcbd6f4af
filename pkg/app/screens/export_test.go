package screens

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockControls struct {
	state     *data.JobState
	pauses    []bool
	cancelled int
	pauseErr  error
}

func (m *mockControls) TogglePause(_ context.Context, paused bool) error {
	m.pauses = append(m.pauses, paused)
	return m.pauseErr
}

func (m *mockControls) Cancel(context.Context) error {
	m.cancelled++
	return nil
}

func (m *mockControls) State() *data.JobState {
	return m.state
}

func newScreen(t *testing.T) (*ExportScreen, *mockControls, chan events.Event) {
	t.Helper()
	state := data.NewJobState()
	state.IsExporting = true
	state.FileList = []*data.DocumentRef{
		{ID: "1", Status: data.StatusSuccess},
		{ID: "2", Status: data.StatusPending},
	}
	controls := &mockControls{state: state}
	ch := make(chan events.Event, 4)
	return NewExportScreen(context.Background(), controls, ch), controls, ch
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestExportScreenSeedsFromState(t *testing.T) {
	screen, _, _ := newScreen(t)

	assert.Equal(t, 1, screen.Tracker().Exported)
	assert.Equal(t, 2, screen.Tracker().Total)
	assert.Contains(t, screen.View(), "1/2")
	assert.Contains(t, screen.View(), "p: pause/resume")
}

func TestExportScreenWaitsForEvents(t *testing.T) {
	screen, _, ch := newScreen(t)

	ch <- events.Progress(2, 2)
	msg := screen.Init()()
	require.IsType(t, EventMsg{}, msg)

	_, cmd := screen.Update(msg)
	require.NotNil(t, cmd)
	assert.Equal(t, 2, screen.Tracker().Exported)

	close(ch)
	assert.IsType(t, closedMsg{}, cmd())
}

func TestExportScreenQuitsOnComplete(t *testing.T) {
	screen, _, _ := newScreen(t)

	_, cmd := screen.Update(EventMsg(events.Complete(data.Counts{Total: 2, Success: 2})))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, screen.Tracker().Done)
	assert.Contains(t, screen.View(), "q: quit")
}

func TestExportScreenTogglePause(t *testing.T) {
	screen, controls, _ := newScreen(t)

	_, cmd := screen.Update(key("p"))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, []bool{true}, controls.pauses)

	state := controls.state.Clone()
	state.IsPaused = true
	screen.Update(EventMsg(events.State(state)))
	assert.True(t, screen.Tracker().Paused)
	assert.Contains(t, screen.View(), "p: resume")

	_, cmd = screen.Update(key("p"))
	cmd()
	assert.Equal(t, []bool{true, false}, controls.pauses)
}

func TestExportScreenShowsActionError(t *testing.T) {
	screen, controls, _ := newScreen(t)
	controls.pauseErr = errors.New("no export job is running")

	_, cmd := screen.Update(key("p"))
	msg := cmd()
	require.IsType(t, actionErrMsg{}, msg)

	screen.Update(msg)
	assert.Contains(t, screen.View(), "Error: no export job is running")
}

func TestExportScreenCancel(t *testing.T) {
	screen, controls, _ := newScreen(t)

	_, cmd := screen.Update(key("c"))
	require.NotNil(t, cmd)
	assert.True(t, screen.Cancelled())
	assert.True(t, strings.Contains(screen.View(), "Cancelled"))

	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 1, controls.cancelled)
}

func TestExportScreenQuitKey(t *testing.T) {
	screen, _, _ := newScreen(t)

	_, cmd := screen.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestExportScreenResize(t *testing.T) {
	screen, _, _ := newScreen(t)

	screen.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	assert.Equal(t, 40, screen.width)
	assert.Equal(t, 10, screen.height)
}
