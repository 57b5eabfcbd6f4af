package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/events"
	"github.com/kerbaras/docport/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCommander struct {
	handleFunc func(ctx context.Context, cmd services.Command) (services.Reply, error)
}

func (m *mockCommander) Handle(ctx context.Context, cmd services.Command) (services.Reply, error) {
	if m.handleFunc != nil {
		return m.handleFunc(ctx, cmd)
	}
	if cmd.Action == services.ActionCurrentState {
		s := data.NewJobState()
		s.TotalFiles = 3
		return services.Reply{Success: true, Data: s}, nil
	}
	return services.Reply{Success: true}, nil
}

func setupServer(t *testing.T, cmd Commander) (*httptest.Server, *events.Bus) {
	t.Helper()
	bus := events.NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	srv := New(cmd, bus, "127.0.0.1:0",
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return fixed }))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		bus.Close()
		ts.Close()
	})
	return ts, bus
}

func TestServer_Health(t *testing.T) {
	ts, _ := setupServer(t, &mockCommander{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "2024-05-01T12:00:00Z", body.Time)
}

func TestServer_Commands(t *testing.T) {
	var got services.Command
	cmd := &mockCommander{handleFunc: func(_ context.Context, c services.Command) (services.Reply, error) {
		got = c
		switch c.Action {
		case services.ActionStartJob:
			return services.Reply{Success: true, Data: map[string]int{"queued": 2}}, nil
		case services.ActionRetryFailed:
			return services.Reply{Error: services.ErrNothingToRetry.Error()}, services.ErrNothingToRetry
		default:
			err := fmt.Errorf("%w: %q", services.ErrUnknownAction, c.Action)
			return services.Reply{Error: err.Error()}, err
		}
	}}
	ts, _ := setupServer(t, cmd)

	post := func(body string) (*http.Response, map[string]any) {
		resp, err := http.Post(ts.URL+"/api/commands", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp, out
	}

	resp, out := post(`{"action":"start-job","data":{"exportType":"md"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, map[string]any{"queued": float64(2)}, out["data"])
	assert.Equal(t, services.ActionStartJob, got.Action)
	assert.JSONEq(t, `{"exportType":"md"}`, string(got.Data))

	resp, out = post(`{"action":"retry-failed"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, services.ErrNothingToRetry.Error(), out["error"])

	resp, _ = post(`{"action":"launch"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out = post(`{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid command", out["error"])
}

func TestServer_CommandsRejectsLargeBody(t *testing.T) {
	srv := New(&mockCommander{}, events.NewBus(nil), "")

	big := bytes.Repeat([]byte("a"), maxBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/api/commands", bytes.NewReader(big))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_MethodRouting(t *testing.T) {
	ts, _ := setupServer(t, &mockCommander{})

	resp, err := http.Get(ts.URL + "/api/commands")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_State(t *testing.T) {
	ts, _ := setupServer(t, &mockCommander{})

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var state data.JobState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, 3, state.TotalFiles)
	assert.Equal(t, "auto", state.ExportFormat)

	failing := &mockCommander{handleFunc: func(context.Context, services.Command) (services.Reply, error) {
		return services.Reply{Error: "store offline"}, errors.New("store offline")
	}}
	ts, _ = setupServer(t, failing)
	resp, err = http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var e sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && e.name != "":
			return e
		case strings.HasPrefix(line, "event: "):
			e.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			e.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestServer_EventStream(t *testing.T) {
	ts, bus := setupServer(t, &mockCommander{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	first := readEvent(t, reader)
	assert.Equal(t, "state", first.name)
	var snapshot events.Event
	require.NoError(t, json.Unmarshal([]byte(first.data), &snapshot))
	require.NotNil(t, snapshot.State)
	assert.Equal(t, 3, snapshot.State.TotalFiles)

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	bus.Publish(events.Progress(1, 4))
	bus.Publish(events.Log("2024-05-01 12:00:00 Saved a.md"))

	progress := readEvent(t, reader)
	assert.Equal(t, "progress", progress.name)
	assert.Contains(t, progress.data, `"exportedCount":1`)
	assert.Contains(t, progress.data, `"totalCount":4`)

	logLine := readEvent(t, reader)
	assert.Equal(t, "log", logLine.name)
	assert.Contains(t, logLine.data, "Saved a.md")

	cancel()
	require.Eventually(t, func() bool { return bus.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServer_StartAndShutdown(t *testing.T) {
	bus := events.NewBus(nil)
	srv := New(&mockCommander{}, bus, "127.0.0.1:0", WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrAlreadyStarted)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Empty(t, srv.Addr())
	assert.NoError(t, srv.Shutdown(context.Background()))
}
