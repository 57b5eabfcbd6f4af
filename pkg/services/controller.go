package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/events"
	"github.com/kerbaras/docport/pkg/sources"
)

const (
	ActionGetManifest  = "get-manifest"
	ActionStartJob     = "start-job"
	ActionTogglePause  = "toggle-pause"
	ActionRetryFailed  = "retry-failed"
	ActionReset        = "reset"
	ActionCancel       = "cancel"
	ActionCurrentState = "get-current-state"
	ActionUserInfo     = "get-user-info"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrUnsupported   = errors.New("not supported by this platform")
)

// Command is a request from a UI surface.
type Command struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Reply is the envelope every command is answered with.
type Reply struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ManifestReply struct {
	FileList    []*data.DocumentRef `json:"fileList"`
	FolderCount int                 `json:"folderCount"`
	TotalFiles  int                 `json:"totalFiles"`
	Truncated   bool                `json:"truncated,omitempty"`
}

type manifestRequest struct {
	Refresh bool `json:"refresh"`
}

type startJobRequest struct {
	Format      string            `json:"exportType"`
	Subfolder   string            `json:"subfolder"`
	TypeFormats map[string]string `json:"typeExportSettings"`
}

type pauseRequest struct {
	Paused bool `json:"isPaused"`
}

// Controller translates commands into orchestrator calls.
type Controller struct {
	orch   *Orchestrator
	source sources.Catalog
	bus    events.Publisher
	log    *slog.Logger
}

func NewController(orch *Orchestrator, source sources.Catalog, bus events.Publisher, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if bus == nil {
		bus = nopPublisher{}
	}
	return &Controller{orch: orch, source: source, bus: bus, log: log.With(slog.String("component", "controller"))}
}

// Handle executes cmd. The returned Reply is always usable; err carries the
// failure for callers that branch on it.
func (c *Controller) Handle(ctx context.Context, cmd Command) (Reply, error) {
	v, err := c.dispatch(ctx, cmd)
	if err != nil {
		c.log.Warn("command failed", "action", cmd.Action, "error", err)
		return Reply{Success: false, Error: err.Error()}, err
	}
	return Reply{Success: true, Data: v}, nil
}

func (c *Controller) dispatch(ctx context.Context, cmd Command) (any, error) {
	switch cmd.Action {
	case ActionGetManifest:
		var req manifestRequest
		if err := decodeData(cmd.Data, &req); err != nil {
			return nil, err
		}
		return c.manifest(ctx, req.Refresh)

	case ActionStartJob:
		var req startJobRequest
		if err := decodeData(cmd.Data, &req); err != nil {
			return nil, err
		}
		if err := c.orch.StartJob(ctx, req.Format, req.Subfolder, req.TypeFormats); err != nil {
			return nil, err
		}
		return c.publishState(), nil

	case ActionTogglePause:
		var req pauseRequest
		if err := decodeData(cmd.Data, &req); err != nil {
			return nil, err
		}
		if err := c.orch.TogglePause(ctx, req.Paused); err != nil {
			return nil, err
		}
		return c.publishState(), nil

	case ActionRetryFailed:
		if err := c.orch.RetryFailed(ctx); err != nil {
			return nil, err
		}
		return c.publishState(), nil

	case ActionReset:
		if err := c.orch.Reset(ctx); err != nil {
			return nil, err
		}
		return c.orch.State(), nil

	case ActionCancel:
		if err := c.orch.Cancel(ctx); err != nil {
			return nil, err
		}
		return c.publishState(), nil

	case ActionCurrentState:
		return c.orch.State(), nil

	case ActionUserInfo:
		u, ok := c.source.(sources.UserInfoer)
		if !ok {
			return nil, fmt.Errorf("user info: %w", ErrUnsupported)
		}
		return u.CurrentUser(ctx)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

// manifest returns the stored manifest, discovering it first when asked to or
// when nothing was discovered yet.
func (c *Controller) manifest(ctx context.Context, refresh bool) (*ManifestReply, error) {
	state := c.orch.State()
	if refresh || len(state.FileList) == 0 {
		m, err := c.orch.Discover(ctx)
		if err != nil {
			return nil, err
		}
		state = c.orch.State()
		return &ManifestReply{FileList: state.FileList, FolderCount: state.FolderCount, TotalFiles: len(state.FileList), Truncated: m.Truncated}, nil
	}
	return &ManifestReply{FileList: state.FileList, FolderCount: state.FolderCount, TotalFiles: len(state.FileList)}, nil
}

func (c *Controller) publishState() *data.JobState {
	s := c.orch.State()
	c.bus.Publish(events.State(s))
	return s
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid command data: %w", err)
	}
	return nil
}
