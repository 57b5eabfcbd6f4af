// Package server exposes the export controller over HTTP so a detached UI can
// drive a job and follow it through server-sent events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/events"
	"github.com/kerbaras/docport/pkg/services"
)

const (
	maxBodyBytes      = 1 << 20
	subscriberBuffer  = 64
	defaultKeepAlive  = 15 * time.Second
	defaultReadHeader = 5 * time.Second
)

var ErrAlreadyStarted = errors.New("server already started")

// Commander executes UI commands.
type Commander interface {
	Handle(ctx context.Context, cmd services.Command) (services.Reply, error)
}

// Subscriber hands out event streams.
type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithKeepAlive sets the interval of SSE comment pings.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

type Server struct {
	addr      string
	commands  Commander
	bus       Subscriber
	log       *slog.Logger
	clock     func() time.Time
	keepAlive time.Duration

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	startTime time.Time
}

func New(commands Commander, bus Subscriber, addr string, opts ...Option) *Server {
	s := &Server{
		addr:      addr,
		commands:  commands,
		bus:       bus,
		log:       slog.Default(),
		clock:     time.Now,
		keepAlive: defaultKeepAlive,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the routed handler without binding a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/commands", s.handleCommand)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return ErrAlreadyStarted
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeader,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server stopped", "error", err)
		}
	}()
	s.log.Info("control server listening", "addr", listener.Addr().String())
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.server = nil
	s.listener = nil
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type healthResponse struct {
	Status        string `json:"status"`
	Time          string `json:"time"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	started := s.startTime
	s.mu.RUnlock()
	var uptime int64
	if !started.IsZero() {
		uptime = int64(s.clock().Sub(started).Seconds())
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Time:          s.clock().UTC().Format(time.RFC3339),
		UptimeSeconds: uptime,
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, services.Reply{Error: "payload exceeds limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, services.Reply{Error: "unable to read body"})
		return
	}
	var cmd services.Command
	if err := json.Unmarshal(body, &cmd); err != nil || cmd.Action == "" {
		writeJSON(w, http.StatusBadRequest, services.Reply{Error: "invalid command"})
		return
	}

	reply, err := s.commands.Handle(r.Context(), cmd)
	status := http.StatusOK
	if errors.Is(err, services.ErrUnknownAction) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, reply)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	reply, err := s.commands.Handle(r.Context(), services.Command{Action: services.ActionCurrentState})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, reply)
		return
	}
	writeJSON(w, http.StatusOK, reply.Data)
}

// handleEvents streams bus events as SSE, starting with a state snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, services.Reply{Error: "streaming not supported"})
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ch, cancel := s.bus.Subscribe(subscriberBuffer)
	defer cancel()

	if reply, err := s.commands.Handle(r.Context(), services.Command{Action: services.ActionCurrentState}); err == nil {
		if st, ok := reply.Data.(*data.JobState); ok {
			snapshot := events.State(st)
			snapshot.Time = s.clock()
			writeEvent(w, snapshot)
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				s.log.Debug("event stream closed", "error", err)
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, payload)
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
