package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ta25stage/stagelink/internal/coordinator"
	"github.com/ta25stage/stagelink/internal/dispatch"
	"github.com/ta25stage/stagelink/internal/infrastructure/config"
	"github.com/ta25stage/stagelink/internal/infrastructure/logging"
	"github.com/ta25stage/stagelink/internal/journal"
	"github.com/ta25stage/stagelink/internal/sequence"
	"github.com/ta25stage/stagelink/internal/supervisor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Database is the journal database as seen by the health endpoint.
type Database interface {
	HealthCheck(ctx context.Context) error
	SchemaVersion(ctx context.Context) (string, error)
	Stats() sql.DBStats
}

// Connectivity reports the supervisor's state.
type Connectivity interface {
	Snapshot() supervisor.Snapshot
	TransmitAllowed() bool
}

// ControlLoop reports the coordinator control loop's state.
type ControlLoop interface {
	Stats() coordinator.Stats
	LastCommand() (coordinator.LastCommand, bool)
	SequenceActive() bool
}

// DispatchStats reports dispatcher counters.
type DispatchStats interface {
	Stats() dispatch.Stats
}

// Shows exposes the show catalogue and the running show.
type Shows interface {
	Shows() []sequence.Show
	Running() bool
	Current() uint8
}

// RecorderStats reports journal recorder counters.
type RecorderStats interface {
	Stats() journal.RecorderStats
}

// Bus reports the message bus connection.
type Bus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server. Only Logger is
// required.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Version string

	DB           Database
	Connectivity Connectivity
	Control      ControlLoop
	Dispatcher   DispatchStats
	Shows        Shows
	Journal      journal.Repository
	Recorder     RecorderStats
	Bus          Bus
}

// Server is the HTTP API server for the coordinator.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	version   string
	startTime time.Time

	db           Database
	connectivity Connectivity
	control      ControlLoop
	dispatcher   DispatchStats
	shows        Shows
	journal      journal.Repository
	recorder     RecorderStats
	bus          Bus

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc // cancels the hub on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called, but BroadcastDispatch
// may be registered as a dispatcher observer straight away.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Server{
		cfg:          deps.Config,
		logger:       deps.Logger,
		version:      deps.Version,
		startTime:    time.Now(),
		db:           deps.DB,
		connectivity: deps.Connectivity,
		control:      deps.Control,
		dispatcher:   deps.Dispatcher,
		shows:        deps.Shows,
		journal:      deps.Journal,
		recorder:     deps.Recorder,
		bus:          deps.Bus,
		hub:          NewHub(deps.Config.WebSocket, deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// BroadcastDispatch streams a send result to WebSocket clients subscribed
// to the dispatch channel. It has the dispatch.Observer signature.
func (s *Server) BroadcastDispatch(res dispatch.Result) {
	s.hub.Broadcast(ChannelDispatch, journal.FromResult(res))
}

// BroadcastHeartbeat streams a telemetry heartbeat to WebSocket clients
// subscribed to the heartbeat channel.
func (s *Server) BroadcastHeartbeat(hb coordinator.Heartbeat) {
	s.hub.Broadcast(ChannelHeartbeat, hb)
}
