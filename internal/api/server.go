package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/lumen/internal/infrastructure/config"
	"github.com/nerrad567/lumen/internal/infrastructure/logging"
	"github.com/nerrad567/lumen/internal/predictor"
	"github.com/nerrad567/lumen/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// PreferenceSource reads learned preferences, satisfied by *predictor.SQLiteStore.
type PreferenceSource interface {
	List(ctx context.Context) ([]predictor.Preference, error)
	Overrides(ctx context.Context, limit int) ([]predictor.Override, error)
}

// StatusSource reports the control loop state, satisfied by *telemetry.Recorder.
type StatusSource interface {
	Snapshot() telemetry.Snapshot
}

// HealthChecker is implemented by every infrastructure client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Preferences PreferenceSource
	Status      StatusSource
	Metrics     http.Handler
	Checks      map[string]HealthChecker
	Version     string
}

// Server is the status HTTP server.
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	preferences PreferenceSource
	status      StatusSource
	metrics     http.Handler
	checks      map[string]HealthChecker
	version     string

	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
// The server is not started until Start is called.
//
// Parameters:
//   - deps: Logger and Preferences are required; the rest are optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Preferences == nil {
		return nil, fmt.Errorf("preference source is required")
	}

	return &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		preferences: deps.Preferences,
		status:      deps.Status,
		metrics:     deps.Metrics,
		checks:      deps.Checks,
		version:     deps.Version,
	}, nil
}

// Start binds the listener and serves in the background.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close waits for in-flight requests, then closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
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
