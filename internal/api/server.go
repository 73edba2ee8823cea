package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/ssc-monitor/internal/bridges/ssc"
	"github.com/nerrad567/ssc-monitor/internal/infrastructure/config"
	"github.com/nerrad567/ssc-monitor/internal/infrastructure/logging"
	"github.com/nerrad567/ssc-monitor/internal/publish"
	"github.com/nerrad567/ssc-monitor/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BridgeMetricsProvider exposes SSC bridge counters. Satisfied by *ssc.Bridge.
type BridgeMetricsProvider interface {
	Metrics() ssc.BridgeMetrics
}

// EngineStatsProvider exposes reconciliation counters. Satisfied by *state.Engine.
type EngineStatsProvider interface {
	Stats() state.EngineStats
}

// MQTTStatus reports broker connectivity. Satisfied by *mqtt.Client.
type MQTTStatus interface {
	IsConnected() bool
}

// PublisherStatsProvider exposes MQTT republisher counters.
// Satisfied by *publish.MQTTPublisher.
type PublisherStatsProvider interface {
	Stats() publish.MQTTStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Store     *state.Store
	Engine    EngineStatsProvider    // optional
	Bridge    BridgeMetricsProvider  // optional
	MQTT      MQTTStatus             // optional
	Publisher PublisherStatsProvider // optional
	Version   string
}

// Server is the HTTP query surface and WebSocket fan-out.
//
// The server is created with New() and started with Start(). The hub is
// registered as a store listener in New, so every reconciled update is
// pushed to connected clients.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	store     *state.Store
	engine    EngineStatsProvider
	bridge    BridgeMetricsProvider
	mqtt      MQTTStatus
	publisher PublisherStatsProvider
	version   string
	startTime time.Time
	hub       *Hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// Parameters:
//   - deps: Logger and Store are required; the rest are optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		store:     deps.Store,
		engine:    deps.Engine,
		bridge:    deps.Bridge,
		mqtt:      deps.MQTT,
		publisher: deps.Publisher,
		version:   deps.Version,
		startTime: time.Now(),
	}

	s.hub = NewHub(s.wsCfg, s.logger, s.store)
	s.store.AddListener(s.hub)

	return s, nil
}

// Start binds the listener and serves HTTP in a background goroutine.
//
// The bind happens synchronously so an address in use is reported here.
//
// Parameters:
//   - ctx: Parent context for background goroutines
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	srv := s.server
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	cancel := s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	// Cancel background goroutines; the hub disconnects its clients.
	if cancel != nil {
		cancel()
	}

	ctx, cancelTimeout := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancelTimeout()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
