// Package api provides the HTTP REST API and WebSocket server for HomeDeck.
//
// It exposes device registry operations, room management, sensor telemetry,
// firmware updates, bulk configuration, the chat relay, and real-time state
// updates to user interfaces (wall panels, mobile apps, web admin).
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmorrell/homedeck/internal/audit"
	"github.com/jmorrell/homedeck/internal/auth"
	"github.com/jmorrell/homedeck/internal/chat"
	"github.com/jmorrell/homedeck/internal/device"
	"github.com/jmorrell/homedeck/internal/infrastructure/config"
	"github.com/jmorrell/homedeck/internal/infrastructure/database"
	"github.com/jmorrell/homedeck/internal/infrastructure/logging"
	"github.com/jmorrell/homedeck/internal/infrastructure/mqtt"
	"github.com/jmorrell/homedeck/internal/ota"
	"github.com/jmorrell/homedeck/internal/provision"
	"github.com/jmorrell/homedeck/internal/room"
	"github.com/jmorrell/homedeck/internal/sensor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Registry    *device.Registry
	History     device.StateHistoryRepository
	Rooms       room.Repository
	Sensors     *sensor.Service
	Updates     *ota.Manager
	Chat        *chat.Service
	Provision   *provision.Service
	Credentials *auth.Credentials
	Audit       audit.Repository
	MQTT        *mqtt.Client
	DB          *database.DB
	Version     string
}

// Server is the HTTP API server for HomeDeck.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	registry  *device.Registry
	history   device.StateHistoryRepository
	rooms     room.Repository
	sensors   *sensor.Service
	updates   *ota.Manager
	chat      *chat.Service
	provision *provision.Service
	creds     *auth.Credentials
	audit     audit.Repository
	mqtt      *mqtt.Client
	db        *database.DB
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, registry, rooms, sensors)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Rooms == nil {
		return nil, fmt.Errorf("room repository is required")
	}
	if deps.Sensors == nil {
		return nil, fmt.Errorf("sensor service is required")
	}
	// MQTT, chat, OTA, and audit are optional; the relevant endpoints
	// degrade gracefully when their dependency is absent.

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		history:   deps.History,
		rooms:     deps.Rooms,
		sensors:   deps.Sensors,
		updates:   deps.Updates,
		chat:      deps.Chat,
		provision: deps.Provision,
		creds:     deps.Credentials,
		audit:     deps.Audit,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, launches the ticket cleanup loop, and starts
// the HTTP listener in a background goroutine. The server can be stopped
// with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Periodic ticket cleanup to prevent memory leaks
	go s.cleanTicketsLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
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
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
