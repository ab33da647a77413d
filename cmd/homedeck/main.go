// HomeDeck server - home automation dashboard backend.
//
// Persists devices, rooms, sensors, and firmware updates in SQLite and
// exposes the REST + WebSocket API that panels and the chat relay talk to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	_ "github.com/jmorrell/homedeck/migrations"

	"github.com/jmorrell/homedeck/internal/api"
	"github.com/jmorrell/homedeck/internal/audit"
	"github.com/jmorrell/homedeck/internal/auth"
	"github.com/jmorrell/homedeck/internal/chat"
	"github.com/jmorrell/homedeck/internal/device"
	"github.com/jmorrell/homedeck/internal/infrastructure/config"
	"github.com/jmorrell/homedeck/internal/infrastructure/database"
	"github.com/jmorrell/homedeck/internal/infrastructure/influxdb"
	"github.com/jmorrell/homedeck/internal/infrastructure/logging"
	"github.com/jmorrell/homedeck/internal/infrastructure/mqtt"
	"github.com/jmorrell/homedeck/internal/ota"
	"github.com/jmorrell/homedeck/internal/provision"
	"github.com/jmorrell/homedeck/internal/room"
	"github.com/jmorrell/homedeck/internal/sensor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo,cyclop,funlen // linear startup wiring: each block is one component
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting HomeDeck server",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and run migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device registry with warm cache
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.GetDeviceCount())

	historyRepo := device.NewSQLiteStateHistoryRepository(db.DB)
	roomRepo := room.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Sensor fleet service
	staleAfter := time.Duration(cfg.Sensors.StaleAfter) * time.Second
	sensorSvc := sensor.NewService(sensor.NewSQLiteRepository(db.DB), staleAfter)
	sensorSvc.SetLogger(log)

	// Firmware update manager
	updates := ota.NewManager(
		ota.NewSQLiteRepository(db.DB),
		sensorSvc,
		staleAfter,
		cfg.OTA.Simulate,
		time.Duration(cfg.OTA.SimulateStepSeconds)*time.Second,
	)
	updates.SetLogger(log)
	defer updates.Close()
	if cfg.OTA.Simulate {
		log.Info("OTA simulation enabled", "step_seconds", cfg.OTA.SimulateStepSeconds)
	}

	// Chat relay (optional)
	var chatSvc *chat.Service
	if cfg.Chat.Enabled {
		backend := chat.NewClient(cfg.Chat.BaseURL, cfg.Chat.APIKey, cfg.Chat.Model,
			time.Duration(cfg.Chat.TimeoutSeconds)*time.Second)
		chatSvc = chat.NewService(backend, registry, cfg.Chat.HistoryWindow)
		chatSvc.SetLogger(log)
		log.Info("chat relay enabled", "model", cfg.Chat.Model)
	} else {
		log.Info("chat relay disabled")
	}

	// Provisioning
	prov := provision.NewService(registry, roomRepo)
	prov.SetLogger(log)

	// Dev credentials (optional; API returns 503 on login when absent)
	var creds *auth.Credentials
	if cfg.Security.Dev.Username != "" && cfg.Security.Dev.Password != "" {
		creds, err = auth.NewCredentials(cfg.Security.Dev.Username, cfg.Security.Dev.Password)
		if err != nil {
			return fmt.Errorf("building credentials: %w", err)
		}
	} else {
		log.Warn("no dev credentials configured, login disabled")
	}

	// MQTT ingest bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		ingest := mqtt.NewIngest(mqttClient, sensorSvc, updates, byte(cfg.MQTT.QoS))
		if startErr := ingest.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT ingest: %w", startErr)
		}
		log.Info("MQTT ingest bridge started")
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB reading mirror (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sensorSvc.SetMirror(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Scheduled housekeeping
	scheduler, err := startScheduler(ctx, cfg, sensorSvc, log)
	if err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer func() {
		log.Info("stopping scheduler")
		<-scheduler.Stop().Done()
	}()

	// API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Registry:    registry,
		History:     historyRepo,
		Rooms:       roomRepo,
		Sensors:     sensorSvc,
		Updates:     updates,
		Chat:        chatSvc,
		Provision:   prov,
		Credentials: creds,
		Audit:       auditRepo,
		MQTT:        mqttClient,
		DB:          db,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, scheduler, InfluxDB, MQTT, OTA manager, database.

	log.Info("HomeDeck server stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOMEDECK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMEDECK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startScheduler wires the cron jobs: daily readings retention cleanup
// and the periodic stale-sensor sweep.
//
// Parameters:
//   - ctx: Context attached to every job invocation
//   - cfg: Application configuration
//   - sensors: Sensor service performing the housekeeping
//   - log: Logger instance
//
// Returns:
//   - *cron.Cron: Running scheduler
//   - error: If a schedule expression is invalid
func startScheduler(ctx context.Context, cfg *config.Config, sensors *sensor.Service, log *logging.Logger) (*cron.Cron, error) {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(cfg.Sensors.CleanupSchedule, func() {
		deleted, cleanupErr := sensors.Cleanup(ctx, cfg.Sensors.RetentionDays)
		if cleanupErr != nil {
			log.Error("readings cleanup failed", "error", cleanupErr)
			return
		}
		log.Info("readings cleanup complete", "deleted", deleted, "retention_days", cfg.Sensors.RetentionDays)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.Sensors.CleanupSchedule, err)
	}

	_, err = scheduler.AddFunc(cfg.Sensors.StaleSweepSchedule, func() {
		flagged, sweepErr := sensors.SweepStale(ctx)
		if sweepErr != nil {
			log.Error("stale sensor sweep failed", "error", sweepErr)
			return
		}
		if flagged > 0 {
			log.Warn("stale sensors flagged", "count", flagged)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid stale sweep schedule %q: %w", cfg.Sensors.StaleSweepSchedule, err)
	}

	scheduler.Start()
	log.Info("scheduler started",
		"cleanup", cfg.Sensors.CleanupSchedule,
		"stale_sweep", cfg.Sensors.StaleSweepSchedule,
	)
	return scheduler, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
