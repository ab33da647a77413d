// HomeDeck panel - headless dashboard daemon.
//
// Connects to a HomeDeck server, keeps a local device cache with derived
// card view models, and runs the OTA and sensor polling loops. A render
// hook logs dashboard snapshots; embedded frontends subscribe to the
// same hook.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmorrell/homedeck/internal/dashboard"
	"github.com/jmorrell/homedeck/internal/device"
	"github.com/jmorrell/homedeck/internal/infrastructure/config"
	"github.com/jmorrell/homedeck/internal/infrastructure/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/panel.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the panel controller and blocks until shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting HomeDeck panel", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.LoadPanel(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	controller := dashboard.NewController(cfg.Panel)
	controller.SetLogger(log)

	controller.Store().SetRenderHook(func(cards []dashboard.Card, agg device.Aggregates) {
		log.Debug("dashboard rendered",
			"cards", len(cards),
			"active_devices", agg.ActiveDevices,
			"energy_kw", agg.EnergyKW,
		)
	})

	if err := controller.Start(ctx); err != nil {
		return fmt.Errorf("starting panel controller: %w", err)
	}
	defer controller.Close()
	log.Info("panel controller started",
		"server", cfg.Panel.ServerURL,
		"devices", len(controller.Store().Devices()),
	)

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, stopping polling loops")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOMEDECK_PANEL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMEDECK_PANEL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
