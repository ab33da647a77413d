package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmorrell/homedeck/internal/infrastructure/config"
)

// Default poll cadences, used when the configuration omits one.
const (
	defaultOTAPoll       = 10 * time.Second
	defaultSensorPoll    = 30 * time.Second
	defaultDeviceRefresh = time.Hour
)

// Controller wires the panel components together and owns every polling
// loop as a cancellable task. Close stops all of them; no timer outlives
// the controller.
type Controller struct {
	client  *Client
	store   *Store
	updates *Coordinator
	sensors *Monitor
	chat    *Relay
	logger  Logger

	otaPoll       time.Duration
	sensorPoll    time.Duration
	deviceRefresh time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController builds the full panel client from configuration.
func NewController(cfg config.PanelConfig) *Controller {
	client := NewClient(cfg)
	store := NewStore(client)
	monitor := NewMonitor(client, 0)
	updates := NewCoordinator(client, monitor)
	relay := NewRelay(client, store)

	c := &Controller{
		client:        client,
		store:         store,
		updates:       updates,
		sensors:       monitor,
		chat:          relay,
		logger:        noopLogger{},
		otaPoll:       intervalOrDefault(cfg.OTAPollInterval, defaultOTAPoll),
		sensorPoll:    intervalOrDefault(cfg.SensorPollInterval, defaultSensorPoll),
		deviceRefresh: intervalOrDefault(cfg.RefreshInterval, defaultDeviceRefresh),
	}

	// New firmware may change reported capabilities, so a completed
	// rollout reloads the device list.
	updates.SetReloadHook(func() {
		reloadCtx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
		defer cancel()
		//nolint:errcheck // LoadDevices fails soft and logs internally
		c.store.LoadDevices(reloadCtx)
	})

	return c
}

// SetLogger attaches a logger to the controller and its components.
func (c *Controller) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	c.logger = logger
	c.store.SetLogger(logger)
	c.updates.SetLogger(logger)
	c.sensors.SetLogger(logger)
}

// Store exposes the device cache for rendering surfaces.
func (c *Controller) Store() *Store { return c.store }

// Updates exposes the OTA coordinator.
func (c *Controller) Updates() *Coordinator { return c.updates }

// Sensors exposes the telemetry monitor.
func (c *Controller) Sensors() *Monitor { return c.sensors }

// Chat exposes the chat relay.
func (c *Controller) Chat() *Relay { return c.chat }

// Start logs in, performs the initial load, and launches the polling
// loops. It returns an error only when authentication fails; load
// failures are soft and retried by the refresh loops.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.client.Login(ctx); err != nil {
		return fmt.Errorf("panel login: %w", err)
	}

	var taskCtx context.Context
	taskCtx, c.cancel = context.WithCancel(context.Background())

	// Initial state; both fail soft.
	//nolint:errcheck // logged internally, refresh loops retry
	c.store.LoadDevices(ctx)
	//nolint:errcheck // logged internally, refresh loops retry
	c.sensors.Refresh(ctx)

	c.runTask(taskCtx, "ota-poll", c.otaPoll, c.updates.Poll)
	c.runTask(taskCtx, "sensor-refresh", c.sensorPoll, func(ctx context.Context) {
		//nolint:errcheck // logged internally
		c.sensors.Refresh(ctx)
	})
	c.runTask(taskCtx, "device-refresh", c.deviceRefresh, func(ctx context.Context) {
		//nolint:errcheck // logged internally
		c.store.LoadDevices(ctx)
	})

	c.logger.Info("panel started",
		"ota_poll", c.otaPoll,
		"sensor_poll", c.sensorPoll,
		"device_refresh", c.deviceRefresh)
	return nil
}

// Close stops every polling loop and waits for them to exit.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// runTask runs fn on a ticker until the context is cancelled.
func (c *Controller) runTask(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Info("panel task stopped", "task", name)
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

func intervalOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
