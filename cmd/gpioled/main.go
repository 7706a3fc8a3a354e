// gpioled drives a single active-low LED on a GPIO line.
//
// The daemon claims the pin named by the hardware description, publishes a
// device node that accepts one-byte commands, and blinks the LED from a
// one-shot toggler. Optional services expose the device over MQTT and HTTP
// and record its history in InfluxDB and the SQLite audit trail.
//
// Configuration is read from GPIOLED_CONFIG (default configs/config.yaml).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	_ "github.com/nerrad567/gpioled/migrations"

	"github.com/nerrad567/gpioled/internal/api"
	"github.com/nerrad567/gpioled/internal/audit"
	"github.com/nerrad567/gpioled/internal/bridges/mqttctl"
	"github.com/nerrad567/gpioled/internal/chardev"
	"github.com/nerrad567/gpioled/internal/gpio"
	"github.com/nerrad567/gpioled/internal/history"
	"github.com/nerrad567/gpioled/internal/hwdesc"
	"github.com/nerrad567/gpioled/internal/infrastructure/config"
	"github.com/nerrad567/gpioled/internal/infrastructure/database"
	"github.com/nerrad567/gpioled/internal/infrastructure/influxdb"
	"github.com/nerrad567/gpioled/internal/infrastructure/logging"
	"github.com/nerrad567/gpioled/internal/infrastructure/mqtt"
	"github.com/nerrad567/gpioled/internal/led"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

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
func run(ctx context.Context) (err error) { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting gpioled",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing useful to do on exit
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database and audit trail
	db, err := database.Open(ctx, database.Config{
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
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schema, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("database ready", "path", db.Path(), "schema", schema)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	if keep := cfg.Events.AuditRetention(); keep > 0 {
		pruned, pruneErr := auditRepo.Prune(ctx, time.Now().Add(-keep))
		if pruneErr != nil {
			return fmt.Errorf("pruning audit log: %w", pruneErr)
		}
		if pruned > 0 {
			log.Info("pruned audit log", "removed", pruned, "retention_days", cfg.Events.AuditRetentionDays)
		}
	}
	auditRec := audit.NewRecorder(auditRepo, cfg.Events.Buffer, log)
	defer func() {
		auditRec.Close()
		if n := auditRec.Dropped(); n > 0 {
			log.Warn("audit entries dropped", "count", n)
		}
	}()

	// The bus is closed before the recorder, so queued events reach it.
	bus := led.NewBus(cfg.Events.Buffer, log)
	defer bus.Close()
	bus.Subscribe(auditRec)

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB, log.With("component", "influxdb"))
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
			points, failed := influxClient.Stats()
			log.Info("InfluxDB closed", "points", points, "failed_batches", failed)
		}()
		bus.Subscribe(history.NewRecorder(influxClient))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub, subscribed before the device loads so clients see
	// every event.
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		hubCtx, stopHub := context.WithCancel(context.Background())
		defer stopHub()
		go hub.Run(hubCtx)
		bus.Subscribe(hub)
	}

	// Device
	opts, err := deviceOptions(cfg, log)
	if err != nil {
		return err
	}
	opts.Events = bus

	if err := led.Init(ctx, opts); err != nil {
		var se *led.StartupError
		if errors.As(err, &se) {
			log.Error("device failed to load", "step", string(se.Step), "error", se.Err)
		}
		return fmt.Errorf("loading device: %w", err)
	}
	defer func() {
		log.Info("unloading device")
		if exitErr := led.Exit(context.Background()); exitErr != nil {
			log.Error("error unloading device", "error", exitErr)
			err = multierr.Append(err, exitErr)
		}
	}()
	dev := led.Current()
	log.Info("device loaded",
		"name", dev.Name(),
		"identity", dev.Identity().String(),
		"node", dev.NodePath(),
		"pin", dev.Pin().String(),
	)

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		var bridge *mqttctl.Bridge
		mqttClient, bridge, err = startMQTT(ctx, cfg, dev, auditRec, log)
		if err != nil {
			return err
		}
		defer func() {
			bridge.Stop()
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		bus.Subscribe(bridge)
	} else {
		log.Info("MQTT disabled")
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Security:  cfg.Security,
			Logger:    log,
			Device:    dev,
			AuditRepo: auditRepo,
			Auditor:   auditRec,
			Hub:       hub,
			Version:   version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	waitForShutdown(ctx, log, cfg.Logging.Level)
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, MQTT, device, hub,
	// InfluxDB, bus, audit recorder, database.
	return nil
}

// waitForShutdown blocks until ctx is cancelled. SIGUSR1 meanwhile toggles
// debug logging.
func waitForShutdown(ctx context.Context, log *logging.Logger, configuredLevel string) {
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)

	for {
		select {
		case <-ctx.Done():
			return
		case <-usr1:
			level := log.ToggleDebug(configuredLevel)
			log.Warn("log level changed", "level", level.String())
		}
	}
}

// deviceOptions builds the device collaborators selected by cfg.
func deviceOptions(cfg *config.Config, log *logging.Logger) (led.Options, error) {
	driver, err := newPinDriver(cfg.GPIO)
	if err != nil {
		return led.Options{}, err
	}
	pins := gpio.NewManager(driver)
	pins.SetLogger(log)

	resolver, err := newResolver(cfg.Hardware)
	if err != nil {
		return led.Options{}, err
	}

	publisher := chardev.NewPublisher(cfg.Device.NodeDir)
	publisher.SetLogger(log)

	return led.Options{
		Name:        cfg.Device.Name,
		Major:       cfg.Device.Major,
		BaseMinor:   cfg.Device.Minor,
		NodePath:    cfg.Hardware.NodePath,
		PinProperty: cfg.Hardware.PinProperty,
		PinIndex:    cfg.Hardware.PinIndex,
		Label:       cfg.Device.Label,
		Allocator:   chardev.NewAllocator(),
		Registrar:   chardev.NewRegistrar(),
		Publisher:   publisher,
		Resolver:    resolver,
		Pins:        pins,
		Logger:      log,
	}, nil
}

// newPinDriver returns the GPIO driver named by cfg.Driver.
func newPinDriver(cfg config.GPIOConfig) (gpio.Driver, error) {
	switch cfg.Driver {
	case config.GPIODriverSim:
		return gpio.NewSimDriver(cfg.SimLines), nil
	case config.GPIODriverCDev:
		d, err := gpio.NewCDevDriver(cfg.Chip)
		if err != nil {
			return nil, fmt.Errorf("opening GPIO chip %s: %w", cfg.Chip, err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown gpio driver %q", cfg.Driver)
	}
}

// newResolver returns the hardware description named by cfg.Source.
func newResolver(cfg config.HardwareConfig) (hwdesc.Resolver, error) {
	switch cfg.Source {
	case config.HardwareSourceDeviceTree:
		return hwdesc.NewDeviceTree(os.DirFS(cfg.DeviceTreeRoot)), nil
	case config.HardwareSourceFile:
		f, err := hwdesc.LoadFile(cfg.DescriptionFile)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown hardware source %q", cfg.Source)
	}
}

// startMQTT connects to the broker and starts the command bridge.
func startMQTT(ctx context.Context, cfg *config.Config, dev *led.Device, auditor mqttctl.Auditor, log *logging.Logger) (*mqtt.Client, *mqttctl.Bridge, error) {
	client, err := mqtt.Connect(ctx, cfg.MQTT, log.With("component", "mqtt"))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	bridge, err := mqttctl.New(mqttctl.Options{
		Client:  client,
		Target:  dev,
		Auditor: auditor,
		Logger:  log,
		QoS:     client.QoS(),
	})
	if err != nil {
		client.Close() //nolint:errcheck // best effort on error path
		return nil, nil, fmt.Errorf("creating MQTT bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		client.Close() //nolint:errcheck // best effort on error path
		return nil, nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	client.OnReconnect(bridge.Resync)
	return client, bridge, nil
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
