package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gpioled/internal/audit"
	"github.com/nerrad567/gpioled/internal/chardev"
	"github.com/nerrad567/gpioled/internal/infrastructure/config"
	"github.com/nerrad567/gpioled/internal/infrastructure/database"
	"github.com/nerrad567/gpioled/internal/led"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GPIOLED_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// writeConfig writes a config for the simulated driver and returns the
// node directory and database path it uses.
func writeConfig(t *testing.T, description string) (nodeDir, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	nodeDir = filepath.Join(dir, "run")
	dbPath = filepath.Join(dir, "gpioled.db")
	descPath := filepath.Join(dir, "hw.yaml")
	if err := os.WriteFile(descPath, []byte(description), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := `
device:
  name: led
  node_dir: "` + nodeDir + `"
hardware:
  source: file
  description_file: "` + descPath + `"
  node_path: /gpioled
  pin_property: led-gpios
gpio:
  driver: sim
  sim_lines: 32
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: false
api:
  enabled: false
influxdb:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
`
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GPIOLED_CONFIG", cfgPath)
	return nodeDir, dbPath
}

const validDescription = `
nodes:
  - path: /gpioled
    compatible: gpioled
    properties:
      led-gpios: [17]
`

// TestRun_MissingPin verifies run reports the failing startup step and
// leaves no node behind.
func TestRun_MissingPin(t *testing.T) {
	nodeDir, _ := writeConfig(t, `
nodes:
  - path: /gpioled
    properties:
      other-gpios: [4]
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	var se *led.StartupError
	if !errors.As(err, &se) || se.Step != led.StepResolvePin {
		t.Fatalf("run() error = %v, want StartupError at %q", err, led.StepResolvePin)
	}
	if _, statErr := os.Stat(filepath.Join(nodeDir, "led")); !os.IsNotExist(statErr) {
		t.Errorf("node left behind after failed load: %v", statErr)
	}
}

// TestRun_SimulatedDevice starts the daemon on the simulated driver, drives
// it through its node and checks the audit trail after shutdown.
func TestRun_SimulatedDevice(t *testing.T) {
	nodeDir, dbPath := writeConfig(t, validDescription)
	nodePath := filepath.Join(nodeDir, "led")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if dev := led.Current(); dev != nil && dev.Loaded() {
			break
		}
		select {
		case err := <-errc:
			t.Fatalf("run() exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("device never loaded")
		}
		time.Sleep(20 * time.Millisecond)
	}

	client, err := chardev.Dial(ctx, nodePath)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if n, err := client.Write([]byte{led.CommandOn}); n != 1 || err != nil {
		t.Errorf("Write(ON) = %d, %v; want 1, nil", n, err)
	}
	if _, err := client.Write([]byte{0x07}); !errors.Is(err, chardev.ErrInvalidArgument) {
		t.Errorf("Write(0x07) error = %v, want ErrInvalidArgument", err)
	}
	client.Close() //nolint:errcheck // test cleanup

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	if _, err := os.Stat(nodePath); !os.IsNotExist(err) {
		t.Errorf("node still present after shutdown: %v", err)
	}

	db, err := database.Open(context.Background(), database.Config{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	result, err := audit.NewSQLiteRepository(db.DB).List(context.Background(), audit.Filter{EntityID: "led"})
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, l := range result.Logs {
		seen[l.Action] = true
	}
	for _, action := range []string{"loaded", "level_changed", "command_rejected", "unloaded"} {
		if !seen[action] {
			t.Errorf("audit trail missing %q (got %v)", action, seen)
		}
	}
}

func TestNewPinDriver(t *testing.T) {
	if _, err := newPinDriver(config.GPIOConfig{Driver: config.GPIODriverSim, SimLines: 4}); err != nil {
		t.Errorf("sim driver error = %v", err)
	}
	if _, err := newPinDriver(config.GPIOConfig{Driver: "spi"}); err == nil {
		t.Error("unknown driver accepted")
	}
}

func TestNewResolver(t *testing.T) {
	if _, err := newResolver(config.HardwareConfig{Source: config.HardwareSourceDeviceTree, DeviceTreeRoot: t.TempDir()}); err != nil {
		t.Errorf("devicetree resolver error = %v", err)
	}
	if _, err := newResolver(config.HardwareConfig{Source: config.HardwareSourceFile, DescriptionFile: "/nonexistent.yaml"}); err == nil {
		t.Error("missing description file accepted")
	}
	if _, err := newResolver(config.HardwareConfig{Source: "acpi"}); err == nil {
		t.Error("unknown source accepted")
	}
}
