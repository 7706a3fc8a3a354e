package influxdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gpioled/internal/infrastructure/config"
	"github.com/nerrad567/gpioled/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "gpioled-dev-token",
		Org:           "gpioled",
		Bucket:        "history",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip connects to the dev server or skips the test.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := influxdb.Connect(ctx, testConfig(), nil)
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // test cleanup
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	client, err := influxdb.Connect(context.Background(), cfg, nil)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Fatalf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned a client when disabled")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := influxdb.Connect(ctx, cfg, nil)
	if !errors.Is(err, influxdb.ErrUnreachable) {
		t.Fatalf("Connect() error = %v, want ErrUnreachable", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	// Writes on a nil client are dropped.
	client.WriteLevel("led", "command", false, true, time.Now())
	client.Flush()
	if points, failed := client.Stats(); points != 0 || failed != 0 {
		t.Errorf("Stats() = %d, %d on nil client", points, failed)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	var client *influxdb.Client
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrClosed) {
		t.Errorf("HealthCheck() error = %v, want ErrClosed", err)
	}
}

func TestLevelPoint(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := influxdb.LevelPoint("led", "toggler", false, true, ts)

	if p.Name() != influxdb.MeasurementPinLevel {
		t.Errorf("Name() = %q, want %q", p.Name(), influxdb.MeasurementPinLevel)
	}
	if !p.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", p.Time(), ts)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["device"] != "led" || tags["source"] != "toggler" || len(tags) != 2 {
		t.Errorf("tags = %v", tags)
	}

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["high"] != false || fields["active"] != true || len(fields) != 2 {
		t.Errorf("fields = %v", fields)
	}
}

func TestHealthCheck(t *testing.T) {
	client := connectOrSkip(t)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteLevel(t *testing.T) {
	client := connectOrSkip(t)

	client.WriteLevel("led-test", "command", false, true, time.Now())
	client.WriteLevel("led-test", "toggler", true, false, time.Now())
	client.Flush()

	if points, failed := client.Stats(); points != 2 || failed != 0 {
		t.Errorf("Stats() = %d points, %d failed; want 2, 0", points, failed)
	}
}

func TestClose(t *testing.T) {
	client := connectOrSkip(t)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrClosed) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrClosed", err)
	}
	// Writes after Close are dropped.
	client.WriteLevel("led-test", "command", true, false, time.Now())
	client.Flush()
	if points, _ := client.Stats(); points != 0 {
		t.Errorf("points after Close = %d, want 0", points)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
