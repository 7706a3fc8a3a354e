package influxdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	apihttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	influxlog "github.com/influxdata/influxdb-client-go/v2/log"

	"github.com/nerrad567/gpioled/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second

	// maxWriteRetries bounds how often a failed batch is resent.
	maxWriteRetries = 3
)

// Logger is the logging the client needs. *logging.Logger satisfies it.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Client writes pin level samples to one InfluxDB bucket.
//
// Writes are batched and never block. A batch the server rejects outright
// is discarded and counted; transient failures are retried a few times.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   Logger
	bucket   string

	closed   atomic.Bool
	points   atomic.Uint64
	failures atomic.Uint64
	done     chan struct{}
}

// Connect creates a client and verifies the server answers a ping.
//
// Parameters:
//   - ctx: Bounds the initial ping; a 10s limit applies when ctx has no deadline
//   - cfg: InfluxDB configuration from config.yaml
//   - logger: Receives write failures; may be nil
//
// Returns:
//   - *Client: Client ready for writes
//   - error: ErrDisabled when the section is off, ErrUnreachable otherwise
func Connect(ctx context.Context, cfg config.InfluxDBConfig, logger Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = noopLogger{}
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, cfg.URL, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		logger:   logger,
		bucket:   cfg.Bucket,
		done:     make(chan struct{}),
	}
	c.writeAPI.SetWriteFailedCallback(c.retryPolicy)
	go c.drainErrors()

	return c, nil
}

// clientOptions maps the config section onto the library's options. Points
// carry millisecond precision and a host tag.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())). // #nosec G115 -- positive
		SetPrecision(time.Millisecond).
		SetMaxRetries(maxWriteRetries).
		SetLogLevel(influxlog.ErrorLevel).
		SetApplicationName("gpioled")
	if host, err := os.Hostname(); err == nil {
		opts.AddDefaultTag("host", host)
	}
	return opts
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return errors.New("server not ready")
	}
	return nil
}

// retryPolicy decides whether a failed batch is resent. Client errors other
// than rate limiting will fail again, so the batch is dropped.
func (c *Client) retryPolicy(_ string, werr apihttp.Error, attempts uint) bool {
	retry := werr.StatusCode == 0 ||
		werr.StatusCode == http.StatusTooManyRequests ||
		werr.StatusCode >= http.StatusInternalServerError
	if !retry {
		c.failures.Add(1)
		c.logger.Warn("influxdb batch rejected",
			"bucket", c.bucket,
			"status", werr.StatusCode,
			"error", werr.Message,
		)
	} else if attempts >= maxWriteRetries {
		c.failures.Add(1)
	}
	return retry
}

// drainErrors logs the write errors the library reports after retries.
func (c *Client) drainErrors() {
	defer close(c.done)
	for err := range c.writeAPI.Errors() {
		if c.closed.Load() {
			continue
		}
		c.logger.Warn("influxdb write failed", "bucket", c.bucket, "error", err)
	}
}

// Close flushes pending points and closes the underlying client.
// It is safe to call on a nil client and more than once.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	<-c.done
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c == nil || c.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush blocks until buffered points are written. It is a no-op after Close.
func (c *Client) Flush() {
	if c == nil || c.closed.Load() {
		return
	}
	c.writeAPI.Flush()
}

// Stats reports how many points were queued and how many batches were lost.
func (c *Client) Stats() (points, failedBatches uint64) {
	if c == nil {
		return 0, 0
	}
	return c.points.Load(), c.failures.Load()
}
