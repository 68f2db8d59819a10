package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/lumen/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client records lumen's brightness history in InfluxDB. Writes are batched
// and never block the caller; a zero Client drops every point.
//
// All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	open atomic.Bool

	mu      sync.Mutex
	onError func(err error)
}

// Connect pings the server and sets up a batched writer. tags are attached
// to every point; empty values are skipped.
//
// Returns ErrDisabled when cfg is disabled and ErrConnectionFailed when the
// server cannot be reached or reports itself unhealthy.
func Connect(cfg config.InfluxDBConfig, tags map[string]string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batchSize(cfg.BatchSize)).
		SetFlushInterval(flushIntervalMillis(cfg.FlushInterval)).
		AddDefaultTag("service", "lumen")
	for k, v := range tags {
		if v != "" {
			opts.AddDefaultTag(k, v)
		}
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	c.open.Store(true)
	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

func batchSize(n int) uint {
	if n <= 0 {
		return defaultBatchSize
	}
	return uint(n) // #nosec G115 -- positive
}

// flushIntervalMillis converts the configured seconds for the client options.
func flushIntervalMillis(seconds int) uint {
	d := defaultFlushInterval
	if seconds > 0 {
		d = time.Duration(seconds) * time.Second
	}
	return uint(d.Milliseconds()) // #nosec G115 -- positive
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.mu.Lock()
		fn := c.onError
		c.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	}
}

// SetOnError sets the callback for asynchronous write failures.
func (c *Client) SetOnError(fn func(err error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// HealthCheck pings the server. It returns ErrNotConnected after Close.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.open.Load() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// Close writes out buffered points and closes the client. Later calls are
// no-ops.
func (c *Client) Close() error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
