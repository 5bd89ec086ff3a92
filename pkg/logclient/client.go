package logclient

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/runrightfast-archived/runrightfast-logging-client/internal/auth"
	"github.com/runrightfast-archived/runrightfast-logging-client/internal/config"
	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging"
	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging/batch"
	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging/delivery"
)

// Client accepts tagged events and ships them to the collector without
// blocking the caller.
type Client struct {
	config     config.Config
	delivery   *delivery.Client
	aggregator *batch.Aggregator
	metrics    *metrics
	logger     *slog.Logger
}

// New validates opts and starts a client. A configuration error is returned
// as *ConfigError and no client is created.
func New(opts Options, extra ...Option) (*Client, error) {
	cfg, err := config.Validate(opts)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, extra...)
}

// NewFromConfig starts a client from an already validated Config, such as
// one returned by config.Load.
func NewFromConfig(cfg Config, extra ...Option) (*Client, error) {
	s := settings{}
	for _, opt := range extra {
		opt(&s)
	}

	logger := s.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	}

	signer := s.signer
	if signer == nil {
		built, err := auth.NewSigner(cfg.Auth, s.clock)
		if err != nil {
			return nil, &config.ConfigError{Field: "auth", Reason: "is invalid", Err: err}
		}
		signer = built
	}

	dopts := []delivery.Option{
		delivery.WithSigner(signer),
		delivery.WithLogger(logger),
		delivery.WithHTTPClient(s.httpClient),
		delivery.WithClock(s.clock),
		delivery.WithFailureHandler(s.onFailure),
	}
	dc, err := delivery.New(delivery.Config{
		Endpoint:    cfg.Endpoint,
		Timeout:     cfg.Timeout,
		Retry:       cfg.Retry,
		Encoding:    cfg.Encoding,
		Compression: cfg.Compression,
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
	}, dopts...)
	if err != nil {
		return nil, fmt.Errorf("logclient: %w", err)
	}

	c := &Client{
		config:   cfg,
		delivery: dc,
		metrics:  &metrics{},
		logger:   logger,
	}
	if cfg.Batch != nil {
		c.aggregator = batch.NewAggregator(dc, batch.Config{
			Size:        cfg.Batch.Size,
			Interval:    cfg.Batch.Interval,
			ReleaseTags: cfg.Batch.ReleaseTags,
		}, batch.WithClock(s.clock), batch.WithLogger(logger))
	}

	dc.Start()
	logger.Debug("logclient: started",
		"endpoint", cfg.Endpoint, "batched", cfg.Batch != nil, "workers", cfg.Workers)
	return c, nil
}

// Log submits event. Events without a tag list are counted as invalid and
// dropped. Log never blocks on network I/O.
func (c *Client) Log(event Event) {
	if !event.Valid() {
		c.metrics.IncInvalidEvents()
		c.logger.Debug("logclient: rejected event without tags")
		return
	}
	c.metrics.IncEvents()

	if c.aggregator != nil {
		c.aggregator.Accept(event)
		return
	}
	c.delivery.Deliver(logging.Single(event))
}

// LogJSON parses raw as an event and submits it. It returns the parse error
// for malformed input, which is also counted as an invalid event.
func (c *Client) LogJSON(raw []byte) error {
	event, err := logging.ParseEvent(raw)
	if err != nil {
		c.metrics.IncInvalidEvents()
		return err
	}
	c.Log(event)
	return nil
}

func (c *Client) EventCount() int {
	return c.metrics.Snapshot().Events
}

func (c *Client) InvalidEventCount() int {
	return c.metrics.Snapshot().InvalidEvents
}

// Flush hands any buffered batch to the delivery queue.
func (c *Client) Flush() {
	if c.aggregator != nil {
		c.aggregator.Flush()
	}
}

// Shutdown flushes the pending batch and waits for queued deliveries until
// ctx ends.
func (c *Client) Shutdown(ctx context.Context) error {
	if c.aggregator != nil {
		c.aggregator.Stop()
	}
	return c.delivery.Stop(ctx)
}

// Close is Shutdown without a deadline.
func (c *Client) Close() error {
	return c.Shutdown(context.Background())
}
