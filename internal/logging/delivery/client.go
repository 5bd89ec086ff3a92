package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging"
	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging/retry"
)

// maxResponseBody caps how much of a collector response is kept for
// failure reports.
const maxResponseBody = 64 << 10

var errSign = errors.New("sign request")

// Signer authenticates an outgoing request. body is the exact encoded body.
type Signer interface {
	Sign(req *http.Request, body []byte) error
}

type nopSigner struct{}

func (nopSigner) Sign(*http.Request, []byte) error { return nil }

type Config struct {
	Endpoint    string
	Timeout     time.Duration
	Retry       retry.Policy
	Encoding    string
	Compression string
	Workers     int
	QueueSize   int
}

// Client POSTs payloads to the collector endpoint. Deliver never blocks:
// payloads are queued and a fixed pool of workers sends them with retry.
type Client struct {
	cfg       Config
	http      *http.Client
	signer    Signer
	encoder   *encoder
	clock     clockwork.Clock
	logger    *slog.Logger
	onFailure FailureHandler
	stats     Stats

	queue   chan logging.Payload
	mu      sync.RWMutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithSigner(s Signer) Option {
	return func(c *Client) {
		if s != nil {
			c.signer = s
		}
	}
}

func WithClock(clk clockwork.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithFailureHandler(h FailureHandler) Option {
	return func(c *Client) {
		c.onFailure = h
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("delivery: endpoint is required")
	}
	enc, err := newEncoder(cfg.Encoding, cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("delivery: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{},
		signer:  nopSigner{},
		encoder: enc,
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
		queue:   make(chan logging.Payload, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true

	c.wg.Add(c.cfg.Workers)
	for i := 0; i < c.cfg.Workers; i++ {
		go c.worker()
	}
}

// Stop closes the queue and waits for workers to drain it. If ctx ends
// first, in-flight requests and retry waits are aborted.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.queue)
	started := c.started
	c.mu.Unlock()

	if !started {
		for p := range c.queue {
			c.fail(ErrStopped, p)
		}
		c.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return ctx.Err()
	}
}

// Deliver implements logging.Deliverer.
func (c *Client) Deliver(payload logging.Payload) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stopped {
		c.drop(ErrStopped, payload)
		return
	}

	select {
	case c.queue <- payload:
	default:
		c.drop(ErrQueueFull, payload)
	}
}

func (c *Client) Stats() Stats {
	return c.stats.Snapshot()
}

func (c *Client) worker() {
	defer c.wg.Done()

	for payload := range c.queue {
		if err := c.Send(c.ctx, payload); err != nil {
			c.fail(err, payload)
		}
	}
}

func (c *Client) drop(reason error, payload logging.Payload) {
	c.stats.IncDropped()
	c.logger.Warn("delivery: dropping payload", "reason", reason, "events", payload.Len())
	go c.report(failureFrom(reason, payload))
}

func (c *Client) fail(err error, payload logging.Payload) {
	c.stats.IncFailed()
	c.report(failureFrom(err, payload))
}

func (c *Client) report(info FailureInfo) {
	c.logger.Error("delivery: log request failed",
		"statusCode", info.StatusCode,
		"statusText", info.StatusText,
		"attempts", info.Attempts,
		"requestId", info.RequestID,
		"events", info.Payload.Len(),
	)
	if c.onFailure != nil {
		c.onFailure(info)
	}
}

// Send encodes payload and POSTs it, retrying transient failures according
// to the retry policy. It blocks until the payload is delivered, a permanent
// failure occurs, attempts are exhausted, or ctx ends.
func (c *Client) Send(ctx context.Context, payload logging.Payload) error {
	if payload.Len() == 0 {
		return nil
	}

	body, err := c.encoder.encode(payload.Body())
	if err != nil {
		return err
	}
	requestID := uuid.NewString()

	for attempt := 1; ; attempt++ {
		derr := c.attempt(ctx, body, requestID)
		if derr == nil {
			c.stats.IncDelivered(payload.Len())
			c.logger.Debug("delivery: payload delivered",
				"requestId", requestID, "events", payload.Len(), "attempts", attempt)
			return nil
		}
		derr.Attempts = attempt
		derr.RequestID = requestID

		if !derr.temporary() || !c.cfg.Retry.ShouldRetry(attempt) || ctx.Err() != nil {
			return derr
		}

		delay := c.cfg.Retry.Delay(attempt)
		c.stats.IncRetries()
		c.logger.Debug("delivery: retrying",
			"requestId", requestID, "attempt", attempt, "delay", delay, "error", derr)

		select {
		case <-c.clock.After(delay):
		case <-ctx.Done():
			return derr
		}
	}
}

func (c *Client) attempt(ctx context.Context, body []byte, requestID string) *Error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{StatusText: "failed to create request", Err: fmt.Errorf("%w: %w", errSign, err)}
	}
	req.Header.Set("Content-Type", c.encoder.contentType)
	if c.encoder.contentEncoding != "" {
		req.Header.Set("Content-Encoding", c.encoder.contentEncoding)
	}
	req.Header.Set("X-Request-Id", requestID)

	if err := c.signer.Sign(req, body); err != nil {
		return &Error{StatusText: "failed to sign request", Err: fmt.Errorf("%w: %w", errSign, err)}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		text := "failed to send request"
		if errors.Is(err, context.DeadlineExceeded) {
			text = "request timeout"
		}
		return &Error{StatusText: text, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return &Error{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		Body:       respBody,
	}
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
