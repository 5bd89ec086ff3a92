package batch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/runrightfast-archived/runrightfast-logging-client/internal/logging"
)

type Config struct {
	Size        int
	Interval    time.Duration
	ReleaseTags []string
}

// Aggregator buffers events and hands them to a Deliverer as one batch when
// the buffer reaches Size, when an event carries a release tag, or when
// Interval has passed since the first buffered event.
type Aggregator struct {
	deliverer logging.Deliverer
	config    Config
	clock     clockwork.Clock
	logger    *slog.Logger

	batch      []logging.Event
	batchMutex sync.Mutex
	timer      clockwork.Timer
	// gen changes on every flush so a timer that fired while a flush held
	// the lock does not flush the next batch early.
	gen     uint64
	stopped bool
}

type Option func(*Aggregator)

func WithClock(clk clockwork.Clock) Option {
	return func(a *Aggregator) {
		if clk != nil {
			a.clock = clk
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAggregator(deliverer logging.Deliverer, config Config, opts ...Option) *Aggregator {
	if config.Size < 1 {
		config.Size = 1
	}
	if config.Interval <= 0 {
		config.Interval = time.Millisecond
	}
	a := &Aggregator{
		deliverer: deliverer,
		config:    config,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Log implements logging.Logger.
func (a *Aggregator) Log(event logging.Event) {
	a.Accept(event)
}

func (a *Aggregator) Accept(event logging.Event) {
	a.batchMutex.Lock()
	defer a.batchMutex.Unlock()

	if a.stopped {
		a.deliverer.Deliver(logging.Batch([]logging.Event{event}))
		return
	}

	a.batch = append(a.batch, event)

	switch {
	case len(a.batch) >= a.config.Size:
		a.flushBatch("size")
	case event.HasAnyTag(a.config.ReleaseTags):
		a.flushBatch("release tag")
	case a.timer == nil:
		a.armTimer()
	}
}

// Flush delivers whatever is buffered now.
func (a *Aggregator) Flush() {
	a.batchMutex.Lock()
	defer a.batchMutex.Unlock()
	a.flushBatch("flush")
}

// Stop flushes the buffer and disarms the timer. Events accepted afterwards
// are delivered one per batch.
func (a *Aggregator) Stop() {
	a.batchMutex.Lock()
	defer a.batchMutex.Unlock()
	a.flushBatch("stop")
	a.stopped = true
}

// Pending returns the number of buffered events.
func (a *Aggregator) Pending() int {
	a.batchMutex.Lock()
	defer a.batchMutex.Unlock()
	return len(a.batch)
}

// TimerArmed reports whether an interval flush is scheduled.
func (a *Aggregator) TimerArmed() bool {
	a.batchMutex.Lock()
	defer a.batchMutex.Unlock()
	return a.timer != nil
}

func (a *Aggregator) armTimer() {
	gen := a.gen
	a.timer = a.clock.AfterFunc(a.config.Interval, func() {
		a.batchMutex.Lock()
		defer a.batchMutex.Unlock()
		if a.gen != gen {
			return
		}
		a.timer = nil
		a.flushBatch("interval")
	})
}

// flushBatch must be called with batchMutex held.
func (a *Aggregator) flushBatch(reason string) {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++

	if len(a.batch) == 0 {
		return
	}

	batchToSend := make([]logging.Event, len(a.batch))
	copy(batchToSend, a.batch)

	a.batch = a.batch[:0]

	a.logger.Debug("batch: flushing", "events", len(batchToSend), "reason", reason)
	a.deliverer.Deliver(logging.Batch(batchToSend))
}
