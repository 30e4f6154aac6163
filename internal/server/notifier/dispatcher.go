package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/logging"
	"github.com/dmitrijs2005/sehatbot/internal/server/metrics"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, address, text string) (*DeliveryResult, error)
}

type DispatcherOptions struct {
	QueueSize     int
	Workers       int
	MaxRetries    int
	RatePerSecond float64
	// Timeout bounds one delivery attempt.
	Timeout time.Duration
	// Backoff is the first retry delay; it doubles on every attempt.
	Backoff time.Duration
	// DrainTimeout bounds delivery of messages still queued at shutdown.
	DrainTimeout time.Duration
}

type job struct {
	address string
	text    string
}

// Dispatcher decouples notifications from the conversation. Messages are
// queued without blocking and delivered by background workers with
// throttling and exponential backoff. A failed delivery is logged and
// dropped; it never affects state already committed.
type Dispatcher struct {
	sender  Sender
	queue   chan job
	limiter *rate.Limiter
	opts    DispatcherOptions
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(sender Sender, opts DispatcherOptions, logger logging.Logger, m *metrics.Metrics) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 5 * time.Second
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	return &Dispatcher{
		sender:  sender,
		queue:   make(chan job, opts.QueueSize),
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		logger:  logger.With("module", "notifier"),
		metrics: m,
	}
}

// Enqueue schedules text for address. It never blocks: when the queue is
// full the message is dropped and false is returned.
func (d *Dispatcher) Enqueue(address, text string) bool {
	select {
	case d.queue <- job{address: address, text: text}:
		return true
	default:
		d.metrics.Notification("dropped")
		d.logger.Warn(context.Background(), "notification queue full, message dropped", "address", address)
		return false
	}
}

// Run starts the workers and blocks until ctx is cancelled and every worker
// has returned. Messages still queued at that point are delivered within
// DrainTimeout.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for range d.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()
	d.drain()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			if ctx.Err() != nil {
				d.requeue(j)
				return
			}
			d.process(ctx, j)
		}
	}
}

// requeue hands a job taken during shutdown back to the drain.
func (d *Dispatcher) requeue(j job) {
	select {
	case d.queue <- j:
	default:
		d.metrics.Notification("dropped")
		d.logger.Warn(context.Background(), "notification queue full, message dropped", "address", j.address)
	}
}

// drain delivers what is left in the queue after the workers stopped.
func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.DrainTimeout)
	defer cancel()

	for {
		select {
		case j := <-d.queue:
			if ctx.Err() != nil {
				d.metrics.Notification("dropped")
				d.logger.Warn(ctx, "notifier stopped before message was sent", "address", j.address,
					"pending", len(d.queue))
				continue
			}
			d.process(ctx, j)
		default:
			d.logger.Info(ctx, "notifier stopped")
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, j job) {
	if err := d.deliver(ctx, j); err != nil {
		d.metrics.Notification("failed")
		d.logger.Error(ctx, "notification failed", "address", j.address, "error", err)
		return
	}
	d.metrics.Notification("sent")
}

func (d *Dispatcher) deliver(ctx context.Context, j job) error {
	backoff := retry.WithMaxRetries(uint64(max(d.opts.MaxRetries, 0)), retry.NewExponential(d.opts.Backoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		attemptCtx := ctx
		if d.opts.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
			defer cancel()
		}

		_, err := d.sender.Send(attemptCtx, j.address, j.text)
		if err == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return err
		}
		d.logger.Warn(ctx, "notification attempt failed", "address", j.address, "error", err)
		return retry.RetryableError(err)
	})
}
