package mail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ErrDispatcherClosed is returned when a message is enqueued after Stop
var ErrDispatcherClosed = errors.New("mail dispatcher is closed")

// Receipt reports the outcome of Dispatch
type Receipt struct {
	ID     string
	Sent   bool
	Queued bool
}

// DispatcherConfig controls timeouts, retries and queueing for a Dispatcher
type DispatcherConfig struct {
	SendTimeout time.Duration
	MaxRetries  uint64
	QueueSize   int
	Workers     int
	// BaseDelay is the first retry delay; later delays double up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Dispatcher sends mail with one synchronous attempt and retries failures
// in the background
type Dispatcher struct {
	sender Sender
	cfg    DispatcherConfig
	logger *zap.Logger

	queue  chan Message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a Dispatcher. Zero config values take defaults.
// Call Start before dispatching.
func NewDispatcher(sender Sender, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = time.Minute
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender: sender,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Message, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the retry workers
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Dispatch makes one bounded attempt to send msg. On failure the message is
// queued for retry and the receipt reports Sent=false.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) Receipt {
	receipt := Receipt{ID: msg.ID}

	err := d.attempt(ctx, msg)
	if err == nil {
		receipt.Sent = true
		return receipt
	}

	d.logger.Warn("Email send failed, scheduling retry",
		zap.String("email_id", msg.ID),
		zap.Error(err),
	)

	if err := d.Enqueue(msg); err != nil {
		d.logger.Error("Email dropped", zap.String("email_id", msg.ID), zap.Error(err))
		return receipt
	}
	receipt.Queued = true
	return receipt
}

// Enqueue schedules msg for background delivery without blocking
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- msg:
		return nil
	default:
		return errors.New("mail queue is full")
	}
}

// Stop stops accepting messages and waits for queued ones to drain. Workers
// abandon in-flight retries when ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) attempt(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	return d.sender.Send(ctx, msg)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for msg := range d.queue {
		backoff := retry.WithMaxRetries(d.cfg.MaxRetries,
			retry.WithCappedDuration(d.cfg.MaxDelay, retry.NewExponential(d.cfg.BaseDelay)))

		attempts := 0
		err := retry.Do(d.ctx, backoff, func(ctx context.Context) error {
			attempts++
			if err := d.attempt(ctx, msg); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})

		if err != nil {
			d.logger.Error("Email delivery abandoned",
				zap.String("email_id", msg.ID),
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
			continue
		}

		d.logger.Info("Email delivered on retry",
			zap.String("email_id", msg.ID),
			zap.Int("attempts", attempts),
		)
	}
}
