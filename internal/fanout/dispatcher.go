// Package fanout delivers post-creation notifications to the notification
// service without blocking the post response.
package fanout

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/solite/pkg/logger"
	"github.com/charlesng35/solite/pkg/metrics"
)

// ErrDispatcherClosed is returned by Submit after Close has been called.
var ErrDispatcherClosed = errors.New("fanout: dispatcher closed")

// DefaultJobTimeout bounds a single delivery attempt.
const DefaultJobTimeout = 5 * time.Second

// Job is one notification delivery for a freshly created post.
type Job struct {
	PostID      string
	Message     string
	BearerToken string
}

// Notifier delivers a job to the notification service.
type Notifier interface {
	Notify(ctx context.Context, job Job) error
}

// Dispatcher runs each submitted job in its own goroutine. Failures are logged
// and counted, never retried.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	log      *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithJobTimeout overrides the per-job deadline.
func WithJobTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher constructs a Dispatcher delivering through notifier.
func NewDispatcher(notifier Notifier, opts ...Option) (*Dispatcher, error) {
	if notifier == nil {
		return nil, errors.New("fanout: notifier is required")
	}
	d := &Dispatcher{
		notifier: notifier,
		timeout:  DefaultJobTimeout,
		log:      logger.WithModule("fanout"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Submit schedules job for delivery and returns immediately.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go d.run(job)
	return nil
}

func (d *Dispatcher) run(job Job) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			metrics.FanoutFailures.Inc()
			d.log.Error("notification delivery panicked", zap.String("post_id", job.PostID), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, job); err != nil {
		metrics.FanoutFailures.Inc()
		d.log.Warn("notification delivery failed", zap.String("post_id", job.PostID), zap.Error(err))
		return
	}
	d.log.Debug("notification delivered", zap.String("post_id", job.PostID))
}

// Close stops accepting jobs and waits for in-flight deliveries until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
