package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/solite/pkg/logger"
	"github.com/charlesng35/solite/pkg/metrics"
)

const (
	defaultRetention = 24 * time.Hour
	defaultSchedule  = "@every 1m"
)

// NotificationPurger deletes notifications created before a cutoff.
type NotificationPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner periodically removes notifications older than the retention window.
type Cleaner struct {
	purgers   []NotificationPurger
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention time.Duration
	schedule  string
	started   bool
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used to compute the retention cutoff.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRetention adjusts how long notifications are kept.
func WithRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.retention = retention
		}
	}
}

// WithSchedule overrides the cron specification for the purge job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. Nil purgers are ignored.
func NewCleaner(purgers []NotificationPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		now:       time.Now,
		retention: defaultRetention,
		schedule:  defaultSchedule,
		log:       logger.WithModule("maintenance"),
	}
	for _, p := range purgers {
		if p != nil {
			cleaner.purgers = append(cleaner.purgers, p)
		}
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Retention reports the configured retention window.
func (c *Cleaner) Retention() time.Duration {
	return c.retention
}

// Start registers the purge job and launches the scheduler. It is a no-op when
// no purger is configured.
func (c *Cleaner) Start() error {
	if len(c.purgers) == 0 || c.started {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		_ = c.RunOnce(context.Background())
	}); err != nil {
		return err
	}

	c.cron.Start()
	c.started = true
	c.log.Info("notification cleanup scheduled",
		zap.String("schedule", c.schedule),
		zap.Duration("retention", c.retention),
	)
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce purges every configured backend once. A failing backend does not
// stop the others; their errors are combined.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(c.purgers) == 0 {
		return errors.New("cleanup: no purger configured")
	}

	cutoff := c.now().Add(-c.retention)

	var (
		errs    error
		removed int64
	)
	for _, p := range c.purgers {
		n, err := p.PurgeOlderThan(ctx, cutoff)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed += n
	}

	if errs != nil {
		metrics.CleanupRuns.WithLabelValues("failure").Inc()
		c.log.Warn("notification cleanup failed", zap.Time("cutoff", cutoff), zap.Error(errs))
		return errs
	}

	metrics.CleanupRuns.WithLabelValues("success").Inc()
	if removed > 0 {
		c.log.Info("removed expired notifications", zap.Int64("count", removed), zap.Time("cutoff", cutoff))
	}
	return nil
}
