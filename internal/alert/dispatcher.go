package alert

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultSendTimeout bounds a single background delivery.
const DefaultSendTimeout = 30 * time.Second

// Dispatcher sends alerts asynchronously so callers never block on delivery.
// Wait must be called before the process exits.
type Dispatcher struct {
	next    Notifier
	logger  *slog.Logger
	timeout time.Duration

	group  errgroup.Group
	sent   atomic.Int64
	failed atomic.Int64
}

// NewDispatcher creates a Dispatcher delivering through next.
func NewDispatcher(next Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		next:    next,
		logger:  logger,
		timeout: DefaultSendTimeout,
	}
}

// Notify schedules a for delivery and returns immediately.
// Delivery outlives cancellation of ctx but is bounded by the send timeout.
func (d *Dispatcher) Notify(ctx context.Context, a Alert) error {
	sendCtx := context.WithoutCancel(ctx)

	d.group.Go(func() error {
		ctx, cancel := context.WithTimeout(sendCtx, d.timeout)
		defer cancel()

		if err := d.next.Notify(ctx, a); err != nil {
			d.failed.Add(1)
			d.logger.Error("alert delivery failed",
				"subject", a.Subject,
				"error", err,
			)
			return err
		}

		d.sent.Add(1)
		d.logger.Info("alert delivered", "subject", a.Subject)
		return nil
	})

	return nil
}

// Wait blocks until every scheduled alert finished and returns the first
// delivery error, if any.
func (d *Dispatcher) Wait() error {
	return d.group.Wait()
}

// Stats returns delivered and failed counts.
func (d *Dispatcher) Stats() (sent, failed int64) {
	return d.sent.Load(), d.failed.Load()
}
