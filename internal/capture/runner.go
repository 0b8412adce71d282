package capture

import (
	"context"
	"time"

	"example.com/backstage/services/warehouse/internal/messaging"
	"example.com/backstage/services/warehouse/internal/services"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Consumer delivers queued messages to a handler until ctx is done
type Consumer interface {
	Consume(ctx context.Context, queue string, handle messaging.Handler) error
}

// Runner feeds queued scans into a session and runs its anomaly ticker
type Runner struct {
	session  *Session
	consumer Consumer
	queue    string
	interval time.Duration
	now      func() time.Time
}

// NewRunner creates a runner consuming scans from queue and checking for
// anomalies every interval
func NewRunner(session *Session, consumer Consumer, queue string, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Runner{
		session:  session,
		consumer: consumer,
		queue:    queue,
		interval: interval,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled or the consumer fails
func (r *Runner) Run(ctx context.Context) error {
	r.session.Start(ctx, r.now())
	defer r.session.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.consumer.Consume(ctx, r.queue, r.handle)
	})

	g.Go(func() error {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				r.session.Check(ctx, r.now())
			}
		}
	})

	return g.Wait()
}

// handle completes dropped and malformed scans and abandons the rest of
// the failures so the broker redelivers them
func (r *Runner) handle(ctx context.Context, body []byte) error {
	_, err := r.session.Accept(ctx, string(body), r.now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTooSoon):
		log.Debug().Msg("Dropping scan inside scan delay")
		return nil
	case errors.Is(err, services.ErrValidation):
		log.Warn().Str("reason", services.Message(err)).Msg("Dropping malformed QR payload")
		return nil
	}
	return err
}
