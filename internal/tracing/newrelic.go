package tracing

import (
	"context"
	"time"

	"example.com/backstage/services/warehouse/config"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

// Tracer opens one traced unit per service operation
type Tracer interface {
	Begin(ctx context.Context, op string) (context.Context, *Operation)
	App() *newrelic.Application
	Close()
}

// Operation is a traced service call. When the caller's context already
// carries a transaction (an HTTP request under nrgin), the operation is a
// segment of it; otherwise it owns a background transaction. A nil
// Operation is valid and records nothing.
type Operation struct {
	txn     *newrelic.Transaction
	segment *newrelic.Segment
	owned   bool
}

// Segment starts a named step and returns the function that ends it
func (o *Operation) Segment(name string) func() {
	if o == nil || o.txn == nil {
		return func() {}
	}
	seg := o.txn.StartSegment(name)
	return seg.End
}

// Annotate attaches a key/value to the underlying transaction
func (o *Operation) Annotate(key string, value interface{}) {
	if o == nil || o.txn == nil {
		return
	}
	o.txn.AddAttribute(key, value)
}

// End closes the operation, noticing err when set
func (o *Operation) End(err error) {
	if o == nil || o.txn == nil {
		return
	}
	if err != nil {
		o.txn.NoticeError(err)
	}
	if o.segment != nil {
		o.segment.End()
	}
	if o.owned {
		o.txn.End()
	}
}

type newRelicTracer struct {
	app *newrelic.Application
}

// NewTracer creates a New Relic tracer. Without a license key tracing is a no-op.
func NewTracer(cfg config.TracingConfig) (Tracer, error) {
	if cfg.LicenseKey == "" {
		log.Warn().Msg("New Relic license key not provided, tracing will be disabled")
		return Disabled(), nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(cfg.DistribTracing),
		newrelic.ConfigAppLogForwardingEnabled(cfg.LogEnabled),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize New Relic")
	}

	return &newRelicTracer{app: app}, nil
}

// Disabled returns a tracer that records nothing
func Disabled() Tracer {
	return &newRelicTracer{}
}

func (t *newRelicTracer) Begin(ctx context.Context, op string) (context.Context, *Operation) {
	if t.app == nil {
		return ctx, nil
	}

	if txn := newrelic.FromContext(ctx); txn != nil {
		return ctx, &Operation{txn: txn, segment: txn.StartSegment(op)}
	}

	txn := t.app.StartTransaction(op)
	return newrelic.NewContext(ctx, txn), &Operation{txn: txn, owned: true}
}

// App exposes the agent for the gin integration; nil when disabled
func (t *newRelicTracer) App() *newrelic.Application {
	return t.app
}

func (t *newRelicTracer) Close() {
	if t.app == nil {
		return
	}
	t.app.Shutdown(shutdownTimeout)
	log.Info().Msg("New Relic tracer shutdown")
}
