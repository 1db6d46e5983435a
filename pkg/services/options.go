package services

import (
	"log/slog"

	"github.com/dukex/ticketflow/pkg/eventbus"
	"github.com/dukex/ticketflow/pkg/metrics"
	"github.com/dukex/ticketflow/pkg/otelhelper"
	"github.com/dukex/ticketflow/pkg/persistence"
	"go.opentelemetry.io/otel/trace"
)

type options struct {
	workflows persistence.WorkflowRepository
	publisher eventbus.EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures the optional collaborators of a service.
type Option func(*options)

// WithWorkflowRepository replaces the persistence workflow repository, typically with a cache
// in front of it.
func WithWorkflowRepository(repo persistence.WorkflowRepository) Option {
	return func(o *options) {
		o.workflows = repo
	}
}

func WithEventPublisher(publisher eventbus.EventPublisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

func newOptions(p persistence.Persistence, module string, opts []Option) options {
	o := options{
		workflows: p.WorkflowRepository(),
		publisher: eventbus.NewNoopEventBus(),
		logger:    slog.Default(),
		tracer:    otelhelper.NewNoopTracer(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	o.logger = o.logger.With("module", module)

	return o
}
