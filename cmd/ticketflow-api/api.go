// Package main provides the ticketflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/ticketflow/pkg/eventbus"
	"github.com/dukex/ticketflow/pkg/metrics"
	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/dukex/ticketflow/pkg/services"
	"github.com/dukex/ticketflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	workflows   persistence.WorkflowRepository
	eventBus    eventbus.EventBus
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	workflows persistence.WorkflowRepository,
	eventBus eventbus.EventBus,
	m *metrics.Metrics,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		workflows:   workflows,
		eventBus:    eventBus,
		metrics:     m,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	opts := []services.Option{
		services.WithWorkflowRepository(a.workflows),
		services.WithEventPublisher(a.eventBus),
		services.WithMetrics(a.metrics),
		services.WithLogger(a.logger),
		services.WithTracer(a.tracer),
	}

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(a.persistence, opts...),
		services.NewTransition(a.persistence, opts...),
		a.validate,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.persistence.HealthCheck(c.Context()) == nil
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Ticketflow API")
	})

	app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))

	handlers.Register(app)

	return app
}

// Start serves the API until ctx is cancelled.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		err := app.Shutdown()
		if err != nil {
			a.logger.Error("Failed to shut down API server", "error", err)
		}
	}()

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}
