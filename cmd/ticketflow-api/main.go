package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/ticketflow/pkg/cmd"
	"github.com/dukex/ticketflow/pkg/log"
	"github.com/dukex/ticketflow/pkg/metrics"
	"github.com/dukex/ticketflow/pkg/otelhelper"
	"github.com/dukex/ticketflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort     = 9091
	defaultCacheTTL = 5 * time.Minute
)

func main() {
	command := &cli.Command{
		Name:                  "ticketflow-api",
		Usage:                 "Serve workflow definitions and ticket transitions over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://dir or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (none, gochannel, kafka)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the workflow definition cache, disabled when empty",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "workflow-cache-ttl",
				Usage:   "How long cached workflow definitions are kept",
				Value:   defaultCacheTTL,
				Sources: cli.EnvVars("WORKFLOW_CACHE_TTL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := command.Run(ctx, os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing Ticketflow API")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	m := metrics.New()

	workflows, closeCache, err := cmd.NewWorkflowRepository(
		persistence,
		command.String("redis-url"),
		command.Duration("workflow-cache-ttl"),
		logger,
		m,
	)
	if err != nil {
		return err
	}

	defer func() {
		err := closeCache()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close workflow cache", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	err = services.NewActivity(logger, m).Register(eventBus)
	if err != nil {
		return err
	}

	err = eventBus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	tracer := otelhelper.NewNoopTracer()

	if command.Bool("tracing") {
		var shutdown otelhelper.ShutdownFunc

		tracer, shutdown, err = otelhelper.NewTracer(ctx, "ticketflow-api")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			err := shutdown(context.WithoutCancel(ctx))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		}()
	}

	api := NewAPI(logger, persistence, workflows, eventBus, m, tracer)

	logger.InfoContext(ctx, "Ticketflow API listening", "port", command.Int("port"))

	return api.Start(ctx, command.Int("port"))
}
