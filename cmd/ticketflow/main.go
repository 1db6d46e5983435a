// Command ticketflow administers workflows, the employee directory and tickets directly against
// the configured store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dukex/ticketflow/pkg/cmd"
	"github.com/dukex/ticketflow/pkg/log"
	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/dukex/ticketflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func main() {
	err := newCommand().Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "ticketflow",
		Usage:                 "Manage workflows, the employee directory and tickets",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://dir or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			workflowCommand(),
			directoryCommand(),
			ticketCommand(),
		},
	}
}

// environment is what every subcommand works with.
type environment struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	workflows   *services.Workflow
	transitions *services.Transition
}

func withEnvironment(action func(ctx context.Context, command *cli.Command, env *environment) error) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		logger := slog.New(log.NewHandler(command.Root().ErrWriter, command.String("log-level"), "text")).
			With("module", "cli")

		p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
		if err != nil {
			return err
		}

		defer func() {
			err := p.Close(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
			}
		}()

		env := &environment{
			logger:      logger,
			persistence: p,
			workflows:   services.NewWorkflow(p, services.WithLogger(logger)),
			transitions: services.NewTransition(p, services.WithLogger(logger)),
		}

		return action(ctx, command, env)
	}
}

func printJSON(command *cli.Command, v any) error {
	encoder := json.NewEncoder(command.Root().Writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

func requireArgs(command *cli.Command, names ...string) error {
	if command.Args().Len() != len(names) {
		return fmt.Errorf("%s expects %d argument(s): %v", command.Name, len(names), names)
	}

	return nil
}

func intArg(command *cli.Command, index int, name string) (int, error) {
	value, err := strconv.Atoi(command.Args().Get(index))
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}

	return value, nil
}
