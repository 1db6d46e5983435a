package main

import (
	"context"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func ticketCommand() *cli.Command {
	return &cli.Command{
		Name:  "ticket",
		Usage: "Open tickets and move them through their workflow",
		Commands: []*cli.Command{
			{
				Name:  "open",
				Usage: "Open a ticket on a workflow",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "workflow", Usage: "Workflow ID", Required: true},
					&cli.StringFlag{Name: "title", Usage: "Ticket title", Required: true},
					&cli.StringFlag{Name: "id", Usage: "Ticket ID, generated when omitted"},
					&cli.IntFlag{Name: "step", Usage: "Step code to start on instead of the first step"},
				},
				Action: withEnvironment(func(ctx context.Context, command *cli.Command, env *environment) error {
					opened, err := env.transitions.Open(ctx, &models.Ticket{
						ID:              command.String("id"),
						Title:           command.String("title"),
						WorkflowID:      command.String("workflow"),
						CurrentStepCode: command.Int("step"),
					})
					if err != nil {
						return err
					}

					return printJSON(command, opened)
				}),
			},
			{
				Name:      "transition",
				Usage:     "Move a ticket to another step",
				ArgsUsage: "<ticket-id> <step-code>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "actor",
						Usage:    "Who performs the transition",
						Required: true,
						Sources:  cli.EnvVars("USER"),
					},
				},
				Action: withEnvironment(func(ctx context.Context, command *cli.Command, env *environment) error {
					if err := requireArgs(command, "ticket-id", "step-code"); err != nil {
						return err
					}

					stepCode, err := intArg(command, 1, "step-code")
					if err != nil {
						return err
					}

					result, err := env.transitions.Transition(ctx, command.Args().First(), stepCode, command.String("actor"))
					if err != nil {
						if services.IsDenied(err) {
							return cli.Exit(err.Error(), 3)
						}

						return err
					}

					return printJSON(command, result)
				}),
			},
			{
				Name:      "allowed-steps",
				Usage:     "List the steps a ticket may move to",
				ArgsUsage: "<ticket-id>",
				Action: withEnvironment(func(ctx context.Context, command *cli.Command, env *environment) error {
					if err := requireArgs(command, "ticket-id"); err != nil {
						return err
					}

					steps, err := env.transitions.AllowedSteps(ctx, command.Args().First())
					if err != nil {
						return err
					}

					return printJSON(command, steps)
				}),
			},
			{
				Name:      "history",
				Usage:     "Show the transition history of a ticket",
				ArgsUsage: "<ticket-id>",
				Action: withEnvironment(func(ctx context.Context, command *cli.Command, env *environment) error {
					if err := requireArgs(command, "ticket-id"); err != nil {
						return err
					}

					history, err := env.transitions.History(ctx, command.Args().First())
					if err != nil {
						return err
					}

					return printJSON(command, history)
				}),
			},
		},
	}
}
