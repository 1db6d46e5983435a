package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/ticketflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func workflowCommand() *cli.Command {
	formatFlag := &cli.StringFlag{
		Name:  "format",
		Usage: "Document format (yaml, json), guessed from the file extension when omitted",
	}

	return &cli.Command{
		Name:  "workflow",
		Usage: "Manage workflow definitions",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Check a workflow document without storing it",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{formatFlag},
				Action: withEnvironment(func(ctx context.Context, command *cli.Command, env *environment) error {
					data, format, err := readDocument(command)
					if err != nil {
						return err
					}

					prepared, err := env.workflows.Validate(ctx, data, format)
					if err != nil {
						return describe(err)
					}

					return printJSON(command, prepared)
				}),
			},
			{
				Name:      "import",
				Usage:     "Create or update the workflow described by a document",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{formatFlag},
				Action: withEnvironment(func(ctx context.Context, command *cli.Command, env *environment) error {
					data, format, err := readDocument(command)
					if err != nil {
						return err
					}

					imported, err := env.workflows.Import(ctx, data, format)
					if err != nil {
						return describe(err)
					}

					return printJSON(command, imported)
				}),
			},
			{
				Name:  "list",
				Usage: "List stored workflows",
				Action: withEnvironment(func(ctx context.Context, command *cli.Command, env *environment) error {
					workflows, err := env.workflows.List(ctx)
					if err != nil {
						return err
					}

					return printJSON(command, workflows)
				}),
			},
			{
				Name:      "get",
				Usage:     "Show a workflow",
				ArgsUsage: "<workflow-id>",
				Action: withEnvironment(func(ctx context.Context, command *cli.Command, env *environment) error {
					if err := requireArgs(command, "workflow-id"); err != nil {
						return err
					}

					found, err := env.workflows.Get(ctx, command.Args().First())
					if err != nil {
						return err
					}

					return printJSON(command, found)
				}),
			},
		},
	}
}

func readDocument(command *cli.Command) ([]byte, workflow.Format, error) {
	if err := requireArgs(command, "file"); err != nil {
		return nil, "", err
	}

	path := command.Args().First()

	format := workflow.FormatFromPath(path)
	if name := command.String("format"); name != "" {
		parsed, err := workflow.ParseFormat(name)
		if err != nil {
			return nil, "", err
		}

		format = parsed
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read workflow document: %w", err)
	}

	return data, format, nil
}

// describe lists every validation problem on its own line.
func describe(err error) error {
	found := workflow.ProblemsOf(err)
	if len(found) == 0 {
		return err
	}

	message := fmt.Sprintf("workflow definition has %d problem(s):", len(found))
	for _, problem := range found {
		message += fmt.Sprintf("\n  %s [%s] %s", problem.Field, problem.Code, problem.Message)
	}

	return cli.Exit(message, 2)
}
