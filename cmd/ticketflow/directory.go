package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/ticketflow/pkg/models"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// directoryDocument is the YAML layout accepted by "directory import".
type directoryDocument struct {
	Workgroups []*models.Workgroup `yaml:"workgroups"`
	Employees  []*models.Employee  `yaml:"employees"`
}

func directoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "directory",
		Usage: "Manage workgroups and employees",
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Upsert the workgroups and employees listed in a YAML document",
				ArgsUsage: "<file>",
				Action: withEnvironment(func(ctx context.Context, command *cli.Command, env *environment) error {
					if err := requireArgs(command, "file"); err != nil {
						return err
					}

					data, err := os.ReadFile(command.Args().First())
					if err != nil {
						return fmt.Errorf("failed to read directory document: %w", err)
					}

					var document directoryDocument
					if err := yaml.Unmarshal(data, &document); err != nil {
						return fmt.Errorf("failed to decode directory document: %w", err)
					}

					directory := env.persistence.DirectoryRepository()

					for _, workgroup := range document.Workgroups {
						if workgroup == nil || workgroup.ID == "" {
							return fmt.Errorf("workgroup without id in %s", command.Args().First())
						}

						if err := directory.SaveWorkgroup(ctx, workgroup); err != nil {
							return err
						}
					}

					for _, employee := range document.Employees {
						if employee == nil || employee.ID == "" {
							return fmt.Errorf("employee without id in %s", command.Args().First())
						}

						if err := directory.SaveEmployee(ctx, employee); err != nil {
							return err
						}
					}

					env.logger.InfoContext(ctx, "directory imported",
						"workgroups", len(document.Workgroups),
						"employees", len(document.Employees),
					)

					return printJSON(command, map[string]int{
						"workgroups": len(document.Workgroups),
						"employees":  len(document.Employees),
					})
				}),
			},
			{
				Name:      "members",
				Usage:     "List the members of a workgroup",
				ArgsUsage: "<workgroup-id>",
				Action: withEnvironment(func(ctx context.Context, command *cli.Command, env *environment) error {
					if err := requireArgs(command, "workgroup-id"); err != nil {
						return err
					}

					members, err := env.persistence.DirectoryRepository().ListByWorkgroup(ctx, command.Args().First())
					if err != nil {
						return err
					}

					return printJSON(command, members)
				}),
			},
		},
	}
}
