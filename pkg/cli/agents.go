package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

func agentsCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "agents",
		Usage: "List the agents of the team",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "agents",
				Usage:       "YAML file of agent definitions, replacing the built-in roster",
				Sources:     cli.EnvVars("HUDDLE_AGENTS"),
				Destination: &cfg.agentsFile,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			roster, err := cfg.newRoster()
			if err != nil {
				return err
			}
			printRoster(c.Root().Writer, roster)
			return nil
		},
	}
}
