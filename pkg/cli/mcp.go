package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the chat room as an MCP server on stdio",
		Flags: runtimeFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if err := rt.coordinator.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start coordinator")
			}

			if err := mcp.NewServer(rt.conv, rt.store).RunStdio(ctx); err != nil {
				return goerr.Wrap(err, "MCP server stopped")
			}
			return nil
		},
	}
}
