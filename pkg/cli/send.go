package cli

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

func sendCommand() *cli.Command {
	var (
		cfg    config
		user   string
		server string
		wait   time.Duration
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "Sender name",
			Value:       model.DefaultAuthor,
			Sources:     cli.EnvVars("HUDDLE_USER"),
			Destination: &user,
		},
		&cli.StringFlag{
			Name:        "server",
			Aliases:     []string{"s"},
			Usage:       "MCP endpoint of a running server, e.g. http://127.0.0.1:8080/mcp",
			Sources:     cli.EnvVars("HUDDLE_SERVER"),
			Destination: &server,
		},
		&cli.DurationFlag{
			Name:        "wait",
			Usage:       "Time to wait for replies from a remote server",
			Value:       0,
			Destination: &wait,
		},
	}
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:      "send",
		Usage:     "Send one message and print the agents' replies",
		ArgsUsage: "<message>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if text == "" {
				return goerr.New("message is required")
			}
			w := c.Root().Writer

			if server != "" {
				return sendRemote(ctx, c, server, user, text, wait)
			}

			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if err := rt.coordinator.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start coordinator")
			}
			if _, err := rt.conv.Post(ctx, user, text); err != nil {
				return goerr.Wrap(err, "failed to post message")
			}
			rt.coordinator.Wait()

			for _, msg := range rt.conv.All() {
				printMessage(w, msg)
			}
			return nil
		},
	}
}

// sendRemote posts through the MCP endpoint of a running server and prints replies that arrive
// within wait
func sendRemote(ctx context.Context, c *cli.Command, endpoint, user, text string, wait time.Duration) error {
	client, err := mcp.Dial(ctx, endpoint)
	if err != nil {
		return err
	}
	defer client.Close()

	posted, err := client.PostMessage(ctx, user, text)
	if err != nil {
		return goerr.Wrap(err, "failed to post message")
	}
	w := c.Root().Writer
	printMessage(w, posted)

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
	}

	history, err := client.History(ctx, 0)
	if err != nil {
		return goerr.Wrap(err, "failed to get history")
	}
	seen := false
	for _, msg := range history {
		if msg.ID == posted.ID {
			seen = true
			continue
		}
		if seen {
			printMessage(w, msg)
		}
	}
	return nil
}
