package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/service/api"
	"github.com/m-mizutani/huddle/pkg/service/mcp"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Usage:       "Listen address of the HTTP server",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("HUDDLE_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the chat room over HTTP with an event stream and MCP endpoint",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if err := rt.coordinator.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start coordinator")
			}

			mcpServer := mcp.NewServer(rt.conv, rt.store)
			server := &http.Server{
				Addr: addr,
				Handler: api.New(rt.conv, rt.store,
					api.WithRoster(rt.roster),
					api.WithMCP(mcpServer.Handler()),
				),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext: func(_ net.Listener) context.Context {
					return ctx
				},
			}

			errCh := make(chan error, 1)
			go func() {
				logging.From(ctx).Info("starting server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return goerr.Wrap(err, "server stopped", goerr.V("addr", addr))
				}
			case <-ctx.Done():
			}

			logging.From(ctx).Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server")
			}
			return nil
		},
	}
}
