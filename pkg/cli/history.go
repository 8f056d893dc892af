package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/archive"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		dbPath string
		limit  int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "archive-sqlite",
			Aliases:     []string{"d"},
			Usage:       "SQLite archive written by chat or serve",
			Sources:     cli.EnvVars("HUDDLE_ARCHIVE_SQLITE"),
			Destination: &dbPath,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of messages to show",
			Value:       50,
			Sources:     cli.EnvVars("HUDDLE_HISTORY_LIMIT"),
			Destination: &limit,
		},
	}

	return &cli.Command{
		Name:  "history",
		Usage: "Show archived conversation messages",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			db, err := archive.NewSQLite(ctx, dbPath)
			if err != nil {
				return goerr.Wrap(err, "failed to open archive", goerr.V("path", dbPath))
			}
			defer db.Close()

			records, err := db.Recent(ctx, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to read archive")
			}

			if len(records) == 0 {
				fmt.Fprintf(c.Root().Writer, "No messages archived in %s\n", dbPath)
				return nil
			}

			for _, rec := range records {
				speaker := rec.AgentName
				if speaker == "" {
					speaker = rec.Author
				}
				if speaker == "" {
					speaker = rec.Origin
				}
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\n",
					rec.Timestamp.Format("2006-01-02 15:04:05"),
					speaker,
					indent(rec.Content),
				)
			}

			return nil
		},
	}
}
