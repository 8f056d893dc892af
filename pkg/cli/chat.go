package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/usecase/coordinator"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg         config
		user        string
		historyFile string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "Your name in the chat",
			Value:       model.DefaultAuthor,
			Sources:     cli.EnvVars("HUDDLE_USER"),
			Destination: &user,
		},
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "File to keep input history of the prompt",
			Sources:     cli.EnvVars("HUDDLE_HISTORY_FILE"),
			Destination: &historyFile,
		},
	}
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Talk with the agent team interactively",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          user + "> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "/exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize prompt")
			}
			defer rl.Close()

			ind := newIndicator(rl.Stderr())
			rt, err := cfg.newRuntime(ctx,
				coordinator.WithOnRoundStart(func(ctx context.Context, msg *model.Message) {
					ind.begin()
				}),
				coordinator.WithOnRound(func(ctx context.Context, round *coordinator.Round) {
					ind.end()
				}),
			)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			unsubscribe := rt.conv.Subscribe(func(ctx context.Context, msg *model.Message) {
				if msg.Origin == model.OriginUser && msg.Author == user {
					return
				}
				ind.print(func() { printMessage(rl.Stdout(), msg) })
			})
			defer unsubscribe()

			if err := rt.coordinator.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start coordinator")
			}

			w := rl.Stdout()
			fmt.Fprintf(w, "Chatting with %d agents. Commands: /history, /stats, /products, /posts, /agents, /clear, /exit\n", len(rt.roster))

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				} else if errors.Is(err, io.EOF) {
					break
				} else if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				exit, err := handleCommand(ctx, w, rt, user, strings.TrimSpace(line))
				if err != nil {
					return err
				}
				if exit {
					return nil
				}
			}

			return nil
		},
	}
}

// handleCommand runs one line of the chat prompt. Slash commands inspect or reset the room; any
// other text is posted as a message from user. It reports whether the session should end.
func handleCommand(ctx context.Context, w io.Writer, rt *runtime, user, line string) (bool, error) {
	switch line {
	case "":
		return false, nil

	case "/exit", "/quit":
		return true, nil

	case "/history":
		for _, msg := range rt.conv.History(coordinator.DefaultHistoryWindow) {
			printMessage(w, msg)
		}

	case "/stats":
		stats, err := rt.store.Stats(ctx)
		if err != nil {
			return false, goerr.Wrap(err, "failed to get stats")
		}
		printStats(w, stats, rt.conv.Len())

	case "/products":
		products, err := rt.store.ListProducts(ctx)
		if err != nil {
			return false, goerr.Wrap(err, "failed to list products")
		}
		printProducts(w, products)

	case "/posts":
		posts, err := rt.store.ListBlogPosts(ctx)
		if err != nil {
			return false, goerr.Wrap(err, "failed to list blog posts")
		}
		printBlogPosts(w, posts)

	case "/agents":
		printRoster(w, rt.roster)

	case "/clear":
		rt.conv.Clear()
		fmt.Fprintln(w, "Chat history cleared")

	default:
		if strings.HasPrefix(line, "/") {
			fmt.Fprintf(w, "unknown command: %s\n", line)
			return false, nil
		}
		if _, err := rt.conv.Post(ctx, user, line); err != nil {
			return false, goerr.Wrap(err, "failed to post message")
		}
	}
	return false, nil
}

// indicator shows a spinner while any round is running and pauses it to print messages
type indicator struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	running int
}

func newIndicator(w io.Writer) *indicator {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " agents are thinking..."
	return &indicator{spinner: s}
}

func (x *indicator) begin() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.running++
	if x.running == 1 {
		x.spinner.Start()
	}
}

func (x *indicator) end() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.running > 0 {
		x.running--
	}
	if x.running == 0 {
		x.spinner.Stop()
	}
}

func (x *indicator) print(fn func()) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.running > 0 {
		x.spinner.Stop()
	}
	fn()
	if x.running > 0 {
		x.spinner.Start()
	}
}
