// Package agent implements conversation participants backed by a text generation capability.
package agent

import (
	"bytes"
	"context"
	_ "embed"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/action"
	"github.com/m-mizutani/huddle/pkg/adapter"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
)

//go:embed prompt/decide.md
var decidePromptRaw string

//go:embed prompt/generate.md
var generatePromptRaw string

var (
	decidePromptTmpl   = template.Must(template.New("decide").Parse(decidePromptRaw))
	generatePromptTmpl = template.Must(template.New("generate").Parse(generatePromptRaw))
)

const (
	// DefaultTimeout bounds each call to the text generation capability
	DefaultTimeout = 60 * time.Second

	decideHistorySize   = 5
	generateHistorySize = 8
)

// Agent is a named participant that decides whether to answer a message and, if so,
// generates a reply and runs the actions embedded in it.
type Agent struct {
	cfg       model.AgentConfig
	generator adapter.TextGenerator
	runner    interfaces.ActionRunner
	timeout   time.Duration
}

// Option is a functional option for Agent
type Option func(*Agent)

// WithTimeout sets the deadline of each capability call. d <= 0 disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.timeout = d
	}
}

// New creates an agent. runner may be nil, in which case extracted actions are not executed.
func New(cfg model.AgentConfig, generator adapter.TextGenerator, runner interfaces.ActionRunner, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if generator == nil {
		return nil, goerr.New("text generator is required", goerr.V("agent", cfg.Name))
	}

	a := &Agent{
		cfg:       cfg,
		generator: generator,
		runner:    runner,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Agent) Name() string {
	return a.cfg.Name
}

func (a *Agent) Role() string {
	return a.cfg.Role
}

// Config returns a copy of the agent's configuration
func (a *Agent) Config() model.AgentConfig {
	return a.cfg
}

func (a *Agent) logger(ctx context.Context) *slog.Logger {
	return logging.From(ctx).With("agent", a.cfg.Name)
}

// Decide reports whether the agent wants to answer msg. Messages written by the agent itself
// are always declined without calling the capability. A failed call counts as declining.
func (a *Agent) Decide(ctx context.Context, msg *model.Message, history []*model.Message) bool {
	if msg.AgentName == a.cfg.Name {
		return false
	}

	var buf bytes.Buffer
	if err := decidePromptTmpl.Execute(&buf, map[string]any{
		"Name":    a.cfg.Name,
		"Role":    a.cfg.Role,
		"History": tail(history, decideHistorySize),
		"Message": msg,
	}); err != nil {
		a.logger(ctx).Error("failed to render decide prompt", "error", err)
		return false
	}

	text, err := a.generate(ctx, &adapter.GenerateRequest{
		Prompt:      buf.String(),
		Temperature: a.cfg.DecideTemperature(),
		Model:       a.cfg.Model,
	})
	if err != nil {
		a.logger(ctx).Warn("decision call failed, declining", "message_id", msg.ID, "error", err)
		return false
	}

	return strings.Contains(strings.ToLower(text), "yes")
}

// Generate produces the agent's reply to msg with the actions found in it. The actions are not
// executed here. A failed call yields a declined response.
func (a *Agent) Generate(ctx context.Context, msg *model.Message, history []*model.Message) *model.AgentResponse {
	var buf bytes.Buffer
	if err := generatePromptTmpl.Execute(&buf, map[string]any{
		"Name":    a.cfg.Name,
		"History": tail(history, generateHistorySize),
		"Message": msg,
	}); err != nil {
		a.logger(ctx).Error("failed to render generate prompt", "error", err)
		return model.Declined(a.cfg.Name)
	}

	text, err := a.generate(ctx, &adapter.GenerateRequest{
		System:      a.cfg.SystemPrompt,
		Prompt:      buf.String(),
		Temperature: a.cfg.GenerationTemperature(),
		Model:       a.cfg.Model,
	})
	if err != nil {
		a.logger(ctx).Warn("generation call failed, declining", "message_id", msg.ID, "error", err)
		return model.Declined(a.cfg.Name)
	}

	return &model.AgentResponse{
		AgentName:     a.cfg.Name,
		ShouldRespond: true,
		Message:       text,
		Actions:       action.Parse(ctx, text),
		Reasoning:     "Responded as " + a.cfg.Role,
	}
}

// Process runs decide, generate and the requested actions. The action result lines are appended
// to the reply after a blank line. It never returns an error; failures become a declined response.
func (a *Agent) Process(ctx context.Context, msg *model.Message, history []*model.Message) (*model.AgentResponse, error) {
	logger := a.logger(ctx).With("message_id", msg.ID)

	if !a.Decide(ctx, msg, history) {
		logger.Info("skipping message", "role", a.cfg.Role)
		return model.Declined(a.cfg.Name), nil
	}
	logger.Info("responding to message")

	resp := a.Generate(ctx, msg, history)
	if !resp.ShouldRespond {
		return resp, nil
	}

	if len(resp.Actions) > 0 && a.runner != nil {
		logger.Info("executing actions", "count", len(resp.Actions))
		results := a.runner.Execute(ctx, resp.Actions, a.cfg.Name)
		if len(results) > 0 {
			resp.Message += "\n\n" + strings.Join(results, "\n")
		}
	}

	return resp, nil
}

func (a *Agent) generate(ctx context.Context, req *adapter.GenerateRequest) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	text, err := a.generator.Generate(ctx, req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate text", goerr.V("agent", a.cfg.Name))
	}
	return text, nil
}

func tail(history []*model.Message, n int) []*model.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
