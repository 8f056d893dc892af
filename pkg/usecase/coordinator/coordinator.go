// Package coordinator fans each conversation message out to every participant, collects their
// responses and broadcasts the accepted ones back in registration order.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPacing        = 500 * time.Millisecond
	DefaultHistoryWindow = 15
	DefaultMaxDepth      = 3
)

// Participant is anything that can take part in a round. *agent.Agent implements it.
type Participant interface {
	Name() string
	Process(ctx context.Context, msg *model.Message, history []*model.Message) (*model.AgentResponse, error)
}

// Round is the outcome of processing one message
type Round struct {
	Message *model.Message
	// Depth of the messages produced by this round. Human messages start rounds of depth 1.
	Depth int
	// Responses holds one entry per participant in registration order
	Responses []*model.AgentResponse
	// Replies are the messages broadcast by this round
	Replies    []*model.Message
	StartedAt  time.Time
	FinishedAt time.Time
}

// Responders returns the number of participants that answered
func (r *Round) Responders() int {
	return len(r.Replies)
}

type Coordinator struct {
	conv          interfaces.Conversation
	participants  []Participant
	pacing        time.Duration
	historyWindow int
	maxDepth      int
	onRoundStart  func(ctx context.Context, msg *model.Message)
	onRound       func(ctx context.Context, round *Round)

	mu          sync.Mutex
	running     bool
	baseCtx     context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

type Option func(*Coordinator)

// WithPacing sets the delay before each reply is broadcast
func WithPacing(d time.Duration) Option {
	return func(c *Coordinator) {
		c.pacing = d
	}
}

// WithHistoryWindow sets how many recent messages participants receive as history
func WithHistoryWindow(n int) Option {
	return func(c *Coordinator) {
		c.historyWindow = n
	}
}

// WithMaxDepth bounds chains of rounds triggered by replies. A message produced at depth
// max or deeper does not start another round.
func WithMaxDepth(n int) Option {
	return func(c *Coordinator) {
		c.maxDepth = n
	}
}

// WithOnRoundStart registers a callback invoked before participants are called
func WithOnRoundStart(fn func(ctx context.Context, msg *model.Message)) Option {
	return func(c *Coordinator) {
		c.onRoundStart = fn
	}
}

// WithOnRound registers a callback invoked after every round
func WithOnRound(fn func(ctx context.Context, round *Round)) Option {
	return func(c *Coordinator) {
		c.onRound = fn
	}
}

// New creates a coordinator. Participants are called concurrently but their replies are
// broadcast in the order given here.
func New(conv interfaces.Conversation, participants []Participant, opts ...Option) *Coordinator {
	c := &Coordinator{
		conv:          conv,
		participants:  participants,
		pacing:        DefaultPacing,
		historyWindow: DefaultHistoryWindow,
		maxDepth:      DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Participants returns the registered participants
func (c *Coordinator) Participants() []Participant {
	return c.participants
}

// Start subscribes to the conversation. Every broadcast message starts a round in the background.
// Rounds use ctx (with its logger) as their base context.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return goerr.New("coordinator is already running")
	}

	c.baseCtx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.unsubscribe = c.conv.Subscribe(c.onMessage)

	logging.From(ctx).Info("coordinator started", "participants", len(c.participants))
	return nil
}

// Stop unsubscribes, cancels in-flight rounds and waits for them to finish
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.unsubscribe()
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
}

// Wait blocks until no round is in flight, including rounds started by replies
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) onMessage(ctx context.Context, msg *model.Message) {
	depth := DepthFrom(ctx)
	logger := logging.From(ctx)
	if c.maxDepth > 0 && depth >= c.maxDepth {
		logger.Debug("round depth limit reached, not starting round",
			"message_id", msg.ID,
			"round_depth", depth)
		return
	}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	base := c.baseCtx
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.HandleMessage(WithDepth(base, depth), msg)
	}()
}

// HandleMessage runs one round for msg synchronously. The depth of ctx is the depth of msg.
func (c *Coordinator) HandleMessage(ctx context.Context, msg *model.Message) *Round {
	round := &Round{
		Message:   msg,
		Depth:     DepthFrom(ctx) + 1,
		StartedAt: time.Now(),
	}
	ctx = WithDepth(ctx, round.Depth)
	logger := logging.From(ctx).With("message_id", msg.ID, "round_depth", round.Depth)
	ctx = logging.With(ctx, logger)

	if c.onRoundStart != nil {
		c.onRoundStart(ctx, msg)
	}

	history := c.conv.History(c.historyWindow)
	logger.Info("round started",
		"speaker", msg.Speaker(),
		"participants", len(c.participants))

	round.Responses = make([]*model.AgentResponse, len(c.participants))
	var eg errgroup.Group
	for i, p := range c.participants {
		eg.Go(func() error {
			round.Responses[i] = c.invoke(ctx, p, msg, history)
			return nil
		})
	}
	_ = eg.Wait()

	for _, resp := range round.Responses {
		if !resp.ShouldRespond || resp.Message == "" {
			continue
		}
		if c.pacing > 0 {
			select {
			case <-ctx.Done():
				logger.Warn("round cancelled before all replies were sent", "error", ctx.Err())
				return c.finish(ctx, round)
			case <-time.After(c.pacing):
			}
		}

		reply := model.NewAgentMessage(resp)
		round.Replies = append(round.Replies, reply)
		c.conv.Broadcast(ctx, reply)
	}

	return c.finish(ctx, round)
}

func (c *Coordinator) finish(ctx context.Context, round *Round) *Round {
	round.FinishedAt = time.Now()
	logging.From(ctx).Info("round finished",
		"responders", round.Responders(),
		"duration", round.FinishedAt.Sub(round.StartedAt))
	if c.onRound != nil {
		c.onRound(ctx, round)
	}
	return round
}

// invoke calls one participant. An error or panic is logged and treated as declining.
func (c *Coordinator) invoke(ctx context.Context, p Participant, msg *model.Message, history []*model.Message) (resp *model.AgentResponse) {
	name := p.Name()
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Error("participant panicked",
				"agent", name,
				"error", goerr.New("panic in participant", goerr.V("panic", fmt.Sprint(r))))
			resp = model.Declined(name)
		}
	}()

	resp, err := p.Process(ctx, msg, history)
	if err != nil {
		logging.From(ctx).Warn("participant failed", "agent", name, "error", err)
		return model.Declined(name)
	}
	if resp == nil {
		return model.Declined(name)
	}
	return resp
}
