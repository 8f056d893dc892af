package coordinator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/huddle/pkg/action"
	"github.com/m-mizutani/huddle/pkg/adapter"
	"github.com/m-mizutani/huddle/pkg/agent"
	"github.com/m-mizutani/huddle/pkg/conversation"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/repository"
	"github.com/m-mizutani/huddle/pkg/usecase/coordinator"
	"go.uber.org/goleak"
)

type fakeParticipant struct {
	name    string
	delay   time.Duration
	err     error
	panics  bool
	reply   func(msg *model.Message) string
	calls   atomic.Int32
	history [][]*model.Message
	mu      sync.Mutex
}

func (p *fakeParticipant) Name() string { return p.name }

func (p *fakeParticipant) Process(ctx context.Context, msg *model.Message, history []*model.Message) (*model.AgentResponse, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.history = append(p.history, history)
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.panics {
		panic("participant exploded")
	}
	if p.err != nil {
		return nil, p.err
	}
	if msg.AgentName == p.name {
		return model.Declined(p.name), nil
	}

	text := "reply from " + p.name
	if p.reply != nil {
		text = p.reply(msg)
	}
	if text == "" {
		return model.Declined(p.name), nil
	}
	return &model.AgentResponse{
		AgentName:     p.name,
		ShouldRespond: true,
		Message:       text,
		Reasoning:     "test",
	}, nil
}

// post broadcasts a user message and fails the test when it is rejected
func post(t *testing.T, conv *conversation.Store, author, text string) {
	t.Helper()
	_, err := conv.Post(context.Background(), author, text)
	gt.NoError(t, err)
}

func participants(ps ...*fakeParticipant) []coordinator.Participant {
	out := make([]coordinator.Participant, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

// onlyHumans answers user messages and ignores agent messages
func onlyHumans(name string) func(*model.Message) string {
	return func(msg *model.Message) string {
		if msg.Origin == model.OriginAgent {
			return ""
		}
		return "reply from " + name
	}
}

func TestHandleMessageFailingParticipant(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	conv := conversation.New()

	first := &fakeParticipant{name: "first"}
	second := &fakeParticipant{name: "second", err: errors.New("capability down")}
	third := &fakeParticipant{name: "third"}
	c := coordinator.New(conv, participants(first, second, third), coordinator.WithPacing(0))

	msg := model.NewUserMessage("alice", "hello team")
	conv.Broadcast(ctx, msg)
	round := c.HandleMessage(ctx, msg)

	gt.A(t, round.Responses).Length(3)
	gt.False(t, round.Responses[1].ShouldRespond)
	gt.Equal(t, round.Responders(), 2)
	gt.Equal(t, round.Depth, 1)

	history := conv.History(10)
	gt.A(t, history).Length(3)
	gt.Equal(t, history[1].AgentName, "first")
	gt.Equal(t, history[2].AgentName, "third")
	gt.Equal(t, history[2].Origin, model.OriginAgent)
	gt.Equal(t, history[2].Metadata.Reasoning, "test")
}

func TestHandleMessagePanickingParticipant(t *testing.T) {
	defer goleak.VerifyNone(t)
	conv := conversation.New()
	c := coordinator.New(conv, participants(
		&fakeParticipant{name: "boom", panics: true},
		&fakeParticipant{name: "calm"},
	), coordinator.WithPacing(0))

	round := c.HandleMessage(context.Background(), model.NewUserMessage("alice", "hi"))
	gt.Equal(t, round.Responders(), 1)
	gt.Equal(t, round.Replies[0].AgentName, "calm")
}

func TestRepliesFollowRegistrationOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	conv := conversation.New()
	slow := &fakeParticipant{name: "slow", delay: 80 * time.Millisecond}
	fast := &fakeParticipant{name: "fast"}
	c := coordinator.New(conv, participants(slow, fast), coordinator.WithPacing(0))

	round := c.HandleMessage(context.Background(), model.NewUserMessage("alice", "hi"))
	gt.A(t, round.Replies).Length(2)
	gt.Equal(t, round.Replies[0].AgentName, "slow")
	gt.Equal(t, round.Replies[1].AgentName, "fast")
}

func TestParticipantsRunConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t)
	conv := conversation.New()

	const n = 3
	var started sync.WaitGroup
	started.Add(n)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	barrier := func(name string) *fakeParticipant {
		return &fakeParticipant{
			name: name,
			reply: func(*model.Message) string {
				started.Done()
				select {
				case <-allStarted:
					return "together"
				case <-time.After(2 * time.Second):
					return ""
				}
			},
		}
	}

	c := coordinator.New(conv, participants(barrier("a"), barrier("b"), barrier("c")), coordinator.WithPacing(0))
	round := c.HandleMessage(context.Background(), model.NewUserMessage("alice", "hi"))
	gt.Equal(t, round.Responders(), n)
}

func TestPacing(t *testing.T) {
	defer goleak.VerifyNone(t)
	conv := conversation.New()
	c := coordinator.New(conv, participants(
		&fakeParticipant{name: "a"},
		&fakeParticipant{name: "b"},
	), coordinator.WithPacing(30*time.Millisecond))

	start := time.Now()
	round := c.HandleMessage(context.Background(), model.NewUserMessage("alice", "hi"))
	gt.Equal(t, round.Responders(), 2)
	gt.True(t, time.Since(start) >= 60*time.Millisecond)
}

func TestHistoryWindow(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	conv := conversation.New()
	for range 20 {
		conv.Broadcast(ctx, model.NewUserMessage("alice", "filler"))
	}

	p := &fakeParticipant{name: "a", reply: func(*model.Message) string { return "" }}
	c := coordinator.New(conv, participants(p), coordinator.WithPacing(0), coordinator.WithHistoryWindow(4))
	c.HandleMessage(ctx, conv.History(1)[0])

	gt.A(t, p.history).Length(1)
	gt.A(t, p.history[0]).Length(4)
}

func TestStartTriggersRounds(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	conv := conversation.New()

	var rounds atomic.Int32
	c := coordinator.New(conv, participants(
		&fakeParticipant{name: "a", reply: onlyHumans("a")},
		&fakeParticipant{name: "b", reply: onlyHumans("b")},
	),
		coordinator.WithPacing(0),
		coordinator.WithOnRound(func(ctx context.Context, r *coordinator.Round) { rounds.Add(1) }),
	)
	gt.NoError(t, c.Start(ctx))
	gt.Error(t, c.Start(ctx))

	post(t, conv, "alice", "what's new?")
	c.Wait()

	messages := conv.All()
	gt.A(t, messages).Length(3)
	gt.Equal(t, messages[1].AgentName, "a")
	gt.Equal(t, messages[2].AgentName, "b")
	gt.Equal(t, rounds.Load(), int32(3))

	c.Stop()
	post(t, conv, "alice", "anyone?")
	c.Wait()
	gt.Equal(t, conv.Len(), 4)
}

func TestMaxDepthBoundsChains(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	conv := conversation.New()

	// Both answer everything except their own messages, which would never end without a bound.
	c := coordinator.New(conv, participants(
		&fakeParticipant{name: "a"},
		&fakeParticipant{name: "b"},
	), coordinator.WithPacing(0), coordinator.WithMaxDepth(3))
	gt.NoError(t, c.Start(ctx))
	defer c.Stop()

	post(t, conv, "alice", "start")
	c.Wait()

	// 1 human message, then 2 replies at each of the depths 1, 2 and 3
	gt.Equal(t, conv.Len(), 7)
}

func TestDepthContext(t *testing.T) {
	ctx := context.Background()
	gt.Equal(t, coordinator.DepthFrom(ctx), 0)
	gt.Equal(t, coordinator.DepthFrom(coordinator.WithDepth(ctx, 2)), 2)
}

func TestStopCancelsPacing(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	conv := conversation.New()
	c := coordinator.New(conv, participants(&fakeParticipant{name: "a", reply: onlyHumans("a")}),
		coordinator.WithPacing(time.Hour))
	gt.NoError(t, c.Start(ctx))

	post(t, conv, "alice", "hi")
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	gt.Equal(t, conv.Len(), 1)
}

type scriptedGenerator struct{}

func (scriptedGenerator) Generate(ctx context.Context, req *adapter.GenerateRequest) (string, error) {
	if strings.Contains(req.Prompt, `Answer ONLY with "yes" or "no".`) {
		if strings.Contains(req.Prompt, "You are ProductManager") && strings.Contains(req.Prompt, "New message: We need a travel product") {
			return "yes", nil
		}
		return "no", nil
	}
	return `On it! CREATE_PRODUCT: {"name": "Travel Mug", "price": 19.99, "category": "Kitchen"}`, nil
}

func TestRoundWithAgents(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	conv := conversation.New()
	store := repository.NewMemory()
	exec := action.NewExecutor(store, action.WithConversation(conv))

	agents, err := agent.Build(agent.DefaultRoster(), scriptedGenerator{}, exec)
	gt.NoError(t, err)
	ps := make([]coordinator.Participant, len(agents))
	for i, a := range agents {
		ps[i] = a
	}

	c := coordinator.New(conv, ps, coordinator.WithPacing(0))
	gt.NoError(t, c.Start(ctx))
	defer c.Stop()

	post(t, conv, "alice", "We need a travel product")
	c.Wait()

	messages := conv.All()
	gt.A(t, messages).Length(2)
	gt.Equal(t, messages[1].AgentName, "ProductManager")
	gt.S(t, messages[1].Content).Contains("\n\n✅ Created product: Travel Mug ($19.99)")
	gt.A(t, messages[1].Metadata.Actions).Length(1)

	products, err := store.ListProducts(ctx)
	gt.NoError(t, err)
	gt.A(t, products).Length(1)
	gt.Equal(t, products[0].CreatedBy, "ProductManager")
}
