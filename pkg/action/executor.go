package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
)

var errNoConversation = goerr.New("conversation is not configured")

type handler func(ctx context.Context, action model.Action, agentName string) (string, error)

// Executor applies actions to the data store and reports one human readable line per action
type Executor struct {
	store        interfaces.DataStore
	conversation interfaces.Conversation
	guard        *Guard
	handlers     map[model.ActionKind]handler
}

// ExecutorOption is a functional option for Executor
type ExecutorOption func(*Executor)

// WithConversation sets the conversation that SEND_MESSAGE posts into
func WithConversation(c interfaces.Conversation) ExecutorOption {
	return func(e *Executor) {
		e.conversation = c
	}
}

// WithGuard makes every action subject to a policy decision
func WithGuard(g *Guard) ExecutorOption {
	return func(e *Executor) {
		e.guard = g
	}
}

// NewExecutor creates an executor backed by store
func NewExecutor(store interfaces.DataStore, opts ...ExecutorOption) *Executor {
	e := &Executor{store: store}
	e.handlers = map[model.ActionKind]handler{
		model.ActionCreateProduct: e.createProduct,
		model.ActionCreatePost:    e.createPost,
		model.ActionSendMessage:   e.sendMessage,
		model.ActionUpdateData:    e.updateData,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs actions in order and returns exactly one result line per action. A failing or
// panicking action becomes a failure line and does not stop the rest of the batch.
func (e *Executor) Execute(ctx context.Context, actions []model.Action, agentName string) []string {
	results := make([]string, len(actions))
	for i, action := range actions {
		results[i] = e.executeOne(ctx, action, agentName)
	}
	return results
}

func (e *Executor) executeOne(ctx context.Context, action model.Action, agentName string) (line string) {
	logger := logging.From(ctx).With("agent", agentName, "action", action.Kind)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("action panicked", "panic", r)
			line = failureLine(action.Kind, fmt.Sprint(r))
		}
	}()

	h, ok := e.handlers[action.Kind]
	if !ok {
		err := goerr.Wrap(model.ErrUnknownAction, "no handler for action", goerr.V("kind", action.Kind))
		logger.Warn("unknown action", "error", err)
		return failureLine(action.Kind, "unknown action type "+string(action.Kind))
	}

	if e.guard != nil {
		if err := e.guard.Check(ctx, action, agentName); err != nil {
			logger.Warn("action rejected by policy", "error", err)
			return failureLine(action.Kind, err.Error())
		}
	}

	result, err := h(ctx, action, agentName)
	if err != nil {
		logger.Warn("action failed", "error", err)
		return failureLine(action.Kind, err.Error())
	}

	logger.Info("action executed", "result", result)
	return result
}

func failureLine(kind model.ActionKind, reason string) string {
	return fmt.Sprintf("❌ Failed to execute %s: %s", kind, reason)
}

func (e *Executor) createProduct(ctx context.Context, action model.Action, agentName string) (string, error) {
	in := action.Product
	if in == nil {
		return "", goerr.Wrap(model.ErrInvalidPayload, "product payload is missing")
	}
	if strings.TrimSpace(in.Name) == "" {
		return "", goerr.Wrap(model.ErrInvalidPayload, "product name is required")
	}
	if in.Price < 0 {
		return "", goerr.Wrap(model.ErrInvalidPayload, "product price must not be negative", goerr.V("price", in.Price))
	}

	product, err := e.store.AddProduct(ctx, model.NewProduct(in, agentName))
	if err != nil {
		return "", goerr.Wrap(err, "failed to add product")
	}
	return fmt.Sprintf("✅ Created product: %s (%s)", product.Name, model.PriceLabel(product.Price)), nil
}

func (e *Executor) createPost(ctx context.Context, action model.Action, agentName string) (string, error) {
	in := action.Post
	if in == nil {
		return "", goerr.Wrap(model.ErrInvalidPayload, "post payload is missing")
	}
	if strings.TrimSpace(in.Title) == "" {
		return "", goerr.Wrap(model.ErrInvalidPayload, "post title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return "", goerr.Wrap(model.ErrInvalidPayload, "post content is required")
	}

	post, err := e.store.AddBlogPost(ctx, model.NewBlogPost(in, agentName))
	if err != nil {
		return "", goerr.Wrap(err, "failed to add blog post")
	}
	return fmt.Sprintf("✅ Created blog post: \"%s\"", post.Title), nil
}

func (e *Executor) sendMessage(ctx context.Context, action model.Action, agentName string) (string, error) {
	in := action.Chat
	if in == nil {
		return "", goerr.Wrap(model.ErrInvalidPayload, "chat payload is missing")
	}
	text := strings.TrimSpace(in.Body())
	if text == "" {
		return "", goerr.Wrap(model.ErrInvalidPayload, "chat text is required")
	}
	if e.conversation == nil {
		return "", errNoConversation
	}

	user := in.Sender(agentName)
	e.conversation.Broadcast(ctx, model.NewUserMessage(user, text))
	return fmt.Sprintf("✅ Sent chat message as %s: \"%s\"", user, text), nil
}

func (e *Executor) updateData(ctx context.Context, action model.Action, agentName string) (string, error) {
	in := action.Update
	if in == nil || in.ID == "" {
		return "❌ Invalid update data", nil
	}

	switch in.Type {
	case model.UpdateTargetProduct:
		product, err := e.store.UpdateProduct(ctx, model.ProductID(in.ID), in.Updates)
		if err != nil {
			return "", err
		}
		if product == nil {
			return "❌ Product not found: " + in.ID, nil
		}
		return "✅ Updated product: " + product.Name, nil

	case model.UpdateTargetBlogPost:
		post, err := e.store.UpdateBlogPost(ctx, model.BlogPostID(in.ID), in.Updates)
		if err != nil {
			return "", err
		}
		if post == nil {
			return "❌ Blog post not found: " + in.ID, nil
		}
		return "✅ Updated blog post: " + post.Title, nil

	default:
		return "❌ Invalid update data", nil
	}
}

var _ interfaces.ActionRunner = (*Executor)(nil)
