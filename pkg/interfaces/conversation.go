package interfaces

import (
	"context"

	"github.com/m-mizutani/huddle/pkg/model"
)

// MessageHandler receives broadcast messages. ctx is the broadcaster's context.
type MessageHandler func(ctx context.Context, msg *model.Message)

// Conversation is the shared message log with publish/subscribe
type Conversation interface {
	Broadcast(ctx context.Context, msg *model.Message)
	History(limit int) []*model.Message
	Subscribe(handler MessageHandler) (unsubscribe func())
}

// ActionRunner executes actions on behalf of an agent and reports one line per action
type ActionRunner interface {
	Execute(ctx context.Context, actions []model.Action, agentName string) []string
}
