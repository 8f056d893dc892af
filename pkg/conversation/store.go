// Package conversation provides the shared, ordered message log that agents and humans talk
// through, with synchronous publish/subscribe notification.
package conversation

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
)

// DefaultRetention is the number of messages kept in the log
const DefaultRetention = 500

var ErrEmptyMessage = goerr.New("message text is empty")

type subscriber struct {
	id      uint64
	handler interfaces.MessageHandler
}

// Store is an append-only message log. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	messages    []*model.Message
	retention   int
	subscribers []subscriber
	nextID      uint64
}

// Option is a functional option for Store
type Option func(*Store)

// WithRetention sets how many of the most recent messages are kept. n <= 0 keeps everything.
func WithRetention(n int) Option {
	return func(s *Store) {
		s.retention = n
	}
}

// New creates an empty conversation store
func New(opts ...Option) *Store {
	s := &Store{
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broadcast appends msg to the log and then calls every subscriber in subscription order.
// Handlers run on the caller's goroutine and outside the store lock.
func (s *Store) Broadcast(ctx context.Context, msg *model.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	if s.retention > 0 && len(s.messages) > s.retention {
		drop := len(s.messages) - s.retention
		s.messages = append([]*model.Message(nil), s.messages[drop:]...)
	}
	handlers := make([]interfaces.MessageHandler, len(s.subscribers))
	for i, sub := range s.subscribers {
		handlers[i] = sub.handler
	}
	s.mu.Unlock()

	logging.From(ctx).Debug("broadcasting message",
		"id", msg.ID,
		"from", msg.Speaker(),
		"content", logging.Preview(msg.Content, 100),
		"subscribers", len(handlers),
	)

	for _, h := range handlers {
		h(ctx, msg)
	}
}

// Post broadcasts a user message. Author and text are trimmed; empty text is rejected.
func (s *Store) Post(ctx context.Context, author, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, goerr.Wrap(ErrEmptyMessage, "cannot post message", goerr.V("author", author))
	}

	msg := model.NewUserMessage(strings.TrimSpace(author), text)
	s.Broadcast(ctx, msg)
	return msg, nil
}

// History returns the latest limit messages, oldest first. limit larger than the log is clamped.
func (s *Store) History(limit int) []*model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return []*model.Message{}
	}
	if limit > len(s.messages) {
		limit = len(s.messages)
	}
	out := make([]*model.Message, limit)
	copy(out, s.messages[len(s.messages)-limit:])
	return out
}

// All returns every retained message, oldest first
func (s *Store) All() []*model.Message {
	return s.History(s.Len())
}

// Len returns the number of retained messages
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Subscribe registers handler for messages broadcast from now on. Past messages are not
// replayed; read History first when a consumer needs them.
func (s *Store) Subscribe(handler interfaces.MessageHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, subscriber{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *Store) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub.id == id {
			s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
			return
		}
	}
}

// Clear empties the log without notifying subscribers
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

var _ interfaces.Conversation = (*Store)(nil)
