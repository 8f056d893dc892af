// Package archive copies conversation messages into durable sinks in the background.
package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
)

// DefaultBuffer is the number of messages queued before new ones are dropped
const DefaultBuffer = 256

// Sink stores archived messages
type Sink interface {
	Write(ctx context.Context, rec *Record) error
	Close() error
}

// Record is the flattened, storable form of a message
type Record struct {
	ID        string    `bigquery:"id"`
	Origin    string    `bigquery:"origin"`
	Author    string    `bigquery:"author"`
	AgentName string    `bigquery:"agent_name"`
	Content   string    `bigquery:"content"`
	Reasoning string    `bigquery:"reasoning"`
	Actions   string    `bigquery:"actions"`
	Timestamp time.Time `bigquery:"timestamp"`
}

// NewRecord flattens msg. Actions are stored as a JSON array.
func NewRecord(msg *model.Message) (*Record, error) {
	rec := &Record{
		ID:        string(msg.ID),
		Origin:    string(msg.Origin),
		Author:    msg.Author,
		AgentName: msg.AgentName,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
		Actions:   "[]",
	}
	if msg.Metadata != nil {
		rec.Reasoning = msg.Metadata.Reasoning
		if len(msg.Metadata.Actions) > 0 {
			raw, err := json.Marshal(msg.Metadata.Actions)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to encode actions", goerr.V("message_id", msg.ID))
			}
			rec.Actions = string(raw)
		}
	}
	return rec, nil
}

// Archiver forwards every broadcast message to a sink through a bounded queue
type Archiver struct {
	sink   Sink
	queue  chan *model.Message
	logger *slog.Logger

	mu          sync.Mutex
	closed      bool
	unsubscribe func()
	done        chan struct{}
}

type Option func(*Archiver)

// WithBuffer sets the queue size
func WithBuffer(n int) Option {
	return func(a *Archiver) {
		a.queue = make(chan *model.Message, n)
	}
}

// WithLogger sets the logger of the background worker
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) {
		a.logger = logger
	}
}

// New starts an archiver that receives messages from conv
func New(conv interfaces.Conversation, sink Sink, opts ...Option) *Archiver {
	a := &Archiver{
		sink:   sink,
		queue:  make(chan *model.Message, DefaultBuffer),
		logger: logging.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	go a.run()
	a.unsubscribe = conv.Subscribe(a.enqueue)
	return a
}

func (a *Archiver) enqueue(ctx context.Context, msg *model.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	select {
	case a.queue <- msg:
	default:
		logging.From(ctx).Warn("archive queue is full, dropping message", "message_id", msg.ID)
	}
}

func (a *Archiver) run() {
	defer close(a.done)
	ctx := logging.With(context.Background(), a.logger)

	for msg := range a.queue {
		rec, err := NewRecord(msg)
		if err == nil {
			err = a.sink.Write(ctx, rec)
		}
		if err != nil {
			a.logger.Error("failed to archive message", "message_id", msg.ID, "error", err)
		}
	}
}

// Close stops receiving messages, writes the queued ones and closes the sink
func (a *Archiver) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.unsubscribe()
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	if err := a.sink.Close(); err != nil {
		return goerr.Wrap(err, "failed to close archive sink")
	}
	return nil
}
