package archive_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/huddle/pkg/archive"
	"github.com/m-mizutani/huddle/pkg/conversation"
	"github.com/m-mizutani/huddle/pkg/model"
	"go.uber.org/goleak"
)

type memorySink struct {
	mu      sync.Mutex
	records []*archive.Record
	failID  string
	closed  bool
}

func (s *memorySink) Write(ctx context.Context, rec *archive.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == s.failID {
		return errors.New("write failed")
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// post broadcasts a user message and fails the test when it is rejected
func post(t *testing.T, conv *conversation.Store, author, text string) {
	t.Helper()
	_, err := conv.Post(context.Background(), author, text)
	gt.NoError(t, err)
}

func agentMessage() *model.Message {
	return model.NewAgentMessage(&model.AgentResponse{
		AgentName:     "ProductManager",
		ShouldRespond: true,
		Message:       "Added a mug",
		Reasoning:     "Responded as Product Growth Manager",
		Actions: []model.Action{
			model.NewCreateProduct(model.ProductInput{Name: "Mug", Price: 10}),
		},
	})
}

func TestNewRecord(t *testing.T) {
	rec, err := archive.NewRecord(agentMessage())
	gt.NoError(t, err)
	gt.Equal(t, rec.Origin, "agent")
	gt.Equal(t, rec.AgentName, "ProductManager")
	gt.Equal(t, rec.Reasoning, "Responded as Product Growth Manager")
	gt.S(t, rec.Actions).Contains(`"type":"CREATE_PRODUCT"`)

	rec, err = archive.NewRecord(model.NewUserMessage("", "hi"))
	gt.NoError(t, err)
	gt.Equal(t, rec.Author, model.DefaultAuthor)
	gt.Equal(t, rec.Actions, "[]")
}

func TestArchiver(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	conv := conversation.New()

	failing := model.NewUserMessage("bob", "this one fails")
	sink := &memorySink{failID: string(failing.ID)}
	a := archive.New(conv, sink)

	post(t, conv, "alice", "first")
	conv.Broadcast(ctx, failing)
	conv.Broadcast(ctx, agentMessage())
	gt.NoError(t, a.Close())
	gt.NoError(t, a.Close())

	gt.True(t, sink.closed)
	gt.A(t, sink.records).Length(2)
	gt.Equal(t, sink.records[0].Content, "first")
	gt.Equal(t, sink.records[1].AgentName, "ProductManager")

	post(t, conv, "alice", "after close")
	gt.A(t, sink.records).Length(2)
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")

	sink, err := archive.NewSQLite(ctx, path)
	gt.NoError(t, err)

	conv := conversation.New()
	a := archive.New(conv, sink)
	post(t, conv, "alice", "hello")
	msg := agentMessage()
	conv.Broadcast(ctx, msg)
	conv.Broadcast(ctx, msg)
	gt.NoError(t, a.Close())

	reopened, err := archive.NewSQLite(ctx, path)
	gt.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Recent(ctx, 10)
	gt.NoError(t, err)
	gt.A(t, records).Length(2)
	gt.Equal(t, records[0].Author, "alice")
	gt.Equal(t, records[1].ID, string(msg.ID))
	gt.S(t, records[1].Actions).Contains("Mug")
	gt.Equal(t, records[1].Timestamp.UnixMilli(), msg.Timestamp.UnixMilli())

	latest, err := reopened.Recent(ctx, 1)
	gt.NoError(t, err)
	gt.A(t, latest).Length(1)
	gt.Equal(t, latest[0].ID, string(msg.ID))
}
