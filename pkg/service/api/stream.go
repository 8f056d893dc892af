package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
)

type streamEvent struct {
	Type     string           `json:"type"`
	Messages []*model.Message `json:"messages,omitempty"`
	Message  *model.Message   `json:"message,omitempty"`
}

// handleStream sends an "init" event with every retained message, then one "message" event per
// broadcast until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		internalError(w, r, goerr.New("streaming is not supported"))
		return
	}

	logger := logging.From(r.Context())
	queue := make(chan *model.Message, streamBuffer)
	unsubscribe := s.conv.Subscribe(func(ctx context.Context, msg *model.Message) {
		select {
		case queue <- msg:
		default:
			logger.Warn("event stream is too slow, dropping message", "message_id", msg.ID)
		}
	})
	defer unsubscribe()

	initial := s.conv.All()
	sent := make(map[model.MessageID]bool, len(initial))
	for _, msg := range initial {
		sent[msg.ID] = true
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, &streamEvent{Type: "init", Messages: initial}); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case msg := <-queue:
			if sent[msg.ID] {
				continue
			}
			if err := writeEvent(w, &streamEvent{Type: "message", Message: msg}); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev *streamEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal stream event")
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", raw)
	return err
}
