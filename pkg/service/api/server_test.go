package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/huddle/pkg/agent"
	"github.com/m-mizutani/huddle/pkg/conversation"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/repository"
	"github.com/m-mizutani/huddle/pkg/service/api"
)

func newTestServer(t *testing.T, opts ...api.Option) (http.Handler, *conversation.Store) {
	t.Helper()
	conv := conversation.New()
	store := repository.NewMemory(repository.WithSeed(repository.Seed()))
	store.Load(context.Background())
	return api.New(conv, store, opts...), conv
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	w := serve(srv, http.MethodGet, "/healthz", "")
	gt.Equal(t, w.Code, http.StatusOK)
}

func TestPostChat(t *testing.T) {
	srv, conv := newTestServer(t)

	w := serve(srv, http.MethodPost, "/api/chat", `{"user": "alice", "text": "hello team"}`)
	gt.Equal(t, w.Code, http.StatusOK)

	var msg model.Message
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	gt.Equal(t, msg.Author, "alice")
	gt.Equal(t, msg.Content, "hello team")
	gt.Equal(t, conv.Len(), 1)

	w = serve(srv, http.MethodPost, "/api/chat", `{"text": "no name"}`)
	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, conv.History(1)[0].Author, model.DefaultAuthor)

	testCases := map[string]string{
		"empty text":  `{"user": "alice", "text": "  "}`,
		"missing":     `{"user": "alice"}`,
		"broken json": `{"user": `,
		"wrong type":  `{"text": 42}`,
	}
	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			w := serve(srv, http.MethodPost, "/api/chat", body)
			gt.Equal(t, w.Code, http.StatusBadRequest)
		})
	}
	gt.Equal(t, conv.Len(), 2)
}

func TestPostChatBodyTooLarge(t *testing.T) {
	srv, conv := newTestServer(t)

	body := `{"user": "alice", "text": "` + strings.Repeat("a", 1<<20) + `"}`
	w := serve(srv, http.MethodPost, "/api/chat", body)
	gt.Equal(t, w.Code, http.StatusBadRequest)
	gt.Equal(t, conv.Len(), 0)
}

func TestAgentsQuery(t *testing.T) {
	srv, conv := newTestServer(t)
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := conv.Post(ctx, "alice", text)
		gt.NoError(t, err)
	}

	t.Run("stats", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/api/agents?type=stats", "")
		gt.Equal(t, w.Code, http.StatusOK)
		var out map[string]int
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		gt.Equal(t, out["totalProducts"], 2)
		gt.Equal(t, out["totalBlogPosts"], 1)
		gt.Equal(t, out["totalViews"], 1234)
		gt.Equal(t, out["totalChatMessages"], 3)
	})

	t.Run("products", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/api/agents?type=products", "")
		var out []*model.Product
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		gt.A(t, out).Length(2)
	})

	t.Run("posts", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/api/agents?type=posts", "")
		var out []*model.BlogPost
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		gt.A(t, out).Length(1)
		gt.Equal(t, out[0].Author, "Tech Team")
	})

	t.Run("messages with limit", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/api/agents?type=messages&limit=2", "")
		var out []*model.Message
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		gt.A(t, out).Length(2)
		gt.Equal(t, out[0].Content, "two")
		gt.Equal(t, out[1].Content, "three")
	})

	t.Run("all", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/api/agents?type=all", "")
		var out struct {
			Products     []any `json:"products"`
			BlogPosts    []any `json:"blogPosts"`
			ChatMessages []any `json:"chatMessages"`
		}
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		gt.A(t, out.Products).Length(2)
		gt.A(t, out.BlogPosts).Length(1)
		gt.A(t, out.ChatMessages).Length(3)
	})

	t.Run("invalid type", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/api/agents?type=orders", "")
		gt.Equal(t, w.Code, http.StatusBadRequest)
		w = serve(srv, http.MethodGet, "/api/agents", "")
		gt.Equal(t, w.Code, http.StatusBadRequest)
	})
}

func TestRoster(t *testing.T) {
	srv, _ := newTestServer(t, api.WithRoster(agent.DefaultRoster()))
	w := serve(srv, http.MethodGet, "/api/roster", "")
	gt.Equal(t, w.Code, http.StatusOK)

	var out []struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	gt.A(t, out).Length(4)
	gt.Equal(t, out[2].Name, "CommunityManager")
	gt.Equal(t, out[2].Role, "Community & Engagement Manager")
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	w := serve(srv, http.MethodOptions, "/api/chat", "")
	gt.Equal(t, w.Code, http.StatusNoContent)
	gt.Equal(t, w.Header().Get("Access-Control-Allow-Origin"), "*")
}

type event struct {
	Type     string           `json:"type"`
	Messages []*model.Message `json:"messages"`
	Message  *model.Message   `json:"message"`
}

// nextLine returns the next non-empty line of the stream
func nextLine(t *testing.T, lines <-chan string) string {
	t.Helper()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed")
			}
			if line != "" {
				return line
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for stream")
		}
	}
}

func decodeEvent(t *testing.T, line string) *event {
	t.Helper()
	gt.S(t, line).HasPrefix("data: ")
	var ev event
	gt.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
	return &ev
}

func TestStream(t *testing.T) {
	srv, conv := newTestServer(t, api.WithKeepAlive(50*time.Millisecond))
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := conv.Post(ctx, "alice", "before connect")
	gt.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/chat", nil)
	gt.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	gt.NoError(t, err)
	defer resp.Body.Close()
	gt.Equal(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	first := decodeEvent(t, nextLine(t, lines))
	gt.Equal(t, first.Type, "init")
	gt.A(t, first.Messages).Length(1)
	gt.Equal(t, first.Messages[0].Content, "before connect")

	post, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewBufferString(`{"user": "bob", "text": "live"}`))
	gt.NoError(t, err)
	post.Body.Close()

	var live *event
	for live == nil {
		line := nextLine(t, lines)
		if strings.HasPrefix(line, ":") {
			continue
		}
		live = decodeEvent(t, line)
	}
	gt.Equal(t, live.Type, "message")
	gt.Equal(t, live.Message.Author, "bob")
	gt.Equal(t, live.Message.Content, "live")

	gt.Equal(t, nextLine(t, lines), ": keepalive")
}
