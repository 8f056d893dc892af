// Package api serves the conversation and the catalog over HTTP, with a server-sent event stream
// for live messages.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/huddle/pkg/conversation"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
)

const (
	DefaultKeepAlive    = 15 * time.Second
	defaultMessageLimit = 50
	maxChatBodySize     = 64 << 10
	streamBuffer        = 256
)

type Server struct {
	conv      *conversation.Store
	store     interfaces.DataStore
	roster    []model.AgentConfig
	mcp       http.Handler
	keepAlive time.Duration
}

type Option func(*Server)

// WithRoster lists the registered agents on /api/roster
func WithRoster(roster []model.AgentConfig) Option {
	return func(s *Server) {
		s.roster = roster
	}
}

// WithMCP mounts an MCP handler on /mcp
func WithMCP(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// WithKeepAlive sets the interval of keepalive comments on the event stream
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		s.keepAlive = d
	}
}

// New builds the HTTP handler
func New(conv *conversation.Store, store interfaces.DataStore, opts ...Option) http.Handler {
	s := &Server{
		conv:      conv,
		store:     store,
		keepAlive: DefaultKeepAlive,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/chat", s.handlePostChat)
	mux.HandleFunc("GET /api/chat", s.handleStream)
	mux.HandleFunc("GET /api/chat/stream", s.handleStream)
	mux.HandleFunc("GET /api/agents", s.handleAgents)
	mux.HandleFunc("GET /api/roster", s.handleRoster)
	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}

	return chainMiddlewares(mux, withCORS, withLogging)
}

type postChatRequest struct {
	User string `json:"user"`
	Text string `json:"text"`
}

type statsResponse struct {
	*model.Stats
	TotalChatMessages int `json:"totalChatMessages"`
}

type allResponse struct {
	Products     []*model.Product  `json:"products"`
	BlogPosts    []*model.BlogPost `json:"blogPosts"`
	ChatMessages []*model.Message  `json:"chatMessages"`
}

type rosterEntry struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePostChat(w http.ResponseWriter, r *http.Request) {
	var req postChatRequest
	body := http.MaxBytesReader(w, r.Body, maxChatBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}

	msg, err := s.conv.Post(r.Context(), req.User, req.Text)
	if errors.Is(err, conversation.ErrEmptyMessage) {
		badRequest(w, "message text is empty")
		return
	} else if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	switch query.Get("type") {
	case "stats":
		stats, err := s.store.Stats(ctx)
		if err != nil {
			internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{Stats: stats, TotalChatMessages: s.conv.Len()})

	case "products":
		products, err := s.store.ListProducts(ctx)
		if err != nil {
			internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, products)

	case "posts":
		posts, err := s.store.ListBlogPosts(ctx)
		if err != nil {
			internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, posts)

	case "messages":
		limit, err := strconv.Atoi(query.Get("limit"))
		if err != nil || limit <= 0 {
			limit = defaultMessageLimit
		}
		writeJSON(w, http.StatusOK, s.conv.History(limit))

	case "all":
		products, err := s.store.ListProducts(ctx)
		if err != nil {
			internalError(w, r, err)
			return
		}
		posts, err := s.store.ListBlogPosts(ctx)
		if err != nil {
			internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, allResponse{
			Products:     products,
			BlogPosts:    posts,
			ChatMessages: s.conv.All(),
		})

	default:
		badRequest(w, "invalid type parameter")
	}
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	out := make([]rosterEntry, 0, len(s.roster))
	for _, cfg := range s.roster {
		out = append(out, rosterEntry{Name: cfg.Name, Role: cfg.Role})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	logging.From(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}
