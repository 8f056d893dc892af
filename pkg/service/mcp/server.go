// Package mcp exposes the conversation and the catalog as MCP tools, and provides a small client
// for talking to a running huddle server.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/conversation"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ServerName    = "huddle"
	ServerVersion = "0.1.0"

	defaultHistoryLimit = 50
)

// Tool names
const (
	ToolGetHistory   = "get_history"
	ToolPostMessage  = "post_message"
	ToolListProducts = "list_products"
	ToolListPosts    = "list_posts"
	ToolGetStats     = "get_stats"
)

type HistoryInput struct {
	Limit int `json:"limit,omitempty"`
}

type PostMessageInput struct {
	User string `json:"user,omitempty"`
	Text string `json:"text"`
}

type emptyInput struct{}

// StatsOutput is the catalog summary plus the size of the conversation
type StatsOutput struct {
	*model.Stats
	TotalChatMessages int `json:"totalChatMessages"`
}

// Server serves the huddle tools
type Server struct {
	conv   *conversation.Store
	store  interfaces.DataStore
	server *mcp.Server
}

// NewServer builds the MCP server and registers every tool
func NewServer(conv *conversation.Store, store interfaces.DataStore) *Server {
	s := &Server{
		conv:  conv,
		store: store,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolGetHistory,
		Description: "Get the most recent conversation messages, oldest first",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"limit": {Type: "integer", Description: "Maximum number of messages (default 50)"},
			},
		},
	}, s.getHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolPostMessage,
		Description: "Post a chat message into the conversation. Agents will see it and may reply.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"user": {Type: "string", Description: "Display name of the sender"},
				"text": {Type: "string", Description: "Message text"},
			},
			Required: []string{"text"},
		},
	}, s.postMessage)

	noInput := &jsonschema.Schema{Type: "object"}
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolListProducts,
		Description: "List all products of the shop catalog",
		InputSchema: noInput,
	}, s.listProducts)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolListPosts,
		Description: "List all blog posts",
		InputSchema: noInput,
	}, s.listPosts)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolGetStats,
		Description: "Get catalog and conversation statistics",
		InputSchema: noInput,
	}, s.getStats)

	return s
}

// Handler returns a streamable HTTP handler for the server
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunStdio serves over stdin/stdout until ctx is done or the client disconnects
func (s *Server) RunStdio(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp stdio server stopped")
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to encode tool result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}

func (s *Server) getHistory(ctx context.Context, req *mcp.CallToolRequest, in HistoryInput) (*mcp.CallToolResult, any, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return jsonResult(s.conv.History(limit))
}

func (s *Server) postMessage(ctx context.Context, req *mcp.CallToolRequest, in PostMessageInput) (*mcp.CallToolResult, any, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, nil, goerr.Wrap(conversation.ErrEmptyMessage, "cannot post message")
	}

	msg := model.NewUserMessage(strings.TrimSpace(in.User), text)
	s.conv.Broadcast(context.WithoutCancel(ctx), msg)
	return jsonResult(msg)
}

func (s *Server) listProducts(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to list products")
	}
	return jsonResult(products)
}

func (s *Server) listPosts(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	posts, err := s.store.ListBlogPosts(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to list blog posts")
	}
	return jsonResult(posts)
}

func (s *Server) getStats(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to get stats")
	}
	return jsonResult(StatsOutput{Stats: stats, TotalChatMessages: s.conv.Len()})
}
