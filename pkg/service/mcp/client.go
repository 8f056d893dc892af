package mcp

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client talks to the MCP endpoint of a running huddle server
type Client struct {
	session *mcp.ClientSession
}

// Dial connects to a streamable HTTP endpoint such as http://localhost:8080/mcp
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	if endpoint == "" {
		return nil, goerr.New("endpoint is required")
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    ServerName + "-cli",
		Version: ServerVersion,
	}, nil)

	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: endpoint}, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to MCP server", goerr.V("endpoint", endpoint))
	}

	return &Client{session: session}, nil
}

// PostMessage posts a user message and returns it as stored by the server
func (c *Client) PostMessage(ctx context.Context, user, text string) (*model.Message, error) {
	var msg model.Message
	if err := c.call(ctx, ToolPostMessage, map[string]any{"user": user, "text": text}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// History returns up to limit recent messages
func (c *Client) History(ctx context.Context, limit int) ([]*model.Message, error) {
	var messages []*model.Message
	if err := c.call(ctx, ToolGetHistory, map[string]any{"limit": limit}, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Stats returns the server's catalog and conversation statistics
func (c *Client) Stats(ctx context.Context) (*StatsOutput, error) {
	out := &StatsOutput{Stats: &model.Stats{}}
	if err := c.call(ctx, ToolGetStats, map[string]any{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, name string, args map[string]any, out any) error {
	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to call tool", goerr.V("tool", name))
	}

	var text string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			text += tc.Text
		}
	}
	if result.IsError {
		return goerr.New("tool returned error", goerr.V("tool", name), goerr.V("message", text))
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return goerr.Wrap(err, "failed to decode tool result", goerr.V("tool", name))
	}
	return nil
}

// Close ends the session
func (c *Client) Close() error {
	if err := c.session.Close(); err != nil {
		return goerr.Wrap(err, "failed to close MCP session")
	}
	return nil
}
