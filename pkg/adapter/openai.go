package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient generates text with any OpenAI compatible Chat Completions endpoint,
// including DeepSeek when a base URL is given.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	baseURL string
	model   string
}

// WithBaseURL points the client to another compatible endpoint
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = url
	}
}

func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		c.model = model
	}
}

// NewOpenAI creates a new Chat Completions client
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	cfg := &openAIConfig{
		model: openai.ChatModelGPT4oMini,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(reqOpts...)

	return &OpenAIClient{
		client: &client,
		model:  cfg.model,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to call chat completions", goerr.V("model", model))
	}
	if len(resp.Choices) == 0 {
		return "", goerr.New("no choices returned", goerr.V("model", model))
	}

	return resp.Choices[0].Message.Content, nil
}

var _ TextGenerator = (*OpenAIClient)(nil)
