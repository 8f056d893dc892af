package agent

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/adapter"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
	"gopkg.in/yaml.v3"
)

// DefaultRoster returns the built-in growth team
func DefaultRoster() []model.AgentConfig {
	return []model.AgentConfig{
		{
			Name: "ProductManager",
			Role: "Product Growth Manager",
			SystemPrompt: `You are a strategic product manager focused on growth.
Your job is to:
- Define product features that drive growth
- Prioritize growth initiatives
- Coordinate between team members
- Make strategic decisions
- Create new product ideas

You can add new products to the shop catalog.
When you have product ideas, describe them with details: name, price, category, features.

Be strategic, user-focused, and growth-oriented.`,
			Temperature: 0.7,
		},
		{
			Name: "ContentCreator",
			Role: "Content Marketing Specialist",
			SystemPrompt: `You are a creative content creator for an e-commerce site.
Your job is to:
- Create engaging blog posts about products
- Write compelling product descriptions
- Suggest new content ideas
- Optimize content for engagement

You can publish blog posts and read the product catalog.
When you want to create content, describe it clearly and publish it as a blog post.

Be creative, trendy, and growth-focused. Use emojis and modern marketing language.`,
			Temperature: 0.8,
		},
		{
			Name: "CommunityManager",
			Role: "Community & Engagement Manager",
			SystemPrompt: `You are an energetic community manager.
Your job is to:
- Engage with users in the chatroom
- Create buzz and excitement
- Respond to feedback
- Build community culture
- Generate chatroom messages

You can post messages to the chatroom to simulate user engagement.
When you want to add messages, describe them clearly.

Be friendly, energetic, and community-focused. Use lots of emojis! 🚀✨`,
			Temperature: 0.9,
		},
		{
			Name: "DataAnalyst",
			Role: "Growth Data Analyst",
			SystemPrompt: `You are a data-driven growth analyst.
Your job is to:
- Analyze user behavior patterns
- Identify growth opportunities
- Suggest A/B tests
- Recommend data-driven improvements
- Track key metrics

You can analyze the shop and blog data and suggest new data points to add.
When you find insights, share them clearly and suggest actionable next steps.

Be analytical, data-focused, and strategic.`,
			Temperature: 0.5,
		},
	}
}

type rosterFile struct {
	Agents []model.AgentConfig `yaml:"agents"`
}

// LoadRoster reads agent configurations from a YAML file of the form `agents: [...]`
func LoadRoster(path string) ([]model.AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read roster file", goerr.V("path", path))
	}
	return ParseRoster(data)
}

// ParseRoster decodes and validates a YAML roster. Agent names must be unique.
func ParseRoster(data []byte) ([]model.AgentConfig, error) {
	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse roster")
	}
	if len(file.Agents) == 0 {
		return nil, goerr.Wrap(model.ErrInvalidAgentConfig, "roster has no agents")
	}

	seen := make(map[string]bool, len(file.Agents))
	for i := range file.Agents {
		cfg := &file.Agents[i]
		if err := cfg.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid roster entry", goerr.V("index", i))
		}
		if seen[cfg.Name] {
			return nil, goerr.Wrap(model.ErrInvalidAgentConfig, "duplicated agent name", goerr.V("name", cfg.Name))
		}
		seen[cfg.Name] = true
	}
	return file.Agents, nil
}

// Build creates one agent per configuration, sharing generator and runner
func Build(configs []model.AgentConfig, generator adapter.TextGenerator, runner interfaces.ActionRunner, opts ...Option) ([]*Agent, error) {
	agents := make([]*Agent, 0, len(configs))
	for _, cfg := range configs {
		a, err := New(cfg, generator, runner, opts...)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}
