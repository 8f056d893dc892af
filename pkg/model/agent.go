package model

import (
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidAgentConfig = goerr.New("invalid agent config")

const (
	DefaultDecisionTemperature   = 0.3
	DefaultGenerationTemperature = 0.7
)

// AgentConfig describes one participant. It is fixed when the agent is built.
type AgentConfig struct {
	Name         string  `json:"name" yaml:"name"`
	Role         string  `json:"role" yaml:"role"`
	SystemPrompt string  `json:"systemPrompt" yaml:"system_prompt"`
	Temperature  float64 `json:"temperature,omitempty" yaml:"temperature"`
	// DecisionTemperature is used for the yes/no decision prompt
	DecisionTemperature float64 `json:"decisionTemperature,omitempty" yaml:"decision_temperature"`
	// Model overrides the generator's default model when set
	Model string `json:"model,omitempty" yaml:"model"`
}

// Validate checks required fields
func (c *AgentConfig) Validate() error {
	if c.Name == "" {
		return goerr.Wrap(ErrInvalidAgentConfig, "agent name is empty")
	}
	if c.Role == "" {
		return goerr.Wrap(ErrInvalidAgentConfig, "agent role is empty", goerr.V("name", c.Name))
	}
	if c.Temperature < 0 || c.DecisionTemperature < 0 {
		return goerr.Wrap(ErrInvalidAgentConfig, "temperature must not be negative",
			goerr.V("name", c.Name),
			goerr.V("temperature", c.Temperature),
			goerr.V("decision_temperature", c.DecisionTemperature))
	}
	return nil
}

// GenerationTemperature returns Temperature or its default
func (c *AgentConfig) GenerationTemperature() float64 {
	if c.Temperature == 0 {
		return DefaultGenerationTemperature
	}
	return c.Temperature
}

// DecideTemperature returns DecisionTemperature or its default
func (c *AgentConfig) DecideTemperature() float64 {
	if c.DecisionTemperature == 0 {
		return DefaultDecisionTemperature
	}
	return c.DecisionTemperature
}

// AgentResponse is the outcome of one agent in one round
type AgentResponse struct {
	AgentName     string
	ShouldRespond bool
	// Message is set only when ShouldRespond is true
	Message   string
	Actions   []Action
	Reasoning string
}

// Declined builds a response for an agent that stays silent
func Declined(agentName string) *AgentResponse {
	return &AgentResponse{AgentName: agentName}
}
