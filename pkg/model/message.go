package model

import (
	"time"

	"github.com/google/uuid"
)

type MessageID string

// NewMessageID generates a new unique MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// Origin tells who produced a message
type Origin string

const (
	OriginUser   Origin = "user"
	OriginAgent  Origin = "agent"
	OriginSystem Origin = "system"
)

// DefaultAuthor is used for user messages posted without a name
const DefaultAuthor = "anonymous"

// Message is one entry of the conversation log. It is not modified after broadcast.
type Message struct {
	ID     MessageID `json:"id"`
	Origin Origin    `json:"origin"`
	// Author is the display name of a user message (chat room username)
	Author string `json:"author,omitempty"`
	// AgentName is set if and only if Origin is OriginAgent
	AgentName string           `json:"agentName,omitempty"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// MessageMetadata carries how an agent message came to be
type MessageMetadata struct {
	Reasoning string   `json:"reasoning,omitempty"`
	Actions   []Action `json:"actions,omitempty"`
}

// NewUserMessage creates a message submitted by a human
func NewUserMessage(author, content string) *Message {
	if author == "" {
		author = DefaultAuthor
	}
	return &Message{
		ID:        NewMessageID(),
		Origin:    OriginUser,
		Author:    author,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a bootstrap or administrative message
func NewSystemMessage(content string) *Message {
	return &Message{
		ID:        NewMessageID(),
		Origin:    OriginSystem,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAgentMessage projects an accepted agent response into a conversation message
func NewAgentMessage(resp *AgentResponse) *Message {
	return &Message{
		ID:        NewMessageID(),
		Origin:    OriginAgent,
		AgentName: resp.AgentName,
		Content:   resp.Message,
		Timestamp: time.Now(),
		Metadata: &MessageMetadata{
			Reasoning: resp.Reasoning,
			Actions:   resp.Actions,
		},
	}
}

// Speaker returns the name shown in transcripts and prompts
func (m *Message) Speaker() string {
	if m.AgentName != "" {
		return m.AgentName
	}
	if m.Author != "" {
		return m.Author
	}
	return string(m.Origin)
}
