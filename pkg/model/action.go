package model

import (
	"bytes"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrUnknownAction  = goerr.New("unknown action type")
	ErrInvalidPayload = goerr.New("invalid action payload")
)

// ActionKind is the verb of an action
type ActionKind string

const (
	ActionCreateProduct ActionKind = "CREATE_PRODUCT"
	ActionCreatePost    ActionKind = "CREATE_POST"
	ActionSendMessage   ActionKind = "SEND_MESSAGE"
	ActionUpdateData    ActionKind = "UPDATE_DATA"
)

// Known reports whether the kind is one of the defined verbs
func (k ActionKind) Known() bool {
	switch k {
	case ActionCreateProduct, ActionCreatePost, ActionSendMessage, ActionUpdateData:
		return true
	default:
		return false
	}
}

// ProductInput is the payload of CREATE_PRODUCT
type ProductInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Category    string   `json:"category,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Image       string   `json:"image,omitempty"`
}

// PostInput is the payload of CREATE_POST
type PostInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Excerpt string   `json:"excerpt,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// ChatInput is the payload of SEND_MESSAGE. User falls back to Username, Text falls back to Message.
type ChatInput struct {
	User     string `json:"user,omitempty"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Sender returns the effective username, or fallback when the payload names none
func (c *ChatInput) Sender(fallback string) string {
	switch {
	case c.User != "":
		return c.User
	case c.Username != "":
		return c.Username
	default:
		return fallback
	}
}

// Body returns the effective message text
func (c *ChatInput) Body() string {
	if c.Text != "" {
		return c.Text
	}
	return c.Message
}

// UpdateTarget selects the record collection of UPDATE_DATA
type UpdateTarget string

const (
	UpdateTargetProduct  UpdateTarget = "product"
	UpdateTargetBlogPost UpdateTarget = "blogPost"
)

// UpdateInput is the payload of UPDATE_DATA
type UpdateInput struct {
	Type    UpdateTarget   `json:"type"`
	ID      string         `json:"id"`
	Updates map[string]any `json:"updates"`
}

// Action is a tagged variant: Kind selects which one of the payload fields is set.
type Action struct {
	Kind    ActionKind
	Product *ProductInput
	Post    *PostInput
	Chat    *ChatInput
	Update  *UpdateInput
}

func NewCreateProduct(in ProductInput) Action {
	return Action{Kind: ActionCreateProduct, Product: &in}
}

func NewCreatePost(in PostInput) Action {
	return Action{Kind: ActionCreatePost, Post: &in}
}

func NewSendMessage(in ChatInput) Action {
	return Action{Kind: ActionSendMessage, Chat: &in}
}

func NewUpdateData(in UpdateInput) Action {
	return Action{Kind: ActionUpdateData, Update: &in}
}

// DecodeAction decodes a raw JSON object into the payload type of kind
func DecodeAction(kind ActionKind, raw []byte) (Action, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Action{}, goerr.Wrap(ErrInvalidPayload, "payload is not a JSON object", goerr.V("kind", kind))
	}

	var (
		target any
		action = Action{Kind: kind}
	)
	switch kind {
	case ActionCreateProduct:
		action.Product = &ProductInput{}
		target = action.Product
	case ActionCreatePost:
		action.Post = &PostInput{}
		target = action.Post
	case ActionSendMessage:
		action.Chat = &ChatInput{}
		target = action.Chat
	case ActionUpdateData:
		action.Update = &UpdateInput{}
		target = action.Update
	default:
		return Action{}, goerr.Wrap(ErrUnknownAction, "cannot decode action", goerr.V("kind", kind))
	}

	if err := json.Unmarshal(trimmed, target); err != nil {
		return Action{}, goerr.Wrap(ErrInvalidPayload, "failed to decode payload",
			goerr.V("kind", kind),
			goerr.V("error", err.Error()))
	}
	return action, nil
}

// payload returns the value set for the kind, nil if missing
func (a Action) payload() any {
	switch a.Kind {
	case ActionCreateProduct:
		if a.Product != nil {
			return a.Product
		}
	case ActionCreatePost:
		if a.Post != nil {
			return a.Post
		}
	case ActionSendMessage:
		if a.Chat != nil {
			return a.Chat
		}
	case ActionUpdateData:
		if a.Update != nil {
			return a.Update
		}
	}
	return nil
}

type actionJSON struct {
	Type ActionKind      `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the action as {"type": KIND, "data": PAYLOAD}
func (a Action) MarshalJSON() ([]byte, error) {
	out := actionJSON{Type: a.Kind}
	if p := a.payload(); p != nil {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal action payload", goerr.V("kind", a.Kind))
		}
		out.Data = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON
func (a *Action) UnmarshalJSON(data []byte) error {
	var in actionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return goerr.Wrap(err, "failed to unmarshal action")
	}
	if len(in.Data) == 0 {
		*a = Action{Kind: in.Type}
		return nil
	}
	decoded, err := DecodeAction(in.Type, in.Data)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}
