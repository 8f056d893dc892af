package action_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/huddle/pkg/action"
	"github.com/m-mizutani/huddle/pkg/model"
)

func TestExtract(t *testing.T) {
	testCases := map[string]struct {
		text  string
		verbs []model.ActionKind
		raws  []string
	}{
		"no actions": {
			text: "Sounds good, let's talk tomorrow.",
		},
		"single action": {
			text:  `Let me add it. CREATE_PRODUCT: {"name": "Mug", "price": 12}`,
			verbs: []model.ActionKind{model.ActionCreateProduct},
			raws:  []string{`{"name": "Mug", "price": 12}`},
		},
		"text order across verbs": {
			text:  "SEND_MESSAGE: {\"text\": \"hi\"}\nthen CREATE_POST:{\"title\": \"T\", \"content\": \"C\"}\nCREATE_PRODUCT: {\"name\": \"A\"}",
			verbs: []model.ActionKind{model.ActionSendMessage, model.ActionCreatePost, model.ActionCreateProduct},
			raws:  []string{`{"text": "hi"}`, `{"title": "T", "content": "C"}`, `{"name": "A"}`},
		},
		"nested object and brace in string": {
			text:  `CREATE_POST: {"title": "Use {braces}", "content": "x", "meta": {"a": 1}} done`,
			verbs: []model.ActionKind{model.ActionCreatePost},
			raws:  []string{`{"title": "Use {braces}", "content": "x", "meta": {"a": 1}}`},
		},
		"escaped quote in string": {
			text:  `SEND_MESSAGE: {"text": "say \"}\" loud"}`,
			verbs: []model.ActionKind{model.ActionSendMessage},
			raws:  []string{`{"text": "say \"}\" loud"}`},
		},
		"verb without object": {
			text: "I will CREATE_PRODUCT: later when we know the price",
		},
		"unterminated object": {
			text: `CREATE_PRODUCT: {"name": "Mug"`,
		},
		"update is not extracted": {
			text: `UPDATE_DATA: {"type": "product", "id": "prod-1", "updates": {}}`,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got := action.Extract(tc.text)
			gt.A(t, got).Length(len(tc.verbs))
			for i := range got {
				gt.Equal(t, got[i].Verb, tc.verbs[i])
				gt.Equal(t, got[i].Raw, tc.raws[i])
			}
		})
	}
}

func TestParse(t *testing.T) {
	ctx := context.Background()

	t.Run("unquoted keys yield no action", func(t *testing.T) {
		actions := action.Parse(ctx, "SEND_MESSAGE: {user: 'Bot', text: 'hi'}")
		gt.A(t, actions).Length(0)
	})

	t.Run("malformed candidate does not affect others", func(t *testing.T) {
		text := `First CREATE_PRODUCT: {"name": "Good", "price": 10}
Second CREATE_PRODUCT: {"name": "Bad", "price": "ten"}
Third CREATE_POST: {"title": "Hello", "content": "World"}`
		actions := action.Parse(ctx, text)
		gt.A(t, actions).Length(2)
		gt.Equal(t, actions[0].Kind, model.ActionCreateProduct)
		gt.Equal(t, actions[0].Product.Name, "Good")
		gt.Equal(t, actions[1].Kind, model.ActionCreatePost)
		gt.Equal(t, actions[1].Post.Title, "Hello")
	})

	t.Run("typed payload", func(t *testing.T) {
		actions := action.Parse(ctx, `SEND_MESSAGE: {"username": "Bot", "message": "hello"}`)
		gt.A(t, actions).Length(1)
		gt.Equal(t, actions[0].Chat.Sender("x"), "Bot")
		gt.Equal(t, actions[0].Chat.Body(), "hello")
	})
}
