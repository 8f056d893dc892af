// Package action turns agent output into typed actions and applies them to the data store.
package action

import (
	"context"
	"strings"

	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/utils/logging"
)

// Verbs that agents may embed in generated text. UPDATE_DATA is only accepted from direct calls.
var extractVerbs = []model.ActionKind{
	model.ActionCreateProduct,
	model.ActionCreatePost,
	model.ActionSendMessage,
}

// Candidate is a raw, not yet decoded action found in text
type Candidate struct {
	Verb model.ActionKind
	Raw  string
}

// Extract finds every `VERB: {...}` occurrence in text and returns them in order of appearance.
// The object literal is delimited by a brace-balanced scan that ignores braces inside
// double-quoted strings. An occurrence without a complete object is skipped.
func Extract(text string) []Candidate {
	var out []Candidate
	pos := 0
	for pos < len(text) {
		verb, at := nextVerb(text, pos)
		if at < 0 {
			break
		}

		start := at + len(verb) + 1
		for start < len(text) && isSpace(text[start]) {
			start++
		}
		if start >= len(text) || text[start] != '{' {
			pos = at + len(verb) + 1
			continue
		}

		end := matchBrace(text, start)
		if end < 0 {
			pos = start + 1
			continue
		}

		out = append(out, Candidate{Verb: verb, Raw: text[start : end+1]})
		pos = end + 1
	}
	return out
}

// nextVerb returns the verb whose "VERB:" marker appears first at or after pos
func nextVerb(text string, pos int) (model.ActionKind, int) {
	var (
		found model.ActionKind
		best  = -1
	)
	for _, verb := range extractVerbs {
		idx := strings.Index(text[pos:], string(verb)+":")
		if idx < 0 {
			continue
		}
		if best < 0 || pos+idx < best {
			best = pos + idx
			found = verb
		}
	}
	return found, best
}

// matchBrace returns the index of the brace closing the one at start, or -1
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Parse extracts and decodes actions from text. A candidate that fails to decode is logged and
// dropped without affecting the others.
func Parse(ctx context.Context, text string) []model.Action {
	candidates := Extract(text)
	if len(candidates) == 0 {
		return nil
	}

	logger := logging.From(ctx)
	actions := make([]model.Action, 0, len(candidates))
	for _, c := range candidates {
		action, err := model.DecodeAction(c.Verb, []byte(c.Raw))
		if err != nil {
			logger.Warn("dropped malformed action",
				"action", c.Verb,
				"raw", logging.Preview(c.Raw, 200),
				"error", err)
			continue
		}
		actions = append(actions, action)
	}
	return actions
}
