package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/talkback/internal/chat"
)

// ErrEmptyReply is returned when a model answers with no text.
var ErrEmptyReply = errors.New("model returned empty response")

// Generator produces one assistant reply for a user prompt. history holds the
// turns before prompt, oldest first.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string, history chat.History) (string, error)
}

// BuildPrompt renders history followed by the new prompt in the
// "User: ... / Assistant: ..." transcript form.
func BuildPrompt(prompt string, history chat.History) string {
	prompt = strings.TrimSpace(prompt)
	if len(history) == 0 {
		return prompt
	}
	return fmt.Sprintf("%sUser: %s\nAssistant:", history.Transcript(), prompt)
}
