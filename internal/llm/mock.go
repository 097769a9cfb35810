package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/talkback/internal/chat"
)

// Mock provides deterministic local replies when no model is configured.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Generate(ctx context.Context, prompt string, history chat.History) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	base := strings.TrimSpace(prompt)
	if base == "" {
		base = "I am listening."
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != chat.RoleUser {
			continue
		}
		if last := strings.TrimSpace(history[i].Content); last != "" {
			return fmt.Sprintf("I heard you: %s\nI also remember: %s", base, last), nil
		}
	}
	return fmt.Sprintf("I heard you: %s", base), nil
}
