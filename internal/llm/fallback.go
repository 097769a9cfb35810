package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ent0n29/talkback/internal/chat"
)

// Fallback tries primary first and answers from fallback on error.
type Fallback struct {
	primary  Generator
	fallback Generator
}

func NewFallback(primary, fallback Generator) *Fallback {
	return &Fallback{primary: primary, fallback: fallback}
}

func (f *Fallback) Name() string {
	if f == nil || f.primary == nil {
		return "fallback"
	}
	return f.primary.Name()
}

func (f *Fallback) Generate(ctx context.Context, prompt string, history chat.History) (string, error) {
	if f == nil || f.primary == nil {
		if f != nil && f.fallback != nil {
			return f.fallback.Generate(ctx, prompt, history)
		}
		return "", fmt.Errorf("fallback generator misconfigured")
	}
	reply, err := f.primary.Generate(ctx, prompt, history)
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || f.fallback == nil {
		return "", err
	}
	reply, fbErr := f.fallback.Generate(ctx, prompt, history)
	if fbErr != nil {
		return "", fmt.Errorf("primary failed: %v; fallback failed: %w", err, fbErr)
	}
	return reply, nil
}
