package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/talkback/internal/config"
	"github.com/ent0n29/talkback/internal/llm"
)

func resolveGenerator(ctx context.Context, cfg config.Config) (llm.Generator, string, error) {
	mode := normalizeMode(cfg.LLMProvider)
	if mode == "auto" {
		mode = "mock"
		if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
			mode = "gemini"
		}
	}
	switch mode {
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, "", fmt.Errorf("LLM_PROVIDER=gemini but GEMINI_API_KEY is not set")
		}
		g, err := llm.NewGemini(ctx, llm.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return nil, "", err
		}
		return g, "gemini " + cfg.GeminiModel, nil
	case "mock":
		return llm.NewMock(), "mock", nil
	default:
		return nil, "", fmt.Errorf("invalid LLM_PROVIDER: %q (expected auto|gemini|mock)", cfg.LLMProvider)
	}
}
