package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/talkback/internal/agent"
	"github.com/ent0n29/talkback/internal/config"
	"github.com/ent0n29/talkback/internal/httpapi"
	"github.com/ent0n29/talkback/internal/memory"
	"github.com/ent0n29/talkback/internal/observability"
	"github.com/ent0n29/talkback/internal/session"
)

// ProviderInfo describes what Build resolved, for startup logging.
type ProviderInfo struct {
	STT   string
	LLM   string
	TTS   string
	Store string
}

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Agent    *agent.Agent
	Sessions *session.Manager
	Metrics  *observability.Metrics
	Hub      *httpapi.Hub
	Info     ProviderInfo

	// Cleanup should be called on shutdown to release external resources (DB, provider clients).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, storeMode, err := memory.NewStore(ctx, memory.Options{
		Backend:     cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("history store init failed: %w", err)
	}

	generator, llmDetail, err := resolveGenerator(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("llm init failed: %w", err)
	}

	voiceSetup, err := resolveVoiceProviders(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	hub := httpapi.NewHub(metrics)
	turns, err := agent.New(agent.Options{
		Transcriber:     voiceSetup.stt,
		Generator:       generator,
		Synthesizer:     voiceSetup.tts,
		Store:           store,
		Sessions:        sessions,
		Metrics:         metrics,
		Notifier:        hub,
		ProviderTimeout: cfg.ProviderTimeout,
		ContextTurns:    cfg.HistoryContextTurns,
	})
	if err != nil {
		_ = voiceSetup.fail(err)
		_ = store.Close()
		return nil, err
	}

	api := httpapi.New(cfg, turns, metrics, hub)

	cleanup := func() error {
		var errs []string
		if voiceSetup.cleanup != nil {
			if err := voiceSetup.cleanup(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Agent:    turns,
		Sessions: sessions,
		Metrics:  metrics,
		Hub:      hub,
		Info: ProviderInfo{
			STT:   voiceSetup.sttDetail,
			LLM:   llmDetail,
			TTS:   voiceSetup.ttsDetail,
			Store: storeMode,
		},
		Cleanup: cleanup,
	}, nil
}
