package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/talkback/internal/chat"
	"github.com/ent0n29/talkback/internal/llm"
	"github.com/ent0n29/talkback/internal/logx"
	"github.com/ent0n29/talkback/internal/memory"
	"github.com/ent0n29/talkback/internal/observability"
	"github.com/ent0n29/talkback/internal/session"
	"github.com/ent0n29/talkback/internal/voice"
)

// Notifier is told about history changes so watchers can follow a session.
type Notifier interface {
	HistoryUpdated(sessionID string, history chat.History, audioURL string)
	HistoryCleared(sessionID string)
}

type Options struct {
	Transcriber voice.Transcriber
	Generator   llm.Generator
	Synthesizer voice.Synthesizer
	Store       memory.Store
	Sessions    *session.Manager
	Metrics     *observability.Metrics
	Notifier    Notifier
	// ProviderTimeout bounds each provider call. Zero means 30s.
	ProviderTimeout time.Duration
	// ContextTurns is how many earlier messages are given to the model. Zero
	// or less means all of them.
	ContextTurns int
}

// Agent runs chat turns and the single-shot provider tools.
type Agent struct {
	stt      voice.Transcriber
	llm      llm.Generator
	tts      voice.Synthesizer
	store    memory.Store
	sessions *session.Manager
	metrics  *observability.Metrics
	notifier Notifier

	providerTimeout time.Duration
	contextTurns    int
}

func New(opts Options) (*Agent, error) {
	switch {
	case opts.Transcriber == nil:
		return nil, fmt.Errorf("agent: transcriber is required")
	case opts.Generator == nil:
		return nil, fmt.Errorf("agent: generator is required")
	case opts.Synthesizer == nil:
		return nil, fmt.Errorf("agent: synthesizer is required")
	case opts.Store == nil:
		return nil, fmt.Errorf("agent: store is required")
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewManager(0)
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 30 * time.Second
	}
	return &Agent{
		stt:             opts.Transcriber,
		llm:             opts.Generator,
		tts:             opts.Synthesizer,
		store:           opts.Store,
		sessions:        opts.Sessions,
		metrics:         opts.Metrics,
		notifier:        opts.Notifier,
		providerTimeout: opts.ProviderTimeout,
		contextTurns:    opts.ContextTurns,
	}, nil
}

// Providers names the active provider per stage.
func (a *Agent) Providers() map[string]string {
	return map[string]string{
		observability.StageSTT: a.stt.Name(),
		observability.StageLLM: a.llm.Name(),
		observability.StageTTS: a.tts.Name(),
	}
}

func (a *Agent) NewSession() *session.Session {
	s := a.sessions.Create()
	a.countSessionEvent("created")
	a.updateActiveSessions()
	return s
}

// History returns the full history of sessionID. Unknown sessions have an
// empty history.
func (a *Agent) History(ctx context.Context, sessionID string) (chat.History, error) {
	a.touch(sessionID)
	h, err := a.store.History(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if h == nil {
		h = chat.History{}
	}
	return h, nil
}

// ClearHistory drops every turn of sessionID. Clearing an empty history
// succeeds.
func (a *Agent) ClearHistory(ctx context.Context, sessionID string) error {
	a.touch(sessionID)
	if err := a.store.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if err := a.sessions.ResetTurns(sessionID); err != nil {
		logx.Debugf("reset turns session=%s: %v", sessionID, err)
	}
	a.countSessionEvent("cleared")
	if a.notifier != nil {
		a.notifier.HistoryCleared(sessionID)
	}
	return nil
}

func (a *Agent) touch(sessionID string) {
	if _, created := a.sessions.Ensure(sessionID); created {
		a.countSessionEvent("adopted")
		a.updateActiveSessions()
		return
	}
	_ = a.sessions.Touch(sessionID)
}

func (a *Agent) updateActiveSessions() {
	if a.metrics == nil {
		return
	}
	a.metrics.ActiveSessions.Set(float64(a.sessions.ActiveCount()))
}

// providerCall runs fn under the provider timeout and records its stage
// latency and error code.
func (a *Agent) providerCall(ctx context.Context, stage, provider string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.providerTimeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	a.metrics.ObserveStage(stage, time.Since(start))
	if err != nil && a.metrics != nil {
		a.metrics.ProviderErrors.WithLabelValues(provider, voice.ErrorCode(err)).Inc()
	}
	return err
}

func (a *Agent) transcribe(ctx context.Context, data []byte, contentType string) (string, error) {
	var text string
	err := a.providerCall(ctx, observability.StageSTT, a.stt.Name(), func(ctx context.Context) error {
		var err error
		text, err = a.stt.Transcribe(ctx, data, contentType)
		return err
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", voice.ErrEmptyTranscript
	}
	return text, nil
}

func (a *Agent) generate(ctx context.Context, prompt string, history chat.History) (string, error) {
	var reply string
	err := a.providerCall(ctx, observability.StageLLM, a.llm.Name(), func(ctx context.Context) error {
		var err error
		reply, err = a.llm.Generate(ctx, prompt, history)
		return err
	})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", llm.ErrEmptyReply
	}
	return reply, nil
}

func (a *Agent) synthesize(ctx context.Context, text string) (string, error) {
	spoken := voice.SpeechText(text)
	if spoken == "" {
		return "", voice.ErrEmptyText
	}
	var url string
	err := a.providerCall(ctx, observability.StageTTS, a.tts.Name(), func(ctx context.Context) error {
		var err error
		url, err = a.tts.Synthesize(ctx, spoken)
		return err
	})
	return url, err
}

func (a *Agent) countSessionEvent(event string) {
	if a.metrics == nil {
		return
	}
	a.metrics.SessionEvents.WithLabelValues(event).Inc()
}
