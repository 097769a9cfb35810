package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/talkback/internal/chat"
	"github.com/ent0n29/talkback/internal/logx"
	"github.com/ent0n29/talkback/internal/observability"
	"github.com/ent0n29/talkback/internal/policy"
	"github.com/ent0n29/talkback/internal/protocol"
)

// TurnResult is a completed chat turn. AudioURL is empty when synthesis
// failed; TTSError and FallbackMessage then describe the failure.
type TurnResult struct {
	SessionID       string
	History         chat.History
	Transcription   string
	Reply           string
	AudioURL        string
	HasLLMFallback  bool
	TTSError        bool
	FallbackMessage string
}

// Turn runs one chat turn for sessionID: transcribe the recording, record
// the user turn, generate a reply from the earlier history, record the
// reply and synthesize it. Errors are *TurnError.
func (a *Agent) Turn(ctx context.Context, sessionID string, audio []byte, contentType string) (TurnResult, error) {
	start := time.Now()
	turnID := uuid.NewString()
	a.touch(sessionID)
	if err := a.sessions.StartTurn(sessionID, turnID); err != nil {
		logx.Debugf("start turn session=%s: %v", sessionID, err)
	}

	res, err := a.runTurn(ctx, sessionID, audio, contentType)

	completed := err == nil
	if err := a.sessions.FinishTurn(sessionID, turnID, completed); err != nil {
		logx.Debugf("finish turn session=%s: %v", sessionID, err)
	}
	a.metrics.ObserveStage(observability.StageTurnTotal, time.Since(start))
	a.countTurn(res, err)
	if err != nil {
		logx.Warnf("turn failed session=%s turn=%s: %v", sessionID, turnID, err)
		return TurnResult{}, err
	}
	logx.Infof("turn done session=%s turn=%s messages=%d tts_error=%t in %s",
		sessionID, turnID, len(res.History), res.TTSError, time.Since(start).Round(time.Millisecond))
	if a.notifier != nil {
		a.notifier.HistoryUpdated(sessionID, res.History, res.AudioURL)
	}
	return res, nil
}

func (a *Agent) runTurn(ctx context.Context, sessionID string, audio []byte, contentType string) (TurnResult, error) {
	if len(audio) == 0 {
		return TurnResult{}, turnError(protocol.ErrorTypeSTT, ErrEmptyAudio)
	}

	text, err := a.transcribe(ctx, audio, contentType)
	if err != nil {
		return TurnResult{}, turnError(protocol.ErrorTypeSTT, err)
	}
	logx.Debugf("transcript session=%s: %q", sessionID, policy.LogSafe(text))

	prior, err := a.loadContext(ctx, sessionID)
	if err != nil {
		return TurnResult{}, turnError(protocol.ErrorTypeGeneral, err)
	}
	if err := a.appendTurn(ctx, sessionID, chat.Message{Role: chat.RoleUser, Content: text}); err != nil {
		return TurnResult{}, turnError(protocol.ErrorTypeGeneral, err)
	}

	res := TurnResult{SessionID: sessionID, Transcription: text}
	reply, err := a.generate(ctx, text, prior)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return TurnResult{}, turnError(protocol.ErrorTypeLLM, err)
		}
		logx.Warnf("llm %s failed session=%s, using apology: %v", a.llm.Name(), sessionID, err)
		a.metrics.ObserveIndicator("llm_fallback")
		reply = apologyReply
		res.HasLLMFallback = true
	}
	res.Reply = reply
	logx.Debugf("reply session=%s: %q", sessionID, policy.LogSafe(reply))
	if err := a.appendTurn(ctx, sessionID, chat.Message{Role: chat.RoleAssistant, Content: reply}); err != nil {
		return TurnResult{}, turnError(protocol.ErrorTypeGeneral, err)
	}

	history, err := a.store.History(ctx, sessionID, 0)
	if err != nil {
		return TurnResult{}, turnError(protocol.ErrorTypeGeneral, fmt.Errorf("load history: %w", err))
	}
	res.History = history

	url, err := a.synthesize(ctx, reply)
	if err != nil {
		logx.Warnf("tts %s failed session=%s: %v", a.tts.Name(), sessionID, err)
		a.metrics.ObserveIndicator("tts_error")
		res.TTSError = true
		res.FallbackMessage = ttsFallbackPrefix + reply
		return res, nil
	}
	res.AudioURL = url
	return res, nil
}

// loadContext returns the turns the model sees, oldest first.
func (a *Agent) loadContext(ctx context.Context, sessionID string) (chat.History, error) {
	start := time.Now()
	limit := 0
	if a.contextTurns > 0 {
		limit = a.contextTurns
	}
	h, err := a.store.History(ctx, sessionID, limit)
	a.metrics.ObserveStage(observability.StageStore, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return h, nil
}

func (a *Agent) appendTurn(ctx context.Context, sessionID string, msg chat.Message) error {
	start := time.Now()
	err := a.store.Append(ctx, sessionID, msg)
	a.metrics.ObserveStage(observability.StageStore, time.Since(start))
	if err != nil {
		return fmt.Errorf("append %s turn: %w", msg.Role, err)
	}
	return nil
}

func (a *Agent) countTurn(res TurnResult, err error) {
	if a.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = ErrorType(err) + "_error"
	case res.TTSError:
		outcome = "tts_error"
	case res.HasLLMFallback:
		outcome = "llm_fallback"
	}
	a.metrics.Turns.WithLabelValues(outcome).Inc()
}
