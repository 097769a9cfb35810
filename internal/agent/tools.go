package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/talkback/internal/protocol"
)

// Transcribe runs speech-to-text on a single upload.
func (a *Agent) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	if len(audio) == 0 {
		return "", turnError(protocol.ErrorTypeSTT, ErrEmptyAudio)
	}
	text, err := a.transcribe(ctx, audio, contentType)
	if err != nil {
		return "", turnError(protocol.ErrorTypeSTT, err)
	}
	return text, nil
}

// Synthesize renders text and returns the audio URL.
func (a *Agent) Synthesize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", turnError(protocol.ErrorTypeTTS, ErrEmptyText)
	}
	url, err := a.synthesize(ctx, text)
	if err != nil {
		return "", turnError(protocol.ErrorTypeTTS, err)
	}
	return url, nil
}

// Query answers text without session history. A failing model yields the
// apology reply with fallback set.
func (a *Agent) Query(ctx context.Context, text string) (reply string, fallback bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, turnError(protocol.ErrorTypeLLM, ErrEmptyText)
	}
	reply, err = a.generate(ctx, text, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", false, turnError(protocol.ErrorTypeLLM, err)
		}
		a.metrics.ObserveIndicator("llm_fallback")
		return apologyReply, true, nil
	}
	return reply, false, nil
}

// EchoResult is the outcome of Echo. AudioURL is empty when synthesis failed.
type EchoResult struct {
	Transcription   string
	AudioURL        string
	FallbackMessage string
}

// Echo transcribes audio and speaks the transcript back.
func (a *Agent) Echo(ctx context.Context, audio []byte, contentType string) (EchoResult, error) {
	text, err := a.Transcribe(ctx, audio, contentType)
	if err != nil {
		return EchoResult{}, err
	}
	res := EchoResult{Transcription: text}
	url, err := a.synthesize(ctx, text)
	if err != nil {
		res.FallbackMessage = fmt.Sprintf("I heard you say: %s (Audio generation failed)", text)
		return res, nil
	}
	res.AudioURL = url
	return res, nil
}

// AudioQueryResult is the outcome of QueryAudio.
type AudioQueryResult struct {
	Transcription  string
	Reply          string
	AudioURL       string
	HasLLMFallback bool
	TTSError       bool
}

// QueryAudio answers a spoken question without session history.
func (a *Agent) QueryAudio(ctx context.Context, audio []byte, contentType string) (AudioQueryResult, error) {
	text, err := a.Transcribe(ctx, audio, contentType)
	if err != nil {
		return AudioQueryResult{}, err
	}
	reply, fallback, err := a.Query(ctx, text)
	if err != nil {
		return AudioQueryResult{}, err
	}
	res := AudioQueryResult{Transcription: text, Reply: reply, HasLLMFallback: fallback}
	url, err := a.synthesize(ctx, reply)
	if err != nil {
		res.TTSError = true
		return res, nil
	}
	res.AudioURL = url
	return res, nil
}
