package voice

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// NewFailoverTranscriber prefers primary and switches to fallback when it
// fails. Once fallback succeeds it stays active until it fails; then primary
// is retried.
func NewFailoverTranscriber(primary, fallback Transcriber) Transcriber {
	return &failoverTranscriber{state: &failoverState{}, primary: primary, fallback: fallback}
}

// NewFailoverSynthesizer is the TTS counterpart of NewFailoverTranscriber.
func NewFailoverSynthesizer(primary, fallback Synthesizer) Synthesizer {
	return &failoverSynthesizer{state: &failoverState{}, primary: primary, fallback: fallback}
}

type failoverState struct {
	fallbackActive atomic.Bool
}

func (s *failoverState) activateFallback() {
	s.fallbackActive.Store(true)
}

func (s *failoverState) deactivateFallback() {
	s.fallbackActive.Store(false)
}

func (s *failoverState) isFallbackActive() bool {
	return s.fallbackActive.Load()
}

// shouldFailover reports whether err says something about the provider
// rather than about the request.
func shouldFailover(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrEmptyTranscript), errors.Is(err, ErrEmptyText):
		return false
	default:
		return true
	}
}

type failoverTranscriber struct {
	state    *failoverState
	primary  Transcriber
	fallback Transcriber
}

func (p *failoverTranscriber) Name() string {
	if p.state.isFallbackActive() {
		return p.fallback.Name()
	}
	return p.primary.Name()
}

func (p *failoverTranscriber) Transcribe(ctx context.Context, data []byte, contentType string) (string, error) {
	first, second := p.primary, p.fallback
	if p.state.isFallbackActive() {
		first, second = p.fallback, p.primary
	}

	text, firstErr := first.Transcribe(ctx, data, contentType)
	if !shouldFailover(firstErr) {
		return text, firstErr
	}
	text, secondErr := second.Transcribe(ctx, data, contentType)
	if secondErr != nil {
		return "", fmt.Errorf("stt %s failed: %v; stt %s failed: %w", first.Name(), firstErr, second.Name(), secondErr)
	}
	if second == p.fallback {
		p.state.activateFallback()
	} else {
		p.state.deactivateFallback()
	}
	return text, nil
}

type failoverSynthesizer struct {
	state    *failoverState
	primary  Synthesizer
	fallback Synthesizer
}

func (p *failoverSynthesizer) Name() string {
	if p.state.isFallbackActive() {
		return p.fallback.Name()
	}
	return p.primary.Name()
}

func (p *failoverSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	first, second := p.primary, p.fallback
	if p.state.isFallbackActive() {
		first, second = p.fallback, p.primary
	}

	url, firstErr := first.Synthesize(ctx, text)
	if !shouldFailover(firstErr) {
		return url, firstErr
	}
	url, secondErr := second.Synthesize(ctx, text)
	if secondErr != nil {
		return "", fmt.Errorf("tts %s failed: %v; tts %s failed: %w", first.Name(), firstErr, second.Name(), secondErr)
	}
	if second == p.fallback {
		p.state.activateFallback()
	} else {
		p.state.deactivateFallback()
	}
	return url, nil
}
