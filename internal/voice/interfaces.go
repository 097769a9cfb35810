package voice

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyTranscript means the recording held no recognizable speech.
	ErrEmptyTranscript = errors.New("transcription returned empty result")
	// ErrEmptyText is returned when asked to synthesize nothing.
	ErrEmptyText = errors.New("no text to synthesize")
)

// Transcriber turns one complete recording into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

// Synthesizer renders text to speech and returns a URL the client can play.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (string, error)
}

// ProviderError describes an upstream failure.
type ProviderError struct {
	Provider  string
	Code      string
	Detail    string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrorCode returns a metrics label for err.
func ErrorCode(err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return pe.Code
	case errors.Is(err, ErrEmptyTranscript):
		return "empty_transcript"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
