package agent

import (
	"errors"
	"fmt"

	"github.com/ent0n29/talkback/internal/protocol"
)

// User-facing messages per failure category.
var fallbackMessages = map[string]string{
	protocol.ErrorTypeSTT:     "I'm having trouble hearing you right now. Could you please try again?",
	protocol.ErrorTypeLLM:     "I'm having difficulty processing your request at the moment. Please try again later.",
	protocol.ErrorTypeTTS:     "I'm having trouble generating audio right now. Here's my text response instead.",
	protocol.ErrorTypeGeneral: "I'm experiencing technical difficulties. Please try again in a moment.",
}

// apologyReply stands in for the model's answer when generation fails.
const apologyReply = "I apologize, but I'm having trouble processing your request right now. Could you please try again?"

const ttsFallbackPrefix = "I'm having trouble with audio generation. Here's my response: "

var (
	// ErrEmptyAudio is returned for uploads with no audio in them.
	ErrEmptyAudio = errors.New("no audio received")
	// ErrEmptyText is returned for text tools called without text.
	ErrEmptyText = errors.New("no text provided")
)

// FallbackMessage returns the message shown to the user for errorType.
func FallbackMessage(errorType string) string {
	if msg, ok := fallbackMessages[errorType]; ok {
		return msg
	}
	return fallbackMessages[protocol.ErrorTypeGeneral]
}

// TurnError is a failed pipeline step. Type is one of the protocol.ErrorType
// constants.
type TurnError struct {
	Type string
	Err  error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s: %v", e.Type, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// FallbackMessage is the text the client shows in place of a reply.
func (e *TurnError) FallbackMessage() string {
	return FallbackMessage(e.Type)
}

func turnError(errorType string, err error) *TurnError {
	return &TurnError{Type: errorType, Err: err}
}

// ErrorType classifies err for an error response.
func ErrorType(err error) string {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Type
	}
	return protocol.ErrorTypeGeneral
}
