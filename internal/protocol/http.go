package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ent0n29/talkback/internal/chat"
)

// Error categories reported by the chat endpoint.
const (
	ErrorTypeSTT     = "stt"
	ErrorTypeLLM     = "llm"
	ErrorTypeTTS     = "tts"
	ErrorTypeGeneral = "general"
)

// ErrorFlag is the "error" member of HTTP responses. Servers send a boolean
// alongside "message"; a bare string is accepted as the message too.
type ErrorFlag struct {
	Set     bool
	Message string
}

func (f ErrorFlag) MarshalJSON() ([]byte, error) {
	if f.Set {
		return []byte("true"), nil
	}
	return []byte("false"), nil
}

func (f *ErrorFlag) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	switch {
	case bytes.Equal(raw, []byte("null")), bytes.Equal(raw, []byte("false")):
		*f = ErrorFlag{}
		return nil
	case bytes.Equal(raw, []byte("true")):
		*f = ErrorFlag{Set: true}
		return nil
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("error field: %w", err)
	}
	*f = ErrorFlag{Set: msg != "", Message: msg}
	return nil
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Error     ErrorFlag `json:"error"`
}

// ChatResponse is the body of POST /agent/chat/{session_id}. ChatHistory is
// nil when the member was absent.
type ChatResponse struct {
	SessionID       string       `json:"session_id,omitempty"`
	ChatHistory     chat.History `json:"chat_history"`
	AudioURL        *string      `json:"audio_url"`
	Transcription   string       `json:"transcription,omitempty"`
	LLMResponse     string       `json:"llm_response,omitempty"`
	HasLLMFallback  bool         `json:"has_llm_fallback,omitempty"`
	TTSError        bool         `json:"tts_error,omitempty"`
	Error           ErrorFlag    `json:"error"`
	ErrorType       string       `json:"error_type,omitempty"`
	Message         string       `json:"message,omitempty"`
	FallbackMessage string       `json:"fallback_message,omitempty"`
}

type HistoryResponse struct {
	SessionID   string       `json:"session_id"`
	ChatHistory chat.History `json:"chat_history"`
	Error       ErrorFlag    `json:"error"`
	Message     string       `json:"message,omitempty"`
}

type ClearResponse struct {
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Error     ErrorFlag `json:"error"`
}

type TTSResponse struct {
	AudioURL *string   `json:"audio_url"`
	Error    ErrorFlag `json:"error"`
	Message  string    `json:"message,omitempty"`
}

type TranscribeResponse struct {
	Transcription string    `json:"transcription"`
	Error         ErrorFlag `json:"error"`
	Message       string    `json:"message,omitempty"`
}

type LLMQueryResponse struct {
	Input       string    `json:"input"`
	Response    string    `json:"response"`
	HasFallback bool      `json:"has_fallback"`
	Error       ErrorFlag `json:"error"`
}

// ErrorResponse is the failure body shared by the agent endpoints.
type ErrorResponse struct {
	Error           ErrorFlag `json:"error"`
	ErrorType       string    `json:"error_type"`
	Message         string    `json:"message"`
	FallbackMessage string    `json:"fallback_message"`
	AudioURL        *string   `json:"audio_url"`
}
