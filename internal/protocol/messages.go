package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ent0n29/talkback/internal/chat"
)

// MessageType identifies websocket payload variants on the history watch feed.
type MessageType string

const (
	TypeClientControl  MessageType = "client_control"
	TypeHistoryUpdated MessageType = "history_updated"
	TypeHistoryCleared MessageType = "history_cleared"
	TypeSystemEvent    MessageType = "system_event"
	TypeErrorEvent     MessageType = "error_event"
)

// Client control actions.
const (
	ActionResync = "resync"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

// HistoryUpdated carries the full history after a turn completed.
type HistoryUpdated struct {
	Type        MessageType  `json:"type"`
	SessionID   string       `json:"session_id"`
	ChatHistory chat.History `json:"chat_history"`
	AudioURL    string       `json:"audio_url,omitempty"`
	TSMs        int64        `json:"ts_ms"`
}

type HistoryCleared struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TSMs      int64       `json:"ts_ms"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// ParseServerEvent decodes a watch feed event.
func ParseServerEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	var (
		out any
		err error
	)
	switch env.Type {
	case TypeHistoryUpdated:
		var msg HistoryUpdated
		err = json.Unmarshal(raw, &msg)
		out = msg
	case TypeHistoryCleared:
		var msg HistoryCleared
		err = json.Unmarshal(raw, &msg)
		out = msg
	case TypeSystemEvent:
		var msg SystemEvent
		err = json.Unmarshal(raw, &msg)
		out = msg
	case TypeErrorEvent:
		var msg ErrorEvent
		err = json.Unmarshal(raw, &msg)
		out = msg
	default:
		return nil, ErrUnsupportedType
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func MessageTypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case ClientControl:
		return m.Type, true
	case HistoryUpdated:
		return m.Type, true
	case HistoryCleared:
		return m.Type, true
	case SystemEvent:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
