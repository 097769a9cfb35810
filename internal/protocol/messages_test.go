package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","session_id":"s1","action":"resync"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.SessionID != "s1" || control.Action != ActionResync {
		t.Fatalf("unexpected client control: %+v", control)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRequiresAction(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"client_control","session_id":"s1"}`)); err == nil {
		t.Fatalf("ParseClientMessage() error = nil for missing action")
	}
}

func TestParseServerEventHistoryUpdated(t *testing.T) {
	raw := []byte(`{"type":"history_updated","session_id":"s1","chat_history":[{"role":"user","content":"hello"}],"ts_ms":5}`)
	ev, err := ParseServerEvent(raw)
	if err != nil {
		t.Fatalf("ParseServerEvent() error = %v", err)
	}
	upd, ok := ev.(HistoryUpdated)
	if !ok {
		t.Fatalf("event type = %T, want HistoryUpdated", ev)
	}
	if len(upd.ChatHistory) != 1 || upd.ChatHistory[0].Content != "hello" {
		t.Fatalf("unexpected history: %+v", upd.ChatHistory)
	}
	if typ, ok := MessageTypeOf(upd); !ok || typ != TypeHistoryUpdated {
		t.Fatalf("MessageTypeOf() = %q, %v", typ, ok)
	}
}

func TestErrorFlagAcceptsBoolAndString(t *testing.T) {
	var resp ChatResponse
	if err := json.Unmarshal([]byte(`{"error":"upstream timeout"}`), &resp); err != nil {
		t.Fatalf("unmarshal string error: %v", err)
	}
	if !resp.Error.Set || resp.Error.Message != "upstream timeout" {
		t.Fatalf("string error flag = %+v", resp.Error)
	}

	resp = ChatResponse{}
	if err := json.Unmarshal([]byte(`{"error":true,"message":"boom","audio_url":null}`), &resp); err != nil {
		t.Fatalf("unmarshal bool error: %v", err)
	}
	if !resp.Error.Set || resp.Message != "boom" || resp.AudioURL != nil {
		t.Fatalf("bool error response = %+v", resp)
	}
	if resp.ChatHistory != nil {
		t.Fatalf("missing chat_history should decode as nil")
	}

	resp = ChatResponse{}
	if err := json.Unmarshal([]byte(`{"error":false,"chat_history":[]}`), &resp); err != nil {
		t.Fatalf("unmarshal empty history: %v", err)
	}
	if resp.Error.Set || resp.ChatHistory == nil {
		t.Fatalf("empty history should decode as non-nil: %+v", resp)
	}

	out, _ := json.Marshal(ErrorResponse{Error: ErrorFlag{Set: true}, ErrorType: ErrorTypeSTT})
	var generic map[string]any
	_ = json.Unmarshal(out, &generic)
	if generic["error"] != true || generic["audio_url"] != nil {
		t.Fatalf("ErrorResponse JSON = %s", out)
	}
}
