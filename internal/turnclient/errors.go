package turnclient

import (
	"errors"
	"fmt"
)

// Kind classifies client-side failures the conversation loop reacts to.
type Kind string

const (
	KindSessionBootstrap Kind = "session_bootstrap_failed"
	KindHistoryFetch     Kind = "history_fetch_failed"
	KindHistoryClear     Kind = "history_clear_failed"
	KindTurn             Kind = "turn_failed"
)

// Sentinels for errors.Is.
var (
	ErrSessionBootstrapFailed = &Error{Kind: KindSessionBootstrap}
	ErrHistoryFetchFailed     = &Error{Kind: KindHistoryFetch}
	ErrHistoryClearFailed     = &Error{Kind: KindHistoryClear}
	ErrTurnFailed             = &Error{Kind: KindTurn}
)

// Error is returned by every Client operation. Message is safe to show to
// the user; Err carries the transport or decode cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s [%s]: %v", e.Kind, e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Op, e.Message)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil || t.Message != "" {
		return false
	}
	return t.Kind == e.Kind
}

// UserMessage returns the text the client should present for err.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
