package memory

import (
	"context"
	"errors"
	"time"

	"github.com/ent0n29/talkback/internal/chat"
)

// ErrInvalidMessage is returned when a message has an unknown role.
var ErrInvalidMessage = errors.New("memory: invalid message")

// TurnRecord stores a single user or assistant turn of a session.
type TurnRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	Role      chat.Role `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (r TurnRecord) Message() chat.Message {
	return chat.Message{Role: r.Role, Content: r.Content}
}

// Store is a keyed append log of turns. Appends for one session are
// serialized and land in order; an unknown session has an empty history.
type Store interface {
	// Append adds msgs to the end of the session's history atomically.
	Append(ctx context.Context, sessionID string, msgs ...chat.Message) error
	// History returns the last limit turns in order, or all when limit <= 0.
	History(ctx context.Context, sessionID string, limit int) (chat.History, error)
	// Clear removes every turn of the session. Clearing an empty session is
	// not an error.
	Clear(ctx context.Context, sessionID string) error
	Close() error
}

func validate(msgs []chat.Message) error {
	for _, m := range msgs {
		if !m.Role.Valid() {
			return ErrInvalidMessage
		}
	}
	return nil
}

func toHistory(records []TurnRecord) chat.History {
	h := make(chat.History, 0, len(records))
	for _, r := range records {
		h = append(h, r.Message())
	}
	return h
}
