package chat

import "strings"

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one turn of a conversation as exchanged over the wire.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is the ordered turn log of a session. It is append-only on the
// server; clients only ever replace their copy wholesale.
type History []Message

func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

func (h History) Equal(other History) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

// Last returns the most recent n turns, or all of them when n <= 0.
func (h History) Last(n int) History {
	if n <= 0 || n >= len(h) {
		return h.Clone()
	}
	return h[len(h)-n:].Clone()
}

// Transcript renders history in the "User: ... / Assistant: ..." form used as
// LLM context.
func (h History) Transcript() string {
	var b strings.Builder
	for _, m := range h {
		switch m.Role {
		case RoleUser:
			b.WriteString("User: ")
		case RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	return b.String()
}
