package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/talkback/internal/chat"
	"github.com/ent0n29/talkback/internal/logx"
	"github.com/ent0n29/talkback/internal/observability"
	"github.com/ent0n29/talkback/internal/protocol"
)

const watchQueueSize = 32

// Hub fans history events out to the websocket watchers of each session.
// Slow watchers lose events rather than block the turn that produced them.
type Hub struct {
	metrics *observability.Metrics

	mu   sync.Mutex
	subs map[string]map[*watcher]struct{}
}

type watcher struct {
	out chan any
}

func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{metrics: metrics, subs: make(map[string]map[*watcher]struct{})}
}

func (h *Hub) subscribe(sessionID string) *watcher {
	w := &watcher{out: make(chan any, watchQueueSize)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*watcher]struct{})
		h.subs[sessionID] = set
	}
	set[w] = struct{}{}
	return w
}

func (h *Hub) unsubscribe(sessionID string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sessionID]
	delete(set, w)
	if len(set) == 0 {
		delete(h.subs, sessionID)
	}
}

// Watchers reports the number of watchers of sessionID.
func (h *Hub) Watchers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

func (h *Hub) HistoryUpdated(sessionID string, history chat.History, audioURL string) {
	h.publish(sessionID, protocol.HistoryUpdated{
		Type:        protocol.TypeHistoryUpdated,
		SessionID:   sessionID,
		ChatHistory: history.Clone(),
		AudioURL:    audioURL,
		TSMs:        time.Now().UnixMilli(),
	})
}

func (h *Hub) HistoryCleared(sessionID string) {
	h.publish(sessionID, protocol.HistoryCleared{
		Type:      protocol.TypeHistoryCleared,
		SessionID: sessionID,
		TSMs:      time.Now().UnixMilli(),
	})
}

func (h *Hub) publish(sessionID string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.subs[sessionID] {
		select {
		case w.out <- msg:
		default:
			h.countOutbound(msg, "drop_full")
		}
	}
}

func (h *Hub) countOutbound(msg any, direction string) {
	if h.metrics == nil {
		return
	}
	if t, ok := protocol.MessageTypeOf(msg); ok {
		h.metrics.WSMessages.WithLabelValues(direction, string(t)).Inc()
	}
}

// handleWatchWS streams the history events of one session. A client may
// send a resync control to receive the current history again.
func (s *Server) handleWatchWS(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.hub.subscribe(sessionID)
	defer s.hub.unsubscribe(sessionID, sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.queueSnapshot(ctx, sessionID, sub)
	s.enqueue(sub, protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sessionID, Code: "watching"})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-sub.out:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					logx.Debugf("watch write session=%s: %v", sessionID, err)
					cancel()
					return
				}
				s.hub.countOutbound(msg, "outbound")
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.enqueue(sub, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Detail:    err.Error(),
			})
			continue
		}
		s.hub.countOutbound(parsed, "inbound")
		if ctl, ok := parsed.(protocol.ClientControl); ok && ctl.Action == protocol.ActionResync {
			s.queueSnapshot(ctx, sessionID, sub)
		}
	}

	cancel()
	<-writerDone
}

func (s *Server) queueSnapshot(ctx context.Context, sessionID string, sub *watcher) {
	h, err := s.agent.History(ctx, sessionID)
	if err != nil {
		s.enqueue(sub, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sessionID,
			Code:      "history_unavailable",
			Source:    "store",
			Retryable: true,
			Detail:    err.Error(),
		})
		return
	}
	s.enqueue(sub, protocol.HistoryUpdated{
		Type:        protocol.TypeHistoryUpdated,
		SessionID:   sessionID,
		ChatHistory: h,
		TSMs:        time.Now().UnixMilli(),
	})
}

// enqueue keeps websocket writes on the writer goroutine; it drops when the
// queue is full.
func (s *Server) enqueue(sub *watcher, msg any) {
	select {
	case sub.out <- msg:
	default:
		s.hub.countOutbound(msg, "drop_full")
	}
}
