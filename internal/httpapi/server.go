package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/talkback/internal/agent"
	"github.com/ent0n29/talkback/internal/config"
	"github.com/ent0n29/talkback/internal/observability"
	"github.com/ent0n29/talkback/internal/protocol"
)

type Server struct {
	cfg       config.Config
	agent     *agent.Agent
	metrics   *observability.Metrics
	hub       *Hub
	upgrader  websocket.Upgrader
	uploads   http.Handler
	startedAt time.Time
}

// New wires the HTTP surface around a. hub may be nil, in which case the
// watch feed has no publisher.
func New(cfg config.Config, a *agent.Agent, metrics *observability.Metrics, hub *Hub) *Server {
	if hub == nil {
		hub = NewHub(metrics)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	uploads := http.NotFoundHandler()
	if strings.TrimSpace(cfg.UploadsDir) != "" {
		uploads = http.FileServer(http.Dir(cfg.UploadsDir))
	}
	return &Server{
		cfg:       cfg,
		agent:     a,
		metrics:   metrics,
		hub:       hub,
		uploads:   uploads,
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers may only watch from the same origin unless
				// APP_ALLOW_ANY_ORIGIN is set.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", s.uploads))

	r.Post("/agent/session/new", s.handleNewSession)
	r.Post("/agent/chat/{id}", s.handleChat)
	r.Get("/agent/chat/{id}/history", s.handleGetHistory)
	r.Delete("/agent/chat/{id}/history", s.handleClearHistory)
	r.Get("/agent/chat/{id}/ws", s.handleWatchWS)
	r.Get("/agent/perf/latency", s.handlePerfLatency)

	r.Post("/upload", s.handleUpload)
	r.Post("/tts", s.handleTTS)
	r.Post("/tts/echo", s.handleEcho)
	r.Post("/transcribe/file", s.handleTranscribe)
	r.Post("/llm/query", s.handleLLMQuery)
	r.Post("/llm/query/audio", s.handleLLMQueryAudio)

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes the fallback body shared by every endpoint.
func respondError(w http.ResponseWriter, status int, errorType, message string) {
	respondJSON(w, status, protocol.ErrorResponse{
		Error:           protocol.ErrorFlag{Set: true},
		ErrorType:       errorType,
		Message:         message,
		FallbackMessage: agent.FallbackMessage(errorType),
	})
}

// respondAgentError maps an agent failure to a 500 with its category.
func respondAgentError(w http.ResponseWriter, err error) {
	respondError(w, http.StatusInternalServerError, agent.ErrorType(err), errorMessage(err))
}

func errorMessage(err error) string {
	var te *agent.TurnError
	if errors.As(err, &te) && te.Err != nil {
		return te.Err.Error()
	}
	return err.Error()
}
