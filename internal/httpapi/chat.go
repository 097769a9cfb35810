package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/talkback/internal/agent"
	"github.com/ent0n29/talkback/internal/protocol"
)

var errMissingFile = errors.New("multipart field \"file\" is required")

func (s *Server) handleNewSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.agent.NewSession()
	respondJSON(w, http.StatusOK, protocol.SessionResponse{SessionID: sess.ID})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	data, contentType, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, protocol.ErrorTypeSTT, err.Error())
		return
	}

	res, err := s.agent.Turn(r.Context(), sessionID, data, contentType)
	if err != nil {
		respondAgentError(w, err)
		return
	}

	body := protocol.ChatResponse{
		SessionID:      res.SessionID,
		ChatHistory:    res.History,
		Transcription:  res.Transcription,
		LLMResponse:    res.Reply,
		HasLLMFallback: res.HasLLMFallback,
	}
	if res.TTSError {
		body.TTSError = true
		body.FallbackMessage = res.FallbackMessage
	} else {
		url := res.AudioURL
		body.AudioURL = &url
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	h, err := s.agent.History(r.Context(), sessionID)
	if err != nil {
		respondAgentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, protocol.HistoryResponse{SessionID: sessionID, ChatHistory: h})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	if err := s.agent.ClearHistory(r.Context(), sessionID); err != nil {
		respondAgentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, protocol.ClearResponse{SessionID: sessionID, Message: "Chat history cleared"})
}

func sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, protocol.ErrorTypeGeneral, "missing session id")
		return "", false
	}
	return id, true
}

// readUpload returns the bytes and content type of the multipart "file"
// field, bounded by the configured upload limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	data, contentType, _, err := s.readUploadNamed(w, r)
	return data, contentType, err
}

func (s *Server) readUploadNamed(w http.ResponseWriter, r *http.Request) ([]byte, string, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return nil, "", "", fmt.Errorf("parse upload: %w", err)
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", errMissingFile
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", "", fmt.Errorf("read upload: %w", err)
	}
	return data, header.Header.Get("Content-Type"), header.Filename, nil
}

var _ agent.Notifier = (*Hub)(nil)
