package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ent0n29/talkback/internal/logx"
	"github.com/ent0n29/talkback/internal/protocol"
)

type uploadResponse struct {
	Filename    string             `json:"filename"`
	ContentType string             `json:"content_type"`
	Size        int                `json:"size"`
	URL         string             `json:"url"`
	Error       protocol.ErrorFlag `json:"error"`
}

type echoResponse struct {
	AudioURL        *string            `json:"audio_url"`
	Transcription   string             `json:"transcription"`
	Error           protocol.ErrorFlag `json:"error"`
	ErrorType       string             `json:"error_type,omitempty"`
	FallbackMessage string             `json:"fallback_message,omitempty"`
}

type audioQueryResponse struct {
	AudioURL       *string            `json:"audio_url"`
	Transcription  string             `json:"transcription"`
	LLMResponse    string             `json:"llm_response"`
	HasLLMFallback bool               `json:"has_llm_fallback,omitempty"`
	TTSError       bool               `json:"tts_error,omitempty"`
	Error          protocol.ErrorFlag `json:"error"`
}

// handleUpload stores a file under the uploads dir and returns its URL.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, contentType, name, err := s.readUploadNamed(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, protocol.ErrorTypeGeneral, err.Error())
		return
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		respondError(w, http.StatusBadRequest, protocol.ErrorTypeGeneral, "invalid file name")
		return
	}
	if strings.TrimSpace(s.cfg.UploadsDir) == "" {
		respondError(w, http.StatusInternalServerError, protocol.ErrorTypeGeneral, "uploads dir not configured")
		return
	}
	if err := os.MkdirAll(s.cfg.UploadsDir, 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, protocol.ErrorTypeGeneral, err.Error())
		return
	}
	if err := os.WriteFile(filepath.Join(s.cfg.UploadsDir, name), data, 0o644); err != nil {
		logx.Errorf("upload %s: %v", name, err)
		respondError(w, http.StatusInternalServerError, protocol.ErrorTypeGeneral, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, uploadResponse{
		Filename:    name,
		ContentType: contentType,
		Size:        len(data),
		URL:         "/uploads/" + name,
	})
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.FormValue("text"))
	if text == "" {
		respondError(w, http.StatusBadRequest, protocol.ErrorTypeTTS, "Empty text provided")
		return
	}
	url, err := s.agent.Synthesize(r.Context(), text)
	if err != nil {
		respondAgentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, protocol.TTSResponse{AudioURL: &url})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, protocol.ErrorTypeSTT, err.Error())
		return
	}
	text, err := s.agent.Transcribe(r.Context(), data, contentType)
	if err != nil {
		respondAgentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, protocol.TranscribeResponse{Transcription: text})
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, protocol.ErrorTypeSTT, err.Error())
		return
	}
	res, err := s.agent.Echo(r.Context(), data, contentType)
	if err != nil {
		respondAgentError(w, err)
		return
	}
	body := echoResponse{Transcription: res.Transcription}
	if res.AudioURL == "" {
		body.Error = protocol.ErrorFlag{Set: true}
		body.ErrorType = protocol.ErrorTypeTTS
		body.FallbackMessage = res.FallbackMessage
	} else {
		url := res.AudioURL
		body.AudioURL = &url
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleLLMQuery(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.FormValue("text"))
	if text == "" {
		respondError(w, http.StatusBadRequest, protocol.ErrorTypeLLM, "Empty text provided")
		return
	}
	reply, fallback, err := s.agent.Query(r.Context(), text)
	if err != nil {
		respondAgentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, protocol.LLMQueryResponse{Input: text, Response: reply, HasFallback: fallback})
}

func (s *Server) handleLLMQueryAudio(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, protocol.ErrorTypeSTT, err.Error())
		return
	}
	res, err := s.agent.QueryAudio(r.Context(), data, contentType)
	if err != nil {
		respondAgentError(w, err)
		return
	}
	body := audioQueryResponse{
		Transcription:  res.Transcription,
		LLMResponse:    res.Reply,
		HasLLMFallback: res.HasLLMFallback,
		TTSError:       res.TTSError,
	}
	if res.AudioURL != "" {
		url := res.AudioURL
		body.AudioURL = &url
	}
	respondJSON(w, http.StatusOK, body)
}
