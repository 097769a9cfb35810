package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type MurfConfig struct {
	APIKey     string
	BaseURL    string
	VoiceID    string
	Format     string
	SampleRate int
	HTTPClient *http.Client
}

// MurfSynthesizer generates speech with the Murf REST API. The returned URL
// points at Murf's hosted audio file.
type MurfSynthesizer struct {
	rest       *restClient
	voiceID    string
	format     string
	sampleRate int
}

func NewMurfSynthesizer(cfg MurfConfig) *MurfSynthesizer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.murf.ai"
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = "en-US-terrell"
	}
	if strings.TrimSpace(cfg.Format) == "" {
		cfg.Format = "MP3"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &MurfSynthesizer{
		rest: &restClient{
			provider:    "murf",
			baseURL:     cfg.BaseURL,
			http:        cfg.HTTPClient,
			headers:     map[string]string{"api-key": strings.TrimSpace(cfg.APIKey)},
			backoffBase: 250 * time.Millisecond,
		},
		voiceID:    cfg.VoiceID,
		format:     strings.ToUpper(cfg.Format),
		sampleRate: cfg.SampleRate,
	}
}

func (s *MurfSynthesizer) Name() string { return "murf" }

type murfRequest struct {
	Text        string `json:"text"`
	VoiceID     string `json:"voiceId"`
	Format      string `json:"format"`
	SampleRate  int    `json:"sampleRate"`
	ChannelType string `json:"channelType"`
}

type murfResponse struct {
	AudioFile string `json:"audioFile"`
}

func (s *MurfSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	body, err := json.Marshal(murfRequest{
		Text:        text,
		VoiceID:     s.voiceID,
		Format:      s.format,
		SampleRate:  s.sampleRate,
		ChannelType: "STEREO",
	})
	if err != nil {
		return "", err
	}
	var res murfResponse
	if err := s.rest.do(ctx, http.MethodPost, "/v1/speech/generate", "application/json", body, &res); err != nil {
		return "", err
	}
	if strings.TrimSpace(res.AudioFile) == "" {
		return "", &ProviderError{Provider: s.Name(), Code: "bad_response", Detail: "no audio URL in response"}
	}
	return res.AudioFile, nil
}
