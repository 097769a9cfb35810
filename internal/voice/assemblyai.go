package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/talkback/internal/reliability"
)

type AssemblyAIConfig struct {
	APIKey  string
	BaseURL string
	// PollInterval is the first wait between transcript status checks; later
	// waits back off up to MaxPollInterval.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	HTTPClient      *http.Client
}

// AssemblyAITranscriber uses the AssemblyAI REST API: upload, create a
// transcript, then poll until it completes.
type AssemblyAITranscriber struct {
	rest            *restClient
	pollInterval    time.Duration
	maxPollInterval time.Duration
}

func NewAssemblyAITranscriber(cfg AssemblyAIConfig) *AssemblyAITranscriber {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.assemblyai.com"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxPollInterval < cfg.PollInterval {
		cfg.MaxPollInterval = 3 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &AssemblyAITranscriber{
		rest: &restClient{
			provider:    "assemblyai",
			baseURL:     cfg.BaseURL,
			http:        cfg.HTTPClient,
			headers:     map[string]string{"Authorization": strings.TrimSpace(cfg.APIKey)},
			backoffBase: 250 * time.Millisecond,
		},
		pollInterval:    cfg.PollInterval,
		maxPollInterval: cfg.MaxPollInterval,
	}
}

func (t *AssemblyAITranscriber) Name() string { return "assemblyai" }

type assemblyUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type assemblyTranscript struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

func (t *AssemblyAITranscriber) Transcribe(ctx context.Context, audio []byte, _ string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyTranscript
	}

	var upload assemblyUploadResponse
	if err := t.rest.do(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", audio, &upload); err != nil {
		return "", err
	}
	if upload.UploadURL == "" {
		return "", &ProviderError{Provider: t.Name(), Code: "bad_response", Detail: "upload_url missing"}
	}

	body, err := json.Marshal(map[string]string{"audio_url": upload.UploadURL})
	if err != nil {
		return "", err
	}
	var tr assemblyTranscript
	if err := t.rest.do(ctx, http.MethodPost, "/v2/transcript", "application/json", body, &tr); err != nil {
		return "", err
	}
	if tr.ID == "" {
		return "", &ProviderError{Provider: t.Name(), Code: "bad_response", Detail: "transcript id missing"}
	}

	for attempt := 0; ; attempt++ {
		switch tr.Status {
		case "completed":
			text := strings.TrimSpace(tr.Text)
			if text == "" {
				return "", ErrEmptyTranscript
			}
			return text, nil
		case "error":
			return "", &ProviderError{Provider: t.Name(), Code: "transcript_error", Detail: tr.Error}
		}

		wait := reliability.ExponentialBackoff(attempt, t.pollInterval, t.maxPollInterval)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
		if err := t.rest.do(ctx, http.MethodGet, "/v2/transcript/"+tr.ID, "", nil, &tr); err != nil {
			return "", err
		}
	}
}
