package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ClientConfig holds settings for the terminal conversation client.
type ClientConfig struct {
	BaseURL        string
	SessionID      string
	SubmitTimeout  time.Duration
	RequestTimeout time.Duration

	// RestartDelay and ListenDelay are the two waits between the end of
	// playback and the next recording.
	RestartDelay time.Duration
	ListenDelay  time.Duration

	CaptureBinary string
	CaptureDevice string
	PlayerBinary  string
	SampleRate    int

	Visualizer      bool
	VisualizerFrame time.Duration

	LogFile string
}

// LoadClient reads client settings from .env, the YAML overlay and the
// environment.
func LoadClient() (ClientConfig, error) {
	if err := loadSources(); err != nil {
		return ClientConfig{}, err
	}

	cfg := ClientConfig{
		BaseURL:         envOrDefault("TALKBACK_BASE_URL", "http://127.0.0.1:8080"),
		SessionID:       stringsTrimSpace("TALKBACK_SESSION_ID"),
		SubmitTimeout:   60 * time.Second,
		RequestTimeout:  10 * time.Second,
		RestartDelay:    time.Second,
		ListenDelay:     time.Second,
		CaptureBinary:   envOrDefault("TALKBACK_CAPTURE_BIN", "ffmpeg"),
		CaptureDevice:   stringsTrimSpace("TALKBACK_CAPTURE_DEVICE"),
		PlayerBinary:    envOrDefault("TALKBACK_PLAYER_BIN", "ffplay"),
		SampleRate:      16000,
		Visualizer:      true,
		VisualizerFrame: 50 * time.Millisecond,
		LogFile:         stringsTrimSpace("TALKBACK_LOG_FILE"),
	}
	var err error
	cfg.SubmitTimeout, err = durationFromEnv("TALKBACK_SUBMIT_TIMEOUT", cfg.SubmitTimeout)
	if err != nil {
		return ClientConfig{}, err
	}
	cfg.RequestTimeout, err = durationFromEnv("TALKBACK_REQUEST_TIMEOUT", cfg.RequestTimeout)
	if err != nil {
		return ClientConfig{}, err
	}
	cfg.RestartDelay, err = durationFromEnv("TALKBACK_RESTART_DELAY", cfg.RestartDelay)
	if err != nil {
		return ClientConfig{}, err
	}
	cfg.ListenDelay, err = durationFromEnv("TALKBACK_LISTEN_DELAY", cfg.ListenDelay)
	if err != nil {
		return ClientConfig{}, err
	}
	cfg.VisualizerFrame, err = durationFromEnv("TALKBACK_VISUALIZER_FRAME", cfg.VisualizerFrame)
	if err != nil {
		return ClientConfig{}, err
	}
	cfg.SampleRate, err = intFromEnv("TALKBACK_SAMPLE_RATE", cfg.SampleRate)
	if err != nil {
		return ClientConfig{}, err
	}
	cfg.Visualizer, err = boolFromEnv("TALKBACK_VISUALIZER", cfg.Visualizer)
	if err != nil {
		return ClientConfig{}, err
	}

	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// Validate checks values that may also have been overridden by CLI flags.
func (c *ClientConfig) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return fmt.Errorf("TALKBACK_BASE_URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("TALKBACK_BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("TALKBACK_SUBMIT_TIMEOUT must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("TALKBACK_REQUEST_TIMEOUT must be positive")
	}
	if c.RestartDelay < 0 || c.ListenDelay < 0 {
		return fmt.Errorf("restart delays must be >= 0")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("TALKBACK_SAMPLE_RATE must be positive")
	}
	if c.VisualizerFrame <= 0 {
		c.VisualizerFrame = 50 * time.Millisecond
	}
	return nil
}
