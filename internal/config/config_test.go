package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.GeminiModel != "gemini-1.5-flash" {
		t.Fatalf("GeminiModel = %q, want default", cfg.GeminiModel)
	}
	if cfg.MurfVoiceID != "en-US-terrell" {
		t.Fatalf("MurfVoiceID = %q, want default", cfg.MurfVoiceID)
	}
	if cfg.StoreBackend != "auto" {
		t.Fatalf("StoreBackend = %q, want auto", cfg.StoreBackend)
	}
	if cfg.ProviderTimeout != 60*time.Second {
		t.Fatalf("ProviderTimeout = %v, want 60s", cfg.ProviderTimeout)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("STT_PROVIDER", "whisper")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want invalid STT_PROVIDER")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_PROVIDER_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want parse error")
	}
}

func TestYAMLOverlayFillsUnsetKeysOnly(t *testing.T) {
	setCoreEnvEmpty(t)
	path := filepath.Join(t.TempDir(), "talkback.yaml")
	body := "APP_BIND_ADDR: \":7000\"\nMURF_VOICE_ID: en-US-natalie\nHISTORY_STORE: sqlite\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("TALKBACK_CONFIG", path)
	t.Setenv("MURF_VOICE_ID", "en-US-ken")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":7000" {
		t.Fatalf("BindAddr = %q, want overlay value", cfg.BindAddr)
	}
	if cfg.MurfVoiceID != "en-US-ken" {
		t.Fatalf("MurfVoiceID = %q, want env value to win", cfg.MurfVoiceID)
	}
	if cfg.StoreBackend != "sqlite" {
		t.Fatalf("StoreBackend = %q, want sqlite", cfg.StoreBackend)
	}
}

func TestLoadClientDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.BaseURL != "http://127.0.0.1:8080" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.RestartDelay != time.Second || cfg.ListenDelay != time.Second {
		t.Fatalf("restart delays = %v/%v, want 1s/1s", cfg.RestartDelay, cfg.ListenDelay)
	}
	if cfg.SubmitTimeout != 60*time.Second {
		t.Fatalf("SubmitTimeout = %v, want 60s", cfg.SubmitTimeout)
	}
}

func TestClientValidateTrimsBaseURL(t *testing.T) {
	cfg := ClientConfig{
		BaseURL:        " http://localhost:8080/ ",
		SubmitTimeout:  time.Second,
		RequestTimeout: time.Second,
		SampleRate:     16000,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL)
	}

	cfg.BaseURL = "localhost:8080"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() error = nil for relative base URL")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"TALKBACK_CONFIG",
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_PROVIDER_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_MAX_UPLOAD_BYTES",
		"APP_UPLOADS_DIR",
		"STT_PROVIDER",
		"STT_FALLBACK",
		"TTS_FALLBACK",
		"ASSEMBLYAI_API_KEY",
		"ASSEMBLYAI_BASE_URL",
		"GOOGLE_SPEECH_LANGUAGE",
		"GOOGLE_APPLICATION_CREDENTIALS",
		"LLM_PROVIDER",
		"GEMINI_API_KEY",
		"GEMINI_MODEL",
		"LLM_HISTORY_TURNS",
		"TTS_PROVIDER",
		"MURF_API_KEY",
		"MURF_BASE_URL",
		"MURF_VOICE_ID",
		"MURF_FORMAT",
		"MURF_SAMPLE_RATE",
		"HISTORY_STORE",
		"DATABASE_URL",
		"REDIS_URL",
		"SQLITE_PATH",
		"TALKBACK_BASE_URL",
		"TALKBACK_SESSION_ID",
		"TALKBACK_SUBMIT_TIMEOUT",
		"TALKBACK_REQUEST_TIMEOUT",
		"TALKBACK_RESTART_DELAY",
		"TALKBACK_LISTEN_DELAY",
		"TALKBACK_CAPTURE_BIN",
		"TALKBACK_CAPTURE_DEVICE",
		"TALKBACK_PLAYER_BIN",
		"TALKBACK_SAMPLE_RATE",
		"TALKBACK_VISUALIZER",
		"TALKBACK_VISUALIZER_FRAME",
		"TALKBACK_LOG_FILE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
