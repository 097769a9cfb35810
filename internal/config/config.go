package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config contains all runtime settings for the conversation backend.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	ProviderTimeout          time.Duration
	MetricsNamespace         string
	MaxUploadBytes           int64

	AllowAnyOrigin bool

	STTProvider       string
	// STTFallback is tried when the primary fails (none|assemblyai|google|mock).
	STTFallback       string
	AssemblyAIAPIKey  string
	AssemblyAIBaseURL string
	GoogleSpeechLang  string
	// GoogleCredentials is the service account file for Cloud Speech. Empty
	// means application default credentials.
	GoogleCredentials string

	LLMProvider         string
	GeminiAPIKey        string
	GeminiModel         string
	HistoryContextTurns int

	TTSProvider    string
	TTSFallback    string
	MurfAPIKey     string
	MurfBaseURL    string
	MurfVoiceID    string
	MurfFormat     string
	MurfSampleRate int

	UploadsDir string

	StoreBackend string
	DatabaseURL  string
	RedisURL     string
	SQLitePath   string
}

// Load reads .env and the optional YAML overlay, then environment variables,
// and applies safe defaults.
func Load() (Config, error) {
	if err := loadSources(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "talkback"),
		AllowAnyOrigin:    false,
		STTProvider:       envOrDefault("STT_PROVIDER", "auto"),
		STTFallback:       envOrDefault("STT_FALLBACK", "none"),
		AssemblyAIAPIKey:  stringsTrimSpace("ASSEMBLYAI_API_KEY"),
		AssemblyAIBaseURL: envOrDefault("ASSEMBLYAI_BASE_URL", "https://api.assemblyai.com"),
		GoogleSpeechLang:  envOrDefault("GOOGLE_SPEECH_LANGUAGE", "en-US"),
		GoogleCredentials: stringsTrimSpace("GOOGLE_APPLICATION_CREDENTIALS"),
		LLMProvider:       envOrDefault("LLM_PROVIDER", "auto"),
		GeminiAPIKey:      stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:       envOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		// 0 means the whole session history is sent as context.
		HistoryContextTurns:      0,
		TTSProvider:              envOrDefault("TTS_PROVIDER", "auto"),
		TTSFallback:              envOrDefault("TTS_FALLBACK", "none"),
		MurfAPIKey:               stringsTrimSpace("MURF_API_KEY"),
		MurfBaseURL:              envOrDefault("MURF_BASE_URL", "https://api.murf.ai"),
		MurfVoiceID:              envOrDefault("MURF_VOICE_ID", "en-US-terrell"),
		MurfFormat:               envOrDefault("MURF_FORMAT", "MP3"),
		MurfSampleRate:           24000,
		UploadsDir:               envOrDefault("APP_UPLOADS_DIR", "uploads"),
		StoreBackend:             envOrDefault("HISTORY_STORE", "auto"),
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		RedisURL:                 stringsTrimSpace("REDIS_URL"),
		SQLitePath:               stringsTrimSpace("SQLITE_PATH"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
		ProviderTimeout:          60 * time.Second,
		MaxUploadBytes:           25 << 20,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ProviderTimeout, err = durationFromEnv("APP_PROVIDER_TIMEOUT", cfg.ProviderTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryContextTurns, err = intFromEnv("LLM_HISTORY_TURNS", cfg.HistoryContextTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.MurfSampleRate, err = intFromEnv("MURF_SAMPLE_RATE", cfg.MurfSampleRate)
	if err != nil {
		return Config{}, err
	}
	maxUpload, err := intFromEnv("APP_MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.ProviderTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_PROVIDER_TIMEOUT must be positive")
	}
	if cfg.HistoryContextTurns < 0 {
		return Config{}, fmt.Errorf("LLM_HISTORY_TURNS must be >= 0")
	}
	if cfg.MurfSampleRate <= 0 {
		return Config{}, fmt.Errorf("MURF_SAMPLE_RATE must be positive")
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_UPLOAD_BYTES must be positive")
	}
	if err := oneOf("STT_PROVIDER", cfg.STTProvider, "auto", "assemblyai", "google", "mock"); err != nil {
		return Config{}, err
	}
	if err := oneOf("STT_FALLBACK", cfg.STTFallback, "none", "assemblyai", "google", "mock"); err != nil {
		return Config{}, err
	}
	if err := oneOf("TTS_FALLBACK", cfg.TTSFallback, "none", "murf", "mock"); err != nil {
		return Config{}, err
	}
	if err := oneOf("LLM_PROVIDER", cfg.LLMProvider, "auto", "gemini", "mock"); err != nil {
		return Config{}, err
	}
	if err := oneOf("TTS_PROVIDER", cfg.TTSProvider, "auto", "murf", "mock"); err != nil {
		return Config{}, err
	}
	if err := oneOf("HISTORY_STORE", cfg.StoreBackend, "auto", "memory", "postgres", "redis", "sqlite"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadSources fills unset environment variables from ./.env and from the YAML
// file named by TALKBACK_CONFIG. Real environment values always win.
func loadSources() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}
	path := stringsTrimSpace("TALKBACK_CONFIG")
	if path == "" {
		return nil
	}
	return applyYAMLOverlay(path)
}

func applyYAMLOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("TALKBACK_CONFIG read error: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("TALKBACK_CONFIG parse error: %w", err)
	}
	for key, v := range values {
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" || stringsTrimSpace(key) != "" {
			continue
		}
		if v == nil {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(v)); err != nil {
			return fmt.Errorf("TALKBACK_CONFIG apply %s: %w", key, err)
		}
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %q (expected %s)", key, value, strings.Join(allowed, "|"))
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
