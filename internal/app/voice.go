package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ent0n29/talkback/internal/config"
	"github.com/ent0n29/talkback/internal/voice"
)

type voiceSetup struct {
	stt       voice.Transcriber
	tts       voice.Synthesizer
	sttDetail string
	ttsDetail string
	cleanup   func() error
}

func (s *voiceSetup) addCleanup(fn func() error) {
	prev := s.cleanup
	s.cleanup = func() error {
		err := fn()
		if prev != nil {
			if perr := prev(); err == nil {
				err = perr
			}
		}
		return err
	}
}

func resolveVoiceProviders(ctx context.Context, cfg config.Config) (voiceSetup, error) {
	var setup voiceSetup
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}

	buildSTT := func(name string) (voice.Transcriber, error) {
		switch name {
		case "assemblyai":
			if strings.TrimSpace(cfg.AssemblyAIAPIKey) == "" {
				return nil, fmt.Errorf("STT_PROVIDER=assemblyai but ASSEMBLYAI_API_KEY is not set")
			}
			return voice.NewAssemblyAITranscriber(voice.AssemblyAIConfig{
				APIKey:     cfg.AssemblyAIAPIKey,
				BaseURL:    cfg.AssemblyAIBaseURL,
				HTTPClient: httpClient,
			}), nil
		case "google":
			t, err := voice.NewGoogleTranscriber(ctx, voice.GoogleSTTConfig{
				LanguageCode:    cfg.GoogleSpeechLang,
				CredentialsFile: cfg.GoogleCredentials,
			})
			if err != nil {
				return nil, fmt.Errorf("google stt init failed: %w", err)
			}
			setup.addCleanup(t.Close)
			return t, nil
		case "mock":
			return voice.NewMockTranscriber(), nil
		default:
			return nil, fmt.Errorf("invalid STT provider: %q (expected auto|assemblyai|google|mock)", name)
		}
	}

	buildTTS := func(name string) (voice.Synthesizer, error) {
		switch name {
		case "murf":
			if strings.TrimSpace(cfg.MurfAPIKey) == "" {
				return nil, fmt.Errorf("TTS_PROVIDER=murf but MURF_API_KEY is not set")
			}
			return voice.NewMurfSynthesizer(voice.MurfConfig{
				APIKey:     cfg.MurfAPIKey,
				BaseURL:    cfg.MurfBaseURL,
				VoiceID:    cfg.MurfVoiceID,
				Format:     cfg.MurfFormat,
				SampleRate: cfg.MurfSampleRate,
				HTTPClient: httpClient,
			}), nil
		case "mock":
			return voice.NewFileSynthesizer(cfg.UploadsDir, "/uploads/")
		default:
			return nil, fmt.Errorf("invalid TTS provider: %q (expected auto|murf|mock)", name)
		}
	}

	sttMode := normalizeMode(cfg.STTProvider)
	if sttMode == "auto" {
		switch {
		case strings.TrimSpace(cfg.AssemblyAIAPIKey) != "":
			sttMode = "assemblyai"
		case strings.TrimSpace(cfg.GoogleCredentials) != "":
			sttMode = "google"
		default:
			sttMode = "mock"
		}
	}
	stt, err := buildSTT(sttMode)
	if err != nil {
		return voiceSetup{}, setup.fail(err)
	}
	setup.stt, setup.sttDetail = stt, sttMode
	if fb := normalizeMode(cfg.STTFallback); fb != "none" && fb != sttMode {
		fallback, err := buildSTT(fb)
		if err != nil {
			return voiceSetup{}, setup.fail(fmt.Errorf("stt fallback: %w", err))
		}
		setup.stt = voice.NewFailoverTranscriber(stt, fallback)
		setup.sttDetail = fmt.Sprintf("%s (automatic %s fallback)", sttMode, fb)
	}

	ttsMode := normalizeMode(cfg.TTSProvider)
	if ttsMode == "auto" {
		ttsMode = "mock"
		if strings.TrimSpace(cfg.MurfAPIKey) != "" {
			ttsMode = "murf"
		}
	}
	tts, err := buildTTS(ttsMode)
	if err != nil {
		return voiceSetup{}, setup.fail(err)
	}
	setup.tts, setup.ttsDetail = tts, ttsMode
	if fb := normalizeMode(cfg.TTSFallback); fb != "none" && fb != ttsMode {
		fallback, err := buildTTS(fb)
		if err != nil {
			return voiceSetup{}, setup.fail(fmt.Errorf("tts fallback: %w", err))
		}
		setup.tts = voice.NewFailoverSynthesizer(tts, fallback)
		setup.ttsDetail = fmt.Sprintf("%s (automatic %s fallback)", ttsMode, fb)
	}
	return setup, nil
}

// fail releases whatever was built before err.
func (s *voiceSetup) fail(err error) error {
	if s.cleanup != nil {
		_ = s.cleanup()
	}
	return err
}

func normalizeMode(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "auto"
	}
	return v
}
