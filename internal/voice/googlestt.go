package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"github.com/ent0n29/talkback/internal/audio"
	"github.com/ent0n29/talkback/internal/reliability"
)

type GoogleSTTConfig struct {
	LanguageCode string
	// CredentialsFile is a service account key. Empty uses application
	// default credentials.
	CredentialsFile string
}

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleTranscriber uses Cloud Speech-to-Text synchronous recognition.
type GoogleTranscriber struct {
	language  string
	recognize recognizeFunc
	close     func() error
}

func NewGoogleTranscriber(ctx context.Context, cfg GoogleSTTConfig) (*GoogleTranscriber, error) {
	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google speech client: %w", err)
	}
	t := newGoogleTranscriber(cfg.LanguageCode, func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	})
	t.close = client.Close
	return t, nil
}

func newGoogleTranscriber(language string, recognize recognizeFunc) *GoogleTranscriber {
	if strings.TrimSpace(language) == "" {
		language = "en-US"
	}
	return &GoogleTranscriber{language: language, recognize: recognize}
}

func (t *GoogleTranscriber) Name() string { return "google" }

func (t *GoogleTranscriber) Transcribe(ctx context.Context, data []byte, _ string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyTranscript
	}
	cfg := &speechpb.RecognitionConfig{
		LanguageCode:               t.language,
		EnableAutomaticPunctuation: true,
	}
	content := data
	pcm, rate, err := audio.DecodeWAVPCM16(data)
	switch {
	case err == nil:
		if len(pcm) == 0 {
			return "", ErrEmptyTranscript
		}
		cfg.Encoding = speechpb.RecognitionConfig_LINEAR16
		cfg.SampleRateHertz = int32(rate)
		content = pcm
	case errors.Is(err, audio.ErrNotWAV):
		// Let the service sniff FLAC or other self-describing containers.
		cfg.Encoding = speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	default:
		return "", &ProviderError{Provider: t.Name(), Code: "bad_audio", Err: err}
	}

	resp, err := t.recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: content}},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ProviderError{Provider: t.Name(), Code: "recognize", Retryable: reliability.IsRetryableGRPC(err), Err: err}
	}

	parts := make([]string, 0, len(resp.GetResults()))
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", ErrEmptyTranscript
	}
	return strings.Join(parts, " "), nil
}

func (t *GoogleTranscriber) Close() error {
	if t.close == nil {
		return nil
	}
	return t.close()
}
