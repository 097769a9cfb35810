package voice

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/talkback/internal/audio"
)

// MockTranscriber is a local stand-in used when no STT provider is
// configured.
type MockTranscriber struct {
	Text string
}

func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{Text: "simulated voice input"}
}

func (t *MockTranscriber) Name() string { return "mock" }

func (t *MockTranscriber) Transcribe(_ context.Context, data []byte, _ string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyTranscript
	}
	if pcm, _, err := audio.DecodeWAVPCM16(data); err == nil && len(pcm) == 0 {
		return "", ErrEmptyTranscript
	}
	return t.Text, nil
}

const (
	mockToneRate    = 16000
	mockToneHz      = 440.0
	mockPerRune     = 40 * time.Millisecond
	mockMinDuration = 300 * time.Millisecond
	mockMaxDuration = 10 * time.Second
)

// FileSynthesizer writes a tone WAV whose length follows the text into dir
// and returns its public URL. It stands in for a real TTS provider.
type FileSynthesizer struct {
	dir       string
	urlPrefix string
}

func NewFileSynthesizer(dir, urlPrefix string) (*FileSynthesizer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("uploads dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/uploads/"
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &FileSynthesizer{dir: dir, urlPrefix: urlPrefix}, nil
}

func (s *FileSynthesizer) Name() string { return "mock" }

func (s *FileSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := "tts-" + uuid.NewString() + ".wav"
	if err := audio.WriteWAVPCM16LEFile(filepath.Join(s.dir, name), toneFor(text), mockToneRate); err != nil {
		return "", &ProviderError{Provider: s.Name(), Code: "write_file", Err: err}
	}
	return s.urlPrefix + name, nil
}

// toneFor renders a faded sine tone lasting roughly as long as text would
// take to say.
func toneFor(text string) []byte {
	d := time.Duration(len([]rune(text))) * mockPerRune
	if d < mockMinDuration {
		d = mockMinDuration
	}
	if d > mockMaxDuration {
		d = mockMaxDuration
	}
	n := int(d.Seconds() * mockToneRate)
	fade := mockToneRate / 50
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		gain := 0.2
		if i < fade {
			gain *= float64(i) / float64(fade)
		} else if n-i < fade {
			gain *= float64(n-i) / float64(fade)
		}
		v := gain * math.Sin(2*math.Pi*mockToneHz*float64(i)/mockToneRate)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return pcm
}
