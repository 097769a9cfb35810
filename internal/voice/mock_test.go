package voice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ent0n29/talkback/internal/audio"
)

func TestMockTranscriber(t *testing.T) {
	tr := NewMockTranscriber()
	if _, err := tr.Transcribe(context.Background(), nil, ""); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("Transcribe(nil) error = %v", err)
	}
	silent, _ := audio.EncodeWAVPCM16LE(nil, 16000)
	if _, err := tr.Transcribe(context.Background(), silent, audio.ContentTypeWAV); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("Transcribe(empty wav) error = %v", err)
	}
	wav, _ := audio.EncodeWAVPCM16LE(make([]byte, 320), 16000)
	got, err := tr.Transcribe(context.Background(), wav, audio.ContentTypeWAV)
	if err != nil || got != "simulated voice input" {
		t.Fatalf("Transcribe() = %q, %v", got, err)
	}
}

func TestFileSynthesizerWritesPlayableWAV(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSynthesizer(dir, "/uploads")
	if err != nil {
		t.Fatalf("NewFileSynthesizer() error = %v", err)
	}
	url, err := s.Synthesize(context.Background(), "Hello there.")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/tts-") || !strings.HasSuffix(url, ".wav") {
		t.Fatalf("url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/")))
	if err != nil {
		t.Fatalf("read synthesized file: %v", err)
	}
	pcm, rate, err := audio.DecodeWAVPCM16(data)
	if err != nil {
		t.Fatalf("DecodeWAVPCM16() error = %v", err)
	}
	if rate != mockToneRate || len(pcm) < int(mockMinDuration.Seconds()*mockToneRate)*2 {
		t.Fatalf("rate=%d pcm=%d bytes", rate, len(pcm))
	}

	if _, err := s.Synthesize(context.Background(), " "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("Synthesize(blank) error = %v", err)
	}
}
