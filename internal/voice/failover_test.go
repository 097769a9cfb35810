package voice

import (
	"context"
	"errors"
	"testing"
)

type stubTranscriber struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubTranscriber) Name() string { return s.name }

func (s *stubTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	s.calls++
	return s.text, s.err
}

type stubSynthesizer struct {
	name  string
	url   string
	err   error
	calls int
}

func (s *stubSynthesizer) Name() string { return s.name }

func (s *stubSynthesizer) Synthesize(context.Context, string) (string, error) {
	s.calls++
	return s.url, s.err
}

func TestFailoverTranscriberSwitchesAndSticks(t *testing.T) {
	ctx := context.Background()
	primary := &stubTranscriber{name: "assemblyai", err: errors.New("unavailable")}
	fallback := &stubTranscriber{name: "google", text: "hi"}
	tr := NewFailoverTranscriber(primary, fallback)

	for i := 0; i < 2; i++ {
		got, err := tr.Transcribe(ctx, []byte("a"), "")
		if err != nil || got != "hi" {
			t.Fatalf("Transcribe() #%d = %q, %v", i, got, err)
		}
	}
	if primary.calls != 1 || fallback.calls != 2 {
		t.Fatalf("calls primary=%d fallback=%d, want 1 and 2", primary.calls, fallback.calls)
	}
	if tr.Name() != "google" {
		t.Fatalf("Name() = %q once fallback active", tr.Name())
	}

	// Fallback fails, primary recovered: switch back.
	fallback.err = errors.New("quota")
	primary.err = nil
	primary.text = "back"
	if got, err := tr.Transcribe(ctx, []byte("a"), ""); err != nil || got != "back" {
		t.Fatalf("Transcribe() = %q, %v", got, err)
	}
	if tr.Name() != "assemblyai" {
		t.Fatalf("Name() = %q after recovery", tr.Name())
	}
}

func TestFailoverTranscriberKeepsRequestErrors(t *testing.T) {
	primary := &stubTranscriber{name: "a", err: ErrEmptyTranscript}
	fallback := &stubTranscriber{name: "b", text: "x"}
	tr := NewFailoverTranscriber(primary, fallback)
	if _, err := tr.Transcribe(context.Background(), []byte("a"), ""); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("error = %v", err)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback called for an empty transcript")
	}

	primary.err = context.DeadlineExceeded
	if _, err := tr.Transcribe(context.Background(), []byte("a"), ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v", err)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback called after a deadline")
	}
}

func TestFailoverSynthesizerBothFail(t *testing.T) {
	primary := &stubSynthesizer{name: "murf", err: errors.New("down")}
	fallback := &stubSynthesizer{name: "mock", err: errors.New("disk full")}
	s := NewFailoverSynthesizer(primary, fallback)
	_, err := s.Synthesize(context.Background(), "hi")
	if err == nil || !errors.Is(err, fallback.err) {
		t.Fatalf("error = %v", err)
	}
	if s.Name() != "murf" {
		t.Fatalf("Name() = %q, fallback must not activate on failure", s.Name())
	}

	fallback.err = nil
	fallback.url = "/uploads/a.wav"
	if url, err := s.Synthesize(context.Background(), "hi"); err != nil || url != "/uploads/a.wav" {
		t.Fatalf("Synthesize() = %q, %v", url, err)
	}
	if s.Name() != "mock" {
		t.Fatalf("Name() = %q", s.Name())
	}
}
