package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ent0n29/talkback/internal/audio"
	"github.com/ent0n29/talkback/internal/chat"
	"github.com/ent0n29/talkback/internal/observability"
	"github.com/ent0n29/talkback/internal/protocol"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags([]string{"-base-url", "http://host:9000/", "-clips", "a.wav, ,b.wav"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if cfg.baseURL != "http://host:9000" {
		t.Fatalf("baseURL = %q", cfg.baseURL)
	}
	if len(cfg.clipPaths) != 2 || cfg.clipPaths[1] != "b.wav" {
		t.Fatalf("clipPaths = %v", cfg.clipPaths)
	}
	if cfg.turnTimeout != 60*time.Second {
		t.Fatalf("turnTimeout = %s", cfg.turnTimeout)
	}
}

func TestParseFlagsRejectsBadTurns(t *testing.T) {
	if _, err := parseFlags([]string{"-turns", "0"}); err == nil {
		t.Fatalf("expected error for zero turns")
	}
}

func TestToneClipDuration(t *testing.T) {
	blob, err := toneClip(500*time.Millisecond, 16000)
	if err != nil {
		t.Fatalf("toneClip() error = %v", err)
	}
	if blob.Samples != 8000 || blob.Duration() != 500*time.Millisecond {
		t.Fatalf("samples=%d duration=%s", blob.Samples, blob.Duration())
	}
	pcm, sr, err := audio.DecodeWAVPCM16(blob.Data)
	if err != nil || sr != 16000 || len(pcm) != 16000 {
		t.Fatalf("decode: len=%d sr=%d err=%v", len(pcm), sr, err)
	}
}

func TestLoadClipsDownmixesStereoFiles(t *testing.T) {
	// L=1000 R=-1000, L=3000 R=1000
	stereo := []byte{0xE8, 0x03, 0x18, 0xFC, 0xB8, 0x0B, 0xE8, 0x03}
	path := filepath.Join(t.TempDir(), "stereo.wav")
	if err := os.WriteFile(path, encodeWAV16Stereo(stereo, 24000), 0o644); err != nil {
		t.Fatal(err)
	}
	clips, err := loadClips(options{clipPaths: []string{path}})
	if err != nil {
		t.Fatalf("loadClips() error = %v", err)
	}
	if len(clips) != 1 || clips[0].Samples != 2 || clips[0].SampleRate != 24000 {
		t.Fatalf("clips = %+v", clips)
	}
}

func TestSummarize(t *testing.T) {
	var samples []turnSample
	for i := 1; i <= 20; i++ {
		samples = append(samples, turnSample{latency: time.Duration(i) * time.Millisecond})
	}
	samples = append(samples, turnSample{latency: time.Hour, err: os.ErrDeadlineExceeded})

	sum := summarize(samples)
	if sum.Turns != 21 || sum.Failures != 1 {
		t.Fatalf("turns=%d failures=%d", sum.Turns, sum.Failures)
	}
	if sum.P50 != 10*time.Millisecond || sum.P95 != 19*time.Millisecond || sum.Max != 20*time.Millisecond {
		t.Fatalf("p50=%s p95=%s max=%s", sum.P50, sum.P95, sum.Max)
	}
}

func TestRunReplaysTurns(t *testing.T) {
	var turns, resets atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /agent/session/new", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(protocol.SessionResponse{SessionID: "bench"})
	})
	mux.HandleFunc("POST /agent/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		turns.Add(1)
		url := "/uploads/reply.wav"
		_ = json.NewEncoder(w).Encode(protocol.ChatResponse{
			SessionID:   r.PathValue("id"),
			ChatHistory: chat.History{{Role: chat.RoleUser, Content: "hi"}, {Role: chat.RoleAssistant, Content: "hello"}},
			LLMResponse: "hello",
			AudioURL:    &url,
		})
	})
	mux.HandleFunc("DELETE /agent/chat/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(protocol.ClearResponse{SessionID: r.PathValue("id")})
	})
	mux.HandleFunc("GET /agent/perf/latency", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("reset") == "1" {
			resets.Add(1)
		}
		_ = json.NewEncoder(w).Encode(observability.TurnStageSnapshot{
			Stages: []observability.TurnStageStats{{Stage: "turn_total", Samples: 3, P50MS: 12}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var out bytes.Buffer
	cfg := options{
		baseURL:     srv.URL,
		turns:       3,
		clipMS:      200,
		sampleRate:  16000,
		turnTimeout: 5 * time.Second,
		resetStages: true,
	}
	if err := run(t.Context(), cfg, &out); err != nil {
		t.Fatalf("run() error = %v\n%s", err, out.String())
	}
	if turns.Load() != 3 || resets.Load() != 1 {
		t.Fatalf("turns=%d resets=%d", turns.Load(), resets.Load())
	}
	got := out.String()
	if !strings.Contains(got, "client: turns=3 failures=0") || !strings.Contains(got, "turn_total") {
		t.Fatalf("output:\n%s", got)
	}
}

func encodeWAV16Stereo(stereoPCM []byte, sampleRate int) []byte {
	var b bytes.Buffer
	le := func(v any) { _ = binary.Write(&b, binary.LittleEndian, v) }
	b.WriteString("RIFF")
	le(uint32(36 + len(stereoPCM)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	le(uint32(16))
	le(uint16(1)) // PCM
	le(uint16(2)) // stereo
	le(uint32(sampleRate))
	le(uint32(sampleRate * 4))
	le(uint16(4))
	le(uint16(16))
	b.WriteString("data")
	le(uint32(len(stereoPCM)))
	b.Write(stereoPCM)
	return b.Bytes()
}
