package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"
)

func newHelperPlayer(mode string) *Player {
	p := NewPlayer("ffplay")
	p.lookPath = func(string) (string, error) { return "/usr/bin/ffplay", nil }
	p.newCmd = func(ctx context.Context, _ []string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperPlaybackProcess", "--", mode)
		cmd.Env = append(os.Environ(), "TALKBACK_HELPER_PROCESS=1")
		return cmd
	}
	return p
}

// TestHelperPlaybackProcess stands in for ffplay when run as a subprocess.
func TestHelperPlaybackProcess(t *testing.T) {
	if os.Getenv("TALKBACK_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Args[len(os.Args)-1] {
	case "ok":
		os.Exit(0)
	case "bad":
		os.Stderr.WriteString("Server returned 404 Not Found")
		os.Exit(1)
	case "long":
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func TestPlayerCompletes(t *testing.T) {
	if err := newHelperPlayer("ok").Play(context.Background(), "http://x/a.mp3"); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
}

func TestPlayerReportsFailure(t *testing.T) {
	err := newHelperPlayer("bad").Play(context.Background(), "http://x/a.mp3")
	if err == nil {
		t.Fatalf("Play() error = nil, want failure")
	}
}

func TestPlayerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newHelperPlayer("long").Play(ctx, "http://x/a.mp3") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Play() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Play() did not return after cancel")
	}
}

func TestPlayerRejectsEmptyURL(t *testing.T) {
	if err := NewPlayer("").Play(context.Background(), " "); err == nil {
		t.Fatalf("Play() error = nil for empty url")
	}
}
