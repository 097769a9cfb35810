package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func newHelperMic(t *testing.T, mode string) *Mic {
	t.Helper()
	m := NewMic(MicConfig{SampleRate: 16000})
	m.probe = 5 * time.Second
	m.lookPath = func(string) (string, error) { return "/usr/bin/ffmpeg", nil }
	m.newCmd = func([]string) *exec.Cmd {
		cmd := exec.Command(os.Args[0], "-test.run=TestHelperCaptureProcess", "--", mode)
		cmd.Env = append(os.Environ(), "TALKBACK_HELPER_PROCESS=1")
		return cmd
	}
	return m
}

// TestHelperCaptureProcess stands in for ffmpeg when run as a subprocess.
func TestHelperCaptureProcess(t *testing.T) {
	if os.Getenv("TALKBACK_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Args[len(os.Args)-1] {
	case "fail":
		fmt.Fprint(os.Stderr, "default: Connection refused")
		os.Exit(1)
	case "stream":
		frame := make([]byte, 320)
		for i := 0; i < len(frame); i += 2 {
			frame[i] = 0xE8
			frame[i+1] = 0x03
		}
		for {
			if _, err := os.Stdout.Write(frame); err != nil {
				os.Exit(0)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	os.Exit(0)
}

func TestMicRecordingLifecycle(t *testing.T) {
	m := newHelperMic(t, "stream")
	ctx := context.Background()

	rec, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := m.Acquire(ctx); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("second Acquire() error = %v, want ErrDeviceBusy", err)
	}

	if err := rec.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := rec.Start(); err != nil {
		t.Fatalf("second Start() error = %v, want no-op", err)
	}
	select {
	case frame := <-rec.Frames():
		if len(frame) == 0 || frame[0] != 1000 {
			t.Fatalf("unexpected frame: %v", frame[:min(4, len(frame))])
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no frames delivered after Start")
	}

	blob, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if blob.Samples == 0 || blob.ContentType != ContentTypeWAV {
		t.Fatalf("blob samples=%d content_type=%q", blob.Samples, blob.ContentType)
	}
	if _, err := rec.Stop(); err == nil {
		t.Fatalf("second Stop() error = nil")
	}

	next, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() after Stop error = %v", err)
	}
	next.Abort()
	next.Abort()
}

func TestMicAcquireReportsDeviceFailure(t *testing.T) {
	m := newHelperMic(t, "fail")
	_, err := m.Acquire(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Acquire() error = %v, want ErrDeviceUnavailable", err)
	}
	if !strings.Contains(err.Error(), "Connection refused") {
		t.Fatalf("error should carry capture stderr: %v", err)
	}
	if m.held.Load() {
		t.Fatalf("device still held after failed Acquire")
	}
}

func TestMicAcquireMissingBinary(t *testing.T) {
	m := NewMic(MicConfig{Binary: "ffmpeg-does-not-exist"})
	m.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	if _, err := m.Acquire(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Acquire() error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestCaptureArgs(t *testing.T) {
	args, err := captureArgs("linux", "", 16000)
	if err != nil {
		t.Fatalf("captureArgs() error = %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f pulse -i default") || !strings.Contains(joined, "-ar 16000 -f s16le -") {
		t.Fatalf("linux args = %q", joined)
	}
	args, _ = captureArgs("darwin", ":1", 16000)
	if !strings.Contains(strings.Join(args, " "), "-f avfoundation -i :1") {
		t.Fatalf("darwin args = %q", args)
	}
	if _, err := captureArgs("plan9", "", 16000); err == nil {
		t.Fatalf("captureArgs(plan9) error = nil")
	}
}
