package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrDeviceUnavailable covers permission denied, no input device and a
	// missing capture binary.
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
	// ErrDeviceBusy is returned when a recording already holds the device.
	ErrDeviceBusy = errors.New("audio input device busy")
)

const (
	frameQueueSize = 32
	readChunkBytes = 1024
	stderrLimit    = 4 << 10
	// defaultProbeWindow bounds how long Acquire waits for the capture
	// process to prove it opened the device.
	defaultProbeWindow = 300 * time.Millisecond
)

type MicConfig struct {
	// Binary is the ffmpeg executable.
	Binary string
	// Device overrides the platform default input (":0" on darwin,
	// "default" on linux).
	Device     string
	SampleRate int
}

// Mic owns the microphone. At most one Recording is open at a time.
type Mic struct {
	cfg   MicConfig
	held  atomic.Bool
	probe time.Duration

	lookPath func(string) (string, error)
	newCmd   func(args []string) *exec.Cmd
}

func NewMic(cfg MicConfig) *Mic {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	m := &Mic{cfg: cfg, probe: defaultProbeWindow, lookPath: exec.LookPath}
	m.newCmd = func(args []string) *exec.Cmd {
		return exec.Command(m.cfg.Binary, args...)
	}
	return m
}

// Acquire opens the input device and returns an idle recording. Audio is
// only buffered after Start.
func (m *Mic) Acquire(ctx context.Context) (*Recording, error) {
	if !m.held.CompareAndSwap(false, true) {
		return nil, ErrDeviceBusy
	}
	rec, err := m.open(ctx)
	if err != nil {
		m.held.Store(false)
		return nil, err
	}
	return rec, nil
}

func (m *Mic) open(ctx context.Context) (*Recording, error) {
	if _, err := m.lookPath(m.cfg.Binary); err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", ErrDeviceUnavailable, m.cfg.Binary)
	}
	args, err := captureArgs(runtime.GOOS, m.cfg.Device, m.cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	cmd := m.newCmd(args)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open capture stdout: %w", err)
	}
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start capture: %v", ErrDeviceUnavailable, err)
	}

	rec := &Recording{
		mic:        m,
		cmd:        cmd,
		stdout:     stdout,
		stderr:     stderr,
		sampleRate: m.cfg.SampleRate,
		frames:     make(chan []int16, frameQueueSize),
		firstData:  make(chan struct{}),
		readDone:   make(chan struct{}),
	}
	go rec.readLoop()

	timer := time.NewTimer(m.probe)
	defer timer.Stop()
	select {
	case <-rec.firstData:
		return rec, nil
	case <-timer.C:
		// Some devices take a while to produce the first buffer.
		return rec, nil
	case <-rec.readDone:
		rec.terminate()
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "capture process exited"
		}
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, detail)
	case <-ctx.Done():
		rec.terminate()
		return nil, ctx.Err()
	}
}

func captureArgs(goos, device string, sampleRate int) ([]string, error) {
	device = strings.TrimSpace(device)
	var input []string
	switch goos {
	case "darwin":
		if device == "" {
			device = ":0"
		}
		input = []string{"-f", "avfoundation", "-i", device}
	case "linux":
		if device == "" {
			device = "default"
		}
		input = []string{"-f", "pulse", "-i", device}
	default:
		return nil, fmt.Errorf("mic capture is not implemented for %s; supported platforms: darwin, linux", goos)
	}
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	args = append(args,
		"-ac", "1", "-ar", fmt.Sprintf("%d", sampleRate),
		"-f", "s16le", "-",
	)
	return args, nil
}

// Recording is one exclusive use of the microphone, from Acquire to Stop or
// Abort.
type Recording struct {
	mic        *Mic
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     *limitedBuffer
	sampleRate int

	mu        sync.Mutex
	pcm       bytes.Buffer
	buffering bool
	closed    bool

	frames    chan []int16
	firstData chan struct{}
	firstOnce sync.Once
	readDone  chan struct{}
	release   sync.Once
}

// Start begins buffering captured audio. Calling it twice is a no-op.
func (r *Recording) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("recording already finalized")
	}
	r.buffering = true
	return nil
}

// Frames is a lossy live tap of captured samples for visualization. It is
// closed when the recording ends.
func (r *Recording) Frames() <-chan []int16 {
	return r.frames
}

// Stop ends capture, releases the device and returns the buffered audio as
// a WAV blob. A recording that captured nothing yields a zero-sample blob.
func (r *Recording) Stop() (Blob, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Blob{}, errors.New("recording already finalized")
	}
	r.closed = true
	r.mu.Unlock()

	r.terminate()

	r.mu.Lock()
	pcm := append([]byte(nil), r.pcm.Bytes()...)
	r.pcm.Reset()
	r.mu.Unlock()
	return NewWAVBlob(pcm, r.sampleRate)
}

// Abort ends capture and discards everything recorded. Safe to call after
// Stop.
func (r *Recording) Abort() {
	r.mu.Lock()
	r.closed = true
	r.buffering = false
	r.pcm.Reset()
	r.mu.Unlock()
	r.terminate()
}

func (r *Recording) terminate() {
	r.release.Do(func() {
		if r.cmd != nil && r.cmd.Process != nil {
			_ = r.cmd.Process.Kill()
		}
		<-r.readDone
		if r.cmd != nil {
			_ = r.cmd.Wait()
		}
		r.mic.held.Store(false)
	})
}

func (r *Recording) readLoop() {
	defer close(r.readDone)
	defer close(r.frames)

	buf := make([]byte, readChunkBytes)
	var carry []byte
	for {
		n, err := r.stdout.Read(buf)
		if n > 0 {
			r.firstOnce.Do(func() { close(r.firstData) })
			chunk := append(carry, buf[:n]...)
			even := len(chunk) &^ 1
			carry = append([]byte(nil), chunk[even:]...)
			r.consume(chunk[:even])
		}
		if err != nil {
			return
		}
	}
}

func (r *Recording) consume(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	r.mu.Lock()
	buffering := r.buffering && !r.closed
	if buffering {
		r.pcm.Write(pcm)
	}
	r.mu.Unlock()
	if !buffering {
		return
	}
	select {
	case r.frames <- PCM16Samples(pcm):
	default:
	}
}

type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.limit - b.buf.Len()
	if room > 0 {
		if len(p) < room {
			room = len(p)
		}
		b.buf.Write(p[:room])
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
