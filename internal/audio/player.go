package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrPlayerUnavailable = errors.New("audio player unavailable")

// Player plays a synthesized reply by URL through ffplay.
type Player struct {
	binary   string
	lookPath func(string) (string, error)
	newCmd   func(ctx context.Context, args []string) *exec.Cmd
}

func NewPlayer(binary string) *Player {
	if strings.TrimSpace(binary) == "" {
		binary = "ffplay"
	}
	p := &Player{binary: binary, lookPath: exec.LookPath}
	p.newCmd = func(ctx context.Context, args []string) *exec.Cmd {
		return exec.CommandContext(ctx, p.binary, args...)
	}
	return p
}

// Play blocks until the audio finishes. Cancelling ctx stops playback and
// returns ctx.Err().
func (p *Player) Play(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("empty audio url")
	}
	if _, err := p.lookPath(p.binary); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrPlayerUnavailable, p.binary)
	}
	cmd := p.newCmd(ctx, playbackArgs(url))
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return fmt.Errorf("playback failed: %w", err)
		}
		return fmt.Errorf("playback failed: %s: %w", detail, err)
	}
	return ctx.Err()
}

func playbackArgs(url string) []string {
	return []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		url,
	}
}
