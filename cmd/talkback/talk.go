package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ent0n29/talkback/internal/audio"
	"github.com/ent0n29/talkback/internal/conversation"
	"github.com/ent0n29/talkback/internal/logx"
	"github.com/ent0n29/talkback/internal/termui"
)

func newTalkCmd(o *rootOptions) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "talk",
		Short: "Start a hands-free voice conversation",
		Long: `Press enter to start recording and enter again to send the turn.
The reply is played back and recording restarts on its own. Press enter
during playback to stop, n for a new session, c to clear history, q to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTalk(cmd, o, plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Append plain lines instead of redrawing the screen")
	return cmd
}

func runTalk(cmd *cobra.Command, o *rootOptions, plain bool) error {
	cfg, err := o.clientConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	fd := int(os.Stdin.Fd())
	interactive := term.IsTerminal(fd)
	redraw := interactive && !plain

	var logFallback io.Writer = cmd.ErrOrStderr()
	if redraw {
		logFallback = io.Discard
	}
	closeLog, err := setupLogging(cfg.LogFile, logFallback)
	if err != nil {
		return err
	}
	defer closeLog()

	out := cmd.OutOrStdout()
	raw := false
	if interactive {
		state, err := term.MakeRaw(fd)
		if err != nil {
			logx.Warnf("talk: raw mode unavailable: %v", err)
		} else {
			raw = true
			out = crlfWriter{w: out}
			defer func() { _ = term.Restore(fd, state) }()
		}
	}

	view := termui.New(out, termui.Options{Redraw: redraw})

	var viz conversation.Visualizer
	if cfg.Visualizer && redraw {
		viz = audio.NewVisualizer(audio.VisualizerOptions{
			Interval: cfg.VisualizerFrame,
			OnFrame:  view.ShowVisualizer,
		})
	}

	mic := audio.NewMic(audio.MicConfig{
		Binary:     cfg.CaptureBinary,
		Device:     cfg.CaptureDevice,
		SampleRate: cfg.SampleRate,
	})
	ctrl, err := conversation.New(conversation.Options{
		Capture:      micCapture(mic),
		Player:       audio.NewPlayer(cfg.PlayerBinary),
		Backend:      client,
		View:         view,
		Visualizer:   viz,
		RestartDelay: cfg.RestartDelay,
		ListenDelay:  cfg.ListenDelay,
		OnTransition: func(from, to conversation.State) {
			logx.Debugf("talk: %s -> %s", from, to)
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go readKeys(os.Stdin, raw, ctrl, cancel)

	logx.Infof("talk: server %s", client.BaseURL())
	return ctrl.Run(ctx, cfg.SessionID)
}

// micCapture adapts the microphone to the controller's Capture.
func micCapture(m *audio.Mic) conversation.Capture {
	return conversation.CaptureFunc(func(ctx context.Context) (conversation.Recorder, error) {
		rec, err := m.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return rec, nil
	})
}
