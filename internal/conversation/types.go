package conversation

import (
	"context"

	"github.com/ent0n29/talkback/internal/audio"
	"github.com/ent0n29/talkback/internal/chat"
	"github.com/ent0n29/talkback/internal/turnclient"
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
	StatePlayingResponse
	StateWaitingToRestart
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StatePlayingResponse:
		return "playing_response"
	case StateWaitingToRestart:
		return "waiting_to_restart"
	default:
		return "unknown"
	}
}

// Recorder is one exclusive recording session on the input device.
type Recorder interface {
	Start() error
	Stop() (audio.Blob, error)
	Abort()
	Frames() <-chan []int16
}

// Capture acquires the input device.
type Capture interface {
	Acquire(ctx context.Context) (Recorder, error)
}

// CaptureFunc adapts a function to Capture.
type CaptureFunc func(ctx context.Context) (Recorder, error)

func (f CaptureFunc) Acquire(ctx context.Context) (Recorder, error) { return f(ctx) }

type Player interface {
	Play(ctx context.Context, url string) error
}

// Backend is the server side of a turn. *turnclient.Client implements it.
type Backend interface {
	CreateSession(ctx context.Context) (string, error)
	FetchHistory(ctx context.Context, sessionID string) (chat.History, error)
	ClearHistory(ctx context.Context, sessionID string) error
	SubmitTurn(ctx context.Context, sessionID string, blob audio.Blob) (turnclient.TurnResult, error)
}

type Visualizer interface {
	Attach(frames <-chan []int16)
	Detach()
}

type AlertKind string

const (
	AlertDeviceUnavailable AlertKind = "device_unavailable"
	AlertSessionBootstrap  AlertKind = "session_bootstrap_failed"
	AlertHistoryFetch      AlertKind = "history_fetch_failed"
	AlertHistoryClear      AlertKind = "history_clear_failed"
	AlertTurnFailed        AlertKind = "turn_failed"
	AlertPlaybackFailed    AlertKind = "playback_failed"
	AlertNotice            AlertKind = "notice"
)

type Alert struct {
	Kind    AlertKind
	Message string
}

// View renders controller output. Calls come from the controller goroutine.
type View interface {
	ShowHistory(h chat.History)
	ShowState(s Snapshot)
	ShowAlert(a Alert)
}

// Snapshot is a consistent copy of controller state.
type Snapshot struct {
	State          State
	Active         bool
	SessionID      string
	SessionPending bool
	Epoch          uint64
	Recording      bool
	// RestartStage is 1 or 2 while waiting to restart, otherwise 0.
	RestartStage int
	History      chat.History
}
