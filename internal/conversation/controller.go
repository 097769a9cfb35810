package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/talkback/internal/audio"
	"github.com/ent0n29/talkback/internal/chat"
	"github.com/ent0n29/talkback/internal/logx"
	"github.com/ent0n29/talkback/internal/turnclient"
)

const (
	defaultRestartDelay = time.Second
	defaultListenDelay  = time.Second
	eventQueueSize      = 32
)

type Options struct {
	Capture    Capture
	Player     Player
	Backend    Backend
	View       View
	Visualizer Visualizer

	// RestartDelay runs after playback ends, ListenDelay after that, before
	// the next recording starts.
	RestartDelay time.Duration
	ListenDelay  time.Duration

	// OnTransition observes every state change. Called from the controller
	// goroutine.
	OnTransition func(from, to State)
}

// Controller drives the conversation loop. All state is owned by Run; the
// public methods only post events to it.
type Controller struct {
	opts   Options
	events chan event
	done   chan struct{}
	runCtx context.Context

	state          State
	active         bool
	sessionID      string
	sessionPending bool
	sessionReq     uint64
	epoch          uint64
	submitSeq      uint64
	pendingSubmit  uint64
	restartStage   int
	history        chat.History
	historyRev     uint64
	rec            Recorder
	playCancel     context.CancelFunc
	timer          *time.Timer

	snapMu sync.Mutex
	snap   Snapshot
}

func New(opts Options) (*Controller, error) {
	if opts.Capture == nil {
		return nil, errors.New("conversation: capture is required")
	}
	if opts.Player == nil {
		return nil, errors.New("conversation: player is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("conversation: backend is required")
	}
	if opts.View == nil {
		opts.View = nopView{}
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = defaultRestartDelay
	}
	if opts.ListenDelay <= 0 {
		opts.ListenDelay = defaultListenDelay
	}
	return &Controller{
		opts:    opts,
		events:  make(chan event, eventQueueSize),
		done:    make(chan struct{}),
		history: chat.History{},
	}, nil
}

// Toggle is the single user control: start, stop and submit, or cancel,
// depending on the current state.
func (c *Controller) Toggle() { c.post(toggleEvent{}) }

// NewSession abandons the current conversation and starts a fresh session.
func (c *Controller) NewSession() { c.post(newSessionEvent{}) }

// ClearHistory asks the server to forget the current session's history.
func (c *Controller) ClearHistory() { c.post(clearHistoryEvent{}) }

func (c *Controller) Snapshot() Snapshot {
	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	s := c.snap
	s.History = c.snap.History.Clone()
	return s
}

// Run bootstraps the session and processes events until ctx is done. When
// sessionID is empty a new session is created on the server.
func (c *Controller) Run(ctx context.Context, sessionID string) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.runCtx = runCtx
	defer close(c.done)
	defer c.shutdown()

	c.bootstrap(sessionID)
	c.publish()

	for {
		select {
		case <-runCtx.Done():
			return nil
		case ev := <-c.events:
			c.handle(ev)
			c.publish()
		}
	}
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) bootstrap(sessionID string) {
	if sessionID != "" {
		c.sessionID = sessionID
		logx.Infof("conversation: resuming session %s", sessionID)
		c.fetchHistory()
		return
	}
	c.requestSession(true)
}

func (c *Controller) handle(ev event) {
	switch ev := ev.(type) {
	case toggleEvent:
		c.onToggle()
	case newSessionEvent:
		c.onNewSession()
	case clearHistoryEvent:
		c.onClearHistory()
	case sessionCreatedEvent:
		c.onSessionCreated(ev)
	case historyFetchedEvent:
		c.onHistoryFetched(ev)
	case historyClearedEvent:
		c.onHistoryCleared(ev)
	case submitResultEvent:
		c.onSubmitResult(ev)
	case playbackEndedEvent:
		c.onPlaybackEnded(ev)
	case restartTimerEvent:
		c.onRestartTimer(ev)
	}
}

func (c *Controller) onToggle() {
	if c.sessionPending {
		c.alert(AlertNotice, "Starting a new session, please wait.")
		return
	}
	switch c.state {
	case StateIdle:
		c.active = true
		c.startRecording()
	case StateRecording:
		c.stopAndSubmit()
	case StateProcessing:
		// The reply still lands in the history but is not played.
		c.deactivate()
		c.alert(AlertNotice, "Stopping after this reply.")
	case StatePlayingResponse:
		c.deactivate()
		c.cancelPlayback()
		c.setState(StateIdle)
	case StateWaitingToRestart:
		c.deactivate()
		c.setState(StateIdle)
	}
}

func (c *Controller) startRecording() {
	rec, err := c.opts.Capture.Acquire(c.runCtx)
	if err != nil {
		logx.Warnf("conversation: acquire input device: %v", err)
		c.active = false
		c.setState(StateIdle)
		c.alert(AlertDeviceUnavailable, deviceMessage(err))
		return
	}
	if err := rec.Start(); err != nil {
		rec.Abort()
		logx.Warnf("conversation: start recording: %v", err)
		c.active = false
		c.setState(StateIdle)
		c.alert(AlertDeviceUnavailable, deviceMessage(err))
		return
	}
	c.rec = rec
	if c.opts.Visualizer != nil {
		c.opts.Visualizer.Attach(rec.Frames())
	}
	c.setState(StateRecording)
}

func (c *Controller) stopAndSubmit() {
	rec := c.rec
	c.rec = nil
	c.detachVisualizer()
	blob, err := rec.Stop()
	if err != nil {
		logx.Warnf("conversation: finalize recording: %v", err)
		c.active = false
		c.setState(StateIdle)
		c.alert(AlertDeviceUnavailable, "The recording could not be finalized.")
		return
	}

	c.submitSeq++
	seq := c.submitSeq
	c.pendingSubmit = seq
	epoch := c.epoch
	sessionID := c.sessionID
	c.setState(StateProcessing)
	logx.Debugf("conversation: submitting %d samples (%s) for session %s", blob.Samples, blob.Duration(), sessionID)

	ctx := c.runCtx
	go func() {
		res, err := c.opts.Backend.SubmitTurn(ctx, sessionID, blob)
		c.post(submitResultEvent{seq: seq, epoch: epoch, result: res, err: err})
	}()
}

func (c *Controller) onSubmitResult(ev submitResultEvent) {
	if ev.seq != c.pendingSubmit || c.state != StateProcessing {
		logx.Debugf("conversation: dropping stale turn result")
		return
	}
	c.pendingSubmit = 0

	if ev.err != nil {
		logx.Warnf("conversation: turn failed: %v", ev.err)
		c.active = false
		c.setState(StateIdle)
		c.alert(AlertTurnFailed, turnclient.UserMessage(ev.err, "The turn could not be completed."))
		return
	}

	c.setHistory(ev.result.History)
	if !c.active || ev.epoch != c.epoch {
		c.setState(StateIdle)
		return
	}
	c.play(ev.result.AudioURL)
}

func (c *Controller) play(url string) {
	playCtx, cancel := context.WithCancel(c.runCtx)
	c.playCancel = cancel
	epoch := c.epoch
	c.setState(StatePlayingResponse)
	go func() {
		err := c.opts.Player.Play(playCtx, url)
		c.post(playbackEndedEvent{epoch: epoch, err: err})
	}()
}

func (c *Controller) onPlaybackEnded(ev playbackEndedEvent) {
	if ev.epoch != c.epoch || c.state != StatePlayingResponse {
		return
	}
	c.cancelPlayback()
	if ev.err != nil && !errors.Is(ev.err, context.Canceled) {
		logx.Warnf("conversation: playback failed: %v", ev.err)
		c.active = false
		c.setState(StateIdle)
		c.alert(AlertPlaybackFailed, "The reply could not be played.")
		return
	}
	if !c.active || c.rec != nil {
		c.setState(StateIdle)
		return
	}
	c.restartStage = 1
	c.setState(StateWaitingToRestart)
	c.schedule(c.opts.RestartDelay, 1)
}

func (c *Controller) schedule(d time.Duration, stage int) {
	c.stopTimer()
	epoch := c.epoch
	c.timer = time.AfterFunc(d, func() {
		c.post(restartTimerEvent{epoch: epoch, stage: stage})
	})
}

func (c *Controller) onRestartTimer(ev restartTimerEvent) {
	if ev.epoch != c.epoch || c.state != StateWaitingToRestart || ev.stage != c.restartStage {
		return
	}
	if !c.active || c.rec != nil {
		c.setState(StateIdle)
		return
	}
	if ev.stage == 1 {
		c.restartStage = 2
		c.schedule(c.opts.ListenDelay, 2)
		return
	}
	c.timer = nil
	c.startRecording()
}

func (c *Controller) onNewSession() {
	c.deactivate()
	if c.rec != nil {
		c.detachVisualizer()
		c.rec.Abort()
		c.rec = nil
	}
	c.cancelPlayback()
	c.pendingSubmit = 0
	c.setState(StateIdle)
	c.setHistory(chat.History{})
	c.requestSession(false)
}

func (c *Controller) requestSession(bootstrap bool) {
	c.sessionPending = true
	c.sessionReq++
	req := c.sessionReq
	ctx := c.runCtx
	go func() {
		id, err := c.opts.Backend.CreateSession(ctx)
		c.post(sessionCreatedEvent{req: req, id: id, err: err, bootstrap: bootstrap})
	}()
}

func (c *Controller) onSessionCreated(ev sessionCreatedEvent) {
	if ev.req != c.sessionReq {
		return
	}
	c.sessionPending = false
	if ev.err != nil {
		logx.Warnf("conversation: create session: %v", ev.err)
		c.alert(AlertSessionBootstrap, "Could not reach the server; using a local session id.")
	}
	if ev.id == "" {
		// Never keep the previous conversation's id.
		ev.id = uuid.NewString()
		logx.Warnf("conversation: backend returned no session id; using local id %s", ev.id)
	}
	c.sessionID = ev.id
	logx.Infof("conversation: session %s", ev.id)
	if ev.bootstrap {
		c.fetchHistory()
	}
}

func (c *Controller) fetchHistory() {
	sessionID := c.sessionID
	rev := c.historyRev
	ctx := c.runCtx
	go func() {
		h, err := c.opts.Backend.FetchHistory(ctx, sessionID)
		c.post(historyFetchedEvent{sessionID: sessionID, rev: rev, history: h, err: err})
	}()
}

func (c *Controller) onHistoryFetched(ev historyFetchedEvent) {
	if ev.sessionID != c.sessionID || ev.rev != c.historyRev {
		return
	}
	if ev.err != nil {
		logx.Warnf("conversation: fetch history: %v", ev.err)
		c.alert(AlertHistoryFetch, "Previous messages could not be loaded.")
		return
	}
	c.setHistory(ev.history)
}

func (c *Controller) onClearHistory() {
	if c.sessionPending || c.sessionID == "" {
		c.alert(AlertNotice, "Starting a new session, please wait.")
		return
	}
	sessionID := c.sessionID
	ctx := c.runCtx
	go func() {
		err := c.opts.Backend.ClearHistory(ctx, sessionID)
		c.post(historyClearedEvent{sessionID: sessionID, err: err})
	}()
}

func (c *Controller) onHistoryCleared(ev historyClearedEvent) {
	if ev.sessionID != c.sessionID {
		return
	}
	if ev.err != nil {
		logx.Warnf("conversation: clear history: %v", ev.err)
		c.alert(AlertHistoryClear, turnclient.UserMessage(ev.err, "History could not be cleared."))
		return
	}
	c.setHistory(chat.History{})
}

// deactivate ends the loop and invalidates every pending async result.
func (c *Controller) deactivate() {
	c.active = false
	c.epoch++
	c.stopTimer()
	c.restartStage = 0
}

func (c *Controller) cancelPlayback() {
	if c.playCancel != nil {
		c.playCancel()
		c.playCancel = nil
	}
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) detachVisualizer() {
	if c.opts.Visualizer != nil {
		c.opts.Visualizer.Detach()
	}
}

func (c *Controller) shutdown() {
	c.deactivate()
	if c.rec != nil {
		c.detachVisualizer()
		c.rec.Abort()
		c.rec = nil
	}
	c.cancelPlayback()
}

func (c *Controller) setState(to State) {
	from := c.state
	if to != StateWaitingToRestart {
		c.restartStage = 0
	}
	c.state = to
	if from != to {
		logx.Debugf("conversation: %s -> %s", from, to)
		if c.opts.OnTransition != nil {
			c.opts.OnTransition(from, to)
		}
	}
}

func (c *Controller) setHistory(h chat.History) {
	if h == nil {
		h = chat.History{}
	}
	c.history = h.Clone()
	c.historyRev++
	c.opts.View.ShowHistory(c.history.Clone())
}

func (c *Controller) alert(kind AlertKind, msg string) {
	c.opts.View.ShowAlert(Alert{Kind: kind, Message: msg})
}

func (c *Controller) publish() {
	s := Snapshot{
		State:          c.state,
		Active:         c.active,
		SessionID:      c.sessionID,
		SessionPending: c.sessionPending,
		Epoch:          c.epoch,
		Recording:      c.rec != nil,
		RestartStage:   c.restartStage,
		History:        c.history.Clone(),
	}
	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
	c.opts.View.ShowState(s)
}

func deviceMessage(err error) string {
	switch {
	case errors.Is(err, audio.ErrDeviceBusy):
		return "The microphone is already in use."
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return "Microphone unavailable. Check that an input device is connected and permitted."
	default:
		return "The microphone could not be started."
	}
}

type nopView struct{}

func (nopView) ShowHistory(chat.History) {}
func (nopView) ShowState(Snapshot)       {}
func (nopView) ShowAlert(Alert)          {}
