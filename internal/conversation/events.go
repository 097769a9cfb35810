package conversation

import (
	"github.com/ent0n29/talkback/internal/chat"
	"github.com/ent0n29/talkback/internal/turnclient"
)

type event interface{ isEvent() }

type toggleEvent struct{}

type newSessionEvent struct{}

type clearHistoryEvent struct{}

type sessionCreatedEvent struct {
	req       uint64
	id        string
	err       error
	bootstrap bool
}

type historyFetchedEvent struct {
	sessionID string
	rev       uint64
	history   chat.History
	err       error
}

type historyClearedEvent struct {
	sessionID string
	err       error
}

type submitResultEvent struct {
	seq    uint64
	epoch  uint64
	result turnclient.TurnResult
	err    error
}

type playbackEndedEvent struct {
	epoch uint64
	err   error
}

type restartTimerEvent struct {
	epoch uint64
	stage int
}

func (toggleEvent) isEvent()         {}
func (newSessionEvent) isEvent()     {}
func (clearHistoryEvent) isEvent()   {}
func (sessionCreatedEvent) isEvent() {}
func (historyFetchedEvent) isEvent() {}
func (historyClearedEvent) isEvent() {}
func (submitResultEvent) isEvent()   {}
func (playbackEndedEvent) isEvent()  {}
func (restartTimerEvent) isEvent()   {}
