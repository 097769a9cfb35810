package termui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ent0n29/talkback/internal/chat"
	"github.com/ent0n29/talkback/internal/conversation"
)

func TestPlainViewAppendsNewMessagesOnly(t *testing.T) {
	var out bytes.Buffer
	v := New(&out, Options{})

	v.ShowHistory(chat.History{{Role: chat.RoleUser, Content: "hello"}})
	v.ShowHistory(chat.History{
		{Role: chat.RoleUser, Content: "hello"},
		{Role: chat.RoleAssistant, Content: "hi there"},
	})

	got := out.String()
	if strings.Count(got, "hello") != 1 {
		t.Fatalf("hello printed %d times:\n%s", strings.Count(got, "hello"), got)
	}
	if !strings.Contains(got, "hi there") || !strings.Contains(got, "Assistant") {
		t.Fatalf("assistant reply missing:\n%s", got)
	}
}

func TestPlainViewReportsClear(t *testing.T) {
	var out bytes.Buffer
	v := New(&out, Options{})
	v.ShowHistory(chat.History{{Role: chat.RoleUser, Content: "hello"}})
	v.ShowHistory(chat.History{})
	if !strings.Contains(out.String(), "history cleared") {
		t.Fatalf("clear not reported:\n%s", out.String())
	}

	out.Reset()
	v.ShowHistory(chat.History{{Role: chat.RoleUser, Content: "again"}})
	if !strings.Contains(out.String(), "again") {
		t.Fatalf("message after clear not printed:\n%s", out.String())
	}
}

func TestPlainViewDeduplicatesStatus(t *testing.T) {
	var out bytes.Buffer
	v := New(&out, Options{})
	s := conversation.Snapshot{State: conversation.StateRecording, Active: true}
	v.ShowState(s)
	v.ShowState(s)
	if n := strings.Count(out.String(), "Recording"); n != 1 {
		t.Fatalf("status printed %d times", n)
	}
}

func TestRedrawViewShowsVisualizerOnlyWhileRecording(t *testing.T) {
	var out bytes.Buffer
	v := New(&out, Options{Redraw: true})

	v.ShowVisualizer("BARS")
	if strings.Contains(out.String(), "BARS") {
		t.Fatalf("visualizer drawn while idle")
	}

	v.ShowState(conversation.Snapshot{State: conversation.StateRecording, Active: true, SessionID: "s1"})
	out.Reset()
	v.ShowVisualizer("BARS")
	frame := out.String()
	if !strings.HasPrefix(frame, clearScreen) || !strings.Contains(frame, "BARS") || !strings.Contains(frame, "s1") {
		t.Fatalf("frame = %q", frame)
	}

	out.Reset()
	v.ShowState(conversation.Snapshot{State: conversation.StateProcessing, Active: true, SessionID: "s1"})
	if strings.Contains(out.String(), "BARS") {
		t.Fatalf("visualizer kept after recording ended")
	}
}

func TestStatusLine(t *testing.T) {
	cases := []struct {
		snap conversation.Snapshot
		want string
	}{
		{conversation.Snapshot{State: conversation.StateIdle}, "Press enter to talk"},
		{conversation.Snapshot{SessionPending: true}, "Starting session..."},
		{conversation.Snapshot{State: conversation.StateProcessing, Active: true}, "Thinking..."},
		{conversation.Snapshot{State: conversation.StateProcessing}, "Finishing the last turn..."},
		{conversation.Snapshot{State: conversation.StateWaitingToRestart, RestartStage: 2}, "Listening soon..."},
	}
	for _, tc := range cases {
		if got := StatusLine(tc.snap); got != tc.want {
			t.Fatalf("StatusLine(%+v) = %q, want %q", tc.snap, got, tc.want)
		}
	}
}

func TestFormatHistoryEmpty(t *testing.T) {
	if got := FormatHistory(nil); !strings.Contains(got, "No messages yet.") {
		t.Fatalf("FormatHistory(nil) = %q", got)
	}
}
