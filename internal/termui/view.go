package termui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/ent0n29/talkback/internal/chat"
	"github.com/ent0n29/talkback/internal/conversation"
)

const clearScreen = "\x1b[H\x1b[2J"

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("135"))
	contentStyle   = lipgloss.NewStyle().PaddingLeft(2)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	alertStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	headerStyle    = lipgloss.NewStyle().Bold(true)
	emptyStyle     = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
)

type Options struct {
	// Redraw repaints the whole screen on every change. Without it the view
	// appends plain lines, which suits logs and pipes.
	Redraw bool
	// Keys is the help line shown under the status.
	Keys string
}

// View renders the conversation to a terminal. Safe for concurrent use.
type View struct {
	out  io.Writer
	opts Options

	mu        sync.Mutex
	history   chat.History
	printed   int
	snap      conversation.Snapshot
	haveSnap  bool
	alert     *conversation.Alert
	viz       string
	lastState string
}

func New(out io.Writer, opts Options) *View {
	if opts.Keys == "" {
		opts.Keys = "enter: talk/stop   n: new session   c: clear history   q: quit"
	}
	return &View{out: out, opts: opts}
}

func (v *View) ShowHistory(h chat.History) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = h.Clone()
	if v.opts.Redraw {
		v.redrawLocked()
		return
	}
	if len(v.history) < v.printed {
		v.printed = 0
		if len(v.history) == 0 {
			fmt.Fprintln(v.out, emptyStyle.Render("(history cleared)"))
			return
		}
	}
	for _, m := range v.history[v.printed:] {
		fmt.Fprintln(v.out, FormatMessage(m))
	}
	v.printed = len(v.history)
}

func (v *View) ShowState(s conversation.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap = s
	v.haveSnap = true
	if s.State != conversation.StateRecording {
		v.viz = ""
	}
	if v.opts.Redraw {
		v.redrawLocked()
		return
	}
	line := StatusLine(s)
	if line != v.lastState {
		v.lastState = line
		fmt.Fprintln(v.out, statusStyle.Render(line))
	}
}

func (v *View) ShowAlert(a conversation.Alert) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alert = &a
	if v.opts.Redraw {
		v.redrawLocked()
		return
	}
	fmt.Fprintln(v.out, formatAlert(a))
}

// ShowVisualizer draws the latest spectrum frame. Only shown while
// recording and only in redraw mode.
func (v *View) ShowVisualizer(frame string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.opts.Redraw || v.snap.State != conversation.StateRecording {
		return
	}
	v.viz = frame
	v.redrawLocked()
}

func (v *View) redrawLocked() {
	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(headerStyle.Render("talkback"))
	if v.snap.SessionID != "" {
		b.WriteString(statusStyle.Render("  session " + v.snap.SessionID))
	}
	b.WriteString("\n\n")
	b.WriteString(FormatHistory(v.history))
	b.WriteString("\n")
	if v.viz != "" {
		b.WriteString(v.viz)
		b.WriteString("\n")
	}
	if v.haveSnap {
		style := statusStyle
		if v.snap.Active {
			style = activeStyle
		}
		b.WriteString(style.Render(StatusLine(v.snap)))
		b.WriteString("\n")
	}
	if v.alert != nil {
		b.WriteString(formatAlert(*v.alert))
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render(v.opts.Keys))
	b.WriteString("\n")
	_, _ = io.WriteString(v.out, b.String())
}

// FormatHistory renders every message, or a placeholder for an empty
// history.
func FormatHistory(h chat.History) string {
	if len(h) == 0 {
		return emptyStyle.Render("No messages yet.") + "\n"
	}
	var b strings.Builder
	for _, m := range h {
		b.WriteString(FormatMessage(m))
		b.WriteString("\n")
	}
	return b.String()
}

func FormatMessage(m chat.Message) string {
	label := userStyle.Render("You")
	if m.Role == chat.RoleAssistant {
		label = assistantStyle.Render("Assistant")
	}
	return label + "\n" + contentStyle.Render(m.Content)
}

func StatusLine(s conversation.Snapshot) string {
	if s.SessionPending {
		return "Starting session..."
	}
	switch s.State {
	case conversation.StateRecording:
		return "Recording... press enter to send"
	case conversation.StateProcessing:
		if !s.Active {
			return "Finishing the last turn..."
		}
		return "Thinking..."
	case conversation.StatePlayingResponse:
		return "Speaking... press enter to stop"
	case conversation.StateWaitingToRestart:
		if s.RestartStage == 2 {
			return "Listening soon..."
		}
		return "Your turn in a moment..."
	default:
		return "Press enter to talk"
	}
}

func formatAlert(a conversation.Alert) string {
	if a.Kind == conversation.AlertNotice {
		return noticeStyle.Render(a.Message)
	}
	return alertStyle.Render("! " + a.Message)
}
