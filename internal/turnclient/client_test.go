package turnclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/talkback/internal/audio"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c, err := New(Options{
		BaseURL:        ts.URL,
		SubmitTimeout:  2 * time.Second,
		RequestTimeout: 2 * time.Second,
		NewID:          func() string { return "local-uuid" },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func emptyBlob(t *testing.T) audio.Blob {
	t.Helper()
	blob, err := audio.NewWAVBlob(nil, 16000)
	if err != nil {
		t.Fatalf("NewWAVBlob() error = %v", err)
	}
	return blob
}

func TestCreateSession(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/agent/session/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"session_id":"abc-123","error":false}`)
	})
	c := newTestClient(t, r)

	id, err := c.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if id != "abc-123" {
		t.Fatalf("session id = %q, want abc-123", id)
	}
}

func TestCreateSessionFallsBackToLocalID(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/agent/session/new", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newTestClient(t, r)

	id, err := c.CreateSession(context.Background())
	if !errors.Is(err, ErrSessionBootstrapFailed) {
		t.Fatalf("CreateSession() error = %v, want ErrSessionBootstrapFailed", err)
	}
	if id != "local-uuid" {
		t.Fatalf("fallback id = %q, want local-uuid", id)
	}
}

func TestFetchHistorySoftFailure(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/agent/chat/{id}/history", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	})
	c := newTestClient(t, r)

	h, err := c.FetchHistory(context.Background(), "s1")
	if !errors.Is(err, ErrHistoryFetchFailed) {
		t.Fatalf("FetchHistory() error = %v, want ErrHistoryFetchFailed", err)
	}
	if h == nil || len(h) != 0 {
		t.Fatalf("history = %#v, want empty non-nil", h)
	}
}

func TestFetchHistory(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/agent/chat/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "s1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"session_id":"s1","chat_history":[{"role":"user","content":"hello"},{"role":"assistant","content":"hi there"}],"error":false}`)
	})
	c := newTestClient(t, r)

	h, err := c.FetchHistory(context.Background(), "s1")
	if err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}
	if len(h) != 2 || h[1].Content != "hi there" {
		t.Fatalf("history = %+v", h)
	}
}

func TestClearHistoryIsIdempotent(t *testing.T) {
	calls := 0
	r := chi.NewRouter()
	r.Delete("/agent/chat/{id}/history", func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = io.WriteString(w, `{"session_id":"s1","message":"Chat history cleared","error":false}`)
	})
	c := newTestClient(t, r)

	for i := 0; i < 2; i++ {
		if err := c.ClearHistory(context.Background(), "s1"); err != nil {
			t.Fatalf("ClearHistory() #%d error = %v", i+1, err)
		}
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestClearHistoryNoContent(t *testing.T) {
	r := chi.NewRouter()
	r.Delete("/agent/chat/{id}/history", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, r)

	if err := c.ClearHistory(context.Background(), "s1"); err != nil {
		t.Fatalf("ClearHistory() error = %v, want nil for 204", err)
	}
}

func TestEndpointEscapesSessionID(t *testing.T) {
	var gotPath string
	r := chi.NewRouter()
	r.Get("/agent/chat/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = io.WriteString(w, `{"session_id":"a b","chat_history":[]}`)
	})
	c := newTestClient(t, r)

	if _, err := c.FetchHistory(context.Background(), "a b"); err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}
	if gotPath != "/agent/chat/a%20b/history" {
		t.Fatalf("request path = %q", gotPath)
	}
}

func TestUserMessageUnwraps(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &Error{Kind: KindTurn, Op: "submit", Message: "upstream timeout"})
	if got := UserMessage(err, "fallback"); got != "upstream timeout" {
		t.Fatalf("UserMessage(wrapped) = %q, want %q", got, "upstream timeout")
	}
	if got := UserMessage(errors.New("plain"), "fallback"); got != "fallback" {
		t.Fatalf("UserMessage(plain) = %q, want fallback", got)
	}
	if got := UserMessage(&Error{Kind: KindTurn}, "fallback"); got != "fallback" {
		t.Fatalf("UserMessage(no message) = %q, want fallback", got)
	}
}

func TestSubmitTurnSuccess(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/agent/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if hdr.Header.Get("Content-Type") != audio.ContentTypeWAV || len(data) != 44 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"chat_history":[{"role":"user","content":"hello"},{"role":"assistant","content":"hi there"}],"audio_url":"/tmp/r1.mp3","error":false}`)
	})
	c := newTestClient(t, r)

	res, err := c.SubmitTurn(context.Background(), "s1", emptyBlob(t))
	if err != nil {
		t.Fatalf("SubmitTurn() error = %v", err)
	}
	if len(res.History) != 2 || res.History[0].Content != "hello" {
		t.Fatalf("history = %+v", res.History)
	}
	if !strings.HasSuffix(res.AudioURL, "/tmp/r1.mp3") || !strings.HasPrefix(res.AudioURL, "http://") {
		t.Fatalf("audio url = %q, want resolved /tmp/r1.mp3", res.AudioURL)
	}
}

func TestSubmitTurnFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "string error", status: 200, body: `{"error":"upstream timeout"}`, message: "upstream timeout"},
		{name: "typed error", status: 500, body: `{"error":true,"error_type":"stt","message":"no speech","fallback_message":"I'm having trouble hearing you right now. Could you please try again?","audio_url":null}`, message: "I'm having trouble hearing you right now. Could you please try again?"},
		{name: "missing audio", status: 200, body: `{"chat_history":[{"role":"user","content":"x"}],"audio_url":null}`},
		{name: "missing history", status: 200, body: `{"audio_url":"/a.mp3"}`},
		{name: "tts fallback", status: 200, body: `{"chat_history":[],"audio_url":null,"tts_error":true,"fallback_message":"Here's my text response instead."}`, message: "Here's my text response instead."},
		{name: "bad status", status: 502, body: `<html>bad gateway</html>`},
		{name: "garbage", status: 200, body: `not json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Post("/agent/chat/{id}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			c := newTestClient(t, r)

			_, err := c.SubmitTurn(context.Background(), "s1", emptyBlob(t))
			if !errors.Is(err, ErrTurnFailed) {
				t.Fatalf("SubmitTurn() error = %v, want ErrTurnFailed", err)
			}
			if tc.message != "" && UserMessage(err, "") != tc.message {
				t.Fatalf("UserMessage() = %q, want %q", UserMessage(err, ""), tc.message)
			}
		})
	}
}

func TestSubmitTurnTimeout(t *testing.T) {
	release := make(chan struct{})
	r := chi.NewRouter()
	r.Post("/agent/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	ts := httptest.NewServer(r)
	defer ts.Close()
	defer close(release)

	c, err := New(Options{BaseURL: ts.URL, SubmitTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.SubmitTurn(context.Background(), "s1", emptyBlob(t))
	if !errors.Is(err, ErrTurnFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("SubmitTurn() error = %v, want turn failure from deadline", err)
	}
}

func TestWatchURL(t *testing.T) {
	c, err := New(Options{BaseURL: "https://voice.example.com/base/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got := c.WatchURL("a b")
	if got != "wss://voice.example.com/base/agent/chat/a%20b/ws" {
		t.Fatalf("WatchURL() = %q", got)
	}
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "localhost:8080"}); err == nil {
		t.Fatalf("New() error = nil for relative base url")
	}
}
