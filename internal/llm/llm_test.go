package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ent0n29/talkback/internal/chat"
)

func TestBuildPrompt(t *testing.T) {
	h := chat.History{
		{Role: chat.RoleUser, Content: "hello"},
		{Role: chat.RoleAssistant, Content: "hi there"},
	}
	got := BuildPrompt(" how are you? ", h)
	want := "User: hello\nAssistant: hi there\nUser: how are you?\nAssistant:"
	if got != want {
		t.Fatalf("BuildPrompt() = %q, want %q", got, want)
	}
	if got := BuildPrompt("just this", nil); got != "just this" {
		t.Fatalf("BuildPrompt(no history) = %q", got)
	}
}

func TestMockRemembersLastUserTurn(t *testing.T) {
	m := NewMock()
	got, err := m.Generate(context.Background(), "what now", chat.History{
		{Role: chat.RoleUser, Content: "buy milk"},
		{Role: chat.RoleAssistant, Content: "ok"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "I heard you: what now\nI also remember: buy milk" {
		t.Fatalf("Generate() = %q", got)
	}
	if got, _ := m.Generate(context.Background(), "", nil); got != "I heard you: I am listening." {
		t.Fatalf("Generate(empty) = %q", got)
	}
}

type failingGenerator struct{ err error }

func (f failingGenerator) Name() string { return "failing" }

func (f failingGenerator) Generate(context.Context, string, chat.History) (string, error) {
	return "", f.err
}

func TestFallbackUsesSecondaryOnError(t *testing.T) {
	g := NewFallback(failingGenerator{err: errors.New("quota")}, NewMock())
	got, err := g.Generate(context.Background(), "hi", nil)
	if err != nil || got != "I heard you: hi" {
		t.Fatalf("Generate() = %q, %v", got, err)
	}
}

func TestFallbackKeepsDeadline(t *testing.T) {
	g := NewFallback(failingGenerator{err: context.DeadlineExceeded}, NewMock())
	if _, err := g.Generate(context.Background(), "hi", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Generate() error = %v", err)
	}
}

func TestGeminiGenerate(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "models/test-model:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.Unmarshal(raw, &req)
		if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":" Hi! "}]}}]}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), GeminiConfig{APIKey: "k", Model: "test-model", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}
	got, err := g.Generate(context.Background(), "hello", chat.History{{Role: chat.RoleUser, Content: "earlier"}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Hi!" {
		t.Fatalf("Generate() = %q", got)
	}
	if gotPrompt != "User: earlier\nUser: hello\nAssistant:" {
		t.Fatalf("prompt = %q", gotPrompt)
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), GeminiConfig{}); err == nil {
		t.Fatalf("NewGemini() without key succeeded")
	}
}
