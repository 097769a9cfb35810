package turnclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/talkback/internal/audio"
	"github.com/ent0n29/talkback/internal/chat"
	"github.com/ent0n29/talkback/internal/protocol"
)

var (
	errBadResponse = errors.New("malformed response")
	// errEmptyBody is a 2xx answer without a body.
	errEmptyBody = fmt.Errorf("%w: empty body", errBadResponse)
)

const (
	maxResponseBytes = 8 << 20
	uploadFilename   = "recording.wav"
)

type Options struct {
	BaseURL        string
	SubmitTimeout  time.Duration
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	// NewID generates fallback session ids. Defaults to uuid.NewString.
	NewID func() string
}

// TurnResult is a successful round trip.
type TurnResult struct {
	History       chat.History
	AudioURL      string
	Transcription string
	Reply         string
}

// Client performs the HTTP round trips of the conversation loop.
type Client struct {
	baseURL        *url.URL
	submitTimeout  time.Duration
	requestTimeout time.Duration
	http           *http.Client
	newID          func() string
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 60 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Client{
		baseURL:        u,
		submitTimeout:  opts.SubmitTimeout,
		requestTimeout: opts.RequestTimeout,
		http:           opts.HTTPClient,
		newID:          opts.NewID,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// CreateSession asks the server for a new session id. On any failure it
// still returns a usable locally generated id, together with an error of
// kind KindSessionBootstrap.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var out protocol.SessionResponse
	status, err := c.doJSON(ctx, http.MethodPost, c.endpoint("agent", "session", "new"), nil, "", &out)
	if err == nil && (status < 200 || status >= 300) {
		err = fmt.Errorf("HTTP %d", status)
	}
	if err == nil && out.Error.Set {
		err = errors.New(firstNonEmpty(out.Error.Message, "server reported an error"))
	}
	if err == nil && strings.TrimSpace(out.SessionID) == "" {
		err = errors.New("missing session_id in response")
	}
	if err != nil {
		return c.newID(), &Error{
			Kind:    KindSessionBootstrap,
			Op:      "create_session",
			Message: "Could not reach the server; using a local session id.",
			Err:     err,
		}
	}
	return strings.TrimSpace(out.SessionID), nil
}

// FetchHistory returns the server history. Failures yield an empty history
// and an error of kind KindHistoryFetch.
func (c *Client) FetchHistory(ctx context.Context, sessionID string) (chat.History, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var out protocol.HistoryResponse
	status, err := c.doJSON(ctx, http.MethodGet, c.endpoint("agent", "chat", sessionID, "history"), nil, "", &out)
	if err == nil && (status < 200 || status >= 300) {
		err = fmt.Errorf("HTTP %d", status)
	}
	if err == nil && out.Error.Set {
		err = errors.New(firstNonEmpty(out.Error.Message, out.Message, "server reported an error"))
	}
	if err != nil {
		return chat.History{}, &Error{Kind: KindHistoryFetch, Op: "fetch_history", Err: err}
	}
	if out.ChatHistory == nil {
		return chat.History{}, nil
	}
	return out.ChatHistory, nil
}

// ClearHistory purges the server history of a session. Clearing an already
// empty history succeeds.
func (c *Client) ClearHistory(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var out protocol.ClearResponse
	status, err := c.doJSON(ctx, http.MethodDelete, c.endpoint("agent", "chat", sessionID, "history"), nil, "", &out)
	if errors.Is(err, errEmptyBody) {
		// 204 No Content and friends.
		err = nil
	}
	if err == nil && (status < 200 || status >= 300) {
		err = fmt.Errorf("HTTP %d", status)
	}
	if err == nil && out.Error.Set {
		err = errors.New(firstNonEmpty(out.Error.Message, out.Message, "server reported an error"))
	}
	if err != nil {
		return &Error{
			Kind:    KindHistoryClear,
			Op:      "clear_history",
			Message: "Could not clear the conversation history.",
			Err:     err,
		}
	}
	return nil
}

// SubmitTurn uploads one recording and waits, bounded by the submit timeout,
// for the updated history and the reply audio URL. Any failure, including a
// response without chat_history or audio_url, is of kind KindTurn. Turns
// are never retried.
func (c *Client) SubmitTurn(ctx context.Context, sessionID string, blob audio.Blob) (TurnResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	body, contentType, err := multipartAudio(blob)
	if err != nil {
		return TurnResult{}, turnError("encode upload", "", err)
	}

	var out protocol.ChatResponse
	status, err := c.doJSON(ctx, http.MethodPost, c.endpoint("agent", "chat", sessionID), body, contentType, &out)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return TurnResult{}, turnError("submit", "The server took too long to respond.", err)
		}
		if errors.Is(err, errBadResponse) {
			return TurnResult{}, turnError("submit", "The server sent an unreadable response.", err)
		}
		return TurnResult{}, turnError("submit", "Could not reach the server.", err)
	}
	if out.Error.Set || out.TTSError {
		msg := firstNonEmpty(out.FallbackMessage, out.Message, out.Error.Message)
		return TurnResult{}, turnError("submit", msg, fmt.Errorf("server error type=%q status=%d", out.ErrorType, status))
	}
	if status < 200 || status >= 300 {
		return TurnResult{}, turnError("submit", out.Message, fmt.Errorf("HTTP %d", status))
	}
	if out.ChatHistory == nil {
		return TurnResult{}, turnError("submit", "", errors.New("response missing chat_history"))
	}
	if out.AudioURL == nil || strings.TrimSpace(*out.AudioURL) == "" {
		return TurnResult{}, turnError("submit", "", errors.New("response missing audio_url"))
	}
	audioURL, err := c.resolve(*out.AudioURL)
	if err != nil {
		return TurnResult{}, turnError("submit", "", err)
	}
	return TurnResult{
		History:       out.ChatHistory,
		AudioURL:      audioURL,
		Transcription: out.Transcription,
		Reply:         out.LLMResponse,
	}, nil
}

// WatchURL is the websocket URL of the history feed for a session.
func (c *Client) WatchURL(sessionID string) string {
	u := c.withPath("agent", "chat", sessionID, "ws")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

func (c *Client) endpoint(parts ...string) string {
	return c.withPath(parts...).String()
}

func (c *Client) withPath(parts ...string) *url.URL {
	u := *c.baseURL
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.Join(parts, "/")
	u.RawPath = strings.TrimRight(c.baseURL.EscapedPath(), "/") + "/" + strings.Join(escaped, "/")
	return &u
}

func (c *Client) resolve(ref string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid audio_url: %w", err)
	}
	return c.baseURL.ResolveReference(r).String(), nil
}

func (c *Client) doJSON(ctx context.Context, method, target string, body io.Reader, contentType string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return res.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return res.StatusCode, errEmptyBody
		}
		return res.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return res.StatusCode, nil
		}
		return res.StatusCode, fmt.Errorf("%w: %v", errBadResponse, err)
	}
	return res.StatusCode, nil
}

func multipartAudio(blob audio.Blob) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	contentType := blob.ContentType
	if contentType == "" {
		contentType = audio.ContentTypeWAV
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, uploadFilename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func turnError(op, message string, err error) *Error {
	return &Error{Kind: KindTurn, Op: op, Message: message, Err: err}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
