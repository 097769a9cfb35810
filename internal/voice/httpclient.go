package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/talkback/internal/reliability"
)

const (
	maxProviderAttempts = 3
	providerBodyLimit   = 4 << 20
)

// restClient is the shared JSON-over-HTTP plumbing of the REST providers.
type restClient struct {
	provider    string
	baseURL     string
	http        *http.Client
	headers     map[string]string
	backoffBase time.Duration
}

func (c *restClient) url(path string) string {
	return strings.TrimRight(c.baseURL, "/") + path
}

// do sends one request, retrying retryable statuses with capped backoff. body
// is re-read on every attempt.
func (c *restClient) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt < maxProviderAttempts; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, c.backoffBase, 4*c.backoffBase)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		lastErr = c.once(ctx, method, path, contentType, body, out)
		if lastErr == nil {
			return nil
		}
		pe, ok := lastErr.(*ProviderError)
		if !ok || !pe.Retryable {
			return lastErr
		}
	}
	return lastErr
}

func (c *restClient) once(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ProviderError{Provider: c.provider, Code: "transport", Retryable: reliability.IsRetryableTransportError(err), Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, providerBodyLimit))
	if err != nil {
		return &ProviderError{Provider: c.provider, Code: "read_body", Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail := strings.TrimSpace(string(raw))
		if len(detail) > 512 {
			detail = detail[:512]
		}
		return &ProviderError{
			Provider:  c.provider,
			Code:      fmt.Sprintf("http_%d", res.StatusCode),
			Detail:    detail,
			Retryable: reliability.IsRetryableHTTPStatus(res.StatusCode),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProviderError{Provider: c.provider, Code: "bad_response", Err: err}
	}
	return nil
}
