package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const initialBackoff = 200 * time.Millisecond

// Client queries the read-only /info endpoint. Requests are idempotent so
// transport failures and 5xx responses are retried with exponential backoff.
type Client struct {
	baseURL string
	http    *http.Client
	retries int
	log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, retries int, log *zap.Logger) *Client {
	if retries < 0 {
		retries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
		retries: retries,
		log:     log,
	}
}

type InfoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

func (c *Client) Info(ctx context.Context, req interface{}) (map[string]any, error) {
	var data map[string]any
	if err := c.postWithRetry(ctx, "/info", req, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) InfoAny(ctx context.Context, req interface{}) (any, error) {
	var data any
	if err := c.postWithRetry(ctx, "/info", req, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) postWithRetry(ctx context.Context, path string, req, out interface{}) error {
	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		err := c.post(ctx, path, req, out)
		if err == nil || attempt >= c.retries || !retryable(err) {
			return err
		}
		c.log.Debug("info request retry", zap.String("path", path), zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func retryable(err error) bool {
	if statusErr, ok := err.(*statusError); ok {
		return statusErr.code >= 500 || statusErr.code == http.StatusTooManyRequests
	}
	_, isSyntax := err.(*json.SyntaxError)
	return !isSyntax
}

func (c *Client) post(ctx context.Context, path string, req, out interface{}) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
