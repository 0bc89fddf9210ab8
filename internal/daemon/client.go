// Package daemon lets CLI commands hand work to a running `tether serve`
// instead of touching the database from a second process.
package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/lazypower/tether/internal/queue"
	"github.com/lazypower/tether/internal/voice"
)

const (
	httpTimeout   = 2 * time.Minute
	healthTimeout = time.Second
)

// Client talks to the tether HTTP API.
type Client struct {
	http      *http.Client
	serverURL string
}

// NewClient returns a client for the server listening on addr.
// TETHER_URL, when set, takes precedence.
func NewClient(addr string) *Client {
	url := os.Getenv("TETHER_URL")
	if url == "" {
		url = "http://" + addr
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: url,
	}
}

// Healthy reports whether the server answers its health check.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Capture runs the voice pipeline on the server.
func (c *Client) Capture(ctx context.Context, handle string) (voice.Result, error) {
	var res voice.Result
	err := c.post(ctx, "/api/voice", map[string]string{"handle": handle}, &res)
	return res, err
}

// ProcessQueue asks the server for one pass over the offline queue.
func (c *Client) ProcessQueue(ctx context.Context) (queue.Report, error) {
	var rep queue.Report
	err := c.post(ctx, "/api/queue/process", nil, &rep)
	return rep, err
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, body)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}

	switch resp.StatusCode {
	case http.StatusConflict:
		return queue.ErrBusy
	case http.StatusTooManyRequests:
		return voice.ErrQuotaExceeded
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
