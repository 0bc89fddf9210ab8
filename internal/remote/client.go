// Package remote talks to the reminder, transcription and cleanup endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/lazypower/tether/internal/config"
	"github.com/lazypower/tether/internal/failure"
)

const defaultTimeout = 10 * time.Second

// Client is an HTTP client for the remote reminder service.
type Client struct {
	baseURL string
	userID  string
	tokens  oauth2.TokenSource
	http    *http.Client
}

// New creates a client from cfg. An empty token leaves the client
// unauthenticated; every call then fails with an Auth failure.
func New(cfg config.RemoteConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		userID:  cfg.UserID,
		http:    &http.Client{Timeout: timeout},
	}
	if cfg.Token != "" {
		c.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
	}
	return c
}

// WithTokenSource replaces the bearer token source, e.g. with a refreshing one.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	c.tokens = ts
	return c
}

// UserID returns the configured remote user id.
func (c *Client) UserID() string { return c.userID }

func (c *Client) authorize(op string, req *http.Request) error {
	if c.tokens == nil {
		return &failure.Error{Kind: failure.Auth, Op: op, Message: "no auth token configured"}
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return failure.New(failure.Auth, op, err)
	}
	if !tok.Valid() {
		return &failure.Error{Kind: failure.Auth, Op: op, Message: "auth token expired"}
	}
	tok.SetAuthHeader(req)
	return nil
}

// doJSON sends an authorized request with an optional JSON body and decodes
// an optional JSON response into out.
func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(op, req, out)
}

func (c *Client) send(op string, req *http.Request, out any) error {
	if err := c.authorize(op, req); err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return failure.New(failure.Network, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure.New(failure.Network, op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return failure.New(failure.Parse, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func statusError(op string, status int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case payload.Error != "":
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	kind := failure.Server
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = failure.Auth
	}
	return &failure.Error{Kind: kind, Op: op, Status: status, Message: msg, Err: errors.New(msg)}
}
