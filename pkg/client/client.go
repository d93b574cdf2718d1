// Package client implements the session API contract over HTTP against
// the webchat backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/adambraimbridge/webchat/pkg/ingest"
	"github.com/adambraimbridge/webchat/pkg/models"
)

// Config holds the connection settings for a session API client.
type Config struct {
	BaseURL   string
	SessionID string
	APIKey    string
	UserID    string
	// HTTPClient overrides the default client (15s timeout) when set.
	HTTPClient *http.Client
}

// Client is an HTTP session API client. It implements ingest.SessionAPI.
type Client struct {
	cfg Config
	hc  *http.Client
}

var _ ingest.SessionAPI = (*Client)(nil)

// New creates a client for one session.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("client: session id is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{cfg: cfg, hc: hc}, nil
}

// envelope is the backend's uniform response shape.
type envelope struct {
	Success bool            `json:"success"`
	Reason  string          `json:"reason,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *Client) sessionPath(suffix string) string {
	return c.cfg.BaseURL + "/v1/sessions/" + url.PathEscape(c.cfg.SessionID) + suffix
}

func (c *Client) do(ctx context.Context, method, u string, body interface{}) (envelope, error) {
	var env envelope
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return env, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return env, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}
	if c.cfg.UserID != "" {
		req.Header.Set("X-User-ID", c.cfg.UserID)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return env, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return env, fmt.Errorf("session api returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return env, fmt.Errorf("invalid session api response: %w", err)
	}
	return env, nil
}

// Init fetches the session snapshot.
func (c *Client) Init(ctx context.Context) (models.SessionSnapshot, error) {
	var snap models.SessionSnapshot
	env, err := c.do(ctx, http.MethodGet, c.sessionPath("/init"), nil)
	if err != nil {
		return snap, err
	}
	if !env.Success {
		return snap, fmt.Errorf("session init rejected: %s", env.Reason)
	}
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		return snap, fmt.Errorf("invalid session snapshot: %w", err)
	}
	return snap, nil
}

// Catchup fetches the historical batch in the direction matching the
// display order.
func (c *Client) Catchup(ctx context.Context, direction models.DisplayOrder) ([]models.Event, error) {
	dir := "chronological"
	if direction == models.OrderReverseChronological {
		dir = "reversechronological"
	}
	env, err := c.do(ctx, http.MethodGet, c.sessionPath("/catchup?direction="+dir), nil)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("catchup rejected: %s", env.Reason)
	}
	var events []models.Event
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &events); err != nil {
			return nil, fmt.Errorf("invalid catchup batch: %w", err)
		}
	}
	return events, nil
}

func (c *Client) action(ctx context.Context, method, u string, body interface{}) (models.ActionResult, error) {
	env, err := c.do(ctx, method, u, body)
	if err != nil {
		return models.ActionResult{}, err
	}
	return models.ActionResult{Success: env.Success, Reason: env.Reason}, nil
}

// SendMessage posts a new message.
func (c *Client) SendMessage(ctx context.Context, data ingest.MessageData) (models.ActionResult, error) {
	return c.action(ctx, http.MethodPost, c.sessionPath("/messages"), data)
}

// EditMessage replaces an existing message's content.
func (c *Client) EditMessage(ctx context.Context, data ingest.MessageData) (models.ActionResult, error) {
	return c.action(ctx, http.MethodPut, c.sessionPath("/messages/"+url.PathEscape(data.MessageID)), data)
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) (models.ActionResult, error) {
	return c.action(ctx, http.MethodDelete, c.sessionPath("/messages/"+url.PathEscape(messageID)), nil)
}

// BlockMessage moderation-blocks a message.
func (c *Client) BlockMessage(ctx context.Context, messageID string) (models.ActionResult, error) {
	return c.action(ctx, http.MethodPost, c.sessionPath("/messages/"+url.PathEscape(messageID)+"/block"), nil)
}

// StartSession starts a pending session.
func (c *Client) StartSession(ctx context.Context) (models.ActionResult, error) {
	return c.action(ctx, http.MethodPost, c.sessionPath("/start"), nil)
}

// EndSession ends the session.
func (c *Client) EndSession(ctx context.Context) (models.ActionResult, error) {
	return c.action(ctx, http.MethodPost, c.sessionPath("/end"), nil)
}
