// Package chat talks to the Lumi chat backend: plain and streaming chat
// calls, health checks and audio downloads.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/lumiavatar/internal/config"
)

// ClientConfig configures the chat client
type ClientConfig struct {
	BaseURL   string        // e.g. "http://127.0.0.1:8000"
	Timeout   time.Duration // per request, streaming excluded
	SessionID string        // empty: a random UUID per client
	UserID    string
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "http://127.0.0.1:8000",
		Timeout: 30 * time.Second,
		UserID:  "desktop-user",
	}
}

// ConfigFromAPI converts the application API settings.
func ConfigFromAPI(api config.APIConfig) *ClientConfig {
	return &ClientConfig{
		BaseURL:   api.BaseURL,
		Timeout:   api.Timeout,
		SessionID: api.SessionID,
		UserID:    api.UserID,
	}
}

// Client calls the chat backend.
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	logger       zerolog.Logger
}

// NewClient creates a new chat client
func NewClient(cfg *ClientConfig, logger zerolog.Logger) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	c := *cfg
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}

	return &Client{
		config: &c,
		httpClient: &http.Client{
			Timeout: c.Timeout,
		},
		streamClient: &http.Client{},
		logger:       logger.With().Str("component", "chat-client").Logger(),
	}
}

// BaseURL returns the API base without a trailing slash.
func (c *Client) BaseURL() string { return c.config.BaseURL }

// SessionID returns the session the client speaks in.
func (c *Client) SessionID() string { return c.config.SessionID }

func (c *Client) request(message string) (Request, error) {
	req := Request{
		Message:   message,
		SessionID: c.config.SessionID,
		UserID:    c.config.UserID,
	}
	return req, req.Validate()
}

func (c *Client) post(ctx context.Context, client *http.Client, path string, body Request, accept string) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// Send posts one user message and returns the complete reply.
func (c *Client) Send(ctx context.Context, message string) (*Response, error) {
	body, err := c.request(message)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, c.httpClient, "/api/v1/chat/", body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus("backend chat", resp); err != nil {
		c.logger.Warn().Err(err).Msg("Chat request rejected")
		return nil, err
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}

	c.logger.Debug().
		Str("session", c.config.SessionID).
		Str("emotion", out.Emotion).
		Int("visemes", len(out.Visemes)).
		Msg("Chat response received")

	return &out, nil
}

// Health fetches the backend health document.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("health check", resp); err != nil {
		return nil, err
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode health status: %w", err)
	}
	return &status, nil
}

// ResolveAudioURL keeps absolute http(s) URLs and joins anything else onto
// the API base.
func (c *Client) ResolveAudioURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if u != "" && !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return c.config.BaseURL + u
}

// FetchAudio downloads the audio behind u after resolving it.
func (c *Client) FetchAudio(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ResolveAudioURL(u), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Op: "audio fetch", StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return data, nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
}
