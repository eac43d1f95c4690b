package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/normanking/lumiavatar/internal/avatar3d"
	"github.com/normanking/lumiavatar/internal/payload"
)

// Request limits enforced by the backend.
const (
	MaxMessageLength   = 2000
	MaxSessionIDLength = 100
	MaxUserIDLength    = 100
)

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid chat request")

// Request is the body of a chat call.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
}

// Validate checks the length limits before the request leaves the process.
func (r Request) Validate() error {
	if n := utf8.RuneCountInString(r.Message); n < 1 || n > MaxMessageLength {
		return fmt.Errorf("%w: message must be 1..%d characters, got %d", ErrInvalidRequest, MaxMessageLength, n)
	}
	if n := utf8.RuneCountInString(r.SessionID); n < 1 || n > MaxSessionIDLength {
		return fmt.Errorf("%w: session id must be 1..%d characters, got %d", ErrInvalidRequest, MaxSessionIDLength, n)
	}
	if n := utf8.RuneCountInString(r.UserID); n > MaxUserIDLength {
		return fmt.Errorf("%w: user id must be at most %d characters, got %d", ErrInvalidRequest, MaxUserIDLength, n)
	}
	return nil
}

// Response is a complete assistant reply.
type Response struct {
	Message   string            `json:"message"`
	Text      string            `json:"text"`
	Emotion   string            `json:"emotion"`
	AudioURL  *string           `json:"audio_url"`
	Visemes   []avatar3d.Viseme `json:"visemes"`
	ToolUsed  *string           `json:"tool_used,omitempty"`
	Cached    bool              `json:"cached,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
}

// Reply returns the reply text, falling back to the legacy message field.
func (r *Response) Reply() string {
	if r.Text != "" {
		return r.Text
	}
	return r.Message
}

// Payload converts the reply into the avatar payload shape. The audio URL is
// left as the backend sent it.
func (r *Response) Payload() *payload.Payload {
	p := &payload.Payload{
		Text:    r.Reply(),
		Emotion: r.Emotion,
		Visemes: r.Visemes,
	}
	if r.AudioURL != nil {
		p.AudioURL = *r.AudioURL
	}
	return p
}

// StreamEventType names the kinds of streamed events.
type StreamEventType string

const (
	StreamThinking StreamEventType = "thinking"
	StreamTool     StreamEventType = "tool"
	StreamToken    StreamEventType = "token"
	StreamResponse StreamEventType = "response"
	StreamError    StreamEventType = "error"
	StreamDone     StreamEventType = "done"
)

// StreamEvent is one decoded server-sent event of a streaming chat.
type StreamEvent struct {
	Type       StreamEventType   `json:"type"`
	Node       string            `json:"node,omitempty"`
	Content    string            `json:"content,omitempty"`
	ToolName   string            `json:"tool_name,omitempty"`
	ToolResult json.RawMessage   `json:"tool_result,omitempty"`
	ToolUsed   string            `json:"tool_used,omitempty"`
	Text       string            `json:"text,omitempty"`
	Emotion    string            `json:"emotion,omitempty"`
	AudioURL   string            `json:"audio_url,omitempty"`
	Visemes    []avatar3d.Viseme `json:"visemes,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// HealthStatus is the backend health document.
type HealthStatus struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Environment string `json:"environment"`
	Timestamp   string `json:"timestamp"`
	Version     string `json:"version"`
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: %d %s", e.Op, e.StatusCode, e.Body)
}
