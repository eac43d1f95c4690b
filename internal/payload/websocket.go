package payload

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocketSource streams payloads from a websocket endpoint. Every text
// message replaces the box content.
type WebSocketSource struct {
	url    string
	box    *TextBox
	logger zerolog.Logger
	dialer *websocket.Dialer

	// MinBackoff and MaxBackoff bound the reconnect delay.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// NewWebSocketSource creates a source for a ws:// or wss:// URL.
func NewWebSocketSource(url string, box *TextBox, logger zerolog.Logger) *WebSocketSource {
	return &WebSocketSource{
		url:        url,
		box:        box,
		logger:     logger.With().Str("component", "payload-ws").Logger(),
		dialer:     websocket.DefaultDialer,
		MinBackoff: time.Second,
		MaxBackoff: 30 * time.Second,
	}
}

// Run keeps a connection open until ctx is done, reconnecting with
// exponential backoff after failures.
func (s *WebSocketSource) Run(ctx context.Context) error {
	backoff := s.MinBackoff
	failures := 0

	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = s.MinBackoff
			failures = 0
		}

		failures++
		if failures == 3 {
			s.logger.Warn().Err(err).Int("failures", failures).Msg("Payload websocket unavailable, retrying less often")
		} else if failures < 3 {
			s.logger.Warn().Err(err).Msg("Payload websocket disconnected, reconnecting")
		} else {
			s.logger.Debug().Err(err).Int("failures", failures).Msg("Payload websocket still unavailable")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.MaxBackoff {
			backoff = s.MaxBackoff
		}
	}
}

// session dials once and reads until the connection fails. connected
// reports whether the dial succeeded.
func (s *WebSocketSource) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	s.logger.Info().Str("url", s.url).Msg("Connected to payload websocket")

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		s.box.Set(string(data))
	}
}
