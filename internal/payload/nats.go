package payload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/normanking/lumiavatar/internal/config"
)

// connectNATS opens a connection using the payload NATS settings.
func connectNATS(cfg config.NATSConfig, name string) (*nats.Conn, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{nats.Name(name)}
	if cfg.ConnectTimeout > 0 {
		options = append(options, nats.Timeout(cfg.ConnectTimeout))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return conn, nil
}

// NATSSource subscribes to a subject and copies every message into a TextBox.
type NATSSource struct {
	cfg    config.NATSConfig
	box    *TextBox
	logger zerolog.Logger
}

// NewNATSSource creates a source for cfg.Subject.
func NewNATSSource(cfg config.NATSConfig, box *TextBox, logger zerolog.Logger) *NATSSource {
	return &NATSSource{
		cfg:    cfg,
		box:    box,
		logger: logger.With().Str("component", "payload-nats").Logger(),
	}
}

// Run connects, subscribes and blocks until ctx is done.
func (s *NATSSource) Run(ctx context.Context) error {
	conn, err := connectNATS(s.cfg, "lumi-viewer")
	if err != nil {
		return err
	}
	defer conn.Close()

	sub, err := conn.Subscribe(s.cfg.Subject, func(msg *nats.Msg) {
		s.box.Set(string(msg.Data))
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.Subject, err)
	}
	defer sub.Unsubscribe()

	s.logger.Info().
		Str("servers", conn.ConnectedUrl()).
		Str("subject", s.cfg.Subject).
		Msg("Subscribed to payload subject")

	<-ctx.Done()
	return nil
}

// NATSSink publishes payloads to a subject.
type NATSSink struct {
	conn         *nats.Conn
	subject      string
	flushTimeout time.Duration
	logger       zerolog.Logger
}

// DialNATSSink connects a sink for cfg.Subject.
func DialNATSSink(_ context.Context, cfg config.NATSConfig, logger zerolog.Logger) (*NATSSink, error) {
	conn, err := connectNATS(cfg, "lumi-panel")
	if err != nil {
		return nil, err
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NATSSink{
		conn:         conn,
		subject:      cfg.Subject,
		flushTimeout: timeout,
		logger:       logger.With().Str("component", "payload-nats").Logger(),
	}, nil
}

// Publish sends raw and flushes so the message has left the process when
// Publish returns. A ctx deadline shortens the flush wait.
func (s *NATSSink) Publish(ctx context.Context, raw string) error {
	if err := s.conn.Publish(s.subject, []byte(raw)); err != nil {
		return fmt.Errorf("publish %s: %w", s.subject, err)
	}
	timeout := s.flushTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if err := s.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flush %s: %w", s.subject, err)
	}
	s.logger.Debug().Str("subject", s.subject).Int("bytes", len(raw)).Msg("Published payload")
	return nil
}

// Close drains the connection.
func (s *NATSSink) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
