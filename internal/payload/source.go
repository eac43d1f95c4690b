package payload

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/normanking/lumiavatar/internal/config"
)

// Source feeds raw payload text into a TextBox until its context ends.
type Source interface {
	Run(ctx context.Context) error
}

// Sink delivers raw payload text to wherever a Source reads it from.
type Sink interface {
	Publish(ctx context.Context, raw string) error
}

// Source kinds accepted in configuration.
const (
	SourceFile      = "file"
	SourceWebSocket = "websocket"
	SourceNATS      = "nats"
	SourceNone      = "none"
)

// NewSource builds the configured source writing into box. SourceNone yields
// a nil Source; the box is then only written by in-process callers.
func NewSource(cfg config.PayloadConfig, box *TextBox, logger zerolog.Logger) (Source, error) {
	switch cfg.Source {
	case SourceFile, "":
		return NewFileSource(cfg.FilePath, box, logger), nil
	case SourceWebSocket:
		if cfg.WebSocketURL == "" {
			return nil, fmt.Errorf("payload source websocket: no url configured")
		}
		return NewWebSocketSource(cfg.WebSocketURL, box, logger), nil
	case SourceNATS:
		return NewNATSSource(cfg.NATS, box, logger), nil
	case SourceNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown payload source %q", cfg.Source)
	}
}

// NewSink builds the sink matching the configured source. The caller closes
// the returned sink when it implements io.Closer.
func NewSink(ctx context.Context, cfg config.PayloadConfig, logger zerolog.Logger) (Sink, error) {
	switch cfg.Source {
	case SourceFile, "":
		return NewFileSink(cfg.FilePath), nil
	case SourceNATS:
		sink, err := DialNATSSink(ctx, cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("payload source %q has no sink", cfg.Source)
	}
}
