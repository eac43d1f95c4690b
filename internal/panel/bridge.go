// Package panel is the desktop control panel: a Wails window where payloads
// can be pasted, generated from text or fetched from the chat backend, and
// written to the sink the viewer watches.
package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/normanking/lumiavatar/internal/avatar3d"
	"github.com/normanking/lumiavatar/internal/bus"
	"github.com/normanking/lumiavatar/internal/chat"
	"github.com/normanking/lumiavatar/internal/logging"
	"github.com/normanking/lumiavatar/internal/payload"
)

// Frontend events.
const (
	EventStatus = "panel:status"
	EventLog    = "panel:log"
)

// Panel status lines.
const (
	StatusIdle    = "Idle"
	StatusSending = "Sending..."
	StatusSent    = "Payload sent"
)

// Chatter sends a message to the chat backend.
type Chatter interface {
	Send(ctx context.Context, message string) (*chat.Response, error)
}

// Emitter delivers events to the frontend.
type Emitter func(ctx context.Context, name string, data ...interface{})

// PanelBridge exposes panel methods to the frontend.
type PanelBridge struct {
	sink   payload.Sink
	chat   Chatter
	bus    *bus.EventBus
	emit   Emitter
	logger zerolog.Logger
	logs   *logging.Logger

	mu     sync.RWMutex
	ctx    context.Context
	bound  bool
	status string
	last   string
}

// NewPanelBridge creates the bridge. chat may be nil when no backend is
// configured.
func NewPanelBridge(sink payload.Sink, chatter Chatter, eventBus *bus.EventBus, logger zerolog.Logger) *PanelBridge {
	return &PanelBridge{
		sink:   sink,
		chat:   chatter,
		bus:    eventBus,
		emit:   runtime.EventsEmit,
		logger: logger.With().Str("component", "panel").Logger(),
		ctx:    context.Background(),
		status: StatusIdle,
	}
}

// Bind sets the Wails runtime context. Nothing is emitted to the frontend
// before it is called.
func (b *PanelBridge) Bind(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.bound = true
	b.mu.Unlock()
}

// AttachLogs exposes the process log to the frontend: Logs returns its tail
// and every new entry is emitted as EventLog.
func (b *PanelBridge) AttachLogs(l *logging.Logger) {
	b.mu.Lock()
	b.logs = l
	b.mu.Unlock()

	// Entries logged before Bind have no window to go to; Logs still
	// returns them.
	l.SetOnLog(func(e logging.LogEntry) {
		b.mu.RLock()
		ctx, bound := b.ctx, b.bound
		b.mu.RUnlock()
		if bound {
			b.emit(ctx, EventLog, e)
		}
	})
}

// Logs returns up to limit recent log entries.
func (b *PanelBridge) Logs(limit int) []logging.LogEntry {
	b.mu.RLock()
	l := b.logs
	b.mu.RUnlock()
	if l == nil {
		return nil
	}
	return l.GetHistory(limit)
}

func (b *PanelBridge) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// Status returns the current panel status.
func (b *PanelBridge) Status() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// LastPayload returns the most recently published payload text.
func (b *PanelBridge) LastPayload() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last
}

func (b *PanelBridge) setStatus(status string) {
	b.mu.Lock()
	b.status = status
	ctx, bound := b.ctx, b.bound
	b.mu.Unlock()

	if bound {
		b.emit(ctx, EventStatus, map[string]any{"status": status})
	}
	b.bus.Publish(bus.Event{Type: bus.EventStatusChanged, Data: map[string]any{"status": status}})
}

// SetPayload publishes raw payload JSON as typed. Text that does not parse is
// rejected so the viewer never sees it.
func (b *PanelBridge) SetPayload(raw string) error {
	raw = strings.TrimSpace(raw)
	if _, err := payload.Parse(raw); err != nil {
		b.setStatus("Invalid payload: " + err.Error())
		return fmt.Errorf("invalid payload: %w", err)
	}
	return b.publish(raw)
}

// Say publishes text with a viseme timeline generated from its vowels.
func (b *PanelBridge) Say(text, emotion string) error {
	p := &payload.Payload{
		Text:    text,
		Emotion: emotion,
		Visemes: avatar3d.VisemesFromText(text),
	}
	raw, err := p.Encode()
	if err != nil {
		return err
	}
	return b.publish(raw)
}

// Send asks the chat backend and publishes its reply. It returns the reply
// text.
func (b *PanelBridge) Send(message string) (string, error) {
	if b.chat == nil {
		return "", errors.New("no chat backend configured")
	}
	if strings.TrimSpace(message) == "" {
		return "", errors.New("message is empty")
	}

	b.setStatus(StatusSending)
	resp, err := b.chat.Send(b.context(), message)
	if err != nil {
		b.logger.Error().Err(err).Msg("Chat request failed")
		b.setStatus("Chat failed: " + err.Error())
		return "", err
	}

	raw, err := resp.Payload().Encode()
	if err != nil {
		return "", err
	}
	if err := b.publish(raw); err != nil {
		return "", err
	}
	return resp.Reply(), nil
}

func (b *PanelBridge) publish(raw string) error {
	if err := b.sink.Publish(b.context(), raw); err != nil {
		b.logger.Error().Err(err).Msg("Failed to publish payload")
		b.setStatus("Publish failed: " + err.Error())
		return fmt.Errorf("publish payload: %w", err)
	}

	b.mu.Lock()
	b.last = raw
	b.mu.Unlock()

	b.logger.Debug().Int("bytes", len(raw)).Msg("Payload published")
	b.setStatus(StatusSent)
	return nil
}
