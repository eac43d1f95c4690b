// Package bridge connects the payload surface to the avatar: it notices new
// payloads, applies their emotion, schedules their visemes, starts their
// audio and reports what the avatar is doing.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/lumiavatar/internal/avatar3d"
	"github.com/normanking/lumiavatar/internal/bus"
	"github.com/normanking/lumiavatar/internal/payload"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 250 * time.Millisecond

// Surface exposes the raw payload text.
type Surface interface {
	Text() string
}

// Notifier is implemented by surfaces that can signal a change.
type Notifier interface {
	Changed() <-chan struct{}
}

// StatusSink displays the status line.
type StatusSink interface {
	SetStatus(status string)
}

// AudioPlayer plays the audio behind a payload URL.
type AudioPlayer interface {
	Play(ctx context.Context, url string) error
}

// Config wires a PollBridge. Only Surface and Scheduler are required.
type Config struct {
	Surface   Surface
	Scheduler *avatar3d.LipSyncScheduler
	Status    StatusSink
	Audio     AudioPlayer
	Bus       *bus.EventBus
	Interval  time.Duration
	Logger    zerolog.Logger
}

// PollBridge processes each distinct payload once.
type PollBridge struct {
	surface   Surface
	scheduler *avatar3d.LipSyncScheduler
	status    StatusSink
	audio     AudioPlayer
	bus       *bus.EventBus
	interval  time.Duration
	logger    zerolog.Logger

	mu       sync.Mutex
	avatar   *avatar3d.Avatar
	last     string
	audioCtx context.Context
}

// New creates a bridge. The avatar starts out absent; see SetAvatar.
func New(cfg Config) *PollBridge {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &PollBridge{
		surface:   cfg.Surface,
		scheduler: cfg.Scheduler,
		status:    cfg.Status,
		audio:     cfg.Audio,
		bus:       cfg.Bus,
		interval:  interval,
		logger:    cfg.Logger.With().Str("component", "bridge").Logger(),
		audioCtx:  context.Background(),
	}
}

// SetAvatar replaces the avatar that payloads drive. nil is allowed.
func (b *PollBridge) SetAvatar(a *avatar3d.Avatar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.avatar = a
}

// Run polls every interval, and immediately on change signals, until ctx is
// done. Pending visemes are cancelled on return.
func (b *PollBridge) Run(ctx context.Context) error {
	b.mu.Lock()
	b.audioCtx = ctx
	b.mu.Unlock()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var changed <-chan struct{}
	if n, ok := b.surface.(Notifier); ok {
		changed = n.Changed()
	}

	b.logger.Info().Dur("interval", b.interval).Bool("notify", changed != nil).Msg("Payload bridge started")
	defer b.scheduler.Cancel()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Payload bridge stopped")
			return nil
		case <-ticker.C:
			b.Poll()
		case <-changed:
			b.Poll()
		}
	}
}

// Poll reads the surface once. It reports whether the text was new, whether
// or not it parsed.
func (b *PollBridge) Poll() bool {
	raw := b.surface.Text()

	b.mu.Lock()
	if raw == "" || raw == b.last {
		b.mu.Unlock()
		return false
	}
	b.last = raw
	a := b.avatar
	audioCtx := b.audioCtx
	b.mu.Unlock()

	p, err := payload.Parse(raw)
	if err != nil {
		b.logger.Debug().Err(err).Msg("Ignoring unparseable payload")
		b.setStatus(StatusReady)
		return true
	}

	b.publish(bus.EventPayloadReceived, map[string]any{
		"text":      p.Text,
		"emotion":   p.Emotion,
		"audio_url": p.AudioURL,
		"visemes":   len(p.Visemes),
	})

	emotion := p.EmotionOrDefault()
	avatar3d.ApplyEmotion(a, emotion)
	b.publish(bus.EventEmotionChanged, map[string]any{"emotion": string(emotion)})

	if u := b.scheduler.Schedule(a, p.Visemes); u != nil {
		b.publish(bus.EventVisemesScheduled, map[string]any{
			"utterance": u.ID,
			"visemes":   len(p.Visemes),
		})
	}

	if p.AudioURL != "" && b.audio != nil {
		go b.play(audioCtx, p.AudioURL)
	}

	b.setStatus(SpeakingStatus(p.Text))
	return true
}

func (b *PollBridge) play(ctx context.Context, url string) {
	if err := b.audio.Play(ctx, url); err != nil {
		b.logger.Debug().Err(err).Str("url", url).Msg("Audio playback failed")
	}
}

func (b *PollBridge) setStatus(status string) {
	if b.status != nil {
		b.status.SetStatus(status)
	}
	b.publish(bus.EventStatusChanged, map[string]any{"status": status})
}

func (b *PollBridge) publish(t bus.EventType, data map[string]any) {
	b.bus.Publish(bus.Event{Type: t, Data: data})
}
