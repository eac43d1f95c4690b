// Package audio plays utterance audio through an external player command.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/lumiavatar/internal/config"
)

// ErrNoPlayer is returned when playback is enabled but no command is set.
var ErrNoPlayer = errors.New("no audio player configured")

// Fetcher downloads audio bytes for a URL as sent by the backend.
type Fetcher interface {
	FetchAudio(ctx context.Context, url string) ([]byte, error)
}

// Runner executes the player on a file and blocks until it exits.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Player fetches and plays one clip at a time. Starting a new clip stops the
// previous one.
type Player struct {
	cfg    config.AudioConfig
	fetch  Fetcher
	run    Runner
	logger zerolog.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewPlayer creates a player. A nil runner uses os/exec.
func NewPlayer(cfg config.AudioConfig, fetch Fetcher, run Runner, logger zerolog.Logger) *Player {
	if run == nil {
		run = execRunner
	}
	return &Player{
		cfg:    cfg,
		fetch:  fetch,
		run:    run,
		logger: logger.With().Str("component", "audio").Logger(),
	}
}

// Enabled reports whether Play does anything.
func (p *Player) Enabled() bool {
	return p != nil && p.cfg.Enabled
}

// Play downloads url and plays it until it ends, ctx is done or another
// Play starts.
func (p *Player) Play(ctx context.Context, url string) error {
	if !p.Enabled() {
		return nil
	}
	if p.cfg.Player == "" {
		return ErrNoPlayer
	}

	ctx, seq := p.begin(ctx)
	defer p.end(seq)

	data, err := p.fetch.FetchAudio(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch audio: %w", err)
	}
	return p.playBytes(ctx, data)
}

// Stop ends the current clip, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Player) begin(ctx context.Context) (context.Context, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	p.seq++
	p.cancel = cancel
	return ctx, p.seq
}

func (p *Player) end(seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seq == seq && p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Player) playBytes(ctx context.Context, data []byte) error {
	f, err := os.CreateTemp("", "lumi-audio-*")
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close audio file: %w", err)
	}

	args := append(append([]string(nil), p.cfg.Args...), f.Name())
	p.logger.Debug().Str("player", p.cfg.Player).Int("bytes", len(data)).Msg("Playing audio")

	if err := p.run(ctx, p.cfg.Player, args...); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run %s: %w", p.cfg.Player, err)
	}
	return nil
}
