// Package renderloop drives the per-frame resize, pose update and draw of the
// avatar scene.
package renderloop

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/normanking/lumiavatar/internal/avatar3d"
)

const (
	MinWidth  = 320
	MinHeight = 420

	// FixedStep is the pose advance per frame in seconds. Frames never skip
	// or stretch it.
	FixedStep float32 = 1.0 / 60.0
)

// Surface is the window the scene is drawn into. Render blocks until the
// display is ready for the next frame.
type Surface interface {
	ContainerSize() (width, height int)
	Resize(width, height int)
	Render()
	ShouldClose() bool
}

// Loop runs one step per refresh callback.
type Loop struct {
	surface Surface
	logger  zerolog.Logger

	mu     sync.Mutex
	avatar *avatar3d.Avatar

	frames atomic.Uint64
}

// New creates a loop drawing into surface.
func New(surface Surface, logger zerolog.Logger) *Loop {
	return &Loop{
		surface: surface,
		logger:  logger.With().Str("component", "renderloop").Logger(),
	}
}

// SetAvatar sets the avatar whose pose is advanced each frame. nil is allowed.
func (l *Loop) SetAvatar(a *avatar3d.Avatar) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.avatar = a
}

// ClampSize applies the minimum viewport size.
func ClampSize(width, height int) (int, int) {
	if width < MinWidth {
		width = MinWidth
	}
	if height < MinHeight {
		height = MinHeight
	}
	return width, height
}

// Step resizes the viewport to the container, advances the pose by
// FixedStep and renders one frame.
func (l *Loop) Step() {
	l.surface.Resize(ClampSize(l.surface.ContainerSize()))

	l.mu.Lock()
	a := l.avatar
	l.mu.Unlock()
	a.Update(FixedStep)

	l.surface.Render()
	l.frames.Add(1)
}

// Frames counts completed steps.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

// Run steps until ctx is done or the surface asks to close. It must be
// called from the thread that owns the surface.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().Msg("Render loop started")
	for {
		if ctx.Err() != nil {
			l.logger.Info().Uint64("frames", l.Frames()).Msg("Render loop cancelled")
			return nil
		}
		if l.surface.ShouldClose() {
			l.logger.Info().Uint64("frames", l.Frames()).Msg("Window closed")
			return nil
		}
		l.Step()
	}
}
