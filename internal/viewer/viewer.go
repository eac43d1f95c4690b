// Package viewer assembles the model, lip-sync scheduler, payload bridge and
// render loop into one mounted viewer.
package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/lumiavatar/internal/avatar3d"
	"github.com/normanking/lumiavatar/internal/bridge"
	"github.com/normanking/lumiavatar/internal/bus"
	"github.com/normanking/lumiavatar/internal/payload"
	"github.com/normanking/lumiavatar/internal/renderloop"
	"github.com/normanking/lumiavatar/internal/vrm"
)

// ErrNotMounted is returned by Run on an unmounted viewer.
var ErrNotMounted = errors.New("viewer not mounted")

// ModelUploader receives the loaded model, typically the GL renderer.
type ModelUploader interface {
	SetModel(m *vrm.Model) error
}

// Options configures Mount. Payload is required; everything else is
// optional.
type Options struct {
	ModelPath string
	// LoadModel defaults to vrm.Load.
	LoadModel func(path string) (*vrm.Model, error)

	// Surface is the render target. Without one the viewer runs headless.
	Surface  renderloop.Surface
	Uploader ModelUploader

	Payload      bridge.Surface
	Source       payload.Source
	Audio        bridge.AudioPlayer
	PollInterval time.Duration

	Clock  avatar3d.Clock
	Bus    *bus.EventBus
	Logger zerolog.Logger
}

// Viewer is one mounted avatar view.
type Viewer struct {
	opts   Options
	logger zerolog.Logger

	status    *Status
	scheduler *avatar3d.LipSyncScheduler
	bridge    *bridge.PollBridge
	loop      *renderloop.Loop

	model  *vrm.Model
	avatar *avatar3d.Avatar

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// Host owns at most one viewer at a time.
type Host struct {
	mu     sync.Mutex
	viewer *Viewer
}

// Mount returns the mounted viewer, creating it on first use. Options are
// ignored while a live viewer is mounted. Background work stops when ctx is
// done or on Unmount; a viewer whose context has ended is replaced by the
// next Mount.
func (h *Host) Mount(ctx context.Context, opts Options) (*Viewer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.viewer != nil {
		if !h.viewer.Stopped() {
			return h.viewer, nil
		}
		h.viewer.stop()
		h.viewer = nil
	}
	if opts.Payload == nil {
		return nil, errors.New("viewer: payload surface is required")
	}

	v := newViewer(opts)
	v.start(ctx)
	h.viewer = v
	return v, nil
}

// Current returns the mounted viewer or nil.
func (h *Host) Current() *Viewer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewer
}

// Unmount stops the mounted viewer, if any. It is safe to call repeatedly.
func (h *Host) Unmount() {
	h.mu.Lock()
	v := h.viewer
	h.viewer = nil
	h.mu.Unlock()

	if v != nil {
		v.stop()
	}
}

func newViewer(opts Options) *Viewer {
	if opts.LoadModel == nil {
		opts.LoadModel = vrm.Load
	}
	logger := opts.Logger.With().Str("component", "viewer").Logger()

	v := &Viewer{
		opts:      opts,
		logger:    logger,
		status:    NewStatus(bridge.StatusLoading, opts.Logger),
		scheduler: avatar3d.NewLipSyncScheduler(opts.Clock, opts.Logger),
	}

	v.bridge = bridge.New(bridge.Config{
		Surface:   opts.Payload,
		Scheduler: v.scheduler,
		Status:    v.status,
		Audio:     opts.Audio,
		Bus:       opts.Bus,
		Interval:  opts.PollInterval,
		Logger:    opts.Logger,
	})
	if opts.Surface != nil {
		v.loop = renderloop.New(opts.Surface, opts.Logger)
	}

	v.loadModel()
	return v
}

// loadModel runs on the mounting thread so the uploader can use the GL
// context.
func (v *Viewer) loadModel() {
	path := v.opts.ModelPath
	v.setStatus(bridge.StatusLoading)

	model, err := v.opts.LoadModel(path)
	if err == nil && v.opts.Uploader != nil {
		err = v.opts.Uploader.SetModel(model)
	}
	if err != nil {
		v.logger.Error().Err(err).Str("path", path).Msg("Failed to load model")
		v.setStatus(bridge.ModelFailedStatus(path))
		v.opts.Bus.Publish(bus.Event{Type: bus.EventModelFailed, Data: map[string]any{
			"path":  path,
			"error": err.Error(),
		}})
		return
	}

	v.model = model
	v.avatar = avatar3d.NewAvatar(model.Expressions(), model)
	v.bridge.SetAvatar(v.avatar)
	if v.loop != nil {
		v.loop.SetAvatar(v.avatar)
	}

	if !v.avatar.HasExpressions() {
		v.logger.Warn().Str("path", path).Msg("Model has no expressions, lip sync disabled")
	}
	v.logger.Info().
		Str("path", path).
		Int("version", model.Version).
		Int("meshes", len(model.Meshes)).
		Msg("Model loaded")

	v.setStatus(bridge.StatusReady)
	v.opts.Bus.Publish(bus.Event{Type: bus.EventModelLoaded, Data: map[string]any{
		"path":    path,
		"version": model.Version,
	}})
}

func (v *Viewer) setStatus(text string) {
	v.status.SetStatus(text)
	v.opts.Bus.Publish(bus.Event{Type: bus.EventStatusChanged, Data: map[string]any{"status": text}})
}

func (v *Viewer) start(ctx context.Context) {
	v.ctx, v.cancel = context.WithCancel(ctx)
	ctx = v.ctx

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		if err := v.bridge.Run(ctx); err != nil {
			v.logger.Error().Err(err).Msg("Payload bridge failed")
		}
	}()

	if v.opts.Source != nil {
		v.wg.Add(1)
		go func() {
			defer v.wg.Done()
			if err := v.opts.Source.Run(ctx); err != nil && ctx.Err() == nil {
				v.logger.Error().Err(err).Msg("Payload source failed")
			}
		}()
	}
}

func (v *Viewer) stop() {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	v.mu.Unlock()

	v.cancel()
	v.wg.Wait()
	v.scheduler.Cancel()
	v.logger.Info().Msg("Viewer unmounted")
}

// Stopped reports whether the viewer was unmounted or its mount context has
// ended.
func (v *Viewer) Stopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped || v.ctx.Err() != nil
}

// Run drives the render loop on the calling thread until ctx is done, the
// window closes or the viewer is unmounted. Without a surface it just waits.
func (v *Viewer) Run(ctx context.Context) error {
	if v.Stopped() {
		return ErrNotMounted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(v.ctx, cancel)
	defer stop()

	if v.loop == nil {
		<-ctx.Done()
		return nil
	}
	return v.loop.Run(ctx)
}

// Status returns the current status line.
func (v *Viewer) Status() string {
	return v.status.Text()
}

// Model returns the loaded model, or nil after a load failure.
func (v *Viewer) Model() *vrm.Model {
	return v.model
}

// Avatar returns the expression adapter, or nil without a model.
func (v *Viewer) Avatar() *avatar3d.Avatar {
	return v.avatar
}

// Scheduler returns the viewer's lip-sync scheduler.
func (v *Viewer) Scheduler() *avatar3d.LipSyncScheduler {
	return v.scheduler
}

// Loop returns the render loop, or nil when headless.
func (v *Viewer) Loop() *renderloop.Loop {
	return v.loop
}
