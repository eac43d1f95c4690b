package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"

	"github.com/normanking/lumiavatar/internal/audio"
	"github.com/normanking/lumiavatar/internal/bus"
	"github.com/normanking/lumiavatar/internal/chat"
	"github.com/normanking/lumiavatar/internal/payload"
	"github.com/normanking/lumiavatar/internal/renderer"
	"github.com/normanking/lumiavatar/internal/viewer"
)

var (
	viewModel    string
	viewSource   string
	viewHeadless bool
)

func viewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open the avatar viewer window",
		Long: `Open the avatar viewer. The model is loaded from viewer.model_path and
payloads are read from the configured source (file, websocket or nats).`,
		RunE: runView,
	}

	cmd.Flags().StringVar(&viewModel, "model", "", "VRM model path (overrides viewer.model_path)")
	cmd.Flags().StringVar(&viewSource, "source", "", "payload source: file, websocket, nats or none")
	cmd.Flags().BoolVar(&viewHeadless, "headless", false, "run without a window (lip sync only)")

	return cmd
}

func runView(cmd *cobra.Command, args []string) error {
	if viewModel != "" {
		cfg.Viewer.ModelPath = viewModel
	}
	if viewSource != "" {
		cfg.Payload.Source = viewSource
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.Zerolog()
	eventBus := bus.New()
	defer eventBus.Clear()

	box := payload.NewTextBox()
	source, err := payload.NewSource(cfg.Payload, box, logger)
	if err != nil {
		return err
	}

	client := chat.NewClient(chat.ConfigFromAPI(cfg.API), logger)

	opts := viewer.Options{
		ModelPath:    cfg.Viewer.ModelPath,
		Payload:      box,
		Source:       source,
		PollInterval: cfg.Payload.PollInterval,
		Bus:          eventBus,
		Logger:       logger,
	}
	if cfg.Audio.Enabled {
		player := audio.NewPlayer(cfg.Audio, client, nil, logger)
		defer player.Stop()
		opts.Audio = player
	}

	if !viewHeadless {
		if err := glfw.Init(); err != nil {
			return fmt.Errorf("initialize GLFW: %w", err)
		}
		defer glfw.Terminate()

		rend, err := renderer.New(renderer.ConfigFromViewer(cfg.Viewer), logger)
		if err != nil {
			return fmt.Errorf("create renderer: %w", err)
		}
		defer rend.Shutdown()

		opts.Surface = rend
		opts.Uploader = rend
	}

	eventBus.Subscribe(bus.EventStatusChanged, func(e bus.Event) {
		log.Debug("view", "Status changed", e.Data)
	})

	var host viewer.Host
	v, err := host.Mount(ctx, opts)
	if err != nil {
		return err
	}
	defer host.Unmount()

	log.Info("view", "Viewer running", map[string]interface{}{
		"model":    cfg.Viewer.ModelPath,
		"source":   cfg.Payload.Source,
		"headless": viewHeadless,
		"status":   v.Status(),
	})

	return v.Run(ctx)
}
