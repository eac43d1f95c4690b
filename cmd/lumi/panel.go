package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/normanking/lumiavatar/internal/bus"
	"github.com/normanking/lumiavatar/internal/chat"
	"github.com/normanking/lumiavatar/internal/panel"
	"github.com/normanking/lumiavatar/internal/payload"
)

func panelCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "panel",
		Short: "Open the payload control panel",
		Long: `Open a small desktop window for sending payloads to a running viewer.
Payloads are written to the configured sink, which must match the viewer's
payload source (file or nats).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, closeSink, err := openSink(cmd.Context())
			if err != nil {
				return err
			}
			defer closeSink()

			logger := log.Zerolog()
			var chatter panel.Chatter
			if !offline {
				chatter = chat.NewClient(chat.ConfigFromAPI(cfg.API), logger)
			}

			eventBus := bus.New()
			defer eventBus.Clear()
			eventBus.Subscribe(bus.EventStatusChanged, func(e bus.Event) {
				log.Debug("panel", "Status changed", e.Data)
			})

			bridge := panel.NewPanelBridge(sink, chatter, eventBus, logger)
			bridge.AttachLogs(log)
			app := panel.NewApp(bridge, logger, nil)
			return app.Run(panel.Options{})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "disable the chat backend")
	return cmd
}

// openSink connects the payload sink matching the configured source.
func openSink(ctx context.Context) (payload.Sink, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sink, err := payload.NewSink(ctx, cfg.Payload, log.Zerolog())
	if err != nil {
		return nil, nil, err
	}
	closeSink := func() {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn("main", "Failed to close payload sink", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	return sink, closeSink, nil
}
