package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/lumiavatar/internal/chat"
	"github.com/normanking/lumiavatar/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Lumi Configuration:")
			fmt.Println("───────────────────")
			fmt.Printf("Backend:        %s\n", cfg.API.BaseURL)
			fmt.Printf("Model:          %s\n", cfg.Viewer.ModelPath)
			fmt.Printf("Window:         %dx%d\n", cfg.Viewer.Width, cfg.Viewer.Height)
			fmt.Printf("Payload Source: %s\n", cfg.Payload.Source)
			switch cfg.Payload.Source {
			case "websocket":
				fmt.Printf("WebSocket URL:  %s\n", cfg.Payload.WebSocketURL)
			case "nats":
				fmt.Printf("NATS Servers:   %v\n", cfg.Payload.NATS.Servers)
				fmt.Printf("NATS Subject:   %s\n", cfg.Payload.NATS.Subject)
			default:
				fmt.Printf("Payload File:   %s\n", cfg.Payload.FilePath)
			}
			fmt.Printf("Poll Interval:  %s\n", cfg.Payload.PollInterval)
			fmt.Printf("Audio:          %t (%s)\n", cfg.Audio.Enabled, cfg.Audio.Player)
			fmt.Printf("Log Level:      %s\n", cfg.Log.Level)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(configPath())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the current configuration to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check that the chat backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			client := chat.NewClient(chat.ConfigFromAPI(cfg.API), log.Zerolog())
			health, err := client.Health(ctx)
			if err != nil {
				return fmt.Errorf("backend %s unreachable: %w", cfg.API.BaseURL, err)
			}
			fmt.Printf("Backend %s: %s (%s %s)\n", client.BaseURL(), health.Status, health.Service, health.Version)
			return nil
		},
	})

	return cmd
}
