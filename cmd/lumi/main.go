// Package main is the entry point for the Lumi avatar viewer and its tools.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/normanking/lumiavatar/internal/config"
	"github.com/normanking/lumiavatar/internal/logging"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	cfg     *config.Config
	log     *logging.Logger
)

// GLFW and GL calls must stay on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "lumi",
		Short: "Lumi - VRM avatar viewer with lip sync",
		Long: `Lumi renders a VRM avatar and animates it from utterance payloads.

Open the viewer:         lumi view
Open the control panel:  lumi panel
Ask the backend:         lumi chat "hello"
Speak offline:           lumi say "hello" --emotion happy
Configuration:           lumi config show`,
		SilenceUsage:       true,
		PersistentPreRunE:  initApp,
		PersistentPostRunE: closeApp,
		RunE:               runView,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.lumiavatar/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Lumi v%s\n", version)
		},
	})

	rootCmd.AddCommand(viewCmd())
	rootCmd.AddCommand(panelCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(sayCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func initApp(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = loaded

	logCfg := logging.DefaultConfig()
	logCfg.LogDir = cfg.Log.Dir
	logCfg.Level = logging.LogLevel(cfg.Log.Level)
	logCfg.Console = cfg.Log.Console
	if verbose {
		logCfg.Level = logging.LevelDebug
		logCfg.Console = true
	}

	log, err = logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
		log = logging.NewWriter(os.Stderr, logCfg.Level)
	}

	log.Debug("main", "Lumi starting", map[string]interface{}{
		"version": version,
		"config":  configPath(),
		"logFile": log.GetLogPath(),
	})
	return nil
}

func closeApp(cmd *cobra.Command, args []string) error {
	if log != nil {
		return log.Close()
	}
	return nil
}

func configPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.DefaultPath()
}
