// Package config provides configuration management for the Lumi viewer
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Viewer  ViewerConfig  `mapstructure:"viewer"`
	Payload PayloadConfig `mapstructure:"payload"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Log     LogConfig     `mapstructure:"log"`
}

// APIConfig configures the chat backend client
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	SessionID string        `mapstructure:"session_id"` // empty: random per process
	UserID    string        `mapstructure:"user_id"`
}

// ViewerConfig configures the render window and model
type ViewerConfig struct {
	ModelPath string `mapstructure:"model_path"`
	Title     string `mapstructure:"title"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	VSync     bool   `mapstructure:"vsync"`
	MSAA      int    `mapstructure:"msaa"`
	// Transparent requests an alpha framebuffer so the avatar floats over the desktop
	Transparent bool `mapstructure:"transparent"`
}

// PayloadConfig selects where utterance payloads come from
type PayloadConfig struct {
	Source       string        `mapstructure:"source"` // file, websocket, nats
	PollInterval time.Duration `mapstructure:"poll_interval"`
	FilePath     string        `mapstructure:"file_path"`
	WebSocketURL string        `mapstructure:"websocket_url"`
	NATS         NATSConfig    `mapstructure:"nats"`
}

// NATSConfig configures the NATS payload source and sink
type NATSConfig struct {
	Servers        []string      `mapstructure:"servers"`
	Subject        string        `mapstructure:"subject"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Token          string        `mapstructure:"token"`
}

// AudioConfig configures playback of utterance audio
type AudioConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Player  string   `mapstructure:"player"` // external command, e.g. ffplay
	Args    []string `mapstructure:"args"`
}

// LogConfig configures logging
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Dir     string `mapstructure:"dir"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	dir, _ := GetConfigDir()
	return &Config{
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8000",
			Timeout: 30 * time.Second,
			UserID:  "desktop-user",
		},
		Viewer: ViewerConfig{
			ModelPath: "model/lumi.vrm",
			Title:     "Lumi",
			Width:     480,
			Height:    640,
			VSync:     true,
			MSAA:      4,
		},
		Payload: PayloadConfig{
			Source:       "file",
			PollInterval: 250 * time.Millisecond,
			FilePath:     filepath.Join(dir, "payload.json"),
			NATS: NATSConfig{
				Servers:        []string{"nats://127.0.0.1:4222"},
				Subject:        "lumi.avatar.payload",
				ConnectTimeout: 2 * time.Second,
			},
		},
		Audio: AudioConfig{
			Enabled: true,
			Player:  "ffplay",
			Args:    []string{"-nodisp", "-autoexit", "-loglevel", "quiet"},
		},
		Log: LogConfig{
			Level:   "info",
			Dir:     filepath.Join(dir, "logs"),
			Console: true,
		},
	}
}

// Load reads configuration from path (or the default locations when empty)
// and applies LUMI_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LUMI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The chat client has always honoured LUMI_API_BASE
	_ = v.BindEnv("api.base_url", "LUMI_API_BASE")

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	return cfg, nil
}

// settings flattens cfg into viper keys.
func settings(cfg *Config) map[string]any {
	return map[string]any{
		"api.base_url":   cfg.API.BaseURL,
		"api.timeout":    cfg.API.Timeout,
		"api.session_id": cfg.API.SessionID,
		"api.user_id":    cfg.API.UserID,

		"viewer.model_path":  cfg.Viewer.ModelPath,
		"viewer.title":       cfg.Viewer.Title,
		"viewer.width":       cfg.Viewer.Width,
		"viewer.height":      cfg.Viewer.Height,
		"viewer.vsync":       cfg.Viewer.VSync,
		"viewer.msaa":        cfg.Viewer.MSAA,
		"viewer.transparent": cfg.Viewer.Transparent,

		"payload.source":               cfg.Payload.Source,
		"payload.poll_interval":        cfg.Payload.PollInterval,
		"payload.file_path":            cfg.Payload.FilePath,
		"payload.websocket_url":        cfg.Payload.WebSocketURL,
		"payload.nats.servers":         cfg.Payload.NATS.Servers,
		"payload.nats.subject":         cfg.Payload.NATS.Subject,
		"payload.nats.connect_timeout": cfg.Payload.NATS.ConnectTimeout,
		"payload.nats.token":           cfg.Payload.NATS.Token,

		"audio.enabled": cfg.Audio.Enabled,
		"audio.player":  cfg.Audio.Player,
		"audio.args":    cfg.Audio.Args,

		"log.level":   cfg.Log.Level,
		"log.dir":     cfg.Log.Dir,
		"log.console": cfg.Log.Console,
	}
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	for k, val := range settings(cfg) {
		v.SetDefault(k, val)
	}
}

// Save writes the configuration to path as YAML
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	v := viper.New()
	for k, val := range settings(cfg) {
		if d, ok := val.(time.Duration); ok {
			val = d.String()
		}
		v.Set(k, val)
	}

	return v.WriteConfigAs(path)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".lumiavatar"), nil
}

// DefaultPath returns the default configuration file path
func DefaultPath() string {
	dir, err := GetConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "config.yaml")
}
