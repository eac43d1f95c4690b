package panel

import (
	"context"
	"embed"
	"io/fs"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
)

//go:embed all:frontend/dist
var assets embed.FS

// Assets returns the embedded frontend rooted at its index.html.
func Assets() (fs.FS, error) {
	return fs.Sub(assets, "frontend/dist")
}

// Options configures the panel window.
type Options struct {
	Title  string
	Width  int
	Height int
}

// App is the Wails application around a PanelBridge.
type App struct {
	bridge *PanelBridge
	logger zerolog.Logger
	onStop func()
}

// NewApp creates the panel application. onStop, if set, runs at shutdown.
func NewApp(bridge *PanelBridge, logger zerolog.Logger, onStop func()) *App {
	return &App{
		bridge: bridge,
		logger: logger.With().Str("component", "panel-app").Logger(),
		onStop: onStop,
	}
}

func (a *App) startup(ctx context.Context) {
	a.bridge.Bind(ctx)
	a.logger.Info().Msg("Panel started")
}

func (a *App) shutdown(context.Context) {
	if a.onStop != nil {
		a.onStop()
	}
	a.logger.Info().Msg("Panel closed")
}

// Run opens the window and blocks until it is closed.
func (a *App) Run(opts Options) error {
	assetFS, err := Assets()
	if err != nil {
		return err
	}

	if opts.Width == 0 {
		opts.Width = 420
	}
	if opts.Height == 0 {
		opts.Height = 560
	}
	if opts.Title == "" {
		opts.Title = "Lumi Panel"
	}

	return wails.Run(&options.App{
		Title:     opts.Title,
		Width:     opts.Width,
		Height:    opts.Height,
		MinWidth:  320,
		MinHeight: 420,
		AssetServer: &assetserver.Options{
			Assets: assetFS,
		},
		BackgroundColour: &options.RGBA{R: 26, G: 26, B: 46, A: 255},
		OnStartup:        a.startup,
		OnShutdown:       a.shutdown,
		Bind: []interface{}{
			a.bridge,
		},
		Mac: &mac.Options{
			TitleBar: &mac.TitleBar{
				TitlebarAppearsTransparent: true,
				FullSizeContent:            true,
			},
			About: &mac.AboutInfo{
				Title:   "Lumi Panel",
				Message: "Payload control panel for the Lumi avatar viewer",
			},
		},
	})
}
