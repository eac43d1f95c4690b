package payload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileSource mirrors a payload file into a TextBox. The parent directory is
// watched so editors that replace the file by rename are picked up too.
type FileSource struct {
	path   string
	box    *TextBox
	logger zerolog.Logger
}

// NewFileSource creates a source for path.
func NewFileSource(path string, box *TextBox, logger zerolog.Logger) *FileSource {
	return &FileSource{
		path:   filepath.Clean(path),
		box:    box,
		logger: logger.With().Str("component", "payload-file").Logger(),
	}
}

// Run loads the current content and then reloads on every write or create
// until ctx is done.
func (s *FileSource) Run(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create payload dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	s.logger.Info().Str("path", s.path).Msg("Watching payload file")
	s.load()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				s.load()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (s *FileSource) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(err).Msg("Failed to read payload file")
		}
		return
	}
	s.box.Set(string(data))
}

// FileSink writes payloads to the file a FileSource watches.
type FileSink struct {
	path string
}

// NewFileSink creates a sink for path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Publish replaces the file content. The text is written to a temporary
// file first and renamed so readers never see a partial payload.
func (s *FileSink) Publish(_ context.Context, raw string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create payload dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".payload-*")
	if err != nil {
		return fmt.Errorf("create temp payload: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close payload: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace payload: %w", err)
	}
	return nil
}
