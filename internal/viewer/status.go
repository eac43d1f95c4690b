package viewer

import (
	"sync"

	"github.com/rs/zerolog"
)

// Status is the viewer's status line.
type Status struct {
	mu     sync.RWMutex
	text   string
	logger zerolog.Logger
}

// NewStatus returns a status line showing initial.
func NewStatus(initial string, logger zerolog.Logger) *Status {
	return &Status{
		text:   initial,
		logger: logger.With().Str("component", "status").Logger(),
	}
}

// SetStatus replaces the text.
func (s *Status) SetStatus(text string) {
	s.mu.Lock()
	changed := s.text != text
	s.text = text
	s.mu.Unlock()

	if changed {
		s.logger.Debug().Str("status", text).Msg("Status changed")
	}
}

// Text returns the current text.
func (s *Status) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}
