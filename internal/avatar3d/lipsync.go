package avatar3d

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MinVisemeDuration is the shortest interval a viseme is held open.
	MinVisemeDuration = 40 * time.Millisecond

	// VisemeWeight is the lip weight applied while a viseme is active.
	VisemeWeight float32 = 0.9
)

// Viseme is a timed phoneme relative to the start of an utterance.
// Start and End are in seconds.
type Viseme struct {
	Phoneme string  `json:"phoneme"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

var phonemeToExpression = map[string]ExpressionName{
	"a": ExpressionAa,
	"i": ExpressionIh,
	"u": ExpressionOu,
	"e": ExpressionEe,
	"o": ExpressionOh,
}

// ExpressionForPhoneme maps a vowel phoneme to its lip preset. Anything
// unrecognised maps to oh.
func ExpressionForPhoneme(phoneme string) ExpressionName {
	if name, ok := phonemeToExpression[phoneme]; ok {
		return name
	}
	return ExpressionOh
}

// Window returns the on and off offsets of v from the utterance start. Start
// is never negative and the off offset is at least MinVisemeDuration after it.
func (v Viseme) Window() (on, off time.Duration) {
	on = secondsToDuration(v.Start)
	off = secondsToDuration(v.End)
	if off < on+MinVisemeDuration {
		off = on + MinVisemeDuration
	}
	return on, off
}

// maxVisemeOffset leaves room for MinVisemeDuration so off never overflows.
const maxVisemeOffset = time.Duration(math.MaxInt64) - MinVisemeDuration

// secondsToDuration converts s, clamping to [0, maxVisemeOffset]. Offsets
// past the limit stay far in the future instead of wrapping around.
func secondsToDuration(s float64) time.Duration {
	if math.IsNaN(s) {
		return 0
	}
	ns := math.Round(s * float64(time.Second))
	switch {
	case ns <= 0:
		return 0
	case ns >= float64(maxVisemeOffset):
		return maxVisemeOffset
	}
	return time.Duration(ns)
}

// Utterance is the set of pending weight changes created by one Schedule call.
type Utterance struct {
	ID     uint64
	timers []Timer

	// guarded by the scheduler mutex
	cancelled bool
}

// Len returns how many actions were scheduled.
func (u *Utterance) Len() int {
	if u == nil {
		return 0
	}
	return len(u.timers)
}

// LipSyncScheduler turns viseme events into timed lip weight changes.
// Each Schedule call replaces the previous utterance: its pending actions
// are stopped and the lips are cleared before the new actions are created.
type LipSyncScheduler struct {
	mu      sync.Mutex
	clock   Clock
	current *Utterance
	seq     uint64
	logger  zerolog.Logger
}

// NewLipSyncScheduler creates a scheduler. A nil clock uses SystemClock.
func NewLipSyncScheduler(clock Clock, logger zerolog.Logger) *LipSyncScheduler {
	if clock == nil {
		clock = SystemClock
	}
	return &LipSyncScheduler{
		clock:  clock,
		logger: logger.With().Str("component", "lipsync").Logger(),
	}
}

// Schedule cancels the in-flight utterance, zeroes the lip presets and
// schedules an on/off pair for every viseme. It returns nil without touching
// the model when the avatar has no expressions or visemes is empty.
func (s *LipSyncScheduler) Schedule(a *Avatar, visemes []Viseme) *Utterance {
	if !a.HasExpressions() || len(visemes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	a.ClearLips()

	s.seq++
	u := &Utterance{
		ID:     s.seq,
		timers: make([]Timer, 0, len(visemes)*2),
	}
	s.current = u

	for _, v := range visemes {
		name := ExpressionForPhoneme(v.Phoneme)
		on, off := v.Window()
		u.timers = append(u.timers,
			s.clock.AfterFunc(on, s.action(u, a, name, VisemeWeight)),
			s.clock.AfterFunc(off, s.action(u, a, name, 0)),
		)
	}

	s.logger.Debug().
		Uint64("utterance", u.ID).
		Int("visemes", len(visemes)).
		Msg("Scheduled visemes")

	return u
}

// action applies a weight unless its utterance has been cancelled meanwhile.
func (s *LipSyncScheduler) action(u *Utterance, a *Avatar, name ExpressionName, weight float32) func() {
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if u.cancelled {
			return
		}
		a.SetExpression(name, weight)
	}
}

// Cancel stops every pending action of the current utterance.
func (s *LipSyncScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *LipSyncScheduler) cancelLocked() {
	u := s.current
	if u == nil || u.cancelled {
		return
	}
	u.cancelled = true

	stopped := 0
	for _, t := range u.timers {
		if t.Stop() {
			stopped++
		}
	}
	s.current = nil

	if stopped > 0 {
		s.logger.Debug().
			Uint64("utterance", u.ID).
			Int("stopped", stopped).
			Msg("Cancelled pending visemes")
	}
}

// Current returns the most recent utterance that has not been cancelled.
func (s *LipSyncScheduler) Current() *Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
