package avatar3d

import "time"

// Timer is a pending one-shot action.
type Timer interface {
	Stop() bool
}

// Clock creates one-shot timers.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock schedules on the Go runtime timers.
var SystemClock Clock = systemClock{}
