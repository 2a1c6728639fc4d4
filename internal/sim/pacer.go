package sim

import "time"

// Pacer blocks between steps so a run can be watched in real time.
type Pacer interface {
	Pause(dt float64)
}

// SleepPacer sleeps for the simulated step length.
type SleepPacer struct {
	// Scale multiplies the sleep, 0 means 1.
	Scale float64
}

// Pause sleeps for dt seconds times the scale.
func (p SleepPacer) Pause(dt float64) {
	scale := p.Scale
	if scale <= 0 {
		scale = 1
	}
	time.Sleep(time.Duration(dt * scale * float64(time.Second)))
}

// PacerFunc adapts a function to Pacer.
type PacerFunc func(dt float64)

// Pause calls f(dt).
func (f PacerFunc) Pause(dt float64) {
	f(dt)
}
