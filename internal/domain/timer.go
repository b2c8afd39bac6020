package domain

// TimerState is the phase reported by the draw clock.
type TimerState string

// Draw clock phases in cycle order.
const (
	TimerOpen     TimerState = "OPEN"
	TimerCutOff   TimerState = "CUT_OFF"
	TimerReveal   TimerState = "REVEAL"
	TimerComplete TimerState = "COMPLETE"
)

// TimerSnapshot is one observation of the draw clock.
type TimerSnapshot struct {
	State     TimerState `json:"state"`
	Cycle     int64      `json:"cycle"`
	Countdown int        `json:"countdown"`
}

// IsOpen reports whether picks are currently accepted.
func (t TimerSnapshot) IsOpen() bool {
	return t.State == TimerOpen
}
