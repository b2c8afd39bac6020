// Package drawclock drives the draw cycle: OPEN, CUT_OFF, REVEAL, COMPLETE,
// then OPEN again with the next cycle index.
package drawclock

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ashureev/pick27/internal/analytics"
	"github.com/ashureev/pick27/internal/domain"
)

// Config holds the length of each phase.
type Config struct {
	Open     time.Duration
	CutOff   time.Duration
	Reveal   time.Duration
	Complete time.Duration
}

// DefaultConfig returns the standard phase lengths.
func DefaultConfig() Config {
	return Config{
		Open:     60 * time.Second,
		CutOff:   10 * time.Second,
		Reveal:   10 * time.Second,
		Complete: 5 * time.Second,
	}
}

func (c Config) seconds(state domain.TimerState) int {
	var d time.Duration
	switch state {
	case domain.TimerOpen:
		d = c.Open
	case domain.TimerCutOff:
		d = c.CutOff
	case domain.TimerReveal:
		d = c.Reveal
	default:
		d = c.Complete
	}
	s := int(d / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

func next(state domain.TimerState) domain.TimerState {
	switch state {
	case domain.TimerOpen:
		return domain.TimerCutOff
	case domain.TimerCutOff:
		return domain.TimerReveal
	case domain.TimerReveal:
		return domain.TimerComplete
	default:
		return domain.TimerOpen
	}
}

// RevealFunc receives the winning numbers when a cycle enters REVEAL.
type RevealFunc func(cycle int64, winning domain.PickSet)

// Listener receives every clock snapshot.
type Listener func(domain.TimerSnapshot)

// Clock is the shared draw-cycle timer. Safe for concurrent use.
type Clock struct {
	cfg Config
	rng *rand.Rand

	mu        sync.Mutex
	state     domain.TimerState
	cycle     int64
	remaining int
	listeners []Listener
	onReveal  RevealFunc
}

// New returns a clock in OPEN state for cycle.
func New(cfg Config, cycle int64, rng *rand.Rand) *Clock {
	return &Clock{
		cfg:       cfg,
		rng:       rng,
		state:     domain.TimerOpen,
		cycle:     cycle,
		remaining: cfg.seconds(domain.TimerOpen),
	}
}

// Snapshot returns the current observation.
func (c *Clock) Snapshot() domain.TimerSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Clock) snapshotLocked() domain.TimerSnapshot {
	return domain.TimerSnapshot{State: c.state, Cycle: c.cycle, Countdown: c.remaining}
}

// Subscribe registers fn for every tick.
func (c *Clock) Subscribe(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// OnReveal sets the hook that receives each cycle's winning numbers.
func (c *Clock) OnReveal(fn RevealFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReveal = fn
}

// Tick advances the clock by one second and notifies listeners.
func (c *Clock) Tick() {
	c.mu.Lock()
	c.remaining--
	var (
		revealed bool
		winning  domain.PickSet
	)
	if c.remaining <= 0 {
		c.state = next(c.state)
		if c.state == domain.TimerOpen {
			c.cycle++
		}
		if c.state == domain.TimerReveal {
			revealed = true
			winning = analytics.RandomPick(c.rng)
		}
		c.remaining = c.cfg.seconds(c.state)
		slog.Debug("draw clock phase change", "state", c.state, "cycle", c.cycle)
	}
	snap := c.snapshotLocked()
	listeners := append([]Listener(nil), c.listeners...)
	onReveal := c.onReveal
	c.mu.Unlock()

	if revealed && onReveal != nil {
		onReveal(snap.Cycle, winning)
	}
	for _, fn := range listeners {
		fn(snap)
	}
}

// Run ticks once per second until ctx is done.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	snap := c.Snapshot()
	slog.Info("draw clock started", "cycle", snap.Cycle, "state", snap.State)

	for {
		select {
		case <-ticker.C:
			c.Tick()
		case <-ctx.Done():
			slog.Info("draw clock shutting down", "reason", ctx.Err())
			return
		}
	}
}
