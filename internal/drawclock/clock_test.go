package drawclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/pick27/internal/analytics"
	"github.com/ashureev/pick27/internal/domain"
)

func shortConfig() Config {
	return Config{Open: 2 * time.Second, CutOff: time.Second, Reveal: time.Second, Complete: time.Second}
}

func TestClockWalksPhases(t *testing.T) {
	c := New(shortConfig(), 7, analytics.NewRand(1))

	var seen []domain.TimerSnapshot
	c.Subscribe(func(s domain.TimerSnapshot) { seen = append(seen, s) })

	var (
		revealCycle int64
		winning     domain.PickSet
	)
	c.OnReveal(func(cycle int64, w domain.PickSet) {
		revealCycle = cycle
		winning = w
	})

	assert.Equal(t, domain.TimerSnapshot{State: domain.TimerOpen, Cycle: 7, Countdown: 2}, c.Snapshot())

	for range 6 {
		c.Tick()
	}

	require.Len(t, seen, 6)
	states := make([]domain.TimerState, len(seen))
	for i, s := range seen {
		states[i] = s.State
	}
	assert.Equal(t, []domain.TimerState{
		domain.TimerOpen,
		domain.TimerCutOff,
		domain.TimerReveal,
		domain.TimerComplete,
		domain.TimerOpen,
		domain.TimerOpen,
	}, states)
	assert.Equal(t, int64(7), seen[3].Cycle)
	assert.Equal(t, int64(8), seen[4].Cycle)
	assert.Equal(t, 1, seen[0].Countdown)

	assert.Equal(t, int64(7), revealCycle)
	require.Len(t, winning, domain.PickSize)
	for _, n := range winning {
		assert.True(t, n.Valid())
	}
}
