package analytics

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/ashureev/pick27/internal/domain"
)

// Strategy names a wheeling system.
type Strategy string

// Supported wheels.
const (
	// Wheel7x3 covers every 3-subset of a 7-number pool with 7 tickets.
	Wheel7x3 Strategy = "basic_7_3"
	// Wheel8x4 splits an 8-number pool into four pairs and plays every
	// combination of three pairs, 4 tickets.
	Wheel8x4 Strategy = "basic_8_4"
)

// ParseStrategy validates a wheeling strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Wheel7x3, Wheel8x4:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown wheeling strategy %q", s)
}

// PoolSize returns how many Numbers the strategy needs, or 0 if unknown.
func (s Strategy) PoolSize() int {
	switch s {
	case Wheel7x3:
		return 7
	case Wheel8x4:
		return 8
	}
	return 0
}

// WheelingSets expands pool into six-number tickets using strategy. A pool of
// the wrong size after filtering yields no tickets.
func WheelingSets(strategy Strategy, pool []domain.Number) []domain.PickSet {
	want := strategy.PoolSize()
	if want == 0 {
		slog.Warn("unknown wheeling strategy", "strategy", strategy)
		return nil
	}

	valid := domain.UniqueValid(pool)
	if len(valid) != want {
		slog.Warn("wheeling pool has wrong size",
			"strategy", strategy,
			"want", want,
			"got", len(valid),
		)
		return nil
	}
	slices.Sort(valid)
	n := valid

	switch strategy {
	case Wheel7x3:
		// Each ticket leaves out one pool member, last member first.
		out := make([]domain.PickSet, 0, 7)
		for skip := 6; skip >= 0; skip-- {
			ticket := make(domain.PickSet, 0, domain.PickSize)
			for i, v := range n {
				if i != skip {
					ticket = append(ticket, v)
				}
			}
			out = append(out, ticket)
		}
		return out
	default:
		return []domain.PickSet{
			{n[0], n[1], n[2], n[3], n[4], n[5]},
			{n[0], n[1], n[2], n[3], n[6], n[7]},
			{n[0], n[1], n[4], n[5], n[6], n[7]},
			{n[2], n[3], n[4], n[5], n[6], n[7]},
		}
	}
}
