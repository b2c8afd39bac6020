package analytics

import (
	"math/rand/v2"
	"slices"

	"github.com/ashureev/pick27/internal/domain"
)

const (
	matchWeight = 2
	drawWeight  = 1

	nearMissMin = 4
	nearMissMax = domain.PickSize
)

// AnalyzeUserPerformance builds a pick set from the player's own results.
// Non-matching numbers from near misses come first, then numbers weighted by
// how often they matched the player's entries and appeared in any draw, then
// random filler. With no wallet or draw history the result is random.
func AnalyzeUserPerformance(rng *rand.Rand, wallet []domain.WalletEntry, draws []domain.Draw) domain.PickSet {
	if len(wallet) == 0 || len(draws) == 0 {
		return RandomPick(rng)
	}

	w := newWeights()
	var nearMiss []domain.Number

	for _, entry := range wallet {
		draw, ok := findDraw(draws, entry.Cycle)
		if !ok {
			continue
		}
		winning := domain.FilterValid(draw.WinningNumbers)
		for _, n := range domain.FilterValid(entry.Numbers) {
			if slices.Contains(winning, n) {
				w.add(n, matchWeight)
				continue
			}
			if entry.Matches >= nearMissMin && entry.Matches < nearMissMax {
				nearMiss = append(nearMiss, n)
			}
		}
	}

	for _, draw := range draws {
		for _, n := range domain.FilterValid(draw.WinningNumbers) {
			w.add(n, drawWeight)
		}
	}

	candidates := domain.UniqueValid(nearMiss)
	for _, n := range w.ranked() {
		if !slices.Contains(candidates, n) {
			candidates = append(candidates, n)
		}
	}

	if len(candidates) < domain.PickSize {
		var remaining []domain.Number
		for _, n := range allNumbers() {
			if !slices.Contains(candidates, n) {
				remaining = append(remaining, n)
			}
		}
		rng.Shuffle(len(remaining), func(i, j int) {
			remaining[i], remaining[j] = remaining[j], remaining[i]
		})
		for len(candidates) < domain.PickSize && len(remaining) > 0 {
			candidates = append(candidates, remaining[0])
			remaining = remaining[1:]
		}
	}

	if len(candidates) > domain.PickSize {
		candidates = candidates[:domain.PickSize]
	}
	slices.Sort(candidates)
	return domain.PickSet(candidates)
}

func findDraw(draws []domain.Draw, cycle int64) (domain.Draw, bool) {
	for _, d := range draws {
		if d.Cycle == cycle {
			return d, true
		}
	}
	return domain.Draw{}, false
}

// weights accumulates per-number scores and remembers first-seen order so
// equal scores rank by insertion.
type weights struct {
	score map[domain.Number]int
	order []domain.Number
}

func newWeights() *weights {
	return &weights{score: make(map[domain.Number]int)}
}

func (w *weights) add(n domain.Number, v int) {
	if _, ok := w.score[n]; !ok {
		w.order = append(w.order, n)
	}
	w.score[n] += v
}

func (w *weights) ranked() []domain.Number {
	out := slices.Clone(w.order)
	slices.SortStableFunc(out, func(a, b domain.Number) int {
		return w.score[b] - w.score[a]
	})
	return out
}
