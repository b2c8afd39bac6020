// Package draws keeps the revealed draw results and derives hot/cold numbers
// and pattern summaries from them.
package draws

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ashureev/pick27/internal/domain"
)

// Repository persists draws. ListDraws returns newest first.
type Repository interface {
	InsertDraw(ctx context.Context, draw domain.Draw) error
	ListDraws(ctx context.Context, limit int) ([]domain.Draw, error)
}

// DefaultRetention is how many draws are loaded at startup.
const DefaultRetention = 500

// History is the shared, ordered draw log. Safe for concurrent use.
type History struct {
	repo Repository

	mu    sync.RWMutex
	draws []domain.Draw // newest first
}

// Load reads up to retention draws from repo.
func Load(ctx context.Context, repo Repository, retention int) (*History, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	list, err := repo.ListDraws(ctx, retention)
	if err != nil {
		return nil, fmt.Errorf("load draws: %w", err)
	}
	for i := range list {
		list[i].WinningNumbers = domain.UniqueValid(list[i].WinningNumbers)
	}
	return &History{repo: repo, draws: list}, nil
}

// Add persists draw and prepends it to the log.
func (h *History) Add(ctx context.Context, draw domain.Draw) error {
	draw.WinningNumbers = domain.UniqueValid(draw.WinningNumbers)
	if err := h.repo.InsertDraw(ctx, draw); err != nil {
		return fmt.Errorf("insert draw %d: %w", draw.Cycle, err)
	}

	h.mu.Lock()
	h.draws = append([]domain.Draw{draw}, h.draws...)
	h.mu.Unlock()
	return nil
}

// All returns every loaded draw, newest first.
func (h *History) All() []domain.Draw {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneDraws(h.draws)
}

// Recent returns at most n draws, newest first.
func (h *History) Recent(n int) []domain.Draw {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n > len(h.draws) {
		n = len(h.draws)
	}
	return cloneDraws(h.draws[:n])
}

// LastCycle returns the newest cycle index, or 0 without draws.
func (h *History) LastCycle() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.draws) == 0 {
		return 0
	}
	return h.draws[0].Cycle
}

// HotNumbers returns up to n Numbers that appeared in draws, most frequent
// first.
func (h *History) HotNumbers(n int) []domain.Number {
	counts, ok := h.frequencies()
	if !ok {
		return []domain.Number{}
	}
	nums := rankBy(counts, func(a, b int) int { return b - a })
	out := make([]domain.Number, 0, n)
	for _, num := range nums {
		if len(out) == n || counts[num] == 0 {
			break
		}
		out = append(out, num)
	}
	return out
}

// ColdNumbers returns the n least frequent Numbers, never-drawn ones first.
func (h *History) ColdNumbers(n int) []domain.Number {
	counts, ok := h.frequencies()
	if !ok {
		return []domain.Number{}
	}
	nums := rankBy(counts, func(a, b int) int { return a - b })
	if n > len(nums) {
		n = len(nums)
	}
	return nums[:n]
}

// RecentPatterns summarizes the latest draw: odd/even and low/high split,
// the sum, and numbers repeated from the draw before it.
func (h *History) RecentPatterns() string {
	recent := h.Recent(2)
	if len(recent) == 0 {
		return ""
	}

	last := domain.SortedCopy(recent[0].WinningNumbers)
	var odd, low, sum int
	for _, n := range last {
		if n%2 == 1 {
			odd++
		}
		if n <= 13 {
			low++
		}
		sum += int(n)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last draw (cycle %d): %d odd / %d even, %d low / %d high, sum %d",
		recent[0].Cycle, odd, len(last)-odd, low, len(last)-low, sum)

	if len(recent) > 1 {
		var repeats []string
		for _, n := range last {
			if slices.Contains(recent[1].WinningNumbers, n) {
				repeats = append(repeats, fmt.Sprint(int(n)))
			}
		}
		if len(repeats) > 0 {
			fmt.Fprintf(&b, "\nRepeated from previous draw: %s", strings.Join(repeats, ", "))
		} else {
			b.WriteString("\nNo repeats from previous draw")
		}
	}
	return b.String()
}

func (h *History) frequencies() (map[domain.Number]int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[domain.Number]int, domain.MaxNumber)
	for n := domain.MinNumber; n <= domain.MaxNumber; n++ {
		counts[domain.Number(n)] = 0
	}
	for _, d := range h.draws {
		for _, n := range d.WinningNumbers {
			counts[n]++
		}
	}
	return counts, len(h.draws) > 0
}

// rankBy orders the playable range by count using cmp, ties by Number.
func rankBy(counts map[domain.Number]int, cmp func(a, b int) int) []domain.Number {
	nums := make([]domain.Number, 0, len(counts))
	for n := domain.MinNumber; n <= domain.MaxNumber; n++ {
		nums = append(nums, domain.Number(n))
	}
	slices.SortStableFunc(nums, func(a, b domain.Number) int {
		return cmp(counts[a], counts[b])
	})
	return nums
}

func cloneDraws(in []domain.Draw) []domain.Draw {
	out := make([]domain.Draw, len(in))
	for i, d := range in {
		d.WinningNumbers = slices.Clone(d.WinningNumbers)
		out[i] = d
	}
	return out
}
