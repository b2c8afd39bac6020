package analytics

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/ashureev/pick27/internal/domain"
)

// Order selects the most (hot) or least (cold) frequent combinations.
type Order string

// Combination orders.
const (
	OrderHot  Order = "hot"
	OrderCold Order = "cold"
)

// DefaultComboLimit is used when a caller passes a non-positive limit.
const DefaultComboLimit = 5

// ParseOrder validates a hot/cold string.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case OrderHot, OrderCold:
		return Order(s), nil
	}
	return "", fmt.Errorf("unknown combination status %q", s)
}

// ComboSize maps "pair" and "triplet" to a combination size.
func ComboSize(kind string) (int, error) {
	switch kind {
	case "pair":
		return 2, nil
	case "triplet":
		return 3, nil
	}
	return 0, fmt.Errorf("unknown combination type %q", kind)
}

// Combination is a group of Numbers and how many draws contained all of them.
type Combination struct {
	Numbers   []domain.Number `json:"numbers"`
	Frequency int             `json:"frequency"`
}

type comboKey [3]domain.Number

// FrequentCombinations ranks every size-number combination of the playable
// range by how many draws contained it. Combinations that never occurred take
// part with frequency zero. Ties keep lexicographic order.
func FrequentCombinations(history []domain.Draw, size int, order Order, limit int) []Combination {
	if size != 2 && size != 3 {
		slog.Warn("frequent combinations need size 2 or 3", "size", size)
		return nil
	}
	if limit <= 0 {
		limit = DefaultComboLimit
	}

	all := enumerate(allNumbers(), size)
	index := make(map[comboKey]int, len(all))
	for i, c := range all {
		index[keyOf(c.Numbers)] = i
	}

	for _, draw := range history {
		nums := domain.SortedCopy(domain.UniqueValid(draw.WinningNumbers))
		for _, c := range enumerate(nums, size) {
			all[index[keyOf(c.Numbers)]].Frequency++
		}
	}

	slices.SortStableFunc(all, func(a, b Combination) int {
		if order == OrderCold {
			return a.Frequency - b.Frequency
		}
		return b.Frequency - a.Frequency
	})

	if limit > len(all) {
		limit = len(all)
	}
	return all[:limit]
}

// enumerate lists every k-subset of nums in lexicographic order of position.
func enumerate(nums []domain.Number, k int) []Combination {
	var out []Combination
	current := make([]domain.Number, 0, k)

	var walk func(start int)
	walk = func(start int) {
		if len(current) == k {
			out = append(out, Combination{Numbers: slices.Clone(current)})
			return
		}
		for i := start; i < len(nums); i++ {
			current = append(current, nums[i])
			walk(i + 1)
			current = current[:len(current)-1]
		}
	}
	walk(0)
	return out
}

func keyOf(nums []domain.Number) comboKey {
	var k comboKey
	copy(k[:], nums)
	return k
}

func allNumbers() []domain.Number {
	out := make([]domain.Number, 0, domain.MaxNumber)
	for n := domain.MinNumber; n <= domain.MaxNumber; n++ {
		out = append(out, domain.Number(n))
	}
	return out
}
