package domain

import (
	"slices"
)

// Game constants.
const (
	MinNumber       = 1
	MaxNumber       = 27
	PickSize        = 6
	MaxSetsPerCycle = 3
)

// Number is a lottery ball in [MinNumber, MaxNumber].
type Number int

// Valid reports whether n is inside the playable range.
func (n Number) Valid() bool {
	return n >= MinNumber && n <= MaxNumber
}

// PickSet is six unique Numbers sorted ascending.
type PickSet []Number

// Contains reports whether n is a member of the set.
func (p PickSet) Contains(n Number) bool {
	return slices.Contains(p, n)
}

// Clone returns a copy of the set.
func (p PickSet) Clone() PickSet {
	return slices.Clone(p)
}

// FilterValid drops every value outside the playable range, keeping order.
func FilterValid(nums []Number) []Number {
	out := make([]Number, 0, len(nums))
	for _, n := range nums {
		if n.Valid() {
			out = append(out, n)
		}
	}
	return out
}

// UniqueValid filters nums to the playable range and removes duplicates,
// keeping first-seen order.
func UniqueValid(nums []Number) []Number {
	seen := make(map[Number]bool, len(nums))
	out := make([]Number, 0, len(nums))
	for _, n := range nums {
		if !n.Valid() || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// SortedCopy returns nums sorted ascending without touching the input.
func SortedCopy(nums []Number) []Number {
	out := slices.Clone(nums)
	slices.Sort(out)
	return out
}

// NormalizePickSet filters, de-duplicates and sorts nums. The boolean is
// false when the result does not hold exactly PickSize Numbers.
func NormalizePickSet(nums []Number) (PickSet, bool) {
	out := UniqueValid(nums)
	slices.Sort(out)
	return PickSet(out), len(out) == PickSize
}

// Numbers converts raw integers into Numbers without validation.
func Numbers(values ...int) []Number {
	out := make([]Number, len(values))
	for i, v := range values {
		out[i] = Number(v)
	}
	return out
}
