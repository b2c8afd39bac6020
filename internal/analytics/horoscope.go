package analytics

import (
	"strings"

	"github.com/ashureev/pick27/internal/domain"
)

var (
	fireSet  = domain.Numbers(3, 9, 12, 18, 21, 27)
	earthSet = domain.Numbers(2, 8, 11, 17, 20, 26)
	airSet   = domain.Numbers(5, 10, 14, 19, 23, 25)
	waterSet = domain.Numbers(4, 7, 13, 16, 22, 24)
	lionSet  = domain.Numbers(1, 6, 15, 20, 24, 27)
)

var signNumbers = map[string][]domain.Number{
	"aries":       fireSet,
	"taurus":      earthSet,
	"gemini":      airSet,
	"cancer":      waterSet,
	"leo":         lionSet,
	"virgo":       airSet,
	"libra":       earthSet,
	"scorpio":     fireSet,
	"sagittarius": lionSet,
	"capricorn":   waterSet,
	"aquarius":    airSet,
	"pisces":      earthSet,
}

// HoroscopeNumbers returns the lucky set for a zodiac sign, or an empty
// slice when the sign is unknown.
func HoroscopeNumbers(sign string) []domain.Number {
	nums, ok := signNumbers[strings.ToLower(strings.TrimSpace(sign))]
	if !ok {
		return []domain.Number{}
	}
	return domain.SortedCopy(domain.FilterValid(nums))
}
