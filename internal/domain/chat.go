package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies who produced a chat message.
type Role string

// Chat roles.
const (
	RoleUser           Role = "user"
	RoleAssistant      Role = "assistant"
	RoleRecommendation Role = "recommendation"
)

// RecommendationKind labels the strategy behind a recommendation.
type RecommendationKind string

// Recommendation kinds.
const (
	KindHot         RecommendationKind = "hot"
	KindCold        RecommendationKind = "cold"
	KindBalanced    RecommendationKind = "balanced"
	KindPattern     RecommendationKind = "pattern"
	KindHistory     RecommendationKind = "history"
	KindHoroscope   RecommendationKind = "horoscope"
	KindWheeling    RecommendationKind = "wheeling"
	KindCombination RecommendationKind = "combination"
	KindToolBased   RecommendationKind = "tool_based"
)

// ChatMessage is one entry in the assistant conversation.
type ChatMessage struct {
	ID             string          `json:"id"`
	Role           Role            `json:"role"`
	Text           string          `json:"text"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	ActedUpon      bool            `json:"actedUpon"`
}

// Recommendation is a suggested set (or sets) of Numbers.
type Recommendation struct {
	Numbers    RecommendedNumbers `json:"numbers"`
	Kind       RecommendationKind `json:"type"`
	Reasoning  string             `json:"reasoning"`
	Confidence *float64           `json:"confidence,omitempty"`
}

// RecommendedNumbers holds either a single set or several sets. It encodes as
// a flat JSON array in the first case and an array of arrays in the second.
type RecommendedNumbers struct {
	Sets  [][]Number
	Multi bool
}

// SingleSet wraps one set of Numbers.
func SingleSet(nums []Number) RecommendedNumbers {
	return RecommendedNumbers{Sets: [][]Number{nums}}
}

// MultiSet wraps several sets of Numbers.
func MultiSet(sets [][]Number) RecommendedNumbers {
	return RecommendedNumbers{Sets: sets, Multi: true}
}

// First returns the first set, or nil.
func (r RecommendedNumbers) First() []Number {
	if len(r.Sets) == 0 {
		return nil
	}
	return r.Sets[0]
}

// Empty reports whether no Numbers are carried.
func (r RecommendedNumbers) Empty() bool {
	for _, s := range r.Sets {
		if len(s) > 0 {
			return false
		}
	}
	return true
}

// Sanitize drops out-of-range and duplicate values from every set and
// removes sets that end up empty.
func (r RecommendedNumbers) Sanitize() RecommendedNumbers {
	out := RecommendedNumbers{Multi: r.Multi}
	for _, s := range r.Sets {
		clean := UniqueValid(s)
		if len(clean) == 0 {
			continue
		}
		out.Sets = append(out.Sets, SortedCopy(clean))
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (r RecommendedNumbers) MarshalJSON() ([]byte, error) {
	if r.Multi {
		sets := r.Sets
		if sets == nil {
			sets = [][]Number{}
		}
		return json.Marshal(sets)
	}
	first := r.First()
	if first == nil {
		first = []Number{}
	}
	return json.Marshal(first)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RecommendedNumbers) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = RecommendedNumbers{}
		return nil
	}

	var sets [][]Number
	if err := json.Unmarshal(data, &sets); err == nil {
		*r = MultiSet(sets)
		return nil
	}

	var single []Number
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("decode recommended numbers: %w", err)
	}
	*r = SingleSet(single)
	return nil
}
